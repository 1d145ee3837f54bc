package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/alert"
	"github.com/hamed0406/watchdog/internal/config"
	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/httpapi"
	"github.com/hamed0406/watchdog/internal/httpapi/middleware"
	"github.com/hamed0406/watchdog/internal/incident"
	"github.com/hamed0406/watchdog/internal/logging"
	"github.com/hamed0406/watchdog/internal/notify"
	"github.com/hamed0406/watchdog/internal/probe"
	"github.com/hamed0406/watchdog/internal/repo"
	"github.com/hamed0406/watchdog/internal/repo/memory"
	"github.com/hamed0406/watchdog/internal/repo/postgres"
	"github.com/hamed0406/watchdog/internal/scheduler"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "watchdog",
		Short:         "HTTP uptime watchdog with incident tracking and escalating alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "targets.yaml", "path to the targets YAML file")

	root.AddCommand(initCmd(), checkCmd(), runCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  store
	runner *scheduler.Runner
	close  func()
}

// store is the union of the three repository ports; both adapters satisfy it.
type store interface {
	repo.TargetStore
	repo.OutcomeStore
	repo.IncidentStore
}

func setup(ctx context.Context) (*app, error) {
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}
	log, err := logging.NewLogger(logDir)
	if err != nil {
		return nil, fmt.Errorf("open log dir %s: %w", logDir, err)
	}
	cfg, err := config.Load(configPath, log)
	if err != nil {
		return nil, err
	}

	var (
		st      store
		closeFn = func() { _ = log.Sync() }
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st = pg
		closeFn = func() {
			pg.Close()
			_ = log.Sync()
		}
	} else {
		st = memory.New()
	}

	// the store holds the authoritative target snapshot for this process
	for i := range cfg.Targets {
		if err := st.Upsert(ctx, &cfg.Targets[i]); err != nil {
			closeFn()
			return nil, fmt.Errorf("store target %s: %w", cfg.Targets[i].Name, err)
		}
	}

	reg := buildRegistry(cfg, log)
	runner := scheduler.NewRunner(
		log,
		st,
		st,
		probe.NewHTTPChecker(),
		incident.NewEngine(log, st),
		alert.NewDispatcher(log, st, reg),
		cfg.Interval,
		cfg.Concurrency,
	)
	return &app{cfg: cfg, log: log, store: st, runner: runner, close: closeFn}, nil
}

// buildRegistry wires a transport per enabled channel. Channels whose
// credentials are missing stay out of the registry; the dispatcher logs and
// skips them instead of failing the cycle.
func buildRegistry(cfg *config.Config, log *zap.Logger) notify.Registry {
	reg := notify.Registry{}

	if cfg.ChatEnabled() {
		if s := notify.NewSlack(cfg.ChatWebhook(), cfg.Alerts.Chat.Channel); s != nil {
			reg[domain.ChannelChat] = s
		}
	}

	var email *notify.Email
	if cfg.EmailEnabled() {
		email = notify.NewEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword,
			cfg.EmailFrom, cfg.Alerts.Email.Recipients)
		if email != nil {
			reg[domain.ChannelEmail] = email
		}
	}

	if cfg.SMSEnabled() {
		switch cfg.Alerts.SMS.Method {
		case "email_gateway":
			if email == nil {
				email = notify.NewEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword,
					cfg.EmailFrom, nil)
			}
			if g := notify.NewGatewaySMS(email, cfg.SMSEmailGateway); g != nil {
				reg[domain.ChannelSMS] = g
			}
		default:
			if tw := notify.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken,
				cfg.TwilioFromNumber, cfg.Alerts.SMS.Recipients); tw != nil {
				reg[domain.ChannelSMS] = tw
			}
		}
	}

	for _, ch := range []domain.Channel{domain.ChannelChat, domain.ChannelEmail, domain.ChannelSMS} {
		if reg.Get(ch) == nil {
			log.Warn("channel_not_configured", zap.String("channel", string(ch)))
		}
	}
	return reg
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema and load targets from the config",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := zap.NewNop()
			cfg, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("init needs DATABASE_URL")
			}
			pg, err := postgres.New(ctx, cfg.DatabaseURL, log)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			if err := pg.InitSchema(ctx); err != nil {
				return err
			}
			for i := range cfg.Targets {
				if err := pg.Upsert(ctx, &cfg.Targets[i]); err != nil {
					return err
				}
			}
			fmt.Printf("schema ready, %d targets loaded\n", len(cfg.Targets))
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single check cycle and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			results, err := a.runner.RunOnce(ctx)
			if err != nil {
				return err
			}
			for _, res := range results {
				printResult(res)
			}
			return nil
		},
	}
}

func printResult(res scheduler.CycleResult) {
	if res.Err != nil {
		fmt.Printf("! %-24s %v\n", res.Target.Name, res.Err)
		return
	}
	out := res.Outcome
	if out.Status.OK() {
		fmt.Printf("✓ %-24s OK (%.0fms)\n", res.Target.Name, out.LatencyMS)
	} else {
		detail := out.Detail
		if detail == "" {
			detail = string(out.Status)
		}
		fmt.Printf("✗ %-24s %s\n", res.Target.Name, detail)
	}
	if tr := res.Transition; tr != nil {
		switch tr.Kind {
		case incident.SignalNew:
			fmt.Printf("  incident opened (failure #%d)\n", tr.FailureCount)
		case incident.SignalUpdated:
			fmt.Printf("  incident continues (failure #%d)\n", tr.FailureCount)
		case incident.SignalResolved:
			fmt.Printf("  incident resolved after %d failures\n", tr.FailureCount)
		}
	}
	for _, s := range res.Sends {
		if s.Err != nil {
			fmt.Printf("  alert via %s failed: %v\n", s.Channel, s.Err)
		} else {
			fmt.Printf("  alerted via %s\n", s.Channel)
		}
	}
}

func runCmd() *cobra.Command {
	var cronSpec string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the watchdog loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Addr != "" {
				api := httpapi.NewServer(a.log, a.store, a.store, a.store, middleware.Keys{
					Public: a.cfg.PublicAPIKeys,
					Admin:  a.cfg.AdminAPIKeys,
				})
				srv := &http.Server{Addr: a.cfg.Addr, Handler: api.Router()}
				go func() {
					a.log.Info("api_listen", zap.String("addr", a.cfg.Addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("api_failed", zap.Error(err))
					}
				}()
				defer func() {
					shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutCtx)
				}()
			}

			if cronSpec != "" {
				return runCron(ctx, a, cronSpec)
			}
			a.log.Info("watchdog_started",
				zap.Duration("interval", a.cfg.Interval),
				zap.Int("concurrency", a.cfg.Concurrency),
			)
			a.runner.Run(ctx)
			return nil
		},
	}
	cmd.Flags().StringVar(&cronSpec, "cron", "", `cron expression for check cycles, e.g. "*/5 * * * *" (overrides the interval)`)
	return cmd
}

func runCron(ctx context.Context, a *app, spec string) error {
	// skip triggers that fire while a cycle is still running; the runner
	// guards against overlap too, but skipping here keeps the cron log honest
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(a.log))),
	))
	_, err := c.AddFunc(spec, func() {
		if _, err := a.runner.RunOnce(ctx); err != nil {
			a.log.Warn("cycle_error", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("bad cron expression %q: %w", spec, err)
	}
	a.log.Info("watchdog_started", zap.String("cron", spec))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func statusCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show open incidents and per-target uptime",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			// the in-memory store starts empty every invocation; status
			// output would always be blank
			if a.cfg.DatabaseURL == "" {
				return errors.New("status needs DATABASE_URL: without it there is no check history to report")
			}

			open, err := a.store.ListOpen(ctx)
			if err != nil {
				return err
			}
			if len(open) == 0 {
				fmt.Println("no open incidents")
			} else {
				fmt.Printf("%d open incident(s):\n", len(open))
				now := time.Now().UTC()
				for _, inc := range open {
					fmt.Printf("  %s  %s  down %s  (%d consecutive failures)\n",
						inc.TargetName, inc.Status,
						inc.Duration(now).Round(time.Second), inc.FailureCount)
				}
			}

			targets, err := a.store.List(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("\nlast %s:\n", window)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TARGET\tCHECKS\tUPTIME\tAVG LATENCY\tLAST STATUS")
			for _, t := range targets {
				stats, err := a.store.RecentStats(ctx, t.Name, window)
				if err != nil {
					return err
				}
				lastStatus := "-"
				if last, _ := a.store.LastByTarget(ctx, t.Name); last != nil {
					lastStatus = string(last.Status)
				}
				fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.0fms\t%s\n",
					t.Name, stats.Total, stats.UptimePct, stats.AvgLatencyMS, lastStatus)
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "stats window")
	return cmd
}
