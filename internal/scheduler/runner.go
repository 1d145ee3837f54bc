package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/alert"
	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/incident"
	"github.com/hamed0406/watchdog/internal/probe"
	"github.com/hamed0406/watchdog/internal/repo"
)

// CycleResult is what one cycle reports for one target, for the caller's
// display layer.
type CycleResult struct {
	Target     domain.Target
	Outcome    domain.CheckOutcome
	Transition *incident.Transition
	Sends      []alert.SendRecord
	Err        error // persistence failure; the target's step was not advanced
}

// Runner drives one check cycle: probe every enabled target with bounded
// concurrency, then per target append the outcome, apply it to the incident
// engine and dispatch whatever alerts came due. One goroutine per target
// means outcomes for a target are always applied in the order produced.
type Runner struct {
	Logger      *zap.Logger
	Targets     repo.TargetStore
	Outcomes    repo.OutcomeStore
	Checker     probe.Checker
	Engine      *incident.Engine
	Dispatcher  *alert.Dispatcher
	Interval    time.Duration
	Concurrency int

	inFlight atomic.Bool
}

func NewRunner(
	logger *zap.Logger,
	targets repo.TargetStore,
	outcomes repo.OutcomeStore,
	checker probe.Checker,
	engine *incident.Engine,
	dispatcher *alert.Dispatcher,
	interval time.Duration,
	concurrency int,
) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval < 0 {
		interval = 0
	}
	return &Runner{
		Logger:      logger,
		Targets:     targets,
		Outcomes:    outcomes,
		Checker:     checker,
		Engine:      engine,
		Dispatcher:  dispatcher,
		Interval:    interval,
		Concurrency: concurrency,
	}
}

// RunOnce executes a single cycle over the current target snapshot.
// Disabled targets are skipped entirely: an open incident on a disabled
// target stays frozen until the target is enabled again.
//
// Cycles never overlap: a trigger that arrives while a cycle is still
// running is dropped, so a slow probe can never apply its stale outcome
// after a newer cycle's result for the same target.
func (r *Runner) RunOnce(ctx context.Context) ([]CycleResult, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.Logger.Warn("cycle_skipped", zap.String("reason", "previous cycle still running"))
		return nil, nil
	}
	defer r.inFlight.Store(false)

	all, err := r.Targets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	var targets []domain.Target
	for _, t := range all {
		if t.Enabled {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	results := make([]CycleResult, len(targets))
	sem := make(chan struct{}, r.Concurrency)
	var wg sync.WaitGroup

	for i, tgt := range targets {
		i, t := i, tgt
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i] = r.checkOne(ctx, t)
		}()
	}
	wg.Wait()

	return results, nil
}

func (r *Runner) checkOne(ctx context.Context, t domain.Target) CycleResult {
	res := CycleResult{Target: t}

	out := r.Checker.Check(ctx, t)
	res.Outcome = out

	r.Logger.Debug("target_checked",
		zap.String("target", t.Name),
		zap.String("status", string(out.Status)),
		zap.Int("http_status", out.HTTPStatus),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("detail", out.Detail),
	)

	if err := r.Outcomes.Append(ctx, &out); err != nil {
		// failed to record: do not advance incident state, the next cycle
		// re-derives it from whatever history did get persisted
		res.Err = fmt.Errorf("append outcome: %w", err)
		r.Logger.Warn("outcome_append_failed",
			zap.String("target", t.Name),
			zap.Error(err),
		)
		return res
	}

	tr, err := r.Engine.Apply(ctx, &out)
	if err != nil {
		res.Err = fmt.Errorf("apply outcome: %w", err)
		r.Logger.Warn("incident_apply_failed",
			zap.String("target", t.Name),
			zap.Error(err),
		)
		return res
	}
	res.Transition = tr

	res.Sends = r.Dispatcher.Dispatch(ctx, t, tr)
	return res
}

// Run starts the periodic loop: an immediate pass, then one per tick until
// ctx is cancelled. Interval 0 disables the loop.
func (r *Runner) Run(ctx context.Context) {
	if r.Interval == 0 {
		r.Logger.Info("runner_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	if _, err := r.RunOnce(ctx); err != nil {
		r.Logger.Warn("cycle_error", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner_stopped")
			return
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.Logger.Warn("cycle_error", zap.Error(err))
			}
		}
	}
}
