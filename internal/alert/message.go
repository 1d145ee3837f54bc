package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/incident"
)

func failureMessage(t domain.Target, tr *incident.Transition) (title, text string) {
	out := tr.Outcome
	if tr.FailureCount > 1 {
		title = fmt.Sprintf("🔴 ESCALATION: %s down for %d checks", t.Name, tr.FailureCount)
	} else {
		title = fmt.Sprintf("🔴 DOWN: %s", t.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\n", t.Name)
	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(out.Status)))
	if out.HTTPStatus != 0 {
		fmt.Fprintf(&b, "HTTP: %d\n", out.HTTPStatus)
	}
	if out.Detail != "" {
		fmt.Fprintf(&b, "Error: %s\n", out.Detail)
	}
	fmt.Fprintf(&b, "Consecutive failures: %d\n", tr.FailureCount)
	fmt.Fprintf(&b, "First failure: %s", tr.Incident.StartedAt.Format(time.RFC3339))
	return title, b.String()
}

func recoveryMessage(t domain.Target, tr *incident.Transition) (title, text string) {
	title = fmt.Sprintf("🟢 RECOVERED: %s", t.Name)

	resolvedAt := tr.Outcome.CheckedAt
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s is responding normally again.\n", t.Name)
	fmt.Fprintf(&b, "Was down for %d consecutive checks.\n", tr.FailureCount)
	fmt.Fprintf(&b, "Incident duration: %s\n", tr.Incident.Duration(resolvedAt).Round(time.Second))
	fmt.Fprintf(&b, "Latency: %.0f ms", tr.Outcome.LatencyMS)
	return title, b.String()
}
