package probe

import (
	"context"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Checker performs exactly one probe against one target. Implementations
// must never return an error to the caller: every transport failure is
// classified into the outcome (timeout/error) so one bad target can't take
// down a check cycle.
type Checker interface {
	Check(ctx context.Context, t domain.Target) domain.CheckOutcome
}
