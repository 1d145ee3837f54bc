package notify

import (
	"context"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Notifier sends one notification on one channel.
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Registry maps a channel variant to its transport. The dispatcher looks
// channels up here instead of branching on names.
type Registry map[domain.Channel]Notifier

// Get returns nil when the channel has no configured transport.
func (r Registry) Get(ch domain.Channel) Notifier {
	n, ok := r[ch]
	if !ok {
		return nil
	}
	return n
}
