package sim

import (
	"github.com/rotblauer/geopulse/params"
	"github.com/rotblauer/geopulse/tracker"
	"log/slog"
	"sync"
)

// Notifier records the foreground notification instead of showing it.
type Notifier struct {
	mu      sync.Mutex
	deny    bool
	current *params.Notification
	starts  int
	stops   int
}

// SetDeny makes later StartForeground calls fail, as when the user blocks notifications.
func (n *Notifier) SetDeny(deny bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deny = deny
}

func (n *Notifier) StartForeground(notification params.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.deny {
		return tracker.ErrForegroundDenied
	}
	n.current = &notification
	n.starts++
	slog.Info("Foreground notification shown", "pkg", "sim", "title", notification.Title, "text", notification.Text)
	return nil
}

func (n *Notifier) StopForeground() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = nil
	n.stops++
}

// Showing returns the notification currently shown, if any.
func (n *Notifier) Showing() (params.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return params.Notification{}, false
	}
	return *n.current, true
}

func (n *Notifier) Counts() (starts, stops int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.starts, n.stops
}
