package tracker

import (
	"context"
)

// Connector binds observers to the tracking service.
type Connector struct {
	service *Service
}

func NewConnector(service *Service) *Connector {
	return &Connector{service: service}
}

// Bind yields the current session handle, if any, and then a handle on every
// session start and nil on every stop. Observers should drop whatever they
// read from a previous handle when a new value arrives.
// The channel closes when ctx is done or the service is closed.
func (c *Connector) Bind(ctx context.Context) (<-chan Handle, error) {
	c.service.mu.Lock()
	closed := c.service.closed
	c.service.mu.Unlock()
	if closed {
		return nil, ErrServiceClosed
	}
	return c.service.connections.Subscribe(ctx), nil
}
