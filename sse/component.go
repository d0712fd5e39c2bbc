package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/pixelflow/component"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component owns a Hub's event loop for the lifetime of the service.
type Component struct {
	hub  *Hub
	path string

	mu   sync.Mutex
	done chan struct{}
}

// NewComponent creates a component with a fresh Hub. path is the route
// clients subscribe on and is only used for the startup summary.
func NewComponent(path string) *Component {
	return &Component{hub: NewHub(), path: path}
}

func (c *Component) Hub() *Hub    { return c.hub }
func (c *Component) Name() string { return "sse" }

// Start launches the event loop. Starting twice is a no-op.
func (c *Component) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil
	}
	done := make(chan struct{})
	c.done = done
	go func() {
		defer close(done)
		c.hub.Run()
	}()
	return nil
}

// Stop closes every stream and waits for the event loop to exit or ctx to
// end, whichever comes first.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	c.hub.Stop()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sse hub did not stop: %w", ctx.Err())
	}
}

// Health is unhealthy once the event loop has exited.
func (c *Component) Health(context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		select {
		case <-done:
			h.Status = component.StatusUnhealthy
			h.Message = "event loop stopped"
			return h
		default:
		}
	}
	h.Message = fmt.Sprintf("%d clients connected", c.hub.ClientCount())
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Run event stream",
		Type:    "sse",
		Details: "GET " + c.path,
	}
}
