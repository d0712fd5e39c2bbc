package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component represents a lifecycle-managed part of the serve process:
// the HTTP server, the run event hub, telemetry exporters.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information logged when a component starts.
type Description struct {
	// Name is the human-readable display name (e.g., "HTTP Server").
	// If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "server", "sse", "telemetry".
	Type string
	// Details is a one-liner such as "0.0.0.0:8080 h2c".
	Details string
	// Port is the primary port, 0 if not applicable.
	Port int
}

// Describable is optionally implemented by Components that want their
// configuration included in the startup log.
type Describable interface {
	Describe() Description
}

// Route is one HTTP route shown in the startup summary.
type Route struct {
	Method  string
	Path    string
	Handler string
	// System marks probe and info endpoints.
	System bool
}

// RouteProvider is optionally implemented by Components that serve HTTP.
type RouteProvider interface {
	Routes() []Route
}

// Func adapts plain start/stop functions into a Component.
type Func struct {
	ComponentName string
	StartFn       func(ctx context.Context) error
	StopFn        func(ctx context.Context) error
}

// Name returns the component name.
func (f *Func) Name() string { return f.ComponentName }

// Start calls StartFn when set.
func (f *Func) Start(ctx context.Context) error {
	if f.StartFn == nil {
		return nil
	}
	return f.StartFn(ctx)
}

// Stop calls StopFn when set.
func (f *Func) Stop(ctx context.Context) error {
	if f.StopFn == nil {
		return nil
	}
	return f.StopFn(ctx)
}

// Health always reports healthy.
func (f *Func) Health(context.Context) Health {
	return Health{Name: f.ComponentName, Status: StatusHealthy}
}
