package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/pixelflow/component"
)

// InfrastructureInfo describes one started component.
type InfrastructureInfo struct {
	Name    string
	Type    string
	Details string
	Port    int
}

// Summary collects and prints what the process started.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	infrastructure  []InfrastructureInfo
	routes          []component.Route
	out             io.Writer
}

// NewSummary creates an empty summary printing to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackInfrastructure records a component with its description.
func (s *Summary) TrackInfrastructure(name, componentType, details string, port int) {
	s.infrastructure = append(s.infrastructure, InfrastructureInfo{
		Name: name, Type: componentType, Details: details, Port: port,
	})
}

// TrackRoute records an HTTP route.
func (s *Summary) TrackRoute(r component.Route) {
	s.routes = append(s.routes, r)
}

// CollectFromRegistry replaces the tracked infrastructure and routes with
// what the registry's Describable and RouteProvider components report.
func (s *Summary) CollectFromRegistry(registry *component.Registry) {
	if registry == nil {
		return
	}
	s.infrastructure = s.infrastructure[:0]
	s.routes = s.routes[:0]
	for _, c := range registry.All() {
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			name := desc.Name
			if name == "" {
				name = c.Name()
			}
			s.TrackInfrastructure(name, desc.Type, desc.Details, desc.Port)
		}
		if rp, ok := c.(component.RouteProvider); ok {
			for _, r := range rp.Routes() {
				s.TrackRoute(r)
			}
		}
	}
}

// Display prints the summary with live health from registry.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n%s %s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if len(s.infrastructure) > 0 {
		fmt.Fprintf(w, "\nInfrastructure\n")
		for i, inf := range s.infrastructure {
			details := inf.Details
			if inf.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, inf.Port)
			}
			fmt.Fprintf(w, "   %s %s [%s]: %s\n", treePrefix(i, len(s.infrastructure)), inf.Name, inf.Type, details)
		}
	}

	var api, system []component.Route
	for _, r := range s.routes {
		if r.System {
			system = append(system, r)
		} else {
			api = append(api, r)
		}
	}
	s.printRoutes("Routes", api)
	s.printRoutes("System", system)

	if registry != nil {
		results := registry.HealthAll(ctx)
		if len(results) > 0 {
			fmt.Fprintf(w, "\nHealth\n")
			for i, h := range results {
				msg := ""
				if h.Message != "" {
					msg = ": " + h.Message
				}
				fmt.Fprintf(w, "   %s %s %s %s%s\n", treePrefix(i, len(results)), healthStatusIcon(h.Status),
					h.Name, strings.ToLower(string(h.Status)), msg)
			}
		}
	}
	fmt.Fprintln(w)
}

func (s *Summary) printRoutes(title string, routes []component.Route) {
	if len(routes) == 0 {
		return
	}
	fmt.Fprintf(s.out, "\n%s (%d)\n", title, len(routes))
	for i, r := range routes {
		fmt.Fprintf(s.out, "   %s %-7s %s -> %s\n", treePrefix(i, len(routes)), r.Method, r.Path, r.Handler)
	}
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✓"
	case component.StatusDegraded:
		return "!"
	case component.StatusUnhealthy:
		return "✗"
	default:
		return "?"
	}
}
