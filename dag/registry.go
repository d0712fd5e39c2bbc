package dag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/pixelflow/errors"
)

// Factory creates a fresh node of one kind.
type Factory func() Node

// PinSpec describes a declared pin for palettes and listings.
type PinSpec struct {
	Name        string    `json:"name"`
	Type        PinType   `json:"type"`
	Direction   Direction `json:"direction"`
	Description string    `json:"description,omitempty"`
	Default     any       `json:"default,omitempty"`
	Multiple    bool      `json:"is_multiple"`
}

// Metadata describes a registered node kind.
type Metadata struct {
	ClassName   string    `json:"class_name"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Inputs      []PinSpec `json:"inputs"`
	Outputs     []PinSpec `json:"outputs"`
}

type registryEntry struct {
	factory Factory
	meta    Metadata
}

// Registry maps class names to node factories. Kinds are registered
// explicitly at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register adds a node kind. Its metadata is read from a prototype built by f.
func (r *Registry) Register(f Factory) error {
	if f == nil {
		return errors.InvalidInput("factory", "factory is nil")
	}
	proto := f()
	if proto == nil || proto.Base() == nil {
		return errors.InvalidInput("factory", "factory returned a nil node")
	}
	meta := describe(proto.Base())
	if meta.ClassName == "" {
		return errors.InvalidInput("class_name", "node kind has no class name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[meta.ClassName]; exists {
		return errors.AlreadyExists("node class", meta.ClassName)
	}
	r.entries[meta.ClassName] = registryEntry{factory: f, meta: meta}
	return nil
}

// MustRegister registers each factory and panics on the first failure.
func (r *Registry) MustRegister(factories ...Factory) {
	for _, f := range factories {
		if err := r.Register(f); err != nil {
			panic(fmt.Sprintf("dag: %v", err))
		}
	}
}

// Create builds a new node of the named class.
func (r *Registry) Create(className string) (Node, error) {
	r.mu.RLock()
	entry, ok := r.entries[className]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.UnknownNodeClass(className)
	}
	return entry.factory(), nil
}

// Get returns the metadata of a registered class.
func (r *Registry) Get(className string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[className]
	return entry.meta, ok
}

// List returns all kinds sorted by category, then name.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	out := make([]Metadata, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.meta)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ClassNames returns the registered class names, sorted.
func (r *Registry) ClassNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Categories returns the distinct categories, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	seen := make(map[string]bool)
	for _, entry := range r.entries {
		seen[entry.meta.Category] = true
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func describe(b *NodeBase) Metadata {
	info := b.Info()
	meta := Metadata{
		ClassName:   info.ClassName,
		Name:        info.Name,
		Description: info.Description,
		Category:    info.Category,
		Inputs:      make([]PinSpec, 0, len(b.inputs)),
		Outputs:     make([]PinSpec, 0, len(b.outputs)),
	}
	for _, p := range b.inputs {
		meta.Inputs = append(meta.Inputs, specOf(p))
	}
	for _, p := range b.outputs {
		meta.Outputs = append(meta.Outputs, specOf(p))
	}
	return meta
}

func specOf(p *Pin) PinSpec {
	return PinSpec{
		Name:        p.name,
		Type:        p.typ,
		Direction:   p.dir,
		Description: p.description,
		Default:     portable(p.defaultVal, p.typ),
		Multiple:    p.multiple,
	}
}
