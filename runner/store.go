package runner

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kbukum/pixelflow/errors"
)

// StoreConfig bounds how many runs are remembered and for how long.
type StoreConfig struct {
	Size int           `mapstructure:"size" validate:"min=0"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// ApplyDefaults fills unset fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.Size <= 0 {
		c.Size = 128
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
}

// Store keeps recent runs by id. Old runs are evicted by age and count;
// evicting a run that is still going cancels it.
type Store struct {
	runs *expirable.LRU[string, *Run]
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) *Store {
	cfg.ApplyDefaults()
	onEvict := func(_ string, run *Run) {
		if run.State() != StateFinished {
			run.Cancel()
		}
	}
	return &Store{runs: expirable.NewLRU[string, *Run](cfg.Size, onEvict, cfg.TTL)}
}

// Add remembers run.
func (s *Store) Add(run *Run) { s.runs.Add(run.ID(), run) }

// Get returns the run with the given id or a NOT_FOUND error.
func (s *Store) Get(id string) (*Run, error) {
	run, ok := s.runs.Get(id)
	if !ok {
		return nil, errors.NotFound("run", id)
	}
	return run, nil
}

// List returns remembered runs, oldest first.
func (s *Store) List() []*Run { return s.runs.Values() }

// Len returns how many runs are remembered.
func (s *Store) Len() int { return s.runs.Len() }

// CancelAll cancels every run still going.
func (s *Store) CancelAll() {
	for _, run := range s.runs.Values() {
		if run.State() != StateFinished {
			run.Cancel()
		}
	}
}
