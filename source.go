// FILE: lixenwraith/registry/source.go
package registry

import (
	"fmt"
	"maps"
	"sync"
)

// Source is an ordered, named key/value backend the registry reads from and,
// when it allows it, writes through to. Position in the registry's source list
// defines precedence (first = highest priority).
type Source interface {
	// Name must be unique within a registry; Save addresses sources by it
	Name() string

	// Get returns the raw value for key and whether the source holds it
	Get(key string) (string, bool)

	// IsSavingPossible reports whether Save can succeed at all
	IsSavingPossible() bool

	// IsSavingPersistent reports whether saved values survive a restart
	IsSavingPersistent() bool

	// Save stores value under key. Returns ErrSaveNotSupported when saving is not possible.
	Save(key, value string) error

	// Reload refreshes the source from its backing store, if it has one
	Reload() error
}

// Default names of the built-in sources
const (
	TransientSourceName = "Transient Configuration Source"
	TestSourceName      = "Test Configuration Source"
	EnvSourceName       = "Environment Variables"
	ArgsSourceName      = "Command Line Arguments"
)

// SimpleSource is an in-memory, writable, non-persistent source.
// Values saved to it are lost on restart.
type SimpleSource struct {
	name   string
	mu     sync.RWMutex
	values map[string]string
}

// NewSimpleSource creates an empty in-memory source named TransientSourceName
func NewSimpleSource() *SimpleSource {
	return NewNamedSimpleSource(TransientSourceName)
}

// NewNamedSimpleSource creates an empty in-memory source with the given name
func NewNamedSimpleSource(name string) *SimpleSource {
	return &SimpleSource{
		name:   name,
		values: make(map[string]string),
	}
}

// NewTestSource creates a source named TestSourceName holding one value
func NewTestSource(key, value string) *SimpleSource {
	return NewNamedSimpleSource(TestSourceName).Add(key, value)
}

// Add stores a value and returns the source for chaining
func (s *SimpleSource) Add(key, value string) *SimpleSource {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return s
}

// Remove deletes a key from the source
func (s *SimpleSource) Remove(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

// Values returns a copy of the stored values
func (s *SimpleSource) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

func (s *SimpleSource) Name() string { return s.name }

func (s *SimpleSource) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *SimpleSource) IsSavingPossible() bool   { return true }
func (s *SimpleSource) IsSavingPersistent() bool { return false }

func (s *SimpleSource) Save(key, value string) error {
	s.Add(key, value)
	return nil
}

func (s *SimpleSource) Reload() error { return nil }

// readOnly provides the write half of Source for sources that cannot save
type readOnly struct {
	name string
}

func (r readOnly) IsSavingPossible() bool   { return false }
func (r readOnly) IsSavingPersistent() bool { return false }

func (r readOnly) Save(key, _ string) error {
	return fmt.Errorf("%w: %s (key %s)", ErrSaveNotSupported, r.name, key)
}
