// FILE: lixenwraith/registry/registry.go
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// RegistryOption configures a Registry at construction
type RegistryOption func(*Registry)

// WithLogger sets the structured logger (default slog.Default())
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source stamped on resolved entries
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithMaxWatchers caps concurrent Watch subscriptions (default DefaultMaxWatchers)
func WithMaxWatchers(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxWatchers = n
		}
	}
}

// Registry resolves registered options against an ordered list of sources and
// serves the results to providers. Reads are lock-free; Save, reloads and
// source changes serialize among themselves and publish a new snapshot each.
type Registry struct {
	passwordKey string
	defs        map[string]Definition
	providers   map[reflect.Type]OptionProvider
	logger      *slog.Logger
	now         func() time.Time

	mu    sync.Mutex // serializes writers
	state atomic.Pointer[snapshot]

	// Change subscribers, see watch.go
	subMu       sync.RWMutex
	subs        map[int64]chan Change
	subID       atomic.Int64
	maxWatchers int

	autoMu sync.Mutex
	auto   *autoReloader
}

// New registers the providers' options, resolves them against sources (first =
// highest priority) and returns the ready registry. passwordKey names the
// option gating Save; empty disables authentication.
func New(providers []OptionProvider, sources []Source, passwordKey string, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		passwordKey: passwordKey,
		defs:        make(map[string]Definition),
		providers:   make(map[reflect.Type]OptionProvider, len(providers)),
		logger:      slog.Default(),
		now:         time.Now,
		subs:        make(map[int64]chan Change),
		maxWatchers: DefaultMaxWatchers,
	}
	for _, opt := range opts {
		opt(r)
	}

	categories := make(map[string]string)
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("nil option provider")
		}
		t := reflect.TypeOf(p)
		if _, exists := r.providers[t]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, t)
		}
		r.providers[t] = p

		for _, def := range p.Options() {
			if def == nil {
				return nil, fmt.Errorf("provider %q declares a nil option", p.Name())
			}
			key := def.Key()
			if err := validateKey(key); err != nil {
				return nil, fmt.Errorf("provider %q: invalid option key %q: %w", p.Name(), key, err)
			}
			if _, exists := r.defs[key]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
			}
			r.defs[key] = def
			categories[key] = p.Name()
		}
	}

	if passwordKey != "" {
		if _, ok := r.defs[passwordKey]; !ok {
			return nil, fmt.Errorf("%w: password key %s", ErrUnknownKey, passwordKey)
		}
	}

	if err := checkSourceNames(sources); err != nil {
		return nil, err
	}

	r.state.Store(&snapshot{resolved: make(map[string]*ResolvedOption)})
	bound := make([]Definition, 0, len(r.defs))
	for _, key := range sortedKeys(r.defs) {
		def := r.defs[key]
		if err := def.bind(r, categories[key]); err != nil {
			// A registry that is never returned must not keep its options
			for _, d := range bound {
				d.unbind(r)
			}
			return nil, err
		}
		bound = append(bound, def)
	}

	list := slices.Clone(sources)
	r.publish(list, r.resolveAll(list))
	return r, nil
}

func checkSourceNames(sources []Source) error {
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src == nil {
			return errors.New("nil configuration source")
		}
		if _, dup := seen[src.Name()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name())
		}
		seen[src.Name()] = struct{}{}
	}
	return nil
}

// current returns the published snapshot; never nil after New
func (r *Registry) current() *snapshot {
	return r.state.Load()
}

// PasswordKey returns the key of the option gating Save, if any
func (r *Registry) PasswordKey() string {
	return r.passwordKey
}

// resolveKey walks sources in priority order. The first source whose raw value
// parses wins. The first conversion failure is kept even if a later source wins.
func (r *Registry) resolveKey(def Definition, sources []Source) *ResolvedOption {
	ro := &ResolvedOption{
		Key:   def.Key(),
		Value: def.DefaultValue(),
		def:   def,
	}
	for _, src := range sources {
		raw, ok := src.Get(def.Key())
		if !ok {
			continue
		}
		v, err := def.parse(raw)
		if err != nil {
			if ro.ErrorMessage == "" {
				ro.ErrorMessage = fmt.Sprintf("Error in %s: %s", src.Name(), err)
			}
			r.logger.Warn("Rejected configuration value",
				"key", def.Key(),
				"source", src.Name(),
				"error", err)
			continue
		}
		ro.Value = v
		ro.SourceName = src.Name()
		break
	}
	return ro
}

func (r *Registry) resolveAll(sources []Source) map[string]*ResolvedOption {
	resolved := make(map[string]*ResolvedOption, len(r.defs))
	for key, def := range r.defs {
		resolved[key] = r.resolveKey(def, sources)
	}
	return resolved
}

// publish stamps versions, swaps the snapshot in and notifies subscribers.
// Caller holds r.mu (or is New).
func (r *Registry) publish(sources []Source, resolved map[string]*ResolvedOption) {
	prev := r.current()
	gen := prev.generation + 1
	now := r.now()

	var changes []Change
	for _, key := range sortedKeys(resolved) {
		ro := resolved[key]
		old := prev.resolved[key]
		if old == ro {
			// carried over unchanged from the published map; never write to it
			continue
		}
		if old != nil && ro.sameState(old) {
			ro.Version = old.Version
			ro.UpdatedAt = old.UpdatedAt
			continue
		}
		ro.Version = gen
		ro.UpdatedAt = now
		changes = append(changes, newChange(old, ro))
	}

	r.state.Store(&snapshot{
		generation: gen,
		sources:    sources,
		resolved:   resolved,
	})
	r.notify(changes)
}

// republishKey re-resolves a single key against the current sources
func (r *Registry) republishKey(def Definition) {
	snap := r.current()
	resolved := maps.Clone(snap.resolved)
	resolved[def.Key()] = r.resolveKey(def, snap.sources)
	r.publish(snap.sources, resolved)
}

// GetConfigurationOptionByKey returns the resolution state of key
func (r *Registry) GetConfigurationOptionByKey(key string) (ResolvedOption, error) {
	ro, ok := r.current().resolved[key]
	if !ok {
		return ResolvedOption{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return *ro, nil
}

// ConfigurationOptions returns every resolved option sorted by key
func (r *Registry) ConfigurationOptions() []ResolvedOption {
	snap := r.current()
	out := make([]ResolvedOption, 0, len(snap.resolved))
	for _, key := range sortedKeys(snap.resolved) {
		out = append(out, *snap.resolved[key])
	}
	return out
}

// ConfigurationOptionsByCategory groups resolved options by provider name
func (r *Registry) ConfigurationOptionsByCategory() map[string][]ResolvedOption {
	grouped := make(map[string][]ResolvedOption)
	for _, ro := range r.ConfigurationOptions() {
		category := ro.def.Category()
		grouped[category] = append(grouped[category], ro)
	}
	return grouped
}

// Value returns the typed value served for key
func (r *Registry) Value(key string) (any, error) {
	ro, err := r.GetConfigurationOptionByKey(key)
	if err != nil {
		return nil, err
	}
	return ro.Value, nil
}

// String returns the value of key spelled the way a source would hold it
func (r *Registry) String(key string) (string, error) {
	v, err := r.Value(key)
	if err != nil {
		return "", err
	}
	return formatValue(v), nil
}

// Bool returns the value of a bool option
func (r *Registry) Bool(key string) (bool, error) {
	v, err := r.Value(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %s is %T, not bool", key, v)
	}
	return b, nil
}

// Int64 returns the value of any signed integer option
func (r *Registry) Int64(key string) (int64, error) {
	v, err := r.Value(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("option %s is %T, not an integer", key, v)
	}
}

// Float64 returns the value of a float or integer option
func (r *Registry) Float64(key string) (float64, error) {
	v, err := r.Value(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("option %s is %T, not a number", key, v)
	}
}

// AddConfigurationSource appends src at the lowest priority and re-resolves every option
func (r *Registry) AddConfigurationSource(src Source) error {
	return r.addSource(src, false)
}

// AddConfigurationSourceFirst inserts src at the highest priority and re-resolves every option
func (r *Registry) AddConfigurationSourceFirst(src Source) error {
	return r.addSource(src, true)
}

func (r *Registry) addSource(src Source, first bool) error {
	if src == nil {
		return errors.New("nil configuration source")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current()
	if _, exists := snap.source(src.Name()); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, src.Name())
	}

	sources := make([]Source, 0, len(snap.sources)+1)
	if first {
		sources = append(sources, src)
		sources = append(sources, snap.sources...)
	} else {
		sources = append(sources, snap.sources...)
		sources = append(sources, src)
	}
	r.publish(sources, r.resolveAll(sources))
	r.logger.Debug("Added configuration source", "source", src.Name(), "first", first)
	return nil
}

// RemoveConfigurationSource drops the named source and re-resolves every option
func (r *Registry) RemoveConfigurationSource(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current()
	idx := slices.IndexFunc(snap.sources, func(s Source) bool { return s.Name() == name })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	sources := slices.Delete(slices.Clone(snap.sources), idx, idx+1)
	r.publish(sources, r.resolveAll(sources))
	r.logger.Debug("Removed configuration source", "source", name)
	return nil
}

// SourceNames lists source names in priority order
func (r *Registry) SourceNames() []string {
	snap := r.current()
	names := make([]string, len(snap.sources))
	for i, src := range snap.sources {
		names[i] = src.Name()
	}
	return names
}

// ReloadAllConfigurationOptions reloads every source, then re-resolves every
// option and publishes the result. A source that fails to reload keeps serving
// its previous data; the failures are logged and returned joined.
func (r *Registry) ReloadAllConfigurationOptions() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current()
	var errs []error
	for _, src := range snap.sources {
		if err := src.Reload(); err != nil {
			r.logger.Warn("Failed to reload configuration source",
				"source", src.Name(),
				"error", err)
			errs = append(errs, fmt.Errorf("reload %s: %w", src.Name(), err))
		}
	}

	r.publish(snap.sources, r.resolveAll(snap.sources))
	r.logger.Debug("Reloaded configuration", "generation", r.current().generation)
	return errors.Join(errs...)
}

// ReloadConfigurationOption re-resolves one option without reloading sources
func (r *Registry) ReloadConfigurationOption(key string) error {
	def, ok := r.defs[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.republishKey(def)
	return nil
}

// IsPasswordSet reports whether some source supplies the password option,
// i.e. whether Save is enabled at all
func (r *Registry) IsPasswordSet() bool {
	if r.passwordKey == "" {
		return false
	}
	ro := r.current().resolved[r.passwordKey]
	return ro != nil && ro.SourceName != ""
}

// Version returns the generation of the published snapshot
func (r *Registry) Version() uint64 {
	return r.current().generation
}
