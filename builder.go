// File: lixenwraith/registry/builder.go
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ValidatorFunc validates a fully built Registry
type ValidatorFunc func(r *Registry) error

// sourceStep creates one source at Build time. A nil Source with a nil error
// means the step contributes nothing.
type sourceStep func() (Source, error)

// Builder provides a fluent interface for assembling a Registry. Source methods
// are called in priority order: the first source added wins.
type Builder struct {
	providers   []OptionProvider
	steps       []sourceStep
	args        []string
	passwordKey string
	opts        []RegistryOption
	autoReload  *WatchOptions
	err         error
	validators  []ValidatorFunc
}

// NewBuilder creates a new registry builder
func NewBuilder() *Builder {
	return &Builder{
		args:       os.Args[1:],
		validators: make([]ValidatorFunc, 0),
	}
}

// WithProviders registers option providers
func (b *Builder) WithProviders(providers ...OptionProvider) *Builder {
	b.providers = append(b.providers, providers...)
	return b
}

// WithSource adds a ready-made source
func (b *Builder) WithSource(src Source) *Builder {
	if src == nil {
		b.err = errors.New("nil configuration source")
		return b
	}
	b.steps = append(b.steps, func() (Source, error) { return src, nil })
	return b
}

// WithTransientSource adds an empty in-memory source named TransientSourceName
func (b *Builder) WithTransientSource() *Builder {
	return b.WithSource(NewSimpleSource())
}

// WithArgs adds a command-line source over args. It also sets the arguments
// WithFileDiscovery inspects, so call it first.
func (b *Builder) WithArgs(args []string) *Builder {
	b.args = args
	b.steps = append(b.steps, func() (Source, error) {
		return NewArgsSource(args)
	})
	return b
}

// WithEnvPrefix adds an environment source mapping "a.b" to PREFIX + "A_B"
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	return b.WithSource(NewEnvSource(prefix))
}

// WithEnvTransform adds an environment source with a custom key mapping
func (b *Builder) WithEnvTransform(fn EnvTransformFunc) *Builder {
	return b.WithSource(NewEnvSourceWithTransform(fn))
}

// WithFile adds a file source. ".properties" files are served by a
// PropertiesSource (which honors only OptionalFile), everything else by a
// FileSource. A missing file is skipped and Build reports ErrConfigNotFound
// alongside the registry, unless OptionalFile is given.
func (b *Builder) WithFile(path string, opts ...FileOption) *Builder {
	if path == "" {
		return b
	}
	b.steps = append(b.steps, func() (Source, error) {
		if strings.EqualFold(filepath.Ext(path), ".properties") {
			settings := &FileSource{}
			for _, opt := range opts {
				opt(settings)
			}
			return NewPropertiesSource(path, settings.optional)
		}
		return NewFileSource(path, opts...)
	})
	return b
}

// WithPasswordKey names the option gating Save
func (b *Builder) WithPasswordKey(key string) *Builder {
	b.passwordKey = key
	return b
}

// WithLogger sets the registry's logger
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.opts = append(b.opts, WithLogger(logger))
	return b
}

// WithOptions passes registry options through to New
func (b *Builder) WithOptions(opts ...RegistryOption) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// WithAutoReload starts periodic reloading once the registry is built
func (b *Builder) WithAutoReload(opts WatchOptions) *Builder {
	b.autoReload = &opts
	return b
}

// WithValidator adds a validation function that runs at the end of the build process
// Multiple validators can be added and are executed in the order they are added
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Build creates the Registry. When a file source was skipped because its file
// does not exist, the registry is returned together with ErrConfigNotFound.
func (b *Builder) Build() (*Registry, error) {
	if b.err != nil {
		return nil, b.err
	}

	var notFound error
	sources := make([]Source, 0, len(b.steps))
	for _, step := range b.steps {
		src, err := step()
		if err != nil {
			if errors.Is(err, ErrConfigNotFound) {
				// Not fatal: the application can run on the remaining sources
				notFound = err
				continue
			}
			return nil, err
		}
		if src != nil {
			sources = append(sources, src)
		}
	}

	reg, err := New(b.providers, sources, b.passwordKey, b.opts...)
	if err != nil {
		return nil, err
	}

	for _, validator := range b.validators {
		if err := validator(reg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	if b.autoReload != nil {
		reg.AutoReload(*b.autoReload)
	}

	// ErrConfigNotFound or nil
	return reg, notFound
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Registry {
	reg, err := b.Build()
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		panic(fmt.Sprintf("registry build failed: %v", err))
	}
	return reg
}

// BuildAndScan builds the registry and scans the options under prefix into target
func (b *Builder) BuildAndScan(prefix string, target any) (*Registry, error) {
	reg, err := b.Build()
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	if scanErr := reg.Scan(prefix, target); scanErr != nil {
		reg.Close()
		return nil, fmt.Errorf("failed to scan configuration into target: %w", scanErr)
	}

	// ErrConfigNotFound or nil
	return reg, err
}
