// File: lixenwraith/registry/provider.go
package registry

import "reflect"

// OptionProvider is a named bundle of options contributed by a feature module.
// Providers expose typed getters that read through their options; feature code
// never parses raw configuration itself.
type OptionProvider interface {
	// Name is used as the category of every option the provider contributes
	Name() string

	// Options lists the provider's declarations. Called once, at registry construction.
	Options() []Definition
}

// GetConfig returns the registered provider whose concrete type is exactly T,
// or the zero value of T when none was registered.
//
//	core := registry.GetConfig[*core.Plugin](reg)
func GetConfig[T OptionProvider](r *Registry) T {
	var zero T
	p, ok := r.providers[reflect.TypeFor[T]()]
	if !ok {
		return zero
	}
	typed, ok := p.(T)
	if !ok {
		return zero
	}
	return typed
}

// Provider is the non-generic form of GetConfig
func (r *Registry) Provider(t reflect.Type) OptionProvider {
	return r.providers[t]
}
