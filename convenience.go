// File: lixenwraith/registry/convenience.go
package registry

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// RequireSet checks that every key is registered and supplied by some source.
// It fits Builder.WithValidator:
//
//	b.WithValidator(func(r *registry.Registry) error { return r.RequireSet("app.name") })
func (r *Registry) RequireSet(required ...string) error {
	snap := r.current()
	var missing []string

	for _, key := range required {
		ro, exists := snap.resolved[key]
		if !exists {
			missing = append(missing, key+" (not registered)")
			continue
		}
		if ro.SourceName == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Errors returns the options whose sources held malformed values, sorted by key
func (r *Registry) Errors() []ResolvedOption {
	var out []ResolvedOption
	for _, ro := range r.ConfigurationOptions() {
		if ro.HasError() {
			out = append(out, ro)
		}
	}
	return out
}

// Debug returns a formatted string showing all configuration values and their sources
func (r *Registry) Debug() string {
	snap := r.current()

	var b strings.Builder
	b.WriteString("Configuration Debug Info:\n")
	fmt.Fprintf(&b, "Generation: %d\n", snap.generation)
	b.WriteString("Precedence:\n")
	for i, src := range snap.sources {
		fmt.Fprintf(&b, "  %d. %s (saving possible: %t, persistent: %t)\n",
			i+1, src.Name(), src.IsSavingPossible(), src.IsSavingPersistent())
	}
	b.WriteString("Current values:\n")

	for _, key := range sortedKeys(snap.resolved) {
		ro := snap.resolved[key]
		fmt.Fprintf(&b, "  %s:\n", key)
		fmt.Fprintf(&b, "    Current: %s\n", ro.ValueAsString())
		if ro.def.IsSensitive() {
			fmt.Fprintf(&b, "    Default: %s\n", maskedValue)
		} else {
			fmt.Fprintf(&b, "    Default: %s\n", formatValue(ro.def.DefaultValue()))
		}
		if ro.SourceName != "" {
			fmt.Fprintf(&b, "    Source: %s\n", ro.SourceName)
		}
		if ro.ErrorMessage != "" {
			fmt.Fprintf(&b, "    Error: %s\n", ro.ErrorMessage)
		}
		fmt.Fprintf(&b, "    Dynamic: %t\n", ro.def.IsDynamic())
	}

	return b.String()
}

// Dump writes the current values to w as a TOML document. Sensitive options
// are written masked.
func (r *Registry) Dump(w io.Writer) error {
	snap := r.current()

	flat := make(map[string]string, len(snap.resolved))
	for key, ro := range snap.resolved {
		flat[key] = ro.ValueAsString()
	}

	encoder := toml.NewEncoder(w)
	return encoder.Encode(nestFlat(flat))
}

// ExportEnv returns the variables that would reproduce every value supplied by
// a source, named with transform (nil = default mapping with prefix).
// Sensitive options are left out.
func (r *Registry) ExportEnv(prefix string, transform EnvTransformFunc) map[string]string {
	if transform == nil {
		transform = defaultEnvTransform(prefix)
	}

	exports := make(map[string]string)
	for _, ro := range r.current().resolved {
		if ro.SourceName == "" || ro.def.IsSensitive() {
			continue
		}
		exports[transform(ro.Key)] = formatValue(ro.Value)
	}
	return exports
}
