// File: lixenwraith/registry/resolved.go
package registry

import (
	"log/slog"
	"time"
)

// ResolvedOption is the (value, source, error) triple the registry serves for
// one key. Instances are immutable; every reload or save publishes new ones.
type ResolvedOption struct {
	Key string

	// Value is the typed value, or the option's default when no source supplied one
	Value any

	// SourceName names the source that supplied Value; empty for the default
	SourceName string

	// ErrorMessage is set when a source held a value that failed conversion,
	// in the form "Error in <source>: <reason>"
	ErrorMessage string

	// Version is the registry generation in which this entry last changed
	Version uint64

	// UpdatedAt is when this entry last changed
	UpdatedAt time.Time

	def Definition
}

// Definition returns the option declaration behind this entry
func (ro ResolvedOption) Definition() Definition {
	return ro.def
}

// IsDefault reports whether no source supplied the value
func (ro ResolvedOption) IsDefault() bool {
	return ro.SourceName == ""
}

// HasError reports whether a source held a malformed value for this key
func (ro ResolvedOption) HasError() bool {
	return ro.ErrorMessage != ""
}

// ValueAsString renders the value as a source would spell it, masked for
// sensitive options.
func (ro ResolvedOption) ValueAsString() string {
	if ro.def != nil && ro.def.IsSensitive() {
		return maskedValue
	}
	return formatValue(ro.Value)
}

// LogValue keeps sensitive values out of structured logs
func (ro ResolvedOption) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("key", ro.Key),
		slog.String("value", ro.ValueAsString()),
		slog.Uint64("version", ro.Version),
	}
	if ro.SourceName != "" {
		attrs = append(attrs, slog.String("source", ro.SourceName))
	}
	if ro.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", ro.ErrorMessage))
	}
	return slog.GroupValue(attrs...)
}

// sameState reports whether two entries carry the same observable state
func (ro *ResolvedOption) sameState(other *ResolvedOption) bool {
	if other == nil {
		return false
	}
	return ro.SourceName == other.SourceName &&
		ro.ErrorMessage == other.ErrorMessage &&
		formatValue(ro.Value) == formatValue(other.Value)
}

// snapshot is the immutable state readers load through one atomic pointer.
// Writers never modify a published snapshot; they build and swap a new one.
type snapshot struct {
	generation uint64
	sources    []Source
	resolved   map[string]*ResolvedOption
}

func (s *snapshot) source(name string) (Source, bool) {
	for _, src := range s.sources {
		if src.Name() == name {
			return src, true
		}
	}
	return nil, false
}
