// File: lixenwraith/registry/option.go
package registry

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"
	"sync/atomic"
	"time"
)

// Definition is the type-erased view of an Option the registry stores in its
// flat key table. It can only be implemented by *Option[T].
type Definition interface {
	Key() string
	Label() string
	Description() string
	Category() string
	Tags() []string
	IsDynamic() bool
	IsSensitive() bool
	DefaultValue() any
	ValueType() string

	// Validate reports whether raw parses under this option's type
	Validate(raw string) error

	parse(raw string) (any, error)
	bind(r *Registry, category string) error
	unbind(r *Registry)
}

// OptionSetting configures metadata of an option at declaration time
type OptionSetting func(*optionMeta)

type optionMeta struct {
	label       string
	description string
	tags        []string
	dynamic     bool
	sensitive   bool
}

// WithLabel sets a short human-readable name
func WithLabel(label string) OptionSetting {
	return func(m *optionMeta) { m.label = label }
}

// WithDescription sets documentation shown in admin listings
func WithDescription(description string) OptionSetting {
	return func(m *optionMeta) { m.description = description }
}

// WithTags attaches free-form tags used for grouping
func WithTags(tags ...string) OptionSetting {
	return func(m *optionMeta) { m.tags = append(m.tags, tags...) }
}

// Dynamic marks an option that may change at runtime without a restart.
// Non-dynamic options can only be saved to persistent sources.
func Dynamic() OptionSetting {
	return func(m *optionMeta) { m.dynamic = true }
}

// Sensitive marks an option whose value must never appear in logs or errors
func Sensitive() OptionSetting {
	return func(m *optionMeta) { m.sensitive = true }
}

// Option declares one configuration key with a typed default and a parser.
// Options are immutable once their provider is handed to a Registry.
type Option[T any] struct {
	optionMeta
	key          string
	defaultValue T
	parseFn      ParseFunc[T]
	category     string
	registry     atomic.Pointer[Registry]
}

// NewOption declares an option of arbitrary type T
func NewOption[T any](key string, defaultValue T, parse ParseFunc[T], settings ...OptionSetting) *Option[T] {
	o := &Option[T]{
		key:          key,
		defaultValue: defaultValue,
		parseFn:      parse,
	}
	for _, s := range settings {
		s(&o.optionMeta)
	}
	if o.label == "" {
		o.label = key
	}
	return o
}

func BoolOption(key string, defaultValue bool, settings ...OptionSetting) *Option[bool] {
	return NewOption(key, defaultValue, ParseBool, settings...)
}

func IntOption(key string, defaultValue int, settings ...OptionSetting) *Option[int] {
	return NewOption(key, defaultValue, ParseInt, settings...)
}

func Int64Option(key string, defaultValue int64, settings ...OptionSetting) *Option[int64] {
	return NewOption(key, defaultValue, ParseInt64, settings...)
}

func FloatOption(key string, defaultValue float64, settings ...OptionSetting) *Option[float64] {
	return NewOption(key, defaultValue, ParseFloat, settings...)
}

func DurationOption(key string, defaultValue time.Duration, settings ...OptionSetting) *Option[time.Duration] {
	return NewOption(key, defaultValue, ParseDuration, settings...)
}

func StringOption(key string, defaultValue string, settings ...OptionSetting) *Option[string] {
	return NewOption(key, defaultValue, ParseString, settings...)
}

func StringListOption(key string, defaultValue []string, settings ...OptionSetting) *Option[[]string] {
	return NewOption(key, defaultValue, ParseStringList, settings...)
}

func URLOption(key string, defaultValue *url.URL, settings ...OptionSetting) *Option[*url.URL] {
	return NewOption(key, defaultValue, ParseURL, settings...)
}

func URLListOption(key string, defaultValue []*url.URL, settings ...OptionSetting) *Option[[]*url.URL] {
	return NewOption(key, defaultValue, ParseURLList, settings...)
}

func IPOption(key string, defaultValue net.IP, settings ...OptionSetting) *Option[net.IP] {
	return NewOption(key, defaultValue, ParseIP, settings...)
}

func CIDROption(key string, defaultValue *net.IPNet, settings ...OptionSetting) *Option[*net.IPNet] {
	return NewOption(key, defaultValue, ParseCIDR, settings...)
}

// EnumOption accepts only the listed values
func EnumOption(key string, defaultValue string, allowed []string, settings ...OptionSetting) *Option[string] {
	return NewOption(key, defaultValue, EnumParser(allowed...), settings...)
}

func (o *Option[T]) Key() string         { return o.key }
func (o *Option[T]) Label() string       { return o.label }
func (o *Option[T]) Description() string { return o.description }
func (o *Option[T]) Category() string    { return o.category }
func (o *Option[T]) IsDynamic() bool     { return o.dynamic }
func (o *Option[T]) IsSensitive() bool   { return o.sensitive }
func (o *Option[T]) DefaultValue() any   { return o.defaultValue }

func (o *Option[T]) Tags() []string {
	return append([]string(nil), o.tags...)
}

// ValueType returns the Go type name of T
func (o *Option[T]) ValueType() string {
	return reflect.TypeFor[T]().String()
}

// Value returns the value currently served by the registry the option is
// bound to, or the default when it is not bound yet.
func (o *Option[T]) Value() T {
	ro, ok := o.Resolved()
	if !ok {
		return o.defaultValue
	}
	v, ok := ro.Value.(T)
	if !ok {
		return o.defaultValue
	}
	return v
}

// Resolved returns the full resolution state of this option
func (o *Option[T]) Resolved() (ResolvedOption, bool) {
	r := o.registry.Load()
	if r == nil {
		return ResolvedOption{}, false
	}
	ro, ok := r.current().resolved[o.key]
	if !ok {
		return ResolvedOption{}, false
	}
	return *ro, true
}

// Validate parses raw and discards the result
func (o *Option[T]) Validate(raw string) error {
	_, err := o.parse(raw)
	return err
}

func (o *Option[T]) parse(raw string) (any, error) {
	if o.parseFn == nil {
		return nil, fmt.Errorf("option %q has no parser", o.key)
	}
	v, err := o.parseFn(raw)
	if err != nil {
		var ce *ConversionError
		if !errors.As(err, &ce) {
			ce = convErr(raw, o.ValueType(), err)
		}
		if o.sensitive {
			// Never let the raw secret escape through the message or the cause
			ce = &ConversionError{Value: maskedValue, Target: ce.Target}
		}
		return nil, ce
	}
	return v, nil
}

func (o *Option[T]) bind(r *Registry, category string) error {
	if !o.registry.CompareAndSwap(nil, r) && o.registry.Load() != r {
		return fmt.Errorf("option %q is already bound to another registry", o.key)
	}
	o.category = category
	return nil
}

// unbind releases the option if r holds it
func (o *Option[T]) unbind(r *Registry) {
	if o.registry.CompareAndSwap(r, nil) {
		o.category = ""
	}
}

// formatValue renders a typed value the way sources spell it
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case []*url.URL:
		parts := make([]string, 0, len(val))
		for _, u := range val {
			parts = append(parts, u.String())
		}
		return strings.Join(parts, ",")
	case net.IP:
		if val == nil {
			return ""
		}
		return val.String()
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return ""
		}
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}
