// FILE: lixenwraith/registry/source_koanf.go
package registry

import (
	"fmt"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// KoanfLoader populates a fresh koanf instance, e.g. from a koanf provider/parser pair
type KoanfLoader func(k *koanf.Koanf) error

// KoanfSource adapts any koanf provider chain into a read-only source.
// Reload builds a new koanf instance through the loader and swaps it in
// atomically, so a failed reload keeps the previous data.
type KoanfSource struct {
	readOnly
	load KoanfLoader
	k    atomic.Pointer[koanf.Koanf]
}

// NewKoanfSource runs load once and fails if it does
func NewKoanfSource(name string, load KoanfLoader) (*KoanfSource, error) {
	if load == nil {
		return nil, fmt.Errorf("koanf source %q: nil loader", name)
	}
	s := &KoanfSource{
		readOnly: readOnly{name: name},
		load:     load,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// KoanfBytesLoader loads a YAML or JSON document held in memory
func KoanfBytesLoader(data []byte, format FileFormat) KoanfLoader {
	return func(k *koanf.Koanf) error {
		var parser koanf.Parser
		switch format {
		case FormatYAML:
			parser = yaml.Parser()
		case FormatJSON:
			parser = json.Parser()
		default:
			return fmt.Errorf("unsupported koanf format %q", format)
		}
		if len(data) == 0 {
			return nil
		}
		return k.Load(rawbytes.Provider(data), parser)
	}
}

func (s *KoanfSource) Name() string { return s.name }

// Get serves leaves only; a key naming a nested section is reported absent
func (s *KoanfSource) Get(key string) (string, bool) {
	k := s.k.Load()
	if k == nil || !k.Exists(key) {
		return "", false
	}
	v := k.Get(key)
	if _, isMap := v.(map[string]any); isMap {
		return "", false
	}
	return stringifyValue(v), true
}

func (s *KoanfSource) Reload() error {
	next := koanf.New(".")
	if err := s.load(next); err != nil {
		return fmt.Errorf("koanf source %q: %w", s.name, err)
	}
	s.k.Store(next)
	return nil
}

// Client returns the koanf instance currently served
func (s *KoanfSource) Client() *koanf.Koanf {
	return s.k.Load()
}
