// FILE: lixenwraith/registry/source_properties.go
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/magiconair/properties"
)

// PropertiesSource serves a Java-style .properties file ("key = value" lines,
// keys used verbatim). It is writable and persistent.
type PropertiesSource struct {
	path     string
	optional bool

	mu          sync.RWMutex
	props       *properties.Properties
	lastModTime time.Time
	lastSize    int64
}

// NewPropertiesSource loads path. With optional set, a missing file is
// treated as empty and created by the first Save.
func NewPropertiesSource(path string, optional bool) (*PropertiesSource, error) {
	p := &PropertiesSource{
		path:     path,
		optional: optional,
		props:    properties.NewProperties(),
	}
	p.props.DisableExpansion = true
	if err := p.load(); err != nil {
		if errors.Is(err, ErrConfigNotFound) && optional {
			return p, nil
		}
		return nil, err
	}
	return p, nil
}

func (p *PropertiesSource) Name() string { return p.path }

func (p *PropertiesSource) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.props.Get(key)
}

func (p *PropertiesSource) IsSavingPossible() bool   { return true }
func (p *PropertiesSource) IsSavingPersistent() bool { return true }

func (p *PropertiesSource) Save(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := properties.NewProperties()
	next.DisableExpansion = true
	next.Merge(p.props)
	if _, _, err := next.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s in %s: %w", key, p.path, err)
	}

	var buf bytes.Buffer
	if _, err := next.Write(&buf, properties.UTF8); err != nil {
		return fmt.Errorf("failed to encode %s: %w", p.path, err)
	}
	if err := atomicWriteFile(p.path, buf.Bytes()); err != nil {
		return err
	}

	p.props = next
	if info, err := os.Stat(p.path); err == nil {
		p.lastModTime = info.ModTime()
		p.lastSize = info.Size()
	}
	return nil
}

// Reload re-reads the file if its size or modification time changed
func (p *PropertiesSource) Reload() error {
	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && p.optional {
			return nil
		}
		return p.load()
	}

	p.mu.RLock()
	unchanged := info.ModTime().Equal(p.lastModTime) && info.Size() == p.lastSize
	p.mu.RUnlock()
	if unchanged {
		return nil
	}
	return p.load()
}

func (p *PropertiesSource) load() error {
	info, err := os.Stat(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, p.path)
		}
		return fmt.Errorf("failed to stat properties file '%s': %w", p.path, err)
	}

	// Values are served raw; ${...} expansion belongs to the option parsers
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to parse properties file '%s': %w", p.path, err)
	}

	p.mu.Lock()
	p.props = props
	p.lastModTime = info.ModTime()
	p.lastSize = info.Size()
	p.mu.Unlock()
	return nil
}
