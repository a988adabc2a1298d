// FILE: lixenwraith/registry/source_file.go
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileFormat selects the encoding of a FileSource
type FileFormat string

const (
	FormatAuto FileFormat = "auto"
	FormatTOML FileFormat = "toml"
	FormatJSON FileFormat = "json"
	FormatYAML FileFormat = "yaml"
)

// SecurityOptions restricts which files a FileSource accepts
type SecurityOptions struct {
	// PreventPathTraversal rejects relative paths escaping the working directory
	PreventPathTraversal bool

	// MaxFileSize in bytes (0 = unlimited)
	MaxFileSize int64
}

// FileOption configures a FileSource
type FileOption func(*FileSource)

// WithFileFormat forces a format instead of detecting it
func WithFileFormat(format FileFormat) FileOption {
	return func(f *FileSource) { f.format = format }
}

// WithSecurityOptions applies file acceptance restrictions
func WithSecurityOptions(opts SecurityOptions) FileOption {
	return func(f *FileSource) { f.security = opts }
}

// ReadOnlyFile disables Save on the source
func ReadOnlyFile() FileOption {
	return func(f *FileSource) { f.readOnly = true }
}

// OptionalFile tolerates a missing file; the first Save creates it
func OptionalFile() FileOption {
	return func(f *FileSource) { f.optional = true }
}

// FileSource serves the leaves of a TOML, JSON or YAML document as dotted keys
// ("[server] port = 80" becomes "server.port" = "80"). Saving replaces one leaf
// of the decoded document and rewrites the file atomically; the other leaves
// keep their types.
type FileSource struct {
	path     string
	format   FileFormat
	security SecurityOptions
	readOnly bool
	optional bool

	mu          sync.RWMutex
	doc         map[string]any
	values      map[string]string
	detected    FileFormat
	lastModTime time.Time
	lastSize    int64
}

// NewFileSource loads path. A missing file yields ErrConfigNotFound unless OptionalFile is set.
func NewFileSource(path string, opts ...FileOption) (*FileSource, error) {
	f := &FileSource{
		path:   path,
		format: FormatAuto,
		doc:    make(map[string]any),
		values: make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}

	switch f.format {
	case FormatAuto, FormatTOML, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported file format %q", f.format)
	}

	if err := f.checkPath(); err != nil {
		return nil, err
	}

	if err := f.load(); err != nil {
		if errors.Is(err, ErrConfigNotFound) && f.optional {
			return f, nil
		}
		return nil, err
	}
	return f, nil
}

// Name is the file path
func (f *FileSource) Name() string { return f.path }

func (f *FileSource) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *FileSource) IsSavingPossible() bool   { return !f.readOnly }
func (f *FileSource) IsSavingPersistent() bool { return true }

// Format returns the format in use, detected on first load when FormatAuto
func (f *FileSource) Format() FileFormat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.detected
}

// Save sets key to value in the document and writes it back
func (f *FileSource) Save(key, value string) error {
	if f.readOnly {
		return fmt.Errorf("%w: %s is read-only", ErrSaveNotSupported, f.path)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := cloneDocument(f.doc)
	if err := setDocumentValue(next, key, value); err != nil {
		return fmt.Errorf("failed to set %s in %s: %w", key, f.path, err)
	}

	format := f.detected
	if format == "" {
		format = f.formatForWrite()
	}

	data, err := encodeDocument(next, format)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.path, err)
	}
	if err := atomicWriteFile(f.path, data); err != nil {
		return err
	}

	f.doc = next
	f.values = flattenMap(next, "")
	f.detected = format
	if info, err := os.Stat(f.path); err == nil {
		f.lastModTime = info.ModTime()
		f.lastSize = info.Size()
	}
	return nil
}

// Reload re-reads the file if its size or modification time changed
func (f *FileSource) Reload() error {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if f.optional {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrConfigNotFound, f.path)
		}
		return fmt.Errorf("failed to stat config file '%s': %w", f.path, err)
	}

	f.mu.RLock()
	unchanged := info.ModTime().Equal(f.lastModTime) && info.Size() == f.lastSize
	f.mu.RUnlock()
	if unchanged {
		return nil
	}
	return f.load()
}

func (f *FileSource) checkPath() error {
	if !f.security.PreventPathTraversal {
		return nil
	}
	cleanPath := filepath.Clean(f.path)
	if strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) || cleanPath == ".." {
		return fmt.Errorf("potential path traversal detected in config path: %s", f.path)
	}
	// Relative path became absolute after cleaning
	if filepath.IsAbs(cleanPath) && !filepath.IsAbs(f.path) {
		return fmt.Errorf("potential path traversal detected in config path: %s", f.path)
	}
	return nil
}

// load reads, parses and swaps in the file contents
func (f *FileSource) load() error {
	fileInfo, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, f.path)
		}
		return fmt.Errorf("failed to stat config file '%s': %w", f.path, err)
	}

	if f.security.MaxFileSize > 0 && fileInfo.Size() > f.security.MaxFileSize {
		return fmt.Errorf("config file '%s' exceeds maximum size %d bytes", f.path, f.security.MaxFileSize)
	}

	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open config file '%s': %w", f.path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if f.security.MaxFileSize > 0 {
		reader = io.LimitReader(file, f.security.MaxFileSize)
	}

	fileData, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", f.path, err)
	}

	format := f.format
	if format == FormatAuto {
		format = detectFileFormat(f.path)
		if format == "" {
			format = detectFormatFromContent(fileData)
		}
		if format == "" {
			return fmt.Errorf("unable to determine config format for file '%s'", f.path)
		}
	}

	doc, err := decodeDocument(fileData, format)
	if err != nil {
		return fmt.Errorf("failed to parse %s config file '%s': %w", strings.ToUpper(string(format)), f.path, err)
	}

	doc = cloneDocument(doc)
	values := flattenMap(doc, "")

	f.mu.Lock()
	f.doc = doc
	f.values = values
	f.detected = format
	f.lastModTime = fileInfo.ModTime()
	f.lastSize = fileInfo.Size()
	f.mu.Unlock()
	return nil
}

func (f *FileSource) formatForWrite() FileFormat {
	if f.format != FormatAuto {
		return f.format
	}
	if format := detectFileFormat(f.path); format != "" {
		return format
	}
	return FormatTOML
}

func decodeDocument(data []byte, format FileFormat) (map[string]any, error) {
	doc := make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber() // Preserve number precision
		if err := decoder.Decode(&doc); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported file format %q", format)
	}
	return doc, nil
}

func encodeDocument(doc map[string]any, format FileFormat) ([]byte, error) {
	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported file format %q", format)
	}
}

// detectFileFormat determines format from file extension
func detectFileFormat(path string) FileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing
func detectFormatFromContent(data []byte) FileFormat {
	// JSON first, it is the strictest
	var jsonTest map[string]any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return FormatJSON
	}

	// TOML before YAML: most TOML documents are not valid YAML mappings,
	// while "key: value" lines never parse as TOML
	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return FormatTOML
	}

	var yamlTest map[string]any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return FormatYAML
	}

	return ""
}

// atomicWriteFile writes data to a temp file in the target directory and renames it into place
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	removed := false
	defer func() {
		if !removed {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file '%s': %w", tempPath, err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file '%s': %w", tempPath, err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file '%s': %w", tempPath, err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions on '%s': %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file '%s' to '%s': %w", tempPath, path, err)
	}
	removed = true

	return nil
}
