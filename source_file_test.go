// FILE: lixenwraith/registry/source_file_test.go
package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFileSourceFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		format  FileFormat
	}{
		{
			name: "TOML",
			file: "app.toml",
			content: `
[server]
port = 9090
host = "example.com"

[limits]
rate = 2.5
tags = ["a", "b"]
`,
			format: FormatTOML,
		},
		{
			name: "YAML",
			file: "app.yaml",
			content: `
server:
  port: 9090
  host: example.com
limits:
  rate: 2.5
  tags: [a, b]
`,
			format: FormatYAML,
		},
		{
			name:    "JSON",
			file:    "app.json",
			content: `{"server": {"port": 9090, "host": "example.com"}, "limits": {"rate": 2.5, "tags": ["a", "b"]}}`,
			format:  FormatJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)

			src, err := NewFileSource(path)
			require.NoError(t, err)
			assert.Equal(t, path, src.Name())
			assert.Equal(t, tt.format, src.Format())
			assert.True(t, src.IsSavingPossible())
			assert.True(t, src.IsSavingPersistent())

			expected := map[string]string{
				"server.port": "9090",
				"server.host": "example.com",
				"limits.rate": "2.5",
				"limits.tags": "a,b",
			}
			for key, want := range expected {
				v, ok := src.Get(key)
				assert.True(t, ok, key)
				assert.Equal(t, want, v, key)
			}
			_, ok := src.Get("server")
			assert.False(t, ok, "sections are not values")
		})
	}
}

func TestFileSourceDetection(t *testing.T) {
	dir := t.TempDir()

	t.Run("ContentSniffing", func(t *testing.T) {
		jsonPath := filepath.Join(dir, "config")
		writeFile(t, jsonPath, `{"server": {"port": 1}}`)
		src, err := NewFileSource(jsonPath)
		require.NoError(t, err)
		assert.Equal(t, FormatJSON, src.Format())

		tomlPath := filepath.Join(dir, "config.conf")
		writeFile(t, tomlPath, "[server]\nport = 1\n")
		src, err = NewFileSource(tomlPath)
		require.NoError(t, err)
		assert.Equal(t, FormatTOML, src.Format())

		yamlPath := filepath.Join(dir, "config.cfg")
		writeFile(t, yamlPath, "server:\n  port: 1\n")
		src, err = NewFileSource(yamlPath)
		require.NoError(t, err)
		assert.Equal(t, FormatYAML, src.Format())
	})

	t.Run("ForcedFormat", func(t *testing.T) {
		path := filepath.Join(dir, "forced.txt")
		writeFile(t, path, "server:\n  port: 7\n")
		src, err := NewFileSource(path, WithFileFormat(FormatYAML))
		require.NoError(t, err)
		v, _ := src.Get("server.port")
		assert.Equal(t, "7", v)

		_, err = NewFileSource(path, WithFileFormat("ini"))
		assert.Error(t, err)
	})

	t.Run("ParseError", func(t *testing.T) {
		path := filepath.Join(dir, "broken.toml")
		writeFile(t, path, "[server\nport = ")
		_, err := NewFileSource(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TOML")
	})
}

func TestFileSourceMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	_, err := NewFileSource(path)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	src, err := NewFileSource(path, OptionalFile())
	require.NoError(t, err)
	_, ok := src.Get("server.port")
	assert.False(t, ok)
	assert.NoError(t, src.Reload())

	require.NoError(t, src.Save("server.port", "9090"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, toml.Unmarshal(data, &doc))
	assert.Equal(t, map[string]any{"server": map[string]any{"port": "9090"}}, doc)
}

func TestFileSourceSave(t *testing.T) {
	t.Run("PreservesOtherKeys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.yaml")
		writeFile(t, path, "server:\n  port: 8080\n  host: a.example.com\n")

		src, err := NewFileSource(path)
		require.NoError(t, err)
		require.NoError(t, src.Save("server.port", "9090"))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, yaml.Unmarshal(data, &doc))
		server := doc["server"].(map[string]any)
		assert.Equal(t, 9090, server["port"], "the saved leaf keeps its integer type")
		assert.Equal(t, "a.example.com", server["host"])

		// A fresh source sees the saved value
		reopened, err := NewFileSource(path)
		require.NoError(t, err)
		v, _ := reopened.Get("server.port")
		assert.Equal(t, "9090", v)
	})

	t.Run("OtherLeavesKeepTheirTypes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.toml")
		writeFile(t, path, `[monitor]
active = true
console = 5
ratio = 0.25
tags = ["a", "b"]

[monitor.internal]
monitoring = false
`)
		src, err := NewFileSource(path)
		require.NoError(t, err)
		require.NoError(t, src.Save("monitor.internal.monitoring", "true"))
		require.NoError(t, src.Save("monitor.application.name", "shop"))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, toml.Unmarshal(data, &doc))
		monitor := doc["monitor"].(map[string]any)
		assert.Equal(t, true, monitor["active"])
		assert.Equal(t, int64(5), monitor["console"])
		assert.Equal(t, 0.25, monitor["ratio"])
		assert.Equal(t, []any{"a", "b"}, monitor["tags"])
		assert.Equal(t, true, monitor["internal"].(map[string]any)["monitoring"])
		assert.Equal(t, "shop", monitor["application"].(map[string]any)["name"])

		v, _ := src.Get("monitor.internal.monitoring")
		assert.Equal(t, "true", v)
		v, _ = src.Get("monitor.tags")
		assert.Equal(t, "a,b", v)
	})

	t.Run("UnparsableValueStoredAsString", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.json")
		writeFile(t, path, `{"server": {"port": 8080, "debug": false}}`)
		src, err := NewFileSource(path)
		require.NoError(t, err)
		require.NoError(t, src.Save("server.debug", "maybe"))

		v, _ := src.Get("server.debug")
		assert.Equal(t, "maybe", v)

		reopened, err := NewFileSource(path)
		require.NoError(t, err)
		v, _ = reopened.Get("server.debug")
		assert.Equal(t, "maybe", v)
		v, _ = reopened.Get("server.port")
		assert.Equal(t, "8080", v)
	})

	t.Run("ConflictingPathsRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.toml")
		writeFile(t, path, "a = 1\n[server]\nport = 80\n")
		src, err := NewFileSource(path)
		require.NoError(t, err)
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		assert.Error(t, src.Save("a.b", "x"), "a is a leaf")
		assert.Error(t, src.Save("server", "x"), "server is a table")

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		v, _ := src.Get("a")
		assert.Equal(t, "1", v)
		_, ok := src.Get("a.b")
		assert.False(t, ok)
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "app.json")
		writeFile(t, path, `{}`)
		src, err := NewFileSource(path)
		require.NoError(t, err)
		require.NoError(t, src.Save("a.b", "c"))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "app.json", entries[0].Name())
	})

	t.Run("ReadOnly", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.toml")
		writeFile(t, path, "a = 1\n")
		src, err := NewFileSource(path, ReadOnlyFile())
		require.NoError(t, err)
		assert.False(t, src.IsSavingPossible())
		assert.ErrorIs(t, src.Save("a", "2"), ErrSaveNotSupported)
	})
}

func TestFileSourceReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	writeFile(t, path, "[server]\nport = 8080\n")

	src, err := NewFileSource(path)
	require.NoError(t, err)

	writeFile(t, path, "[server]\nport = 9090\nhost = \"h\"\n")
	// Size differs, modtime granularity does not matter
	require.NoError(t, src.Reload())
	v, _ := src.Get("server.port")
	assert.Equal(t, "9090", v)

	t.Run("BrokenFileKeepsPreviousValues", func(t *testing.T) {
		writeFile(t, path, "[server\n")
		future := time.Now().Add(time.Minute)
		require.NoError(t, os.Chtimes(path, future, future))
		assert.Error(t, src.Reload())
		v, _ := src.Get("server.port")
		assert.Equal(t, "9090", v)
	})

	t.Run("DeletedFile", func(t *testing.T) {
		require.NoError(t, os.Remove(path))
		assert.ErrorIs(t, src.Reload(), ErrConfigNotFound)
		v, _ := src.Get("server.port")
		assert.Equal(t, "9090", v)
	})
}

func TestFileSourceSecurity(t *testing.T) {
	t.Run("MaxFileSize", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "big.toml")
		writeFile(t, path, "a = \""+strings.Repeat("x", 200)+"\"\n")
		_, err := NewFileSource(path, WithSecurityOptions(SecurityOptions{MaxFileSize: 100}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum size")
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := NewFileSource("../../etc/app.toml", WithSecurityOptions(SecurityOptions{PreventPathTraversal: true}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path traversal")
	})
}

func TestRegistryOverFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.toml")
	writeFile(t, path, "[server]\nport = 9090\ndebug = \"maybe\"\n")

	src, err := NewFileSource(path)
	require.NoError(t, err)
	r, p := newServerRegistry(t, src)

	assert.Equal(t, 9090, p.port.Value())
	assert.False(t, p.debug.Value())

	ro, err := r.GetConfigurationOptionByKey("server.debug")
	require.NoError(t, err)
	assert.Equal(t, "Error in "+path+": Can't convert 'maybe' to Boolean.", ro.ErrorMessage)

	require.NoError(t, r.Save("server.debug", "true", path, ""))
	assert.True(t, p.debug.Value())

	ro, _ = r.GetConfigurationOptionByKey("server.debug")
	assert.False(t, ro.HasError())
}
