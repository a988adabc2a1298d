// FILE: lixenwraith/registry/source_env.go
package registry

import (
	"os"
	"strings"
)

// EnvTransformFunc converts an option key to an environment variable name
type EnvTransformFunc func(key string) string

// EnvSource reads option values from environment variables. It is read-only.
// The environment is consulted on every Get, so a registry reload picks up
// variables changed with os.Setenv.
type EnvSource struct {
	readOnly
	transform EnvTransformFunc
	lookup    func(string) (string, bool)
}

// NewEnvSource maps "server.port" to PREFIX + "SERVER_PORT"
func NewEnvSource(prefix string) *EnvSource {
	return NewEnvSourceWithTransform(defaultEnvTransform(prefix))
}

// NewEnvSourceWithTransform uses a custom key to variable mapping
func NewEnvSourceWithTransform(transform EnvTransformFunc) *EnvSource {
	if transform == nil {
		transform = defaultEnvTransform("")
	}
	return &EnvSource{
		readOnly:  readOnly{name: EnvSourceName},
		transform: transform,
		lookup:    os.LookupEnv,
	}
}

func (e *EnvSource) Name() string { return e.name }

func (e *EnvSource) Get(key string) (string, bool) {
	return e.lookup(e.transform(key))
}

func (e *EnvSource) Reload() error { return nil }

// VariableName returns the environment variable consulted for key
func (e *EnvSource) VariableName(key string) string {
	return e.transform(key)
}

// Discover returns key -> variable name for every key whose variable is set
func (e *EnvSource) Discover(keys ...string) map[string]string {
	discovered := make(map[string]string)
	for _, key := range keys {
		envVar := e.transform(key)
		if _, exists := e.lookup(envVar); exists {
			discovered[key] = envVar
		}
	}
	return discovered
}

// defaultEnvTransform creates the default environment variable transformer
func defaultEnvTransform(prefix string) EnvTransformFunc {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return func(key string) string {
		env := strings.ToUpper(replacer.Replace(key))
		if prefix != "" {
			env = prefix + env
		}
		return env
	}
}
