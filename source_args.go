// FILE: lixenwraith/registry/source_args.go
package registry

import (
	"fmt"
	"strings"
)

// ArgsSource serves values passed on the command line as "--key=value",
// "--key value" or a bare "--flag" (meaning "true"). It is read-only.
type ArgsSource struct {
	readOnly
	values map[string]string
}

// NewArgsSource parses args, typically os.Args[1:]. Non-flag arguments are skipped.
func NewArgsSource(args []string) (*ArgsSource, error) {
	values, err := parseArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCLIParse, err)
	}
	return &ArgsSource{
		readOnly: readOnly{name: ArgsSourceName},
		values:   values,
	}, nil
}

func (a *ArgsSource) Name() string { return a.name }

func (a *ArgsSource) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

func (a *ArgsSource) Reload() error { return nil }

// Keys returns every key given on the command line
func (a *ArgsSource) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	return keys
}

// parseArgs processes command-line arguments into a flat key -> raw value map.
// A later occurrence of a key overrides an earlier one.
func parseArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			// Skip non-flag arguments
			i++
			continue
		}

		argContent := strings.TrimPrefix(arg, "--")
		if argContent == "" {
			// Everything after a bare "--" belongs to the application
			break
		}

		var keyPath, valueStr string

		if k, v, found := strings.Cut(argContent, "="); found {
			keyPath = k
			valueStr = v
			i++
		} else {
			keyPath = argContent
			// A flag followed by another flag or by nothing is a boolean switch
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		if err := validateKey(keyPath); err != nil {
			return nil, fmt.Errorf("invalid command-line key %q: %w", keyPath, err)
		}

		result[keyPath] = valueStr
	}

	return result, nil
}
