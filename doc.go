// File: lixenwraith/registry/doc.go

// Package registry provides a runtime configuration registry: typed options
// contributed by providers, resolved against an ordered list of sources, and
// updated at runtime through an authenticated save pipeline.
//
// Features:
//   - Ordered sources: first source holding a valid value wins
//   - Per-key resolution errors that never affect other keys
//   - Lock-free reads from an atomically published snapshot
//   - Save with password, dynamicity and source writability checks
//   - Sources for memory, environment, command line, TOML/YAML/JSON files,
//     .properties files and koanf providers
//   - Change subscriptions and periodic reloading
//   - Struct scanning with mapstructure
//
// Quick Start:
//
//	type Server struct {
//	    Port *registry.Option[int]
//	}
//
//	func (s *Server) Name() string { return "server" }
//	func (s *Server) Options() []registry.Definition {
//	    return []registry.Definition{s.Port}
//	}
//
//	srv := &Server{Port: registry.IntOption("server.port", 8080, registry.Dynamic())}
//
//	reg, err := registry.NewBuilder().
//	    WithProviders(srv).
//	    WithTransientSource().
//	    WithArgs(os.Args[1:]).
//	    WithEnvPrefix("MYAPP_").
//	    WithFile("config.toml").
//	    Build()
//	if err != nil && !errors.Is(err, registry.ErrConfigNotFound) {
//	    log.Fatal(err)
//	}
//
//	port := srv.Port.Value()
//
// Precedence follows the order sources are added. Above, a value saved to the
// transient source overrides --server.port=9090, which overrides
// MYAPP_SERVER_PORT=9090, which overrides the file.
//
// Runtime updates:
//
//	err := reg.Save("server.port", "9090", registry.TransientSourceName, password)
//	var se *registry.SaveError
//	if errors.As(err, &se) {
//	    // se.Error() is safe to show to an operator verbatim
//	}
//
// Thread Safety:
// Reads never lock. Save, reloads and source changes are serialized and each
// publishes a new immutable snapshot.
package registry
