// FILE: lixenwraith/registry/timing.go
package registry

import "time"

// Timing of periodic reloads, ordered by magnitude
const (
	ShutdownTimeout      = 100 * time.Millisecond // Grace period for the reload loop to exit
	MinPollInterval      = 100 * time.Millisecond // Hard floor for reload polling
	DefaultReloadTimeout = 5 * time.Second        // Maximum duration of one reload pass
	DefaultPollInterval  = 60 * time.Second       // Standard reload frequency
)

// Subscriber limits
const (
	DefaultMaxWatchers = 100 // Prevent resource exhaustion
	watchBufferSize    = 10  // Per-subscriber backlog before changes are dropped
)
