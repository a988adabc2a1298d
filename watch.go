// FILE: lixenwraith/registry/watch.go
package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Change describes one option whose served state changed in a published snapshot.
// Values are nil for sensitive options.
type Change struct {
	Key      string
	Source   string // source now serving the value, empty for the default
	OldValue any
	NewValue any
	Error    string // resolution error now attached to the option, if any
	Version  uint64
}

func newChange(old, ro *ResolvedOption) Change {
	c := Change{
		Key:     ro.Key,
		Source:  ro.SourceName,
		Error:   ro.ErrorMessage,
		Version: ro.Version,
	}
	if ro.def != nil && ro.def.IsSensitive() {
		return c
	}
	c.NewValue = ro.Value
	if old != nil {
		c.OldValue = old.Value
	}
	return c
}

// Watch subscribes to option changes until ctx ends, at which point the channel
// is closed. Slow subscribers miss changes rather than block writers. Once
// MaxWatchers subscriptions are active, Watch returns a closed channel.
func (r *Registry) Watch(ctx context.Context) <-chan Change {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	if len(r.subs) >= r.maxWatchers {
		ch := make(chan Change)
		close(ch)
		return ch
	}

	ch := make(chan Change, watchBufferSize)
	id := r.subID.Add(1)
	r.subs[id] = ch

	go func() {
		<-ctx.Done()
		r.subMu.Lock()
		delete(r.subs, id)
		close(ch)
		r.subMu.Unlock()
	}()

	return ch
}

// WatcherCount returns the number of active subscriptions
func (r *Registry) WatcherCount() int {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	return len(r.subs)
}

// notify fans changes out without blocking
func (r *Registry) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	for _, ch := range r.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
				// Subscriber backlog full, drop
			}
		}
	}
}

// WatchOptions configures periodic reloading
type WatchOptions struct {
	// PollInterval between reloads (minimum MinPollInterval)
	PollInterval time.Duration

	// ReloadTimeout bounds how long one reload pass is waited for
	ReloadTimeout time.Duration
}

// DefaultWatchOptions returns sensible defaults for periodic reloading
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		PollInterval:  DefaultPollInterval,
		ReloadTimeout: DefaultReloadTimeout,
	}
}

// autoReloader drives ReloadAllConfigurationOptions on a ticker
type autoReloader struct {
	ctx              context.Context
	cancel           context.CancelFunc
	opts             WatchOptions
	running          atomic.Bool
	reloadInProgress atomic.Bool
	inflight         sync.WaitGroup
	done             chan struct{}
}

// AutoReload starts reloading all sources every opts.PollInterval. Calling it
// again replaces the running loop with one using the new options.
func (r *Registry) AutoReload(opts WatchOptions) {
	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}

	r.autoMu.Lock()
	defer r.autoMu.Unlock()

	if r.auto != nil {
		r.auto.stop()
		r.auto = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &autoReloader{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		done:   make(chan struct{}),
	}
	r.auto = a
	a.running.Store(true)
	go a.loop(r)

	r.logger.Debug("Started periodic configuration reload", "interval", opts.PollInterval)
}

// StopAutoReload stops periodic reloading, if running
func (r *Registry) StopAutoReload() {
	r.autoMu.Lock()
	defer r.autoMu.Unlock()

	if r.auto != nil {
		r.auto.stop()
		r.auto = nil
	}
}

// IsAutoReloading reports whether periodic reloading is active
func (r *Registry) IsAutoReloading() bool {
	r.autoMu.Lock()
	defer r.autoMu.Unlock()
	return r.auto != nil && r.auto.running.Load()
}

// Close stops periodic reloading, waiting up to ShutdownTimeout for the loop
// and any reload pass in flight. A pass that outlives the grace period keeps
// running in the background until its sources return.
// Watch subscriptions end with their contexts.
func (r *Registry) Close() {
	r.StopAutoReload()
}

func (a *autoReloader) loop(r *Registry) {
	defer close(a.done)
	defer a.running.Store(false)

	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.reload(r)
		}
	}
}

// reload runs one pass, skipping if the previous one is still in flight
func (a *autoReloader) reload(r *Registry) {
	if !a.reloadInProgress.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, a.opts.ReloadTimeout)
	defer cancel()

	done := make(chan error, 1)
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		defer a.reloadInProgress.Store(false)
		done <- r.ReloadAllConfigurationOptions()
	}()

	select {
	case <-done:
		// failures were already logged per source
	case <-ctx.Done():
		if a.ctx.Err() == nil {
			r.logger.Warn("Configuration reload timed out", "timeout", a.opts.ReloadTimeout)
		}
	}
}

// stop cancels the loop and waits briefly for it and a timed-out reload pass
// to finish
func (a *autoReloader) stop() {
	a.cancel()

	finished := make(chan struct{})
	go func() {
		<-a.done
		a.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(ShutdownTimeout):
	}
}
