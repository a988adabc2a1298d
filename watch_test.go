// FILE: lixenwraith/registry/watch_test.go
package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
		return Change{}
	}
}

func TestWatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, _ := newServerRegistry(t, NewSimpleSource())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := r.Watch(ctx)
	assert.Equal(t, 1, r.WatcherCount())

	require.NoError(t, r.Save("server.port", "9090", TransientSourceName, ""))
	c := receive(t, changes)
	assert.Equal(t, "server.port", c.Key)
	assert.Equal(t, TransientSourceName, c.Source)
	assert.Equal(t, 8080, c.OldValue)
	assert.Equal(t, 9090, c.NewValue)
	assert.Equal(t, r.Version(), c.Version)

	t.Run("UnchangedValueIsSilent", func(t *testing.T) {
		require.NoError(t, r.Save("server.port", "9090", TransientSourceName, ""))
		require.NoError(t, r.Save("server.host", "example.com", TransientSourceName, ""))
		c := receive(t, changes)
		assert.Equal(t, "server.host", c.Key)
	})

	t.Run("SensitiveValuesWithheld", func(t *testing.T) {
		require.NoError(t, r.Save("auth.token", "secret", TransientSourceName, ""))
		c := receive(t, changes)
		assert.Equal(t, "auth.token", c.Key)
		assert.Nil(t, c.OldValue)
		assert.Nil(t, c.NewValue)
	})

	t.Run("ErrorsAreReported", func(t *testing.T) {
		override := NewNamedSimpleSource("override").Add("server.timeout", "soon")
		require.NoError(t, r.AddConfigurationSourceFirst(override))
		c := receive(t, changes)
		assert.Equal(t, "server.timeout", c.Key)
		assert.Equal(t, "Error in override: Can't convert 'soon' to Duration.", c.Error)
		assert.Equal(t, "", c.Source)
	})

	cancel()
	_, open := <-changes
	assert.False(t, open, "channel closes when the context ends")
	assert.Eventually(t, func() bool { return r.WatcherCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMaxWatchers(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := newServerProvider()
	r, err := New([]OptionProvider{p}, nil, "", WithLogger(discardLogger()), WithMaxWatchers(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Watch(ctx)
	r.Watch(ctx)
	assert.Equal(t, 2, r.WatcherCount())

	overflow := r.Watch(ctx)
	_, open := <-overflow
	assert.False(t, open, "subscriptions beyond the cap get a closed channel")
	assert.Equal(t, 2, r.WatcherCount())

	cancel()
	assert.Eventually(t, func() bool { return r.WatcherCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWatchDropsWhenBacklogFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, _ := newServerRegistry(t, NewSimpleSource())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := r.Watch(ctx)
	for i := range watchBufferSize + 5 {
		require.NoError(t, r.Save("server.port", fmt.Sprint(10000+i), TransientSourceName, ""))
	}

	received := 0
	for {
		select {
		case <-changes:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, watchBufferSize, received)

	port, _ := r.Int64("server.port")
	assert.Equal(t, int64(10000+watchBufferSize+4), port, "writers are never blocked")
}

func TestAutoReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "app.toml")
	writeFile(t, path, "[server]\nport = 8081\n")

	src, err := NewFileSource(path)
	require.NoError(t, err)
	r, p := newServerRegistry(t, src)
	require.Equal(t, 8081, p.port.Value())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := r.Watch(ctx)

	r.AutoReload(WatchOptions{PollInterval: MinPollInterval})
	assert.True(t, r.IsAutoReloading())

	writeFile(t, path, "[server]\nport = 18082\n")
	require.Eventually(t, func() bool {
		return p.port.Value() == 18082
	}, 3*time.Second, 20*time.Millisecond)

	c := receive(t, changes)
	assert.Equal(t, "server.port", c.Key)
	assert.Equal(t, 18082, c.NewValue)

	r.StopAutoReload()
	assert.False(t, r.IsAutoReloading())

	// Stopping twice is harmless
	r.Close()
}

func TestAutoReloadOptions(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, _ := newServerRegistry(t)

	r.AutoReload(WatchOptions{PollInterval: time.Millisecond})
	r.autoMu.Lock()
	first := r.auto
	opts := first.opts
	r.autoMu.Unlock()
	assert.Equal(t, MinPollInterval, opts.PollInterval)
	assert.Equal(t, DefaultReloadTimeout, opts.ReloadTimeout)

	r.AutoReload(DefaultWatchOptions())
	r.autoMu.Lock()
	second := r.auto
	r.autoMu.Unlock()
	assert.NotSame(t, first, second, "a second call replaces the loop")
	assert.False(t, first.running.Load())
	assert.Equal(t, DefaultPollInterval, second.opts.PollInterval)

	r.Close()
	assert.False(t, r.IsAutoReloading())
}

// slowSource blocks Reload until released
type slowSource struct {
	readOnly
	started  chan struct{}
	once     sync.Once
	release  chan struct{}
	returned atomic.Bool
}

func newSlowSource() *slowSource {
	return &slowSource{
		readOnly: readOnly{name: "Slow"},
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (s *slowSource) Name() string              { return s.name }
func (s *slowSource) Get(string) (string, bool) { return "", false }

func (s *slowSource) Reload() error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	s.returned.Store(true)
	return nil
}

func TestStopWaitsForTimedOutReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newSlowSource()
	r, _ := newServerRegistry(t, src)
	r.AutoReload(WatchOptions{PollInterval: MinPollInterval, ReloadTimeout: 10 * time.Millisecond})

	select {
	case <-src.started:
	case <-time.After(2 * time.Second):
		t.Fatal("reload never started")
	}
	// Let the pass time out while its source is still blocked
	time.Sleep(30 * time.Millisecond)

	go func() {
		time.Sleep(ShutdownTimeout / 4)
		close(src.release)
	}()
	r.Close()

	assert.True(t, src.returned.Load(), "Close returns after the in-flight reload")
	assert.False(t, r.IsAutoReloading())
}
