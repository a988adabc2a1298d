// FILE: lixenwraith/registry/decode_test.go
package registry

import (
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// networkProvider covers the types the scan hooks convert
type networkProvider struct {
	opts []Definition
}

func newNetworkProvider() *networkProvider {
	return &networkProvider{opts: []Definition{
		IPOption("network.ip", net.ParseIP("127.0.0.1")),
		CIDROption("network.subnet", nil),
		URLOption("network.endpoint", nil),
		DurationOption("network.timeout", 30*time.Second),
		IntOption("network.retry.count", 3),
		DurationOption("network.retry.interval", time.Second),
		StringListOption("network.tags", []string{"default"}),
		StringOption("network.started", "2024-01-02T03:04:05Z"),
		StringOption("network.password", "", Sensitive()),
	}}
}

func (p *networkProvider) Name() string          { return "Network" }
func (p *networkProvider) Options() []Definition { return p.opts }

func newNetworkRegistry(t *testing.T, src Source) *Registry {
	t.Helper()
	r, err := New([]OptionProvider{newNetworkProvider()}, []Source{src}, "", WithLogger(discardLogger()))
	require.NoError(t, err)
	return r
}

// TestScanWithComplexTypes tests scanning with various complex types
func TestScanWithComplexTypes(t *testing.T) {
	type NetworkConfig struct {
		IP       net.IP        `toml:"ip"`
		IPNet    *net.IPNet    `toml:"subnet"`
		URL      *url.URL      `toml:"endpoint"`
		Timeout  time.Duration `toml:"timeout"`
		Tags     []string      `toml:"tags"`
		Started  time.Time     `toml:"started"`
		Password string        `toml:"password"`
		Retry    struct {
			Count    int           `toml:"count"`
			Interval time.Duration `toml:"interval"`
		} `toml:"retry"`
	}

	src := NewSimpleSource().
		Add("network.ip", "192.168.1.100").
		Add("network.subnet", "192.168.1.0/24").
		Add("network.endpoint", "https://api.example.com:8443/v1").
		Add("network.timeout", "2m30s").
		Add("network.retry.count", "5").
		Add("network.tags", "prod, staging,test").
		Add("network.password", "pw")
	r := newNetworkRegistry(t, src)

	var result NetworkConfig
	require.NoError(t, r.Scan("network", &result))

	assert.Equal(t, "192.168.1.100", result.IP.String())
	require.NotNil(t, result.IPNet)
	assert.Equal(t, "192.168.1.0/24", result.IPNet.String())
	require.NotNil(t, result.URL)
	assert.Equal(t, "https://api.example.com:8443/v1", result.URL.String())
	assert.Equal(t, 150*time.Second, result.Timeout)
	assert.Equal(t, 5, result.Retry.Count)
	assert.Equal(t, time.Second, result.Retry.Interval)
	assert.Equal(t, []string{"prod", "staging", "test"}, result.Tags)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), result.Started.UTC())
	assert.Equal(t, "pw", result.Password, "scan serves real values to the application")
}

// TestScanWithBasePath tests scanning nested sections and the whole tree
func TestScanWithBasePath(t *testing.T) {
	r := newNetworkRegistry(t, NewTestSource("network.retry.count", "7"))

	var retry struct {
		Count int `toml:"count"`
	}
	require.NoError(t, r.Scan("network.retry", &retry))
	assert.Equal(t, 7, retry.Count)

	// Trailing dot is tolerated
	retry.Count = 0
	require.NoError(t, r.Scan("network.retry.", &retry))
	assert.Equal(t, 7, retry.Count)

	var all struct {
		Network struct {
			Timeout time.Duration `toml:"timeout"`
		} `toml:"network"`
	}
	require.NoError(t, r.Scan("", &all))
	assert.Equal(t, 30*time.Second, all.Network.Timeout)
}

// TestInvalidScanTargets tests error handling for invalid targets and paths
func TestInvalidScanTargets(t *testing.T) {
	r := newNetworkRegistry(t, NewSimpleSource())

	var s struct{}
	assert.Error(t, r.Scan("network", s), "non-pointer")
	assert.Error(t, r.Scan("network", (*struct{})(nil)), "nil pointer")
	assert.Error(t, r.Scan("network.timeout", &s), "leaf path")

	// Unknown sections scan as empty
	var empty struct {
		Value string `toml:"value"`
	}
	require.NoError(t, r.Scan("does.not.exist", &empty))
}

// TestZeroFields tests that existing target state is replaced, not merged
func TestZeroFields(t *testing.T) {
	r := newNetworkRegistry(t, NewSimpleSource())

	result := struct {
		Tags  []string          `toml:"tags"`
		Extra map[string]string `toml:"retry"`
	}{
		Tags:  []string{"a", "b", "c", "d"},
		Extra: map[string]string{"stale": "value"},
	}

	require.NoError(t, r.Scan("network", &result))
	assert.Equal(t, []string{"default"}, result.Tags)
	assert.NotContains(t, result.Extra, "stale")
	assert.Equal(t, "3", result.Extra["count"])
}

func TestNavigateToPath(t *testing.T) {
	nested := map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": "leaf"},
		},
	}
	assert.Equal(t, "leaf", navigateToPath(nested, "a.b.c"))
	assert.Nil(t, navigateToPath(nested, "a.x"))
	assert.Nil(t, navigateToPath(nested, "a.b.c.d"))
	assert.Equal(t, nested, navigateToPath(nested, ""))
}
