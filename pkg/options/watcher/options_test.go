package watcher

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pw "github.com/kart-io/pg-watcher/pkg/watcher"
)

func TestNewOptionsDefaults(t *testing.T) {
	o := NewOptions()

	assert.Equal(t, BackendPostgres, o.Backend)
	assert.Equal(t, "casbin_role_watcher", o.Channel)
	assert.True(t, o.StartListening)
	assert.Equal(t, 2*time.Second, o.StartupDelay)
	assert.Equal(t, 10*time.Second, o.RecreateDelay)
	assert.Empty(t, o.Validate())
}

func TestValidate(t *testing.T) {
	o := NewOptions()
	o.Backend = "kafka"
	o.Channel = ""
	o.PollTimeout = 0

	assert.Len(t, o.Validate(), 3)
}

func TestAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--watcher.backend=redis",
		"--watcher.channel=policies",
		"--watcher.recreate-delay=3s",
		"--watcher.start-listening=false",
	}))
	assert.Equal(t, BackendRedis, o.Backend)
	assert.Equal(t, "policies", o.Channel)
	assert.Equal(t, 3*time.Second, o.RecreateDelay)
	assert.False(t, o.StartListening)
}

func TestWatcherOptions(t *testing.T) {
	o := NewOptions()
	o.Channel = "policies"
	o.PollTimeout = 250 * time.Millisecond

	cfg := pw.DefaultConfig()
	for _, opt := range o.WatcherOptions() {
		opt(&cfg)
	}
	assert.Equal(t, "policies", cfg.Channel)
	assert.Equal(t, 250*time.Millisecond, cfg.PollTimeout)
	assert.Equal(t, 2*time.Second, cfg.StartupDelay)
}
