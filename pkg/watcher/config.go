package watcher

import (
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"

	werrors "github.com/kart-io/pg-watcher/pkg/errors"
)

const (
	// DefaultChannel is the notification channel shared by all watchers of a
	// policy store.
	DefaultChannel = "casbin_role_watcher"
	// DefaultStartupDelay gives the backend a moment before the first connect.
	DefaultStartupDelay = 2 * time.Second
	// DefaultRecreateDelay is applied when a lost subscriber is restarted.
	DefaultRecreateDelay = 10 * time.Second
	// DefaultPollTimeout bounds each wait so the subscriber notices shutdown.
	DefaultPollTimeout = time.Second
)

// Config holds the watcher settings.
type Config struct {
	Channel string
	// StartListening starts the subscriber from New. When false it starts on
	// the first Start or SetUpdateCallback.
	StartListening bool
	StartupDelay   time.Duration
	RecreateDelay  time.Duration
	PollTimeout    time.Duration
	PipeBuffer     int
	Logger         core.Logger
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		Channel:        DefaultChannel,
		StartListening: true,
		StartupDelay:   DefaultStartupDelay,
		RecreateDelay:  DefaultRecreateDelay,
		PollTimeout:    DefaultPollTimeout,
		PipeBuffer:     DefaultPipeBuffer,
	}
}

// Validate checks the configuration and fills the logger when unset.
func (c *Config) Validate() error {
	if c.Channel == "" {
		return werrors.ErrWatcherConfig.WithMessage("channel must not be empty")
	}
	if c.StartupDelay < 0 || c.RecreateDelay < 0 {
		return werrors.ErrWatcherConfig.WithMessage("delays must not be negative")
	}
	if c.PollTimeout <= 0 {
		return werrors.ErrWatcherConfig.WithMessage(fmt.Sprintf("poll timeout must be positive, got %s", c.PollTimeout))
	}
	if c.PipeBuffer <= 0 {
		c.PipeBuffer = DefaultPipeBuffer
	}
	if c.Logger == nil {
		c.Logger = logger.Global()
	}
	return nil
}

// Option configures a Watcher.
type Option func(*Config)

// WithChannel sets the notification channel.
func WithChannel(channel string) Option {
	return func(c *Config) { c.Channel = channel }
}

// WithStartListening controls whether New starts the subscriber.
func WithStartListening(start bool) Option {
	return func(c *Config) { c.StartListening = start }
}

// WithStartupDelay sets the delay before the first subscriber connects.
func WithStartupDelay(d time.Duration) Option {
	return func(c *Config) { c.StartupDelay = d }
}

// WithRecreateDelay sets the delay before a lost subscriber reconnects.
func WithRecreateDelay(d time.Duration) Option {
	return func(c *Config) { c.RecreateDelay = d }
}

// WithPollTimeout sets how long the subscriber blocks per wait.
func WithPollTimeout(d time.Duration) Option {
	return func(c *Config) { c.PollTimeout = d }
}

// WithPipeBuffer sets the number of payloads buffered for the reader.
func WithPipeBuffer(n int) Option {
	return func(c *Config) { c.PipeBuffer = n }
}

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(l core.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
