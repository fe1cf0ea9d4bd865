// Package watcher defines the options of a policy watcher: which backend
// carries the notifications, the channel name and the subscriber timings.
package watcher

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pg-watcher/pkg/options"
	pw "github.com/kart-io/pg-watcher/pkg/watcher"
)

// Supported notification backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Options defines configuration options for the watcher.
type Options struct {
	Backend        string        `json:"backend" mapstructure:"backend"`
	Channel        string        `json:"channel" mapstructure:"channel"`
	StartListening bool          `json:"start-listening" mapstructure:"start-listening"`
	StartupDelay   time.Duration `json:"startup-delay" mapstructure:"startup-delay"`
	RecreateDelay  time.Duration `json:"recreate-delay" mapstructure:"recreate-delay"`
	PollTimeout    time.Duration `json:"poll-timeout" mapstructure:"poll-timeout"`
	// ReloadInterval is how often an enforcer checks ShouldReload.
	ReloadInterval time.Duration `json:"reload-interval" mapstructure:"reload-interval"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Backend:        BackendPostgres,
		Channel:        pw.DefaultChannel,
		StartListening: true,
		StartupDelay:   pw.DefaultStartupDelay,
		RecreateDelay:  pw.DefaultRecreateDelay,
		PollTimeout:    pw.DefaultPollTimeout,
		ReloadInterval: time.Second,
	}
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	var errs []error

	switch o.Backend {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("watcher.backend %q is not supported", o.Backend))
	}
	if o.Channel == "" {
		errs = append(errs, fmt.Errorf("watcher.channel is required"))
	}
	if o.StartupDelay < 0 {
		errs = append(errs, fmt.Errorf("watcher.startup-delay must not be negative"))
	}
	if o.RecreateDelay < 0 {
		errs = append(errs, fmt.Errorf("watcher.recreate-delay must not be negative"))
	}
	if o.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("watcher.poll-timeout must be positive"))
	}
	if o.ReloadInterval <= 0 {
		errs = append(errs, fmt.Errorf("watcher.reload-interval must be positive"))
	}
	return errs
}

// AddFlags adds flags for watcher options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "watcher")...)

	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Notification backend (postgres|redis|memory)")
	fs.StringVar(&o.Channel, p+"channel", o.Channel, "Notification channel shared by all watchers")
	fs.BoolVar(&o.StartListening, p+"start-listening", o.StartListening, "Start the subscriber when the watcher is created")
	fs.DurationVar(&o.StartupDelay, p+"startup-delay", o.StartupDelay, "Delay before the first subscriber connects")
	fs.DurationVar(&o.RecreateDelay, p+"recreate-delay", o.RecreateDelay, "Delay before a lost subscriber reconnects")
	fs.DurationVar(&o.PollTimeout, p+"poll-timeout", o.PollTimeout, "Upper bound of a single notification wait")
	fs.DurationVar(&o.ReloadInterval, p+"reload-interval", o.ReloadInterval, "How often the enforcer checks for policy updates")
}

// WatcherOptions converts the options into watcher functional options.
func (o *Options) WatcherOptions() []pw.Option {
	return []pw.Option{
		pw.WithChannel(o.Channel),
		pw.WithStartListening(o.StartListening),
		pw.WithStartupDelay(o.StartupDelay),
		pw.WithRecreateDelay(o.RecreateDelay),
		pw.WithPollTimeout(o.PollTimeout),
	}
}
