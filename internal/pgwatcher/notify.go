package pgwatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pg-watcher/pkg/app"
	logopts "github.com/kart-io/pg-watcher/pkg/options/logger"
	pgopts "github.com/kart-io/pg-watcher/pkg/options/postgres"
	redisopts "github.com/kart-io/pg-watcher/pkg/options/redis"
	watcheropts "github.com/kart-io/pg-watcher/pkg/options/watcher"
	"github.com/kart-io/pg-watcher/pkg/watcher"
)

const notifyDescription = `Publish a single policy update notification and exit.

Every watcher listening on the channel reports a pending reload.

Examples:
  # Notify over PostgreSQL
  pg-watcher notify --postgres.host=db --postgres.password=secret

  # Notify a custom channel over Redis
  pg-watcher notify --watcher.backend=redis --watcher.channel=policies`

// NotifyOptions contains the options of the notify command.
type NotifyOptions struct {
	Log      *logopts.Options     `json:"log" mapstructure:"log"`
	Watcher  *watcheropts.Options `json:"watcher" mapstructure:"watcher"`
	Postgres *pgopts.Options      `json:"postgres" mapstructure:"postgres"`
	Redis    *redisopts.Options   `json:"redis" mapstructure:"redis"`
	Timeout  time.Duration        `json:"timeout" mapstructure:"timeout"`
}

var _ app.CliOptions = (*NotifyOptions)(nil)

// NewNotifyOptions creates new NotifyOptions with defaults.
func NewNotifyOptions() *NotifyOptions {
	return &NotifyOptions{
		Log:      logopts.NewOptions(),
		Watcher:  watcheropts.NewOptions(),
		Postgres: pgopts.NewOptions(),
		Redis:    redisopts.NewOptions(),
		Timeout:  10 * time.Second,
	}
}

// Flags returns the flags grouped by section.
func (o *NotifyOptions) Flags() (fss app.NamedFlagSets) {
	o.Log.AddFlags(fss.FlagSet("log"))
	o.Watcher.AddFlags(fss.FlagSet("watcher"))
	o.Postgres.AddFlags(fss.FlagSet("postgres"))
	o.Redis.AddFlags(fss.FlagSet("redis"))
	addTimeoutFlag(fss.FlagSet("notify"), &o.Timeout)
	return fss
}

func addTimeoutFlag(fs *pflag.FlagSet, d *time.Duration) {
	fs.DurationVar(d, "timeout", *d, "Upper bound for connecting and publishing")
}

// Complete completes the options.
func (o *NotifyOptions) Complete() error {
	return nil
}

// Validate validates the options.
func (o *NotifyOptions) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}

	errs := o.Watcher.Validate()
	switch o.Watcher.Backend {
	case watcheropts.BackendPostgres:
		errs = append(errs, o.Postgres.Validate()...)
	case watcheropts.BackendRedis:
		errs = append(errs, o.Redis.Validate()...)
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid options: %w", errors.Join(errs...))
	}
	return nil
}

// Notify publishes one policy update on the configured channel.
func Notify(ctx context.Context, opts *NotifyOptions) error {
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	driver, err := NewDriver(opts.Watcher.Backend, opts.Postgres, opts.Redis)
	if err != nil {
		return err
	}

	// the publisher never needs a subscriber
	w, err := watcher.New(driver,
		watcher.WithChannel(opts.Watcher.Channel),
		watcher.WithStartListening(false),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	return w.UpdateContext(ctx)
}
