package pgwatcher

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/pg-watcher/pkg/app"
	logopts "github.com/kart-io/pg-watcher/pkg/options/logger"
	pgopts "github.com/kart-io/pg-watcher/pkg/options/postgres"
	redisopts "github.com/kart-io/pg-watcher/pkg/options/redis"
	watcheropts "github.com/kart-io/pg-watcher/pkg/options/watcher"
)

// PolicyOptions controls the casbin enforcer run by the agent.
type PolicyOptions struct {
	// Enabled loads policies from the casbin_rule table of the PostgreSQL
	// database and reloads them on every notification.
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ModelPath string `json:"model-path" mapstructure:"model-path"`
}

// AddFlags adds flags for policy options to the specified FlagSet.
func (o *PolicyOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "policy.enabled", o.Enabled, "Load casbin policies from PostgreSQL and reload them on change")
	fs.StringVar(&o.ModelPath, "policy.model-path", o.ModelPath, "Casbin model file (built-in RBAC model when empty)")
}

// Options contains all pg-watcher options.
type Options struct {
	Log      *logopts.Options     `json:"log" mapstructure:"log"`
	Watcher  *watcheropts.Options `json:"watcher" mapstructure:"watcher"`
	Postgres *pgopts.Options      `json:"postgres" mapstructure:"postgres"`
	Redis    *redisopts.Options   `json:"redis" mapstructure:"redis"`
	Policy   *PolicyOptions       `json:"policy" mapstructure:"policy"`
}

var _ app.CliOptions = (*Options)(nil)

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Log:      logopts.NewOptions(),
		Watcher:  watcheropts.NewOptions(),
		Postgres: pgopts.NewOptions(),
		Redis:    redisopts.NewOptions(),
		Policy:   &PolicyOptions{},
	}
}

// Flags returns the flags grouped by section.
func (o *Options) Flags() (fss app.NamedFlagSets) {
	o.Log.AddFlags(fss.FlagSet("log"))
	o.Watcher.AddFlags(fss.FlagSet("watcher"))
	o.Postgres.AddFlags(fss.FlagSet("postgres"))
	o.Redis.AddFlags(fss.FlagSet("redis"))
	o.Policy.AddFlags(fss.FlagSet("policy"))
	return fss
}

// Complete completes the options.
func (o *Options) Complete() error {
	return nil
}

// Validate validates the options. Backend options are only checked when
// that backend is in use.
func (o *Options) Validate() error {
	if err := o.Log.Validate(); err != nil {
		return err
	}

	errs := o.Watcher.Validate()
	if o.Watcher.Backend == watcheropts.BackendPostgres || o.Policy.Enabled {
		errs = append(errs, o.Postgres.Validate()...)
	}
	if o.Watcher.Backend == watcheropts.BackendRedis {
		errs = append(errs, o.Redis.Validate()...)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid options: %w", errors.Join(errs...))
	}
	return nil
}
