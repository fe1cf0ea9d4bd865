// Package postgres defines connection options for the PostgreSQL server that
// carries both the policy tables and the notification channel.
package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/pflag"

	"github.com/kart-io/pg-watcher/pkg/options"
)

// Options defines configuration options for PostgreSQL.
type Options struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	// TLS parameters are passed through verbatim to the driver.
	SSLMode     string `json:"ssl-mode" mapstructure:"ssl-mode"`
	SSLRootCert string `json:"ssl-root-cert" mapstructure:"ssl-root-cert"`
	SSLCert     string `json:"ssl-cert" mapstructure:"ssl-cert"`
	SSLKey      string `json:"ssl-key" mapstructure:"ssl-key"`

	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`

	// Pool settings only apply to the gorm policy store connection.
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                  "127.0.0.1",
		Port:                  5432,
		Username:              "postgres",
		Database:              "postgres",
		ConnectTimeout:        10 * time.Second,
		MaxIdleConnections:    2,
		MaxOpenConnections:    10,
		MaxConnectionLifeTime: 10 * time.Minute,
	}
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("postgres.host is required"))
	}
	if o.Port <= 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("postgres.port %d out of range", o.Port))
	}
	if o.Username == "" {
		errs = append(errs, fmt.Errorf("postgres.username is required"))
	}
	if o.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("postgres.connect-timeout must not be negative"))
	}
	return errs
}

// AddFlags adds flags for PostgreSQL options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "postgres")...)

	fs.StringVar(&o.Host, p+"host", o.Host, "PostgreSQL host")
	fs.IntVar(&o.Port, p+"port", o.Port, "PostgreSQL port")
	fs.StringVar(&o.Username, p+"username", o.Username, "PostgreSQL username")
	fs.StringVar(&o.Password, p+"password", o.Password, "PostgreSQL password")
	fs.StringVar(&o.Database, p+"database", o.Database, "PostgreSQL database")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL SSL mode (disable|allow|prefer|require|verify-ca|verify-full)")
	fs.StringVar(&o.SSLRootCert, p+"ssl-root-cert", o.SSLRootCert, "Path to the root certificate used to verify the server")
	fs.StringVar(&o.SSLCert, p+"ssl-cert", o.SSLCert, "Path to the client certificate")
	fs.StringVar(&o.SSLKey, p+"ssl-key", o.SSLKey, "Path to the client certificate key")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "PostgreSQL connect timeout")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Policy store max idle connections")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Policy store max open connections")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Policy store max connection life time")
}

// DSN returns the connection URL understood by pgx and the gorm postgres driver.
func (o *Options) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(o.Username, o.Password),
		Host:   net.JoinHostPort(o.Host, strconv.Itoa(o.Port)),
		Path:   "/" + o.Database,
	}

	q := url.Values{}
	if o.SSLMode != "" {
		q.Set("sslmode", o.SSLMode)
	}
	if o.SSLRootCert != "" {
		q.Set("sslrootcert", o.SSLRootCert)
	}
	if o.SSLCert != "" {
		q.Set("sslcert", o.SSLCert)
	}
	if o.SSLKey != "" {
		q.Set("sslkey", o.SSLKey)
	}
	if o.ConnectTimeout > 0 {
		// connect_timeout is whole seconds; round up so 500ms does not become "no timeout".
		secs := int((o.ConnectTimeout + time.Second - 1) / time.Second)
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// ConnConfig parses the options into a pgx connection config.
func (o *Options) ConnConfig() (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(o.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	return cfg, nil
}

// String returns a loggable description of the target without credentials.
func (o *Options) String() string {
	return fmt.Sprintf("postgres://%s@%s/%s", o.Username, net.JoinHostPort(o.Host, strconv.Itoa(o.Port)), o.Database)
}
