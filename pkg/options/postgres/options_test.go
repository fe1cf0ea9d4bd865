package postgres

import (
	"net/url"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptionsDefaults(t *testing.T) {
	o := NewOptions()

	assert.Equal(t, 5432, o.Port)
	assert.Equal(t, "postgres", o.Database)
	assert.Empty(t, o.SSLMode)
	assert.Empty(t, o.Validate())
}

func TestValidate(t *testing.T) {
	o := NewOptions()
	o.Host = ""
	o.Port = 70000

	errs := o.Validate()
	assert.Len(t, errs, 2)
}

func TestDSNPassesTLSThrough(t *testing.T) {
	o := NewOptions()
	o.Password = "p@ss:word/"
	o.SSLMode = "verify-full"
	o.SSLRootCert = "/etc/ssl/root.crt"
	o.SSLCert = "/etc/ssl/client.crt"
	o.SSLKey = "/etc/ssl/client.key"
	o.ConnectTimeout = 1500 * time.Millisecond

	u, err := url.Parse(o.DSN())
	require.NoError(t, err)

	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:word/", pw)
	assert.Equal(t, "127.0.0.1:5432", u.Host)
	assert.Equal(t, "/postgres", u.Path)

	q := u.Query()
	assert.Equal(t, "verify-full", q.Get("sslmode"))
	assert.Equal(t, "/etc/ssl/root.crt", q.Get("sslrootcert"))
	assert.Equal(t, "/etc/ssl/client.crt", q.Get("sslcert"))
	assert.Equal(t, "/etc/ssl/client.key", q.Get("sslkey"))
	assert.Equal(t, "2", q.Get("connect_timeout"))
}

func TestConnConfig(t *testing.T) {
	o := NewOptions()
	o.Host = "db.internal"
	o.Port = 6543
	o.Username = "casbin"
	o.Password = "secret"
	o.Database = "policies"
	o.SSLMode = "disable"

	cfg, err := o.ConnConfig()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, uint16(6543), cfg.Port)
	assert.Equal(t, "casbin", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "policies", cfg.Database)
	assert.Nil(t, cfg.TLSConfig)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}

func TestAddFlagsWithPrefix(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "watcher")

	require.NoError(t, fs.Parse([]string{"--watcher.postgres.host=pg", "--watcher.postgres.ssl-mode=require"}))
	assert.Equal(t, "pg", o.Host)
	assert.Equal(t, "require", o.SSLMode)
}

func TestStringHidesPassword(t *testing.T) {
	o := NewOptions()
	o.Password = "secret"
	assert.NotContains(t, o.String(), "secret")
}
