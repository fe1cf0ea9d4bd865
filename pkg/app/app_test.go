package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Name     string `mapstructure:"name"`
	Port     int    `mapstructure:"port"`
	Channel  string `mapstructure:"channel"`
	invalid  bool
	complete bool
}

func (o *testOptions) Flags() (fss NamedFlagSets) {
	fs := fss.FlagSet("test")
	fs.StringVar(&o.Name, "name", o.Name, "name")
	fs.IntVar(&o.Port, "port", o.Port, "port")
	fs.StringVar(&o.Channel, "channel", o.Channel, "channel")
	return fss
}

func (o *testOptions) Complete() error {
	o.complete = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid options")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigPrecedence(t *testing.T) {
	path := writeConfig(t, "name: from-file\nport: 1\nchannel: ${TEST_APP_CHANNEL}\n")
	t.Setenv("TEST_APP_PORT", "2")
	t.Setenv("TEST_APP_CHANNEL", "policies")

	opts := &testOptions{Name: "default", Port: 0}
	var ran bool
	a := NewApp(
		WithName("test-app"),
		WithOptions(opts),
		WithRunFunc(func(context.Context, []string) error {
			ran = true
			return nil
		}),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"-c", path, "--name=from-flag"})
	require.NoError(t, cmd.Execute())

	assert.True(t, ran)
	assert.True(t, opts.complete)
	assert.Equal(t, "from-flag", opts.Name)
	assert.Equal(t, 2, opts.Port)
	assert.Equal(t, "policies", opts.Channel)
}

func TestEnvWithoutConfigFile(t *testing.T) {
	t.Setenv("CUSTOM_NAME", "from-env")

	opts := &testOptions{}
	a := NewApp(WithName("test-app"), WithEnvPrefix("CUSTOM"), WithOptions(opts))

	cmd := a.Command()
	cmd.SetArgs([]string{"-c", writeConfig(t, "port: 7\n")})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "from-env", opts.Name)
	assert.Equal(t, 7, opts.Port)
}

func TestValidateError(t *testing.T) {
	opts := &testOptions{invalid: true}
	a := NewApp(WithName("test-app"), WithOptions(opts), WithNoConfig(), WithSilence())

	cmd := a.Command()
	cmd.SetArgs(nil)
	assert.EqualError(t, cmd.Execute(), "invalid options")
}

func TestSubApps(t *testing.T) {
	var got []string
	sub := NewApp(
		WithName("notify"),
		WithNoConfig(),
		WithNoVersion(),
		WithRunFunc(func(_ context.Context, args []string) error {
			got = args
			return nil
		}),
	)
	root := NewApp(WithName("root"), WithNoConfig(), WithSubApps(sub))

	cmd := root.Command()
	cmd.SetArgs([]string{"notify", "a", "b"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, []string{"a", "b"}, got)
}
