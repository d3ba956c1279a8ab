package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	loader, err := NewLoader(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Statsd.Bind)
	assert.Equal(t, 8125, cfg.Statsd.Port)
	assert.Equal(t, 10, cfg.Statsd.FlushInterval)
	assert.Equal(t, 30, cfg.Statsd.SendInterval)
	assert.Equal(t, 90, cfg.Statsd.Percentile)
	assert.True(t, cfg.Statsd.AddClientPrefix)
	assert.Equal(t, "statsd", cfg.Statsd.PathPrefix)
	assert.Equal(t, "graphite", cfg.Statsd.Handler)
	assert.Equal(t, "127.0.0.1:3030", cfg.Client.SocketAddress())
	assert.Equal(t, "http://localhost:4567", cfg.API.BaseURL())
}

func TestLoadOverridesAndSections(t *testing.T) {
	path := writeSettings(t, `{
		"client": {"name": "web01"},
		"statsd": {"port": 9125, "percentile": 95, "add_client_prefix": false},
		"mailer": {"mail_to": "ops@example.com", "smtp_port": 2525}
	}`)

	loader, err := NewLoader(path)
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "web01", cfg.Client.Name)
	assert.Equal(t, 9125, cfg.Statsd.Port)
	assert.Equal(t, 95, cfg.Statsd.Percentile)
	assert.False(t, cfg.Statsd.AddClientPrefix)

	var mailer struct {
		MailTo      string `mapstructure:"mail_to"`
		SMTPAddress string `mapstructure:"smtp_address"`
		SMTPPort    int    `mapstructure:"smtp_port"`
	}
	mailer.SMTPAddress = "localhost"
	require.NoError(t, loader.Section("mailer", &mailer))
	assert.Equal(t, "ops@example.com", mailer.MailTo)
	assert.Equal(t, "localhost", mailer.SMTPAddress)
	assert.Equal(t, 2525, mailer.SMTPPort)

	err = loader.Section("slack", &mailer)
	assert.ErrorIs(t, err, ErrSectionMissing)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("PROBEKIT_STATSD_PATH_PREFIX", "custom")

	loader, err := NewLoader(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Statsd.PathPrefix)
}

func TestValidateConfig(t *testing.T) {
	path := writeSettings(t, `{"statsd": {"percentile": 0}}`)
	loader, err := NewLoader(path)
	require.NoError(t, err)

	_, err = loader.Load()
	assert.Error(t, err)

	path = writeSettings(t, `{"statsd": {"handler": "carbon-relay"}}`)
	loader, err = NewLoader(path)
	require.NoError(t, err)
	_, err = loader.Load()
	assert.Error(t, err)
}

func TestMalformedSettings(t *testing.T) {
	path := writeSettings(t, `{"statsd": `)
	_, err := NewLoader(path)
	assert.Error(t, err)
}

func TestConnectionStrings(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "metrics", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=metrics sslmode=disable", db.GetDSN())

	r := RedisConfig{Host: "cache", Port: 6380, DB: 2}
	opts := r.GetRedisOptions()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}
