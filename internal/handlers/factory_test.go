package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"Probekit/internal/config"
	"Probekit/internal/domain"
	"Probekit/internal/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps(t *testing.T, body string) Deps {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	loader, err := config.NewLoader(path)
	require.NoError(t, err)
	return Deps{Log: discardLogger(), Settings: loader}
}

func TestFactoryNames(t *testing.T) {
	f := NewFactory()
	assert.Equal(t, []string{
		"graphite", "influxdb", "logstash", "mailer", "opsgenie",
		"pagerduty", "resolve", "slack", "sql-metrics", "ttl",
	}, f.Names())

	_, err := f.Get("irc")
	require.ErrorIs(t, err, runner.ErrUnknownPlugin)
	assert.Contains(t, err.Error(), "valid handlers: graphite")
}

func TestFactorySetup(t *testing.T) {
	deps := testDeps(t, `{
		"client": {"name": "web01"},
		"slack": {"webhook_url": "https://hooks.example.com/T000", "bot_name": "probekit"},
		"mailer": {"mail_to": "ops@example.com", "mail_from": "probekit@example.com", "smtp_port": 2525},
		"influxdb": {"database": "metrics"},
		"graphite": {"host": "carbon", "port": 2003, "reverse": true}
	}`)
	f := NewFactory()

	for _, name := range []string{"slack", "mailer", "influxdb", "graphite", "resolve", "ttl"} {
		setup, err := f.Get(name)
		require.NoError(t, err, name)
		h, err := setup(context.Background(), deps)
		require.NoError(t, err, name)
		assert.Equal(t, name, h.Name())
	}

	setup, _ := f.Get("mailer")
	h, err := setup(context.Background(), deps)
	require.NoError(t, err)
	mailer := h.(*MailerHandler)
	assert.Equal(t, 2525, mailer.cfg.SMTPPort)
	assert.Equal(t, "localhost", mailer.cfg.SMTPAddress)
	assert.Equal(t, "localhost.localdomain", mailer.cfg.SMTPDomain)
}

func TestFactoryMissingSection(t *testing.T) {
	deps := testDeps(t, `{"client": {"name": "web01"}}`)
	f := NewFactory()

	for _, name := range []string{"slack", "pagerduty", "opsgenie", "mailer", "logstash", "influxdb"} {
		setup, err := f.Get(name)
		require.NoError(t, err)
		_, err = setup(context.Background(), deps)
		require.Error(t, err, name)
		assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err), name)
	}
}

func TestFilters(t *testing.T) {
	deps := testDeps(t, `{"client": {"name": "web01"}, "api": {"host": "sensu", "port": 4567}}`)
	filters, err := Filters(deps)
	require.NoError(t, err)
	assert.Len(t, filters, 3)
}
