package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeSettings(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logLevel("warning"))
	assert.Equal(t, slog.LevelError, logLevel("error"))
	assert.Equal(t, slog.LevelInfo, logLevel(""))
}

func TestProgramStartStop(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "statsd.log")
	settings := writeSettings(t, dir, fmt.Sprintf(`{
		"client": {"name": "web01"},
		"statsd": {"port": %d, "handler": "stdout"},
		"status": {"port": 0},
		"logging": {"file": %q},
		"ttl": {"interval": 30}
	}`, freePort(t), logFile))

	p := &program{settings: settings}
	require.NoError(t, p.Start(nil))
	assert.Len(t, p.container.Daemon.Tasks, 1)
	assert.Nil(t, p.container.Daemon.Status)

	require.NoError(t, p.Stop(nil))

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "statsd daemon started")
	assert.Contains(t, string(data), "statsd daemon stopped")
}

func TestGetContainerRejectsBadSink(t *testing.T) {
	settings := writeSettings(t, t.TempDir(), `{"client": {"name": "web01"}, "statsd": {"handler": "kafka"}}`)

	_, err := GetContainer(settings)
	assert.Error(t, err)
}

func TestServiceArguments(t *testing.T) {
	m := newServiceManager(&program{}, "/etc/probekit/settings.json")
	assert.Equal(t, serviceName, m.cfg.Name)
	assert.Equal(t, []string{"run", "--settings", "/etc/probekit/settings.json"}, m.cfg.Arguments)

	m = newServiceManager(&program{}, "")
	assert.Equal(t, []string{"run"}, m.cfg.Arguments)
}
