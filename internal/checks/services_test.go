package checks

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"Probekit/internal/config"
	"Probekit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDockerContainersEvaluate(t *testing.T) {
	cfg := DockerContainersConfig{WarnOver: 10, CritOver: 20, WarnUnder: 3, CritUnder: 1}
	check := &DockerContainersCheck{cfg: cfg}

	tests := []struct {
		count  int
		status domain.Status
	}{
		{0, domain.StatusCritical},
		{2, domain.StatusWarning},
		{5, domain.StatusOK},
		{15, domain.StatusWarning},
		{25, domain.StatusCritical},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.count), func(t *testing.T) {
			assert.Equal(t, tt.status, check.evaluate(tt.count).Status)
		})
	}

	unset := &DockerContainersCheck{cfg: DockerContainersConfig{WarnOver: -1, CritOver: -1, WarnUnder: -1, CritUnder: -1}}
	assert.Equal(t, domain.StatusOK, unset.evaluate(0).Status)
}

func TestDockerContainersRun(t *testing.T) {
	check := &DockerContainersCheck{
		cfg:   DockerContainersConfig{WarnOver: -1, CritOver: -1, WarnUnder: 1, CritUnder: 1},
		count: func(ctx context.Context) (int, error) { return 4, nil },
	}
	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4 Running Containers", result.Message)

	check.count = func(ctx context.Context) (int, error) {
		return 0, domain.ConnectionFailed("list containers", errors.New("refused"))
	}
	_, err = check.Run(context.Background())
	assert.Equal(t, domain.StatusCritical, domain.StatusOf(err))
}

func rabbitServer(t *testing.T, body string) RabbitMQDrainConfig {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/queues", r.URL.Path)
		user, pass, _ := r.BasicAuth()
		assert.Equal(t, "guest", user)
		assert.Equal(t, "guest", pass)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return RabbitMQDrainConfig{
		Host: host, Port: p, User: "guest", Password: "guest",
		Warning: 180, Critical: 360, Timeout: time.Second,
	}
}

func TestRabbitMQDrainCheck(t *testing.T) {
	body := `[
		{"name":"fast","messages":100,"backing_queue_status":{"avg_egress_rate":10}},
		{"name":"slow","messages":2000,"backing_queue_status":{"avg_egress_rate":10}},
		{"name":"empty","messages":0,"backing_queue_status":{"avg_egress_rate":0}}
	]`
	cfg := rabbitServer(t, body)

	check, err := NewRabbitMQDrainCheck(cfg)
	require.NoError(t, err)
	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWarning, result.Status)
	assert.Equal(t, "Drain time: slow 200 sec", result.Message)
}

func TestRabbitMQDrainCheckStalledQueue(t *testing.T) {
	body := `[
		{"name":"stuck","messages":5,"backing_queue_status":{"avg_egress_rate":0}},
		{"name":"ignored","messages":50000,"backing_queue_status":{"avg_egress_rate":1}}
	]`
	cfg := rabbitServer(t, body)
	cfg.Filter = "^st"

	check, err := NewRabbitMQDrainCheck(cfg)
	require.NoError(t, err)
	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCritical, result.Status)
	assert.Equal(t, "Drain time: stuck Infinite (drain rate = 0) sec", result.Message)
}

func TestRabbitMQDrainCheckUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	check, err := NewRabbitMQDrainCheck(RabbitMQDrainConfig{Host: "127.0.0.1", Port: port, Timeout: time.Second})
	require.NoError(t, err)
	_, err = check.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.StatusWarning, domain.StatusOf(err))
}

func TestStripPort(t *testing.T) {
	assert.Equal(t, "10.0.0.1", stripPort("10.0.0.1:8300"))
	assert.Equal(t, "", stripPort(""))
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	assert.Contains(t, f.Names(), "check-http")
	assert.Contains(t, f.Names(), "check-cucumber")

	_, err := f.Get("check-nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check-load")
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestRedisChecksUnreachable(t *testing.T) {
	redisCfg := config.RedisConfig{Host: "127.0.0.1", Port: closedPort(t)}

	_, err := NewRedisPingCheck(redisCfg).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.StatusWarning, domain.StatusOf(err))

	list, err := NewRedisListLengthCheck(RedisListLengthConfig{Redis: redisCfg, Key: "jobs", Warning: 10, Critical: 20})
	require.NoError(t, err)
	_, err = list.Run(context.Background())
	assert.Equal(t, domain.StatusUnknown, domain.StatusOf(err))

	memory, err := NewRedisMemoryCheck(RedisMemoryConfig{Redis: redisCfg, WarnKB: 1, CritKB: 2, CritConn: true})
	require.NoError(t, err)
	_, err = memory.Run(context.Background())
	assert.Equal(t, domain.StatusCritical, domain.StatusOf(err))

	_, err = NewRedisListLengthCheck(RedisListLengthConfig{Redis: redisCfg, Warning: 1, Critical: 2})
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))
}

func TestPostgresAliveUnreachable(t *testing.T) {
	check := NewPostgresAliveCheck(config.DatabaseConfig{
		Host: "127.0.0.1", Port: closedPort(t), User: "postgres", DBName: "test", SSLMode: "disable",
	})
	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCritical, result.Status)
	assert.True(t, strings.HasPrefix(result.Message, "Error message: "))
	assert.NotContains(t, result.Message, "\n")
}
