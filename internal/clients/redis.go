package clients

import (
	"bufio"
	"strings"
	"time"

	"Probekit/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a single-attempt client: plugins report a failure
// instead of retrying.
func NewRedisClient(cfg config.RedisConfig, timeout time.Duration) *redis.Client {
	opts := cfg.GetRedisOptions()
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	opts.MaxRetries = -1
	return redis.NewClient(opts)
}

// ParseRedisInfo turns INFO output into a key/value map, skipping section headers.
func ParseRedisInfo(info string) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			values[key] = value
		}
	}
	return values
}
