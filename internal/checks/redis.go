package checks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"Probekit/internal/clients"
	"Probekit/internal/config"
	"Probekit/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const redisTimeout = 5 * time.Second

// RedisPingCheck reports WARNING rather than CRITICAL when Redis is unreachable.
type RedisPingCheck struct {
	cfg    config.RedisConfig
	client *redis.Client
}

func NewRedisPingCheck(cfg config.RedisConfig) *RedisPingCheck {
	return &RedisPingCheck{cfg: cfg, client: clients.NewRedisClient(cfg, redisTimeout)}
}

func (c *RedisPingCheck) Name() string { return "RedisPing" }

func (c *RedisPingCheck) Run(ctx context.Context) (domain.Result, error) {
	defer c.client.Close()

	pong, err := c.client.Ping(ctx).Result()
	if err != nil {
		msg := fmt.Sprintf("Could not connect to Redis server on %s:%d", c.cfg.Host, c.cfg.Port)
		return domain.Result{}, domain.ConnectionFailed(msg, err).WithStatus(domain.StatusWarning)
	}
	if pong != "PONG" {
		return domain.Critical("Redis did not respond to the ping command"), nil
	}
	return domain.OK("Redis is alive"), nil
}

type RedisListLengthConfig struct {
	Redis    config.RedisConfig
	Key      string
	Warning  int64
	Critical int64
}

func (c *RedisListLengthConfig) Bind(fs *pflag.FlagSet) {
	c.Redis.BindFlags(fs)
	fs.StringVarP(&c.Key, "key", "k", "", "Redis list KEY to check")
	fs.Int64VarP(&c.Warning, "warning", "w", -1, "Warning threshold")
	fs.Int64VarP(&c.Critical, "critical", "c", -1, "Critical threshold")
}

type RedisListLengthCheck struct {
	cfg    RedisListLengthConfig
	client *redis.Client
}

func NewRedisListLengthCheck(cfg RedisListLengthConfig) (*RedisListLengthCheck, error) {
	if cfg.Key == "" {
		return nil, domain.InvalidConfig("a list key is required")
	}
	if cfg.Warning < 0 || cfg.Critical < 0 {
		return nil, domain.InvalidConfig("warning and critical thresholds are required")
	}
	return &RedisListLengthCheck{cfg: cfg, client: clients.NewRedisClient(cfg.Redis, redisTimeout)}, nil
}

func (c *RedisListLengthCheck) Name() string { return "RedisListLengthCheck" }

func (c *RedisListLengthCheck) Run(ctx context.Context) (domain.Result, error) {
	defer c.client.Close()

	length, err := c.client.LLen(ctx, c.cfg.Key).Result()
	if err != nil {
		msg := fmt.Sprintf("Could not connect to Redis server on %s:%d", c.cfg.Redis.Host, c.cfg.Redis.Port)
		return domain.Result{}, domain.ConnectionFailed(msg, err).WithStatus(domain.StatusUnknown)
	}

	switch {
	case length >= c.cfg.Critical:
		return domain.Critical("Redis list %s length is above the CRITICAL limit: %d length / %d limit", c.cfg.Key, length, c.cfg.Critical), nil
	case length >= c.cfg.Warning:
		return domain.Warning("Redis list %s length is above the WARNING limit: %d length / %d limit", c.cfg.Key, length, c.cfg.Warning), nil
	default:
		return domain.OK("Redis list %s length is below thresholds", c.cfg.Key), nil
	}
}

type RedisMemoryConfig struct {
	Redis    config.RedisConfig
	WarnKB   int64
	CritKB   int64
	CritConn bool
}

func (c *RedisMemoryConfig) Bind(fs *pflag.FlagSet) {
	c.Redis.BindFlags(fs)
	fs.Int64VarP(&c.WarnKB, "warnmem", "w", -1, "Allocated KB of Redis memory usage on which we'll issue a WARNING")
	fs.Int64VarP(&c.CritKB, "critmem", "c", -1, "Allocated KB of Redis memory usage on which we'll issue a CRITICAL")
	fs.BoolVar(&c.CritConn, "crit-conn-failure", false, "Critical instead of warning on connection failure")
}

type RedisMemoryCheck struct {
	cfg    RedisMemoryConfig
	client *redis.Client
}

func NewRedisMemoryCheck(cfg RedisMemoryConfig) (*RedisMemoryCheck, error) {
	if cfg.WarnKB < 0 || cfg.CritKB < 0 {
		return nil, domain.InvalidConfig("warnmem and critmem are required")
	}
	return &RedisMemoryCheck{cfg: cfg, client: clients.NewRedisClient(cfg.Redis, redisTimeout)}, nil
}

func (c *RedisMemoryCheck) Name() string { return "RedisChecks" }

func (c *RedisMemoryCheck) Run(ctx context.Context) (domain.Result, error) {
	defer c.client.Close()

	addr := fmt.Sprintf("%s:%d", c.cfg.Redis.Host, c.cfg.Redis.Port)
	info, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		status := domain.StatusWarning
		if c.cfg.CritConn {
			status = domain.StatusCritical
		}
		return domain.Result{}, domain.ConnectionFailed("Could not connect to Redis server on "+addr, err).WithStatus(status)
	}

	raw, ok := clients.ParseRedisInfo(info)["used_memory"]
	if !ok {
		return domain.Result{}, domain.UnexpectedResponse("redis info", fmt.Errorf("used_memory missing from INFO"))
	}
	usedBytes, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.Result{}, domain.UnexpectedResponse("redis info", err)
	}
	used := usedBytes / 1024

	switch {
	case used >= c.cfg.CritKB:
		return domain.Critical("Redis running on %s is above the CRITICAL limit: %d KB used / %d KB limit", addr, used, c.cfg.CritKB), nil
	case used >= c.cfg.WarnKB:
		return domain.Warning("Redis running on %s is above the WARNING limit: %d KB used / %d KB limit", addr, used, c.cfg.WarnKB), nil
	default:
		return domain.OK("Redis memory usage is below defined limits"), nil
	}
}
