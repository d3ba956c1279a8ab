package collectors

import (
	"context"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"Probekit/internal/clients"
	"Probekit/internal/config"
	"Probekit/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/pflag"
)

type PostgresConnectionsConfig struct {
	DB     config.DatabaseConfig
	Scheme string
}

func (c *PostgresConnectionsConfig) Bind(fs *pflag.FlagSet) {
	c.DB.BindFlags(fs, "postgres")
	fs.StringVar(&c.Scheme, "scheme", hostname()+".postgresql", "Metric naming scheme, text to prepend to $queue_name.$metric")
}

const connectionsQuery = `select count(*), wait_event is not null as waiting
from pg_stat_activity where datname = $1 group by 2`

// ConnectionCounts maps the "waiting" flag of pg_stat_activity to a count.
type ConnectionCounts map[bool]int64

type PostgresConnectionsCollector struct {
	cfg   PostgresConnectionsConfig
	query func(ctx context.Context) (ConnectionCounts, error)
	now   func() time.Time
}

func NewPostgresConnectionsCollector(cfg PostgresConnectionsConfig) *PostgresConnectionsCollector {
	c := &PostgresConnectionsCollector{cfg: cfg, now: time.Now}
	c.query = c.queryActivity
	return c
}

func (c *PostgresConnectionsCollector) Name() string { return "PostgresStatsDBMetrics" }

func (c *PostgresConnectionsCollector) queryActivity(ctx context.Context) (ConnectionCounts, error) {
	// Activity is visible from the maintenance database.
	dbCfg := c.cfg.DB
	dbCfg.DBName = "postgres"

	conn, err := pgx.Connect(ctx, dbCfg.GetDSN())
	if err != nil {
		return nil, domain.Classify("connect to postgres", err)
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, connectionsQuery, c.cfg.DB.DBName)
	if err != nil {
		return nil, domain.UnexpectedResponse("query pg_stat_activity", err)
	}
	defer rows.Close()

	counts := ConnectionCounts{}
	for rows.Next() {
		var n int64
		var waiting bool
		if err := rows.Scan(&n, &waiting); err != nil {
			return nil, domain.UnexpectedResponse("scan pg_stat_activity", err)
		}
		counts[waiting] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.UnexpectedResponse("read pg_stat_activity", err)
	}
	return counts, nil
}

func (c *PostgresConnectionsCollector) Collect(ctx context.Context) ([]domain.Sample, error) {
	counts, err := c.query(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now()
	prefix := domain.JoinPath(c.cfg.Scheme, "connections", c.cfg.DB.DBName)
	return []domain.Sample{
		domain.NewSample(prefix+".active", float64(counts[false]), now),
		domain.NewSample(prefix+".waiting", float64(counts[true]), now),
	}, nil
}

type RedisMetricsConfig struct {
	Redis  config.RedisConfig
	Scheme string
}

func (c *RedisMetricsConfig) Bind(fs *pflag.FlagSet) {
	c.Redis.BindFlags(fs)
	fs.StringVarP(&c.Scheme, "scheme", "s", hostname()+".redis", "Metric naming scheme, text to prepend to metric")
}

// Non-numeric or identity fields of INFO that are never emitted.
var skipRedisKeys = regexp.MustCompile(`gcc_version|master_host|master_link_status|master_port|mem_allocator|multiplexing_api|process_id|redis_git_dirty|redis_git_sha1|redis_version|^role|run_id|^slave|used_memory_human|used_memory_peak_human`)

var redisDBKey = regexp.MustCompile(`^db[0-9]+$`)

type RedisMetricsCollector struct {
	cfg  RedisMetricsConfig
	info func(ctx context.Context) (string, error)
	now  func() time.Time
}

func NewRedisMetricsCollector(cfg RedisMetricsConfig) *RedisMetricsCollector {
	return &RedisMetricsCollector{
		cfg: cfg,
		now: time.Now,
		info: func(ctx context.Context) (string, error) {
			client := clients.NewRedisClient(cfg.Redis, 5*time.Second)
			defer client.Close()
			info, err := client.Info(ctx).Result()
			if err != nil {
				return "", domain.Classify("redis info", err)
			}
			return info, nil
		},
	}
}

func (c *RedisMetricsCollector) Name() string { return "Redis2Graphite" }

func (c *RedisMetricsCollector) Collect(ctx context.Context) ([]domain.Sample, error) {
	info, err := c.info(ctx)
	if err != nil {
		return nil, err
	}

	values := clients.ParseRedisInfo(info)
	now := c.now()

	var samples []domain.Sample
	for _, key := range sortedKeys(values) {
		if skipRedisKeys.MatchString(key) {
			continue
		}
		value := values[key]

		// db0:keys=123,expires=12,avg_ttl=0
		if redisDBKey.MatchString(key) {
			for _, field := range strings.Split(value, ",") {
				name, raw, ok := strings.Cut(field, "=")
				if !ok || (name != "keys" && name != "expires") {
					continue
				}
				if f, err := strconv.ParseFloat(raw, 64); err == nil {
					samples = append(samples, domain.NewSample(domain.JoinPath(c.cfg.Scheme, key, name), f, now))
				}
			}
			continue
		}

		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		samples = append(samples, domain.NewSample(domain.JoinPath(c.cfg.Scheme, key), f, now))
	}
	return samples, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
