package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"Probekit/internal/domain"
	"Probekit/internal/threshold"

	"github.com/spf13/pflag"
)

type RabbitMQDrainConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Filter   string
	SSL      bool
	Warning  int
	Critical int
	Timeout  time.Duration
}

func (c *RabbitMQDrainConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&c.Host, "host", "localhost", "RabbitMQ management API host")
	fs.IntVar(&c.Port, "port", 15672, "RabbitMQ management API port")
	fs.StringVar(&c.User, "user", "guest", "RabbitMQ management API user")
	fs.StringVar(&c.Password, "password", "guest", "RabbitMQ management API password")
	fs.StringVar(&c.Filter, "filter", "", "Regular expression for filtering queues")
	fs.BoolVar(&c.SSL, "ssl", false, "Enable SSL for connection to the API")
	fs.IntVarP(&c.Warning, "warning", "w", 180, "WARNING that messages will process at current rate")
	fs.IntVarP(&c.Critical, "critical", "c", 360, "CRITICAL time that messages will process at current rate")
	fs.DurationVar(&c.Timeout, "timeout", 10*time.Second, "Request timeout")
}

type rabbitQueue struct {
	Name               string `json:"name"`
	Messages           int64  `json:"messages"`
	BackingQueueStatus struct {
		AvgEgressRate float64 `json:"avg_egress_rate"`
	} `json:"backing_queue_status"`
}

type RabbitMQDrainCheck struct {
	cfg    RabbitMQDrainConfig
	filter *regexp.Regexp
	client *http.Client
}

func NewRabbitMQDrainCheck(cfg RabbitMQDrainConfig) (*RabbitMQDrainCheck, error) {
	var filter *regexp.Regexp
	if cfg.Filter != "" {
		var err error
		filter, err = regexp.Compile(cfg.Filter)
		if err != nil {
			return nil, domain.InvalidConfig("invalid filter %q: %v", cfg.Filter, err)
		}
	}
	return &RabbitMQDrainCheck{
		cfg:    cfg,
		filter: filter,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *RabbitMQDrainCheck) Name() string { return "CheckRabbitMQQueueDrainTime" }

func (c *RabbitMQDrainCheck) Run(ctx context.Context) (domain.Result, error) {
	queues, err := c.queues(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	return c.evaluate(queues), nil
}

func (c *RabbitMQDrainCheck) queues(ctx context.Context) ([]rabbitQueue, error) {
	scheme := "http"
	if c.cfg.SSL {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s/api/queues", scheme, net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.InvalidConfig("failed to create request: %v", err)
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.ConnectionFailed("could not get rabbitmq queue info", err).WithStatus(domain.StatusWarning)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.UnexpectedResponse("could not get rabbitmq queue info", fmt.Errorf("status %d", resp.StatusCode)).WithStatus(domain.StatusWarning)
	}

	var queues []rabbitQueue
	if err := json.NewDecoder(resp.Body).Decode(&queues); err != nil {
		return nil, domain.UnexpectedResponse("decode rabbitmq queues", err)
	}
	return queues, nil
}

func (c *RabbitMQDrainCheck) evaluate(queues []rabbitQueue) domain.Result {
	warn := map[string]string{}
	crit := map[string]string{}

	for _, q := range queues {
		if c.filter != nil && !c.filter.MatchString(q.Name) {
			continue
		}
		// empty queues have nothing to drain
		if q.Messages == 0 {
			continue
		}

		rate := q.BackingQueueStatus.AvgEgressRate
		if rate == 0 {
			crit[q.Name] = "Infinite (drain rate = 0)"
			continue
		}

		secs := float64(q.Messages) / rate
		formatted := threshold.FormatValue(math.Round(secs*100) / 100)
		switch {
		case secs > float64(c.cfg.Critical):
			crit[q.Name] = formatted
		case secs > float64(c.cfg.Warning):
			warn[q.Name] = formatted
		}
	}

	switch {
	case len(crit) > 0:
		return domain.Critical("Drain time: %s", drainSummary(crit))
	case len(warn) > 0:
		return domain.Warning("Drain time: %s", drainSummary(warn))
	default:
		return domain.OK("All (%d) queues will be drained in under %d seconds", len(queues), c.cfg.Warning)
	}
}

func drainSummary(queues map[string]string) string {
	names := make([]string, 0, len(queues))
	for name := range queues {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s sec", name, queues[name]))
	}
	return strings.Join(parts, ", ")
}
