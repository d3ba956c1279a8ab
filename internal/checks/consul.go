package checks

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"Probekit/internal/domain"

	"github.com/hashicorp/consul/api"
	"github.com/spf13/pflag"
)

type ConsulConfig struct {
	Server  string
	Port    string
	Timeout time.Duration
}

func (c *ConsulConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Server, "server", "s", "127.0.0.1", "consul server")
	fs.StringVarP(&c.Port, "port", "p", "8500", "consul http port")
	fs.DurationVar(&c.Timeout, "timeout", 5*time.Second, "Request timeout")
}

type ConsulCheck struct {
	client *api.Client
}

func NewConsulCheck(cfg ConsulConfig) (*ConsulCheck, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = net.JoinHostPort(cfg.Server, cfg.Port)
	apiCfg.HttpClient = &http.Client{Timeout: cfg.Timeout}

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, domain.InvalidConfig("failed to create consul client: %v", err)
	}
	return &ConsulCheck{client: client}, nil
}

func (c *ConsulCheck) Name() string { return "ConsulStatus" }

func (c *ConsulCheck) Run(ctx context.Context) (domain.Result, error) {
	leader, err := c.client.Status().LeaderWithQueryOptions((&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		if domain.KindOf(err) == domain.KindTimeout {
			return domain.Critical("Consul Connection timed out"), nil
		}
		return domain.Critical("Consul is not responding"), nil
	}

	if net.ParseIP(stripPort(leader)) != nil {
		return domain.OK("Consul is UP and has a leader"), nil
	}
	return domain.Critical("Consul is UP, but it has NO leader"), nil
}

func stripPort(addr string) string {
	addr = strings.Trim(strings.TrimSpace(addr), `"`)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
