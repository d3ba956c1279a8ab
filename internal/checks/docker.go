package checks

import (
	"context"
	"strings"

	"Probekit/internal/domain"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/spf13/pflag"
)

type DockerContainersConfig struct {
	URL       string
	WarnOver  int
	CritOver  int
	WarnUnder int
	CritUnder int
}

func (c *DockerContainersConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.URL, "url", "u", "", "Docker host, defaults to DOCKER_HOST")
	fs.IntVarP(&c.WarnOver, "warn-over", "w", -1, "Trigger a warning if over a number")
	fs.IntVarP(&c.CritOver, "critical-over", "c", -1, "Trigger a critical if over a number")
	fs.IntVarP(&c.WarnUnder, "warn-under", "W", 1, "Trigger a warning if under a number")
	fs.IntVarP(&c.CritUnder, "critical-under", "C", 1, "Trigger a critical if under a number")
}

type DockerContainersCheck struct {
	cfg   DockerContainersConfig
	count func(ctx context.Context) (int, error)
}

func NewDockerContainersCheck(cfg DockerContainersConfig) (*DockerContainersCheck, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.URL != "" {
		host := strings.TrimRight(cfg.URL, "/")
		host = strings.Replace(host, "http://", "tcp://", 1)
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, domain.InvalidConfig("failed to create docker client: %v", err)
	}

	return &DockerContainersCheck{
		cfg: cfg,
		count: func(ctx context.Context) (int, error) {
			defer cli.Close()
			containers, err := cli.ContainerList(ctx, container.ListOptions{})
			if err != nil {
				return 0, domain.Classify("list containers", err)
			}
			return len(containers), nil
		},
	}, nil
}

func (c *DockerContainersCheck) Name() string { return "CheckDockerContainers" }

func (c *DockerContainersCheck) Run(ctx context.Context) (domain.Result, error) {
	count, err := c.count(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	return c.evaluate(count), nil
}

// evaluate checks the bounds in order: critical under, critical over,
// warning under, warning over. A negative bound is unset.
func (c *DockerContainersCheck) evaluate(count int) domain.Result {
	switch {
	case c.cfg.CritUnder >= 0 && count < c.cfg.CritUnder:
		return domain.Critical("%d Running Containers, expected at least %d", count, c.cfg.CritUnder)
	case c.cfg.CritOver >= 0 && count > c.cfg.CritOver:
		return domain.Critical("%d Running Containers, expected at most %d", count, c.cfg.CritOver)
	case c.cfg.WarnUnder >= 0 && count < c.cfg.WarnUnder:
		return domain.Warning("%d Running Containers, expected at least %d", count, c.cfg.WarnUnder)
	case c.cfg.WarnOver >= 0 && count > c.cfg.WarnOver:
		return domain.Warning("%d Running Containers, expected at most %d", count, c.cfg.WarnOver)
	default:
		return domain.OK("%d Running Containers", count)
	}
}
