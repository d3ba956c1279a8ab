package checks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"Probekit/internal/domain"

	"github.com/spf13/pflag"
)

type BannerConfig struct {
	Host    string
	Port    int
	Write   string
	Pattern string
	Timeout time.Duration
}

func (c *BannerConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Host, "hostname", "H", "localhost", "Host to connect to")
	fs.IntVarP(&c.Port, "port", "p", 22, "Port to connect to")
	fs.StringVarP(&c.Write, "write", "w", "", "write STRING to the socket")
	fs.StringVarP(&c.Pattern, "pattern", "q", "OpenSSH", "Pattern to search for")
	fs.DurationVarP(&c.Timeout, "timeout", "t", 30*time.Second, "Connection timeout")
}

// BannerCheck reads the first line a TCP service sends and matches it.
type BannerCheck struct {
	cfg     BannerConfig
	pattern *regexp.Regexp
}

func NewBannerCheck(cfg BannerConfig) (*BannerCheck, error) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, domain.InvalidConfig("invalid port %d", cfg.Port)
	}
	pattern, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, domain.InvalidConfig("invalid pattern %q: %v", cfg.Pattern, err)
	}
	return &BannerCheck{cfg: cfg, pattern: pattern}, nil
}

func (c *BannerCheck) Name() string { return "CheckBanner" }

func (c *BannerCheck) Timeout() time.Duration { return c.cfg.Timeout + time.Second }

func (c *BannerCheck) Run(ctx context.Context) (domain.Result, error) {
	address := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return c.connectionFailure(address, err), nil
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	if c.cfg.Write != "" {
		if _, err := fmt.Fprintln(conn, c.cfg.Write); err != nil {
			return c.connectionFailure(address, err), nil
		}
	}

	banner, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && banner != "") {
		return c.connectionFailure(address, err), nil
	}

	banner = strings.TrimRight(banner, "\r\n")
	if c.pattern.MatchString(banner) {
		return domain.OK("%s", banner), nil
	}
	return domain.Warning("%s", banner), nil
}

func (c *BannerCheck) connectionFailure(address string, err error) domain.Result {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return domain.Critical("Connection refused by %s", address)
	case errors.Is(err, syscall.EHOSTUNREACH):
		return domain.Critical("Check failed to run: No route to host")
	case errors.Is(err, io.EOF):
		return domain.Critical("Connection closed unexpectedly")
	case domain.KindOf(err) == domain.KindTimeout:
		return domain.Critical("Connection or read timed out")
	default:
		return domain.Critical("Check failed to run: %v", err)
	}
}
