package checks

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"Probekit/internal/domain"

	"github.com/miekg/dns"
	"github.com/spf13/pflag"
)

const resolvConf = "/etc/resolv.conf"

type DNSConfig struct {
	Domain   string
	Type     string
	Server   string
	Result   string
	WarnOnly bool
	Timeout  time.Duration
}

func (c *DNSConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Domain, "domain", "d", "", "Domain to resolve")
	fs.StringVarP(&c.Type, "type", "t", "A", "Record type to resolve (A, AAAA, TXT, etc)")
	fs.StringVarP(&c.Server, "server", "s", "", "Server to use for resolution")
	fs.StringVarP(&c.Result, "result", "r", "", "A positive result entry")
	fs.BoolVarP(&c.WarnOnly, "warn-only", "w", false, "Warn instead of critical on failure")
	fs.DurationVar(&c.Timeout, "timeout", 5*time.Second, "Query timeout")
}

type DNSCheck struct {
	cfg        DNSConfig
	recordType uint16
	server     string
	log        *slog.Logger
}

func NewDNSCheck(cfg DNSConfig, log *slog.Logger) (*DNSCheck, error) {
	if cfg.Domain == "" {
		return nil, domain.InvalidConfig("No domain specified")
	}

	recordType, ok := dns.StringToType[strings.ToUpper(cfg.Type)]
	if !ok {
		return nil, domain.InvalidConfig("unknown record type %q", cfg.Type)
	}

	server, err := resolveServer(cfg.Server)
	if err != nil {
		return nil, err
	}

	return &DNSCheck{cfg: cfg, recordType: recordType, server: server, log: log}, nil
}

func resolveServer(server string) (string, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil || len(conf.Servers) == 0 {
			return "", domain.InvalidConfig("no DNS server given and none found in %s", resolvConf)
		}
		return net.JoinHostPort(conf.Servers[0], conf.Port), nil
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		return net.JoinHostPort(server, "53"), nil
	}
	return server, nil
}

func (c *DNSCheck) Name() string { return "DNS" }

func (c *DNSCheck) Timeout() time.Duration { return c.cfg.Timeout + time.Second }

func (c *DNSCheck) Run(ctx context.Context) (domain.Result, error) {
	entries, err := c.resolve(ctx)
	if err != nil {
		c.log.Debug("dns query failed", "domain", c.cfg.Domain, "server", c.server, "error", err)
	}

	if len(entries) == 0 {
		if c.cfg.WarnOnly {
			return domain.Warning("Could not resolve %s", c.cfg.Domain), nil
		}
		return domain.Critical("Could not resolve %s", c.cfg.Domain), nil
	}

	if c.cfg.Result != "" {
		if slices.Contains(entries, c.cfg.Result) {
			return domain.OK("Resolved %s including %s", c.cfg.Domain, c.cfg.Result), nil
		}
		return domain.Critical("Resolved %s did not include %s", c.cfg.Domain, c.cfg.Result), nil
	}
	return domain.OK("Resolved %s %s records", c.cfg.Domain, strings.ToUpper(c.cfg.Type)), nil
}

func (c *DNSCheck) resolve(ctx context.Context) ([]string, error) {
	client := &dns.Client{Timeout: c.cfg.Timeout}

	msg := dns.Msg{}
	msg.SetQuestion(dns.Fqdn(c.cfg.Domain), c.recordType)

	response, rtt, err := client.ExchangeContext(ctx, &msg, c.server)
	if err != nil {
		return nil, fmt.Errorf("DNS query failed: %w", err)
	}

	if response.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("DNS error: %s", dns.RcodeToString[response.Rcode])
	}

	c.log.Debug("dns answer", "domain", c.cfg.Domain, "answers", len(response.Answer), "rtt", rtt)
	return answerData(response.Answer), nil
}

// answerData renders each answer without its header, like `dig +short`.
func answerData(answers []dns.RR) []string {
	entries := make([]string, 0, len(answers))
	for _, rr := range answers {
		data := strings.TrimPrefix(rr.String(), rr.Header().String())
		if data = strings.TrimSpace(data); data != "" {
			entries = append(entries, data)
		}
	}
	return entries
}
