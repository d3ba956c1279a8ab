package checks

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"Probekit/internal/domain"
	"Probekit/internal/graphite"
	"Probekit/internal/threshold"
	"Probekit/pkg/validator"

	"github.com/spf13/pflag"
)

var ErrNoData = errors.New("empty data received from graphite, metric probably doesn't exist")

type GraphiteDataConfig struct {
	Target        string
	Server        string
	From          string
	Warning       string
	Critical      string
	WarningRange  string
	CriticalRange string
	Below         bool
	ResetWindow   int
	Name          string
	AllowedAge    int
	HostnameSub   string
	Username      string
	Password      string
	PassFile      string
	NoSSLVerify   bool
	Timeout       time.Duration
}

func (c *GraphiteDataConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Target, "target", "t", "", "Graphite data target")
	fs.StringVarP(&c.Server, "server", "s", "", "Server host and port")
	fs.StringVar(&c.From, "from", "-10mins", "Start of the render window")
	fs.StringVarP(&c.Warning, "warn", "w", "", "Generate warning if the last value passes VALUE")
	fs.StringVarP(&c.Critical, "critical", "c", "", "Generate critical if the last value passes VALUE")
	fs.StringVar(&c.WarningRange, "warning-range", "", "Warn when the last value is outside a [@][~][min]:max range")
	fs.StringVar(&c.CriticalRange, "critical-range", "", "Critical when the last value is outside a [@][~][min]:max range")
	fs.BoolVar(&c.Below, "below", false, "Alert when the value drops below the thresholds")
	fs.IntVarP(&c.ResetWindow, "reset", "r", 0, "Send OK if value has decreased on any values within the last INTERVAL points")
	fs.StringVarP(&c.Name, "name", "n", "", "Name used in responses")
	fs.IntVarP(&c.AllowedAge, "age", "a", 60, "Allowed number of seconds since last data update")
	fs.StringVar(&c.HostnameSub, "host-sub", "_", "Character used to replace periods (.) in hostname")
	fs.StringVarP(&c.Username, "username", "u", "", "Basic auth username")
	fs.StringVarP(&c.Password, "password", "p", "", "Basic auth password")
	fs.StringVar(&c.PassFile, "passfile", "", "File holding the basic auth password")
	fs.BoolVar(&c.NoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification")
	fs.DurationVar(&c.Timeout, "timeout", 10*time.Second, "Request timeout")
}

// series is one render target with null datapoints removed.
type series struct {
	Target string
	Data   []float64
	Start  int64
	End    int64
}

type GraphiteDataCheck struct {
	cfg       GraphiteDataConfig
	levels    threshold.Levels
	ranges    threshold.RangeLevels
	useRanges bool
	target    string
	formatted string
	password  string
	client    *http.Client
	now       func() time.Time
}

func NewGraphiteDataCheck(cfg GraphiteDataConfig) (*GraphiteDataCheck, error) {
	if cfg.Server == "" {
		return nil, domain.InvalidConfig("No graphite server provided")
	}
	if !validator.ValidateTarget(cfg.Server) {
		return nil, domain.InvalidConfig("invalid graphite server %q", cfg.Server)
	}
	if cfg.Target == "" {
		return nil, domain.InvalidConfig("No graphite target provided")
	}

	comparator := threshold.GreaterThan
	if cfg.Below {
		comparator = threshold.LesserThan
	}
	lv, err := levels(cfg.Warning, cfg.Critical, comparator)
	if err != nil {
		return nil, err
	}

	ranges, err := threshold.ParseRangeLevels(cfg.WarningRange, cfg.CriticalRange)
	if err != nil {
		return nil, err
	}

	password := cfg.Password
	if cfg.PassFile != "" {
		data, err := os.ReadFile(cfg.PassFile)
		if err != nil {
			return nil, domain.InvalidConfig("failed to read passfile: %v", err)
		}
		password = strings.SplitN(string(data), "\n", 2)[0]
	}

	c := &GraphiteDataCheck{
		cfg:       cfg,
		levels:    lv,
		ranges:    ranges,
		useRanges: ranges.Warning != nil || ranges.Critical != nil,
		password:  strings.TrimSpace(password),
		now:       time.Now,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.NoSSLVerify,
					MinVersion:         tls.VersionTLS12,
				},
			},
		},
	}
	c.target, c.formatted = formatTarget(cfg.Target, hostname(), cfg.HostnameSub)
	return c, nil
}

// formatTarget substitutes `$` with the local hostname, dots replaced.
func formatTarget(target, host, sub string) (string, string) {
	if !strings.Contains(target, "$") {
		return target, ""
	}
	formatted := graphite.HostnameSegment(host, sub)
	return strings.ReplaceAll(target, "$", formatted), formatted
}

func (c *GraphiteDataCheck) Name() string { return "CheckGraphiteData" }

func (c *GraphiteDataCheck) Timeout() time.Duration { return c.cfg.Timeout + time.Second }

func (c *GraphiteDataCheck) displayName() string {
	base := c.cfg.Name
	if base == "" {
		base = "graphite check"
	}
	if c.formatted != "" {
		return fmt.Sprintf("%s (%s)", base, c.formatted)
	}
	return base
}

func (c *GraphiteDataCheck) Run(ctx context.Context) (domain.Result, error) {
	data, err := c.retrieve(ctx)
	if err != nil {
		return domain.Result{}, err
	}

	worst := domain.OK("%s value okay", c.displayName())
	for _, s := range data {
		result := c.evaluate(s)
		if result.Status > worst.Status {
			worst = result
		}
	}
	return worst, nil
}

func (c *GraphiteDataCheck) evaluate(s series) domain.Result {
	age := c.now().Unix() - s.End
	if age > int64(c.cfg.AllowedAge) {
		return domain.Critical("Graphite data age is past allowed threshold (%d seconds)", c.cfg.AllowedAge)
	}

	last := s.Data[len(s.Data)-1]

	var status domain.Status
	if c.useRanges {
		status = c.ranges.Evaluate(last)
	} else {
		status = c.levels.Evaluate(last)
	}

	if status == domain.StatusOK {
		return domain.OK("%s value okay", c.displayName())
	}
	if !c.cfg.Below && threshold.Decreased(s.Data, c.cfg.ResetWindow) {
		return domain.OK("%s value okay", c.displayName())
	}

	label := strings.ToLower(status.String())
	return domain.NewResult(status, "%s has passed %s threshold (%s)", c.displayName(), label, threshold.FormatValue(last))
}

func (c *GraphiteDataCheck) renderURL() string {
	server := c.cfg.Server
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("target", c.target)
	if c.cfg.From != "" {
		query.Set("from", c.cfg.From)
	}
	return strings.TrimRight(server, "/") + "/render?" + query.Encode()
}

func (c *GraphiteDataCheck) retrieve(ctx context.Context) ([]series, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.renderURL(), nil)
	if err != nil {
		return nil, domain.InvalidConfig("failed to create request: %v", err)
	}
	if c.cfg.Username != "" && c.password != "" {
		req.SetBasicAuth(c.cfg.Username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.Classify("Failed to connect to graphite server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.UnexpectedResponse("Failed to connect to graphite server", fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Classify("read graphite response", err)
	}

	return parseRender(body)
}

func parseRender(body []byte) ([]series, error) {
	var raw []struct {
		Target     string        `json:"target"`
		Datapoints [][2]*float64 `json:"datapoints"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.UnexpectedResponse("decode graphite response", err)
	}
	if len(raw) == 0 {
		return nil, domain.UnexpectedResponse("graphite render", ErrNoData)
	}

	out := make([]series, 0, len(raw))
	for _, r := range raw {
		s := series{Target: r.Target}
		for _, point := range r.Datapoints {
			if point[0] == nil || point[1] == nil {
				continue
			}
			ts := int64(*point[1])
			if len(s.Data) == 0 {
				s.Start = ts
			}
			s.Data = append(s.Data, *point[0])
			s.End = ts
		}
		if len(s.Data) > 0 {
			out = append(out, s)
		}
	}

	if len(out) == 0 {
		return nil, domain.UnexpectedResponse("graphite render", errors.New("no data for time period and/or target"))
	}
	return out, nil
}
