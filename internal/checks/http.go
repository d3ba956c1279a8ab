package checks

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"Probekit/internal/domain"

	"github.com/spf13/pflag"
)

const httpUserAgent = "Probekit-HTTP-Check"

type HTTPConfig struct {
	URL           string
	Host          string
	Port          int
	RequestURI    string
	Header        string
	SSL           bool
	Insecure      bool
	User          string
	Password      string
	CACert        string
	Cert          string
	ExpiryDays    int
	Pattern       string
	Timeout       time.Duration
	RedirectOK    bool
	RedirectTo    string
	ResponseBytes int
	RequireBytes  int
	ResponseCode  string
}

func (c *HTTPConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.URL, "url", "u", "", "A URL to connect to")
	fs.StringVarP(&c.Host, "host", "h", "", "A HOSTNAME to connect to")
	fs.IntVarP(&c.Port, "port", "P", 0, "Select another port")
	fs.StringVarP(&c.RequestURI, "request-uri", "p", "", "Specify a uri path")
	fs.StringVarP(&c.Header, "header", "H", "", "Send one or more comma-separated headers with the request")
	fs.BoolVarP(&c.SSL, "ssl", "s", false, "Enabling SSL connections")
	fs.BoolVarP(&c.Insecure, "insecure", "k", false, "Enabling insecure connections")
	fs.StringVarP(&c.User, "username", "U", "", "A username to connect as")
	fs.StringVarP(&c.Password, "password", "a", "", "A password to use for the username")
	fs.StringVarP(&c.CACert, "cacert", "C", "", "A CA Cert to use")
	fs.StringVarP(&c.Cert, "cert", "c", "", "A combined certificate and key file to present")
	fs.IntVarP(&c.ExpiryDays, "expiry", "e", 0, "Warn EXPIRE days before cert expires")
	fs.StringVarP(&c.Pattern, "query", "q", "", "Query for a specific pattern")
	fs.DurationVarP(&c.Timeout, "timeout", "t", 15*time.Second, "Set the timeout")
	fs.BoolVarP(&c.RedirectOK, "redirect-ok", "r", false, "Check if a redirect is ok")
	fs.StringVarP(&c.RedirectTo, "redirect-to", "R", "", "Redirect to another page")
	fs.IntVarP(&c.ResponseBytes, "response-bytes", "b", 0, "Print BYTES of the output")
	fs.IntVarP(&c.RequireBytes, "require-bytes", "B", -1, "Check the response contains exactly BYTES bytes")
	fs.StringVarP(&c.ResponseCode, "response-code", "", "", "Check for a specific response code")
}

type HTTPCheck struct {
	cfg     HTTPConfig
	target  string
	pattern *regexp.Regexp
	client  *http.Client
}

func NewHTTPCheck(cfg HTTPConfig) (*HTTPCheck, error) {
	target, err := cfg.target()
	if err != nil {
		return nil, err
	}

	var pattern *regexp.Regexp
	if cfg.Pattern != "" {
		pattern, err = regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, domain.InvalidConfig("invalid pattern %q: %v", cfg.Pattern, err)
		}
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.Insecure,
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, domain.InvalidConfig("failed to read CA cert: %v", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, domain.InvalidConfig("no certificates found in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.Cert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Cert)
		if err != nil {
			return nil, domain.InvalidConfig("failed to load client cert: %v", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			TLSHandshakeTimeout: 10 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HTTPCheck{cfg: cfg, target: target, pattern: pattern, client: client}, nil
}

func (c *HTTPConfig) target() (string, error) {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil || u.Host == "" {
			return "", domain.InvalidConfig("invalid URL %q", c.URL)
		}
		c.SSL = u.Scheme == "https"
		return u.String(), nil
	}

	if c.Host == "" || c.RequestURI == "" {
		return "", domain.InvalidConfig("No URL specified")
	}

	scheme := "http"
	port := c.Port
	if c.SSL {
		scheme = "https"
		if port == 0 {
			port = 443
		}
	} else if port == 0 {
		port = 80
	}

	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(c.Host, strconv.Itoa(port))}
	return u.String() + c.RequestURI, nil
}

func (c *HTTPCheck) Name() string { return "CheckHTTP" }

func (c *HTTPCheck) Timeout() time.Duration { return c.cfg.Timeout + time.Second }

func (c *HTTPCheck) Run(ctx context.Context) (domain.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target, nil)
	if err != nil {
		return domain.Result{}, domain.InvalidConfig("failed to create request: %v", err)
	}

	req.Header.Set("User-Agent", httpUserAgent)
	if c.cfg.User != "" && c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}
	for key, value := range parseHeaders(c.cfg.Header) {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if domain.KindOf(err) == domain.KindTimeout {
			return domain.Critical("Request timed out"), nil
		}
		return domain.Critical("Request error: %v", err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Critical("Request error: %v", err), nil
	}

	return c.evaluate(resp, body), nil
}

func (c *HTTPCheck) evaluate(resp *http.Response, body []byte) domain.Result {
	code := strconv.Itoa(resp.StatusCode)
	size := len(body)

	extra := ""
	if c.cfg.ResponseBytes > 0 {
		n := c.cfg.ResponseBytes
		if n > size {
			n = size
		}
		extra = "\n" + string(body[:n])
	}

	if c.cfg.RequireBytes >= 0 && size != c.cfg.RequireBytes {
		return domain.Critical("Response was %d bytes instead of %d%s", size, c.cfg.RequireBytes, extra)
	}

	if expiry, ok := c.certExpiring(resp.TLS); ok {
		return domain.Warning("Certificate will expire %s", expiry.Format(time.RFC3339))
	}

	result, failed := c.classify(resp, body, code, extra)
	if failed || c.cfg.ResponseCode == "" {
		return result
	}
	if c.cfg.ResponseCode == code {
		return domain.OK("%s, %d bytes%s", code, size, extra)
	}
	return domain.Critical("%s%s", code, extra)
}

// classify judges the response by status class. failed is set for pattern
// and redirect mismatches, which stand even when a response code is expected.
func (c *HTTPCheck) classify(resp *http.Response, body []byte, code, extra string) (domain.Result, bool) {
	size := len(body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if c.cfg.RedirectTo != "" {
			return domain.Critical("Expected redirect to %s but got %s%s", c.cfg.RedirectTo, code, extra), true
		}
		if c.pattern != nil {
			if c.pattern.Match(body) {
				return domain.OK("%s, found /%s/ in %d bytes%s", code, c.cfg.Pattern, size, extra), false
			}
			preview := body
			if len(preview) > 200 {
				preview = preview[:200]
			}
			return domain.Critical("%s, did not find /%s/ in %d bytes: %s...", code, c.cfg.Pattern, size, preview), true
		}
		return domain.OK("%s, %d bytes%s", code, size, extra), false

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		if c.cfg.RedirectOK {
			return domain.OK("%s, %d bytes%s", code, size, extra), false
		}
		if c.cfg.RedirectTo != "" {
			location := resp.Header.Get("Location")
			if location == c.cfg.RedirectTo {
				return domain.OK("%s found redirect to %s%s", code, location, extra), false
			}
			return domain.Critical("Expected redirect to %s instead redirected to %s%s", c.cfg.RedirectTo, location, extra), true
		}
		return domain.Warning("%s%s", code, extra), false

	case resp.StatusCode >= 400 && resp.StatusCode < 600:
		return domain.Critical("%s%s", code, extra), false

	default:
		return domain.Warning("%s%s", code, extra), false
	}
}

func (c *HTTPCheck) certExpiring(state *tls.ConnectionState) (time.Time, bool) {
	if c.cfg.ExpiryDays <= 0 || state == nil || len(state.PeerCertificates) == 0 {
		return time.Time{}, false
	}

	warnAt := time.Now().Add(time.Duration(c.cfg.ExpiryDays) * 24 * time.Hour)
	for _, cert := range state.PeerCertificates {
		if !cert.NotAfter.After(warnAt) {
			return cert.NotAfter, true
		}
	}
	return time.Time{}, false
}

func (c *HTTPCheck) String() string {
	return fmt.Sprintf("%s %s", c.Name(), c.target)
}
