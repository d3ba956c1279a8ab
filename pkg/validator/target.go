package validator

import (
	"net"
	"net/url"
	"strings"
)

// ValidateTarget accepts host:port, an http(s) URL or a bare hostname.
func ValidateTarget(target string) bool {
	if target == "" {
		return false
	}

	if _, _, err := net.SplitHostPort(target); err == nil {
		return true
	}

	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return u.Host != ""
	}

	return !strings.Contains(target, "://") && !strings.ContainsAny(target, " /")
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
