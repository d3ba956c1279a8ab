package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Probekit/internal/config"
	"Probekit/internal/domain"
)

// APIClient talks to the monitoring server HTTP API.
type APIClient struct {
	baseURL  string
	user     string
	password string
	client   *http.Client
}

func NewAPIClient(cfg config.APIConfig, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL:  cfg.BaseURL(),
		user:     cfg.User,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
	}
}

// StashExists reports whether a stash is stored under path.
func (a *APIClient) StashExists(ctx context.Context, path string) (bool, error) {
	resp, err := a.do(ctx, http.MethodGet, "/stashes/"+strings.TrimPrefix(path, "/"), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, domain.UnexpectedResponse("get stash", fmt.Errorf("%w: status %d", ErrAPIRequest, resp.StatusCode))
	}
}

// CreateStash stores content under path.
func (a *APIClient) CreateStash(ctx context.Context, path string, content interface{}) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal stash: %w", err)
	}
	return a.expectSuccess(ctx, http.MethodPost, "/stashes/"+strings.TrimPrefix(path, "/"), data)
}

// EventExists reports whether the server holds an open event for client/check.
func (a *APIClient) EventExists(ctx context.Context, client, check string) (bool, error) {
	path := fmt.Sprintf("/events/%s/%s", url.PathEscape(client), url.PathEscape(check))
	resp, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, domain.UnexpectedResponse("get event", fmt.Errorf("%w: status %d", ErrAPIRequest, resp.StatusCode))
	}
}

// DeleteEvent resolves the event for client/check on the server.
func (a *APIClient) DeleteEvent(ctx context.Context, client, check string) error {
	path := fmt.Sprintf("/events/%s/%s", url.PathEscape(client), url.PathEscape(check))
	return a.expectSuccess(ctx, http.MethodDelete, path, nil)
}

// Stash is one entry of the stash listing.
type Stash struct {
	Path    string                 `json:"path"`
	Content map[string]interface{} `json:"content"`
	Expire  int64                  `json:"expire,omitempty"`
}

// Stashes lists every stash stored on the server.
func (a *APIClient) Stashes(ctx context.Context) ([]Stash, error) {
	resp, err := a.do(ctx, http.MethodGet, "/stashes", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.UnexpectedResponse("list stashes", fmt.Errorf("%w: status %d", ErrAPIRequest, resp.StatusCode))
	}

	var stashes []Stash
	if err := json.NewDecoder(resp.Body).Decode(&stashes); err != nil {
		return nil, domain.UnexpectedResponse("decode stashes", err)
	}
	return stashes, nil
}

func (a *APIClient) DeleteStash(ctx context.Context, path string) error {
	return a.expectSuccess(ctx, http.MethodDelete, "/stashes/"+strings.TrimPrefix(path, "/"), nil)
}

// ResolveEvent asks the server to resolve client/check through POST /resolve.
func (a *APIClient) ResolveEvent(ctx context.Context, client, check string) error {
	data, err := json.Marshal(map[string]string{"client": client, "check": check})
	if err != nil {
		return fmt.Errorf("failed to marshal resolve request: %w", err)
	}
	return a.expectSuccess(ctx, http.MethodPost, "/resolve", data)
}

func (a *APIClient) expectSuccess(ctx context.Context, method, path string, body []byte) error {
	resp, err := a.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return domain.UnexpectedResponse(method+" "+path, fmt.Errorf("%w: status %d", ErrAPIRequest, resp.StatusCode))
	}
	return nil
}

func (a *APIClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, domain.InvalidConfig("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.user != "" && a.password != "" {
		req.SetBasicAuth(a.user, a.password)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.Classify("monitoring api", err)
	}
	return resp, nil
}
