package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"Probekit/internal/domain"
)

// SocketResult is a check result submitted to the local client socket.
type SocketResult struct {
	Name     string        `json:"name"`
	Output   string        `json:"output"`
	Status   domain.Status `json:"status"`
	Type     string        `json:"type,omitempty"`
	Handlers []string      `json:"handlers,omitempty"`

	Extra map[string]interface{} `json:"-"`
}

func (r SocketResult) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(r.Extra)+5)
	for k, v := range r.Extra {
		doc[k] = v
	}
	doc["name"] = r.Name
	doc["output"] = r.Output
	doc["status"] = r.Status.ExitCode()
	if r.Type != "" {
		doc["type"] = r.Type
	}
	if len(r.Handlers) > 0 {
		doc["handlers"] = r.Handlers
	}
	return json.Marshal(doc)
}

// SocketClient submits external results to the monitoring client's TCP input.
type SocketClient struct {
	address string
	timeout time.Duration
}

func NewSocketClient(address string, timeout time.Duration) *SocketClient {
	return &SocketClient{address: address, timeout: timeout}
}

func (s *SocketClient) Send(ctx context.Context, result SocketResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return domain.Classify("client socket", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(payload); err != nil {
		return domain.Classify("client socket write", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}

	buf := make([]byte, 64)
	n, _ := conn.Read(buf)
	reply := strings.TrimSpace(string(buf[:n]))
	if reply != "" && reply != "ok" {
		return fmt.Errorf("%w: %s", ErrSocketRejected, reply)
	}
	return nil
}
