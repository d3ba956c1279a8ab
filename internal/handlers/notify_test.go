package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"Probekit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackHandler(t *testing.T) {
	var payload slackPayload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("payload")), &payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, err := NewSlackHandler(SlackSettings{
		WebhookURL:    srv.URL + "/hooks/abc",
		MessagePrefix: "@ops",
		BotName:       "probekit",
		Surround:      "*",
	}, time.Second)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), testEvent()))

	assert.Equal(t, "application/x-www-form-urlencoded", contentType)
	assert.Equal(t, "probekit", payload.Username)
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "#FF0000", payload.Attachments[0].Color)
	assert.Equal(t, "@ops *web01/check_disk: CheckDisk CRITICAL: /data 97% : 10.0.0.5 : web,base*", payload.Attachments[0].Text)
}

func TestSlackHandlerNotificationAndFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h, err := NewSlackHandler(SlackSettings{WebhookURL: srv.URL}, time.Second)
	require.NoError(t, err)

	event := testEvent()
	event.Notification = "disk is full"
	event.Check.Status = domain.StatusWarning
	p := h.payload(event)
	assert.Equal(t, "web01/check_disk: disk is full", p.Attachments[0].Text)
	assert.Equal(t, "#FFCC00", p.Attachments[0].Color)
	assert.Empty(t, p.Username)

	err = h.Handle(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnexpectedResponse, domain.KindOf(err))

	_, err = NewSlackHandler(SlackSettings{}, time.Second)
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))
}

func TestPagerdutyHandler(t *testing.T) {
	var got []map[string]interface{}
	reply := `{"status":"success","incident_key":"web01/check_disk"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body)
		_, _ = w.Write([]byte(reply))
	}))
	defer srv.Close()

	h, err := NewPagerdutyHandler(PagerdutySettings{APIKey: "key", URL: srv.URL})
	require.NoError(t, err)

	event := testEvent()
	require.NoError(t, h.Handle(context.Background(), event))

	event.Action = domain.ActionResolve
	require.NoError(t, h.Handle(context.Background(), event))

	require.Len(t, got, 2)
	assert.Equal(t, "trigger", got[0]["event_type"])
	assert.Equal(t, "key", got[0]["service_key"])
	assert.Equal(t, "web01/check_disk", got[0]["incident_key"])
	assert.Equal(t, "web01 : check_disk : CheckDisk CRITICAL: /data 97%", got[0]["description"])
	assert.NotNil(t, got[0]["details"])
	assert.Equal(t, "resolve", got[1]["event_type"])
	assert.Nil(t, got[1]["details"])

	reply = `{"status":"invalid event","message":"Event object is invalid"}`
	err = h.Handle(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Event object is invalid")
	assert.Equal(t, 10*time.Second, h.Timeout())
}

func TestOpsgenieHandler(t *testing.T) {
	var paths []string
	var bodies []opsgenieRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body opsgenieRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		if body.Alias == "web01/missing" {
			_, _ = w.Write([]byte(`{"code":404,"error":"alert not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":200}`))
	}))
	defer srv.Close()

	h, err := NewOpsgenieHandler(OpsgenieSettings{CustomerKey: "ck", Recipients: "ops", URL: srv.URL + "/v1/json/alert/"})
	require.NoError(t, err)

	event := testEvent()
	require.NoError(t, h.Handle(context.Background(), event))
	event.Action = domain.ActionResolve
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, []string{"/v1/json/alert", "/v1/json/alert/close"}, paths)
	assert.Equal(t, opsgenieRequest{
		CustomerKey: "ck",
		Recipients:  "ops",
		Alias:       "web01/check_disk",
		Message:     "web01 : check_disk : CheckDisk CRITICAL: /data 97%",
	}, bodies[0])
	assert.Empty(t, bodies[1].Message)

	event.Check.Name = "missing"
	err = h.Handle(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert not found")
}

// smtpServer accepts one session and returns the DATA section it received.
func smtpServer(t *testing.T) (string, int, <-chan string, <-chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	data := make(chan string, 1)
	rcpts := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
		reply("220 localhost ESMTP")

		var to []string
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case strings.HasPrefix(cmd, "MAIL FROM"):
				reply("250 OK")
			case strings.HasPrefix(cmd, "RCPT TO"):
				to = append(to, strings.TrimSpace(line[len("RCPT TO:"):]))
				reply("250 OK")
			case cmd == "DATA":
				reply("354 go ahead")
				var b strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					b.WriteString(l)
				}
				data <- b.String()
				rcpts <- to
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 OK")
			}
		}
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return host, p, data, rcpts
}

func TestMailerHandler(t *testing.T) {
	host, port, data, rcpts := smtpServer(t)

	cfg := DefaultMailerSettings()
	cfg.SMTPAddress = host
	cfg.SMTPPort = port
	cfg.MailTo = "ops@example.com, dev@example.com"
	cfg.MailFrom = "probekit@example.com"

	h, err := NewMailerHandler(cfg)
	require.NoError(t, err)

	event := testEvent()
	event.Check.Notification = "disk almost full"
	event.Occurrences = 3

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Handle(ctx, event))

	msg := <-data
	assert.Contains(t, msg, "Subject: ALERT - web01/check_disk: disk almost full\r\n")
	assert.Contains(t, msg, "To: ops@example.com, dev@example.com\r\n")
	assert.Contains(t, msg, "CheckDisk CRITICAL: /data 97%\r\n")
	assert.Contains(t, msg, "Host: web01\r\n")
	assert.Contains(t, msg, "Check Name:  check_disk\r\n")
	assert.Contains(t, msg, "Status:  2\r\n")
	assert.Contains(t, msg, "Occurrences:  3\r\n")
	assert.Equal(t, []string{"<ops@example.com>", "<dev@example.com>"}, <-rcpts)
}

func TestMailerSubjectAndConfig(t *testing.T) {
	event := testEvent()
	event.Action = domain.ActionResolve
	event.Notification = "back to normal"
	assert.Equal(t, "RESOLVED - web01/check_disk: back to normal", mailSubject(event))

	_, err := NewMailerHandler(DefaultMailerSettings())
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))
}

func TestMailerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	p, _ := strconv.Atoi(port)

	cfg := DefaultMailerSettings()
	cfg.SMTPAddress = "127.0.0.1"
	cfg.SMTPPort = p
	cfg.MailTo = "ops@example.com"
	cfg.MailFrom = "probekit@example.com"

	h, err := NewMailerHandler(cfg)
	require.NoError(t, err)

	err = h.Handle(context.Background(), testEvent())
	require.Error(t, err)
	assert.Equal(t, domain.KindConnectionFailed, domain.KindOf(err))
}

type fakeQueue struct {
	lists  map[string][]interface{}
	closed bool
}

func (q *fakeQueue) Push(ctx context.Context, list string, payload interface{}) error {
	if q.lists == nil {
		q.lists = map[string][]interface{}{}
	}
	q.lists[list] = append(q.lists[list], payload)
	return nil
}

func (q *fakeQueue) Close() error {
	q.closed = true
	return nil
}

func TestLogstashHandlerRedis(t *testing.T) {
	queue := &fakeQueue{}
	cfg := DefaultLogstashSettings()
	cfg.Type = "sensu"

	h, err := NewLogstashHandler(cfg, queue, "monitor01")
	require.NoError(t, err)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	event := testEvent()
	event.Action = domain.ActionResolve
	require.NoError(t, h.Handle(context.Background(), event))

	require.Len(t, queue.lists["logstash"], 1)
	msg, ok := queue.lists["logstash"][0].(logstashMessage)
	require.True(t, ok)
	assert.Equal(t, "2024-05-01T12:00:00Z", msg.Timestamp)
	assert.Equal(t, 1, msg.Version)
	assert.Equal(t, "monitor01", msg.Source)
	assert.Equal(t, []string{"sensu-RESOLVE"}, msg.Tags)
	assert.Equal(t, "web01", msg.Host)
	assert.Equal(t, int64(1700000000), msg.Issued)
	assert.Equal(t, "sensu", msg.Type)

	doc, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `"status":2`)
	assert.Contains(t, string(doc), `"action":"resolve"`)

	require.NoError(t, h.Close())
	assert.True(t, queue.closed)
}

func TestLogstashHandlerUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	host, port, _ := net.SplitHostPort(conn.LocalAddr().String())
	p, _ := strconv.Atoi(port)

	cfg := LogstashSettings{Server: host, Port: p, Output: "udp"}
	h, err := NewLogstashHandler(cfg, nil, "monitor01")
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), testEvent()))

	buf := make([]byte, 4096)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf[:n], &doc))
	assert.Equal(t, "check_disk", doc["check_name"])
	assert.Equal(t, []interface{}{"sensu-ALERT"}, doc["tags"])
	assert.NotContains(t, doc, "type")
	require.NoError(t, h.Close())
}

func TestLogstashHandlerConfig(t *testing.T) {
	_, err := NewLogstashHandler(DefaultLogstashSettings(), nil, "x")
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))

	_, err = NewLogstashHandler(LogstashSettings{Output: "kafka"}, nil, "x")
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))
}
