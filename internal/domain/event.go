package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"Probekit/pkg/uuidutil"
)

type Action string

const (
	ActionCreate   Action = "create"
	ActionResolve  Action = "resolve"
	ActionFlapping Action = "flapping"
)

type Client struct {
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Subscriptions []string `json:"subscriptions"`
	Timestamp     int64    `json:"timestamp,omitempty"`
}

type Check struct {
	Name         string   `json:"name"`
	Command      string   `json:"command,omitempty"`
	Output       string   `json:"output"`
	Status       Status   `json:"status"`
	Issued       int64    `json:"issued"`
	Interval     int      `json:"interval,omitempty"`
	Refresh      int      `json:"refresh,omitempty"`
	Occurrences  int      `json:"occurrences,omitempty"`
	Handlers     []string `json:"handlers,omitempty"`
	Type         string   `json:"type,omitempty"`
	Notification string   `json:"notification,omitempty"`
	Alert        *bool    `json:"alert,omitempty"`
	Flapping     bool     `json:"flapping,omitempty"`
	TTL          int      `json:"ttl,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Event is the JSON document a handler receives on stdin.
type Event struct {
	ID           string `json:"id"`
	Action       Action `json:"action"`
	Occurrences  int    `json:"occurrences"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	Notification string `json:"notification,omitempty"`
	Client       Client `json:"client"`
	Check        Check  `json:"check"`
}

func DecodeEvent(r io.Reader) (*Event, error) {
	var event Event
	if err := json.NewDecoder(r).Decode(&event); err != nil {
		return nil, InvalidConfig("failed to decode event: %v", err)
	}

	if event.Client.Name == "" {
		return nil, InvalidConfig("event is missing client name")
	}
	if event.Check.Name == "" {
		return nil, InvalidConfig("event is missing check name")
	}

	if event.Action == "" {
		event.Action = ActionCreate
	}
	event.ID = uuidutil.Ensure(event.ID)

	return &event, nil
}

func (e *Event) IncidentKey() string {
	return fmt.Sprintf("%s/%s", e.Client.Name, e.Check.Name)
}

func (e *Event) IsResolve() bool {
	return e.Action == ActionResolve
}

func (e *Event) ActionLabel() string {
	if e.IsResolve() {
		return "RESOLVED"
	}
	return "ALERT"
}

func (e *Event) IsMetric() bool {
	return e.Check.Type == "metric"
}

func (e *Event) Description() string {
	if e.Notification != "" {
		return e.Notification
	}
	if e.Check.Notification != "" {
		return e.Check.Notification
	}
	return strings.Join([]string{e.Client.Name, e.Check.Name, strings.TrimSpace(e.Check.Output)}, " : ")
}

func (e *Event) IssuedAt() time.Time {
	return time.Unix(e.Check.Issued, 0)
}
