package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is a check outcome. The integer value is also the process exit code.
type Status int

const (
	StatusOK       Status = 0
	StatusWarning  Status = 1
	StatusCritical Status = 2
	StatusUnknown  Status = 3
)

var statusNames = map[Status]string{
	StatusOK:       "OK",
	StatusWarning:  "WARNING",
	StatusCritical: "CRITICAL",
	StatusUnknown:  "UNKNOWN",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s Status) ExitCode() int {
	if s.Valid() {
		return int(s)
	}
	return int(StatusUnknown)
}

func (s Status) Valid() bool {
	return s >= StatusOK && s <= StatusUnknown
}

func StatusFromCode(code int) (Status, error) {
	s := Status(code)
	if !s.Valid() {
		return StatusUnknown, fmt.Errorf("invalid status code: %d", code)
	}
	return s, nil
}

// ParseStatus accepts a status name in any case or its numeric code.
func ParseStatus(value string) (Status, error) {
	value = strings.TrimSpace(value)
	if code, err := strconv.Atoi(value); err == nil {
		return StatusFromCode(code)
	}

	upper := strings.ToUpper(value)
	if upper == "WARN" {
		return StatusWarning, nil
	}
	if upper == "CRIT" {
		return StatusCritical, nil
	}
	for status, name := range statusNames {
		if name == upper {
			return status, nil
		}
	}
	return StatusUnknown, fmt.Errorf("invalid status: %q", value)
}

// Worst returns the more severe of two statuses.
func Worst(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ExitCode())
}

// UnmarshalJSON maps any code outside 0..3 to UNKNOWN.
func (s *Status) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("status must be an integer: %w", err)
	}
	if status, err := StatusFromCode(code); err == nil {
		*s = status
	} else {
		*s = StatusUnknown
	}
	return nil
}
