package domain

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle state of an SMS message.
// The zero value is not a valid status.
type Status uint8

const (
	StatusPending Status = iota + 1 // Persisted, outcome not yet reported
	StatusSent                      // Delivery reported successful
	StatusFailed                    // Queueing or delivery failed
)

var statusNames = map[Status]string{
	StatusPending: "PENDING",
	StatusSent:    "SENT",
	StatusFailed:  "FAILED",
}

// ParseStatus maps the wire name of a status to its value. Matching is
// case-insensitive; unknown names are rejected.
func ParseStatus(s string) (Status, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for st, name := range statusNames {
		if name == upper {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown message status %q", s)
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid message status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
