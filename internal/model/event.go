package model

import "strings"

// StatusKind tells which schema revision an event's status came from.
type StatusKind int

const (
	StatusUnset StatusKind = iota
	StatusFlag
	StatusEnum
)

// Enum status values used by the newer event schema.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusMissed    = "MISSED"
)

// Status is either a boolean active flag (older schema) or an enum value
// (newer schema). The zero value means the record carried no status.
type Status struct {
	Kind   StatusKind
	Active bool
	Value  string
}

// FlagStatus returns a boolean-schema status.
func FlagStatus(active bool) Status {
	return Status{Kind: StatusFlag, Active: active}
}

// EnumStatus returns an enum-schema status. The value is upper-cased.
func EnumStatus(v string) Status {
	return Status{Kind: StatusEnum, Value: strings.ToUpper(strings.TrimSpace(v))}
}

func (s Status) String() string {
	switch s.Kind {
	case StatusFlag:
		if s.Active {
			return "true"
		}
		return "false"
	case StatusEnum:
		return s.Value
	default:
		return ""
	}
}

// Event is the canonical event record the reminder engine works on.
// Date and Time keep their raw serialized form; the start instant is
// derived from them on every tick.
type Event struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location,omitempty"`
	Status   Status `json:"-"`
}

// IsActive reports whether the event has not been explicitly deactivated.
// Only a boolean false status deactivates; enum values never do.
func IsActive(e Event) bool {
	return e.Status.Kind != StatusFlag || e.Status.Active
}
