package audit

import (
	"encoding/json"
	"time"
)

// Event is the kind of mutation an entry records.
type Event string

const (
	EventCreate Event = "CREATE"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
)

// LogEntry is one immutable audit record. Field, Before, and After are only
// set for UPDATE events; CREATE and DELETE carry no diff.
type LogEntry struct {
	ID        string          `json:"id"`
	Record    string          `json:"record"`
	Event     Event           `json:"event"`
	Field     string          `json:"field,omitempty"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	CreatedAt time.Time       `json:"created"`
}

// Change is a single whitelisted field whose value differs between two
// snapshots of a record.
type Change struct {
	Field  string
	Before interface{}
	After  interface{}
}
