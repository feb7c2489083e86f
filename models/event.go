package models

import "time"

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"

	// EventRefresh tells subscribers that events may have been lost (stream
	// reconnect, queue overflow) and the full snapshot must be re-fetched.
	EventRefresh EventType = "refresh"
)

// ChangeEvent is one committed mutation on a backing collection. Fields
// carries the filterable attributes of the record (project id, recipient id)
// so channel filters do not need to understand every record type.
type ChangeEvent struct {
	Type       EventType
	Collection string
	ID         string
	CreatedAt  time.Time
	Record     any
	Fields     map[string]string
}
