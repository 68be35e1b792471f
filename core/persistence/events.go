package persistence

import (
	"time"
)

// QueryEventType names an execution lifecycle event.
type QueryEventType string

const (
	QueryStart   QueryEventType = "query:start"
	QuerySuccess QueryEventType = "query:success"
	QueryFailed  QueryEventType = "query:failed"
	CursorRead   QueryEventType = "cursor:read"
	CursorDelete QueryEventType = "cursor:delete"
)

// QueryEvent is emitted on the executor's event bus while commands run.
type QueryEvent struct {
	Type      QueryEventType `json:"type"`
	QueryID   string         `json:"queryId"`            // Shared by every event of one execution.
	Index     string         `json:"index"`              // Index the command ran against.
	Command   string         `json:"command"`            // The command line, e.g. "FT.AGGREGATE idx * ...".
	Timestamp int64          `json:"timestamp"`          // Unix milliseconds.
	CursorID  int64          `json:"cursorId"`           // Cursor after the call; 0 once exhausted.
	Records   int            `json:"records"`            // Records received by this call, or in total on success.
	Duration  *int64         `json:"duration,omitempty"` // Milliseconds since the execution started, on terminal events.
	Error     *string        `json:"error,omitempty"`    // Error message of a failed execution.
}

func newEvent(typ QueryEventType, queryID, index, command string) QueryEvent {
	return QueryEvent{
		Type:      typ,
		QueryID:   queryID,
		Index:     index,
		Command:   command,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (e QueryEvent) finished(started time.Time) QueryEvent {
	d := time.Since(started).Milliseconds()
	e.Duration = &d
	return e
}

func (e QueryEvent) failed(started time.Time, err error) QueryEvent {
	msg := err.Error()
	e.Error = &msg
	return e.finished(started)
}
