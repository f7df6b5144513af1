// Package domain holds the alarm model and contracts shared by transport,
// service, and the scheduling daemons
package domain

import "time"

// Status is the alarm lifecycle state
type Status string

// Alarm lifecycle states. Transitions are compare-and-set in the store so
// concurrent workers cannot double-fire
const (
	// StatusScheduled means the alarm is armed and indexed for firing
	StatusScheduled Status = "scheduled"

	// StatusTriggered means a worker claimed the alarm and is delivering it
	StatusTriggered Status = "triggered"

	// StatusCanceled means the owner turned the alarm off
	StatusCanceled Status = "canceled"

	// StatusFailed means delivery exhausted its retries
	StatusFailed Status = "failed"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusTriggered, StatusCanceled, StatusFailed:
		return true
	}
	return false
}

// Alarm is one registered alarm. LocalTime and Timezone are the source of
// truth; UTCTime is the materialized next firing instant derived from them
type Alarm struct {
	CodeID      string    `json:"code_id"`
	Email       string    `json:"email"`
	LocalTime   string    `json:"time"`
	Timezone    string    `json:"timezone"`
	DaysOfWeek  string    `json:"days_of_week,omitempty"`
	IsRecurring bool      `json:"is_recurring"`
	Status      Status    `json:"status"`
	UTCTime     time.Time `json:"utc_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CodeDescription is the human label attached to an alarm code
type CodeDescription struct {
	CodeID      string `json:"code_id"`
	Description string `json:"description"`
}
