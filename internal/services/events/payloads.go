package events

import "time"

// AlarmTriggered is the payload on TopicAlarmTriggered
type AlarmTriggered struct {
	EventID             string    `json:"event_id"`
	CodeID              string    `json:"code_id"`
	Email               string    `json:"email"`
	FiredAtUTC          time.Time `json:"fired_at_utc"`
	OccurrenceLocalDate string    `json:"occurrence_local_date"`
	Timezone            string    `json:"timezone"`
	LocalTime           string    `json:"local_time"`
}

// EmailRequest is the payload on TopicEmailRequest
type EmailRequest struct {
	EventID             string    `json:"event_id"`
	CodeID              string    `json:"code_id"`
	Email               string    `json:"email"`
	Description         string    `json:"description,omitempty"`
	FiredAtUTC          time.Time `json:"fired_at_utc"`
	OccurrenceLocalDate string    `json:"occurrence_local_date"`
}

// AlarmChanged is the payload on TopicAlarmChanged
type AlarmChanged struct {
	EventID string `json:"event_id"`
	CodeID  string `json:"code_id"`
	Change  string `json:"change"`
}
