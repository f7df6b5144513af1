// Package events defines the bus topics, payloads, and the retrying
// publisher shared by the API and the scheduling daemons
package events

// Bus topics. Delivery is at-least-once; consumers dedup on event_id or on
// the (code_id, occurrence) pair
const (
	// TopicAlarmTriggered announces a claimed alarm firing
	TopicAlarmTriggered = "alarm.triggered"

	// TopicEmailRequest asks the mailer to deliver a wake-up email
	TopicEmailRequest = "email.request"

	// TopicAlarmChanged announces a create/update/cancel so running
	// schedulers refresh their index without waiting for reconcile
	TopicAlarmChanged = "alarm.changed"
)

// AlarmChanged kinds
const (
	ChangeCreated  = "created"
	ChangeUpdated  = "updated"
	ChangeCanceled = "canceled"
)
