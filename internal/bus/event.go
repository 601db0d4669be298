package bus

import "time"

// Event kinds published inside the dashboard process. Subscribers filter by prefix,
// so "doc." receives every document change and "dashboard." every controller event.
const (
	DocChanged   = "doc.changed"
	PhaseChanged = "dashboard.phase_changed"
	NoticePosted = "notify.posted"
	OutboxFailed = "outbox.failed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
