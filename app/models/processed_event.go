package models

import "time"

const (
	EventOutcomeProcessing       = "processing"
	EventOutcomeApplied          = "applied"
	EventOutcomeIgnoredStale     = "ignored_stale"
	EventOutcomeIgnoredDuplicate = "ignored_duplicate"
	EventOutcomeFailed           = "failed"
)

// ProcessedEvent is the event-ledger row for one externally delivered billing
// notification. The uniqueness constraint on ProviderEventID is the
// idempotency backstop: concurrent redeliveries race on the insert and
// exactly one wins.
type ProcessedEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ProviderEventID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_processed_events_provider_event" json:"provider_event_id"`
	EventType       string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ReceivedAt      time.Time `gorm:"type:timestamp;not null" json:"received_at"`
	Outcome         string    `gorm:"type:varchar(32);not null;default:'processing';index" json:"outcome"`
	RetryCount      int       `gorm:"not null;default:0" json:"retry_count"`
	ProcessingError string    `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the ledger row already carries a final outcome.
// A failed row is not terminal: provider redelivery retries it.
func (e *ProcessedEvent) IsTerminal() bool {
	switch e.Outcome {
	case EventOutcomeApplied, EventOutcomeIgnoredStale, EventOutcomeIgnoredDuplicate:
		return true
	default:
		return false
	}
}
