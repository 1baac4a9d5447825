package models

import "time"

const (
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"

	// SubscriptionStatusNone is the Account-level status before any paid
	// relationship exists. It never appears on a Subscription row.
	SubscriptionStatusNone = "none"
)

// Subscription mirrors the billing provider's subscription state for one
// account. It is written exclusively by the reconciler; LastAppliedEventAt is
// the monotonic ordering guard against stale webhook redeliveries.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	AccountID              uint       `gorm:"not null;index" json:"account_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_provider_sub" json:"provider_subscription_id"`
	PlanID                 string     `gorm:"type:varchar(50);not null;default:'free'" json:"plan_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAt               *time.Time `gorm:"type:timestamp;default:null" json:"cancel_at,omitempty"`
	LastAppliedEventAt     time.Time  `gorm:"type:timestamp;not null" json:"last_applied_event_at"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the subscription reached its terminal state. A
// canceled subscription is never reopened; a fresh checkout creates a new row.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCanceled
}
