package models

import "time"

const (
	QuotaWindowDaily   = "daily"
	QuotaWindowMonthly = "monthly"
)

// QuotaCounter is one usage window for one account. The uniqueness constraint
// on (account_id, window_kind, window_start) resolves concurrent lazy window
// creation; Consumed is only ever mutated through the conditional
// increment-if-under-limit UPDATE in the quota store.
type QuotaCounter struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"not null;uniqueIndex:ux_quota_counters_window,priority:1" json:"account_id"`
	WindowKind  string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_quota_counters_window,priority:2" json:"window_kind"`
	WindowStart time.Time `gorm:"type:timestamp;not null;uniqueIndex:ux_quota_counters_window,priority:3" json:"window_start"`
	WindowEnd   time.Time `gorm:"type:timestamp;not null" json:"window_end"`
	Consumed    int64     `gorm:"not null;default:0" json:"consumed"`
	QuotaLimit  int64     `gorm:"column:quota_limit;not null" json:"quota_limit"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Remaining returns how many units are left in the window.
func (q *QuotaCounter) Remaining() int64 {
	if q.Consumed >= q.QuotaLimit {
		return 0
	}
	return q.QuotaLimit - q.Consumed
}

// Expired reports whether the window has ended relative to now.
func (q *QuotaCounter) Expired(now time.Time) bool {
	return !now.Before(q.WindowEnd)
}
