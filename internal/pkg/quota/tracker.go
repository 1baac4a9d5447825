package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/docsmithhq/docsmith/app/models"
	"github.com/docsmithhq/docsmith/internal/pkg/entitlements"
)

// Result is the decision of one TryConsume call.
type Result struct {
	Allowed  bool
	Counter  *models.QuotaCounter
	Consumed int64
	Limit    int64
}

// Remaining returns the units left in the window after this decision.
func (r *Result) Remaining() int64 {
	if r.Consumed >= r.Limit {
		return 0
	}
	return r.Limit - r.Consumed
}

// Tracker maintains the rolling usage counters per account. Limits are
// denormalized from the entitlement catalog into the counter row at window
// creation, so increments never consult the resolver.
type Tracker struct {
	store Store
	now   func() time.Time
}

// NewTracker creates a tracker over the given store.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// TryConsume atomically consumes amount units from the account's current
// window of the given kind. A denial means the increment would have exceeded
// the window limit.
func (t *Tracker) TryConsume(ctx context.Context, account *models.Account, kind string, amount int64) (*Result, error) {
	counter, err := t.currentCounter(ctx, account, kind)
	if err != nil {
		return nil, err
	}

	allowed, err := t.store.ConsumeIfUnder(ctx, counter.ID, amount)
	if err != nil {
		return nil, err
	}

	consumed := counter.Consumed
	if allowed {
		consumed += amount
	}
	return &Result{
		Allowed:  allowed,
		Counter:  counter,
		Consumed: consumed,
		Limit:    counter.QuotaLimit,
	}, nil
}

// Check reports whether the account's current window of the given kind still
// has room, without consuming anything. The gate uses this before admitting
// an operation; the actual consumption happens after downstream success.
func (t *Tracker) Check(ctx context.Context, account *models.Account, kind string) (bool, error) {
	counter, err := t.currentCounter(ctx, account, kind)
	if err != nil {
		return false, err
	}
	return counter.Remaining() > 0, nil
}

// Usage returns the current daily and monthly counters for an account,
// creating the windows if they do not exist yet.
func (t *Tracker) Usage(ctx context.Context, account *models.Account) (daily, monthly *models.QuotaCounter, err error) {
	daily, err = t.currentCounter(ctx, account, models.QuotaWindowDaily)
	if err != nil {
		return nil, nil, err
	}
	monthly, err = t.currentCounter(ctx, account, models.QuotaWindowMonthly)
	if err != nil {
		return nil, nil, err
	}
	return daily, monthly, nil
}

func (t *Tracker) currentCounter(ctx context.Context, account *models.Account, kind string) (*models.QuotaCounter, error) {
	now := t.now()
	profile := entitlements.ProfileFor(account.Tier)

	var start, end time.Time
	var limit int64
	switch kind {
	case models.QuotaWindowDaily:
		start, end = DailyBounds(now)
		limit = profile.DailyLimit
	case models.QuotaWindowMonthly:
		start, end = MonthlyBounds(now, account.CurrentPeriodStart)
		limit = profile.MonthlyLimit
	default:
		return nil, fmt.Errorf("unknown quota window kind: %s", kind)
	}

	return t.store.EnsureCounter(ctx, account.ID, kind, start, end, limit)
}
