package tiergate

import (
	"context"

	"github.com/docsmithhq/docsmith/app/models"
	"github.com/docsmithhq/docsmith/internal/pkg/quota"
)

// Reason is the machine-readable cause of a denial. The UI layer maps these
// to user-facing messaging.
type Reason string

const (
	ReasonQuotaExceeded    Reason = "QuotaExceeded"
	ReasonRateLimited      Reason = "RateLimited"
	ReasonAccountSuspended Reason = "AccountSuspended"
)

// Decision is the gate's verdict for one operation. The gate never returns
// ambiguity to callers: either the operation is admitted or the reason says
// exactly why not.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Allow is the admitting decision.
var Allow = Decision{Allowed: true}

// Deny builds a denying decision with the given reason.
func Deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// UsageCommitter records quota consumption after the gated operation
// succeeded. In production this is the redis job queue; tests use a
// synchronous stand-in.
type UsageCommitter interface {
	CommitUsage(accountID uint, amount int64) error
}

// Gate is the request-time enforcement point in front of every quota-limited
// operation.
type Gate struct {
	tracker   *quota.Tracker
	committer UsageCommitter
}

// NewGate creates a gate over the given tracker and committer.
func NewGate(tracker *quota.Tracker, committer UsageCommitter) *Gate {
	return &Gate{tracker: tracker, committer: committer}
}

// Check decides whether the account may run a quota-limited operation right
// now. Soft-deleted and disabled accounts are denied without consulting the
// counters at all. The returned error is infrastructure-only (storage
// unreachable); every policy answer comes back as a Decision.
func (g *Gate) Check(ctx context.Context, account *models.Account) (Decision, error) {
	if account == nil || account.IsMarkedForDeletion() || !account.IsActive() {
		return Deny(ReasonAccountSuspended), nil
	}

	for _, kind := range []string{models.QuotaWindowDaily, models.QuotaWindowMonthly} {
		ok, err := g.tracker.Check(ctx, account, kind)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Deny(ReasonQuotaExceeded), nil
		}
	}
	return Allow, nil
}

// Commit records one unit of consumption after the operation completed. It
// runs off the request path; a failed downstream operation must never reach
// this.
func (g *Gate) Commit(accountID uint) error {
	return g.committer.CommitUsage(accountID, 1)
}
