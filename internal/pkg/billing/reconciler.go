package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/docsmithhq/docsmith/app/models"
	"github.com/docsmithhq/docsmith/internal/pkg/entitlements"
)

// Outcome is the terminal result of processing one webhook event.
type Outcome string

const (
	OutcomeApplied   = Outcome(models.EventOutcomeApplied)
	OutcomeStale     = Outcome(models.EventOutcomeIgnoredStale)
	OutcomeDuplicate = Outcome(models.EventOutcomeIgnoredDuplicate)
	OutcomeFailed    = Outcome(models.EventOutcomeFailed)
)

// ShouldRedeliver reports whether the provider should retry this event.
func (o Outcome) ShouldRedeliver() bool {
	return o == OutcomeFailed
}

// Reconciler applies verified webhook events to the local subscription state.
// It is the single writer of Subscription rows and of the Account tier cache;
// every other component treats those as read-only snapshots.
type Reconciler struct {
	repo Repository
	now  func() time.Time
}

// NewReconciler creates a reconciler over the given repository.
func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{repo: repo, now: time.Now}
}

// Apply records the event in the ledger and, unless it is a duplicate or
// stale delivery, applies the state-machine transition. The transition and
// the ledger outcome commit in one transaction; if anything fails the ledger
// row is left as failed with an incremented retry counter and the provider's
// redelivery takes care of the rest. The caller's context carries the
// processing deadline and cancels in-flight queries.
func (r *Reconciler) Apply(ctx context.Context, ev *Event) (Outcome, error) {
	ledger := &models.ProcessedEvent{
		ProviderEventID: strings.TrimSpace(ev.ID),
		EventType:       ev.Type,
		ReceivedAt:      r.now(),
		Outcome:         models.EventOutcomeProcessing,
	}
	created, stored, err := r.repo.CreateEventIfNotExists(ctx, ledger)
	if err != nil {
		return OutcomeFailed, err
	}
	if !created {
		if stored.IsTerminal() {
			// Exact redelivery of an event we already finished with. The
			// ledger row is never mutated once terminal.
			return OutcomeDuplicate, nil
		}
		if stored.Outcome == models.EventOutcomeProcessing {
			// A concurrent delivery of the same event holds the row; that
			// winner finalizes it. Only failed rows fall through to a retry.
			return OutcomeDuplicate, nil
		}
	}

	var outcome Outcome
	err = r.repo.Transaction(ctx, func(tx Repository) error {
		out, applyErr := r.applyEvent(ctx, tx, ev)
		if applyErr != nil {
			return applyErr
		}
		outcome = out
		return tx.FinalizeEvent(ctx, stored.ID, string(out), "")
	})
	if err != nil {
		// Detached context: the failure must be recorded even when the
		// processing deadline itself caused the error.
		if recErr := r.repo.RecordEventFailure(context.WithoutCancel(ctx), stored.ID, err.Error()); recErr != nil {
			return OutcomeFailed, recErr
		}
		return OutcomeFailed, err
	}
	return outcome, nil
}

// ResyncAccount recomputes the denormalized entitlement cache from stored
// subscription state, outside the webhook path. Used by the manual resync
// endpoint and admin tooling.
func (r *Reconciler) ResyncAccount(ctx context.Context, accountID uint) (string, error) {
	var tier string
	err := r.repo.Transaction(ctx, func(tx Repository) error {
		account, err := tx.GetAccountByID(ctx, accountID)
		if err != nil {
			return err
		}
		if account.BillingSubscriptionRef == nil {
			profile := entitlements.Resolve("", models.SubscriptionStatusNone)
			account.Tier = string(profile.Plan)
			account.SubscriptionStatus = models.SubscriptionStatusNone
			tier = account.Tier
			return tx.SaveAccount(ctx, account)
		}
		sub, err := tx.GetSubscriptionByProviderRef(ctx, *account.BillingSubscriptionRef)
		if err != nil {
			return err
		}
		if err := r.syncAccount(ctx, tx, account, sub); err != nil {
			return err
		}
		tier = account.Tier
		return nil
	})
	return tier, err
}

// OverridePlan pins an account to a catalog plan from admin tooling. Paid
// accounts get the plan rewritten on their subscription row and the cache
// resynced from it; accounts without a subscription get the tier cache set
// directly. Either way the write happens here, keeping the reconciler the
// only writer of Account.Tier.
func (r *Reconciler) OverridePlan(ctx context.Context, accountID uint, plan string) (string, error) {
	pinned := string(entitlements.NormalizePlan(plan))

	var tier string
	err := r.repo.Transaction(ctx, func(tx Repository) error {
		account, err := tx.GetAccountByID(ctx, accountID)
		if err != nil {
			return err
		}
		if account.BillingSubscriptionRef == nil {
			account.Tier = pinned
			tier = account.Tier
			return tx.SaveAccount(ctx, account)
		}
		sub, err := tx.GetSubscriptionByProviderRef(ctx, *account.BillingSubscriptionRef)
		if err != nil {
			return err
		}
		sub.PlanID = pinned
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}
		if err := r.syncAccount(ctx, tx, account, sub); err != nil {
			return err
		}
		tier = account.Tier
		return nil
	})
	return tier, err
}

func (r *Reconciler) applyEvent(ctx context.Context, tx Repository, ev *Event) (Outcome, error) {
	if ev.Type == EventCheckoutCompleted {
		return r.applyCheckout(ctx, tx, ev)
	}

	obj := ev.Data.Object
	if strings.TrimSpace(obj.SubscriptionID) == "" {
		return "", fmt.Errorf("event %s missing subscription reference", ev.ID)
	}

	sub, err := tx.GetSubscriptionByProviderRef(ctx, obj.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Checkout event not processed yet; fail so the provider
			// redelivers after the subscription exists locally.
			return "", fmt.Errorf("no local subscription for %s", obj.SubscriptionID)
		}
		return "", err
	}

	// Ordering guard: an event older than the last applied one is a
	// historical redelivery and must not overwrite newer state.
	if ev.OccurredAt().Before(sub.LastAppliedEventAt) {
		return OutcomeStale, nil
	}

	switch ev.Type {
	case EventPaymentSucceeded:
		return r.applyPaymentSucceeded(ctx, tx, ev, sub)
	case EventPaymentFailed:
		return r.applyPaymentFailed(ctx, tx, ev, sub)
	case EventSubscriptionUpdated:
		return r.applySubscriptionUpdated(ctx, tx, ev, sub)
	case EventSubscriptionDeleted:
		return r.applySubscriptionDeleted(ctx, tx, ev, sub)
	default:
		return "", fmt.Errorf("unsupported event type: %s", ev.Type)
	}
}

func (r *Reconciler) applyCheckout(ctx context.Context, tx Repository, ev *Event) (Outcome, error) {
	obj := ev.Data.Object
	if strings.TrimSpace(obj.SubscriptionID) == "" {
		return "", fmt.Errorf("checkout event %s missing subscription reference", ev.ID)
	}

	if _, err := tx.GetSubscriptionByProviderRef(ctx, obj.SubscriptionID); err == nil {
		// A previous checkout event already attached this subscription.
		return OutcomeDuplicate, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	account, err := r.lookupCheckoutAccount(ctx, tx, obj)
	if err != nil {
		return "", err
	}

	status := models.SubscriptionStatusActive
	if strings.EqualFold(strings.TrimSpace(obj.PaymentStatus), "failed") {
		// First payment attempt failed synchronously during checkout.
		status = models.SubscriptionStatusIncomplete
	}

	sub := &models.Subscription{
		AccountID:              account.ID,
		ProviderSubscriptionID: strings.TrimSpace(obj.SubscriptionID),
		PlanID:                 strings.TrimSpace(obj.PlanID),
		Status:                 status,
		CurrentPeriodStart:     unixTimePtr(obj.CurrentPeriodStart),
		CurrentPeriodEnd:       unixTimePtr(obj.CurrentPeriodEnd),
		LastAppliedEventAt:     ev.OccurredAt(),
	}
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return "", err
	}

	if ref := strings.TrimSpace(obj.CustomerID); ref != "" {
		account.BillingCustomerRef = &ref
	}
	subRef := sub.ProviderSubscriptionID
	account.BillingSubscriptionRef = &subRef

	if err := r.syncAccount(ctx, tx, account, sub); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (r *Reconciler) applyPaymentSucceeded(ctx context.Context, tx Repository, ev *Event, sub *models.Subscription) (Outcome, error) {
	if sub.IsTerminal() {
		// Canceled subscriptions are never reopened.
		return OutcomeDuplicate, nil
	}
	if sub.Status == models.SubscriptionStatusPastDue || sub.Status == models.SubscriptionStatusIncomplete {
		sub.Status = models.SubscriptionStatusActive
	}
	r.refreshPeriod(sub, ev)
	return r.commitTransition(ctx, tx, ev, sub)
}

func (r *Reconciler) applyPaymentFailed(ctx context.Context, tx Repository, ev *Event, sub *models.Subscription) (Outcome, error) {
	if sub.IsTerminal() {
		return OutcomeDuplicate, nil
	}
	if sub.Status == models.SubscriptionStatusActive {
		// Grace period: no tier downgrade until explicit cancellation, the
		// provider owns payment retries.
		sub.Status = models.SubscriptionStatusPastDue
	}
	return r.commitTransition(ctx, tx, ev, sub)
}

func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, tx Repository, ev *Event, sub *models.Subscription) (Outcome, error) {
	if sub.IsTerminal() {
		return OutcomeDuplicate, nil
	}
	obj := ev.Data.Object

	if plan := strings.TrimSpace(obj.PlanID); plan != "" {
		sub.PlanID = plan
	}
	r.refreshPeriod(sub, ev)

	cancelAt := unixTimePtr(obj.CancelAt)
	if cancelAt == nil && obj.CancelAtPeriodEnd {
		cancelAt = sub.CurrentPeriodEnd
	}
	if cancelAt != nil {
		sub.CancelAt = cancelAt
	}

	// Scheduled cancellation whose effective date has passed behaves like an
	// explicit deletion event.
	if sub.CancelAt != nil && !sub.CancelAt.After(ev.OccurredAt()) {
		sub.Status = models.SubscriptionStatusCanceled
	}
	return r.commitTransition(ctx, tx, ev, sub)
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, tx Repository, ev *Event, sub *models.Subscription) (Outcome, error) {
	if sub.Status == models.SubscriptionStatusCanceled {
		return OutcomeDuplicate, nil
	}
	sub.Status = models.SubscriptionStatusCanceled
	return r.commitTransition(ctx, tx, ev, sub)
}

func (r *Reconciler) commitTransition(ctx context.Context, tx Repository, ev *Event, sub *models.Subscription) (Outcome, error) {
	sub.LastAppliedEventAt = ev.OccurredAt()
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return "", err
	}
	account, err := tx.GetAccountByID(ctx, sub.AccountID)
	if err != nil {
		return "", err
	}
	if err := r.syncAccount(ctx, tx, account, sub); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

// syncAccount refreshes the denormalized entitlement cache on the account
// from the subscription row. This is the only write path for Account.Tier.
func (r *Reconciler) syncAccount(ctx context.Context, tx Repository, account *models.Account, sub *models.Subscription) error {
	profile := entitlements.Resolve(sub.PlanID, sub.Status)
	account.Tier = string(profile.Plan)
	account.SubscriptionStatus = sub.Status
	account.CurrentPeriodStart = sub.CurrentPeriodStart
	account.CurrentPeriodEnd = sub.CurrentPeriodEnd
	return tx.SaveAccount(ctx, account)
}

func (r *Reconciler) refreshPeriod(sub *models.Subscription, ev *Event) {
	obj := ev.Data.Object
	if start := unixTimePtr(obj.CurrentPeriodStart); start != nil {
		sub.CurrentPeriodStart = start
	}
	if end := unixTimePtr(obj.CurrentPeriodEnd); end != nil {
		sub.CurrentPeriodEnd = end
	}
}

func (r *Reconciler) lookupCheckoutAccount(ctx context.Context, tx Repository, obj EventObject) (*models.Account, error) {
	if ref := strings.TrimSpace(obj.ClientReferenceID); ref != "" {
		id, err := strconv.ParseUint(ref, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid client reference %q: %w", ref, err)
		}
		return tx.GetAccountByID(ctx, uint(id))
	}
	if ref := strings.TrimSpace(obj.CustomerID); ref != "" {
		return tx.GetAccountByCustomerRef(ctx, ref)
	}
	return nil, errors.New("checkout event carries no account reference")
}
