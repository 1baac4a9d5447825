package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Event types delivered by the billing provider.
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventPaymentSucceeded    = "payment.succeeded"
	EventPaymentFailed       = "payment.failed"
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
)

// EventObject is the nested payload of a webhook envelope. Only the fields
// the reconciler needs are decoded; the envelope is otherwise opaque.
type EventObject struct {
	SubscriptionID     string `json:"subscription"`
	CustomerID         string `json:"customer"`
	ClientReferenceID  string `json:"client_reference_id"`
	PlanID             string `json:"plan"`
	PaymentStatus      string `json:"payment_status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAt           int64  `json:"cancel_at"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

// Event is the provider's webhook envelope: event id, type, created
// timestamp and a nested object payload.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object EventObject `json:"object"`
	} `json:"data"`
}

// OccurredAt returns the provider-side event timestamp used by the
// staleness check.
func (e *Event) OccurredAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// ParseEvent decodes a webhook envelope from the raw request body.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ev.ID) == "" {
		return nil, errors.New("webhook payload missing event id")
	}
	if strings.TrimSpace(ev.Type) == "" {
		return nil, errors.New("webhook payload missing event type")
	}
	if ev.Created <= 0 {
		return nil, errors.New("webhook payload missing created timestamp")
	}
	return &ev, nil
}

func unixTimePtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
