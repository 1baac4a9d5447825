package counter

import (
	"context"
	"strconv"

	"github.com/docsmithhq/docsmith/internal/pkg/cache"
)

const (
	gateDenialsKey     = "gate:counters:denials"
	webhookOutcomesKey = "webhook:counters:outcomes"
)

// AddDenial increments the counter for a gate or limiter denial reason.
// Denials are expected conditions and are tracked as metrics, never logged
// as errors.
func AddDenial(reason string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, gateDenialsKey, reason, 1).Err()
}

// AddWebhookOutcome increments the counter for a ledger outcome.
func AddWebhookOutcome(outcome string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, webhookOutcomesKey, outcome, 1).Err()
}

// DenialSnapshot returns the accumulated denial counts by reason.
func DenialSnapshot() (map[string]int64, error) {
	return snapshot(gateDenialsKey)
}

// WebhookOutcomeSnapshot returns the accumulated ledger outcome counts.
func WebhookOutcomeSnapshot() (map[string]int64, error) {
	return snapshot(webhookOutcomesKey)
}

func snapshot(key string) (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for field, val := range raw {
		n, perr := strconv.ParseInt(val, 10, 64)
		if perr != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}
