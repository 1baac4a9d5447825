package entitlements

import (
	"log"
	"strings"

	"github.com/docsmithhq/docsmith/app/models"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanPro     Plan = "pro"
)

// Profile is the concrete set of quota limits and feature flags a plan
// grants. Profiles are static configuration, never persisted; Subscription
// rows keep the plan identifier so tier definitions can change without
// rewriting history.
type Profile struct {
	Plan               Plan  `json:"plan"`
	MonthlyLimit       int64 `json:"monthly_limit"`
	DailyLimit         int64 `json:"daily_limit"`
	PrivateDocs        bool  `json:"private_docs"`
	CustomBranding     bool  `json:"custom_branding"`
	PriorityGeneration bool  `json:"priority_generation"`
}

var catalog = map[Plan]Profile{
	PlanFree: {
		Plan:         PlanFree,
		MonthlyLimit: 10,
		DailyLimit:   5,
	},
	PlanStarter: {
		Plan:         PlanStarter,
		MonthlyLimit: 200,
		DailyLimit:   50,
		PrivateDocs:  true,
	},
	PlanPro: {
		Plan:               PlanPro,
		MonthlyLimit:       2000,
		DailyLimit:         500,
		PrivateDocs:        true,
		CustomBranding:     true,
		PriorityGeneration: true,
	},
}

// Resolve maps (plan, subscription status) to a concrete profile. It is total:
// unknown plans fail closed to free, canceled or absent subscriptions resolve
// to free, and past_due keeps the paid limits so users are not punished during
// the payment-retry grace period.
func Resolve(plan string, status string) Profile {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusPastDue:
		return ProfileFor(plan)
	default:
		// canceled, incomplete, none
		return catalog[PlanFree]
	}
}

// NormalizePlan maps arbitrary input to a known plan identifier, defaulting
// to free.
func NormalizePlan(plan string) Plan {
	p := Plan(strings.ToLower(strings.TrimSpace(plan)))
	if _, ok := catalog[p]; ok {
		return p
	}
	return PlanFree
}

// PlanRank orders plans so the best of several subscriptions wins.
func PlanRank(plan Plan) int {
	switch plan {
	case PlanPro:
		return 2
	case PlanStarter:
		return 1
	default:
		return 0
	}
}

// IsKnownPlan reports whether the plan identifier exists in the catalog.
func IsKnownPlan(plan string) bool {
	_, ok := catalog[Plan(strings.ToLower(strings.TrimSpace(plan)))]
	return ok
}

// ProfileFor returns the catalog profile for a plan identifier regardless of
// subscription status. Used where the plan has already been resolved, such as
// the denormalized Account tier cache.
func ProfileFor(plan string) Profile {
	p := Plan(strings.ToLower(strings.TrimSpace(plan)))
	if profile, ok := catalog[p]; ok {
		return profile
	}
	// Catalog drift between deployment and billing config, not a user error.
	log.Printf("entitlements: unknown plan %q, failing closed to free", plan)
	return catalog[PlanFree]
}
