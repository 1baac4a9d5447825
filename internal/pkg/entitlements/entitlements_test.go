package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docsmithhq/docsmith/app/models"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		plan   string
		status string
		want   Plan
	}{
		{"active pro", "pro", models.SubscriptionStatusActive, PlanPro},
		{"active starter", "starter", models.SubscriptionStatusActive, PlanStarter},
		{"past_due keeps paid tier", "pro", models.SubscriptionStatusPastDue, PlanPro},
		{"canceled resolves to free", "pro", models.SubscriptionStatusCanceled, PlanFree},
		{"incomplete resolves to free", "pro", models.SubscriptionStatusIncomplete, PlanFree},
		{"no subscription", "", models.SubscriptionStatusNone, PlanFree},
		{"unknown plan fails closed", "enterprise_beta", models.SubscriptionStatusActive, PlanFree},
		{"unknown status fails closed", "pro", "trialing", PlanFree},
		{"case insensitive status", "starter", "Active", PlanStarter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := Resolve(tt.plan, tt.status)
			assert.Equal(t, tt.want, profile.Plan)
		})
	}
}

func TestResolveIsTotal(t *testing.T) {
	// Garbage in, free profile out. The resolver must never return an empty
	// profile.
	profile := Resolve("??", "??")
	assert.Equal(t, PlanFree, profile.Plan)
	assert.Positive(t, profile.DailyLimit)
	assert.Positive(t, profile.MonthlyLimit)
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, PlanPro, ProfileFor("pro").Plan)
	assert.Equal(t, PlanPro, ProfileFor(" PRO ").Plan)
	assert.Equal(t, PlanFree, ProfileFor("nope").Plan)
	assert.True(t, ProfileFor("starter").PrivateDocs)
	assert.False(t, ProfileFor("free").PrivateDocs)
	assert.True(t, ProfileFor("pro").PriorityGeneration)
}

func TestProfileLimitsOrdered(t *testing.T) {
	free, starter, pro := ProfileFor("free"), ProfileFor("starter"), ProfileFor("pro")
	assert.Less(t, free.DailyLimit, starter.DailyLimit)
	assert.Less(t, starter.DailyLimit, pro.DailyLimit)
	assert.Less(t, free.MonthlyLimit, starter.MonthlyLimit)
	assert.Less(t, starter.MonthlyLimit, pro.MonthlyLimit)
}

func TestNormalizePlan(t *testing.T) {
	assert.Equal(t, PlanPro, NormalizePlan("  Pro "))
	assert.Equal(t, PlanFree, NormalizePlan("unknown"))
	assert.Equal(t, PlanFree, NormalizePlan(""))
}

func TestPlanRank(t *testing.T) {
	assert.Greater(t, PlanRank(PlanPro), PlanRank(PlanStarter))
	assert.Greater(t, PlanRank(PlanStarter), PlanRank(PlanFree))
	assert.Equal(t, 0, PlanRank(Plan("bogus")))
}

func TestIsKnownPlan(t *testing.T) {
	assert.True(t, IsKnownPlan("free"))
	assert.True(t, IsKnownPlan("STARTER"))
	assert.False(t, IsKnownPlan("enterprise"))
}
