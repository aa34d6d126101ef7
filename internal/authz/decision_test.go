package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPermissionsFilters(t *testing.T) {
	perms := []Permission{
		{ID: "match", Resource: "order", Action: "view", Effect: EffectAllow, IsActive: true},
		{ID: "inactive", Resource: "order", Action: "view", Effect: EffectAllow, IsActive: false},
		{ID: "other-action", Resource: "order", Action: "delete", Effect: EffectAllow, IsActive: true},
		{ID: "other-resource", Resource: "product", Action: "view", Effect: EffectAllow, IsActive: true},
		{ID: "wildcard", Resource: "*", Action: "*", Effect: EffectAllow, IsActive: true},
		{
			ID: "conditional", Resource: "order", Action: "view", Effect: EffectAllow, IsActive: true,
			Conditions: []Condition{{Field: "amount", Operator: OpLte, Value: 50}},
		},
	}
	rctx := map[string]any{"amount": float64(100)}

	matched := matchPermissions(perms, "order", "view", rctx, testLogger())

	ids := make([]string, len(matched))
	for i, p := range matched {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"match", "wildcard"}, ids)
}

func TestResolveConflictDefaultDeny(t *testing.T) {
	decision := resolveConflict(nil)

	assert.False(t, decision.Allowed)
	assert.Equal(t, "no matching permissions", decision.Reason)
	assert.Nil(t, decision.Permission)
}

func TestResolveConflictDenyBeatsAllowAtEqualPriority(t *testing.T) {
	decision := resolveConflict([]Permission{
		{ID: "allow", Effect: EffectAllow, Priority: 10},
		{ID: "deny", Effect: EffectDeny, Priority: 10, Description: "blocked by policy"},
	})

	assert.False(t, decision.Allowed)
	assert.Equal(t, "blocked by policy", decision.Reason)
	require.NotNil(t, decision.Permission)
	assert.Equal(t, "deny", decision.Permission.ID)
}

func TestResolveConflictHigherPriorityWinsOutright(t *testing.T) {
	decision := resolveConflict([]Permission{
		{ID: "deny", Effect: EffectDeny, Priority: 10},
		{ID: "allow", Effect: EffectAllow, Priority: 20},
	})

	assert.True(t, decision.Allowed)
	require.NotNil(t, decision.Permission)
	assert.Equal(t, "allow", decision.Permission.ID)

	// And the mirror: a low-priority allow never overrides a high deny.
	decision = resolveConflict([]Permission{
		{ID: "deny", Effect: EffectDeny, Priority: 10},
		{ID: "allow", Effect: EffectAllow, Priority: 5},
	})
	assert.False(t, decision.Allowed)
}

func TestResolveConflictMissingPriorityTreatedAsZero(t *testing.T) {
	decision := resolveConflict([]Permission{
		{ID: "allow-default", Effect: EffectAllow},
		{ID: "deny-negative", Effect: EffectDeny, Priority: -1},
	})

	assert.True(t, decision.Allowed)
}

func TestResolveConflictAllowCarriesAttributes(t *testing.T) {
	decision := resolveConflict([]Permission{
		{ID: "allow", Effect: EffectAllow, Priority: 3, Attributes: []string{"order.total"}},
	})

	assert.True(t, decision.Allowed)
	require.NotNil(t, decision.Permission)
	assert.Equal(t, []string{"order.total"}, decision.Permission.Attributes)
}
