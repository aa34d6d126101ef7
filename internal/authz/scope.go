package authz

import "time"

// scopeRank orders the visibility ladder. Unknown tokens rank zero, below
// every known level, so a malformed override can never widen visibility.
var scopeRank = map[ScopeLevel]int{
	ScopeOwn:      1,
	ScopeOutlet:   2,
	ScopeBusiness: 3,
	ScopeGlobal:   4,
}

func rankOf(s ScopeLevel) int {
	return scopeRank[s]
}

// raiseScope returns the higher of the two ladder levels. The data scope of
// a resolution pass only ever moves up.
func raiseScope(current, candidate ScopeLevel) ScopeLevel {
	if rankOf(candidate) > rankOf(current) {
		return candidate
	}
	return current
}

// rootSelection is the outcome of filtering a user's grants against a
// target scope: the role identities to expand and the ladder seed.
type rootSelection struct {
	roleIDs   []string
	dataScope ScopeLevel
}

// selectRoots decides which of the user's role grants apply to the target.
// Global roles always apply. A business-access grant applies when it is
// active, unexpired and either unrestricted, matching the target, or the
// resolution runs in union mode (nil target).
func selectRoots(user User, target *TargetScope, now time.Time) rootSelection {
	sel := rootSelection{dataScope: ScopeOwn}
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		sel.roleIDs = append(sel.roleIDs, id)
	}

	for _, id := range user.GlobalRoleIDs {
		add(id)
	}

	for _, access := range user.BusinessAccess {
		if access.Status != "" && access.Status != AccessStatusActive {
			continue
		}
		if access.ExpiresAt != nil && access.ExpiresAt.Before(now) {
			continue
		}
		if !accessApplies(access, target) {
			continue
		}
		add(access.RoleID)
		if access.DataScopeOverride != "" {
			sel.dataScope = raiseScope(sel.dataScope, access.DataScopeOverride)
		}
	}
	return sel
}

func accessApplies(access BusinessAccess, target *TargetScope) bool {
	// A grant bound to neither unit nor outlet is effectively global.
	if access.BusinessUnitID == "" && access.OutletID == "" {
		return true
	}
	// Union mode: every live grant contributes.
	if target == nil {
		return true
	}
	if access.BusinessUnitID != "" && access.BusinessUnitID != target.BusinessUnitID {
		return false
	}
	if access.OutletID != "" && access.OutletID != target.OutletID {
		return false
	}
	return true
}

// finalizeScope raises the ladder once more using the scopes declared by
// the resolved permissions themselves.
func finalizeScope(seed ScopeLevel, permissions []Permission) ScopeLevel {
	scope := seed
	for _, p := range permissions {
		if p.Scope != "" {
			scope = raiseScope(scope, p.Scope)
		}
	}
	return scope
}
