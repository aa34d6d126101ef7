package authz

import (
	"log/slog"
	"sort"
)

// matchPermissions filters an already-resolved permission list down to the
// active entries matching the resource/action pair whose conditions all hold
// against the runtime context. Wildcard entries match every resource/action.
func matchPermissions(perms []Permission, resource, action string, rctx map[string]any, logger *slog.Logger) []Permission {
	var matched []Permission
	for _, p := range perms {
		if !p.IsActive {
			continue
		}
		if p.Resource != "*" && p.Resource != resource {
			continue
		}
		if p.Action != "*" && p.Action != action {
			continue
		}
		if !conditionsHold(p.Conditions, rctx, logger) {
			continue
		}
		matched = append(matched, p)
	}
	return matched
}

func conditionsHold(conds []Condition, rctx map[string]any, logger *slog.Logger) bool {
	for _, cond := range conds {
		if !evalCondition(cond, rctx, logger) {
			return false
		}
	}
	return true
}

// resolveConflict produces a single decision from the matched permissions.
// Priority is resolved first: only the entries tied at the highest priority
// are considered, so a lower-priority allow can never override a
// higher-priority deny and vice versa. Within the top tier an explicit deny
// outranks an explicit allow. No match means deny.
func resolveConflict(matched []Permission) Decision {
	if len(matched) == 0 {
		return Decision{Allowed: false, Reason: "no matching permissions"}
	}

	sorted := make([]Permission, len(matched))
	copy(sorted, matched)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	maxPriority := sorted[0].Priority
	tier := sorted[:0:0]
	for _, p := range sorted {
		if p.Priority != maxPriority {
			break
		}
		tier = append(tier, p)
	}

	for _, p := range tier {
		if p.Effect == EffectDeny {
			deny := p
			reason := deny.Description
			if reason == "" {
				reason = "explicitly denied"
			}
			return Decision{Allowed: false, Reason: reason, Permission: &deny}
		}
	}
	for _, p := range tier {
		if p.Effect == EffectAllow {
			allow := p
			return Decision{Allowed: true, Permission: &allow}
		}
	}
	return Decision{Allowed: false, Reason: "no matching permissions"}
}
