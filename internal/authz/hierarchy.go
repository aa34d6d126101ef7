package authz

import "log/slog"

// maxInheritanceDepth caps role graph descent. The write path only rejects
// direct self-inheritance, so longer cycles and deep chains must be assumed
// present in stored data.
const maxInheritanceDepth = 15

// expansion accumulates the result of one role graph traversal. The visited
// set is shared across all roots of a resolution pass so each role
// contributes exactly once however many paths reach it.
type expansion struct {
	roles  map[string]Role
	logger *slog.Logger

	visited  map[string]struct{}
	permSeen map[string]struct{}

	permissions []Permission
	level       int
	ceilings    DataAccess
	ceilSeen    ceilingSeen
}

type ceilingSeen struct {
	products  bool
	orders    bool
	customers bool
}

func newExpansion(roles map[string]Role, logger *slog.Logger) *expansion {
	return &expansion{
		roles:    roles,
		logger:   logger,
		visited:  make(map[string]struct{}),
		permSeen: make(map[string]struct{}),
	}
}

// expandAll walks the graph from every root identity.
func (e *expansion) expandAll(rootIDs []string) {
	for _, id := range rootIDs {
		e.expand(id, 0)
	}
}

func (e *expansion) expand(roleID string, depth int) {
	if depth > maxInheritanceDepth {
		e.log().Warn("role inheritance depth exceeded, stopping descent",
			slog.String("role_id", roleID),
			slog.Int("max_depth", maxInheritanceDepth))
		return
	}
	if _, ok := e.visited[roleID]; ok {
		return
	}
	role, ok := e.roles[roleID]
	if !ok {
		// Deleted, deactivated or not yet loaded. Expected under eventual
		// consistency; skip without noise beyond debug.
		e.log().Debug("skipping unresolvable role reference", slog.String("role_id", roleID))
		return
	}
	e.visited[roleID] = struct{}{}

	if role.HierarchyLevel > e.level {
		e.level = role.HierarchyLevel
	}
	e.mergeCeilings(role.MaxDataAccess)

	e.appendRefs(role.Permissions)
	for _, group := range role.PermissionGroups {
		if !group.IsActive {
			continue
		}
		e.appendRefs(group.Permissions)
	}

	for _, parentID := range role.InheritedRoleIDs {
		e.expand(parentID, depth+1)
	}
}

// appendRefs adds resolved permission records, first-seen identity wins.
// Unresolved refs are skipped; the store did not expand them and there is
// nothing to aggregate.
func (e *expansion) appendRefs(refs []PermissionRef) {
	for _, ref := range refs {
		if !ref.Resolved() {
			continue
		}
		id := ref.ID
		if id == "" {
			id = ref.Record.ID
		}
		if _, ok := e.permSeen[id]; ok {
			continue
		}
		e.permSeen[id] = struct{}{}
		e.permissions = append(e.permissions, *ref.Record)
	}
}

// mergeCeilings applies the "permissive wins, zero absolute" rule: zero is
// unlimited and absorbs every finite value; among finite values the larger
// ceiling wins.
func (e *expansion) mergeCeilings(src DataAccess) {
	e.ceilings.Products, e.ceilSeen.products = mergeCeiling(e.ceilings.Products, e.ceilSeen.products, src.Products)
	e.ceilings.Orders, e.ceilSeen.orders = mergeCeiling(e.ceilings.Orders, e.ceilSeen.orders, src.Orders)
	e.ceilings.Customers, e.ceilSeen.customers = mergeCeiling(e.ceilings.Customers, e.ceilSeen.customers, src.Customers)
}

func mergeCeiling(current int, seen bool, next int) (int, bool) {
	if !seen {
		return next, true
	}
	if current == 0 || next == 0 {
		return 0, true
	}
	if next > current {
		return next, true
	}
	return current, true
}

func (e *expansion) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
