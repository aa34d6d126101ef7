// Package authz computes effective permission sets for users across the
// platform tenancy levels (platform, company, business unit, outlet) and
// serves allow/deny decisions to the rest of the system.
package authz

import "time"

// Effect states whether a matched permission allows or denies the action.
type Effect string

// Known permission effects.
const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// ScopeLevel is one rung of the data-visibility ladder.
type ScopeLevel string

// Visibility levels, ordered own < outlet < business < global.
const (
	ScopeOwn      ScopeLevel = "own"
	ScopeOutlet   ScopeLevel = "outlet"
	ScopeBusiness ScopeLevel = "business"
	ScopeGlobal   ScopeLevel = "global"
)

// RoleScope states at which tenancy level a role is defined.
type RoleScope string

// Role scopes.
const (
	RoleScopeGlobal   RoleScope = "GLOBAL"
	RoleScopeCompany  RoleScope = "COMPANY"
	RoleScopeBusiness RoleScope = "BUSINESS"
	RoleScopeOutlet   RoleScope = "OUTLET"
)

// Operator compares a runtime context value against a condition literal.
type Operator string

// Condition operators.
const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not-in"
	OpContains Operator = "contains"
)

// AccessStatusActive is the only business-access status that grants anything.
const AccessStatusActive = "active"

// Condition restricts a permission to requests whose runtime context
// satisfies the comparison. Field is a dot path into the context object.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Permission is an atomic capability over a resource/action pair.
type Permission struct {
	ID          string      `json:"id"`
	Resource    string      `json:"resource"`
	Action      string      `json:"action"`
	Effect      Effect      `json:"effect"`
	Scope       ScopeLevel  `json:"scope"`
	Conditions  []Condition `json:"conditions,omitempty"`
	Attributes  []string    `json:"attributes,omitempty"`
	Priority    int         `json:"priority"`
	Description string      `json:"description,omitempty"`
	IsActive    bool        `json:"is_active"`
}

// PermissionRef is a permission reference as handed out by the stores.
// Depending on what the store chose to expand it either carries the full
// record or just the identity. Only resolved refs contribute to aggregation.
type PermissionRef struct {
	ID     string      `json:"id"`
	Record *Permission `json:"record,omitempty"`
}

// Resolved reports whether the ref carries a full permission record.
func (r PermissionRef) Resolved() bool {
	return r.Record != nil
}

// PermissionGroup is a named, reusable bundle of permissions.
type PermissionGroup struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Permissions []PermissionRef `json:"permissions"`
	IsActive    bool            `json:"is_active"`
}

// DataAccess holds per-resource visibility ceilings. Zero means unlimited.
type DataAccess struct {
	Products  int `json:"products"`
	Orders    int `json:"orders"`
	Customers int `json:"customers"`
}

// Role bundles permissions, group references and inheritance edges. The
// inheritance edges form a directed graph; stored data may contain cycles
// through longer chains, only direct self-reference is rejected at write
// time.
type Role struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Permissions      []PermissionRef   `json:"permissions"`
	PermissionGroups []PermissionGroup `json:"permission_groups"`
	InheritedRoleIDs []string          `json:"inherited_role_ids"`
	HierarchyLevel   int               `json:"hierarchy_level"`
	RoleScope        RoleScope         `json:"role_scope"`
	MaxDataAccess    DataAccess        `json:"max_data_access"`
	IsActive         bool              `json:"is_active"`
}

// BusinessAccess is one scoped grant of a role to a user. Empty business
// unit and outlet means the grant applies everywhere.
type BusinessAccess struct {
	RoleID            string     `json:"role_id"`
	BusinessUnitID    string     `json:"business_unit_id,omitempty"`
	OutletID          string     `json:"outlet_id,omitempty"`
	Status            string     `json:"status,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	DataScopeOverride ScopeLevel `json:"data_scope_override,omitempty"`
	IsPrimary         bool       `json:"is_primary"`
}

// User is the subset of the account record the engine needs.
type User struct {
	ID             string           `json:"id"`
	IsSuperAdmin   bool             `json:"is_super_admin"`
	GlobalRoleIDs  []string         `json:"global_role_ids"`
	BusinessAccess []BusinessAccess `json:"business_access"`
	DirectAllow    []PermissionRef  `json:"direct_allow"`
	DirectDeny     []PermissionRef  `json:"direct_deny"`
}

// TargetScope narrows a resolution to the caller's current business unit
// and/or outlet. A nil target means "union of everything the user holds".
type TargetScope struct {
	BusinessUnitID string `json:"business_unit_id,omitempty"`
	OutletID       string `json:"outlet_id,omitempty"`
}

// AccessContext is the computed authorization context for one user/target
// pair. It is built once per cache miss and never mutated afterwards.
type AccessContext struct {
	Permissions    []Permission `json:"permissions"`
	HierarchyLevel int          `json:"hierarchy_level"`
	MaxDataAccess  DataAccess   `json:"max_data_access"`
	DataScope      ScopeLevel   `json:"data_scope"`
}

// Decision is the outcome of a single permission check.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Reason     string      `json:"reason,omitempty"`
	Permission *Permission `json:"permission,omitempty"`
}

// Hierarchy level granted to super admins and the cap for regular roles.
const MaxHierarchyLevel = 100

// WildcardContext is the constant context granted to super admins.
func WildcardContext() AccessContext {
	return AccessContext{
		Permissions: []Permission{{
			ID:          "superadmin-wildcard",
			Resource:    "*",
			Action:      "*",
			Effect:      EffectAllow,
			Scope:       ScopeGlobal,
			Description: "super admin wildcard",
			IsActive:    true,
		}},
		HierarchyLevel: MaxHierarchyLevel,
		MaxDataAccess:  DataAccess{},
		DataScope:      ScopeGlobal,
	}
}

// ZeroContext is the minimal-privilege context returned when a user cannot
// be resolved. Downstream checks default to deny against it.
func ZeroContext() AccessContext {
	return AccessContext{
		Permissions: []Permission{},
		DataScope:   ScopeOwn,
	}
}
