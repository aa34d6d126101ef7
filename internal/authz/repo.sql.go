package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound indicates the requested user record does not exist.
var ErrUserNotFound = errors.New("authz: user not found")

// Repository provides PostgreSQL backed read access to users, roles,
// permissions and permission groups. It implements RoleStore and UserStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveRoles loads every active role with direct permissions, permission
// groups and inheritance edges attached, keyed by role ID.
func (r *Repository) ActiveRoles(ctx context.Context) (map[string]Role, error) {
	roles, err := r.loadRoles(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.attachRolePermissions(ctx, roles); err != nil {
		return nil, err
	}
	if err := r.attachPermissionGroups(ctx, roles); err != nil {
		return nil, err
	}
	if err := r.attachInheritance(ctx, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *Repository) loadRoles(ctx context.Context) (map[string]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, hierarchy_level, role_scope,
		       max_products, max_orders, max_customers, is_active
		FROM roles
		WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("authz: load roles: %w", err)
	}
	defer rows.Close()

	roles := make(map[string]Role)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.HierarchyLevel, &role.RoleScope,
			&role.MaxDataAccess.Products, &role.MaxDataAccess.Orders, &role.MaxDataAccess.Customers,
			&role.IsActive); err != nil {
			return nil, fmt.Errorf("authz: scan role: %w", err)
		}
		roles[role.ID] = role
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: load roles: %w", err)
	}
	return roles, nil
}

func (r *Repository) attachRolePermissions(ctx context.Context, roles map[string]Role) error {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, rp.permission_id,
		       p.id, p.resource, p.action, p.effect, p.scope,
		       p.conditions, p.attributes, p.priority, p.description, p.is_active
		FROM role_permissions rp
		LEFT JOIN permissions p ON p.id = rp.permission_id`)
	if err != nil {
		return fmt.Errorf("authz: load role permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID string
		ref, err := scanPermissionRef(rows, &roleID)
		if err != nil {
			return err
		}
		role, ok := roles[roleID]
		if !ok {
			continue
		}
		role.Permissions = append(role.Permissions, ref)
		roles[roleID] = role
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("authz: load role permissions: %w", err)
	}
	return nil
}

func (r *Repository) attachPermissionGroups(ctx context.Context, roles map[string]Role) error {
	groups := make(map[string]PermissionGroup)
	memberships := make(map[string][]string) // role ID -> group IDs

	rows, err := r.pool.Query(ctx, `
		SELECT rg.role_id, g.id, g.name, g.is_active
		FROM role_permission_groups rg
		JOIN permission_groups g ON g.id = rg.group_id`)
	if err != nil {
		return fmt.Errorf("authz: load permission groups: %w", err)
	}
	for rows.Next() {
		var roleID string
		var group PermissionGroup
		if err := rows.Scan(&roleID, &group.ID, &group.Name, &group.IsActive); err != nil {
			rows.Close()
			return fmt.Errorf("authz: scan permission group: %w", err)
		}
		if _, ok := groups[group.ID]; !ok {
			groups[group.ID] = group
		}
		memberships[roleID] = append(memberships[roleID], group.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("authz: load permission groups: %w", err)
	}
	rows.Close()

	rows, err = r.pool.Query(ctx, `
		SELECT gp.group_id, gp.permission_id,
		       p.id, p.resource, p.action, p.effect, p.scope,
		       p.conditions, p.attributes, p.priority, p.description, p.is_active
		FROM permission_group_permissions gp
		LEFT JOIN permissions p ON p.id = gp.permission_id`)
	if err != nil {
		return fmt.Errorf("authz: load group permissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var groupID string
		ref, err := scanPermissionRef(rows, &groupID)
		if err != nil {
			return err
		}
		group, ok := groups[groupID]
		if !ok {
			continue
		}
		group.Permissions = append(group.Permissions, ref)
		groups[groupID] = group
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("authz: load group permissions: %w", err)
	}

	for roleID, groupIDs := range memberships {
		role, ok := roles[roleID]
		if !ok {
			continue
		}
		for _, groupID := range groupIDs {
			role.PermissionGroups = append(role.PermissionGroups, groups[groupID])
		}
		roles[roleID] = role
	}
	return nil
}

func (r *Repository) attachInheritance(ctx context.Context, roles map[string]Role) error {
	rows, err := r.pool.Query(ctx, `SELECT role_id, parent_role_id FROM role_inheritance`)
	if err != nil {
		return fmt.Errorf("authz: load role inheritance: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var roleID, parentID string
		if err := rows.Scan(&roleID, &parentID); err != nil {
			return fmt.Errorf("authz: scan role inheritance: %w", err)
		}
		role, ok := roles[roleID]
		if !ok {
			continue
		}
		role.InheritedRoleIDs = append(role.InheritedRoleIDs, parentID)
		roles[roleID] = role
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("authz: load role inheritance: %w", err)
	}
	return nil
}

// FindUser loads a user with global roles, business access and direct
// permissions attached.
func (r *Repository) FindUser(ctx context.Context, id string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, is_super_admin FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.IsSuperAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("authz: find user: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT role_id FROM user_global_roles WHERE user_id = $1`, id)
	if err != nil {
		return User{}, fmt.Errorf("authz: load global roles: %w", err)
	}
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			rows.Close()
			return User{}, fmt.Errorf("authz: scan global role: %w", err)
		}
		user.GlobalRoleIDs = append(user.GlobalRoleIDs, roleID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return User{}, fmt.Errorf("authz: load global roles: %w", err)
	}
	rows.Close()

	rows, err = r.pool.Query(ctx, `
		SELECT role_id, COALESCE(business_unit_id, ''), COALESCE(outlet_id, ''),
		       COALESCE(status, ''), expires_at, COALESCE(data_scope_override, ''), is_primary
		FROM user_business_access
		WHERE user_id = $1`, id)
	if err != nil {
		return User{}, fmt.Errorf("authz: load business access: %w", err)
	}
	for rows.Next() {
		var access BusinessAccess
		var expires *time.Time
		if err := rows.Scan(&access.RoleID, &access.BusinessUnitID, &access.OutletID,
			&access.Status, &expires, &access.DataScopeOverride, &access.IsPrimary); err != nil {
			rows.Close()
			return User{}, fmt.Errorf("authz: scan business access: %w", err)
		}
		access.ExpiresAt = expires
		user.BusinessAccess = append(user.BusinessAccess, access)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return User{}, fmt.Errorf("authz: load business access: %w", err)
	}
	rows.Close()

	rows, err = r.pool.Query(ctx, `
		SELECT up.effect, up.permission_id,
		       p.id, p.resource, p.action, p.effect, p.scope,
		       p.conditions, p.attributes, p.priority, p.description, p.is_active
		FROM user_permissions up
		LEFT JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1`, id)
	if err != nil {
		return User{}, fmt.Errorf("authz: load direct permissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var grantEffect string
		ref, err := scanPermissionRef(rows, &grantEffect)
		if err != nil {
			return User{}, err
		}
		if grantEffect == string(EffectDeny) {
			user.DirectDeny = append(user.DirectDeny, ref)
		} else {
			user.DirectAllow = append(user.DirectAllow, ref)
		}
	}
	if err := rows.Err(); err != nil {
		return User{}, fmt.Errorf("authz: load direct permissions: %w", err)
	}
	return user, nil
}

// scanPermissionRef reads one (owner column, permission ref) row produced by
// the LEFT JOIN queries above. A null joined row yields an unresolved ref.
func scanPermissionRef(rows pgx.Rows, owner *string) (PermissionRef, error) {
	var (
		ref         PermissionRef
		permID      *string
		resource    *string
		action      *string
		effect      *string
		scope       *string
		conditions  []byte
		attributes  []string
		priority    *int
		description *string
		isActive    *bool
	)
	if err := rows.Scan(owner, &ref.ID,
		&permID, &resource, &action, &effect, &scope,
		&conditions, &attributes, &priority, &description, &isActive); err != nil {
		return PermissionRef{}, fmt.Errorf("authz: scan permission ref: %w", err)
	}
	if permID == nil {
		return ref, nil
	}
	record := Permission{
		ID:          *permID,
		Resource:    derefString(resource),
		Action:      derefString(action),
		Effect:      Effect(derefString(effect)),
		Scope:       ScopeLevel(derefString(scope)),
		Attributes:  attributes,
		Description: derefString(description),
	}
	if priority != nil {
		record.Priority = *priority
	}
	if isActive != nil {
		record.IsActive = *isActive
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &record.Conditions); err != nil {
			return PermissionRef{}, fmt.Errorf("authz: decode permission conditions: %w", err)
		}
	}
	ref.Record = &record
	return ref, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
