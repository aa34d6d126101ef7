package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/atlaspos/atlas-authz/internal/observability"
)

// Resolver is the engine's public entry point. It owns the cache lifecycle
// and wires scope selection, role graph expansion and conflict resolution.
//
// No method returns an error to the caller: every failure mode degrades to
// a minimal-privilege result plus a log entry, so downstream authorization
// checks default to deny instead of aborting the request.
type Resolver struct {
	roles   RoleStore
	cache   *ContextCache
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group
}

// NewResolver constructs a Resolver. Cache and metrics may be nil; the
// resolver then recomputes on every call and skips instrumentation.
func NewResolver(roles RoleStore, cache *ContextCache, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		roles:   roles,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// ResolveContext computes (or serves from cache) the user's effective
// authorization context for the given target scope. A nil target resolves
// the union of everything the user holds.
func (r *Resolver) ResolveContext(ctx context.Context, user User, target *TargetScope) AccessContext {
	if user.ID == "" {
		r.log().Warn("resolution requested for user without identity, returning zero-privilege context")
		return ZeroContext()
	}

	start := r.now()
	if access, ok := r.cache.GetContext(ctx, user.ID, target); ok {
		r.metrics.ObserveResolution("hit", r.now().Sub(start))
		return access
	}

	// Concurrent misses for the same key collapse into one computation.
	// The result is idempotent so sharing it is safe.
	key := ContextKey(user.ID, target)
	value, _, _ := r.group.Do(key, func() (any, error) {
		return r.compute(ctx, user, target, start), nil
	})
	access, ok := value.(AccessContext)
	if !ok {
		return ZeroContext()
	}
	return access
}

func (r *Resolver) compute(ctx context.Context, user User, target *TargetScope, start time.Time) AccessContext {
	passID := uuid.NewString()
	logger := r.log().With(slog.String("pass_id", passID), slog.String("user_id", user.ID))

	if user.IsSuperAdmin {
		access := WildcardContext()
		r.cache.SetContext(ctx, user.ID, target, access)
		r.metrics.ObserveResolution("superadmin", r.now().Sub(start))
		logger.Debug("super admin short circuit")
		return access
	}

	selection := selectRoots(user, target, r.now())

	snapshot, ok := r.cache.GetRoleSnapshot(ctx)
	if !ok {
		var err error
		snapshot, err = r.roles.ActiveRoles(ctx)
		if err != nil {
			logger.Error("active role snapshot load failed, returning zero-privilege context", slog.Any("error", err))
			r.metrics.ObserveResolution("error", r.now().Sub(start))
			return ZeroContext()
		}
		r.cache.SetRoleSnapshot(ctx, snapshot)
	}

	exp := newExpansion(snapshot, logger)
	exp.expandAll(selection.roleIDs)

	// Direct grants merge under the same identity-dedup rule as role
	// permissions: first seen wins.
	exp.appendRefs(user.DirectAllow)
	exp.appendRefs(user.DirectDeny)

	permissions := exp.permissions
	if permissions == nil {
		permissions = []Permission{}
	}

	access := AccessContext{
		Permissions:    permissions,
		HierarchyLevel: exp.level,
		MaxDataAccess:  exp.ceilings,
		DataScope:      finalizeScope(selection.dataScope, permissions),
	}

	r.cache.SetContext(ctx, user.ID, target, access)
	r.metrics.ObserveResolution("miss", r.now().Sub(start))
	logger.Debug("authorization context resolved",
		slog.Int("roles", len(selection.roleIDs)),
		slog.Int("permissions", len(access.Permissions)),
		slog.Int("hierarchy_level", access.HierarchyLevel),
		slog.String("data_scope", string(access.DataScope)))
	return access
}

// CheckPermission resolves the user's union context and decides a single
// resource/action pair against it.
func (r *Resolver) CheckPermission(ctx context.Context, user User, resource, action string, rctx map[string]any) Decision {
	access := r.ResolveContext(ctx, user, nil)
	matched := matchPermissions(access.Permissions, resource, action, rctx, r.log())
	decision := resolveConflict(matched)

	effect := "deny"
	if decision.Allowed {
		effect = "allow"
	}
	r.metrics.ObserveDecision(effect)
	r.log().Debug("permission check",
		slog.String("user_id", user.ID),
		slog.String("resource", resource),
		slog.String("action", action),
		slog.Bool("allowed", decision.Allowed))
	return decision
}

// InvalidateUser purges every cached context variant for the user. Invoked
// by collaborators whenever a user's roles, business access or direct
// permissions change.
func (r *Resolver) InvalidateUser(ctx context.Context, userID string) int {
	deleted := r.cache.InvalidateUser(ctx, userID)
	r.metrics.ObserveInvalidation(deleted)
	r.log().Info("user authorization cache invalidated",
		slog.String("user_id", userID),
		slog.Int("entries", deleted))
	return deleted
}

func (r *Resolver) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
