package authz

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*ContextCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewContextCache(client, time.Minute, 30*time.Second, testLogger()), mr
}

func TestContextKeyDistinguishesUnionFromScoped(t *testing.T) {
	union := ContextKey("u1", nil)
	scoped := ContextKey("u1", &TargetScope{BusinessUnitID: "bu1"})
	outlet := ContextKey("u1", &TargetScope{BusinessUnitID: "bu1", OutletID: "o1"})

	assert.NotEqual(t, union, scoped)
	assert.NotEqual(t, scoped, outlet)
	assert.NotEqual(t, union, outlet)
}

func TestContextCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	access := AccessContext{
		Permissions:    []Permission{{ID: "p1", Resource: "order", Action: "view", Effect: EffectAllow, IsActive: true}},
		HierarchyLevel: 40,
		MaxDataAccess:  DataAccess{Products: 50},
		DataScope:      ScopeBusiness,
	}
	target := &TargetScope{BusinessUnitID: "bu1"}

	_, ok := cache.GetContext(ctx, "u1", target)
	assert.False(t, ok)

	cache.SetContext(ctx, "u1", target, access)

	got, ok := cache.GetContext(ctx, "u1", target)
	require.True(t, ok)
	assert.Equal(t, access, got)

	// A different scope token must miss.
	_, ok = cache.GetContext(ctx, "u1", nil)
	assert.False(t, ok)
}

func TestInvalidateUserRemovesAllScopeVariants(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	access := AccessContext{Permissions: []Permission{}, DataScope: ScopeOwn}
	cache.SetContext(ctx, "u1", nil, access)
	cache.SetContext(ctx, "u1", &TargetScope{BusinessUnitID: "bu1"}, access)
	cache.SetContext(ctx, "u1", &TargetScope{BusinessUnitID: "bu1", OutletID: "o1"}, access)
	cache.SetContext(ctx, "u2", nil, access)

	deleted := cache.InvalidateUser(ctx, "u1")
	assert.Equal(t, 3, deleted)

	_, ok := cache.GetContext(ctx, "u1", nil)
	assert.False(t, ok)
	_, ok = cache.GetContext(ctx, "u1", &TargetScope{BusinessUnitID: "bu1"})
	assert.False(t, ok)

	// Other users are untouched.
	_, ok = cache.GetContext(ctx, "u2", nil)
	assert.True(t, ok)
}

func TestRoleSnapshotRoundTripAndTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.GetRoleSnapshot(ctx)
	assert.False(t, ok)

	snapshot := map[string]Role{
		"r1": {ID: "r1", Name: "manager", HierarchyLevel: 40, IsActive: true},
	}
	cache.SetRoleSnapshot(ctx, snapshot)

	got, ok := cache.GetRoleSnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, snapshot, got)

	mr.FastForward(time.Minute)
	_, ok = cache.GetRoleSnapshot(ctx)
	assert.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *ContextCache
	ctx := context.Background()

	_, ok := cache.GetContext(ctx, "u1", nil)
	assert.False(t, ok)
	cache.SetContext(ctx, "u1", nil, AccessContext{})
	assert.Equal(t, 0, cache.InvalidateUser(ctx, "u1"))
	_, ok = cache.GetRoleSnapshot(ctx)
	assert.False(t, ok)
	cache.SetRoleSnapshot(ctx, nil)
}

func TestCorruptPayloadTreatedAsMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(ContextKey("u1", nil), "{not json"))

	_, ok := cache.GetContext(ctx, "u1", nil)
	assert.False(t, ok)
}
