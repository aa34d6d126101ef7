package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlaspos/atlas-authz/internal/authz"
)

type stubStores struct {
	users map[string]authz.User
	roles map[string]authz.Role
}

func (s *stubStores) FindUser(ctx context.Context, id string) (authz.User, error) {
	user, ok := s.users[id]
	if !ok {
		return authz.User{}, authz.ErrUserNotFound
	}
	return user, nil
}

func (s *stubStores) ActiveRoles(ctx context.Context) (map[string]authz.Role, error) {
	return s.roles, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	viewOrders := &authz.Permission{
		ID: "p1", Resource: "order", Action: "view",
		Effect: authz.EffectAllow, IsActive: true,
	}
	stores := &stubStores{
		users: map[string]authz.User{
			"u1": {
				ID: "u1",
				BusinessAccess: []authz.BusinessAccess{
					{RoleID: "r1", BusinessUnitID: "bu1", Status: authz.AccessStatusActive},
				},
			},
		},
		roles: map[string]authz.Role{
			"r1": {
				ID: "r1", HierarchyLevel: 40, IsActive: true,
				Permissions: []authz.PermissionRef{{ID: "p1", Record: viewOrders}},
			},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := authz.NewResolver(stores, nil, nil, logger)
	return NewHandler(logger, stores, resolver)
}

func doJSON(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestResolveContextEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/context", `{"user_id":"u1","business_unit_id":"bu1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hierarchy_level":40`)
	assert.Contains(t, rec.Body.String(), `"p1"`)
}

func TestResolveContextEndpointValidation(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/context", `{"business_unit_id":"bu1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/context", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckEndpointAllowAndDeny(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/check", `{"user_id":"u1","resource":"order","action":"view"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":true`)

	rec = doJSON(t, h, http.MethodPost, "/check", `{"user_id":"u1","resource":"order","action":"delete"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":false`)
}

func TestCheckEndpointUnknownUserDefaultsToDeny(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/check", `{"user_id":"ghost","resource":"order","action":"view"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":false`)
}

func TestInvalidateEndpoint(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/cache/u1", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"invalidated":0`)
}
