package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlaspos/atlas-authz/internal/authz"
	"github.com/atlaspos/atlas-authz/internal/platform/httpx"
	"github.com/atlaspos/atlas-authz/internal/shared"
)

// Handler exposes the resolution engine as a JSON API consumed by the
// request-handling middleware of the other services.
type Handler struct {
	logger   *slog.Logger
	users    authz.UserStore
	resolver *authz.Resolver
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, users authz.UserStore, resolver *authz.Resolver) *Handler {
	return &Handler{
		logger:   logger,
		users:    users,
		resolver: resolver,
		validate: validator.New(),
	}
}

// Routes mounts the authorization endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/context", h.resolveContext)
	r.Post("/check", h.checkPermission)
	r.Delete("/cache/{userID}", h.invalidate)
	return r
}

type contextRequest struct {
	UserID         string `json:"user_id" validate:"required"`
	BusinessUnitID string `json:"business_unit_id"`
	OutletID       string `json:"outlet_id"`
}

type checkRequest struct {
	UserID   string         `json:"user_id" validate:"required"`
	Resource string         `json:"resource" validate:"required"`
	Action   string         `json:"action" validate:"required"`
	Context  map[string]any `json:"context"`
}

func (h *Handler) resolveContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user := h.loadUser(r, req.UserID)
	var target *authz.TargetScope
	if req.BusinessUnitID != "" || req.OutletID != "" {
		target = &authz.TargetScope{BusinessUnitID: req.BusinessUnitID, OutletID: req.OutletID}
	}

	access := h.resolver.ResolveContext(r.Context(), user, target)
	httpx.JSON(w, http.StatusOK, access)
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user := h.loadUser(r, req.UserID)
	decision := h.resolver.CheckPermission(r.Context(), user, req.Resource, req.Action, req.Context)
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userID path parameter required")
		return
	}
	deleted := h.resolver.InvalidateUser(r.Context(), userID)
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "invalidated": deleted})
}

// loadUser fetches the caller's user record. An unresolvable user yields
// the zero user so the engine answers with a zero-privilege context instead
// of failing the request.
func (h *Handler) loadUser(r *http.Request, userID string) authz.User {
	user, err := h.users.FindUser(r.Context(), userID)
	if err != nil {
		logger := h.logger
		if logger == nil {
			logger = slog.Default()
		}
		level := slog.LevelWarn
		if errors.Is(err, authz.ErrUserNotFound) {
			level = slog.LevelDebug
		}
		logger.Log(r.Context(), level, "user lookup failed, resolving zero privilege",
			slog.String("user_id", userID),
			slog.String("request_id", shared.RequestIDFromContext(r.Context())),
			slog.Any("error", err))
		return authz.User{}
	}
	return user
}
