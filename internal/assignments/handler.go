package assignments

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hazo-app/hazo-auth/internal/platform/httpx"
	"github.com/hazo-app/hazo-auth/internal/shared"
)

// ScopeGuard builds a middleware enforcing access to the scope named by
// a chi URL parameter. Satisfied by access.Middleware.RequireScopeAccess.
type ScopeGuard func(param string) func(http.Handler) http.Handler

// Handler wires the assignment HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     ScopeGuard
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. The guard may be nil.
func NewHandler(logger *slog.Logger, service *Service, guard ScopeGuard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers assignment routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.assign)
	r.Delete("/", h.remove)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", h.userScopes)
		r.Put("/", h.reconcile)
	})
	r.With(h.guardFor("scopeID")).Get("/scopes/{scopeID}", h.scopeUsers)
}

func (h *Handler) guardFor(param string) func(http.Handler) http.Handler {
	if h.guard == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.guard(param)
}

type assignRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	ScopeID string `json:"scope_id" validate:"required"`
	RoleID  string `json:"role_id" validate:"required"`
}

type removeRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	ScopeID string `json:"scope_id" validate:"required"`
}

type reconcileRequest struct {
	Targets []Target `json:"targets"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "user_id, scope_id and role_id are required")
		return
	}
	assignment, err := h.service.Assign(r.Context(), req.UserID, req.ScopeID, req.RoleID)
	if err != nil {
		h.respondError(w, r, "assign", err)
		return
	}
	httpx.JSON(w, http.StatusOK, assignment)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "user_id and scope_id are required")
		return
	}
	removed, err := h.service.Remove(r.Context(), req.UserID, req.ScopeID)
	if err != nil {
		h.respondError(w, r, "remove", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	result, err := h.service.Reconcile(r.Context(), chi.URLParam(r, "userID"), req.Targets)
	if err != nil {
		h.respondError(w, r, "reconcile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) userScopes(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.UserScopes(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondError(w, r, "user scopes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) scopeUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ScopeUsers(r.Context(), chi.URLParam(r, "scopeID"))
	if err != nil {
		h.respondError(w, r, "scope users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := shared.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.Problem(w, status, http.StatusText(status), shared.UserSafeMessage(err))
}
