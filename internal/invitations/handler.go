package invitations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazo-app/hazo-auth/internal/platform/httpx"
	"github.com/hazo-app/hazo-auth/internal/shared"
)

// ScopeGuard builds a middleware enforcing access to the scope named by
// a chi URL parameter. Satisfied by access.Middleware.RequireScopeAccess.
type ScopeGuard func(param string) func(http.Handler) http.Handler

// Handler exposes invitation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   ScopeGuard
}

// NewHandler builds Handler instance. The guard may be nil.
func NewHandler(logger *slog.Logger, service *Service, guard ScopeGuard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers invitation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Post("/accept", h.accept)
	r.With(h.guardFor("scopeID")).Get("/scopes/{scopeID}", h.listByScope)
}

func (h *Handler) guardFor(param string) func(http.Handler) http.Handler {
	if h.guard == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.guard(param)
}

type createRequest struct {
	Email   string `json:"email"`
	ScopeID string `json:"scope_id"`
	RoleID  string `json:"role_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := h.currentUserID(r)
	if actor == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in to invite users")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	inv, err := h.service.Create(r.Context(), CreateInvitation{
		Email:     req.Email,
		ScopeID:   req.ScopeID,
		RoleID:    req.RoleID,
		InvitedBy: actor,
	})
	if err != nil {
		h.respondError(w, r, "create invitation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

type acceptRequest struct {
	Token string `json:"token"`
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	userID := h.currentUserID(r)
	if userID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in to accept an invitation")
		return
	}
	var req acceptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Token == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "An invitation token is required")
		return
	}
	assignment, err := h.service.Accept(r.Context(), req.Token, userID)
	if err != nil {
		h.respondError(w, r, "accept invitation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, assignment)
}

func (h *Handler) listByScope(w http.ResponseWriter, r *http.Request) {
	invs, err := h.service.ListByScope(r.Context(), chi.URLParam(r, "scopeID"))
	if err != nil {
		h.respondError(w, r, "list invitations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invs)
}

func (h *Handler) currentUserID(r *http.Request) string {
	id, _ := shared.UserIDFromContext(r.Context())
	return id
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := shared.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.Problem(w, status, http.StatusText(status), shared.UserSafeMessage(err))
}
