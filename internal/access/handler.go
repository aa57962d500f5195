package access

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazo-app/hazo-auth/internal/observability"
	"github.com/hazo-app/hazo-auth/internal/platform/httpx"
	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Handler exposes access-resolution endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler constructs a Handler instance. Metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers access routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check", h.check)
	r.Get("/users/{userID}/effective", h.effective)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	scopeID := r.URL.Query().Get("scope_id")
	if userID == "" || scopeID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "user_id and scope_id query parameters are required")
		return
	}
	decision, err := h.service.CheckAccess(r.Context(), userID, scopeID)
	if err != nil {
		h.respondError(w, r, "access check", err)
		return
	}
	h.metrics.ObserveAccessCheck(decision.Granted)
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.EffectiveScopes(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondError(w, r, "effective scopes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := shared.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.Problem(w, status, http.StatusText(status), shared.UserSafeMessage(err))
}
