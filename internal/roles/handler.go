package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazo-app/hazo-auth/internal/platform/httpx"
	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Handler exposes read-only role endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers role routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{roleID}", h.get)
	r.Get("/{roleID}/permissions", h.permissions)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, r, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.Get(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.respondError(w, r, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.Permissions(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.respondError(w, r, "role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := shared.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.Problem(w, status, http.StatusText(status), shared.UserSafeMessage(err))
}
