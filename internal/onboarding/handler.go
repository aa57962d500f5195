package onboarding

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hazo-app/hazo-auth/internal/platform/httpx"
	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Handler exposes the onboarding endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers onboarding routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/firm", h.createFirm)
	r.Get("/status", h.status)
}

type createFirmRequest struct {
	FirmName          string `json:"firm_name" validate:"required,max=200"`
	OrgStructureLabel string `json:"org_structure_label" validate:"omitempty,max=100"`
}

func (h *Handler) createFirm(w http.ResponseWriter, r *http.Request) {
	userID := h.currentUserID(r)
	if userID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in to create a firm")
		return
	}
	var req createFirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "Firm name is required and must be 200 characters or fewer")
		return
	}
	result, err := h.service.CreateFirm(r.Context(), CreateFirmInput{
		UserID:            userID,
		FirmName:          req.FirmName,
		OrgStructureLabel: req.OrgStructureLabel,
	})
	if err != nil {
		h.respondError(w, r, "create firm", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	userID := h.currentUserID(r)
	if userID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Sign in to check onboarding status")
		return
	}
	status, err := h.service.Status(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, "onboarding status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": status})
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
