package scopes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hazo-app/hazo-auth/internal/platform/httpx"
	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Handler wires the scope and branding HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cache     *BrandingCache
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. The cache may be nil.
func NewHandler(logger *slog.Logger, service *Service, cache *BrandingCache) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		cache:     cache,
		validator: validator.New(),
	}
}

// MountRoutes registers scope routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.lookup)
	r.Post("/", h.create)
	r.Get("/tree", h.tree)
	r.Route("/{scopeID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/children", h.children)
		r.Get("/ancestors", h.ancestors)
		r.Get("/descendants", h.descendants)
		r.Get("/root", h.root)
		r.Get("/branding", h.branding)
		r.Patch("/branding", h.patchBranding)
		r.Put("/branding", h.replaceBranding)
	})
}

type createScopeRequest struct {
	Name     string    `json:"name" validate:"required"`
	Level    string    `json:"level"`
	ParentID *string   `json:"parent_id"`
	Branding *Branding `json:"branding"`
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "name query parameter is required")
		return
	}
	scope, err := h.service.GetByName(r.Context(), name)
	if err != nil {
		h.respondError(w, r, "lookup scope", err)
		return
	}
	httpx.JSON(w, http.StatusOK, scope)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createScopeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "Scope name is required")
		return
	}
	scope, err := h.service.Create(r.Context(), CreateScope{
		Name:     req.Name,
		Level:    req.Level,
		ParentID: req.ParentID,
		Branding: req.Branding,
		ActorID:  h.actorID(r),
	})
	if err != nil {
		h.respondError(w, r, "create scope", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, scope)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, err := h.service.Get(r.Context(), chi.URLParam(r, "scopeID"))
	if err != nil {
		h.respondError(w, r, "get scope", err)
		return
	}
	httpx.JSON(w, http.StatusOK, scope)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	upd, err := decodeScopeUpdate(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	scope, err := h.service.Update(r.Context(), chi.URLParam(r, "scopeID"), upd, h.actorID(r))
	if err != nil {
		h.respondError(w, r, "update scope", err)
		return
	}
	h.bumpCache(r)
	httpx.JSON(w, http.StatusOK, scope)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "scopeID"), h.actorID(r)); err != nil {
		h.respondError(w, r, "delete scope", err)
		return
	}
	h.bumpCache(r)
	httpx.NoContent(w)
}

func (h *Handler) children(w http.ResponseWriter, r *http.Request) {
	children, err := h.service.Children(r.Context(), chi.URLParam(r, "scopeID"))
	if err != nil {
		h.respondError(w, r, "list children", err)
		return
	}
	httpx.JSON(w, http.StatusOK, children)
}

func (h *Handler) ancestors(w http.ResponseWriter, r *http.Request) {
	ancestors, err := h.service.Ancestors(r.Context(), chi.URLParam(r, "scopeID"))
	if err != nil {
		h.respondError(w, r, "list ancestors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ancestors)
}

func (h *Handler) descendants(w http.ResponseWriter, r *http.Request) {
	descendants, err := h.service.Descendants(r.Context(), chi.URLParam(r, "scopeID"))
	if err != nil {
		h.respondError(w, r, "list descendants", err)
		return
	}
	httpx.JSON(w, http.StatusOK, descendants)
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	rootID, err := h.service.RootID(r.Context(), chi.URLParam(r, "scopeID"))
	if err != nil {
		h.respondError(w, r, "resolve root", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"root_scope_id": rootID})
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	var rootID *string
	if v := r.URL.Query().Get("root_id"); v != "" {
		rootID = &v
	}
	tree, err := h.service.Tree(r.Context(), rootID)
	if err != nil {
		h.respondError(w, r, "build tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) branding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scopeID := chi.URLParam(r, "scopeID")

	if r.URL.Query().Get("effective") == "true" {
		branding, err := h.cache.Effective(ctx, scopeID, func(ctx context.Context) (*Branding, error) {
			return h.service.EffectiveBranding(ctx, scopeID)
		})
		if err != nil {
			h.respondError(w, r, "effective branding", err)
			return
		}
		httpx.JSON(w, http.StatusOK, branding)
		return
	}

	branding, err := h.service.OwnBranding(ctx, scopeID)
	if err != nil {
		h.respondError(w, r, "get branding", err)
		return
	}
	httpx.JSON(w, http.StatusOK, branding)
}

func (h *Handler) patchBranding(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeBrandingPatch(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	scope, err := h.service.UpdateBranding(r.Context(), chi.URLParam(r, "scopeID"), patch, h.actorID(r))
	if err != nil {
		h.respondError(w, r, "update branding", err)
		return
	}
	h.bumpCache(r)
	httpx.JSON(w, http.StatusOK, scope)
}

func (h *Handler) replaceBranding(w http.ResponseWriter, r *http.Request) {
	var branding *Branding
	if err := httpx.DecodeJSON(r, &branding); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	scope, err := h.service.ReplaceBranding(r.Context(), chi.URLParam(r, "scopeID"), branding, h.actorID(r))
	if err != nil {
		h.respondError(w, r, "replace branding", err)
		return
	}
	h.bumpCache(r)
	httpx.JSON(w, http.StatusOK, scope)
}

func (h *Handler) bumpCache(r *http.Request) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Bump(r.Context()); err != nil {
		h.logger.Warn("scopes: branding cache bump", slog.Any("error", err))
	}
}

func (h *Handler) actorID(r *http.Request) string {
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

// decodeScopeUpdate reads a partial update, distinguishing omitted fields
// from explicit nulls.
func decodeScopeUpdate(r *http.Request) (ScopeUpdate, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return ScopeUpdate{}, err
	}

	var upd ScopeUpdate
	if msg, ok := raw["name"]; ok {
		var v string
		if err := json.Unmarshal(msg, &v); err != nil {
			return ScopeUpdate{}, err
		}
		upd.Name = &v
	}
	if msg, ok := raw["level"]; ok {
		var v string
		if err := json.Unmarshal(msg, &v); err != nil {
			return ScopeUpdate{}, err
		}
		upd.Level = &v
	}
	if msg, ok := raw["parent_id"]; ok {
		var v *string
		if err := json.Unmarshal(msg, &v); err != nil {
			return ScopeUpdate{}, err
		}
		upd.ParentID = v
		upd.SetParent = true
	}
	assignNullable(raw, "logo_url", &upd.LogoURL, &upd.SetLogoURL)
	assignNullable(raw, "primary_color", &upd.PrimaryColor, &upd.SetPrimaryColor)
	assignNullable(raw, "secondary_color", &upd.SecondaryColor, &upd.SetSecondaryColor)
	assignNullable(raw, "tagline", &upd.Tagline, &upd.SetTagline)
	return upd, nil
}

func decodeBrandingPatch(r *http.Request) (BrandingPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return BrandingPatch{}, err
	}
	var patch BrandingPatch
	assignNullable(raw, "logo_url", &patch.LogoURL, &patch.SetLogoURL)
	assignNullable(raw, "primary_color", &patch.PrimaryColor, &patch.SetPrimaryColor)
	assignNullable(raw, "secondary_color", &patch.SecondaryColor, &patch.SetSecondaryColor)
	assignNullable(raw, "tagline", &patch.Tagline, &patch.SetTagline)
	return patch, nil
}

func assignNullable(raw map[string]json.RawMessage, key string, dst **string, set *bool) {
	msg, ok := raw[key]
	if !ok {
		return
	}
	var v *string
	if err := json.Unmarshal(msg, &v); err != nil {
		return
	}
	*dst = v
	*set = true
}
