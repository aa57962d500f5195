package scopes

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// OwnBranding extracts the branding fields directly from the scope, with
// no inheritance. Returns nil when the scope has no branding at all.
func (s *Service) OwnBranding(ctx context.Context, id string) (*Branding, error) {
	scope, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return brandingOf(scope), nil
}

// EffectiveBranding resolves the branding actually displayed for a scope:
// its own when set, otherwise its root's own branding. Roots never chain
// further, so a root without branding resolves to nil.
func (s *Service) EffectiveBranding(ctx context.Context, id string) (*Branding, error) {
	scope, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope.HasBranding() {
		return brandingOf(scope), nil
	}
	if scope.ParentID == nil {
		return nil, nil
	}
	rootID, err := s.RootID(ctx, id)
	if err != nil {
		return nil, err
	}
	root, err := s.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	return brandingOf(root), nil
}

// UpdateBranding merges only the provided fields into the record.
func (s *Service) UpdateBranding(ctx context.Context, id string, patch BrandingPatch, actorID string) (Scope, error) {
	if IsSystemScope(id) {
		return Scope{}, shared.ErrSystemScope
	}
	if err := s.validatePatch(patch); err != nil {
		return Scope{}, err
	}
	upd := ScopeUpdate{
		LogoURL: patch.LogoURL, SetLogoURL: patch.SetLogoURL,
		PrimaryColor: patch.PrimaryColor, SetPrimaryColor: patch.SetPrimaryColor,
		SecondaryColor: patch.SecondaryColor, SetSecondaryColor: patch.SetSecondaryColor,
		Tagline: patch.Tagline, SetTagline: patch.SetTagline,
	}
	scope, err := s.repo.Update(ctx, id, upd, s.now())
	if err != nil {
		return Scope{}, s.storageErr("update branding", err, "scope_id", id)
	}
	s.recordAudit(ctx, actorID, "branding.update", id, nil)
	return scope, nil
}

// ReplaceBranding overwrites all four fields atomically; nil clears them.
func (s *Service) ReplaceBranding(ctx context.Context, id string, branding *Branding, actorID string) (Scope, error) {
	if IsSystemScope(id) {
		return Scope{}, shared.ErrSystemScope
	}
	upd := ScopeUpdate{SetLogoURL: true, SetPrimaryColor: true, SetSecondaryColor: true, SetTagline: true}
	if branding != nil {
		if err := s.validateBranding(*branding); err != nil {
			return Scope{}, err
		}
		upd.LogoURL = branding.LogoURL
		upd.PrimaryColor = branding.PrimaryColor
		upd.SecondaryColor = branding.SecondaryColor
		upd.Tagline = branding.Tagline
	}
	scope, err := s.repo.Update(ctx, id, upd, s.now())
	if err != nil {
		return Scope{}, s.storageErr("replace branding", err, "scope_id", id)
	}
	s.recordAudit(ctx, actorID, "branding.replace", id, nil)
	return scope, nil
}

func brandingOf(scope Scope) *Branding {
	if !scope.HasBranding() {
		return nil
	}
	return &Branding{
		LogoURL:        scope.LogoURL,
		PrimaryColor:   scope.PrimaryColor,
		SecondaryColor: scope.SecondaryColor,
		Tagline:        scope.Tagline,
	}
}

func (s *Service) validateBranding(b Branding) error {
	err := s.validate.Struct(b)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &shared.ValidationError{Field: "branding", Message: "Invalid branding"}
	}
	return brandingFieldError(verrs[0].StructField())
}

func (s *Service) validatePatch(patch BrandingPatch) error {
	b := Branding{}
	if patch.SetLogoURL {
		b.LogoURL = patch.LogoURL
	}
	if patch.SetPrimaryColor {
		b.PrimaryColor = patch.PrimaryColor
	}
	if patch.SetSecondaryColor {
		b.SecondaryColor = patch.SecondaryColor
	}
	if patch.SetTagline {
		b.Tagline = patch.Tagline
	}
	return s.validateBranding(b)
}

func (s *Service) validateBrandingUpdate(upd ScopeUpdate) error {
	return s.validatePatch(BrandingPatch{
		LogoURL: upd.LogoURL, SetLogoURL: upd.SetLogoURL,
		PrimaryColor: upd.PrimaryColor, SetPrimaryColor: upd.SetPrimaryColor,
		SecondaryColor: upd.SecondaryColor, SetSecondaryColor: upd.SetSecondaryColor,
		Tagline: upd.Tagline, SetTagline: upd.SetTagline,
	})
}

func brandingFieldError(field string) *shared.ValidationError {
	switch field {
	case "LogoURL":
		return &shared.ValidationError{Field: "logo_url", Message: "Logo URL must be 500 characters or fewer"}
	case "PrimaryColor":
		return &shared.ValidationError{Field: "primary_color", Message: "Primary color must be a hex color in #RRGGBB format"}
	case "SecondaryColor":
		return &shared.ValidationError{Field: "secondary_color", Message: "Secondary color must be a hex color in #RRGGBB format"}
	case "Tagline":
		return &shared.ValidationError{Field: "tagline", Message: "Tagline must be 200 characters or fewer"}
	default:
		return &shared.ValidationError{Field: field, Message: "Invalid branding"}
	}
}
