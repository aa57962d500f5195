package scopes

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Auditor records mutations for the audit trail. Failures are logged and
// never fail the operation.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the scope store: CRUD plus hierarchy traversal.
// All traversal is iterative; the acyclicity invariant is enforced on
// every parent change.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	audit    Auditor
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds a Service instance. The auditor may be nil.
func NewService(repo Repository, logger *slog.Logger, audit Auditor) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		audit:    audit,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateScope collects the inputs for Create.
type CreateScope struct {
	Name     string
	Level    string
	ParentID *string
	Branding *Branding
	ActorID  string
}

// Get returns the scope with the given ID.
func (s *Service) Get(ctx context.Context, id string) (Scope, error) {
	scope, err := s.repo.Get(ctx, id)
	if err != nil {
		return Scope{}, s.storageErr("get", err, "scope_id", id)
	}
	return scope, nil
}

// GetByName returns the first scope whose name matches exactly.
func (s *Service) GetByName(ctx context.Context, name string) (Scope, error) {
	scope, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return Scope{}, s.storageErr("get_by_name", err, "name", name)
	}
	return scope, nil
}

// Create inserts a new scope. A given parent must already exist.
func (s *Service) Create(ctx context.Context, in CreateScope) (Scope, error) {
	name := norm.NFC.String(strings.TrimSpace(in.Name))
	if name == "" {
		return Scope{}, &shared.ValidationError{Field: "name", Message: "Scope name is required"}
	}
	if in.ParentID != nil {
		if _, err := s.repo.Get(ctx, *in.ParentID); err != nil {
			return Scope{}, s.storageErr("create: resolve parent", err, "parent_id", *in.ParentID)
		}
	}
	if in.Branding != nil {
		if err := s.validateBranding(*in.Branding); err != nil {
			return Scope{}, err
		}
	}

	now := s.now()
	scope := Scope{
		ID:        uuid.NewString(),
		Name:      name,
		Level:     strings.TrimSpace(in.Level),
		ParentID:  in.ParentID,
		CreatedAt: now,
		ChangedAt: now,
	}
	if in.Branding != nil {
		scope.LogoURL = in.Branding.LogoURL
		scope.PrimaryColor = in.Branding.PrimaryColor
		scope.SecondaryColor = in.Branding.SecondaryColor
		scope.Tagline = in.Branding.Tagline
	}

	if err := s.repo.Insert(ctx, scope); err != nil {
		return Scope{}, s.storageErr("create", err, "scope_id", scope.ID)
	}
	s.recordAudit(ctx, in.ActorID, "scope.create", scope.ID, map[string]any{"name": scope.Name})
	return scope, nil
}

// Update applies a partial update. System scopes are immutable. Parent
// changes are checked against self-parenting and cycle creation before
// anything is written.
func (s *Service) Update(ctx context.Context, id string, upd ScopeUpdate, actorID string) (Scope, error) {
	if IsSystemScope(id) {
		return Scope{}, shared.ErrSystemScope
	}
	if _, err := s.Get(ctx, id); err != nil {
		return Scope{}, err
	}

	if upd.SetParent && upd.ParentID != nil {
		newParent := *upd.ParentID
		if newParent == id {
			return Scope{}, shared.ErrSelfParent
		}
		descendants, err := s.Descendants(ctx, id)
		if err != nil {
			return Scope{}, err
		}
		for _, d := range descendants {
			if d.ID == newParent {
				return Scope{}, shared.ErrCycle
			}
		}
		if _, err := s.repo.Get(ctx, newParent); err != nil {
			return Scope{}, s.storageErr("update: resolve parent", err, "parent_id", newParent)
		}
	}

	if err := s.validateBrandingUpdate(upd); err != nil {
		return Scope{}, err
	}
	if upd.Name != nil {
		trimmed := norm.NFC.String(strings.TrimSpace(*upd.Name))
		if trimmed == "" {
			return Scope{}, &shared.ValidationError{Field: "name", Message: "Scope name is required"}
		}
		upd.Name = &trimmed
	}

	scope, err := s.repo.Update(ctx, id, upd, s.now())
	if err != nil {
		return Scope{}, s.storageErr("update", err, "scope_id", id)
	}
	s.recordAudit(ctx, actorID, "scope.update", id, nil)
	return scope, nil
}

// Delete removes a scope. Cascading to descendants is a storage concern.
func (s *Service) Delete(ctx context.Context, id string, actorID string) error {
	if IsSystemScope(id) {
		return shared.ErrSystemScope
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storageErr("delete", err, "scope_id", id)
	}
	s.recordAudit(ctx, actorID, "scope.delete", id, nil)
	return nil
}

// Children returns the direct children of a scope.
func (s *Service) Children(ctx context.Context, id string) ([]Scope, error) {
	children, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return nil, s.storageErr("children", err, "scope_id", id)
	}
	if children == nil {
		children = []Scope{}
	}
	return children, nil
}

// Ancestors walks parent links up to the root, ordered immediate parent
// first. A dangling parent reference truncates the walk instead of
// failing.
func (s *Service) Ancestors(ctx context.Context, id string) ([]Scope, error) {
	scope, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []Scope{}
	seen := map[string]struct{}{scope.ID: {}}
	cur := scope
	for cur.ParentID != nil {
		parentID := *cur.ParentID
		if _, dup := seen[parentID]; dup {
			break
		}
		parent, err := s.repo.Get(ctx, parentID)
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("scopes: dangling parent reference",
				slog.String("scope_id", cur.ID), slog.String("parent_id", parentID))
			break
		}
		if err != nil {
			return nil, s.storageErr("ancestors", err, "scope_id", parentID)
		}
		chain = append(chain, parent)
		seen[parentID] = struct{}{}
		cur = parent
	}
	return chain, nil
}

// Descendants collects every scope below the given one, depth-first with
// an explicit stack.
func (s *Service) Descendants(ctx context.Context, id string) ([]Scope, error) {
	out := []Scope{}
	stack := []string{id}
	seen := map[string]struct{}{id: {}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		children, err := s.repo.ListChildren(ctx, cur)
		if err != nil {
			return nil, s.storageErr("descendants", err, "scope_id", cur)
		}
		for _, child := range children {
			if _, dup := seen[child.ID]; dup {
				continue
			}
			seen[child.ID] = struct{}{}
			out = append(out, child)
			stack = append(stack, child.ID)
		}
	}
	return out, nil
}

// RootID resolves the root of a scope's tree. Falls back to the scope's
// own ID when ancestor resolution yields nothing.
func (s *Service) RootID(ctx context.Context, id string) (string, error) {
	scope, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if scope.ParentID == nil {
		return scope.ID, nil
	}
	ancestors, err := s.Ancestors(ctx, id)
	if err != nil {
		return "", err
	}
	if len(ancestors) == 0 {
		return id, nil
	}
	return ancestors[len(ancestors)-1].ID, nil
}

// Tree assembles nested children arrays from a starting scope, or from
// all roots (system scopes excluded) when rootID is nil.
func (s *Service) Tree(ctx context.Context, rootID *string) ([]*TreeNode, error) {
	var roots []Scope
	if rootID != nil {
		root, err := s.Get(ctx, *rootID)
		if err != nil {
			return nil, err
		}
		roots = []Scope{root}
	} else {
		all, err := s.repo.ListRoots(ctx)
		if err != nil {
			return nil, s.storageErr("tree: list roots", err)
		}
		for _, r := range all {
			if IsSystemScope(r.ID) {
				continue
			}
			roots = append(roots, r)
		}
	}

	out := make([]*TreeNode, 0, len(roots))
	for _, root := range roots {
		node := &TreeNode{Scope: root, Children: []*TreeNode{}}
		descendants, err := s.Descendants(ctx, root.ID)
		if err != nil {
			return nil, err
		}
		nodes := map[string]*TreeNode{root.ID: node}
		for _, d := range descendants {
			nodes[d.ID] = &TreeNode{Scope: d, Children: []*TreeNode{}}
		}
		for _, d := range descendants {
			if d.ParentID == nil {
				continue
			}
			if parent, ok := nodes[*d.ParentID]; ok {
				parent.Children = append(parent.Children, nodes[d.ID])
			}
		}
		out = append(out, node)
	}
	return out, nil
}

// EnsureSuperAdmin gets or creates the reserved super-admin scope.
func (s *Service) EnsureSuperAdmin(ctx context.Context) (Scope, error) {
	return s.ensureSystemScope(ctx, ScopeIDSuperAdmin, SuperAdminScopeName, "system")
}

// EnsureDefaultSystem gets or creates the reserved default-system scope.
func (s *Service) EnsureDefaultSystem(ctx context.Context) (Scope, error) {
	return s.ensureSystemScope(ctx, ScopeIDDefaultSystem, DefaultSystemScopeName, "default")
}

func (s *Service) ensureSystemScope(ctx context.Context, id, name, level string) (Scope, error) {
	scope, err := s.repo.Get(ctx, id)
	if err == nil {
		return scope, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Scope{}, s.storageErr("ensure system scope", err, "scope_id", id)
	}
	now := s.now()
	scope = Scope{ID: id, Name: name, Level: level, CreatedAt: now, ChangedAt: now}
	if err := s.repo.Insert(ctx, scope); err != nil {
		// Lost the race against a concurrent ensure; re-read.
		if existing, getErr := s.repo.Get(ctx, id); getErr == nil {
			return existing, nil
		}
		return Scope{}, s.storageErr("ensure system scope: insert", err, "scope_id", id)
	}
	return scope, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "scope",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("scopes: audit record", slog.Any("error", err))
	}
}

// storageErr logs unexpected storage failures with operation context and
// replaces them with a generic error. NotFound passes through untouched.
func (s *Service) storageErr(op string, err error, kv ...string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.ErrNotFound
	}
	attrs := []any{slog.String("op", op), slog.Any("error", err)}
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, slog.String(kv[i], kv[i+1]))
	}
	s.logger.Error("scopes: storage failure", attrs...)
	return shared.ErrStorage
}
