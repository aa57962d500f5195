package scopes

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Repository defines persistence operations for scopes.
type Repository interface {
	Get(ctx context.Context, id string) (Scope, error)
	GetByName(ctx context.Context, name string) (Scope, error)
	ListChildren(ctx context.Context, parentID string) ([]Scope, error)
	ListRoots(ctx context.Context) ([]Scope, error)
	Insert(ctx context.Context, scope Scope) error
	Update(ctx context.Context, id string, upd ScopeUpdate, changedAt time.Time) (Scope, error)
	Delete(ctx context.Context, id string) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const scopeColumns = `id, name, level, parent_id, logo_url, primary_color, secondary_color, tagline, created_at, changed_at`

func (r *repository) Get(ctx context.Context, id string) (Scope, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scopeColumns+` FROM scopes WHERE id = $1`, id)
	return scanScope(row)
}

func (r *repository) GetByName(ctx context.Context, name string) (Scope, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scopeColumns+` FROM scopes WHERE name = $1 ORDER BY created_at LIMIT 1`, name)
	return scanScope(row)
}

func (r *repository) ListChildren(ctx context.Context, parentID string) ([]Scope, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scopeColumns+` FROM scopes WHERE parent_id = $1 ORDER BY created_at`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScopes(rows)
}

func (r *repository) ListRoots(ctx context.Context) ([]Scope, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+scopeColumns+` FROM scopes WHERE parent_id IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScopes(rows)
}

func (r *repository) Insert(ctx context.Context, scope Scope) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO scopes (`+scopeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		scope.ID, scope.Name, scope.Level, scope.ParentID,
		scope.LogoURL, scope.PrimaryColor, scope.SecondaryColor, scope.Tagline,
		pgtype.Timestamptz{Time: scope.CreatedAt, Valid: true},
		pgtype.Timestamptz{Time: scope.ChangedAt, Valid: true},
	)
	return err
}

// Update builds a dynamic SET clause so only the fields present in the
// partial update touch the row.
func (r *repository) Update(ctx context.Context, id string, upd ScopeUpdate, changedAt time.Time) (Scope, error) {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 10)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if upd.Name != nil {
		sets = append(sets, "name = "+arg(*upd.Name))
	}
	if upd.Level != nil {
		sets = append(sets, "level = "+arg(*upd.Level))
	}
	if upd.SetParent {
		sets = append(sets, "parent_id = "+arg(upd.ParentID))
	}
	if upd.SetLogoURL {
		sets = append(sets, "logo_url = "+arg(upd.LogoURL))
	}
	if upd.SetPrimaryColor {
		sets = append(sets, "primary_color = "+arg(upd.PrimaryColor))
	}
	if upd.SetSecondaryColor {
		sets = append(sets, "secondary_color = "+arg(upd.SecondaryColor))
	}
	if upd.SetTagline {
		sets = append(sets, "tagline = "+arg(upd.Tagline))
	}

	sets = append(sets, "changed_at = "+arg(pgtype.Timestamptz{Time: changedAt, Valid: true}))

	query := "UPDATE scopes SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = " + arg(id) + " RETURNING " + scopeColumns

	row := r.pool.QueryRow(ctx, query, args...)
	return scanScope(row)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM scopes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanScope(row pgx.Row) (Scope, error) {
	var s Scope
	var createdAt, changedAt pgtype.Timestamptz
	err := row.Scan(&s.ID, &s.Name, &s.Level, &s.ParentID,
		&s.LogoURL, &s.PrimaryColor, &s.SecondaryColor, &s.Tagline,
		&createdAt, &changedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Scope{}, shared.ErrNotFound
		}
		return Scope{}, err
	}
	if createdAt.Valid {
		s.CreatedAt = createdAt.Time
	}
	if changedAt.Valid {
		s.ChangedAt = changedAt.Time
	}
	return s, nil
}

func collectScopes(rows pgx.Rows) ([]Scope, error) {
	var out []Scope
	for rows.Next() {
		s, err := scanScope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
