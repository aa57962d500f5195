package assignments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Repository defines persistence operations for user-scope assignments.
type Repository interface {
	Find(ctx context.Context, userID, scopeID string) (Assignment, error)
	ListByUser(ctx context.Context, userID string) ([]Assignment, error)
	ListByScope(ctx context.Context, scopeID string) ([]Assignment, error)
	Insert(ctx context.Context, a Assignment) error
	Delete(ctx context.Context, userID, scopeID string) error
	ExistsForUser(ctx context.Context, userID string) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const assignmentColumns = `user_id, scope_id, role_id, root_scope_id, created_at, changed_at`

func (r *repository) Find(ctx context.Context, userID, scopeID string) (Assignment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM user_scope_assignments WHERE user_id = $1 AND scope_id = $2`,
		userID, scopeID)
	return scanAssignment(row)
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM user_scope_assignments WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (r *repository) ListByScope(ctx context.Context, scopeID string) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM user_scope_assignments WHERE scope_id = $1 ORDER BY created_at`,
		scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

// Insert relies on the (user_id, scope_id) unique constraint to make
// concurrent assigns race-safe; a violation surfaces as ErrAlreadyExists.
func (r *repository) Insert(ctx context.Context, a Assignment) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_scope_assignments (`+assignmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.UserID, a.ScopeID, a.RoleID, a.RootScopeID,
		pgtype.Timestamptz{Time: a.CreatedAt, Valid: true},
		pgtype.Timestamptz{Time: a.ChangedAt, Valid: true},
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, userID, scopeID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_scope_assignments WHERE user_id = $1 AND scope_id = $2`,
		userID, scopeID)
	return err
}

func (r *repository) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_scope_assignments WHERE user_id = $1)`,
		userID).Scan(&exists)
	return exists, err
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	var createdAt, changedAt pgtype.Timestamptz
	err := row.Scan(&a.UserID, &a.ScopeID, &a.RoleID, &a.RootScopeID, &createdAt, &changedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, shared.ErrNotFound
		}
		return Assignment{}, err
	}
	if createdAt.Valid {
		a.CreatedAt = createdAt.Time
	}
	if changedAt.Valid {
		a.ChangedAt = changedAt.Time
	}
	return a, nil
}

func collectAssignments(rows pgx.Rows) ([]Assignment, error) {
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
