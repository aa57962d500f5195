package invitations

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Repository defines data access for invitations.
type Repository interface {
	Insert(ctx context.Context, inv Invitation) error
	GetByToken(ctx context.Context, token string) (Invitation, error)
	MarkAccepted(ctx context.Context, id string, at time.Time) error
	HasPendingByEmail(ctx context.Context, email string, now time.Time) (bool, error)
	ListByScope(ctx context.Context, scopeID string) ([]Invitation, error)
}

// PostgresRepository provides PostgreSQL backed persistence.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const invitationColumns = `id, email, scope_id, role_id, token, invited_by, expires_at, accepted_at, created_at, changed_at`

func (r *PostgresRepository) Insert(ctx context.Context, inv Invitation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO invitations (id, email, scope_id, role_id, token, invited_by, expires_at, created_at, changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.Email, inv.ScopeID, inv.RoleID, inv.Token, inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt, inv.ChangedAt,
	)
	return err
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (Invitation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token)
	return scanInvitation(row)
}

func (r *PostgresRepository) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invitations SET accepted_at = $2, changed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) HasPendingByEmail(ctx context.Context, email string, now time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invitations WHERE email = $1 AND accepted_at IS NULL AND expires_at > $2)`,
		email, now,
	).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) ListByScope(ctx context.Context, scopeID string) ([]Invitation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE scope_id = $1 ORDER BY created_at DESC`, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invs []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

func scanInvitation(row pgx.Row) (Invitation, error) {
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.Email, &inv.ScopeID, &inv.RoleID, &inv.Token, &inv.InvitedBy,
		&inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt, &inv.ChangedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invitation{}, shared.ErrNotFound
		}
		return Invitation{}, err
	}
	return inv, nil
}
