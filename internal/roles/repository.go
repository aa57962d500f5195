package roles

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Repository defines data access for roles and permissions.
type Repository interface {
	Get(ctx context.Context, id string) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	List(ctx context.Context) ([]Role, error)
	Insert(ctx context.Context, role Role) error
	EnsurePermission(ctx context.Context, perm Permission) error
	AttachPermission(ctx context.Context, roleID, permissionID string) error
	ListPermissions(ctx context.Context, roleID string) ([]Permission, error)
}

// PostgresRepository provides PostgreSQL backed persistence.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const roleColumns = `id, name, description, created_at, changed_at`

func (r *PostgresRepository) Get(ctx context.Context, id string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRole(row)
}

func (r *PostgresRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *PostgresRepository) Insert(ctx context.Context, role Role) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO roles (id, name, description, created_at, changed_at) VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.Name, role.Description, role.CreatedAt, role.ChangedAt,
	)
	if isUniqueViolation(err) {
		return shared.ErrAlreadyExists
	}
	return err
}

// EnsurePermission inserts the permission if it does not exist yet.
func (r *PostgresRepository) EnsurePermission(ctx context.Context, perm Permission) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permissions (id, name, description) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		perm.ID, perm.Name, perm.Description,
	)
	return err
}

// AttachPermission links a permission to a role, ignoring duplicates.
func (r *PostgresRepository) AttachPermission(ctx context.Context, roleID, permissionID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permissionID,
	)
	return err
}

func (r *PostgresRepository) ListPermissions(ctx context.Context, roleID string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.description
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1
		 ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role      Role
		createdAt time.Time
		changedAt time.Time
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &createdAt, &changedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	role.CreatedAt = createdAt
	role.ChangedAt = changedAt
	return role, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
