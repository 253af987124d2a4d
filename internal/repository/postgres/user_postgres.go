package postgres

import (
	"context"
	"database/sql"
	"errors"

	"videoapi/internal/model"
	"videoapi/internal/repository"
)

const userColumns = `id, name, email, role, tenant_id, created_at`

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		tenantID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &tenantID, &u.CreatedAt); err != nil {
		return nil, err
	}
	if tenantID.Valid {
		u.TenantID = &tenantID.String
	}
	return &u, nil
}

func userOrNotFound(u *model.User, err error) (*model.User, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// FindByID fetches a single user by its ID.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return userOrNotFound(scanUser(r.db.QueryRowContext(ctx, q, id)))
}

// List returns users newest first; an empty role matches every role.
func (r *UserPostgres) List(ctx context.Context, role model.Role, pq repository.PageQuery) (*repository.PageResult[model.User], error) {
	const qCount = `SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, role).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + userColumns + ` FROM users WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, role, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.User]{Items: items, Total: total}, nil
}

// UpdateRole sets the role of a user.
func (r *UserPostgres) UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error) {
	q := `UPDATE users SET role = $1 WHERE id = $2 RETURNING ` + userColumns
	return userOrNotFound(scanUser(r.db.QueryRowContext(ctx, q, role, id)))
}

// UpdateTenant moves a user into another partition, or back to its own when tenantID is nil.
func (r *UserPostgres) UpdateTenant(ctx context.Context, id string, tenantID *string) (*model.User, error) {
	var arg sql.NullString
	if tenantID != nil {
		arg = sql.NullString{String: *tenantID, Valid: true}
	}
	q := `UPDATE users SET tenant_id = $1 WHERE id = $2 RETURNING ` + userColumns
	return userOrNotFound(scanUser(r.db.QueryRowContext(ctx, q, arg, id)))
}

// Tenants lists every user with the number of videos and members in its partition.
func (r *UserPostgres) Tenants(ctx context.Context) ([]model.TenantSummary, error) {
	const q = `
		SELECT u.id, u.name, u.email, u.role, COALESCE(u.tenant_id, u.id),
			(SELECT COUNT(*) FROM videos v WHERE v.tenant_id = u.id),
			(SELECT COUNT(*) FROM users m WHERE m.tenant_id = u.id AND m.id <> u.id)
		FROM users u
		ORDER BY u.name ASC, u.id ASC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.TenantSummary, 0)
	for rows.Next() {
		var t model.TenantSummary
		if err := rows.Scan(&t.UserID, &t.Name, &t.Email, &t.Role, &t.TenantID, &t.VideoCount, &t.MemberCount); err != nil {
			return nil, err
		}
		t.Active = t.VideoCount > 0 || t.MemberCount > 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
