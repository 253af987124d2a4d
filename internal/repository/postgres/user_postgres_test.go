package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoapi/internal/model"
	"videoapi/internal/repository"
)

var userCols = []string{"id", "name", "email", "role", "tenant_id", "created_at"}

func TestUserPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "Ana", "ana@example.com", "viewer", "owner", time.Now()))

	u, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, u.Role)
	require.NotNil(t, u.TenantID)
	assert.Equal(t, "owner", u.Partition())

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err = repo.FindByID(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserPostgres(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WithArgs(model.RoleEditor).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE (.+) ORDER BY").
		WithArgs(model.RoleEditor, 10, 0).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "Ana", "ana@example.com", "editor", nil, time.Now()))

	res, err := repo.List(context.Background(), model.RoleEditor, repository.PageQuery{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	assert.Nil(t, res.Items[0].TenantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_UpdateTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserPostgres(db)
	ctx := context.Background()

	owner := "owner"
	mock.ExpectQuery("UPDATE users SET tenant_id = (.+) WHERE id = (.+) RETURNING").
		WithArgs("owner", "u1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "Ana", "ana@example.com", "viewer", "owner", time.Now()))

	u, err := repo.UpdateTenant(ctx, "u1", &owner)
	require.NoError(t, err)
	assert.Equal(t, "owner", u.Partition())

	mock.ExpectQuery("UPDATE users SET tenant_id = (.+) WHERE id = (.+) RETURNING").
		WithArgs(nil, "u1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "Ana", "ana@example.com", "viewer", nil, time.Now()))

	u, err = repo.UpdateTenant(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.Partition())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_UpdateRole_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserPostgres(db)

	mock.ExpectQuery("UPDATE users SET role = (.+) WHERE id = (.+) RETURNING").
		WithArgs(model.RoleAdmin, "missing").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err = repo.UpdateRole(context.Background(), "missing", model.RoleAdmin)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserPostgres_Tenants(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserPostgres(db)

	mock.ExpectQuery("SELECT (.+) FROM users u").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role", "tenant", "videos", "members"}).
			AddRow("u1", "Ana", "ana@example.com", "editor", "u1", 3, 0).
			AddRow("u2", "Bo", "bo@example.com", "viewer", "u1", 0, 0))

	out, err := repo.Tenants(context.Background())

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Active)
	assert.False(t, out[1].Active)
	assert.Equal(t, "u1", out[1].TenantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
