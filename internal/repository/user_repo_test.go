package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"bookstore/internal/model"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "hashed_password", "is_active", "role", "created_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	createdAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("reader@example.com", "hash", true, model.RoleUser).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), createdAt))

	user := &model.User{Email: "reader@example.com", HashedPassword: "hash", IsActive: true, Role: model.RoleUser}
	require.NoError(t, repo.Create(context.Background(), user))

	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, createdAt, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UniqueViolationIsWrapped(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	pgErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("reader@example.com", "hash", true, model.RoleUser).
		WillReturnError(pgErr)

	err := repo.Create(context.Background(), &model.User{Email: "reader@example.com", HashedPassword: "hash", IsActive: true, Role: model.RoleUser})

	var got *pgconn.PgError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, pgerrcode.UniqueViolation, got.Code)
}

func TestUserRepository_FindByEmail(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE lower(email) = lower($1)")).
		WithArgs("Reader@Example.com").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(int64(1), "reader@example.com", "hash", true, model.RoleUser, now))

	user, err := repo.FindByEmail(context.Background(), "Reader@Example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "reader@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(userCols))

	user, err := repo.FindByID(context.Background(), 42)
	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByIDForUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	createdAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(int64(3), "reader@example.com", "hash", true, model.RoleUser, createdAt))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows(userCols))

	user, err := repo.FindByIDForUpdate(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "reader@example.com", user.Email)

	user, err = repo.FindByIDForUpdate(context.Background(), 404)
	assert.NoError(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List_ClampsPage(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY id LIMIT $1 OFFSET $2")).
		WithArgs(model.MaxPageLimit, 0).
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow(int64(1), "a@example.com", "h", true, model.RoleAdmin, now).
			AddRow(int64(2), "b@example.com", "h", false, model.RoleUser, now))

	users, err := repo.List(context.Background(), model.Page{Skip: -5, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[0].IsAdmin())
	assert.False(t, users[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Update(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	user := &model.User{ID: 3, Email: "new@example.com", HashedPassword: "h", IsActive: true, Role: model.RoleAdmin}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs(user.Email, user.HashedPassword, user.IsActive, user.Role, user.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.Update(context.Background(), user))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs(user.Email, user.HashedPassword, user.IsActive, user.Role, user.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.Update(context.Background(), user), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_LockActiveAdmins(t *testing.T) {
	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 ORDER BY id FOR UPDATE")).
		WithArgs(model.RoleAdmin).
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_active"}).
			AddRow(int64(1), true).
			AddRow(int64(2), false).
			AddRow(int64(3), true))

	count, err := repo.LockActiveAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
