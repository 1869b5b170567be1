package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"bookstore/internal/model"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactor_CommitsOnSuccess(t *testing.T) {
	mock := newMockPool(t)
	tr := NewTransactor(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(model.RoleAdmin).
		WillReturnRows(pgxmock.NewRows([]string{"id", "is_active"}).AddRow(int64(1), true).AddRow(int64(2), true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs("a@example.com", "h", true, model.RoleUser, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := tr.WithinTx(context.Background(), func(repos Repositories) error {
		count, err := repos.Users.LockActiveAdmins(context.Background())
		if err != nil {
			return err
		}
		assert.Equal(t, 2, count)
		return repos.Users.Update(context.Background(), &model.User{ID: 2, Email: "a@example.com", HashedPassword: "h", IsActive: true, Role: model.RoleUser})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	tr := NewTransactor(mock)
	failure := errors.New("last admin")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tr.WithinTx(context.Background(), func(Repositories) error { return failure })

	assert.ErrorIs(t, err, failure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginFailure(t *testing.T) {
	mock := newMockPool(t)
	tr := NewTransactor(mock)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := tr.WithinTx(context.Background(), func(Repositories) error {
		called = true
		return nil
	})

	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}
