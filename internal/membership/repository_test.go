package membership

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMembershipMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func TestSetMembership(t *testing.T) {
	repo, mock, close := setupMembershipMock(t)
	defer close()

	expires := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE users
		SET membership_tier = $1,
		    membership_status = $2,
		    membership_expires_at = $3,
		    updated_at = NOW()
		WHERE external_id = $4
	`)).
		WithArgs("PRO", StatusActive, expires, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetMembership(context.Background(), "u1", "PRO", StatusActive, &expires))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_UserMissing(t *testing.T) {
	repo, mock, close := setupMembershipMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET membership_status = $1")).
		WithArgs(StatusCancelled, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), "ghost", StatusCancelled)
	require.ErrorIs(t, err, ErrUserNotFound)
}
