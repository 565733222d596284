package membership

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SetMembership(ctx context.Context, userID, tier string, status Status, expiresAt *time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET membership_tier = $1,
		    membership_status = $2,
		    membership_expires_at = $3,
		    updated_at = NOW()
		WHERE external_id = $4
	`, tier, status, expiresAt, userID)
	return expectOneRow(result, err)
}

func (r *repository) SetStatus(ctx context.Context, userID string, status Status) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET membership_status = $1,
		    updated_at = NOW()
		WHERE external_id = $2
	`, status, userID)
	return expectOneRow(result, err)
}

func expectOneRow(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
