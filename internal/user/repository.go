package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	query := `
		SELECT id, external_id, email, name, credits, membership_tier, membership_status,
		       membership_expires_at, created_at, updated_at
		FROM users
		WHERE external_id = $1
	`

	var u User
	err := r.db.GetContext(ctx, &u, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}
