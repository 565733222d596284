package listing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Listing, error) {
	query := `
		SELECT id, owner_id, title, promotion_tier, promotion_expires_at, is_promoted, created_at, updated_at
		FROM listings
		WHERE id = $1
	`

	var l Listing
	err := r.db.GetContext(ctx, &l, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}

	return &l, nil
}

// SetPromotion overwrites the promotion fields; it never accumulates.
func (r *repository) SetPromotion(ctx context.Context, id int64, tier Tier, expiresAt time.Time) error {
	query := `
		UPDATE listings
		SET promotion_tier = $1,
		    promotion_expires_at = $2,
		    is_promoted = TRUE,
		    updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, tier, expiresAt, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrListingNotFound
	}

	return nil
}

func (r *repository) ExpirePromotions(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE listings
		SET is_promoted = FALSE,
		    promotion_tier = 'NONE',
		    updated_at = NOW()
		WHERE is_promoted = TRUE
		  AND promotion_expires_at IS NOT NULL
		  AND promotion_expires_at <= $1
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
