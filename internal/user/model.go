package user

import (
	"time"

	"github.com/shopspring/decimal"
)

// User mirrors the account owned by the external identity provider.
// Only the payment-related columns are kept here.
type User struct {
	ID                  int64           `db:"id" json:"-"`
	ExternalID          string          `db:"external_id" json:"external_id"`
	Email               string          `db:"email" json:"email"`
	Name                string          `db:"name" json:"name"`
	Credits             decimal.Decimal `db:"credits" json:"credits"`
	MembershipTier      string          `db:"membership_tier" json:"membership_tier"`
	MembershipStatus    string          `db:"membership_status" json:"membership_status"`
	MembershipExpiresAt *time.Time      `db:"membership_expires_at" json:"membership_expires_at,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}
