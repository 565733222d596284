package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	UserID  string          `db:"external_id" json:"user_id"`
	Credits decimal.Decimal `db:"credits" json:"credits"`
}

type Transaction struct {
	ID           int64           `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Type         string          `db:"type" json:"type"` // topup, promotion_payment, refund
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	Reference    *string         `db:"reference" json:"reference,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
