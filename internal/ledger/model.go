package ledger

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePromotion    Type = "PROMOTION"
	TypeSubscription Type = "SUBSCRIPTION"
	TypeTopup        Type = "TOPUP"
	TypeUnknown      Type = "UNKNOWN"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// UnknownUser is stored when a payment cannot be attributed to an account.
const UnknownUser = "unknown"

// VATRate is the fixed share of gross revenue reported as VAT.
var VATRate = decimal.RequireFromString("0.18")

type Transaction struct {
	ID          int64           `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Type        Type            `db:"type" json:"type"`
	Description string          `db:"description" json:"description"`
	Status      Status          `db:"status" json:"status"`
	StripeID    *string         `db:"stripe_id" json:"stripe_id,omitempty"`
	Metadata    types.JSONText  `db:"metadata" json:"metadata,omitempty" swaggertype:"object"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Entry is a write request for the ledger.
type Entry struct {
	StripeID    string
	UserID      string
	Amount      decimal.Decimal
	Type        Type
	Description string
	Status      Status
	Metadata    map[string]string
	// CreatedAt is the processor's own event time. Zero means unknown.
	CreatedAt time.Time
}

// RecentTransaction is a ledger row joined with the owner's display info.
type RecentTransaction struct {
	Transaction
	UserEmail *string `db:"user_email" json:"user_email,omitempty"`
	UserName  *string `db:"user_name" json:"user_name,omitempty"`
}

// TypeTotal is one row of the per-type revenue sum.
type TypeTotal struct {
	Type  Type            `db:"type"`
	Total decimal.Decimal `db:"total"`
	Count int             `db:"count"`
}

type Buckets struct {
	Promotions    decimal.Decimal `json:"promotions"`
	Subscriptions decimal.Decimal `json:"subscriptions"`
	Topups        decimal.Decimal `json:"topups"`
	Other         decimal.Decimal `json:"other"`
}

type RevenueStats struct {
	TotalRevenue       decimal.Decimal     `json:"totalRevenue"`
	VATRevenue         decimal.Decimal     `json:"vatRevenue"`
	NetRevenue         decimal.Decimal     `json:"netRevenue"`
	TransactionCount   int                 `json:"transactionCount"`
	ByType             Buckets             `json:"byType"`
	RecentTransactions []RecentTransaction `json:"recentTransactions"`
}
