package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Методы вывода средств.
const (
	PayoutMethodStripe = "stripe"
	PayoutMethodPayPal = "paypal"
)

// Статусы выплат.
const (
	PayoutStatusPending   = "pending"
	PayoutStatusCompleted = "completed"
	PayoutStatusFailed    = "failed"
)

// Payout — выплата фрилансеру заработанных средств.
type Payout struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	FreelancerID     uuid.UUID       `db:"freelancer_id" json:"freelancer_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	Method           string          `db:"method" json:"method"`
	Status           string          `db:"status" json:"status"`
	GatewayReference *string         `db:"gateway_reference" json:"gateway_reference,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	CompletedAt      *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
