package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Статусы инвойсов.
const (
	InvoiceStatusPaid     = "paid"
	InvoiceStatusRefunded = "refunded"
)

// Invoice — счёт клиенту, выставляемый при фандинге этапа.
type Invoice struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Number      string          `db:"number" json:"number"`
	ContractID  uuid.UUID       `db:"contract_id" json:"contract_id"`
	MilestoneID uuid.UUID       `db:"milestone_id" json:"milestone_id"`
	ClientID    uuid.UUID       `db:"client_id" json:"client_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	FeeAmount   decimal.Decimal `db:"fee_amount" json:"fee_amount"`
	Currency    string          `db:"currency" json:"currency"`
	Status      string          `db:"status" json:"status"`
	IssuedAt    time.Time       `db:"issued_at" json:"issued_at"`
	RefundedAt  *time.Time      `db:"refunded_at" json:"refunded_at,omitempty"`
}
