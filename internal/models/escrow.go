package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Типы эскроу-транзакций.
const (
	EscrowTxFund          = "fund"
	EscrowTxFundFailed    = "fund_failed"
	EscrowTxRelease       = "release"
	EscrowTxRefund        = "refund"
	EscrowTxDisputeHold   = "dispute_hold"
	EscrowTxDisputeRefund = "dispute_refund"
	EscrowTxPlatformFee   = "platform_fee"
	EscrowTxClientFee     = "client_fee"
)

// Статусы эскроу-транзакций.
const (
	EscrowTxStatusCompleted = "completed"
	EscrowTxStatusPending   = "pending"
	EscrowTxStatusFailed    = "failed"
	EscrowTxStatusReversed  = "reversed"
)

// EscrowTransaction — запись в журнале эскроу. Журнал append-only:
// записи никогда не изменяются задним числом, отмена холда
// выражается сменой статуса на reversed.
type EscrowTransaction struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ContractID       uuid.UUID       `db:"contract_id" json:"contract_id"`
	MilestoneID      uuid.UUID       `db:"milestone_id" json:"milestone_id"`
	Type             string          `db:"type" json:"type"`
	Status           string          `db:"status" json:"status"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	GatewayReference *string         `db:"gateway_reference" json:"gateway_reference,omitempty"`
	Description      string          `db:"description" json:"description"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// EscrowBalance — агрегированное состояние эскроу этапа,
// вычисляется из журнала, нигде не хранится.
type EscrowBalance struct {
	MilestoneID    uuid.UUID       `db:"milestone_id" json:"milestone_id"`
	Funded         decimal.Decimal `db:"funded" json:"funded"`
	Released       decimal.Decimal `db:"released" json:"released"`
	Refunded       decimal.Decimal `db:"refunded" json:"refunded"`
	DisputeHeld    decimal.Decimal `db:"dispute_held" json:"dispute_held"`
	DisputeRefunds decimal.Decimal `db:"dispute_refunds" json:"dispute_refunds"`
}

// Available возвращает невыплаченный остаток эскроу.
func (b EscrowBalance) Available() decimal.Decimal {
	return b.Funded.Sub(b.Released).Sub(b.Refunded).Sub(b.DisputeRefunds)
}
