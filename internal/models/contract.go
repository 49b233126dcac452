package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Типы контракта.
const (
	ContractTypeFixed  = "fixed"
	ContractTypeHourly = "hourly"
)

// Статусы контракта.
const (
	ContractStatusDraft     = "draft"
	ContractStatusActive    = "active"
	ContractStatusSuspended = "suspended"
	ContractStatusDisputed  = "disputed"
	ContractStatusCompleted = "completed"
	ContractStatusCancelled = "cancelled"
)

// Contract — договор между клиентом и фрилансером.
type Contract struct {
	ID                 uuid.UUID           `db:"id" json:"id"`
	ClientID           uuid.UUID           `db:"client_id" json:"client_id"`
	FreelancerID       uuid.UUID           `db:"freelancer_id" json:"freelancer_id"`
	Title              string              `db:"title" json:"title"`
	Description        string              `db:"description" json:"description"`
	ContractType       string              `db:"contract_type" json:"contract_type"`
	Status             string              `db:"status" json:"status"`
	TotalAmount        decimal.Decimal     `db:"total_amount" json:"total_amount"`
	HourlyRate         decimal.NullDecimal `db:"hourly_rate" json:"hourly_rate,omitempty"`
	Currency           string              `db:"currency" json:"currency"`
	PlatformFeePercent decimal.NullDecimal `db:"platform_fee_percent" json:"platform_fee_percent"`
	PreDisputeStatus   *string             `db:"pre_dispute_status" json:"-"`
	StartedAt          *time.Time          `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// contractTransitions описывает допустимые переходы статусов.
// Все переходы однонаправленные, кроме пары active <-> suspended
// и disputed, который возвращается в статус, действовавший до спора.
var contractTransitions = map[string][]string{
	ContractStatusDraft:     {ContractStatusActive, ContractStatusCancelled},
	ContractStatusActive:    {ContractStatusSuspended, ContractStatusDisputed, ContractStatusCompleted, ContractStatusCancelled},
	ContractStatusSuspended: {ContractStatusActive, ContractStatusDisputed, ContractStatusCancelled},
	ContractStatusDisputed:  {ContractStatusActive, ContractStatusSuspended, ContractStatusCancelled},
	ContractStatusCompleted: {},
	ContractStatusCancelled: {},
}

// CanTransitionTo проверяет допустимость перехода контракта в новый статус.
func (c *Contract) CanTransitionTo(next string) bool {
	for _, allowed := range contractTransitions[c.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsParty возвращает true, если пользователь является стороной контракта.
func (c *Contract) IsParty(userID uuid.UUID) bool {
	return c.ClientID == userID || c.FreelancerID == userID
}

// Counterparty возвращает вторую сторону контракта относительно userID.
func (c *Contract) Counterparty(userID uuid.UUID) uuid.UUID {
	if c.ClientID == userID {
		return c.FreelancerID
	}
	return c.ClientID
}
