package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Статусы этапа работ.
const (
	MilestoneStatusPending           = "pending"
	MilestoneStatusInProgress        = "in_progress"
	MilestoneStatusSubmitted         = "submitted"
	MilestoneStatusRevisionRequested = "revision_requested"
	MilestoneStatusAccepted          = "accepted"
	MilestoneStatusDisputed          = "disputed"
)

// Milestone — этап контракта с собственным эскроу.
type Milestone struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	ContractID     uuid.UUID       `db:"contract_id" json:"contract_id"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Status         string          `db:"status" json:"status"`
	RevisionCount  int             `db:"revision_count" json:"revision_count"`
	EscrowFunded   bool            `db:"escrow_funded" json:"escrow_funded"`
	EscrowReleased bool            `db:"escrow_released" json:"escrow_released"`
	SubmittedAt    *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	AcceptedAt     *time.Time      `db:"accepted_at" json:"accepted_at,omitempty"`
	AutoAcceptAt   *time.Time      `db:"auto_accept_at" json:"auto_accept_at,omitempty"`
	DueDate        *time.Time      `db:"due_date" json:"due_date,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// CanSubmit проверяет, может ли фрилансер сдать этап на проверку.
// Сдача до фандинга разрешена: неоплаченный этап остаётся в pending,
// и фрилансер не должен ждать клиента, чтобы показать работу.
func (m *Milestone) CanSubmit() bool {
	switch m.Status {
	case MilestoneStatusPending, MilestoneStatusInProgress, MilestoneStatusRevisionRequested:
		return true
	}
	return false
}

// CanReview проверяет, может ли клиент принять этап или запросить доработку.
func (m *Milestone) CanReview() bool {
	return m.Status == MilestoneStatusSubmitted
}

// CanFund проверяет, допускает ли статус этапа фандинг эскроу.
func (m *Milestone) CanFund() bool {
	return m.Status == MilestoneStatusPending
}
