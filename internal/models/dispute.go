package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Причины спора.
const (
	DisputeReasonQuality       = "quality"
	DisputeReasonNonDelivery   = "non_delivery"
	DisputeReasonScopeChange   = "scope_change"
	DisputeReasonPayment       = "payment"
	DisputeReasonCommunication = "communication"
	DisputeReasonOther         = "other"
)

// ValidDisputeReason проверяет, что причина входит в известный перечень.
func ValidDisputeReason(reason string) bool {
	switch reason {
	case DisputeReasonQuality, DisputeReasonNonDelivery, DisputeReasonScopeChange,
		DisputeReasonPayment, DisputeReasonCommunication, DisputeReasonOther:
		return true
	}
	return false
}

// Статусы спора.
const (
	DisputeStatusOpen               = "open"
	DisputeStatusUnderReview        = "under_review"
	DisputeStatusEscalated          = "escalated"
	DisputeStatusResolvedClient     = "resolved_client"
	DisputeStatusResolvedFreelancer = "resolved_freelancer"
	DisputeStatusResolvedSplit      = "resolved_split"
)

// Dispute — спор по этапу контракта.
type Dispute struct {
	ID                   uuid.UUID           `db:"id" json:"id"`
	ContractID           uuid.UUID           `db:"contract_id" json:"contract_id"`
	MilestoneID          uuid.UUID           `db:"milestone_id" json:"milestone_id"`
	InitiatorID          uuid.UUID           `db:"initiator_id" json:"initiator_id"`
	RespondentID         uuid.UUID           `db:"respondent_id" json:"respondent_id"`
	Status               string              `db:"status" json:"status"`
	Reason               string              `db:"reason" json:"reason"`
	Description          string              `db:"description" json:"description"`
	EvidenceURLs         json.RawMessage     `db:"evidence_urls" json:"evidence_urls,omitempty"`
	ResponseDeadline     *time.Time          `db:"response_deadline" json:"response_deadline,omitempty"`
	AwaitingResponseFrom *uuid.UUID          `db:"awaiting_response_from" json:"awaiting_response_from,omitempty"`
	ResolutionNote       *string             `db:"resolution_note" json:"resolution_note,omitempty"`
	ResolutionAmount     decimal.NullDecimal `db:"resolution_amount" json:"resolution_amount,omitempty"`
	ResolvedBy           *uuid.UUID          `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time          `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt            time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at" json:"updated_at"`
}

// DisputeMessage — сообщение в споре. Внутренние заметки арбитража
// видны только администраторам и не влияют на дедлайн.
type DisputeMessage struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	DisputeID   uuid.UUID      `db:"dispute_id" json:"dispute_id"`
	AuthorID    uuid.UUID      `db:"author_id" json:"author_id"`
	Body        string         `db:"body" json:"body"`
	Attachments pq.StringArray `db:"attachments" json:"attachments,omitempty"`
	IsInternal  bool           `db:"is_internal" json:"is_internal"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// IsResolved возвращает true для любого терминального статуса спора.
func (d *Dispute) IsResolved() bool {
	switch d.Status {
	case DisputeStatusResolvedClient, DisputeStatusResolvedFreelancer, DisputeStatusResolvedSplit:
		return true
	}
	return false
}

// IsActive возвращает true, пока спор не решён.
func (d *Dispute) IsActive() bool {
	return !d.IsResolved()
}

// CanEscalate проверяет допустимость эскалации из текущего статуса.
func (d *Dispute) CanEscalate() bool {
	return d.Status == DisputeStatusOpen || d.Status == DisputeStatusUnderReview
}

// IsParty возвращает true, если пользователь участвует в споре.
func (d *Dispute) IsParty(userID uuid.UUID) bool {
	return d.InitiatorID == userID || d.RespondentID == userID
}

// Counterparty возвращает вторую сторону спора относительно userID.
func (d *Dispute) Counterparty(userID uuid.UUID) uuid.UUID {
	if d.InitiatorID == userID {
		return d.RespondentID
	}
	return d.InitiatorID
}

// DeadlineExpired проверяет, истёк ли дедлайн ответа на момент now.
func (d *Dispute) DeadlineExpired(now time.Time) bool {
	return d.IsActive() && d.ResponseDeadline != nil && now.After(*d.ResponseDeadline)
}
