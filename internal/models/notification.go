package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы уведомлений.
const (
	NotificationDisputeFiled     = "dispute_filed"
	NotificationDisputeMessage   = "dispute_message"
	NotificationDisputeEscalated = "dispute_escalated"
	NotificationDisputeResolved  = "dispute_resolved"
	NotificationMilestoneFunded  = "milestone_funded"
	NotificationMilestoneSubmit  = "milestone_submitted"
	NotificationMilestoneAccept  = "milestone_accepted"
	NotificationRevisionRequest  = "revision_requested"
	NotificationPayoutCompleted  = "payout_completed"
)

// Notification — уведомление пользователя.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Type      string     `db:"type" json:"type"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	EntityID  *uuid.UUID `db:"entity_id" json:"entity_id,omitempty"`
	IsRead    bool       `db:"is_read" json:"is_read"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
