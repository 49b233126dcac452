package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// FileWithHold атомарно регистрирует спор: запись спора, холд на
// невыплаченный остаток эскроу, перевод этапа и контракта в disputed.
// Контракт запоминает статус до спора, чтобы вернуться в него при решении.
func (r *DisputeRepository) FileWithHold(ctx context.Context, d *models.Dispute, holdAmount decimal.Decimal, currency string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO disputes (id, contract_id, milestone_id, initiator_id, respondent_id,
				status, reason, description, evidence_urls, response_deadline, awaiting_response_from)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			d.ID, d.ContractID, d.MilestoneID, d.InitiatorID, d.RespondentID,
			d.Status, d.Reason, d.Description, d.EvidenceURLs, d.ResponseDeadline, d.AwaitingResponseFrom,
		).Scan(&d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("dispute repository: create %w", err)
		}

		if holdAmount.IsPositive() {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO escrow_transactions (id, contract_id, milestone_id, type, status, amount, currency, description)
				VALUES ($1, $2, $3, 'dispute_hold', 'completed', $4, $5, 'Заморозка эскроу на время спора')
			`, uuid.New(), d.ContractID, d.MilestoneID, holdAmount, currency)
			if err != nil {
				return fmt.Errorf("dispute repository: insert hold %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE milestones SET status = 'disputed', auto_accept_at = NULL, updated_at = NOW()
			WHERE id = $1 AND status <> 'disputed'
		`, d.MilestoneID)
		if err != nil {
			return fmt.Errorf("dispute repository: mark milestone disputed %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE contracts
			SET pre_dispute_status = status, status = 'disputed', updated_at = NOW()
			WHERE id = $1 AND status <> 'disputed'
		`, d.ContractID)
		if err != nil {
			return fmt.Errorf("dispute repository: mark contract disputed %w", err)
		}
		return nil
	})
}

// GetByID возвращает спор по ID.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, common.ErrNotFound)
}

// GetActiveByContract возвращает нерешённый спор контракта, если он есть.
func (r *DisputeRepository) GetActiveByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	query := `
		SELECT * FROM disputes
		WHERE contract_id = $1 AND status IN ('open', 'under_review', 'escalated')
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &dispute, query, contractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("dispute repository: get active by contract %w", err)
	}
	return &dispute, nil
}

// ListByUser возвращает споры, где пользователь является стороной.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, int, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE initiator_id = $1 OR respondent_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("dispute repository: list by user %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM disputes WHERE initiator_id = $1 OR respondent_id = $1`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("dispute repository: count by user %w", err)
	}
	return disputes, total, nil
}

// ListAll возвращает споры для арбитража с фильтром по статусу.
func (r *DisputeRepository) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Dispute, int, error) {
	var disputes []models.Dispute
	var total int

	if status != "" {
		err := r.db.SelectContext(ctx, &disputes, `
			SELECT * FROM disputes WHERE status = $1
			ORDER BY created_at DESC, id ASC LIMIT $2 OFFSET $3
		`, status, limit, offset)
		if err != nil {
			return nil, 0, fmt.Errorf("dispute repository: list all %w", err)
		}
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM disputes WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("dispute repository: count all %w", err)
		}
		return disputes, total, nil
	}

	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("dispute repository: list all %w", err)
	}
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM disputes`); err != nil {
		return nil, 0, fmt.Errorf("dispute repository: count all %w", err)
	}
	return disputes, total, nil
}

// AppendMessage добавляет сообщение, не влияющее на дедлайн: внутренние
// заметки арбитража и реплики администраторов.
func (r *DisputeRepository) AppendMessage(ctx context.Context, m *models.DisputeMessage) error {
	query := `
		INSERT INTO dispute_messages (id, dispute_id, author_id, body, attachments, is_internal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.DisputeID, m.AuthorID, m.Body, m.Attachments, m.IsInternal,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: append message %w", err)
	}
	return nil
}

// AppendPartyReply вставляет реплику стороны и в той же транзакции переносит
// дедлайн, передавая ход оппоненту. Если спор успели решить, сообщение не
// вставляется и возвращается false.
func (r *DisputeRepository) AppendPartyReply(ctx context.Context, m *models.DisputeMessage, deadline time.Time, awaiting uuid.UUID) (bool, error) {
	var replied bool
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE disputes
			SET response_deadline = $2, awaiting_response_from = $3, updated_at = NOW()
			WHERE id = $1 AND status IN ('open', 'under_review', 'escalated')
		`, m.DisputeID, deadline, awaiting)
		if err != nil {
			return fmt.Errorf("dispute repository: reset deadline %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		query := `
			INSERT INTO dispute_messages (id, dispute_id, author_id, body, attachments, is_internal)
			VALUES ($1, $2, $3, $4, $5, FALSE)
			RETURNING created_at
		`
		err = tx.QueryRowxContext(ctx, query,
			m.ID, m.DisputeID, m.AuthorID, m.Body, m.Attachments,
		).Scan(&m.CreatedAt)
		if err != nil {
			return fmt.Errorf("dispute repository: append reply %w", err)
		}
		replied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return replied, nil
}

// ListMessages возвращает тред спора. Внутренние заметки арбитража
// отдаются только при includeInternal.
func (r *DisputeRepository) ListMessages(ctx context.Context, disputeID uuid.UUID, includeInternal bool) ([]models.DisputeMessage, error) {
	var messages []models.DisputeMessage
	query := `
		SELECT * FROM dispute_messages
		WHERE dispute_id = $1 AND (is_internal = FALSE OR $2)
		ORDER BY created_at ASC, id ASC
	`
	if err := r.db.SelectContext(ctx, &messages, query, disputeID, includeInternal); err != nil {
		return nil, fmt.Errorf("dispute repository: list messages %w", err)
	}
	return messages, nil
}

// MarkEscalated переводит спор в escalated из open/under_review.
func (r *DisputeRepository) MarkEscalated(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = 'escalated', updated_at = NOW()
		WHERE id = $1 AND status IN ('open', 'under_review')
	`, id)
	if err != nil {
		return false, fmt.Errorf("dispute repository: mark escalated %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ResolveParams — параметры закрытия спора с расчётом по эскроу.
// ReleaseAmount уходит фрилансеру, RefundAmount возвращается клиенту.
type ResolveParams struct {
	DisputeID        uuid.UUID
	ContractID       uuid.UUID
	MilestoneID      uuid.UUID
	Status           string
	ResolutionAmount decimal.NullDecimal
	Note             string
	ResolvedBy       *uuid.UUID
	ReleaseAmount    decimal.Decimal
	RefundAmount     decimal.Decimal
	Currency         string
}

// ResolveWithEscrow атомарно закрывает спор и проводит расчёт по эскроу.
// Условие по статусу в UPDATE гарантирует, что из двух конкурирующих
// решений выполнится ровно одно: второе получает false и ни одной
// записи в журнале.
func (r *DisputeRepository) ResolveWithEscrow(ctx context.Context, p ResolveParams) (bool, error) {
	var resolved bool
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Замок этапа сериализует расчёт с другими денежными операциями.
		var milestoneStatus string
		err := tx.GetContext(ctx, &milestoneStatus,
			`SELECT status FROM milestones WHERE id = $1 FOR UPDATE`, p.MilestoneID)
		if err != nil {
			return fmt.Errorf("dispute repository: lock milestone %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE disputes
			SET status = $2, resolution_amount = $3, resolution_note = $4,
				resolved_by = $5, resolved_at = NOW(),
				response_deadline = NULL, awaiting_response_from = NULL,
				updated_at = NOW()
			WHERE id = $1 AND status IN ('open', 'under_review', 'escalated')
		`, p.DisputeID, p.Status, p.ResolutionAmount, p.Note, p.ResolvedBy)
		if err != nil {
			return fmt.Errorf("dispute repository: mark resolved %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		if p.ReleaseAmount.IsPositive() {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO escrow_transactions (id, contract_id, milestone_id, type, status, amount, currency, description)
				VALUES ($1, $2, $3, 'release', 'completed', $4, $5, 'Выплата фрилансеру по решению спора')
			`, uuid.New(), p.ContractID, p.MilestoneID, p.ReleaseAmount, p.Currency)
			if err != nil {
				return fmt.Errorf("dispute repository: insert release %w", err)
			}
		}

		if p.RefundAmount.IsPositive() {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO escrow_transactions (id, contract_id, milestone_id, type, status, amount, currency, description)
				VALUES ($1, $2, $3, 'dispute_refund', 'completed', $4, $5, 'Возврат клиенту по решению спора')
			`, uuid.New(), p.ContractID, p.MilestoneID, p.RefundAmount, p.Currency)
			if err != nil {
				return fmt.Errorf("dispute repository: insert refund %w", err)
			}

			_, err = tx.ExecContext(ctx, `
				UPDATE invoices SET status = 'refunded', refunded_at = NOW()
				WHERE milestone_id = $1 AND status = 'paid'
			`, p.MilestoneID)
			if err != nil {
				return fmt.Errorf("dispute repository: mark invoices refunded %w", err)
			}
		}

		// Холды спора снимаются: журнал append-only, статус становится reversed.
		_, err = tx.ExecContext(ctx, `
			UPDATE escrow_transactions SET status = 'reversed'
			WHERE milestone_id = $1 AND type = 'dispute_hold' AND status = 'completed'
		`, p.MilestoneID)
		if err != nil {
			return fmt.Errorf("dispute repository: reverse holds %w", err)
		}

		// Эскроу этапа рассчитан. Этап закрывается принятым, если фрилансеру
		// что-то выплачено, иначе остаётся disputed как терминальная отметка.
		if p.ReleaseAmount.IsPositive() {
			_, err = tx.ExecContext(ctx, `
				UPDATE milestones
				SET escrow_released = TRUE, status = 'accepted', accepted_at = NOW(), updated_at = NOW()
				WHERE id = $1
			`, p.MilestoneID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE milestones SET escrow_released = TRUE, updated_at = NOW()
				WHERE id = $1
			`, p.MilestoneID)
		}
		if err != nil {
			return fmt.Errorf("dispute repository: settle milestone %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE contracts
			SET status = COALESCE(pre_dispute_status, 'active'), pre_dispute_status = NULL, updated_at = NOW()
			WHERE id = $1 AND status = 'disputed'
		`, p.ContractID)
		if err != nil {
			return fmt.Errorf("dispute repository: restore contract %w", err)
		}

		resolved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return resolved, nil
}

// ListExpired возвращает споры с истёкшим дедлайном ответа.
func (r *DisputeRepository) ListExpired(ctx context.Context, now time.Time) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE status IN ('open', 'under_review', 'escalated')
			AND response_deadline IS NOT NULL
			AND response_deadline < $1
		ORDER BY response_deadline ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list expired %w", err)
	}
	return disputes, nil
}
