package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

var (
	ErrMilestoneMissing = errors.New("milestone not found")
	ErrAlreadyFunded    = errors.New("milestone escrow already funded")
	ErrAlreadyReleased  = errors.New("milestone escrow already released")
	ErrNotFunded        = errors.New("milestone escrow not funded")
	ErrExceedsBalance   = errors.New("amount exceeds unreleased escrow balance")
)

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// FundParams — параметры фандинга эскроу этапа.
type FundParams struct {
	ContractID       uuid.UUID
	MilestoneID      uuid.UUID
	ClientID         uuid.UUID
	Amount           decimal.Decimal
	ClientFee        decimal.Decimal
	Currency         string
	InvoiceNumber    string
	GatewayReference *string
}

// Fund зачисляет средства в эскроу этапа: записи fund и client_fee в журнале,
// инвойс клиенту, флаг escrow_funded и перевод этапа в работу. Повторный
// фандинг отсекается под блокировкой строки этапа.
func (r *EscrowRepository) Fund(ctx context.Context, p FundParams) (*models.Invoice, error) {
	invoice := &models.Invoice{
		ID:          uuid.New(),
		Number:      p.InvoiceNumber,
		ContractID:  p.ContractID,
		MilestoneID: p.MilestoneID,
		ClientID:    p.ClientID,
		Amount:      p.Amount,
		FeeAmount:   p.ClientFee,
		Currency:    p.Currency,
		Status:      models.InvoiceStatusPaid,
	}

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		m, err := r.lockMilestone(ctx, tx, p.MilestoneID)
		if err != nil {
			return err
		}
		if m.EscrowFunded {
			return ErrAlreadyFunded
		}

		fund := &models.EscrowTransaction{
			ID:               uuid.New(),
			ContractID:       p.ContractID,
			MilestoneID:      p.MilestoneID,
			Type:             models.EscrowTxFund,
			Status:           models.EscrowTxStatusCompleted,
			Amount:           p.Amount,
			Currency:         p.Currency,
			GatewayReference: p.GatewayReference,
			Description:      "Зачисление средств в эскроу этапа",
		}
		if err := r.insert(ctx, tx, fund); err != nil {
			return err
		}

		if p.ClientFee.IsPositive() {
			fee := &models.EscrowTransaction{
				ID:          uuid.New(),
				ContractID:  p.ContractID,
				MilestoneID: p.MilestoneID,
				Type:        models.EscrowTxClientFee,
				Status:      models.EscrowTxStatusCompleted,
				Amount:      p.ClientFee,
				Currency:    p.Currency,
				Description: "Сервисный сбор клиента",
			}
			if err := r.insert(ctx, tx, fee); err != nil {
				return err
			}
		}

		if err := r.insertInvoice(ctx, tx, invoice); err != nil {
			return err
		}
		return r.setFunded(ctx, tx, p.MilestoneID)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Release выплачивает фрилансеру net и удерживает fee как комиссию платформы.
// Требует оплаченного и ещё не выплаченного эскроу.
func (r *EscrowRepository) Release(ctx context.Context, contractID, milestoneID uuid.UUID, net, fee decimal.Decimal, currency string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		m, err := r.lockMilestone(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if !m.EscrowFunded {
			return ErrNotFunded
		}
		if m.EscrowReleased {
			return ErrAlreadyReleased
		}

		release := &models.EscrowTransaction{
			ID:          uuid.New(),
			ContractID:  contractID,
			MilestoneID: milestoneID,
			Type:        models.EscrowTxRelease,
			Status:      models.EscrowTxStatusCompleted,
			Amount:      net,
			Currency:    currency,
			Description: "Выплата фрилансеру за принятый этап",
		}
		if err := r.insert(ctx, tx, release); err != nil {
			return err
		}

		if fee.IsPositive() {
			platformFee := &models.EscrowTransaction{
				ID:          uuid.New(),
				ContractID:  contractID,
				MilestoneID: milestoneID,
				Type:        models.EscrowTxPlatformFee,
				Status:      models.EscrowTxStatusCompleted,
				Amount:      fee,
				Currency:    currency,
				Description: "Комиссия платформы",
			}
			if err := r.insert(ctx, tx, platformFee); err != nil {
				return err
			}
		}

		return r.setReleased(ctx, tx, milestoneID)
	})
}

// Refund возвращает клиенту часть или весь невыплаченный остаток эскроу.
func (r *EscrowRepository) Refund(ctx context.Context, contractID, milestoneID uuid.UUID, amount decimal.Decimal, currency string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		m, err := r.lockMilestone(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if !m.EscrowFunded {
			return ErrNotFunded
		}
		if m.EscrowReleased {
			return ErrAlreadyReleased
		}

		balance, err := r.MilestoneBalance(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance.Available()) {
			return ErrExceedsBalance
		}

		refund := &models.EscrowTransaction{
			ID:          uuid.New(),
			ContractID:  contractID,
			MilestoneID: milestoneID,
			Type:        models.EscrowTxRefund,
			Status:      models.EscrowTxStatusCompleted,
			Amount:      amount,
			Currency:    currency,
			Description: "Возврат средств клиенту",
		}
		if err := r.insert(ctx, tx, refund); err != nil {
			return err
		}

		// Полный возврат закрывает инвойсы этапа.
		if amount.Equal(balance.Available()) {
			if err := r.markInvoicesRefunded(ctx, tx, milestoneID); err != nil {
				return err
			}
		}
		return nil
	})
}

// lockMilestone читает этап с блокировкой строки. Все денежные операции
// по этапу сериализуются через этот замок.
func (r *EscrowRepository) lockMilestone(ctx context.Context, tx *sqlx.Tx, milestoneID uuid.UUID) (*models.Milestone, error) {
	var m models.Milestone
	err := tx.GetContext(ctx, &m, `SELECT * FROM milestones WHERE id = $1 FOR UPDATE`, milestoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMilestoneMissing
		}
		return nil, fmt.Errorf("escrow repository: lock milestone %w", err)
	}
	return &m, nil
}

// insert добавляет запись в журнал эскроу.
func (r *EscrowRepository) insert(ctx context.Context, tx *sqlx.Tx, t *models.EscrowTransaction) error {
	query := `
		INSERT INTO escrow_transactions
			(id, contract_id, milestone_id, type, status, amount, currency, gateway_reference, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		t.ID, t.ContractID, t.MilestoneID, t.Type, t.Status,
		t.Amount, t.Currency, t.GatewayReference, t.Description,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("escrow repository: insert transaction %w", err)
	}
	return nil
}

// GetMilestoneBalance возвращает состояние эскроу этапа вне транзакции.
func (r *EscrowRepository) GetMilestoneBalance(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowBalance, error) {
	return r.MilestoneBalance(ctx, r.db, milestoneID)
}

// MilestoneBalance агрегирует журнал по этапу. Учитываются только
// завершённые записи: reversed и failed в баланс не входят.
func (r *EscrowRepository) MilestoneBalance(ctx context.Context, q sqlx.QueryerContext, milestoneID uuid.UUID) (*models.EscrowBalance, error) {
	var b models.EscrowBalance
	query := `
		SELECT
			$1::uuid AS milestone_id,
			COALESCE(SUM(amount) FILTER (WHERE type = 'fund'), 0)           AS funded,
			COALESCE(SUM(amount) FILTER (WHERE type = 'release'), 0)        AS released,
			COALESCE(SUM(amount) FILTER (WHERE type = 'refund'), 0)         AS refunded,
			COALESCE(SUM(amount) FILTER (WHERE type = 'dispute_hold'), 0)   AS dispute_held,
			COALESCE(SUM(amount) FILTER (WHERE type = 'dispute_refund'), 0) AS dispute_refunds
		FROM escrow_transactions
		WHERE milestone_id = $1 AND status = 'completed'
	`
	if err := sqlx.GetContext(ctx, q, &b, query, milestoneID); err != nil {
		return nil, fmt.Errorf("escrow repository: milestone balance %w", err)
	}
	return &b, nil
}

// ContractLedger агрегирует журнал по контракту целиком.
type ContractLedger struct {
	ContractID    uuid.UUID       `db:"contract_id" json:"contract_id"`
	TotalFunded   decimal.Decimal `db:"total_funded" json:"total_funded"`
	TotalReleased decimal.Decimal `db:"total_released" json:"total_released"`
	TotalRefunded decimal.Decimal `db:"total_refunded" json:"total_refunded"`
	PlatformFees  decimal.Decimal `db:"platform_fees" json:"platform_fees"`
	ClientFees    decimal.Decimal `db:"client_fees" json:"client_fees"`
}

// GetContractLedger возвращает сводку эскроу контракта.
func (r *EscrowRepository) GetContractLedger(ctx context.Context, contractID uuid.UUID) (*ContractLedger, error) {
	var ledger ContractLedger
	query := `
		SELECT
			$1::uuid AS contract_id,
			COALESCE(SUM(amount) FILTER (WHERE type = 'fund'), 0)         AS total_funded,
			COALESCE(SUM(amount) FILTER (WHERE type = 'release'), 0)      AS total_released,
			COALESCE(SUM(amount) FILTER (WHERE type IN ('refund', 'dispute_refund')), 0) AS total_refunded,
			COALESCE(SUM(amount) FILTER (WHERE type = 'platform_fee'), 0) AS platform_fees,
			COALESCE(SUM(amount) FILTER (WHERE type = 'client_fee'), 0)   AS client_fees
		FROM escrow_transactions
		WHERE contract_id = $1 AND status = 'completed'
	`
	if err := r.db.GetContext(ctx, &ledger, query, contractID); err != nil {
		return nil, fmt.Errorf("escrow repository: contract ledger %w", err)
	}
	return &ledger, nil
}

// ListByContract возвращает журнал транзакций контракта.
func (r *EscrowRepository) ListByContract(ctx context.Context, contractID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, int, error) {
	var transactions []models.EscrowTransaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM escrow_transactions
		WHERE contract_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, contractID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("escrow repository: list by contract %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM escrow_transactions WHERE contract_id = $1`, contractID)
	if err != nil {
		return nil, 0, fmt.Errorf("escrow repository: count by contract %w", err)
	}
	return transactions, total, nil
}

// ListByUser возвращает транзакции по всем контрактам пользователя.
func (r *EscrowRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, int, error) {
	var transactions []models.EscrowTransaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT t.* FROM escrow_transactions t
		JOIN contracts c ON c.id = t.contract_id
		WHERE c.client_id = $1 OR c.freelancer_id = $1
		ORDER BY t.created_at DESC, t.id ASC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("escrow repository: list by user %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM escrow_transactions t
		JOIN contracts c ON c.id = t.contract_id
		WHERE c.client_id = $1 OR c.freelancer_id = $1
	`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("escrow repository: count by user %w", err)
	}
	return transactions, total, nil
}

// GetTransaction возвращает одну запись журнала.
func (r *EscrowRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	var t models.EscrowTransaction
	err := r.db.GetContext(ctx, &t, `SELECT * FROM escrow_transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("escrow repository: get transaction %w", err)
	}
	return &t, nil
}

// setFunded помечает эскроу этапа оплаченным. Ожидающий этап переходит
// в работу; поздний фандинг уже принятого этапа статус не трогает.
func (r *EscrowRepository) setFunded(ctx context.Context, tx *sqlx.Tx, milestoneID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE milestones
		SET escrow_funded = TRUE,
		    status = CASE WHEN status = 'pending' THEN 'in_progress' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`, milestoneID)
	if err != nil {
		return fmt.Errorf("escrow repository: set funded %w", err)
	}
	return nil
}

// setReleased помечает эскроу этапа выплаченным.
func (r *EscrowRepository) setReleased(ctx context.Context, tx *sqlx.Tx, milestoneID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE milestones SET escrow_released = TRUE, updated_at = NOW()
		WHERE id = $1
	`, milestoneID)
	if err != nil {
		return fmt.Errorf("escrow repository: set released %w", err)
	}
	return nil
}

// insertInvoice выписывает инвойс в рамках транзакции фандинга.
func (r *EscrowRepository) insertInvoice(ctx context.Context, tx *sqlx.Tx, inv *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, number, contract_id, milestone_id, client_id, amount, fee_amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING issued_at
	`
	err := tx.QueryRowxContext(ctx, query,
		inv.ID, inv.Number, inv.ContractID, inv.MilestoneID, inv.ClientID,
		inv.Amount, inv.FeeAmount, inv.Currency, inv.Status,
	).Scan(&inv.IssuedAt)
	if err != nil {
		return fmt.Errorf("escrow repository: insert invoice %w", err)
	}
	return nil
}

// markInvoicesRefunded помечает инвойсы этапа возвращёнными.
func (r *EscrowRepository) markInvoicesRefunded(ctx context.Context, tx *sqlx.Tx, milestoneID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE invoices SET status = 'refunded', refunded_at = NOW()
		WHERE milestone_id = $1 AND status = 'paid'
	`, milestoneID)
	if err != nil {
		return fmt.Errorf("escrow repository: mark invoices refunded %w", err)
	}
	return nil
}
