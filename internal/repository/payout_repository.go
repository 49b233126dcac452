package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

type PayoutRepository struct {
	db *sqlx.DB
}

func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create сохраняет заявку на выплату.
func (r *PayoutRepository) Create(ctx context.Context, p *models.Payout) error {
	query := `
		INSERT INTO payouts (id, freelancer_id, amount, currency, method, status, gateway_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.FreelancerID, p.Amount, p.Currency, p.Method, p.Status, p.GatewayReference,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("payout repository: create %w", err)
	}
	return nil
}

// GetByID возвращает выплату по ID.
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return common.GetByID[models.Payout](ctx, r.db, "payouts", id, common.ErrNotFound)
}

// ListByFreelancer возвращает выплаты фрилансера.
func (r *PayoutRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Payout, int, error) {
	var payouts []models.Payout
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payouts WHERE freelancer_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, freelancerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("payout repository: list by freelancer %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payouts WHERE freelancer_id = $1`, freelancerID)
	if err != nil {
		return nil, 0, fmt.Errorf("payout repository: count by freelancer %w", err)
	}
	return payouts, total, nil
}

// ListAll возвращает выплаты всех фрилансеров с опциональным фильтром
// по статусу. Для админки.
func (r *PayoutRepository) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Payout, int, error) {
	var payouts []models.Payout
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payouts
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("payout repository: list all %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM payouts WHERE ($1 = '' OR status = $1)`, status)
	if err != nil {
		return nil, 0, fmt.Errorf("payout repository: count all %w", err)
	}
	return payouts, total, nil
}

// SumReservedByFreelancer возвращает сумму, уже недоступную для вывода:
// выплаченное плюс заявки в обработке.
func (r *PayoutRepository) SumReservedByFreelancer(ctx context.Context, freelancerID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM payouts
		WHERE freelancer_id = $1 AND status IN ('pending', 'completed')
	`, freelancerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("payout repository: sum reserved %w", err)
	}
	return total, nil
}

// UpdateStatus переводит выплату в новый статус только из ожидаемого.
// Непустой gatewayRef сохраняется как внешний идентификатор операции.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, gatewayRef *string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payouts
		SET status = $3,
			gateway_reference = COALESCE($4, gateway_reference),
			completed_at = CASE WHEN $3 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $1 AND status = $2
	`, id, from, to, gatewayRef)
	if err != nil {
		return false, fmt.Errorf("payout repository: update status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
