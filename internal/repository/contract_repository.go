package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

type ContractRepository struct {
	db *sqlx.DB
}

func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create сохраняет новый контракт.
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	query := `
		INSERT INTO contracts (id, client_id, freelancer_id, title, description, contract_type,
			status, total_amount, hourly_rate, currency, platform_fee_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		contract.ID, contract.ClientID, contract.FreelancerID, contract.Title,
		contract.Description, contract.ContractType, contract.Status,
		contract.TotalAmount, contract.HourlyRate, contract.Currency, contract.PlatformFeePercent,
	).Scan(&contract.CreatedAt, &contract.UpdatedAt)
	if err != nil {
		return fmt.Errorf("contract repository: create %w", err)
	}
	return nil
}

// GetByID возвращает контракт по ID.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return common.GetByID[models.Contract](ctx, r.db, "contracts", id, common.ErrNotFound)
}

// ListByUser возвращает контракты, где пользователь является стороной.
func (r *ContractRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, int, error) {
	var contracts []models.Contract
	err := r.db.SelectContext(ctx, &contracts, `
		SELECT * FROM contracts
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("contract repository: list by user %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM contracts WHERE client_id = $1 OR freelancer_id = $1`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("contract repository: count by user %w", err)
	}
	return contracts, total, nil
}

// ListAll возвращает все контракты для админки.
func (r *ContractRepository) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Contract, int, error) {
	var contracts []models.Contract
	var total int

	if status != "" {
		err := r.db.SelectContext(ctx, &contracts, `
			SELECT * FROM contracts WHERE status = $1
			ORDER BY created_at DESC, id ASC LIMIT $2 OFFSET $3
		`, status, limit, offset)
		if err != nil {
			return nil, 0, fmt.Errorf("contract repository: list all %w", err)
		}
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contracts WHERE status = $1`, status); err != nil {
			return nil, 0, fmt.Errorf("contract repository: count all %w", err)
		}
		return contracts, total, nil
	}

	err := r.db.SelectContext(ctx, &contracts, `
		SELECT * FROM contracts ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("contract repository: list all %w", err)
	}
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contracts`); err != nil {
		return nil, 0, fmt.Errorf("contract repository: count all %w", err)
	}
	return contracts, total, nil
}

// UpdateStatus переводит контракт в новый статус только из ожидаемого текущего.
// Возвращает false, если контракт уже не в ожидаемом статусе.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contracts SET status = $3,
			started_at = CASE WHEN $3 = 'active' AND started_at IS NULL THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $3 = 'completed' THEN NOW() ELSE completed_at END,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN NOW() ELSE cancelled_at END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("contract repository: update status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

