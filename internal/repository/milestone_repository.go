package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

type MilestoneRepository struct {
	db *sqlx.DB
}

func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// Create сохраняет новый этап контракта.
func (r *MilestoneRepository) Create(ctx context.Context, m *models.Milestone) error {
	query := `
		INSERT INTO milestones (id, contract_id, title, description, amount, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.ContractID, m.Title, m.Description, m.Amount, m.Status, m.DueDate,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("milestone repository: create %w", err)
	}
	return nil
}

// GetByID возвращает этап по ID.
func (r *MilestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return common.GetByID[models.Milestone](ctx, r.db, "milestones", id, common.ErrNotFound)
}

// ListByContract возвращает все этапы контракта в порядке создания.
func (r *MilestoneRepository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := r.db.SelectContext(ctx, &milestones, `
		SELECT * FROM milestones WHERE contract_id = $1 ORDER BY created_at ASC, id ASC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("milestone repository: list by contract %w", err)
	}
	return milestones, nil
}

// ListByUser возвращает этапы всех контрактов пользователя.
func (r *MilestoneRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Milestone, int, error) {
	var milestones []models.Milestone
	err := r.db.SelectContext(ctx, &milestones, `
		SELECT m.* FROM milestones m
		JOIN contracts c ON c.id = m.contract_id
		WHERE c.client_id = $1 OR c.freelancer_id = $1
		ORDER BY m.created_at DESC, m.id ASC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("milestone repository: list by user %w", err)
	}

	var total int
	err = r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM milestones m
		JOIN contracts c ON c.id = m.contract_id
		WHERE c.client_id = $1 OR c.freelancer_id = $1
	`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("milestone repository: count by user %w", err)
	}
	return milestones, total, nil
}

// HasActiveMilestones проверяет, есть ли у контракта незакрытые этапы.
func (r *MilestoneRepository) HasActiveMilestones(ctx context.Context, contractID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM milestones
		WHERE contract_id = $1 AND status NOT IN ('accepted')
	`, contractID)
	if err != nil {
		return false, fmt.Errorf("milestone repository: has active %w", err)
	}
	return count > 0, nil
}

// UpdateStatus переводит этап в новый статус только из ожидаемого текущего.
// Возвращает false, если этап уже не в ожидаемом статусе.
func (r *MilestoneRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("milestone repository: update status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkSubmitted переводит этап в submitted и назначает срок автоприёмки.
func (r *MilestoneRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, from string, autoAcceptAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones
		SET status = 'submitted', submitted_at = NOW(), auto_accept_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, autoAcceptAt)
	if err != nil {
		return false, fmt.Errorf("milestone repository: mark submitted %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkRevisionRequested возвращает этап на доработку и увеличивает счётчик ревизий.
func (r *MilestoneRepository) MarkRevisionRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones
		SET status = 'revision_requested', revision_count = revision_count + 1,
			auto_accept_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'submitted'
	`, id)
	if err != nil {
		return false, fmt.Errorf("milestone repository: mark revision requested %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkAccepted принимает сданный этап.
func (r *MilestoneRepository) MarkAccepted(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE milestones
		SET status = 'accepted', accepted_at = NOW(), auto_accept_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'submitted'
	`, id)
	if err != nil {
		return false, fmt.Errorf("milestone repository: mark accepted %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListAutoAcceptDue возвращает этапы, у которых истёк срок автоприёмки.
func (r *MilestoneRepository) ListAutoAcceptDue(ctx context.Context, now time.Time) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := r.db.SelectContext(ctx, &milestones, `
		SELECT * FROM milestones
		WHERE status = 'submitted' AND auto_accept_at IS NOT NULL AND auto_accept_at < $1
		ORDER BY auto_accept_at ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("milestone repository: list auto accept due %w", err)
	}
	return milestones, nil
}
