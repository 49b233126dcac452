package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

type EvidenceRepository struct {
	db *sqlx.DB
}

func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Create сохраняет метаданные файла-доказательства.
func (r *EvidenceRepository) Create(ctx context.Context, f *models.EvidenceFile) error {
	query := `
		INSERT INTO evidence_files (id, dispute_id, uploader_id, file_name, file_path, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		f.ID, f.DisputeID, f.UploaderID, f.FileName, f.FilePath, f.MimeType, f.SizeBytes,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("evidence repository: create %w", err)
	}
	return nil
}

// GetByID возвращает файл-доказательство по ID.
func (r *EvidenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EvidenceFile, error) {
	return common.GetByID[models.EvidenceFile](ctx, r.db, "evidence_files", id, common.ErrNotFound)
}

// ListByDispute возвращает файлы спора.
func (r *EvidenceRepository) ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]models.EvidenceFile, error) {
	var files []models.EvidenceFile
	err := r.db.SelectContext(ctx, &files, `
		SELECT * FROM evidence_files WHERE dispute_id = $1 ORDER BY created_at ASC, id ASC
	`, disputeID)
	if err != nil {
		return nil, fmt.Errorf("evidence repository: list by dispute %w", err)
	}
	return files, nil
}
