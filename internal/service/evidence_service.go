package service

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
	"github.com/monkeysworks/monkeyswork-backend/internal/storage"
)

// EvidenceStore — хранилище метаданных файлов-доказательств.
type EvidenceStore interface {
	Create(ctx context.Context, f *models.EvidenceFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EvidenceFile, error)
	ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]models.EvidenceFile, error)
}

// EvidenceBlobStorage — файловое хранилище содержимого доказательств.
type EvidenceBlobStorage interface {
	Save(ctx context.Context, disputeID uuid.UUID, originalName string, r io.Reader) (string, int64, string, error)
	Open(ctx context.Context, relativePath string) (*os.File, error)
}

// EvidenceDisputeStore — чтение споров для проверки доступа.
type EvidenceDisputeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
}

// EvidenceService управляет файлами-доказательствами по спорам.
type EvidenceService struct {
	repo     EvidenceStore
	blobs    EvidenceBlobStorage
	disputes EvidenceDisputeStore
}

func NewEvidenceService(repo EvidenceStore, blobs EvidenceBlobStorage, disputes EvidenceDisputeStore) *EvidenceService {
	return &EvidenceService{
		repo:     repo,
		blobs:    blobs,
		disputes: disputes,
	}
}

// Upload сохраняет файл-доказательство стороны спора. Файлы принимаются
// только пока спор не решён.
func (s *EvidenceService) Upload(ctx context.Context, actorID uuid.UUID, isAdmin bool, disputeID uuid.UUID, fileName string, r io.Reader) (*models.EvidenceFile, error) {
	dispute, err := s.loadDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !dispute.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	if dispute.IsResolved() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже решён, файлы не принимаются")
	}

	path, size, mimeType, err := s.blobs.Save(ctx, disputeID, fileName, r)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый тип файла")
		}
		return nil, err
	}

	f := &models.EvidenceFile{
		ID:         uuid.New(),
		DisputeID:  disputeID,
		UploaderID: actorID,
		FileName:   fileName,
		FilePath:   path,
		MimeType:   mimeType,
		SizeBytes:  size,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// List возвращает файлы спора его стороне или администратору.
func (s *EvidenceService) List(ctx context.Context, actorID uuid.UUID, isAdmin bool, disputeID uuid.UUID) ([]models.EvidenceFile, error) {
	dispute, err := s.loadDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !dispute.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	return s.repo.ListByDispute(ctx, disputeID)
}

// Open открывает содержимое файла для отдачи клиенту. Закрыть файл
// обязан вызывающий.
func (s *EvidenceService) Open(ctx context.Context, actorID uuid.UUID, isAdmin bool, evidenceID uuid.UUID) (*models.EvidenceFile, *os.File, error) {
	f, err := s.repo.GetByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, apperror.New(apperror.ErrCodeNotFound, "файл не найден")
		}
		return nil, nil, err
	}

	dispute, err := s.loadDispute(ctx, f.DisputeID)
	if err != nil {
		return nil, nil, err
	}
	if !isAdmin && !dispute.IsParty(actorID) {
		return nil, nil, apperror.ErrForbidden
	}

	blob, err := s.blobs.Open(ctx, f.FilePath)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось открыть файл")
	}
	return f, blob, nil
}

func (s *EvidenceService) loadDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	return dispute, nil
}
