package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

// ContractStore — хранилище контрактов.
type ContractStore interface {
	Create(ctx context.Context, contract *models.Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, int, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]models.Contract, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

// ContractUserStore — проверка существования сторон контракта.
type ContractUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ContractService struct {
	contractRepo ContractStore
	userRepo     ContractUserStore
}

func NewContractService(cr ContractStore, ur ContractUserStore) *ContractService {
	return &ContractService{contractRepo: cr, userRepo: ur}
}

// CreateParams — параметры создания контракта.
type CreateContractParams struct {
	ClientID           uuid.UUID
	FreelancerID       uuid.UUID
	Title              string
	Description        string
	ContractType       string
	TotalAmount        decimal.Decimal
	HourlyRate         decimal.NullDecimal
	Currency           string
	PlatformFeePercent decimal.NullDecimal
}

// Create создаёт контракт в статусе draft.
func (s *ContractService) Create(ctx context.Context, p CreateContractParams) (*models.Contract, error) {
	if p.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название контракта обязательно")
	}
	switch p.ContractType {
	case models.ContractTypeFixed:
		if !p.TotalAmount.IsPositive() {
			return nil, apperror.New(apperror.ErrCodeValidation, "сумма контракта должна быть положительной")
		}
	case models.ContractTypeHourly:
		if !p.HourlyRate.Valid || !p.HourlyRate.Decimal.IsPositive() {
			return nil, apperror.New(apperror.ErrCodeValidation, "почасовая ставка должна быть положительной")
		}
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип контракта")
	}
	if p.ClientID == p.FreelancerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "клиент и фрилансер должны быть разными пользователями")
	}
	if p.PlatformFeePercent.Valid {
		percent := p.PlatformFeePercent.Decimal
		if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
			return nil, apperror.New(apperror.ErrCodeValidation, "процент комиссии должен быть в диапазоне 0-100")
		}
	}

	freelancer, err := s.userRepo.GetByID(ctx, p.FreelancerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	if freelancer.Role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeValidation, "исполнителем контракта может быть только фрилансер")
	}

	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}

	contract := &models.Contract{
		ID:                 uuid.New(),
		ClientID:           p.ClientID,
		FreelancerID:       p.FreelancerID,
		Title:              p.Title,
		Description:        p.Description,
		ContractType:       p.ContractType,
		Status:             models.ContractStatusDraft,
		TotalAmount:        p.TotalAmount,
		HourlyRate:         p.HourlyRate,
		Currency:           currency,
		PlatformFeePercent: p.PlatformFeePercent,
	}
	if err := s.contractRepo.Create(ctx, contract); err != nil {
		return nil, err
	}
	return contract, nil
}

// Get возвращает контракт его стороне или администратору.
func (s *ContractService) Get(ctx context.Context, actorID uuid.UUID, isAdmin bool, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if !isAdmin && !contract.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	return contract, nil
}

// ListMine возвращает контракты пользователя.
func (s *ContractService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, int, error) {
	return s.contractRepo.ListByUser(ctx, userID, limit, offset)
}

// ListAll возвращает контракты для админки.
func (s *ContractService) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Contract, int, error) {
	return s.contractRepo.ListAll(ctx, status, limit, offset)
}

// ChangeStatus переводит контракт в новый статус. Переходы однонаправленные,
// кроме пары active/suspended. Статус disputed управляется только механикой
// споров и вручную не назначается.
func (s *ContractService) ChangeStatus(ctx context.Context, contractID uuid.UUID, newStatus string) (*models.Contract, error) {
	if newStatus == models.ContractStatusDisputed {
		return nil, apperror.New(apperror.ErrCodeValidation, "статус disputed устанавливается только механикой споров")
	}

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if !contract.CanTransitionTo(newStatus) {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("переход %s -> %s недопустим", contract.Status, newStatus))
	}

	ok, err := s.contractRepo.UpdateStatus(ctx, contractID, contract.Status, newStatus)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "статус контракта изменился, повторите запрос")
	}
	return s.contractRepo.GetByID(ctx, contractID)
}

// Activate переводит draft-контракт в работу от имени клиента.
func (s *ContractService) Activate(ctx context.Context, actorID, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if contract.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "активировать контракт может только клиент")
	}
	if !contract.CanTransitionTo(models.ContractStatusActive) {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("переход %s -> active недопустим", contract.Status))
	}

	ok, err := s.contractRepo.UpdateStatus(ctx, contractID, contract.Status, models.ContractStatusActive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "статус контракта изменился, повторите запрос")
	}
	return s.contractRepo.GetByID(ctx, contractID)
}
