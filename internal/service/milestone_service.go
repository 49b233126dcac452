package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

// MilestoneStore — хранилище этапов.
type MilestoneStore interface {
	Create(ctx context.Context, m *models.Milestone) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Milestone, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, from string, autoAcceptAt time.Time) (bool, error)
	MarkRevisionRequested(ctx context.Context, id uuid.UUID) (bool, error)
	MarkAccepted(ctx context.Context, id uuid.UUID) (bool, error)
	ListAutoAcceptDue(ctx context.Context, now time.Time) ([]models.Milestone, error)
}

// MilestoneContractStore — чтение контрактов для проверок доступа.
type MilestoneContractStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
}

// EscrowReleaser выплачивает эскроу принятого этапа.
type EscrowReleaser interface {
	Release(ctx context.Context, milestoneID uuid.UUID) error
}

type MilestoneService struct {
	milestoneRepo  MilestoneStore
	contractRepo   MilestoneContractStore
	escrow         EscrowReleaser
	notifier       Notifier
	autoAcceptDays int
}

func NewMilestoneService(mr MilestoneStore, cr MilestoneContractStore, escrow EscrowReleaser, notifier Notifier, autoAcceptDays int) *MilestoneService {
	if autoAcceptDays <= 0 {
		autoAcceptDays = 14
	}
	return &MilestoneService{
		milestoneRepo:  mr,
		contractRepo:   cr,
		escrow:         escrow,
		notifier:       notifier,
		autoAcceptDays: autoAcceptDays,
	}
}

// Create добавляет этап к контракту. Доступно только клиенту.
func (s *MilestoneService) Create(ctx context.Context, actorID, contractID uuid.UUID, title, description string, amount decimal.Decimal, dueDate *time.Time) (*models.Milestone, error) {
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название этапа обязательно")
	}
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма этапа должна быть положительной")
	}

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if contract.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "этапы добавляет только клиент контракта")
	}
	switch contract.Status {
	case models.ContractStatusDraft, models.ContractStatusActive:
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("контракт в статусе %s не допускает новые этапы", contract.Status))
	}

	m := &models.Milestone{
		ID:          uuid.New(),
		ContractID:  contractID,
		Title:       title,
		Description: description,
		Amount:      amount,
		Status:      models.MilestoneStatusPending,
		DueDate:     dueDate,
	}
	if err := s.milestoneRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Submit сдаёт этап на проверку. Доступно только фрилансеру; повторная
// сдача возможна после запроса доработки.
func (s *MilestoneService) Submit(ctx context.Context, actorID, milestoneID uuid.UUID) (*models.Milestone, error) {
	m, contract, err := s.load(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if contract.FreelancerID != actorID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "сдать этап может только фрилансер контракта")
	}
	if !m.CanSubmit() {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("этап в статусе %s нельзя сдать на проверку", m.Status))
	}

	autoAcceptAt := time.Now().Add(time.Duration(s.autoAcceptDays) * 24 * time.Hour)
	ok, err := s.milestoneRepo.MarkSubmitted(ctx, milestoneID, m.Status, autoAcceptAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "статус этапа изменился, повторите запрос")
	}

	s.notifier.Notify(ctx, contract.ClientID, models.NotificationMilestoneSubmit,
		"Этап сдан на проверку",
		fmt.Sprintf("Фрилансер сдал этап «%s». Примите работу или запросите доработку в течение %d дней.", m.Title, s.autoAcceptDays),
		&m.ID)

	return s.milestoneRepo.GetByID(ctx, milestoneID)
}

// Start возвращает этап в работу после запроса доработки. Доступно
// только фрилансеру; счётчик ревизий уже увеличен самим запросом.
func (s *MilestoneService) Start(ctx context.Context, actorID, milestoneID uuid.UUID) (*models.Milestone, error) {
	m, contract, err := s.load(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if contract.FreelancerID != actorID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "возобновить работу может только фрилансер контракта")
	}
	if m.Status != models.MilestoneStatusRevisionRequested {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("этап в статусе %s нельзя вернуть в работу", m.Status))
	}

	ok, err := s.milestoneRepo.UpdateStatus(ctx, milestoneID, models.MilestoneStatusRevisionRequested, models.MilestoneStatusInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "статус этапа изменился, повторите запрос")
	}
	return s.milestoneRepo.GetByID(ctx, milestoneID)
}

// Accept принимает сданный этап. Доступно только клиенту. Приёмка
// оплаченного этапа сразу запускает выплату эскроу; неоплаченного —
// откладывает выплату до фандинга.
func (s *MilestoneService) Accept(ctx context.Context, actorID, milestoneID uuid.UUID) (*models.Milestone, error) {
	m, contract, err := s.load(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "принять этап может только клиент контракта")
	}
	if !m.CanReview() {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("этап в статусе %s нельзя принять", m.Status))
	}

	ok, err := s.milestoneRepo.MarkAccepted(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "статус этапа изменился, повторите запрос")
	}

	if m.EscrowFunded {
		if err := s.escrow.Release(ctx, milestoneID); err != nil {
			return nil, err
		}
	}

	s.notifier.Notify(ctx, contract.FreelancerID, models.NotificationMilestoneAccept,
		"Этап принят",
		fmt.Sprintf("Клиент принял этап «%s».", m.Title),
		&m.ID)

	return s.milestoneRepo.GetByID(ctx, milestoneID)
}

// RequestRevision возвращает сданный этап на доработку. Доступно только
// клиенту; счётчик ревизий растёт с каждым запросом.
func (s *MilestoneService) RequestRevision(ctx context.Context, actorID, milestoneID uuid.UUID, comment string) (*models.Milestone, error) {
	m, contract, err := s.load(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if contract.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "запросить доработку может только клиент контракта")
	}
	if !m.CanReview() {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("этап в статусе %s нельзя вернуть на доработку", m.Status))
	}

	ok, err := s.milestoneRepo.MarkRevisionRequested(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "статус этапа изменился, повторите запрос")
	}

	body := fmt.Sprintf("Клиент вернул этап «%s» на доработку.", m.Title)
	if comment != "" {
		body = fmt.Sprintf("%s Комментарий: %s", body, comment)
	}
	s.notifier.Notify(ctx, contract.FreelancerID, models.NotificationRevisionRequest,
		"Запрошена доработка", body, &m.ID)

	return s.milestoneRepo.GetByID(ctx, milestoneID)
}

// AutoAcceptDue принимает этапы, по которым клиент не отреагировал в срок.
// Возвращает число принятых этапов. Вызывается планировщиком.
func (s *MilestoneService) AutoAcceptDue(ctx context.Context) (int, error) {
	due, err := s.milestoneRepo.ListAutoAcceptDue(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	accepted := 0
	for i := range due {
		m := &due[i]
		ok, err := s.milestoneRepo.MarkAccepted(ctx, m.ID)
		if err != nil {
			logger.Log.Errorf("Автоприёмка этапа %s: %v", m.ID, err)
			continue
		}
		if !ok {
			continue
		}
		if m.EscrowFunded {
			if err := s.escrow.Release(ctx, m.ID); err != nil {
				logger.Log.Errorf("Автоприёмка этапа %s: выплата не прошла: %v", m.ID, err)
			}
		}
		accepted++

		contract, err := s.contractRepo.GetByID(ctx, m.ContractID)
		if err == nil {
			s.notifier.Notify(ctx, contract.FreelancerID, models.NotificationMilestoneAccept,
				"Этап принят автоматически",
				fmt.Sprintf("Этап «%s» принят автоматически: клиент не отреагировал в срок.", m.Title),
				&m.ID)
		}
	}
	return accepted, nil
}

// Get возвращает этап стороне контракта или администратору.
func (s *MilestoneService) Get(ctx context.Context, actorID uuid.UUID, isAdmin bool, milestoneID uuid.UUID) (*models.Milestone, error) {
	m, contract, err := s.load(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !contract.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	return m, nil
}

// ListByContract возвращает этапы контракта его стороне.
func (s *MilestoneService) ListByContract(ctx context.Context, actorID uuid.UUID, isAdmin bool, contractID uuid.UUID) ([]models.Milestone, error) {
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
	return s.milestoneRepo.ListByContract(ctx, contractID)
}

// ListMine возвращает этапы всех контрактов пользователя.
func (s *MilestoneService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Milestone, int, error) {
	return s.milestoneRepo.ListByUser(ctx, userID, limit, offset)
}

// load читает этап вместе с контрактом.
func (s *MilestoneService) load(ctx context.Context, milestoneID uuid.UUID) (*models.Milestone, *models.Contract, error) {
	m, err := s.milestoneRepo.GetByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, apperror.ErrMilestoneNotFound
		}
		return nil, nil, err
	}
	contract, err := s.contractRepo.GetByID(ctx, m.ContractID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, apperror.ErrContractNotFound
		}
		return nil, nil, err
	}
	return m, contract, nil
}
