package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/logger"
	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

// DisputeStore — хранилище споров и атомарных операций по ним.
type DisputeStore interface {
	FileWithHold(ctx context.Context, d *models.Dispute, holdAmount decimal.Decimal, currency string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetActiveByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, int, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]models.Dispute, int, error)
	AppendMessage(ctx context.Context, m *models.DisputeMessage) error
	AppendPartyReply(ctx context.Context, m *models.DisputeMessage, deadline time.Time, awaiting uuid.UUID) (bool, error)
	ListMessages(ctx context.Context, disputeID uuid.UUID, includeInternal bool) ([]models.DisputeMessage, error)
	MarkEscalated(ctx context.Context, id uuid.UUID) (bool, error)
	ResolveWithEscrow(ctx context.Context, p repository.ResolveParams) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Dispute, error)
}

// DisputeContractStore — чтение контрактов.
type DisputeContractStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
}

// DisputeMilestoneStore — чтение этапов контракта.
type DisputeMilestoneStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error)
}

// DisputeEscrowStore — чтение состояния эскроу для холда и расчёта.
type DisputeEscrowStore interface {
	GetMilestoneBalance(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowBalance, error)
}

// Notifier доставляет уведомления пользователям.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, ntype, title, body string, entityID *uuid.UUID)
}

type DisputeService struct {
	disputeRepo   DisputeStore
	contractRepo  DisputeContractStore
	milestoneRepo DisputeMilestoneStore
	escrowRepo    DisputeEscrowStore
	fees          *FeeCalculator
	notifier      Notifier
	responseDays  int
}

func NewDisputeService(dr DisputeStore, cr DisputeContractStore, mr DisputeMilestoneStore, er DisputeEscrowStore, fees *FeeCalculator, notifier Notifier, responseDays int) *DisputeService {
	if responseDays <= 0 {
		responseDays = 3
	}
	return &DisputeService{
		disputeRepo:   dr,
		contractRepo:  cr,
		milestoneRepo: mr,
		escrowRepo:    er,
		fees:          fees,
		notifier:      notifier,
		responseDays:  responseDays,
	}
}

// responseDeadline возвращает новый дедлайн ответа от момента now.
func (s *DisputeService) responseDeadline(now time.Time) time.Time {
	return now.Add(time.Duration(s.responseDays) * 24 * time.Hour)
}

// File открывает спор по контракту. Ход передаётся ответчику, на ответ
// даётся стандартный срок. Невыплаченный остаток эскроу этапа замораживается.
func (s *DisputeService) File(ctx context.Context, actorID, contractID uuid.UUID, milestoneID *uuid.UUID, reason, description string, evidence json.RawMessage) (*models.Dispute, error) {
	if !models.ValidDisputeReason(reason) {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестная причина спора")
	}

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if !contract.IsParty(actorID) {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "спор может открыть только сторона контракта")
	}

	if _, err := s.disputeRepo.GetActiveByContract(ctx, contractID); err == nil {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "по контракту уже открыт спор")
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	milestone, err := s.pickMilestone(ctx, contract, milestoneID)
	if err != nil {
		return nil, err
	}

	balance, err := s.escrowRepo.GetMilestoneBalance(ctx, milestone.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	deadline := s.responseDeadline(now)
	respondent := contract.Counterparty(actorID)

	dispute := &models.Dispute{
		ID:                   uuid.New(),
		ContractID:           contract.ID,
		MilestoneID:          milestone.ID,
		InitiatorID:          actorID,
		RespondentID:         respondent,
		Status:               models.DisputeStatusOpen,
		Reason:               reason,
		Description:          description,
		EvidenceURLs:         evidence,
		ResponseDeadline:     &deadline,
		AwaitingResponseFrom: &respondent,
	}

	if err := s.disputeRepo.FileWithHold(ctx, dispute, balance.Available(), contract.Currency); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, respondent, models.NotificationDisputeFiled,
		"Открыт спор",
		fmt.Sprintf("По контракту «%s» открыт спор. Ответьте в течение %d дней.", contract.Title, s.responseDays),
		&dispute.ID)

	return dispute, nil
}

// pickMilestone выбирает этап спора: явно указанный или первый оплаченный
// и невыплаченный этап контракта.
func (s *DisputeService) pickMilestone(ctx context.Context, contract *models.Contract, milestoneID *uuid.UUID) (*models.Milestone, error) {
	if milestoneID != nil {
		m, err := s.milestoneRepo.GetByID(ctx, *milestoneID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, apperror.ErrMilestoneNotFound
			}
			return nil, err
		}
		if m.ContractID != contract.ID {
			return nil, apperror.New(apperror.ErrCodeValidation, "этап не принадлежит контракту")
		}
		if m.Status == models.MilestoneStatusAccepted {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "этап уже принят и закрыт")
		}
		return m, nil
	}

	milestones, err := s.milestoneRepo.ListByContract(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	var fallback *models.Milestone
	for i := range milestones {
		m := &milestones[i]
		if m.Status == models.MilestoneStatusAccepted {
			continue
		}
		if m.EscrowFunded && !m.EscrowReleased {
			return m, nil
		}
		if fallback == nil {
			fallback = m
		}
	}
	if fallback == nil {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "у контракта нет активных этапов")
	}
	return fallback, nil
}

// SendMessage добавляет сообщение в тред спора. Реплика стороны переносит
// дедлайн и передаёт ход оппоненту; сообщения администратора и внутренние
// заметки часы не трогают.
func (s *DisputeService) SendMessage(ctx context.Context, actorID uuid.UUID, isAdmin bool, disputeID uuid.UUID, body string, attachments []string, isInternal bool) (*models.DisputeMessage, error) {
	if body == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "текст сообщения не может быть пустым")
	}

	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}

	if !isAdmin && !dispute.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	if isInternal && !isAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "внутренние заметки доступны только арбитражу")
	}
	// Тред закрывается вместе со спором для всех, включая арбитраж.
	if dispute.IsResolved() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже решён")
	}

	msg := &models.DisputeMessage{
		ID:          uuid.New(),
		DisputeID:   dispute.ID,
		AuthorID:    actorID,
		Body:        body,
		Attachments: pq.StringArray(attachments),
		IsInternal:  isInternal,
	}

	if isAdmin {
		// Администратор не участвует в turn-based обмене.
		if err := s.disputeRepo.AppendMessage(ctx, msg); err != nil {
			return nil, err
		}
		if !isInternal {
			s.notifyParties(ctx, dispute, models.NotificationDisputeMessage,
				"Сообщение арбитража", "Арбитраж оставил сообщение в споре.")
		}
		return msg, nil
	}

	deadline := s.responseDeadline(time.Now())
	awaiting := dispute.Counterparty(actorID)
	ok, err := s.disputeRepo.AppendPartyReply(ctx, msg, deadline, awaiting)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже решён")
	}

	s.notifier.Notify(ctx, awaiting, models.NotificationDisputeMessage,
		"Новое сообщение в споре",
		fmt.Sprintf("Оппонент ответил в споре. Теперь ход за вами, срок ответа %d дней.", s.responseDays),
		&dispute.ID)

	return msg, nil
}

// Escalate передаёт спор в арбитраж. Повторная эскалация идемпотентна.
func (s *DisputeService) Escalate(ctx context.Context, actorID uuid.UUID, isAdmin bool, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if !isAdmin && !dispute.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	if dispute.IsResolved() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже решён")
	}
	if dispute.Status == models.DisputeStatusEscalated {
		return dispute, nil
	}

	ok, err := s.disputeRepo.MarkEscalated(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Конкурирующий переход: перечитываем и разбираемся, что произошло.
		dispute, err = s.disputeRepo.GetByID(ctx, disputeID)
		if err != nil {
			return nil, err
		}
		if dispute.Status == models.DisputeStatusEscalated {
			return dispute, nil
		}
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже решён")
	}

	dispute.Status = models.DisputeStatusEscalated
	s.notifyParties(ctx, dispute, models.NotificationDisputeEscalated,
		"Спор передан в арбитраж", "Спор эскалирован и будет рассмотрен арбитражем платформы.")
	return dispute, nil
}

// Resolve закрывает спор решением арбитража и проводит расчёт по эскроу.
// Для resolved_split сумма решения задаёт долю фрилансера, остаток
// возвращается клиенту.
func (s *DisputeService) Resolve(ctx context.Context, adminID uuid.UUID, disputeID uuid.UUID, status string, resolutionAmount decimal.NullDecimal, note string) (*models.Dispute, error) {
	switch status {
	case models.DisputeStatusResolvedClient, models.DisputeStatusResolvedFreelancer:
	case models.DisputeStatusResolvedSplit:
		if !resolutionAmount.Valid {
			return nil, apperror.New(apperror.ErrCodeValidation, "для resolved_split требуется сумма решения")
		}
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый статус решения")
	}

	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if dispute.IsResolved() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже решён")
	}

	contract, err := s.contractRepo.GetByID(ctx, dispute.ContractID)
	if err != nil {
		return nil, err
	}

	if err := s.settle(ctx, dispute, contract, status, resolutionAmount, note, &adminID); err != nil {
		return nil, err
	}

	resolved, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	s.notifyParties(ctx, resolved, models.NotificationDisputeResolved,
		"Спор решён", "Арбитраж вынес решение по спору.")
	return resolved, nil
}

// settle проводит атомарный расчёт спора по эскроу.
func (s *DisputeService) settle(ctx context.Context, dispute *models.Dispute, contract *models.Contract, status string, resolutionAmount decimal.NullDecimal, note string, resolvedBy *uuid.UUID) error {
	balance, err := s.escrowRepo.GetMilestoneBalance(ctx, dispute.MilestoneID)
	if err != nil {
		return err
	}

	amount := decimal.Zero
	if resolutionAmount.Valid {
		amount = resolutionAmount.Decimal
	}
	release, refund := s.fees.ResolutionSplit(status, balance.Available(), amount)

	ok, err := s.disputeRepo.ResolveWithEscrow(ctx, repository.ResolveParams{
		DisputeID:        dispute.ID,
		ContractID:       dispute.ContractID,
		MilestoneID:      dispute.MilestoneID,
		Status:           status,
		ResolutionAmount: resolutionAmount,
		Note:             note,
		ResolvedBy:       resolvedBy,
		ReleaseAmount:    release,
		RefundAmount:     refund,
		Currency:         contract.Currency,
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperror.New(apperror.ErrCodeInvalidState, "спор уже решён")
	}
	return nil
}

// ResolveExpired автоматически закрывает споры с истёкшим дедлайном:
// сторона, не ответившая в срок, проигрывает. Возвращает число закрытых
// споров. Вызывается планировщиком.
func (s *DisputeService) ResolveExpired(ctx context.Context) (int, error) {
	expired, err := s.disputeRepo.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range expired {
		dispute := &expired[i]
		if dispute.AwaitingResponseFrom == nil {
			continue
		}
		if err := s.settleExpired(ctx, dispute); err != nil {
			if apperror.IsInvalidState(err) {
				// Спор успели решить вручную между выборкой и расчётом.
				continue
			}
			logger.Log.Errorf("Автозакрытие спора %s: %v", dispute.ID, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

// settleExpired закрывает один просроченный спор в пользу ответившей стороны
// и уведомляет участников.
func (s *DisputeService) settleExpired(ctx context.Context, dispute *models.Dispute) error {
	contract, err := s.contractRepo.GetByID(ctx, dispute.ContractID)
	if err != nil {
		return err
	}

	status := models.DisputeStatusResolvedClient
	if *dispute.AwaitingResponseFrom == contract.ClientID {
		// Молчал клиент — спор решается в пользу фрилансера.
		status = models.DisputeStatusResolvedFreelancer
	}

	note := fmt.Sprintf("Автоматическое решение: сторона не ответила в срок %d дней.", s.responseDays)
	if err := s.settle(ctx, dispute, contract, status, decimal.NullDecimal{}, note, nil); err != nil {
		return err
	}

	s.notifyParties(ctx, dispute, models.NotificationDisputeResolved,
		"Спор закрыт автоматически", note)
	return nil
}

// GetDispute возвращает спор участнику или администратору. Просроченный
// дедлайн закрывается прямо при чтении, не дожидаясь планировщика.
func (s *DisputeService) GetDispute(ctx context.Context, actorID uuid.UUID, isAdmin bool, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if !isAdmin && !dispute.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}

	if dispute.DeadlineExpired(time.Now()) && dispute.AwaitingResponseFrom != nil {
		if err := s.settleExpired(ctx, dispute); err != nil && !apperror.IsInvalidState(err) {
			return nil, err
		}
		return s.disputeRepo.GetByID(ctx, disputeID)
	}
	return dispute, nil
}

// ListMessages возвращает тред спора. Внутренние заметки видны только
// администраторам.
func (s *DisputeService) ListMessages(ctx context.Context, actorID uuid.UUID, isAdmin bool, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if !isAdmin && !dispute.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	return s.disputeRepo.ListMessages(ctx, disputeID, isAdmin)
}

// ListUserDisputes возвращает споры пользователя.
func (s *DisputeService) ListUserDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, int, error) {
	return s.disputeRepo.ListByUser(ctx, userID, limit, offset)
}

// ListAllDisputes возвращает споры для арбитража.
func (s *DisputeService) ListAllDisputes(ctx context.Context, status string, limit, offset int) ([]models.Dispute, int, error) {
	return s.disputeRepo.ListAll(ctx, status, limit, offset)
}

// notifyParties уведомляет обе стороны спора.
func (s *DisputeService) notifyParties(ctx context.Context, dispute *models.Dispute, ntype, title, body string) {
	s.notifier.Notify(ctx, dispute.InitiatorID, ntype, title, body, &dispute.ID)
	s.notifier.Notify(ctx, dispute.RespondentID, ntype, title, body, &dispute.ID)
}
