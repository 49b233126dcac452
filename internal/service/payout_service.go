package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

// PayoutStore — хранилище выплат.
type PayoutStore interface {
	Create(ctx context.Context, p *models.Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Payout, int, error)
	ListAll(ctx context.Context, status string, limit, offset int) ([]models.Payout, int, error)
	SumReservedByFreelancer(ctx context.Context, freelancerID uuid.UUID) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, gatewayRef *string) (bool, error)
}

// PayoutBillingStore — чтение заработка фрилансера по журналу эскроу.
type PayoutBillingStore interface {
	GetUserSummary(ctx context.Context, userID uuid.UUID) (*repository.BillingSummary, error)
}

// PayoutService управляет выводом заработанных средств фрилансера.
// Доступно к выводу: заработано по эскроу минус уже выведенное и
// зарезервированное незавершёнными выплатами.
type PayoutService struct {
	payoutRepo  PayoutStore
	billingRepo PayoutBillingStore
	notifier    Notifier
}

func NewPayoutService(pr PayoutStore, br PayoutBillingStore, notifier Notifier) *PayoutService {
	return &PayoutService{
		payoutRepo:  pr,
		billingRepo: br,
		notifier:    notifier,
	}
}

// Available возвращает сумму, доступную фрилансеру к выводу.
func (s *PayoutService) Available(ctx context.Context, freelancerID uuid.UUID) (decimal.Decimal, error) {
	summary, err := s.billingRepo.GetUserSummary(ctx, freelancerID)
	if err != nil {
		return decimal.Zero, err
	}
	reserved, err := s.payoutRepo.SumReservedByFreelancer(ctx, freelancerID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.TotalEarned.Sub(reserved), nil
}

// Request создаёт заявку на выплату. Сумма не может превышать доступный
// остаток; заявка сразу уменьшает остаток, чтобы исключить двойной вывод.
func (s *PayoutService) Request(ctx context.Context, freelancerID uuid.UUID, amount decimal.Decimal, method, currency string) (*models.Payout, error) {
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма выплаты должна быть положительной")
	}
	switch method {
	case models.PayoutMethodStripe, models.PayoutMethodPayPal:
	default:
		return nil, apperror.New(apperror.ErrCodeValidation, "метод выплаты должен быть stripe или paypal")
	}
	if currency == "" {
		currency = "USD"
	}

	available, err := s.Available(ctx, freelancerID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(available) {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("сумма выплаты превышает доступный остаток %s", available.StringFixed(2)))
	}

	payout := &models.Payout{
		ID:           uuid.New(),
		FreelancerID: freelancerID,
		Amount:       amount,
		Currency:     currency,
		Method:       method,
		Status:       models.PayoutStatusPending,
	}
	if err := s.payoutRepo.Create(ctx, payout); err != nil {
		return nil, err
	}
	return payout, nil
}

// Complete помечает выплату завершённой после подтверждения шлюза.
// Админская операция; gatewayRef сохраняется как внешний идентификатор.
func (s *PayoutService) Complete(ctx context.Context, payoutID uuid.UUID, gatewayRef string) (*models.Payout, error) {
	payout, err := s.get(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	var ref *string
	if gatewayRef != "" {
		prefixed := fmt.Sprintf("%s:%s", payout.Method, gatewayRef)
		ref = &prefixed
	}
	ok, err := s.payoutRepo.UpdateStatus(ctx, payoutID, models.PayoutStatusPending, models.PayoutStatusCompleted, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("выплата в статусе %s не может быть завершена", payout.Status))
	}

	s.notifier.Notify(ctx, payout.FreelancerID, models.NotificationPayoutCompleted,
		"Выплата отправлена",
		fmt.Sprintf("Выплата на %s %s отправлена через %s (%s).",
			payout.Amount.StringFixed(2), payout.Currency, payout.Method, gatewayRef),
		&payout.ID)

	return s.payoutRepo.GetByID(ctx, payoutID)
}

// Fail помечает выплату неуспешной. Сумма возвращается в доступный
// остаток, так как failed-выплаты не резервируют средства.
func (s *PayoutService) Fail(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := s.get(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	ok, err := s.payoutRepo.UpdateStatus(ctx, payoutID, models.PayoutStatusPending, models.PayoutStatusFailed, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("выплата в статусе %s не может быть отклонена", payout.Status))
	}
	return s.payoutRepo.GetByID(ctx, payoutID)
}

// Get возвращает выплату её владельцу или администратору.
func (s *PayoutService) Get(ctx context.Context, actorID uuid.UUID, isAdmin bool, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := s.get(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && payout.FreelancerID != actorID {
		return nil, apperror.ErrForbidden
	}
	return payout, nil
}

// ListMine возвращает выплаты фрилансера.
func (s *PayoutService) ListMine(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Payout, int, error) {
	return s.payoutRepo.ListByFreelancer(ctx, freelancerID, limit, offset)
}

// ListAll возвращает выплаты для админки с фильтром по статусу.
func (s *PayoutService) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Payout, int, error) {
	switch status {
	case "", models.PayoutStatusPending, models.PayoutStatusCompleted, models.PayoutStatusFailed:
	default:
		return nil, 0, apperror.New(apperror.ErrCodeValidation, "неизвестный статус выплаты")
	}
	return s.payoutRepo.ListAll(ctx, status, limit, offset)
}

func (s *PayoutService) get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := s.payoutRepo.GetByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "выплата не найдена")
		}
		return nil, err
	}
	return payout, nil
}
