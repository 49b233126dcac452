package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

// EscrowStore — операции журнала эскроу.
type EscrowStore interface {
	Fund(ctx context.Context, p repository.FundParams) (*models.Invoice, error)
	Release(ctx context.Context, contractID, milestoneID uuid.UUID, net, fee decimal.Decimal, currency string) error
	Refund(ctx context.Context, contractID, milestoneID uuid.UUID, amount decimal.Decimal, currency string) error
	GetMilestoneBalance(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowBalance, error)
	GetContractLedger(ctx context.Context, contractID uuid.UUID) (*repository.ContractLedger, error)
	ListByContract(ctx context.Context, contractID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, int, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
}

// EscrowMilestoneStore — чтение этапов для проверок эскроу-операций.
type EscrowMilestoneStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
}

// EscrowContractStore — чтение контрактов для проверок доступа и комиссий.
type EscrowContractStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
}

type EscrowService struct {
	escrowRepo    EscrowStore
	milestoneRepo EscrowMilestoneStore
	contractRepo  EscrowContractStore
	fees          *FeeCalculator
}

func NewEscrowService(er EscrowStore, mr EscrowMilestoneStore, cr EscrowContractStore, fees *FeeCalculator) *EscrowService {
	return &EscrowService{
		escrowRepo:    er,
		milestoneRepo: mr,
		contractRepo:  cr,
		fees:          fees,
	}
}

// newInvoiceNumber формирует номер инвойса вида INV-3F2A9C01.
func newInvoiceNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "INV-" + strings.ToUpper(raw[:8])
}

// Fund зачисляет сумму этапа в эскроу от имени клиента. Сверх суммы этапа
// клиент платит сервисный сбор, на который выписывается инвойс. Поздний
// фандинг уже принятого этапа сразу запускает отложенную выплату.
func (s *EscrowService) Fund(ctx context.Context, actorID, milestoneID uuid.UUID, gatewayReference *string) (*models.Invoice, error) {
	m, err := s.milestoneRepo.GetByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrMilestoneNotFound
		}
		return nil, err
	}

	contract, err := s.contractRepo.GetByID(ctx, m.ContractID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if contract.ClientID != actorID {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "фандинг эскроу доступен только клиенту контракта")
	}
	if m.EscrowFunded {
		return nil, apperror.New(apperror.ErrCodeAlreadyFunded, "эскроу этапа уже оплачено")
	}
	lateFunding := m.Status == models.MilestoneStatusAccepted
	if !m.CanFund() && !lateFunding {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("этап в статусе %s не допускает фандинг", m.Status))
	}

	invoice, err := s.escrowRepo.Fund(ctx, repository.FundParams{
		ContractID:       contract.ID,
		MilestoneID:      m.ID,
		ClientID:         contract.ClientID,
		Amount:           m.Amount,
		ClientFee:        s.fees.ClientFee(m.Amount),
		Currency:         contract.Currency,
		InvoiceNumber:    newInvoiceNumber(),
		GatewayReference: gatewayReference,
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyFunded) {
			return nil, apperror.New(apperror.ErrCodeAlreadyFunded, "эскроу этапа уже оплачено")
		}
		return nil, err
	}

	if lateFunding {
		if err := s.Release(ctx, milestoneID); err != nil {
			return nil, err
		}
	}
	return invoice, nil
}

// Release выплачивает эскроу принятого этапа: фрилансер получает сумму за
// вычетом комиссии платформы. Вызывается при приёмке этапа и при позднем
// фандинге уже принятого этапа.
func (s *EscrowService) Release(ctx context.Context, milestoneID uuid.UUID) error {
	m, err := s.milestoneRepo.GetByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return apperror.ErrMilestoneNotFound
		}
		return err
	}
	if m.Status != models.MilestoneStatusAccepted {
		return apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("выплата возможна только по принятому этапу, текущий статус %s", m.Status))
	}

	contract, err := s.contractRepo.GetByID(ctx, m.ContractID)
	if err != nil {
		return err
	}

	net, fee := s.fees.ReleaseSplit(contract, m.Amount)
	err = s.escrowRepo.Release(ctx, contract.ID, m.ID, net, fee, contract.Currency)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFunded):
			return apperror.New(apperror.ErrCodeInvalidState, "эскроу этапа не оплачено")
		case errors.Is(err, repository.ErrAlreadyReleased):
			return apperror.New(apperror.ErrCodeAlreadyReleased, "эскроу этапа уже выплачено")
		}
		return err
	}
	return nil
}

// Refund возвращает клиенту часть невыплаченного эскроу. Операция
// администратора платформы.
func (s *EscrowService) Refund(ctx context.Context, milestoneID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.New(apperror.ErrCodeValidation, "сумма возврата должна быть положительной")
	}

	m, err := s.milestoneRepo.GetByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return apperror.ErrMilestoneNotFound
		}
		return err
	}

	contract, err := s.contractRepo.GetByID(ctx, m.ContractID)
	if err != nil {
		return err
	}

	err = s.escrowRepo.Refund(ctx, contract.ID, m.ID, amount, contract.Currency)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFunded):
			return apperror.New(apperror.ErrCodeInvalidState, "эскроу этапа не оплачено")
		case errors.Is(err, repository.ErrAlreadyReleased):
			return apperror.New(apperror.ErrCodeAlreadyReleased, "эскроу этапа уже выплачено")
		case errors.Is(err, repository.ErrExceedsBalance):
			return apperror.New(apperror.ErrCodeValidation, "сумма возврата превышает остаток эскроу")
		}
		return err
	}
	return nil
}

// GetContractLedger возвращает сводку эскроу контракта его стороне.
func (s *EscrowService) GetContractLedger(ctx context.Context, actorID uuid.UUID, isAdmin bool, contractID uuid.UUID) (*repository.ContractLedger, error) {
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
	return s.escrowRepo.GetContractLedger(ctx, contractID)
}

// GetMilestoneBalance возвращает состояние эскроу этапа.
func (s *EscrowService) GetMilestoneBalance(ctx context.Context, actorID uuid.UUID, isAdmin bool, milestoneID uuid.UUID) (*models.EscrowBalance, error) {
	m, err := s.milestoneRepo.GetByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrMilestoneNotFound
		}
		return nil, err
	}

	contract, err := s.contractRepo.GetByID(ctx, m.ContractID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !contract.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	return s.escrowRepo.GetMilestoneBalance(ctx, milestoneID)
}

// ListContractTransactions возвращает журнал контракта его стороне.
func (s *EscrowService) ListContractTransactions(ctx context.Context, actorID uuid.UUID, isAdmin bool, contractID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, int, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, 0, apperror.ErrContractNotFound
		}
		return nil, 0, err
	}
	if !isAdmin && !contract.IsParty(actorID) {
		return nil, 0, apperror.ErrForbidden
	}
	return s.escrowRepo.ListByContract(ctx, contractID, limit, offset)
}

// ListUserTransactions возвращает транзакции по всем контрактам пользователя.
func (s *EscrowService) ListUserTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.EscrowTransaction, int, error) {
	return s.escrowRepo.ListByUser(ctx, userID, limit, offset)
}

// GetTransaction возвращает запись журнала стороне контракта или администратору.
func (s *EscrowService) GetTransaction(ctx context.Context, actorID uuid.UUID, isAdmin bool, txID uuid.UUID) (*models.EscrowTransaction, error) {
	t, err := s.escrowRepo.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "транзакция не найдена")
		}
		return nil, err
	}

	contract, err := s.contractRepo.GetByID(ctx, t.ContractID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !contract.IsParty(actorID) {
		return nil, apperror.ErrForbidden
	}
	return t, nil
}
