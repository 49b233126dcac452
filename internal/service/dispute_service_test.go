package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) FileWithHold(ctx context.Context, d *models.Dispute, holdAmount decimal.Decimal, currency string) error {
	args := m.Called(ctx, d, holdAmount, currency)
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetActiveByContract(ctx context.Context, contractID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Int(1), args.Error(2)
}

func (m *mockDisputeRepo) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Dispute, int, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]models.Dispute), args.Int(1), args.Error(2)
}

func (m *mockDisputeRepo) AppendMessage(ctx context.Context, msg *models.DisputeMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockDisputeRepo) AppendPartyReply(ctx context.Context, msg *models.DisputeMessage, deadline time.Time, awaiting uuid.UUID) (bool, error) {
	args := m.Called(ctx, msg, deadline, awaiting)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) ListMessages(ctx context.Context, disputeID uuid.UUID, includeInternal bool) ([]models.DisputeMessage, error) {
	args := m.Called(ctx, disputeID, includeInternal)
	return args.Get(0).([]models.DisputeMessage), args.Error(1)
}

func (m *mockDisputeRepo) MarkEscalated(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) ResolveWithEscrow(ctx context.Context, p repository.ResolveParams) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) ListExpired(ctx context.Context, now time.Time) ([]models.Dispute, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

type mockDisputeContracts struct {
	mock.Mock
}

func (m *mockDisputeContracts) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

type mockDisputeMilestones struct {
	mock.Mock
}

func (m *mockDisputeMilestones) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Milestone), args.Error(1)
}

func (m *mockDisputeMilestones) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	args := m.Called(ctx, contractID)
	return args.Get(0).([]models.Milestone), args.Error(1)
}

type mockDisputeEscrow struct {
	mock.Mock
}

func (m *mockDisputeEscrow) GetMilestoneBalance(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowBalance, error) {
	args := m.Called(ctx, milestoneID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowBalance), args.Error(1)
}

// stubNotifier записывает уведомления, не проверяя их через mock-ожидания.
type stubNotifier struct {
	events []notifyEvent
}

type notifyEvent struct {
	userID uuid.UUID
	ntype  string
}

func (n *stubNotifier) Notify(_ context.Context, userID uuid.UUID, ntype, _, _ string, _ *uuid.UUID) {
	n.events = append(n.events, notifyEvent{userID: userID, ntype: ntype})
}

type disputeFixture struct {
	svc        *DisputeService
	disputes   *mockDisputeRepo
	contracts  *mockDisputeContracts
	milestones *mockDisputeMilestones
	escrow     *mockDisputeEscrow
	notifier   *stubNotifier
}

func newDisputeFixture(t *testing.T) *disputeFixture {
	t.Helper()
	f := &disputeFixture{
		disputes:   new(mockDisputeRepo),
		contracts:  new(mockDisputeContracts),
		milestones: new(mockDisputeMilestones),
		escrow:     new(mockDisputeEscrow),
		notifier:   new(stubNotifier),
	}
	f.svc = NewDisputeService(f.disputes, f.contracts, f.milestones, f.escrow, newCalculator(t), f.notifier, 3)
	return f
}

func activeContract(clientID, freelancerID uuid.UUID) *models.Contract {
	return &models.Contract{
		ID:           uuid.New(),
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Title:        "Разработка API",
		Status:       models.ContractStatusActive,
		Currency:     "USD",
	}
}

func TestDisputeService_File_SetsDeadlineAndTurn(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	contract := activeContract(clientID, freelancerID)
	milestone := &models.Milestone{
		ID:           uuid.New(),
		ContractID:   contract.ID,
		Status:       models.MilestoneStatusInProgress,
		EscrowFunded: true,
	}

	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.disputes.On("GetActiveByContract", ctx, contract.ID).Return(nil, common.ErrNotFound)
	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.escrow.On("GetMilestoneBalance", ctx, milestone.ID).Return(&models.EscrowBalance{
		MilestoneID: milestone.ID,
		Funded:      decimal.NewFromInt(1000),
	}, nil)
	f.disputes.On("FileWithHold", ctx, mock.AnythingOfType("*models.Dispute"),
		decimal.NewFromInt(1000), "USD").Return(nil)

	dispute, err := f.svc.File(ctx, clientID, contract.ID, &milestone.ID, models.DisputeReasonQuality, "работа не соответствует ТЗ", nil)
	require.NoError(t, err)

	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, clientID, dispute.InitiatorID)
	assert.Equal(t, freelancerID, dispute.RespondentID)
	require.NotNil(t, dispute.AwaitingResponseFrom)
	assert.Equal(t, freelancerID, *dispute.AwaitingResponseFrom)
	require.NotNil(t, dispute.ResponseDeadline)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), *dispute.ResponseDeadline, time.Minute)

	// Ответчик получил уведомление об открытии спора.
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, freelancerID, f.notifier.events[0].userID)
	assert.Equal(t, models.NotificationDisputeFiled, f.notifier.events[0].ntype)

	f.disputes.AssertExpectations(t)
}

func TestDisputeService_File_UnknownReason(t *testing.T) {
	f := newDisputeFixture(t)

	_, err := f.svc.File(context.Background(), uuid.New(), uuid.New(), nil, "vibes", "", nil)
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_File_NotParty(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

	_, err := f.svc.File(ctx, uuid.New(), contract.ID, nil, models.DisputeReasonQuality, "", nil)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}

func TestDisputeService_File_SecondDisputeRejected(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	contract := activeContract(clientID, uuid.New())

	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.disputes.On("GetActiveByContract", ctx, contract.ID).
		Return(&models.Dispute{ID: uuid.New(), Status: models.DisputeStatusOpen}, nil)

	_, err := f.svc.File(ctx, clientID, contract.ID, nil, models.DisputeReasonQuality, "", nil)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_File_PrefersFundedMilestone(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	contract := activeContract(clientID, uuid.New())
	funded := models.Milestone{
		ID:           uuid.New(),
		ContractID:   contract.ID,
		Status:       models.MilestoneStatusSubmitted,
		EscrowFunded: true,
	}
	unfunded := models.Milestone{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Status:     models.MilestoneStatusPending,
	}

	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.disputes.On("GetActiveByContract", ctx, contract.ID).Return(nil, common.ErrNotFound)
	f.milestones.On("ListByContract", ctx, contract.ID).
		Return([]models.Milestone{unfunded, funded}, nil)
	f.escrow.On("GetMilestoneBalance", ctx, funded.ID).Return(&models.EscrowBalance{
		MilestoneID: funded.ID,
		Funded:      decimal.NewFromInt(500),
	}, nil)
	f.disputes.On("FileWithHold", ctx, mock.AnythingOfType("*models.Dispute"),
		decimal.NewFromInt(500), "USD").Return(nil)

	dispute, err := f.svc.File(ctx, clientID, contract.ID, nil, models.DisputeReasonNonDelivery, "", nil)
	require.NoError(t, err)
	assert.Equal(t, funded.ID, dispute.MilestoneID)
}

func TestDisputeService_SendMessage_PartyReplyMovesClock(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()
	deadline := time.Now().Add(24 * time.Hour)
	dispute := &models.Dispute{
		ID:                   uuid.New(),
		InitiatorID:          clientID,
		RespondentID:         freelancerID,
		Status:               models.DisputeStatusOpen,
		ResponseDeadline:     &deadline,
		AwaitingResponseFrom: &freelancerID,
	}

	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	var gotDeadline time.Time
	var gotAwaiting uuid.UUID
	f.disputes.On("AppendPartyReply", ctx, mock.AnythingOfType("*models.DisputeMessage"),
		mock.AnythingOfType("time.Time"), clientID).
		Run(func(args mock.Arguments) {
			gotDeadline = args.Get(2).(time.Time)
			gotAwaiting = args.Get(3).(uuid.UUID)
		}).
		Return(true, nil)

	msg, err := f.svc.SendMessage(ctx, freelancerID, false, dispute.ID, "вот исправленная версия", nil, false)
	require.NoError(t, err)

	assert.Equal(t, freelancerID, msg.AuthorID)
	assert.False(t, msg.IsInternal)
	// Ход перешёл к клиенту, дедлайн отсчитан заново от момента реплики.
	assert.Equal(t, clientID, gotAwaiting)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), gotDeadline, time.Minute)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, clientID, f.notifier.events[0].userID)
}

func TestDisputeService_SendMessage_AdminNoteKeepsClock(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	adminID := uuid.New()
	dispute := &models.Dispute{
		ID:           uuid.New(),
		InitiatorID:  uuid.New(),
		RespondentID: uuid.New(),
		Status:       models.DisputeStatusEscalated,
	}

	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	f.disputes.On("AppendMessage", ctx, mock.AnythingOfType("*models.DisputeMessage")).Return(nil)

	msg, err := f.svc.SendMessage(ctx, adminID, true, dispute.ID, "запросил детали у сторон", nil, true)
	require.NoError(t, err)
	assert.True(t, msg.IsInternal)

	// Внутренняя заметка не трогает дедлайн и не уведомляет стороны.
	f.disputes.AssertNotCalled(t, "AppendPartyReply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.events)
}

func TestDisputeService_SendMessage_InternalByPartyForbidden(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	dispute := &models.Dispute{
		ID:           uuid.New(),
		InitiatorID:  clientID,
		RespondentID: uuid.New(),
		Status:       models.DisputeStatusOpen,
	}
	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	_, err := f.svc.SendMessage(ctx, clientID, false, dispute.ID, "заметка", nil, true)
	assert.True(t, apperror.IsForbidden(err))
}

func TestDisputeService_SendMessage_ResolvedDispute(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	dispute := &models.Dispute{
		ID:           uuid.New(),
		InitiatorID:  clientID,
		RespondentID: uuid.New(),
		Status:       models.DisputeStatusResolvedClient,
	}
	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	_, err := f.svc.SendMessage(ctx, clientID, false, dispute.ID, "ещё аргумент", nil, false)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_SendMessage_AdminAfterResolution(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	dispute := &models.Dispute{
		ID:           uuid.New(),
		InitiatorID:  uuid.New(),
		RespondentID: uuid.New(),
		Status:       models.DisputeStatusResolvedSplit,
	}
	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	// Решённый спор закрыт и для арбитража.
	_, err := f.svc.SendMessage(ctx, uuid.New(), true, dispute.ID, "итоговый комментарий", nil, false)
	assert.True(t, apperror.IsInvalidState(err))
	f.disputes.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything)
}

func TestDisputeService_Escalate(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	dispute := &models.Dispute{
		ID:           uuid.New(),
		InitiatorID:  clientID,
		RespondentID: uuid.New(),
		Status:       models.DisputeStatusOpen,
	}

	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	f.disputes.On("MarkEscalated", ctx, dispute.ID).Return(true, nil)

	got, err := f.svc.Escalate(ctx, clientID, false, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusEscalated, got.Status)
	assert.Len(t, f.notifier.events, 2)
}

func TestDisputeService_Escalate_Idempotent(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	clientID := uuid.New()
	dispute := &models.Dispute{
		ID:           uuid.New(),
		InitiatorID:  clientID,
		RespondentID: uuid.New(),
		Status:       models.DisputeStatusEscalated,
	}
	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	got, err := f.svc.Escalate(ctx, clientID, false, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusEscalated, got.Status)

	f.disputes.AssertNotCalled(t, "MarkEscalated", mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.events)
}

func TestDisputeService_Resolve_SplitSumsExactly(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	adminID := uuid.New()
	contract := activeContract(uuid.New(), uuid.New())
	dispute := &models.Dispute{
		ID:           uuid.New(),
		ContractID:   contract.ID,
		MilestoneID:  uuid.New(),
		InitiatorID:  contract.ClientID,
		RespondentID: contract.FreelancerID,
		Status:       models.DisputeStatusEscalated,
	}
	resolved := &models.Dispute{
		ID:           dispute.ID,
		ContractID:   contract.ID,
		InitiatorID:  dispute.InitiatorID,
		RespondentID: dispute.RespondentID,
		Status:       models.DisputeStatusResolvedSplit,
	}

	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil).Once()
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.escrow.On("GetMilestoneBalance", ctx, dispute.MilestoneID).Return(&models.EscrowBalance{
		MilestoneID: dispute.MilestoneID,
		Funded:      decimal.NewFromInt(1000),
	}, nil)
	f.disputes.On("ResolveWithEscrow", ctx, mock.MatchedBy(func(p repository.ResolveParams) bool {
		return p.DisputeID == dispute.ID &&
			p.Status == models.DisputeStatusResolvedSplit &&
			p.ReleaseAmount.Equal(decimal.NewFromInt(600)) &&
			p.RefundAmount.Equal(decimal.NewFromInt(400)) &&
			p.ResolvedBy != nil && *p.ResolvedBy == adminID
	})).Return(true, nil)
	f.disputes.On("GetByID", ctx, dispute.ID).Return(resolved, nil)

	got, err := f.svc.Resolve(ctx, adminID, dispute.ID,
		models.DisputeStatusResolvedSplit,
		decimal.NewNullDecimal(decimal.NewFromInt(600)), "поровну не вышло")
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedSplit, got.Status)
	assert.Len(t, f.notifier.events, 2)
	f.disputes.AssertExpectations(t)
}

func TestDisputeService_Resolve_SplitRequiresAmount(t *testing.T) {
	f := newDisputeFixture(t)

	_, err := f.svc.Resolve(context.Background(), uuid.New(), uuid.New(),
		models.DisputeStatusResolvedSplit, decimal.NullDecimal{}, "")
	assert.True(t, apperror.IsValidation(err))
}

func TestDisputeService_Resolve_AlreadyResolved(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	dispute := &models.Dispute{
		ID:     uuid.New(),
		Status: models.DisputeStatusResolvedFreelancer,
	}
	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	_, err := f.svc.Resolve(ctx, uuid.New(), dispute.ID,
		models.DisputeStatusResolvedClient, decimal.NullDecimal{}, "")
	assert.True(t, apperror.IsInvalidState(err))
}

func TestDisputeService_ResolveExpired_SilentPartyLoses(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	deadline := time.Now().Add(-time.Hour)
	dispute := models.Dispute{
		ID:                   uuid.New(),
		ContractID:           contract.ID,
		MilestoneID:          uuid.New(),
		InitiatorID:          contract.FreelancerID,
		RespondentID:         contract.ClientID,
		Status:               models.DisputeStatusOpen,
		ResponseDeadline:     &deadline,
		AwaitingResponseFrom: &contract.ClientID,
	}

	f.disputes.On("ListExpired", ctx, mock.AnythingOfType("time.Time")).
		Return([]models.Dispute{dispute}, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.escrow.On("GetMilestoneBalance", ctx, dispute.MilestoneID).Return(&models.EscrowBalance{
		MilestoneID: dispute.MilestoneID,
		Funded:      decimal.NewFromInt(300),
	}, nil)
	// Молчал клиент, значит весь остаток уходит фрилансеру.
	f.disputes.On("ResolveWithEscrow", ctx, mock.MatchedBy(func(p repository.ResolveParams) bool {
		return p.Status == models.DisputeStatusResolvedFreelancer &&
			p.ReleaseAmount.Equal(decimal.NewFromInt(300)) &&
			p.RefundAmount.IsZero() &&
			p.ResolvedBy == nil
	})).Return(true, nil)

	resolved, err := f.svc.ResolveExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Len(t, f.notifier.events, 2)
}

func TestDisputeService_GetDispute_ExpiredDeadlineResolvesOnRead(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	deadline := time.Now().Add(-time.Hour)
	dispute := &models.Dispute{
		ID:                   uuid.New(),
		ContractID:           contract.ID,
		MilestoneID:          uuid.New(),
		InitiatorID:          contract.FreelancerID,
		RespondentID:         contract.ClientID,
		Status:               models.DisputeStatusOpen,
		ResponseDeadline:     &deadline,
		AwaitingResponseFrom: &contract.ClientID,
	}
	resolved := &models.Dispute{
		ID:           dispute.ID,
		ContractID:   contract.ID,
		InitiatorID:  dispute.InitiatorID,
		RespondentID: dispute.RespondentID,
		Status:       models.DisputeStatusResolvedFreelancer,
	}

	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil).Once()
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.escrow.On("GetMilestoneBalance", ctx, dispute.MilestoneID).Return(&models.EscrowBalance{
		MilestoneID: dispute.MilestoneID,
		Funded:      decimal.NewFromInt(300),
	}, nil)
	f.disputes.On("ResolveWithEscrow", ctx, mock.MatchedBy(func(p repository.ResolveParams) bool {
		return p.Status == models.DisputeStatusResolvedFreelancer && p.ResolvedBy == nil
	})).Return(true, nil)
	f.disputes.On("GetByID", ctx, dispute.ID).Return(resolved, nil).Once()

	// Чтение не показывает просроченное "ожидание ответа": спор
	// закрывается сразу, без ожидания планировщика.
	got, err := f.svc.GetDispute(ctx, contract.FreelancerID, false, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedFreelancer, got.Status)
	assert.Len(t, f.notifier.events, 2)
	f.disputes.AssertExpectations(t)
}

func TestDisputeService_GetDispute_ExpiredButJustResolvedElsewhere(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	deadline := time.Now().Add(-time.Hour)
	dispute := &models.Dispute{
		ID:                   uuid.New(),
		ContractID:           contract.ID,
		MilestoneID:          uuid.New(),
		InitiatorID:          contract.ClientID,
		RespondentID:         contract.FreelancerID,
		Status:               models.DisputeStatusOpen,
		ResponseDeadline:     &deadline,
		AwaitingResponseFrom: &contract.FreelancerID,
	}
	resolved := &models.Dispute{
		ID:           dispute.ID,
		ContractID:   contract.ID,
		InitiatorID:  dispute.InitiatorID,
		RespondentID: dispute.RespondentID,
		Status:       models.DisputeStatusResolvedClient,
	}

	f.disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil).Once()
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.escrow.On("GetMilestoneBalance", ctx, dispute.MilestoneID).Return(&models.EscrowBalance{
		MilestoneID: dispute.MilestoneID,
	}, nil)
	// Планировщик или админ успел закрыть спор между чтением и расчётом.
	f.disputes.On("ResolveWithEscrow", ctx, mock.Anything).Return(false, nil)
	f.disputes.On("GetByID", ctx, dispute.ID).Return(resolved, nil).Once()

	got, err := f.svc.GetDispute(ctx, contract.ClientID, false, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedClient, got.Status)
}

func TestDisputeService_ResolveExpired_SkipsConcurrentlyResolved(t *testing.T) {
	f := newDisputeFixture(t)
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	dispute := models.Dispute{
		ID:                   uuid.New(),
		ContractID:           contract.ID,
		MilestoneID:          uuid.New(),
		InitiatorID:          contract.ClientID,
		RespondentID:         contract.FreelancerID,
		Status:               models.DisputeStatusOpen,
		AwaitingResponseFrom: &contract.FreelancerID,
	}

	f.disputes.On("ListExpired", ctx, mock.AnythingOfType("time.Time")).
		Return([]models.Dispute{dispute}, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.escrow.On("GetMilestoneBalance", ctx, dispute.MilestoneID).Return(&models.EscrowBalance{
		MilestoneID: dispute.MilestoneID,
	}, nil)
	f.disputes.On("ResolveWithEscrow", ctx, mock.Anything).Return(false, nil)

	resolved, err := f.svc.ResolveExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)
	assert.Empty(t, f.notifier.events)
}
