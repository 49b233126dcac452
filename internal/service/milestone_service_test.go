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
)

type mockMilestoneStore struct {
	mock.Mock
}

func (m *mockMilestoneStore) Create(ctx context.Context, ms *models.Milestone) error {
	args := m.Called(ctx, ms)
	return args.Error(0)
}

func (m *mockMilestoneStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Milestone), args.Error(1)
}

func (m *mockMilestoneStore) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	args := m.Called(ctx, contractID)
	return args.Get(0).([]models.Milestone), args.Error(1)
}

func (m *mockMilestoneStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Milestone, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Milestone), args.Int(1), args.Error(2)
}

func (m *mockMilestoneStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockMilestoneStore) MarkSubmitted(ctx context.Context, id uuid.UUID, from string, autoAcceptAt time.Time) (bool, error) {
	args := m.Called(ctx, id, from, autoAcceptAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockMilestoneStore) MarkRevisionRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockMilestoneStore) MarkAccepted(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockMilestoneStore) ListAutoAcceptDue(ctx context.Context, now time.Time) ([]models.Milestone, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]models.Milestone), args.Error(1)
}

type mockEscrowReleaser struct {
	mock.Mock
}

func (m *mockEscrowReleaser) Release(ctx context.Context, milestoneID uuid.UUID) error {
	args := m.Called(ctx, milestoneID)
	return args.Error(0)
}

type milestoneFixture struct {
	svc        *MilestoneService
	milestones *mockMilestoneStore
	contracts  *mockContractReader
	escrow     *mockEscrowReleaser
	notifier   *stubNotifier
}

func newMilestoneFixture() *milestoneFixture {
	f := &milestoneFixture{
		milestones: new(mockMilestoneStore),
		contracts:  new(mockContractReader),
		escrow:     new(mockEscrowReleaser),
		notifier:   new(stubNotifier),
	}
	f.svc = NewMilestoneService(f.milestones, f.contracts, f.escrow, f.notifier, 14)
	return f
}

func TestMilestoneService_Create_OnlyClient(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

	_, err := f.svc.Create(ctx, contract.FreelancerID, contract.ID, "Вёрстка", "", decimal.NewFromInt(100), nil)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}

func TestMilestoneService_Create_CompletedContract(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	contract.Status = models.ContractStatusCompleted
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

	_, err := f.svc.Create(ctx, contract.ClientID, contract.ID, "Вёрстка", "", decimal.NewFromInt(100), nil)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestMilestoneService_Submit(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Title:      "Вёрстка",
		Status:     models.MilestoneStatusInProgress,
	}

	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

	var gotAutoAccept time.Time
	f.milestones.On("MarkSubmitted", ctx, milestone.ID, models.MilestoneStatusInProgress,
		mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			gotAutoAccept = args.Get(3).(time.Time)
		}).
		Return(true, nil)

	_, err := f.svc.Submit(ctx, contract.FreelancerID, milestone.ID)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), gotAutoAccept, time.Minute)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, contract.ClientID, f.notifier.events[0].userID)
	assert.Equal(t, models.NotificationMilestoneSubmit, f.notifier.events[0].ntype)
}

func TestMilestoneService_Submit_OnlyFreelancer(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Status:     models.MilestoneStatusInProgress,
	}
	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

	_, err := f.svc.Submit(ctx, contract.ClientID, milestone.ID)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}

func TestMilestoneService_Submit_AfterRevision(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:            uuid.New(),
		ContractID:    contract.ID,
		Status:        models.MilestoneStatusRevisionRequested,
		RevisionCount: 1,
	}
	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.milestones.On("MarkSubmitted", ctx, milestone.ID, models.MilestoneStatusRevisionRequested,
		mock.AnythingOfType("time.Time")).Return(true, nil)

	_, err := f.svc.Submit(ctx, contract.FreelancerID, milestone.ID)
	require.NoError(t, err)
}

func TestMilestoneService_Submit_FromPending(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Title:      "Вёрстка",
		Status:     models.MilestoneStatusPending,
	}

	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.milestones.On("MarkSubmitted", ctx, milestone.ID, models.MilestoneStatusPending,
		mock.AnythingOfType("time.Time")).Return(true, nil)

	// Клиент ещё не оплатил эскроу, но фрилансер вправе сдать работу.
	_, err := f.svc.Submit(ctx, contract.FreelancerID, milestone.ID)
	require.NoError(t, err)
	f.milestones.AssertExpectations(t)
}

func TestMilestoneService_Start_ResumesAfterRevision(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:            uuid.New(),
		ContractID:    contract.ID,
		Status:        models.MilestoneStatusRevisionRequested,
		RevisionCount: 1,
	}

	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.milestones.On("UpdateStatus", ctx, milestone.ID,
		models.MilestoneStatusRevisionRequested, models.MilestoneStatusInProgress).Return(true, nil)

	_, err := f.svc.Start(ctx, contract.FreelancerID, milestone.ID)
	require.NoError(t, err)
	f.milestones.AssertExpectations(t)
}

func TestMilestoneService_Start_OnlyFromRevisionRequested(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Status:     models.MilestoneStatusInProgress,
	}
	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

	_, err := f.svc.Start(ctx, contract.FreelancerID, milestone.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestMilestoneService_Accept_FundedReleasesEscrow(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:           uuid.New(),
		ContractID:   contract.ID,
		Title:        "Вёрстка",
		Status:       models.MilestoneStatusSubmitted,
		EscrowFunded: true,
	}

	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.milestones.On("MarkAccepted", ctx, milestone.ID).Return(true, nil)
	f.escrow.On("Release", ctx, milestone.ID).Return(nil)

	_, err := f.svc.Accept(ctx, contract.ClientID, milestone.ID)
	require.NoError(t, err)

	f.escrow.AssertExpectations(t)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, contract.FreelancerID, f.notifier.events[0].userID)
}

func TestMilestoneService_Accept_UnfundedDefersPayout(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Status:     models.MilestoneStatusSubmitted,
	}

	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.milestones.On("MarkAccepted", ctx, milestone.ID).Return(true, nil)

	_, err := f.svc.Accept(ctx, contract.ClientID, milestone.ID)
	require.NoError(t, err)

	// Эскроу не оплачено: выплата откладывается до позднего фандинга.
	f.escrow.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestMilestoneService_RequestRevision(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Title:      "Вёрстка",
		Status:     models.MilestoneStatusSubmitted,
	}

	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)
	f.milestones.On("MarkRevisionRequested", ctx, milestone.ID).Return(true, nil)

	_, err := f.svc.RequestRevision(ctx, contract.ClientID, milestone.ID, "поправьте шапку")
	require.NoError(t, err)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, models.NotificationRevisionRequest, f.notifier.events[0].ntype)
}

func TestMilestoneService_RequestRevision_NotSubmitted(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	milestone := &models.Milestone{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Status:     models.MilestoneStatusPending,
	}
	f.milestones.On("GetByID", ctx, milestone.ID).Return(milestone, nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

	_, err := f.svc.RequestRevision(ctx, contract.ClientID, milestone.ID, "")
	assert.True(t, apperror.IsInvalidState(err))
}

func TestMilestoneService_AutoAcceptDue(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	contract := activeContract(uuid.New(), uuid.New())
	due := models.Milestone{
		ID:           uuid.New(),
		ContractID:   contract.ID,
		Title:        "Вёрстка",
		Status:       models.MilestoneStatusSubmitted,
		EscrowFunded: true,
	}

	f.milestones.On("ListAutoAcceptDue", ctx, mock.AnythingOfType("time.Time")).
		Return([]models.Milestone{due}, nil)
	f.milestones.On("MarkAccepted", ctx, due.ID).Return(true, nil)
	f.escrow.On("Release", ctx, due.ID).Return(nil)
	f.contracts.On("GetByID", ctx, contract.ID).Return(contract, nil)

	accepted, err := f.svc.AutoAcceptDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, contract.FreelancerID, f.notifier.events[0].userID)
}
