package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
)

type mockContractStore struct {
	mock.Mock
}

func (m *mockContractStore) Create(ctx context.Context, contract *models.Contract) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *mockContractStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func (m *mockContractStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Contract), args.Int(1), args.Error(2)
}

func (m *mockContractStore) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Contract, int, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]models.Contract), args.Int(1), args.Error(2)
}

func (m *mockContractStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

type mockContractUsers struct {
	mock.Mock
}

func (m *mockContractUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type contractFixture struct {
	svc       *ContractService
	contracts *mockContractStore
	users     *mockContractUsers
}

func newContractFixture() *contractFixture {
	f := &contractFixture{
		contracts: new(mockContractStore),
		users:     new(mockContractUsers),
	}
	f.svc = NewContractService(f.contracts, f.users)
	return f
}

func TestContractService_Create_FixedRequiresAmount(t *testing.T) {
	f := newContractFixture()

	_, err := f.svc.Create(context.Background(), CreateContractParams{
		ClientID:     uuid.New(),
		FreelancerID: uuid.New(),
		Title:        "Разработка API",
		ContractType: models.ContractTypeFixed,
		TotalAmount:  decimal.Zero,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestContractService_Create_FreelancerRoleChecked(t *testing.T) {
	f := newContractFixture()
	freelancerID := uuid.New()

	f.users.On("GetByID", mock.Anything, freelancerID).
		Return(&models.User{ID: freelancerID, Role: models.RoleClient}, nil)

	_, err := f.svc.Create(context.Background(), CreateContractParams{
		ClientID:     uuid.New(),
		FreelancerID: freelancerID,
		Title:        "Разработка API",
		ContractType: models.ContractTypeFixed,
		TotalAmount:  decimal.NewFromInt(1000),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	f.contracts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestContractService_Create_DraftWithDefaultCurrency(t *testing.T) {
	f := newContractFixture()
	clientID := uuid.New()
	freelancerID := uuid.New()

	f.users.On("GetByID", mock.Anything, freelancerID).
		Return(&models.User{ID: freelancerID, Role: models.RoleFreelancer}, nil)
	f.contracts.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Contract) bool {
		return c.Status == models.ContractStatusDraft && c.Currency == "USD"
	})).Return(nil)

	contract, err := f.svc.Create(context.Background(), CreateContractParams{
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Title:        "Разработка API",
		ContractType: models.ContractTypeFixed,
		TotalAmount:  decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusDraft, contract.Status)
	f.contracts.AssertExpectations(t)
}

func TestContractService_ChangeStatus_DisputedIsReserved(t *testing.T) {
	f := newContractFixture()

	_, err := f.svc.ChangeStatus(context.Background(), uuid.New(), models.ContractStatusDisputed)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestContractService_ChangeStatus_CompletedIsTerminal(t *testing.T) {
	f := newContractFixture()
	contractID := uuid.New()

	f.contracts.On("GetByID", mock.Anything, contractID).
		Return(&models.Contract{ID: contractID, Status: models.ContractStatusCompleted}, nil)

	_, err := f.svc.ChangeStatus(context.Background(), contractID, models.ContractStatusActive)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	f.contracts.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestContractService_ChangeStatus_SuspendAndResume(t *testing.T) {
	f := newContractFixture()
	contractID := uuid.New()

	active := &models.Contract{ID: contractID, Status: models.ContractStatusActive}
	suspended := &models.Contract{ID: contractID, Status: models.ContractStatusSuspended}

	f.contracts.On("GetByID", mock.Anything, contractID).Return(active, nil).Once()
	f.contracts.On("UpdateStatus", mock.Anything, contractID,
		models.ContractStatusActive, models.ContractStatusSuspended).Return(true, nil).Once()
	f.contracts.On("GetByID", mock.Anything, contractID).Return(suspended, nil).Once()

	contract, err := f.svc.ChangeStatus(context.Background(), contractID, models.ContractStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusSuspended, contract.Status)

	f.contracts.On("GetByID", mock.Anything, contractID).Return(suspended, nil).Once()
	f.contracts.On("UpdateStatus", mock.Anything, contractID,
		models.ContractStatusSuspended, models.ContractStatusActive).Return(true, nil).Once()
	f.contracts.On("GetByID", mock.Anything, contractID).Return(active, nil).Once()

	contract, err = f.svc.ChangeStatus(context.Background(), contractID, models.ContractStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusActive, contract.Status)
	f.contracts.AssertExpectations(t)
}

func TestContractService_Activate_OnlyClient(t *testing.T) {
	f := newContractFixture()
	contractID := uuid.New()
	clientID := uuid.New()

	f.contracts.On("GetByID", mock.Anything, contractID).
		Return(&models.Contract{ID: contractID, ClientID: clientID, Status: models.ContractStatusDraft}, nil)

	_, err := f.svc.Activate(context.Background(), uuid.New(), contractID)
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}
