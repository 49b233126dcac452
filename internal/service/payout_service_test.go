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
	"github.com/monkeysworks/monkeyswork-backend/internal/repository"
)

type mockPayoutStore struct {
	mock.Mock
}

func (m *mockPayoutStore) Create(ctx context.Context, p *models.Payout) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPayoutStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payout), args.Error(1)
}

func (m *mockPayoutStore) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Payout, int, error) {
	args := m.Called(ctx, freelancerID, limit, offset)
	return args.Get(0).([]models.Payout), args.Int(1), args.Error(2)
}

func (m *mockPayoutStore) ListAll(ctx context.Context, status string, limit, offset int) ([]models.Payout, int, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]models.Payout), args.Int(1), args.Error(2)
}

func (m *mockPayoutStore) SumReservedByFreelancer(ctx context.Context, freelancerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, freelancerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockPayoutStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, gatewayRef *string) (bool, error) {
	args := m.Called(ctx, id, from, to, gatewayRef)
	return args.Bool(0), args.Error(1)
}

type mockPayoutBilling struct {
	mock.Mock
}

func (m *mockPayoutBilling) GetUserSummary(ctx context.Context, userID uuid.UUID) (*repository.BillingSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.BillingSummary), args.Error(1)
}

type payoutFixture struct {
	svc     *PayoutService
	payouts *mockPayoutStore
	billing *mockPayoutBilling
}

func newPayoutFixture() *payoutFixture {
	f := &payoutFixture{
		payouts: new(mockPayoutStore),
		billing: new(mockPayoutBilling),
	}
	f.svc = NewPayoutService(f.payouts, f.billing, new(stubNotifier))
	return f
}

func TestPayoutService_Available_SubtractsReserved(t *testing.T) {
	f := newPayoutFixture()
	freelancerID := uuid.New()

	f.billing.On("GetUserSummary", mock.Anything, freelancerID).
		Return(&repository.BillingSummary{TotalEarned: decimal.NewFromInt(900)}, nil)
	f.payouts.On("SumReservedByFreelancer", mock.Anything, freelancerID).
		Return(decimal.NewFromInt(250), nil)

	available, err := f.svc.Available(context.Background(), freelancerID)
	require.NoError(t, err)
	assert.True(t, available.Equal(decimal.NewFromInt(650)), "available = %s", available)
}

func TestPayoutService_Request_CreatesPending(t *testing.T) {
	f := newPayoutFixture()
	freelancerID := uuid.New()

	f.billing.On("GetUserSummary", mock.Anything, freelancerID).
		Return(&repository.BillingSummary{TotalEarned: decimal.NewFromInt(500)}, nil)
	f.payouts.On("SumReservedByFreelancer", mock.Anything, freelancerID).
		Return(decimal.Zero, nil)
	f.payouts.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Payout) bool {
		return p.FreelancerID == freelancerID &&
			p.Status == models.PayoutStatusPending &&
			p.Method == models.PayoutMethodStripe &&
			p.Currency == "USD" &&
			p.Amount.Equal(decimal.NewFromInt(300))
	})).Return(nil)

	payout, err := f.svc.Request(context.Background(), freelancerID, decimal.NewFromInt(300), models.PayoutMethodStripe, "")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPending, payout.Status)
	f.payouts.AssertExpectations(t)
}

func TestPayoutService_Request_ExceedsAvailable(t *testing.T) {
	f := newPayoutFixture()
	freelancerID := uuid.New()

	f.billing.On("GetUserSummary", mock.Anything, freelancerID).
		Return(&repository.BillingSummary{TotalEarned: decimal.NewFromInt(100)}, nil)
	f.payouts.On("SumReservedByFreelancer", mock.Anything, freelancerID).
		Return(decimal.NewFromInt(50), nil)

	_, err := f.svc.Request(context.Background(), freelancerID, decimal.NewFromInt(51), models.PayoutMethodPayPal, "USD")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	f.payouts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPayoutService_Request_UnknownMethod(t *testing.T) {
	f := newPayoutFixture()

	_, err := f.svc.Request(context.Background(), uuid.New(), decimal.NewFromInt(10), "wire", "USD")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestPayoutService_Complete_PrefixesGatewayReference(t *testing.T) {
	f := newPayoutFixture()
	payoutID := uuid.New()
	payout := &models.Payout{
		ID:           payoutID,
		FreelancerID: uuid.New(),
		Amount:       decimal.NewFromInt(200),
		Currency:     "USD",
		Method:       models.PayoutMethodStripe,
		Status:       models.PayoutStatusPending,
	}

	f.payouts.On("GetByID", mock.Anything, payoutID).Return(payout, nil)
	f.payouts.On("UpdateStatus", mock.Anything, payoutID,
		models.PayoutStatusPending, models.PayoutStatusCompleted,
		mock.MatchedBy(func(ref *string) bool {
			return ref != nil && *ref == "stripe:po_42"
		})).Return(true, nil)

	_, err := f.svc.Complete(context.Background(), payoutID, "po_42")
	require.NoError(t, err)
	f.payouts.AssertExpectations(t)
}

func TestPayoutService_Complete_OnlyFromPending(t *testing.T) {
	f := newPayoutFixture()
	payoutID := uuid.New()
	payout := &models.Payout{
		ID:     payoutID,
		Status: models.PayoutStatusFailed,
		Method: models.PayoutMethodPayPal,
	}

	f.payouts.On("GetByID", mock.Anything, payoutID).Return(payout, nil)
	f.payouts.On("UpdateStatus", mock.Anything, payoutID,
		models.PayoutStatusPending, models.PayoutStatusCompleted, mock.Anything).
		Return(false, nil)

	_, err := f.svc.Complete(context.Background(), payoutID, "")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestPayoutService_Get_ForbiddenForStranger(t *testing.T) {
	f := newPayoutFixture()
	payoutID := uuid.New()
	payout := &models.Payout{ID: payoutID, FreelancerID: uuid.New()}

	f.payouts.On("GetByID", mock.Anything, payoutID).Return(payout, nil)

	_, err := f.svc.Get(context.Background(), uuid.New(), false, payoutID)
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestPayoutService_ListAll_RejectsUnknownStatus(t *testing.T) {
	f := newPayoutFixture()

	_, _, err := f.svc.ListAll(context.Background(), "cancelled", 20, 0)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	f.payouts.AssertNotCalled(t, "ListAll", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
