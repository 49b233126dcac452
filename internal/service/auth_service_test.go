package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/monkeysworks/monkeyswork-backend/internal/models"
	"github.com/monkeysworks/monkeyswork-backend/internal/pkg/apperror"
	"github.com/monkeysworks/monkeyswork-backend/internal/repository/common"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepo) GetSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newAuthFixture() (*AuthService, *mockAuthRepo, *TokenManager) {
	repo := new(mockAuthRepo)
	tm := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
	return NewAuthService(repo, tm), repo, tm
}

func TestAuthService_Register(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "dev@example.com").Return(nil, common.ErrNotFound)

	var created *models.User
	repo.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*models.User)
		}).
		Return(nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "Dev@Example.com",
		Password: "Sup3rSecret",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "dev@example.com", created.Email)
	assert.Equal(t, models.RoleFreelancer, created.Role)
	assert.Equal(t, "dev", created.DisplayName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("Sup3rSecret")))
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "dev@example.com").
		Return(&models.User{ID: uuid.New(), Email: "dev@example.com"}, nil)

	_, err := svc.Register(ctx, RegisterInput{Email: "dev@example.com", Password: "Sup3rSecret"})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), RegisterInput{Email: "dev@example.com", Password: "short"})
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_Register_UnknownRole(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "dev@example.com",
		Password: "Sup3rSecret",
		Role:     models.RoleAdmin,
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("Sup3rSecret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.On("GetByEmail", ctx, "dev@example.com").Return(&models.User{
		ID:           uuid.New(),
		Email:        "dev@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}, nil)

	_, err = svc.Login(ctx, LoginInput{Email: "dev@example.com", Password: "WrongPass1"})
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthService_Login_BlockedAccount(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "dev@example.com").Return(&models.User{
		ID:       uuid.New(),
		Email:    "dev@example.com",
		IsActive: false,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "dev@example.com", Password: "Sup3rSecret"})
	assert.True(t, apperror.IsForbidden(err))
}

func TestAuthService_Refresh_RotatesSession(t *testing.T) {
	svc, repo, tm := newAuthFixture()
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Role: models.RoleClient, IsActive: true}

	pair, _, refreshExp, err := tm.GeneratePair(user)
	require.NoError(t, err)

	session := &models.Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(session, nil)
	repo.On("GetByID", ctx, user.ID).Return(user, nil)
	repo.On("DeleteSession", ctx, session.ID).Return(nil)
	repo.On("CreateSession", ctx, mock.AnythingOfType("*models.Session")).Return(nil)

	newPair, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	repo.AssertCalled(t, "DeleteSession", ctx, session.ID)
}

func TestAuthService_Refresh_UnknownSession(t *testing.T) {
	svc, repo, tm := newAuthFixture()
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Role: models.RoleClient}

	pair, _, _, err := tm.GeneratePair(user)
	require.NoError(t, err)
	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(nil, common.ErrNotFound)

	_, err = svc.Refresh(ctx, pair.RefreshToken)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeUnauthorized, appErr.Code)
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	ctx := context.Background()

	repo.On("GetSessionByToken", ctx, "stale-token").Return(nil, common.ErrNotFound)

	assert.NoError(t, svc.Logout(ctx, "stale-token"))
	repo.AssertNotCalled(t, "DeleteSession", mock.Anything, mock.Anything)
}

func TestTokenManager_AccessRoundTrip(t *testing.T) {
	tm := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	pair, _, _, err := tm.GeneratePair(user)
	require.NoError(t, err)

	userID, role, err := tm.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleAdmin, role)

	// Access токен подписан другим секретом, чем refresh.
	_, err = tm.ParseRefresh(pair.AccessToken)
	assert.Error(t, err)
}
