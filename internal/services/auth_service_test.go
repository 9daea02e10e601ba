package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"partshop/internal/models"
	"partshop/internal/policy"
	"partshop/internal/repositories"
	"partshop/internal/services"
	"partshop/pkg/rabbitmq"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// MockCodeRepository is a mock implementation of repositories.VerificationCodeRepository
type MockCodeRepository struct {
	mock.Mock
}

func (m *MockCodeRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockCodeRepository) FindActive(ctx context.Context, email, code string, now time.Time) (*models.VerificationCode, error) {
	args := m.Called(ctx, email, code, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationCode), args.Error(1)
}

func (m *MockCodeRepository) MarkUsed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishVerificationCode(ctx context.Context, ev rabbitmq.VerificationCodeEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newAuthService(users *MockUserRepository, codes *MockCodeRepository, pub services.CodePublisher) *services.AuthService {
	return services.NewAuthService(users, codes, pub, testJWTSecret, 15*time.Minute, nil)
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_SignUp(t *testing.T) {
	users := new(MockUserRepository)
	codes := new(MockCodeRepository)
	pub := new(MockPublisher)
	authService := newAuthService(users, codes, pub)
	ctx := context.Background()

	in := services.SignUpInput{Email: " Buyer@Example.com ", Password: "password123", Company: "ACME"}

	users.On("GetByEmail", ctx, "buyer@example.com").Return(nil, fmt.Errorf("get user: %w", repositories.ErrNotFound)).Once()
	users.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()
	codes.On("Create", ctx, mock.AnythingOfType("*models.VerificationCode")).Return(nil).Once()
	pub.On("PublishVerificationCode", ctx, mock.MatchedBy(func(ev rabbitmq.VerificationCodeEvent) bool {
		return ev.Email == "buyer@example.com" && len(ev.Code) == 6
	})).Return(nil).Once()

	user, err := authService.SignUp(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", user.Email)
	assert.Equal(t, models.UserStatusPending, user.Status)
	assert.Equal(t, models.Text("ACME"), user.Company)
	assert.Nil(t, user.Phone, "blank profile fields are stored as NULL")
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	users.AssertExpectations(t)
	codes.AssertExpectations(t)
	pub.AssertExpectations(t)

	// Test email already registered
	users.On("GetByEmail", ctx, "buyer@example.com").Return(&models.User{ID: "1"}, nil).Once()
	_, err = authService.SignUp(ctx, in)
	assert.ErrorIs(t, err, services.ErrEmailTaken)

	// Test unique violation from a concurrent signup
	users.On("GetByEmail", ctx, "buyer@example.com").Return(nil, repositories.ErrNotFound).Once()
	users.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(fmt.Errorf("create user: %w", repositories.ErrDuplicate)).Once()
	_, err = authService.SignUp(ctx, in)
	assert.ErrorIs(t, err, services.ErrEmailTaken)
	users.AssertExpectations(t)
}

func TestAuthService_IssueCode(t *testing.T) {
	codes := new(MockCodeRepository)
	pub := new(MockPublisher)
	authService := newAuthService(new(MockUserRepository), codes, pub)
	ctx := context.Background()

	codes.On("Create", ctx, mock.AnythingOfType("*models.VerificationCode")).Return(nil).Twice()
	pub.On("PublishVerificationCode", ctx, mock.Anything).Return(errors.New("broker down")).Once()

	before := time.Now().UTC()
	vc, err := authService.IssueCode(ctx, "a@example.com")
	require.NoError(t, err, "a failed publish must not fail the request")
	assert.Regexp(t, `^[0-9]{6}$`, vc.Code)
	assert.WithinDuration(t, before.Add(15*time.Minute), vc.ExpiresAt, time.Minute)
	assert.False(t, vc.Used)

	// without a broker the code is only stored
	noBroker := newAuthService(new(MockUserRepository), codes, nil)
	_, err = noBroker.IssueCode(ctx, "a@example.com")
	require.NoError(t, err)
	codes.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestAuthService_VerifyCode(t *testing.T) {
	codes := new(MockCodeRepository)
	authService := newAuthService(new(MockUserRepository), codes, nil)
	ctx := context.Background()

	active := &models.VerificationCode{ID: "vc-1", Email: "a@example.com", Code: "123456"}
	codes.On("FindActive", ctx, "a@example.com", "123456", mock.AnythingOfType("time.Time")).Return(active, nil).Once()
	codes.On("MarkUsed", ctx, "vc-1").Return(nil).Once()
	assert.NoError(t, authService.VerifyCode(ctx, "A@example.com", " 123456 "))

	// expired, unknown or already redeemed codes are not found
	codes.On("FindActive", ctx, "a@example.com", "000000", mock.AnythingOfType("time.Time")).Return(nil, repositories.ErrNotFound).Once()
	assert.ErrorIs(t, authService.VerifyCode(ctx, "a@example.com", "000000"), services.ErrCodeInvalid)

	// a concurrent redeem wins the conditional update
	codes.On("FindActive", ctx, "a@example.com", "123456", mock.AnythingOfType("time.Time")).Return(active, nil).Once()
	codes.On("MarkUsed", ctx, "vc-1").Return(repositories.ErrNotFound).Once()
	assert.ErrorIs(t, authService.VerifyCode(ctx, "a@example.com", "123456"), services.ErrCodeInvalid)
	codes.AssertExpectations(t)
}

func TestAuthService_Token(t *testing.T) {
	users := new(MockUserRepository)
	authService := newAuthService(users, new(MockCodeRepository), nil)
	ctx := context.Background()

	user := &models.User{
		ID:           "user-123",
		Email:        "test@example.com",
		PasswordHash: hashed(t, "password123"),
		Status:       models.UserStatusApproved,
		IsAdmin:      true,
	}

	users.On("GetByEmail", ctx, "test@example.com").Return(user, nil).Once()
	token, err := authService.Token(ctx, "test@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, "authenticated", claims["role"])
	assert.Equal(t, user.ID, claims["sub"])
	assert.Equal(t, true, claims["is_admin"])

	pr, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, policy.Principal{Role: policy.RoleAuthenticated, UserID: "user-123", IsAdmin: true}, pr)

	// Test wrong password
	users.On("GetByEmail", ctx, "test@example.com").Return(user, nil).Once()
	_, err = authService.Token(ctx, "test@example.com", "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Test unknown user gets the same error
	users.On("GetByEmail", ctx, "nobody@example.com").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.Token(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Test pending account
	pending := *user
	pending.Status = models.UserStatusPending
	users.On("GetByEmail", ctx, "test@example.com").Return(&pending, nil).Once()
	_, err = authService.Token(ctx, "test@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrNotApproved)
	users.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := newAuthService(new(MockUserRepository), new(MockCodeRepository), nil)

	anonKey, err := authService.IssueRoleKey(policy.RoleAnon, 0)
	require.NoError(t, err)
	pr, err := authService.ValidateToken(anonKey)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleAnon, pr.Role)
	assert.Empty(t, pr.UserID)

	serviceKey, err := authService.IssueRoleKey(policy.RoleService, time.Hour)
	require.NoError(t, err)
	pr, err = authService.ValidateToken(serviceKey)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleService, pr.Role)

	_, err = authService.IssueRoleKey(policy.RoleAuthenticated, 0)
	assert.Error(t, err)

	sign := func(secret string, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", sign("other", jwt.MapClaims{"role": "anon"})},
		{"unknown role", sign(testJWTSecret, jwt.MapClaims{"role": "postgres"})},
		{"missing subject", sign(testJWTSecret, jwt.MapClaims{"role": "authenticated"})},
		{"expired", sign(testJWTSecret, jwt.MapClaims{"role": "anon", "exp": time.Now().Add(-time.Hour).Unix()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authService.ValidateToken(tt.token)
			assert.ErrorIs(t, err, services.ErrInvalidToken)
		})
	}
}

func TestAuthService_SetUserStatus(t *testing.T) {
	users := new(MockUserRepository)
	authService := newAuthService(users, new(MockCodeRepository), nil)
	ctx := context.Background()

	admin := policy.Principal{Role: policy.RoleAuthenticated, UserID: "admin-1", IsAdmin: true}
	customer := policy.Principal{Role: policy.RoleAuthenticated, UserID: "user-1"}

	users.On("UpdateStatus", ctx, "user-1", models.UserStatusApproved).Return(nil).Once()
	users.On("GetByID", ctx, "user-1").Return(&models.User{ID: "user-1", Status: models.UserStatusApproved}, nil).Once()
	user, err := authService.SetUserStatus(ctx, admin, "user-1", models.UserStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusApproved, user.Status)

	users.On("UpdateStatus", ctx, "user-2", models.UserStatusRejected).Return(nil).Once()
	users.On("GetByID", ctx, "user-2").Return(&models.User{ID: "user-2", Status: models.UserStatusRejected}, nil).Once()
	_, err = authService.SetUserStatus(ctx, policy.Principal{Role: policy.RoleService}, "user-2", models.UserStatusRejected)
	assert.NoError(t, err)

	users.On("UpdateStatus", ctx, "missing", models.UserStatusApproved).Return(fmt.Errorf("update status: %w", repositories.ErrNotFound)).Once()
	_, err = authService.SetUserStatus(ctx, admin, "missing", models.UserStatusApproved)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = authService.SetUserStatus(ctx, customer, "user-1", models.UserStatusApproved)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = authService.SetUserStatus(ctx, policy.Principal{Role: policy.RoleAnon}, "user-1", models.UserStatusApproved)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = authService.SetUserStatus(ctx, admin, "user-1", "banned")
	assert.ErrorIs(t, err, services.ErrValidation)
	users.AssertExpectations(t)
}
