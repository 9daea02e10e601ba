package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"partshop/internal/models"
	"partshop/internal/policy"
	"partshop/internal/repositories"
	"partshop/pkg/rabbitmq"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CodePublisher hands issued verification codes to the mailer.
type CodePublisher interface {
	PublishVerificationCode(ctx context.Context, ev rabbitmq.VerificationCodeEvent) error
}

// SignUpInput is the profile submitted on registration.
type SignUpInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"omitempty,max=255"`
	Company  string `json:"company" validate:"omitempty,max=255"`
	Address  string `json:"address"`
	Phone    string `json:"phone" validate:"omitempty,max=50"`
}

// AuthService handles accounts, verification codes and tokens.
type AuthService struct {
	users      repositories.UserRepository
	codes      repositories.VerificationCodeRepository
	publisher  CodePublisher
	jwtSecret  []byte
	tokenDurat time.Duration
	codeTTL    time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService. publisher may be nil, in which
// case codes are only stored.
func NewAuthService(
	users repositories.UserRepository,
	codes repositories.VerificationCodeRepository,
	publisher CodePublisher,
	jwtSecret string,
	codeTTL time.Duration,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		codes:      codes,
		publisher:  publisher,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
		codeTTL:    codeTTL,
		log:        log,
		now:        time.Now,
	}
}

// SignUp registers a pending account and sends it a verification code.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmailTaken, email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hashed),
		Name:         models.Text(strings.TrimSpace(in.Name)),
		Company:      models.Text(strings.TrimSpace(in.Company)),
		Address:      models.Text(strings.TrimSpace(in.Address)),
		Phone:        models.Text(strings.TrimSpace(in.Phone)),
		Status:       models.UserStatusPending,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrEmailTaken, email)
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	if _, err := s.IssueCode(ctx, email); err != nil {
		// the account exists; the user can request another code
		s.log.Warn("verification code not issued", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// IssueCode stores a fresh six digit code for email and publishes it.
// A failed publish is logged and does not fail the call.
func (s *AuthService) IssueCode(ctx context.Context, email string) (*models.VerificationCode, error) {
	code, err := randomDigits(6)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	vc := &models.VerificationCode{
		Email:     normalizeEmail(email),
		Code:      code,
		ExpiresAt: s.now().UTC().Add(s.codeTTL),
	}
	if err := s.codes.Create(ctx, vc); err != nil {
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}

	if s.publisher != nil {
		ev := rabbitmq.VerificationCodeEvent{Email: vc.Email, Code: vc.Code, ExpiresAt: vc.ExpiresAt}
		if err := s.publisher.PublishVerificationCode(ctx, ev); err != nil {
			s.log.Error("publish verification code", zap.String("email", vc.Email), zap.Error(err))
		}
	}
	return vc, nil
}

// VerifyCode redeems a code. Each code is accepted at most once and only
// before it expires.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) error {
	vc, err := s.codes.FindActive(ctx, normalizeEmail(email), strings.TrimSpace(code), s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrCodeInvalid
		}
		return err
	}
	if err := s.codes.MarkUsed(ctx, vc.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrCodeInvalid
		}
		return err
	}
	return nil
}

// Token authenticates an approved user and returns a signed access token.
func (s *AuthService) Token(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if user.Status != models.UserStatusApproved {
		return "", fmt.Errorf("%w: status is %s", ErrNotApproved, user.Status)
	}

	now := s.now()
	return s.sign(jwt.MapClaims{
		"role":     string(policy.RoleAuthenticated),
		"sub":      user.ID,
		"email":    user.Email,
		"is_admin": user.IsAdmin,
		"exp":      now.Add(s.tokenDurat).Unix(),
		"iat":      now.Unix(),
	})
}

// TokenTTL is the lifetime of access tokens issued by Token.
func (s *AuthService) TokenTTL() time.Duration { return s.tokenDurat }

// IssueRoleKey signs an API key for role. Keys without ttl never expire.
func (s *AuthService) IssueRoleKey(role policy.Role, ttl time.Duration) (string, error) {
	if role != policy.RoleAnon && role != policy.RoleService {
		return "", fmt.Errorf("cannot issue a key for role %q", role)
	}
	now := s.now()
	claims := jwt.MapClaims{
		"role": string(role),
		"iss":  "partshop",
		"iat":  now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	return s.sign(claims)
}

func (s *AuthService) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses an API key or access token into the caller it
// identifies.
func (s *AuthService) ValidateToken(tokenString string) (policy.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return policy.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return policy.Principal{}, ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	pr := policy.Principal{Role: policy.Role(role)}
	if !pr.Role.Valid() {
		return policy.Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	if pr.Role == policy.RoleAuthenticated {
		pr.UserID, _ = claims["sub"].(string)
		pr.IsAdmin, _ = claims["is_admin"].(bool)
		if pr.UserID == "" {
			return policy.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
		}
	}
	return pr, nil
}

// SetUserStatus approves or rejects an account and returns it as stored.
// Only admins and the service role may moderate.
func (s *AuthService) SetUserStatus(ctx context.Context, caller policy.Principal, userID string, status models.UserStatus) (*models.User, error) {
	if !(caller.Role == policy.RoleService || (caller.Role == policy.RoleAuthenticated && caller.IsAdmin)) {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if err := s.users.UpdateStatus(ctx, userID, status); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
