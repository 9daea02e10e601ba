package repositories

import (
	"context"
	"fmt"
	"time"

	"partshop/internal/models"

	"gorm.io/gorm"
)

// VerificationCodeRepository stores issued email verification codes.
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *models.VerificationCode) error
	// FindActive returns the newest unused, unexpired code matching email and code.
	FindActive(ctx context.Context, email, code string, now time.Time) (*models.VerificationCode, error)
	// MarkUsed flags the code as used. It fails with ErrNotFound when the
	// code was already used, so a code can be redeemed only once.
	MarkUsed(ctx context.Context, id string) error
}

type GORMVerificationCodeRepository struct {
	db *gorm.DB
}

func NewGORMVerificationCodeRepository(db *gorm.DB) *GORMVerificationCodeRepository {
	return &GORMVerificationCodeRepository{db: db}
}

func (r *GORMVerificationCodeRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	return classify("create verification code", r.db.WithContext(ctx).Create(code).Error)
}

func (r *GORMVerificationCodeRepository) FindActive(ctx context.Context, email, code string, now time.Time) (*models.VerificationCode, error) {
	var vc models.VerificationCode
	err := r.db.WithContext(ctx).
		Where("email = ? AND code = ? AND used = ? AND expires_at > ?", email, code, false, now).
		Order("created_at desc").
		First(&vc).Error
	if err != nil {
		return nil, classify(fmt.Sprintf("find verification code for %s", email), err)
	}
	return &vc, nil
}

func (r *GORMVerificationCodeRepository) MarkUsed(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if res.Error != nil {
		return classify("mark verification code used", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("verification code %s: %w", id, ErrNotFound)
	}
	return nil
}
