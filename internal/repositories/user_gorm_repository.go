package repositories

import (
	"context"
	"fmt"

	"partshop/internal/models"

	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create inserts a new user. The ID is assigned by the model hook when empty.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	return classify("create user", r.db.WithContext(ctx).Create(user).Error)
}

// GetByEmail retrieves a user by their email.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, classify(fmt.Sprintf("get user by email %s", email), err)
	}
	return &user, nil
}

// GetByID retrieves a user by their ID.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, classify(fmt.Sprintf("get user by ID %s", id), err)
	}
	return &user, nil
}

// UpdateStatus sets the moderation status of a user.
func (r *GORMUserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return classify(fmt.Sprintf("update status of user %s", id), res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update status of user %s: %w", id, ErrNotFound)
	}
	return nil
}
