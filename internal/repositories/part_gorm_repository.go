package repositories

import (
	"context"
	"fmt"

	"partshop/internal/models"

	"gorm.io/gorm"
)

// GORMPartRepository is a GORM implementation of PartRepository.
type GORMPartRepository struct {
	db *gorm.DB
}

// NewGORMPartRepository creates a new instance of GORMPartRepository.
func NewGORMPartRepository(db *gorm.DB) *GORMPartRepository {
	return &GORMPartRepository{
		db: db,
	}
}

// GetByPartNumber retrieves the first part carrying partNumber.
func (r *GORMPartRepository) GetByPartNumber(ctx context.Context, partNumber string) (*models.Part, error) {
	var part models.Part
	if err := r.db.WithContext(ctx).First(&part, "part_number = ?", partNumber).Error; err != nil {
		return nil, classify(fmt.Sprintf("get part by number %s", partNumber), err)
	}
	return &part, nil
}

// Create creates a new part.
func (r *GORMPartRepository) Create(ctx context.Context, part *models.Part) error {
	return classify("create part", r.db.WithContext(ctx).Create(part).Error)
}
