package repositories

import (
	"context"

	"partshop/internal/models"
)

// PartRepository defines the catalog access used outside the row API.
type PartRepository interface {
	GetByPartNumber(ctx context.Context, partNumber string) (*models.Part, error)
	Create(ctx context.Context, part *models.Part) error
}
