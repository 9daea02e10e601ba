package services

import (
	"context"
	"errors"
	"fmt"

	"partshop/internal/models"
	"partshop/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// PartService loads parts into the catalog outside the row API.
type PartService struct {
	repo     repositories.PartRepository
	validate *validator.Validate
}

// NewPartService creates a new PartService.
func NewPartService(repo repositories.PartRepository) *PartService {
	return &PartService{
		repo:     repo,
		validate: validator.New(),
	}
}

// CreatePart validates and stores a new part.
func (s *PartService) CreatePart(ctx context.Context, part *models.Part) error {
	if err := s.validate.Struct(part); err != nil {
		return validationError(err)
	}
	return s.repo.Create(ctx, part)
}

// Seed adds the parts whose part number is not in the catalog yet and
// reports how many were added. Existing parts are never modified.
func (s *PartService) Seed(ctx context.Context, parts []models.Part) (int, error) {
	added := 0
	for i := range parts {
		_, err := s.repo.GetByPartNumber(ctx, parts[i].PartNumber)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, repositories.ErrNotFound):
			return added, err
		}
		if err := s.CreatePart(ctx, &parts[i]); err != nil {
			return added, fmt.Errorf("seed part %s: %w", parts[i].PartNumber, err)
		}
		added++
	}
	return added, nil
}
