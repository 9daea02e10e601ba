package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Part represents a catalog item. Names are kept in English and Russian.
type Part struct {
	ID         string           `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	PartNumber string           `json:"part_number" gorm:"type:varchar(100);not null;index" validate:"required,max=100"`
	NameEN     string           `json:"name_en" gorm:"column:name_en;type:varchar(255);not null" validate:"required,max=255"`
	NameRU     *string          `json:"name_ru" gorm:"column:name_ru;type:varchar(255)" validate:"omitempty,max=255"`
	Category   *string          `json:"category" gorm:"type:varchar(100);index" validate:"omitempty,max=100"`
	Price      *decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null;check:chk_parts_price,price >= 0" validate:"required"`
	Quantity   int              `json:"quantity" gorm:"not null;default:0;check:chk_parts_quantity,quantity >= 0" validate:"gte=0"`
	ImageURL   *string          `json:"image_url" gorm:"column:image_url;type:text" validate:"omitempty,max=2048"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (Part) TableName() string { return "parts" }

func (p *Part) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
