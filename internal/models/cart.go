package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one part in a user's cart. A user holds at most one row per part;
// rows disappear together with the user or the part they reference.
type CartItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID    string    `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_items_user_part" validate:"required"`
	PartID    string    `json:"part_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_items_user_part;index:idx_cart_items_part" validate:"required"`
	Quantity  int       `json:"quantity" gorm:"not null;check:chk_cart_items_quantity,quantity > 0" validate:"gt=0"`
	CreatedAt time.Time `json:"created_at"`

	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" validate:"-"`
	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" validate:"-"`
}

func (CartItem) TableName() string { return "cart_items" }

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// OwnerID is the user the cart row belongs to.
func (c *CartItem) OwnerID() string { return c.UserID }

func (c *CartItem) SetOwnerID(id string) { c.UserID = id }
