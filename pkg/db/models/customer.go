package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a restaurant customer. Email and phone are unique among
// active rows only.
type Customer struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	FirstName     string     `gorm:"column:first_name;not null"`
	LastName      string     `gorm:"column:last_name;not null"`
	Email         string     `gorm:"column:email;not null"`
	Phone         *string    `gorm:"column:phone"`
	Address       *string    `gorm:"column:address"`
	LoyaltyPoints int        `gorm:"column:loyalty_points;not null;default:0"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     *time.Time `gorm:"column:deleted_at"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
