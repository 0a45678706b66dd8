package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contactor is a supplier contact.
type Contactor struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CompanyName string     `gorm:"column:company_name;not null"`
	ContactName string     `gorm:"column:contact_name;not null"`
	Email       string     `gorm:"column:email;not null"`
	Phone       *string    `gorm:"column:phone"`
	Address     *string    `gorm:"column:address"`
	TaxCode     *string    `gorm:"column:tax_code"`
	Note        *string    `gorm:"column:note"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
}

func (Contactor) TableName() string { return "contactors" }

func (c *Contactor) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
