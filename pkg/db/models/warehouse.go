package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Warehouse is a storage site. Version increments on every update and
// guards concurrent edits.
type Warehouse struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Code      string     `gorm:"column:code;not null"`
	Name      string     `gorm:"column:name;not null"`
	Address   *string    `gorm:"column:address"`
	Capacity  int64      `gorm:"column:capacity;not null;default:0"`
	Version   int64      `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
}

func (Warehouse) TableName() string { return "warehouses" }

func (w *Warehouse) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Version == 0 {
		w.Version = 1
	}
	return nil
}
