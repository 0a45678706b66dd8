package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem is one SKU stocked in one warehouse.
type InventoryItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID  uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null"`
	SKU          string          `gorm:"column:sku;not null"`
	Name         string          `gorm:"column:name;not null"`
	Unit         string          `gorm:"column:unit;not null"`
	Quantity     int64           `gorm:"column:quantity;not null;default:0"`
	MinThreshold int64           `gorm:"column:min_threshold;not null;default:0"`
	UnitCost     decimal.Decimal `gorm:"column:unit_cost;type:numeric(12,2);not null"`
	Version      int64           `gorm:"column:version;not null;default:1"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    *time.Time      `gorm:"column:deleted_at"`
}

func (InventoryItem) TableName() string { return "inventory_items" }

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Version == 0 {
		i.Version = 1
	}
	return nil
}

// BelowThreshold reports whether the item needs restocking.
func (i InventoryItem) BelowThreshold() bool {
	return i.Quantity < i.MinThreshold
}
