package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/pkg/enums"
)

// InventoryHistory is the append-only log of stock adjustments.
type InventoryHistory struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ItemID         uuid.UUID              `gorm:"column:item_id;type:uuid;not null"`
	WarehouseID    uuid.UUID              `gorm:"column:warehouse_id;type:uuid;not null"`
	Delta          int64                  `gorm:"column:delta;not null"`
	QuantityBefore int64                  `gorm:"column:quantity_before;not null"`
	QuantityAfter  int64                  `gorm:"column:quantity_after;not null"`
	Reason         enums.AdjustmentReason `gorm:"column:reason;not null"`
	Note           *string                `gorm:"column:note"`
	Actor          *string                `gorm:"column:actor"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryHistory) TableName() string { return "inventory_history" }

func (h *InventoryHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
