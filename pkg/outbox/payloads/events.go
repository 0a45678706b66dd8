package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/srms-platform/srms-backend/pkg/enums"
)

// InventoryThresholdCrossedEvent is emitted when a stock adjustment takes an
// item from at-or-above its minimum threshold to below it.
type InventoryThresholdCrossedEvent struct {
	ItemID         uuid.UUID              `json:"item_id" validate:"required"`
	WarehouseID    uuid.UUID              `json:"warehouse_id" validate:"required"`
	SKU            string                 `json:"sku" validate:"required"`
	Name           string                 `json:"name"`
	QuantityBefore int64                  `json:"quantity_before"`
	QuantityAfter  int64                  `json:"quantity_after"`
	MinThreshold   int64                  `json:"min_threshold"`
	Delta          int64                  `json:"delta"`
	Reason         enums.AdjustmentReason `json:"reason" validate:"required"`
}

// LowStockDigestEvent lists every below-threshold item of one warehouse.
type LowStockDigestEvent struct {
	WarehouseID   uuid.UUID      `json:"warehouse_id" validate:"required"`
	WarehouseCode string         `json:"warehouse_code" validate:"required"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Items         []LowStockLine `json:"items" validate:"min=1,dive"`
}

type LowStockLine struct {
	ItemID       uuid.UUID `json:"item_id"`
	SKU          string    `json:"sku" validate:"required"`
	Name         string    `json:"name"`
	Quantity     int64     `json:"quantity"`
	MinThreshold int64     `json:"min_threshold"`
}
