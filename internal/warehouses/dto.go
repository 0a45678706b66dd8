package warehouses

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/outbox"
)

// WarehouseDTO exposes warehouse data in API responses and cache entries.
type WarehouseDTO struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Address   *string    `json:"address,omitempty"`
	Capacity  int64      `json:"capacity"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// WarehouseInput carries the mutable warehouse fields. Version is the value
// the caller last read and is only checked on update.
type WarehouseInput struct {
	Code     string
	Name     string
	Address  *string
	Capacity int64
	Version  int64
}

func WarehouseFromModel(m *models.Warehouse) *WarehouseDTO {
	if m == nil {
		return nil
	}
	return &WarehouseDTO{
		ID:        m.ID,
		Code:      m.Code,
		Name:      m.Name,
		Address:   m.Address,
		Capacity:  m.Capacity,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		DeletedAt: m.DeletedAt,
	}
}

func (in WarehouseInput) normalized() WarehouseInput {
	in.Code = NormalizeCode(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Address = trimmedOrNil(in.Address)
	return in
}

func (in WarehouseInput) apply(m *models.Warehouse) {
	m.Code = in.Code
	m.Name = in.Name
	m.Address = in.Address
	m.Capacity = in.Capacity
}

// ItemDTO exposes an inventory item.
type ItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Unit           string          `json:"unit"`
	Quantity       int64           `json:"quantity"`
	MinThreshold   int64           `json:"min_threshold"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	BelowThreshold bool            `json:"below_threshold"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// ItemInput carries the item fields. Quantity is only read on create; later
// changes go through AdjustStock so every movement is logged.
type ItemInput struct {
	SKU          string
	Name         string
	Unit         string
	Quantity     int64
	MinThreshold int64
	UnitCost     decimal.Decimal
	Version      int64
}

func ItemFromModel(m *models.InventoryItem) *ItemDTO {
	if m == nil {
		return nil
	}
	return &ItemDTO{
		ID:             m.ID,
		WarehouseID:    m.WarehouseID,
		SKU:            m.SKU,
		Name:           m.Name,
		Unit:           m.Unit,
		Quantity:       m.Quantity,
		MinThreshold:   m.MinThreshold,
		UnitCost:       m.UnitCost,
		BelowThreshold: m.BelowThreshold(),
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		DeletedAt:      m.DeletedAt,
	}
}

func (in ItemInput) normalized() ItemInput {
	in.SKU = NormalizeCode(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	in.UnitCost = in.UnitCost.Round(2)
	return in
}

func (in ItemInput) apply(m *models.InventoryItem) {
	m.SKU = in.SKU
	m.Name = in.Name
	m.Unit = in.Unit
	m.MinThreshold = in.MinThreshold
	m.UnitCost = in.UnitCost
}

// AdjustmentInput describes one stock movement.
type AdjustmentInput struct {
	Delta  int64
	Reason enums.AdjustmentReason
	Note   *string
	Actor  *outbox.ActorRef
}

// AdjustmentResult is the item after the movement plus the log entry.
type AdjustmentResult struct {
	Item        ItemDTO    `json:"item"`
	Entry       HistoryDTO `json:"entry"`
	AlertQueued bool       `json:"alert_queued"`
}

// HistoryDTO is one inventory_history row.
type HistoryDTO struct {
	ID             uuid.UUID              `json:"id"`
	ItemID         uuid.UUID              `json:"item_id"`
	WarehouseID    uuid.UUID              `json:"warehouse_id"`
	Delta          int64                  `json:"delta"`
	QuantityBefore int64                  `json:"quantity_before"`
	QuantityAfter  int64                  `json:"quantity_after"`
	Reason         enums.AdjustmentReason `json:"reason"`
	Note           *string                `json:"note,omitempty"`
	Actor          *string                `json:"actor,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

func HistoryFromModel(m models.InventoryHistory) HistoryDTO {
	return HistoryDTO{
		ID:             m.ID,
		ItemID:         m.ItemID,
		WarehouseID:    m.WarehouseID,
		Delta:          m.Delta,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		Note:           m.Note,
		Actor:          m.Actor,
		CreatedAt:      m.CreatedAt,
	}
}

// StatisticsDTO summarises the active stock of one warehouse.
type StatisticsDTO struct {
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	ActiveItems       int64           `json:"active_items"`
	TotalUnits        int64           `json:"total_units"`
	StockValue        decimal.Decimal `json:"stock_value"`
	LowStockItems     int64           `json:"low_stock_items"`
	RecentAdjustments int64           `json:"recent_adjustments"`
	WindowDays        int             `json:"window_days"`
}

// NormalizeCode trims and upper-cases warehouse codes and SKUs.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
