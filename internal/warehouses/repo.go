package warehouses

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/internal/repo"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

const (
	fieldCode = "code"
	fieldSKU  = "sku"
)

var conflictFields = map[string]string{
	"ux_warehouses_code_active":     fieldCode,
	"ux_inventory_items_sku_active": fieldSKU,
	"warehouses.code":               fieldCode,
	"inventory_items.sku":           fieldSKU,
}

// WarehouseRepository is the soft-delete repository for warehouses.
type WarehouseRepository = repo.SoftDelete[models.Warehouse, uuid.UUID]

// ItemRepository is the soft-delete repository for inventory items.
type ItemRepository = repo.SoftDelete[models.InventoryItem, uuid.UUID]

func NewWarehouseRepository(db *gorm.DB) *WarehouseRepository {
	return repo.NewSoftDelete[models.Warehouse, uuid.UUID](db, repo.Options{
		Sortable: map[string]string{
			"code":     "code",
			"name":     "name",
			"capacity": "capacity",
		},
		Unique: []string{fieldCode},
	})
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return repo.NewSoftDelete[models.InventoryItem, uuid.UUID](db, repo.Options{
		Sortable: map[string]string{
			"sku":          "sku",
			"name":         "name",
			"quantity":     "quantity",
			"minThreshold": "min_threshold",
			"unitCost":     "unit_cost",
		},
		Unique: []string{fieldSKU},
	})
}

// inWarehouse narrows item queries to one warehouse.
func inWarehouse(warehouseID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("warehouse_id = ?", warehouseID)
	}
}

// HistoryRepository stores the append-only stock adjustment log.
type HistoryRepository struct {
	repo.Conn
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{Conn: repo.NewConn(db)}
}

// InsertTx appends an entry inside the adjustment transaction.
func (r *HistoryRepository) InsertTx(tx *gorm.DB, entry *models.InventoryHistory) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Create(entry).Error
}

// ListByItem returns entries newest first, starting after cursor when set.
// It asks for one row more than limit so the caller can tell whether another
// page exists.
func (r *HistoryRepository) ListByItem(ctx context.Context, itemID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.InventoryHistory, error) {
	q := r.Session(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit))
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.InventoryHistory
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountSince counts adjustments recorded for a warehouse at or after since.
func (r *HistoryRepository) CountSince(ctx context.Context, warehouseID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := r.Session(ctx).Model(&models.InventoryHistory{}).
		Where("warehouse_id = ? AND created_at >= ?", warehouseID, since).
		Count(&total).Error
	return total, err
}

// StockLine is the per-item projection used by statistics and digests.
type StockLine struct {
	ID           uuid.UUID
	SKU          string
	Name         string
	Quantity     int64
	MinThreshold int64
	UnitCost     decimal.Decimal
}

// StockRepository runs the read-only aggregate queries over items.
type StockRepository struct {
	repo.Conn
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{Conn: repo.NewConn(db)}
}

// ActiveStock loads the stock columns of every active item in a warehouse.
func (r *StockRepository) ActiveStock(ctx context.Context, warehouseID uuid.UUID) ([]StockLine, error) {
	var lines []StockLine
	err := r.Session(ctx).Model(&models.InventoryItem{}).
		Select("id, sku, name, quantity, min_threshold, unit_cost").
		Where("warehouse_id = ? AND deleted_at IS NULL", warehouseID).
		Order("sku ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// CountActiveItems counts the active items stocked in a warehouse.
func (r *StockRepository) CountActiveItems(ctx context.Context, warehouseID uuid.UUID) (int64, error) {
	var total int64
	err := r.Session(ctx).Model(&models.InventoryItem{}).
		Where("warehouse_id = ? AND deleted_at IS NULL", warehouseID).
		Count(&total).Error
	return total, err
}

// LowStockWarehouses returns the ids of active warehouses holding at least
// one active item below its threshold.
func (r *StockRepository) LowStockWarehouses(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.Session(ctx).Model(&models.InventoryItem{}).
		Distinct("inventory_items.warehouse_id").
		Joins("JOIN warehouses ON warehouses.id = inventory_items.warehouse_id").
		Where("inventory_items.deleted_at IS NULL AND warehouses.deleted_at IS NULL").
		Where("inventory_items.quantity < inventory_items.min_threshold").
		Pluck("inventory_items.warehouse_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// setQuantityTx writes the adjusted quantity and bumps the version of an
// active item. It must run in the transaction that locked the row.
func setQuantityTx(tx *gorm.DB, itemID uuid.UUID, quantity int64, now time.Time) (int64, error) {
	res := tx.Model(&models.InventoryItem{}).
		Where("id = ? AND deleted_at IS NULL", itemID).
		Updates(map[string]any{
			"quantity":   quantity,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
