package warehouses

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/pkg/cache"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/enums"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/lock"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/metrics"
	"github.com/srms-platform/srms-backend/pkg/outbox"
	"github.com/srms-platform/srms-backend/pkg/outbox/payloads"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryService manages the items of warehouses and their stock.
type InventoryService interface {
	ListItems(ctx context.Context, warehouseID uuid.UUID, req pagination.PageRequest, showDeleted bool) (pagination.Page[ItemDTO], error)
	GetItem(ctx context.Context, itemID uuid.UUID, showDeleted bool) (*ItemDTO, error)
	CreateItem(ctx context.Context, warehouseID uuid.UUID, input ItemInput) (*ItemDTO, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, input ItemInput) (*ItemDTO, error)
	SoftDeleteItem(ctx context.Context, itemID uuid.UUID) (bool, error)
	RestoreItem(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error)
	AdjustStock(ctx context.Context, itemID uuid.UUID, input AdjustmentInput) (*AdjustmentResult, error)
	History(ctx context.Context, itemID uuid.UUID, params pagination.CursorParams) (pagination.CursorPage[HistoryDTO], error)
}

// InventoryParams wires the inventory service. Outbox may be nil when
// AlertsEnabled is false.
type InventoryParams struct {
	Warehouses    *WarehouseRepository
	Items         *ItemRepository
	History       *HistoryRepository
	Tx            txRunner
	Outbox        eventEmitter
	Locker        lock.Locker
	Entries       cache.Cache
	Pages         cache.Cache
	Metrics       *metrics.InventoryMetrics
	Logger        *logger.Logger
	AlertsEnabled bool
}

type inventoryService struct {
	warehouses    *WarehouseRepository
	items         *ItemRepository
	history       *HistoryRepository
	tx            txRunner
	outbox        eventEmitter
	locker        lock.Locker
	entries       cache.Cache
	pages         cache.Cache
	metrics       *metrics.InventoryMetrics
	logg          *logger.Logger
	alertsEnabled bool
}

func NewInventoryService(params InventoryParams) (InventoryService, error) {
	if params.Warehouses == nil {
		return nil, fmt.Errorf("warehouse repository required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if params.AlertsEnabled && params.Outbox == nil {
		return nil, fmt.Errorf("outbox required when alerts are enabled")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &inventoryService{
		warehouses:    params.Warehouses,
		items:         params.Items,
		history:       params.History,
		tx:            params.Tx,
		outbox:        params.Outbox,
		locker:        params.Locker,
		entries:       params.Entries,
		pages:         params.Pages,
		metrics:       params.Metrics,
		logg:          logg,
		alertsEnabled: params.AlertsEnabled,
	}, nil
}

func (s *inventoryService) ListItems(ctx context.Context, warehouseID uuid.UUID, req pagination.PageRequest, showDeleted bool) (pagination.Page[ItemDTO], error) {
	warehouse, err := s.warehouses.FindByID(ctx, warehouseID)
	if err != nil {
		return pagination.Page[ItemDTO]{}, err
	}
	if warehouse == nil {
		return pagination.Page[ItemDTO]{}, pkgerrors.NotFound(messages.EntityWarehouse, warehouseID)
	}

	page, _, err := cache.GetOrLoad(ctx, s.pages, cache.Key("list", warehouseID, req, showDeleted),
		func(ctx context.Context) (pagination.Page[ItemDTO], bool, error) {
			rows, total, err := s.items.Scoped(inWarehouse(warehouseID)).FindPage(ctx, req, showDeleted)
			if err != nil {
				return pagination.Page[ItemDTO]{}, false, err
			}
			page := pagination.NewPage(rows, req, total)
			return pagination.Map(page, func(m models.InventoryItem) ItemDTO { return *ItemFromModel(&m) }), true, nil
		})
	return page, err
}

func (s *inventoryService) GetItem(ctx context.Context, itemID uuid.UUID, showDeleted bool) (*ItemDTO, error) {
	load := s.items.FindActiveByID
	if showDeleted {
		load = s.items.FindByID
	}
	dto, ok, err := cache.GetOrLoad(ctx, s.entries, cache.Key("getById", itemID, showDeleted),
		func(ctx context.Context) (ItemDTO, bool, error) {
			row, err := load(ctx, itemID)
			if err != nil || row == nil {
				return ItemDTO{}, false, err
			}
			return *ItemFromModel(row), true, nil
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.NotFound(messages.EntityInventoryItem, itemID)
	}
	return &dto, nil
}

func (s *inventoryService) CreateItem(ctx context.Context, warehouseID uuid.UUID, input ItemInput) (*ItemDTO, error) {
	input = input.normalized()
	if err := validateItem(input, true); err != nil {
		return nil, err
	}
	if err := s.requireActiveWarehouse(ctx, warehouseID); err != nil {
		return nil, err
	}
	scoped := s.items.Scoped(inWarehouse(warehouseID))
	if err := ensureUniqueSKU(ctx, scoped, uuid.Nil, input.SKU); err != nil {
		return nil, err
	}

	row := &models.InventoryItem{WarehouseID: warehouseID, Quantity: input.Quantity}
	input.apply(row)
	if err := s.items.Create(ctx, row); err != nil {
		return nil, mapWriteError(err, messages.EntityInventoryItem, input.SKU)
	}
	if row.ID == uuid.Nil {
		return nil, pkgerrors.Persistence(messages.EntityInventoryItem, input.SKU)
	}
	s.evict(ctx, row.ID)
	return ItemFromModel(row), nil
}

// UpdateItem edits the descriptive fields and threshold of an active item.
// The quantity is left as stored.
func (s *inventoryService) UpdateItem(ctx context.Context, itemID uuid.UUID, input ItemInput) (*ItemDTO, error) {
	input = input.normalized()
	if err := validateItem(input, false); err != nil {
		return nil, err
	}
	if input.Version <= 0 {
		return nil, pkgerrors.Validation(messages.InvalidParameter, "version")
	}
	current, err := s.items.FindActiveByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.NotFound(messages.EntityInventoryItem, itemID)
	}
	if current.Version != input.Version {
		return nil, versionConflict(messages.EntityInventoryItem, itemID, input.Version)
	}
	scoped := s.items.Scoped(inWarehouse(current.WarehouseID))
	if err := ensureUniqueSKU(ctx, scoped, itemID, input.SKU); err != nil {
		return nil, err
	}

	input.apply(current)
	current.Version = input.Version + 1
	affected, err := s.items.UpdateActiveIf(ctx, current, "version = ?", input.Version)
	if err != nil {
		return nil, mapWriteError(err, messages.EntityInventoryItem, input.SKU)
	}
	if affected == 0 {
		latest, err := s.items.FindActiveByID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, pkgerrors.NotFound(messages.EntityInventoryItem, itemID)
		}
		return nil, versionConflict(messages.EntityInventoryItem, itemID, input.Version)
	}
	s.evict(ctx, itemID)
	return s.reloadItem(ctx, itemID)
}

func (s *inventoryService) SoftDeleteItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	current, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, pkgerrors.NotFound(messages.EntityInventoryItem, itemID)
	}
	if current.DeletedAt != nil {
		return false, nil
	}
	affected, err := s.items.SoftDelete(ctx, itemID)
	if err != nil {
		return false, err
	}
	s.evict(ctx, itemID)
	return affected > 0, nil
}

// RestoreItem brings a deleted item back. Its warehouse must be active and
// no active item of that warehouse may hold the SKU.
func (s *inventoryService) RestoreItem(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error) {
	current, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.NotFound(messages.EntityInventoryItem, itemID)
	}
	if current.DeletedAt == nil {
		return nil, pkgerrors.InUse(messages.AlreadyActive, messages.EntityInventoryItem, itemID)
	}
	if err := s.requireActiveWarehouse(ctx, current.WarehouseID); err != nil {
		return nil, err
	}
	scoped := s.items.Scoped(inWarehouse(current.WarehouseID))
	if err := ensureUniqueSKU(ctx, scoped, itemID, current.SKU); err != nil {
		return nil, err
	}

	affected, err := s.items.Restore(ctx, itemID)
	if err != nil {
		return nil, mapWriteError(err, messages.EntityInventoryItem, current.SKU)
	}
	if affected == 0 {
		return nil, pkgerrors.Persistence(messages.EntityInventoryItem, itemID)
	}
	s.evict(ctx, itemID)
	return s.reloadItem(ctx, itemID)
}

// AdjustStock applies delta under the per-item lock. The quantity change,
// its history row and any threshold alert commit together.
func (s *inventoryService) AdjustStock(ctx context.Context, itemID uuid.UUID, input AdjustmentInput) (*AdjustmentResult, error) {
	if input.Delta == 0 {
		return nil, pkgerrors.Validation(messages.InvalidParameter, "delta")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.Validation(messages.InvalidParameter, "reason")
	}

	itemLock := s.locker.For(itemID.String())
	acquired, err := itemLock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrapk(pkgerrors.CodeDependency, err, messages.DependencyFailed, "lock")
	}
	if !acquired {
		s.metrics.LockContended()
		return nil, pkgerrors.InUse(messages.Locked, messages.EntityInventoryItem, itemID)
	}
	defer func() {
		if err := itemLock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "item_id", itemID.String()), "inventory.lock_release_failed")
		}
	}()

	var (
		entry   models.InventoryHistory
		alerted bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.items.WithTx(tx).FindActiveByIDForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return pkgerrors.NotFound(messages.EntityInventoryItem, itemID)
		}
		after := item.Quantity + input.Delta
		if after < 0 {
			return pkgerrors.Validation(messages.NegativeStock, item.SKU, item.Quantity, input.Delta)
		}

		affected, err := setQuantityTx(tx, item.ID, after, time.Now().UTC())
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.Persistence(messages.EntityInventoryItem, itemID)
		}

		entry = models.InventoryHistory{
			ItemID:         item.ID,
			WarehouseID:    item.WarehouseID,
			Delta:          input.Delta,
			QuantityBefore: item.Quantity,
			QuantityAfter:  after,
			Reason:         input.Reason,
			Note:           trimmedOrNil(input.Note),
			Actor:          actorSubject(input.Actor),
		}
		if err := s.history.InsertTx(tx, &entry); err != nil {
			return err
		}

		if !s.alertsEnabled || !crossedBelow(item.Quantity, after, item.MinThreshold) {
			return nil
		}
		alerted = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryThresholdCrossed,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   item.ID,
			Actor:         input.Actor,
			Data: payloads.InventoryThresholdCrossedEvent{
				ItemID:         item.ID,
				WarehouseID:    item.WarehouseID,
				SKU:            item.SKU,
				Name:           item.Name,
				QuantityBefore: item.Quantity,
				QuantityAfter:  after,
				MinThreshold:   item.MinThreshold,
				Delta:          input.Delta,
				Reason:         input.Reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.evict(ctx, itemID)
	s.metrics.Adjusted(input.Reason.String())
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"item_id":      itemID.String(),
		"warehouse_id": entry.WarehouseID.String(),
		"delta":        input.Delta,
		"reason":       input.Reason,
		"quantity":     entry.QuantityAfter,
	})
	s.logg.Info(logCtx, "inventory.adjusted")
	if alerted {
		s.metrics.AlertEnqueued()
		s.logg.Info(logCtx, "inventory.alert_enqueued")
	}

	item, err := s.reloadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &AdjustmentResult{Item: *item, Entry: HistoryFromModel(entry), AlertQueued: alerted}, nil
}

// History lists the adjustments of an item newest first. Deleted items keep
// their history readable.
func (s *inventoryService) History(ctx context.Context, itemID uuid.UUID, params pagination.CursorParams) (pagination.CursorPage[HistoryDTO], error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return pagination.CursorPage[HistoryDTO]{}, err
	}
	if item == nil {
		return pagination.CursorPage[HistoryDTO]{}, pkgerrors.NotFound(messages.EntityInventoryItem, itemID)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.CursorPage[HistoryDTO]{}, pkgerrors.Validation(messages.InvalidParameter, "cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.history.ListByItem(ctx, itemID, cursor, limit)
	if err != nil {
		return pagination.CursorPage[HistoryDTO]{}, err
	}

	page := pagination.CursorPage[HistoryDTO]{Items: make([]HistoryDTO, 0, limit)}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	for _, row := range rows {
		page.Items = append(page.Items, HistoryFromModel(row))
	}
	return page, nil
}

func (s *inventoryService) requireActiveWarehouse(ctx context.Context, warehouseID uuid.UUID) error {
	warehouse, err := s.warehouses.FindByID(ctx, warehouseID)
	if err != nil {
		return err
	}
	if warehouse == nil {
		return pkgerrors.NotFound(messages.EntityWarehouse, warehouseID)
	}
	if warehouse.DeletedAt != nil {
		return pkgerrors.InUse(messages.WarehouseInactive, warehouseID)
	}
	return nil
}

func (s *inventoryService) reloadItem(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error) {
	row, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.Persistence(messages.EntityInventoryItem, itemID)
	}
	return ItemFromModel(row), nil
}

func (s *inventoryService) evict(ctx context.Context, itemID uuid.UUID) {
	cache.Evict(ctx, s.entries, cache.Key("getById", itemID, false), cache.Key("getById", itemID, true))
	cache.Clear(ctx, s.pages)
}

func ensureUniqueSKU(ctx context.Context, items *ItemRepository, self uuid.UUID, sku string) error {
	existing, err := items.FindByUnique(ctx, fieldSKU, sku, false)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return pkgerrors.Conflict(messages.EntityInventoryItem, fieldSKU, sku)
	}
	return nil
}

func validateItem(in ItemInput, creating bool) error {
	switch {
	case in.SKU == "":
		return pkgerrors.Validation(messages.InvalidParameter, "sku")
	case in.Name == "":
		return pkgerrors.Validation(messages.InvalidParameter, "name")
	case in.Unit == "":
		return pkgerrors.Validation(messages.InvalidParameter, "unit")
	case in.MinThreshold < 0:
		return pkgerrors.Validation(messages.InvalidParameter, "min_threshold")
	case in.UnitCost.LessThan(decimal.Zero):
		return pkgerrors.Validation(messages.InvalidParameter, "unit_cost")
	case creating && in.Quantity < 0:
		return pkgerrors.Validation(messages.InvalidParameter, "quantity")
	}
	return nil
}

// crossedBelow is true only for the adjustment that takes the quantity from
// at-or-above the threshold to below it.
func crossedBelow(before, after, threshold int64) bool {
	return before >= threshold && after < threshold
}

func actorSubject(actor *outbox.ActorRef) *string {
	if actor == nil || actor.Subject == "" {
		return nil
	}
	subject := actor.Subject
	return &subject
}
