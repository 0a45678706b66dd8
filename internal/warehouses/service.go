package warehouses

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/srms-platform/srms-backend/pkg/cache"
	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/messages"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

const defaultStatisticsDays = 30

type warehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	FindPage(ctx context.Context, req pagination.PageRequest, showDeleted bool) ([]models.Warehouse, int64, error)
	FindByUnique(ctx context.Context, column string, value any, showDeleted bool) (*models.Warehouse, error)
	Create(ctx context.Context, entity *models.Warehouse) error
	UpdateActiveIf(ctx context.Context, entity *models.Warehouse, cond string, args ...any) (int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (int64, error)
	Restore(ctx context.Context, id uuid.UUID) (int64, error)
}

type stockReader interface {
	ActiveStock(ctx context.Context, warehouseID uuid.UUID) ([]StockLine, error)
	CountActiveItems(ctx context.Context, warehouseID uuid.UUID) (int64, error)
}

type historyCounter interface {
	CountSince(ctx context.Context, warehouseID uuid.UUID, since time.Time) (int64, error)
}

// Service exposes warehouse operations.
type Service interface {
	Get(ctx context.Context, id uuid.UUID, showDeleted bool) (*WarehouseDTO, error)
	List(ctx context.Context, req pagination.PageRequest, showDeleted bool) (pagination.Page[WarehouseDTO], error)
	Create(ctx context.Context, input WarehouseInput) (*WarehouseDTO, error)
	Update(ctx context.Context, id uuid.UUID, input WarehouseInput) (*WarehouseDTO, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	Restore(ctx context.Context, id uuid.UUID) (*WarehouseDTO, error)
	Statistics(ctx context.Context, id uuid.UUID) (*StatisticsDTO, error)
}

// ServiceParams wires the warehouse service.
type ServiceParams struct {
	Warehouses     warehouseRepository
	Stock          stockReader
	History        historyCounter
	Entries        cache.Cache
	Pages          cache.Cache
	StatisticsDays int
}

type service struct {
	repo    warehouseRepository
	stock   stockReader
	history historyCounter
	entries cache.Cache
	pages   cache.Cache
	window  int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Warehouses == nil {
		return nil, fmt.Errorf("warehouse repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history repository required")
	}
	window := params.StatisticsDays
	if window <= 0 {
		window = defaultStatisticsDays
	}
	return &service{
		repo:    params.Warehouses,
		stock:   params.Stock,
		history: params.History,
		entries: params.Entries,
		pages:   params.Pages,
		window:  window,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, showDeleted bool) (*WarehouseDTO, error) {
	load := s.repo.FindActiveByID
	if showDeleted {
		load = s.repo.FindByID
	}
	dto, ok, err := cache.GetOrLoad(ctx, s.entries, cache.Key("getById", id, showDeleted),
		func(ctx context.Context) (WarehouseDTO, bool, error) {
			row, err := load(ctx, id)
			if err != nil || row == nil {
				return WarehouseDTO{}, false, err
			}
			return *WarehouseFromModel(row), true, nil
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.NotFound(messages.EntityWarehouse, id)
	}
	return &dto, nil
}

func (s *service) List(ctx context.Context, req pagination.PageRequest, showDeleted bool) (pagination.Page[WarehouseDTO], error) {
	page, _, err := cache.GetOrLoad(ctx, s.pages, cache.Key("list", req, showDeleted),
		func(ctx context.Context) (pagination.Page[WarehouseDTO], bool, error) {
			rows, total, err := s.repo.FindPage(ctx, req, showDeleted)
			if err != nil {
				return pagination.Page[WarehouseDTO]{}, false, err
			}
			page := pagination.NewPage(rows, req, total)
			return pagination.Map(page, func(m models.Warehouse) WarehouseDTO { return *WarehouseFromModel(&m) }), true, nil
		})
	return page, err
}

func (s *service) Create(ctx context.Context, input WarehouseInput) (*WarehouseDTO, error) {
	input = input.normalized()
	if err := s.ensureUniqueCode(ctx, uuid.Nil, input.Code); err != nil {
		return nil, err
	}

	row := &models.Warehouse{}
	input.apply(row)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, mapWriteError(err, messages.EntityWarehouse, input.Code)
	}
	if row.ID == uuid.Nil {
		return nil, pkgerrors.Persistence(messages.EntityWarehouse, input.Code)
	}
	s.evict(ctx, row.ID)
	return WarehouseFromModel(row), nil
}

// Update applies input when input.Version still matches the stored row and
// bumps the version. A stale version is a Conflict.
func (s *service) Update(ctx context.Context, id uuid.UUID, input WarehouseInput) (*WarehouseDTO, error) {
	input = input.normalized()
	if input.Version <= 0 {
		return nil, pkgerrors.Validation(messages.InvalidParameter, "version")
	}
	current, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.NotFound(messages.EntityWarehouse, id)
	}
	if current.Version != input.Version {
		return nil, versionConflict(messages.EntityWarehouse, id, input.Version)
	}
	if err := s.ensureUniqueCode(ctx, id, input.Code); err != nil {
		return nil, err
	}

	input.apply(current)
	current.Version = input.Version + 1
	affected, err := s.repo.UpdateActiveIf(ctx, current, "version = ?", input.Version)
	if err != nil {
		return nil, mapWriteError(err, messages.EntityWarehouse, input.Code)
	}
	if affected == 0 {
		// lost the race to another writer or a delete
		latest, err := s.repo.FindActiveByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, pkgerrors.NotFound(messages.EntityWarehouse, id)
		}
		return nil, versionConflict(messages.EntityWarehouse, id, input.Version)
	}
	s.evict(ctx, id)
	return s.reload(ctx, id)
}

// SoftDelete refuses while the warehouse still stocks active items.
func (s *service) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, pkgerrors.NotFound(messages.EntityWarehouse, id)
	}
	if current.DeletedAt != nil {
		return false, nil
	}
	items, err := s.stock.CountActiveItems(ctx, id)
	if err != nil {
		return false, err
	}
	if items > 0 {
		return false, pkgerrors.InUse(messages.WarehouseHasItems, id, items)
	}
	affected, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return false, err
	}
	s.evict(ctx, id)
	return affected > 0, nil
}

func (s *service) Restore(ctx context.Context, id uuid.UUID) (*WarehouseDTO, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, pkgerrors.NotFound(messages.EntityWarehouse, id)
	}
	if current.DeletedAt == nil {
		return nil, pkgerrors.InUse(messages.AlreadyActive, messages.EntityWarehouse, id)
	}
	if err := s.ensureUniqueCode(ctx, id, current.Code); err != nil {
		return nil, err
	}

	affected, err := s.repo.Restore(ctx, id)
	if err != nil {
		return nil, mapWriteError(err, messages.EntityWarehouse, current.Code)
	}
	if affected == 0 {
		return nil, pkgerrors.Persistence(messages.EntityWarehouse, id)
	}
	s.evict(ctx, id)
	return s.reload(ctx, id)
}

// Statistics aggregates the active items of a warehouse. Deleted warehouses
// report their remaining history but hold no active stock.
func (s *service) Statistics(ctx context.Context, id uuid.UUID) (*StatisticsDTO, error) {
	warehouse, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if warehouse == nil {
		return nil, pkgerrors.NotFound(messages.EntityWarehouse, id)
	}

	lines, err := s.stock.ActiveStock(ctx, id)
	if err != nil {
		return nil, err
	}
	since := time.Now().UTC().AddDate(0, 0, -s.window)
	recent, err := s.history.CountSince(ctx, id, since)
	if err != nil {
		return nil, err
	}

	stats := &StatisticsDTO{
		WarehouseID:       id,
		ActiveItems:       int64(len(lines)),
		StockValue:        decimal.Zero,
		RecentAdjustments: recent,
		WindowDays:        s.window,
	}
	for _, line := range lines {
		stats.TotalUnits += line.Quantity
		stats.StockValue = stats.StockValue.Add(line.UnitCost.Mul(decimal.NewFromInt(line.Quantity)))
		if line.Quantity < line.MinThreshold {
			stats.LowStockItems++
		}
	}
	stats.StockValue = stats.StockValue.Round(2)
	return stats, nil
}

func (s *service) ensureUniqueCode(ctx context.Context, self uuid.UUID, code string) error {
	existing, err := s.repo.FindByUnique(ctx, fieldCode, code, false)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return pkgerrors.Conflict(messages.EntityWarehouse, fieldCode, code)
	}
	return nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*WarehouseDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, pkgerrors.Persistence(messages.EntityWarehouse, id)
	}
	return WarehouseFromModel(row), nil
}

func (s *service) evict(ctx context.Context, id uuid.UUID) {
	cache.Evict(ctx, s.entries, cache.Key("getById", id, false), cache.Key("getById", id, true))
	cache.Clear(ctx, s.pages)
}

// mapWriteError turns a unique violation into a Conflict on the field it
// hit. Anything else is returned as is.
func mapWriteError(err error, entity messages.Key, value string) error {
	field, ok := db.ConflictField(err, conflictFields)
	if !ok {
		return err
	}
	return pkgerrors.Conflict(entity, field, value).WithCause(err)
}

func versionConflict(entity messages.Key, id uuid.UUID, expected int64) error {
	return pkgerrors.Newk(pkgerrors.CodeConflict, messages.VersionConflict, entity, id, expected)
}
