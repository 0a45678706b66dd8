package warehouses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srms-platform/srms-backend/pkg/cache"
	"github.com/srms-platform/srms-backend/pkg/db"
	"github.com/srms-platform/srms-backend/pkg/db/dbtest"
	pkgerrors "github.com/srms-platform/srms-backend/pkg/errors"
	"github.com/srms-platform/srms-backend/pkg/lock"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
	"github.com/srms-platform/srms-backend/pkg/outbox"
	"github.com/srms-platform/srms-backend/pkg/pagination"
)

type fixture struct {
	client     *db.Client
	warehouses Service
	inventory  InventoryService
	locker     *lock.MemoryLocker
	reg        *prometheus.Registry
}

type fixtureOption func(*InventoryParams)

func withoutAlerts() fixtureOption {
	return func(p *InventoryParams) {
		p.AlertsEnabled = false
		p.Outbox = nil
	}
}

func withEmitter(e eventEmitter) fixtureOption {
	return func(p *InventoryParams) { p.Outbox = e }
}

func newFixture(t *testing.T, opts ...fixtureOption) fixture {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()
	reg := prometheus.NewRegistry()
	locker := lock.NewMemoryLocker()

	warehouseRepo := NewWarehouseRepository(conn)
	history := NewHistoryRepository(conn)

	warehouses, err := NewService(ServiceParams{
		Warehouses: warehouseRepo,
		Stock:      NewStockRepository(conn),
		History:    history,
		Entries:    cache.NewMemoryCache(cache.Warehouses, 0),
		Pages:      cache.NewMemoryCache(cache.WarehousePages, 0),
	})
	require.NoError(t, err)

	params := InventoryParams{
		Warehouses:    warehouseRepo,
		Items:         NewItemRepository(conn),
		History:       history,
		Tx:            client,
		Outbox:        outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Locker:        locker,
		Entries:       cache.NewMemoryCache(cache.Inventory, 0),
		Pages:         cache.NewMemoryCache(cache.InventoryPages, 0),
		Metrics:       metrics.NewInventoryMetrics(reg),
		AlertsEnabled: true,
	}
	for _, opt := range opts {
		opt(&params)
	}
	inventory, err := NewInventoryService(params)
	require.NoError(t, err)

	return fixture{client: client, warehouses: warehouses, inventory: inventory, locker: locker, reg: reg}
}

func (f fixture) warehouse(t *testing.T, code string) *WarehouseDTO {
	t.Helper()
	w, err := f.warehouses.Create(context.Background(), WarehouseInput{Code: code, Name: "Central " + code, Capacity: 500})
	require.NoError(t, err)
	return w
}

func (f fixture) item(t *testing.T, warehouseID uuid.UUID, sku string, quantity, threshold int64, cost string) *ItemDTO {
	t.Helper()
	item, err := f.inventory.CreateItem(context.Background(), warehouseID, ItemInput{
		SKU:          sku,
		Name:         "Item " + sku,
		Unit:         "kg",
		Quantity:     quantity,
		MinThreshold: threshold,
		UnitCost:     decimal.RequireFromString(cost),
	})
	require.NoError(t, err)
	return item
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code(), typed.Error())
}

func TestWarehouseUpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.warehouse(t, "wh-1")
	assert.Equal(t, "WH-1", w.Code)
	assert.Equal(t, int64(1), w.Version)

	updated, err := f.warehouses.Update(ctx, w.ID, WarehouseInput{Code: "WH-1", Name: "Renamed", Capacity: 800, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, int64(2), updated.Version)

	_, err = f.warehouses.Update(ctx, w.ID, WarehouseInput{Code: "WH-1", Name: "Stale", Version: 1})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = f.warehouses.Update(ctx, w.ID, WarehouseInput{Code: "WH-1", Name: "No version"})
	requireCode(t, err, pkgerrors.CodeValidation)

	got, err := f.warehouses.Get(ctx, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, int64(800), got.Capacity)
}

func TestWarehouseCodeReuseAfterDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.warehouse(t, "north")

	_, err := f.warehouses.Create(ctx, WarehouseInput{Code: " NORTH ", Name: "Dup"})
	requireCode(t, err, pkgerrors.CodeConflict)

	deleted, err := f.warehouses.SoftDelete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	again, err := f.warehouses.SoftDelete(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, again)

	second := f.warehouse(t, "north")
	assert.NotEqual(t, first.ID, second.ID)

	_, err = f.warehouses.Restore(ctx, first.ID)
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = f.warehouses.SoftDelete(ctx, second.ID)
	require.NoError(t, err)
	restored, err := f.warehouses.Restore(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	_, err = f.warehouses.Restore(ctx, first.ID)
	requireCode(t, err, pkgerrors.CodeInUse)
}

func TestWarehouseDeleteRequiresNoActiveItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.warehouse(t, "busy")
	item := f.item(t, w.ID, "flour", 10, 2, "1.10")

	_, err := f.warehouses.SoftDelete(ctx, w.ID)
	requireCode(t, err, pkgerrors.CodeInUse)

	_, err = f.inventory.SoftDeleteItem(ctx, item.ID)
	require.NoError(t, err)

	deleted, err := f.warehouses.SoftDelete(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = f.warehouses.SoftDelete(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestWarehouseListPartitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.warehouse(t, "a")
	f.warehouse(t, "b")
	f.warehouse(t, "c")
	_, err := f.warehouses.SoftDelete(ctx, a.ID)
	require.NoError(t, err)

	active, err := f.warehouses.List(ctx, pagination.NewPageRequest(0, 10, "code", "desc"), false)
	require.NoError(t, err)
	require.Len(t, active.Items, 2)
	assert.Equal(t, "C", active.Items[0].Code)

	deleted, err := f.warehouses.List(ctx, pagination.NewPageRequest(0, 10, "code", "asc"), true)
	require.NoError(t, err)
	require.Len(t, deleted.Items, 1)
	assert.Equal(t, a.ID, deleted.Items[0].ID)

	_, err = f.warehouses.List(ctx, pagination.NewPageRequest(0, 10, "code", "sideways"), false)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestWarehouseStatistics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.warehouse(t, "stats")
	f.item(t, w.ID, "rice", 10, 4, "2.50")
	low := f.item(t, w.ID, "salt", 3, 5, "1.25")
	gone := f.item(t, w.ID, "sugar", 100, 0, "9.99")
	_, err := f.inventory.SoftDeleteItem(ctx, gone.ID)
	require.NoError(t, err)

	_, err = f.inventory.AdjustStock(ctx, low.ID, AdjustmentInput{Delta: 1, Reason: "restock"})
	require.NoError(t, err)

	stats, err := f.warehouses.Statistics(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ActiveItems)
	assert.Equal(t, int64(14), stats.TotalUnits)
	assert.True(t, stats.StockValue.Equal(decimal.RequireFromString("30.00")), stats.StockValue.String())
	assert.Equal(t, int64(1), stats.LowStockItems)
	assert.Equal(t, int64(1), stats.RecentAdjustments)
	assert.Equal(t, defaultStatisticsDays, stats.WindowDays)

	_, err = f.warehouses.Statistics(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}
