package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/internal/warehouses"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/outbox"
	"github.com/srms-platform/srms-backend/pkg/outbox/payloads"
)

const defaultDigestWindow = 24 * time.Hour

type lowStockReader interface {
	LowStockWarehouses(ctx context.Context) ([]uuid.UUID, error)
	ActiveStock(ctx context.Context, warehouseID uuid.UUID) ([]warehouses.StockLine, error)
}

type warehouseLookup interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
}

type digestEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent, since time.Time) (bool, error)
}

// LowStockDigestJobParams configure the low-stock digest. Window is how long
// a digest for one warehouse suppresses the next.
type LowStockDigestJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Stock      lowStockReader
	Warehouses warehouseLookup
	Outbox     digestEmitter
	Window     time.Duration
}

func NewLowStockDigestJob(params LowStockDigestJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Stock == nil || params.Warehouses == nil {
		return nil, fmt.Errorf("inventory repositories required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultDigestWindow
	}
	return &lowStockDigestJob{
		logg:       params.Logger,
		db:         params.DB,
		stock:      params.Stock,
		warehouses: params.Warehouses,
		outbox:     params.Outbox,
		window:     window,
		now:        time.Now,
	}, nil
}

type lowStockDigestJob struct {
	logg       *logger.Logger
	db         txRunner
	stock      lowStockReader
	warehouses warehouseLookup
	outbox     digestEmitter
	window     time.Duration
	now        func() time.Time
}

func (j *lowStockDigestJob) Name() string { return "low-stock-digest" }

// Run queues one digest per warehouse that has items below threshold, at
// most once per window. A failing warehouse does not stop the others.
func (j *lowStockDigestJob) Run(ctx context.Context) error {
	ids, err := j.stock.LowStockWarehouses(ctx)
	if err != nil {
		return fmt.Errorf("low stock warehouses: %w", err)
	}

	now := j.now().UTC()
	var (
		errs    error
		emitted int
	)
	for _, id := range ids {
		queued, err := j.digest(ctx, id, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("warehouse %s: %w", id, err))
			continue
		}
		if queued {
			emitted++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"warehouses": len(ids),
		"emitted":    emitted,
	})
	j.logg.Info(logCtx, "inventory.digest_complete")
	return errs
}

func (j *lowStockDigestJob) digest(ctx context.Context, warehouseID uuid.UUID, now time.Time) (bool, error) {
	warehouse, err := j.warehouses.FindActiveByID(ctx, warehouseID)
	if err != nil {
		return false, err
	}
	if warehouse == nil {
		return false, nil
	}
	lines, err := j.stock.ActiveStock(ctx, warehouseID)
	if err != nil {
		return false, err
	}

	event := payloads.LowStockDigestEvent{
		WarehouseID:   warehouse.ID,
		WarehouseCode: warehouse.Code,
		GeneratedAt:   now,
	}
	for _, line := range lines {
		if line.Quantity >= line.MinThreshold {
			continue
		}
		event.Items = append(event.Items, payloads.LowStockLine{
			ItemID:       line.ID,
			SKU:          line.SKU,
			Name:         line.Name,
			Quantity:     line.Quantity,
			MinThreshold: line.MinThreshold,
		})
	}
	if len(event.Items) == 0 {
		return false, nil
	}

	var queued bool
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		queued, err = j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryLowStockDigest,
			AggregateType: enums.AggregateWarehouse,
			AggregateID:   warehouse.ID,
			Data:          event,
			OccurredAt:    now,
		}, now.Add(-j.window))
		return err
	})
	return queued, err
}
