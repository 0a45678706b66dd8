package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/enums"
)

const defaultDeadLetterPage = 50

// DeadLetters stores alerts the publisher gave up on. Rows are kept for
// inspection and replay until the retention job prunes them.
type DeadLetters struct {
	db *gorm.DB
}

func NewDeadLetters(db *gorm.DB) *DeadLetters {
	return &DeadLetters{db: db}
}

// DeadLetterFilter narrows Query. Zero values mean no restriction, except
// Limit which falls back to 50.
type DeadLetterFilter struct {
	Reason enums.DLQReason
	Since  time.Time
	Limit  int
}

// RecordTx parks a failed event inside the publisher's batch transaction.
// Recording the same event twice keeps the first row.
func (d *DeadLetters) RecordTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !entry.ErrorReason.IsValid() {
		return errors.New("dead letter reason required")
	}
	if entry.ErrorMessage != nil {
		entry.ErrorMessage = truncated(*entry.ErrorMessage)
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// Get returns the dead letter of eventID, or nil when there is none.
func (d *DeadLetters) Get(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var row models.OutboxDLQ
	err := d.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Query lists dead letters newest first.
func (d *DeadLetters) Query(ctx context.Context, filter DeadLetterFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDeadLetterPage
	}
	q := d.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.Reason != "" {
		q = q.Where("error_reason = ?", filter.Reason)
	}
	if !filter.Since.IsZero() {
		q = q.Where("failed_at >= ?", filter.Since.UTC())
	}
	var rows []models.OutboxDLQ
	err := q.Order("failed_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// PruneBefore deletes dead letters that failed before cutoff.
func (d *DeadLetters) PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	res := tx.WithContext(ctx).Where("failed_at < ?", cutoff.UTC()).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
