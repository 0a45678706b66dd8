package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/pkg/enums"
)

// OutboxEvent is an inventory alert waiting for delivery. The row commits
// with the stock change that raised it; alert-publisher drains it.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Exhausts reports whether one more failed delivery uses up maxAttempts.
func (e OutboxEvent) Exhausts(maxAttempts int) bool {
	return e.AttemptCount+1 >= maxAttempts
}

// Attributes are the Pub/Sub message attributes subscribers filter on.
func (e OutboxEvent) Attributes(eventID string) map[string]string {
	return map[string]string{
		"event_id":       eventID,
		"event_type":     string(e.EventType),
		"aggregate_type": string(e.AggregateType),
		"aggregate_id":   e.AggregateID.String(),
		"created_at":     e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
