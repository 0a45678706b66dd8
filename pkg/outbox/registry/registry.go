// Package registry maps outbox event types to their Pub/Sub topic and
// payload schema, and decodes stored rows back into typed payloads.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/outbox"
	"github.com/srms-platform/srms-backend/pkg/outbox/payloads"
)

// supportedVersion is the only envelope version this build can decode.
const supportedVersion = 1

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	byType   map[enums.OutboxEventType]EventDescriptor
	validate *validator.Validate
}

// NonRetryableError marks a failure that another attempt cannot fix.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// NewEventRegistry routes every inventory alert to the configured alerts
// topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.AlertsTopic)
	if topic == "" {
		return nil, errors.New("alerts topic is required")
	}
	descriptors := []EventDescriptor{
		{
			EventType:      enums.EventInventoryThresholdCrossed,
			AggregateType:  enums.AggregateInventoryItem,
			Topic:          topic,
			PayloadFactory: func() any { return new(payloads.InventoryThresholdCrossedEvent) },
		},
		{
			EventType:      enums.EventInventoryLowStockDigest,
			AggregateType:  enums.AggregateWarehouse,
			Topic:          topic,
			PayloadFactory: func() any { return new(payloads.LowStockDigestEvent) },
		},
	}
	r := &EventRegistry{
		byType:   make(map[enums.OutboxEventType]EventDescriptor, len(descriptors)),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, d := range descriptors {
		r.byType[d.EventType] = d
	}
	return r, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError since a malformed row stays
// malformed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("event %s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("event %s has no aggregate id", event.EventType)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if env.Version != supportedVersion {
		return nil, permanent("envelope version %d not supported", env.Version)
	}
	if body := bytes.TrimSpace(env.Data); len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, permanent("event %s has no payload", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	if err := r.validate.Struct(payload); err != nil {
		return nil, permanent("invalid %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
