package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
	AggregateWarehouse     OutboxAggregateType = "warehouse"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateInventoryItem,
	AggregateWarehouse,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventInventoryThresholdCrossed OutboxEventType = "inventory_threshold_crossed"
	EventInventoryLowStockDigest   OutboxEventType = "inventory_low_stock_digest"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInventoryThresholdCrossed,
	EventInventoryLowStockDigest,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// DLQReason records why an event left the outbox without being published.
type DLQReason string

const (
	DLQReasonMaxAttempts  DLQReason = "max_attempts"
	DLQReasonNonRetryable DLQReason = "non_retryable"
	// DLQReasonUnresolvable marks rows whose type or payload could not be
	// mapped to a topic at all.
	DLQReasonUnresolvable DLQReason = "unresolvable"
)

func (r DLQReason) IsValid() bool {
	switch r {
	case DLQReasonMaxAttempts, DLQReasonNonRetryable, DLQReasonUnresolvable:
		return true
	}
	return false
}
