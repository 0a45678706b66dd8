package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/outbox/registry"
)

type verdict int

const (
	delivered verdict = iota
	retryLater
	deadLetter
)

// outcome is what happened to one row and what the row must become.
type outcome struct {
	verdict verdict
	reason  enums.DLQReason
	err     error
	topic   string
}

// errBatchDeferred reports a batch in which every row was left for a retry.
var errBatchDeferred = errors.New("every claimed alert deferred")

// processBatch claims up to batchSize rows and settles each of them. It
// reports busy only when a row left the queue. A batch that only deferred
// rows returns errBatchDeferred, after its attempts are committed, so the
// loop backs off instead of re-claiming the same rows at once.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var (
		settled  int
		deferred int
		lastErr  error
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			out := s.dispatch(ctx, event)
			if err := s.settle(ctx, tx, event, out); err != nil {
				return err
			}
			if out.verdict == retryLater {
				deferred++
				lastErr = out.err
				continue
			}
			settled++
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if settled == 0 && deferred > 0 {
		return false, fmt.Errorf("%w (%d rows): %w", errBatchDeferred, deferred, lastErr)
	}
	return settled > 0, nil
}

func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) outcome {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcome{verdict: deadLetter, reason: enums.DLQReasonUnresolvable, err: err}
	}
	topic := resolved.Descriptor.Topic

	err = s.publishResolved(ctx, event, resolved)
	var permanent registry.NonRetryableError
	switch {
	case err == nil:
		return outcome{verdict: delivered, topic: topic}
	case errors.As(err, &permanent):
		return outcome{verdict: deadLetter, reason: enums.DLQReasonNonRetryable, err: err, topic: topic}
	case event.Exhausts(s.maxAttempts):
		return outcome{
			verdict: deadLetter,
			reason:  enums.DLQReasonMaxAttempts,
			err:     fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err),
			topic:   topic,
		}
	default:
		return outcome{verdict: retryLater, err: err, topic: topic}
	}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, out outcome) error {
	eventType := string(event.EventType)
	ctx = s.logg.WithFields(ctx, rowFields(event, out))

	switch out.verdict {
	case delivered:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Published(eventType)
		s.logg.Info(ctx, "alert_publisher.published")

	case retryLater:
		if err := s.repo.MarkFailedTx(tx, event.ID, out.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		s.metrics.Failed(eventType)
		s.logg.Warn(ctx, "alert_publisher.publish_failed")

	case deadLetter:
		entry := models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   out.reason,
			AttemptCount:  event.AttemptCount,
			FailedAt:      s.now().UTC(),
		}
		if out.err != nil {
			msg := out.err.Error()
			entry.ErrorMessage = &msg
		}
		if err := s.deadLetters.RecordTx(tx, entry); err != nil {
			return fmt.Errorf("record dead letter %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, out.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		s.metrics.Terminal(eventType, string(out.reason))
		s.logg.Warn(ctx, "alert_publisher.dead_lettered")
	}
	return nil
}

func rowFields(event models.OutboxEvent, out outcome) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if out.topic != "" {
		fields["topic"] = out.topic
	}
	if out.reason != "" {
		fields["dlq_reason"] = out.reason
	}
	if out.err != nil {
		fields["error_message"] = out.err.Error()
	}
	return fields
}

func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: event.Attributes(resolved.Envelope.EventID),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("topic %s returned no publish result", topic))
	}
	_, err := result.Get(ctx)
	return err
}

// sleepCtx waits d or until ctx ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
