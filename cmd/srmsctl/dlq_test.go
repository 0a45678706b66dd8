package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/outbox"
)

type fakeLetters struct {
	rows    []models.OutboxDLQ
	filters []outbox.DeadLetterFilter
	closed  int
}

func (f *fakeLetters) open(context.Context) (deadLetterReader, func(), error) {
	return f, func() { f.closed++ }, nil
}

func (f *fakeLetters) Get(_ context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	for i := range f.rows {
		if f.rows[i].EventID == eventID {
			return &f.rows[i], nil
		}
	}
	return nil, nil
}

func (f *fakeLetters) Query(_ context.Context, filter outbox.DeadLetterFilter) ([]models.OutboxDLQ, error) {
	f.filters = append(f.filters, filter)
	return f.rows, nil
}

func letterFixture() *fakeLetters {
	msg := "topic deleted"
	return &fakeLetters{rows: []models.OutboxDLQ{{
		EventID:       uuid.MustParse("6f1c3a52-2d0b-4f6e-9a7c-1b2d3e4f5a6b"),
		EventType:     enums.EventInventoryThresholdCrossed,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		ErrorReason:   enums.DLQReasonNonRetryable,
		ErrorMessage:  &msg,
		AttemptCount:  3,
		FailedAt:      time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC),
	}}}
}

func TestDLQListPrintsTable(t *testing.T) {
	f := letterFixture()
	out, err := runWith(t, deps{letters: f.open}, "dlq", "list", "--reason", "non_retryable", "-n", "5")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "FAILED AT"))
	assert.Contains(t, lines[1], "2026-06-01T08:30:00Z")
	assert.Contains(t, lines[1], "6f1c3a52-2d0b-4f6e-9a7c-1b2d3e4f5a6b")
	assert.Contains(t, lines[1], "non_retryable")

	require.Len(t, f.filters, 1)
	assert.Equal(t, enums.DLQReasonNonRetryable, f.filters[0].Reason)
	assert.Equal(t, 5, f.filters[0].Limit)
	assert.True(t, f.filters[0].Since.IsZero())
	assert.Equal(t, 1, f.closed)
}

func TestDLQListSinceSetsLowerBound(t *testing.T) {
	f := letterFixture()
	before := time.Now()
	_, err := runWith(t, deps{letters: f.open}, "dlq", "list", "--since", "2h")
	require.NoError(t, err)

	require.Len(t, f.filters, 1)
	assert.WithinDuration(t, before.Add(-2*time.Hour), f.filters[0].Since, time.Minute)
}

func TestDLQListRejectsUnknownReason(t *testing.T) {
	f := letterFixture()
	_, err := runWith(t, deps{letters: f.open}, "dlq", "list", "--reason", "bored")
	require.Error(t, err)
	assert.Empty(t, f.filters)
	assert.Zero(t, f.closed, "no connection is opened for bad input")
}

func TestDLQShow(t *testing.T) {
	f := letterFixture()
	out, err := runWith(t, deps{letters: f.open}, "dlq", "show", "6f1c3a52-2d0b-4f6e-9a7c-1b2d3e4f5a6b")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "non_retryable", got["reason"])
	assert.Equal(t, "topic deleted", got["error"])
	assert.Equal(t, map[string]any{"version": float64(1)}, got["payload"])

	_, err = runWith(t, deps{letters: f.open}, "dlq", "show", uuid.NewString())
	assert.ErrorContains(t, err, "no dead letter")

	_, err = runWith(t, deps{letters: f.open}, "dlq", "show", "not-a-uuid")
	assert.ErrorContains(t, err, "event id")
}
