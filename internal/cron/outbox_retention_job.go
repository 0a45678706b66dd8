package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/pkg/logger"
)

const (
	defaultOutboxDays  = 30
	defaultMaxAttempts = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// RetentionJobParams configure outbox housekeeping. MaxAttempts must match
// the publisher so only rows it abandoned are removed. DeadLetters is
// optional; with DeadLetterDays <= 0 dead letters are kept forever.
type RetentionJobParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Outbox         outboxPruner
	DeadLetters    deadLetterPruner
	OutboxDays     int
	DeadLetterDays int
	MaxAttempts    int
}

type retentionJob struct {
	logg           *logger.Logger
	db             txRunner
	outbox         outboxPruner
	deadLetters    deadLetterPruner
	outboxDays     int
	deadLetterDays int
	maxAttempts    int
	now            func() time.Time
}

func NewOutboxRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &retentionJob{
		logg:           params.Logger,
		db:             params.DB,
		outbox:         params.Outbox,
		deadLetters:    params.DeadLetters,
		outboxDays:     params.OutboxDays,
		deadLetterDays: params.DeadLetterDays,
		maxAttempts:    params.MaxAttempts,
		now:            time.Now,
	}
	if job.outboxDays <= 0 {
		job.outboxDays = defaultOutboxDays
	}
	if job.maxAttempts <= 0 {
		job.maxAttempts = defaultMaxAttempts
	}
	return job, nil
}

func (j *retentionJob) Name() string { return "outbox-retention" }

// Run prunes delivered and abandoned alerts older than the outbox window and,
// when configured, dead letters older than theirs. Both deletes commit
// together.
func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	outboxCutoff := now.AddDate(0, 0, -j.outboxDays)
	pruneLetters := j.deadLetters != nil && j.deadLetterDays > 0
	letterCutoff := now.AddDate(0, 0, -j.deadLetterDays)

	var events, letters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.outbox.DeletePublishedBefore(ctx, tx, outboxCutoff, j.maxAttempts); err != nil {
			return fmt.Errorf("prune outbox: %w", err)
		}
		if !pruneLetters {
			return nil
		}
		if letters, err = j.deadLetters.PruneBefore(ctx, tx, letterCutoff); err != nil {
			return fmt.Errorf("prune dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fields := map[string]any{
		"outbox_cutoff":  outboxCutoff,
		"events_deleted": events,
	}
	if pruneLetters {
		fields["dead_letter_cutoff"] = letterCutoff
		fields["dead_letters_deleted"] = letters
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox.retention_complete")
	return nil
}
