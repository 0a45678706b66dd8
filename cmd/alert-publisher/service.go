package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/db/models"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/metrics"
	"github.com/srms-platform/srms-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	RecordTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DeadLetters      deadLetterStore
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

func (p ServiceParams) check() error {
	switch {
	case p.Config == nil:
		return errors.New("config is required")
	case p.Logger == nil:
		return errors.New("logger is required")
	case p.DB == nil:
		return errors.New("database client is required")
	case p.PubSub == nil:
		return errors.New("pubsub client is required")
	case p.Repository == nil:
		return errors.New("outbox repository is required")
	case p.Registry == nil:
		return errors.New("event registry is required")
	case p.DeadLetters == nil:
		return errors.New("dead letter store is required")
	}
	return nil
}

// Service moves inventory alerts from the outbox table to Pub/Sub. A batch
// is claimed and settled inside one transaction, so a crash mid-batch leaves
// every row for the next poll.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	repo        outboxRepository
	registry    registryResolver
	deadLetters deadLetterStore
	publishers  publisherFactory
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.check(); err != nil {
		return nil, err
	}
	publishers := params.PublisherFactory
	if publishers == nil {
		publishers = gcpPublishers(params.PubSub)
	}

	settings := params.Config.Outbox
	return &Service{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		repo:        params.Repository,
		registry:    params.Registry,
		deadLetters: params.DeadLetters,
		publishers:  publishers,
		metrics:     params.Metrics,
		batchSize:   orDefault(settings.BatchSize, fallbackBatchSize),
		maxAttempts: orDefault(settings.MaxAttempts, fallbackMaxAttempts),
		poll:        time.Duration(orDefault(settings.PollIntervalMS, int(fallbackPoll/time.Millisecond))) * time.Millisecond,
		now:         time.Now,
	}, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run checks both dependencies and then polls until ctx ends. An empty poll
// waits one interval; a failed batch waits on an exponential schedule.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "alert_publisher.database_unreachable", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		s.logg.Error(ctx, "alert_publisher.pubsub_unreachable", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	pace := newPacer(s.poll, maxBackoff)
	for {
		if ctx.Err() != nil {
			s.logg.Info(ctx, "alert_publisher.stopped")
			return ctx.Err()
		}

		busy, err := s.processBatch(ctx)
		switch {
		case errors.Is(err, errBatchDeferred):
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "alert_publisher.batch_deferred")
		case err != nil:
			s.logg.Error(ctx, "alert_publisher.batch_failed", err)
		}
		wait := pace.after(busy, err)
		if wait == 0 {
			continue
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}
