package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/db/models"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
	"github.com/angelmondragon/sitestock-backend/pkg/metrics"
	"github.com/angelmondragon/sitestock-backend/pkg/outbox/registry"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	backoffCap          = 10 * time.Second
	backoffJitter       = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(topic string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            txRunner
	PubSub        pubSubClient
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       *metrics.OutboxMetrics
	// PublisherFactory overrides topic lookup on PubSub. A nil publisher
	// dead-letters the row.
	PublisherFactory func(topic string) publisher
}

// Service relays committed outbox rows to Pub/Sub. Each row ends a batch
// published, scheduled for retry, or dead-lettered.
type Service struct {
	logg             *logger.Logger
	db               txRunner
	pubsub           pubSubClient
	rows             outboxRepository
	resolver         registryResolver
	dlq              dlqRepository
	metrics          *metrics.OutboxMetrics
	publisherFactory func(topic string) publisher

	batch       int
	maxAttempts int
	poll        time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	required := []struct {
		missing bool
		what    string
	}{
		{p.Config == nil, "config"},
		{p.Logger == nil, "logger"},
		{p.DB == nil, "database client"},
		{p.PubSub == nil, "pubsub client"},
		{p.Repository == nil, "outbox repository"},
		{p.Registry == nil, "event registry"},
		{p.DLQRepository == nil, "dlq repository"},
	}
	for _, r := range required {
		if r.missing {
			return nil, fmt.Errorf("%s is required", r.what)
		}
	}

	factory := p.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			if pub := p.PubSub.Publisher(topic); pub != nil {
				return gcpPublisher{pub}
			}
			return nil
		}
	}

	cfg := p.Config.Outbox
	poll := fallbackPoll
	if cfg.PollIntervalMS > 0 {
		poll = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return &Service{
		logg:             p.Logger,
		db:               p.DB,
		pubsub:           p.PubSub,
		rows:             p.Repository,
		resolver:         p.Registry,
		dlq:              p.DLQRepository,
		metrics:          p.Metrics,
		publisherFactory: factory,
		batch:            atLeastOne(cfg.BatchSize, fallbackBatch),
		maxAttempts:      atLeastOne(cfg.MaxAttempts, fallbackMaxAttempts),
		poll:             poll,
	}, nil
}

func atLeastOne(v, fallback int) int {
	if v < 1 {
		return fallback
	}
	return v
}

// Run drains batches until ctx ends. Consecutive batch errors back off
// exponentially; an empty batch waits one poll interval.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	backoff := s.backoff()
	for {
		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case ctx.Err() != nil:
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait, _ = backoff.Next()
		case processed:
			backoff = s.backoff()
			continue
		default:
			backoff = s.backoff()
			wait = s.poll
		}
		if err := pause(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) backoff() retry.Backoff {
	b := retry.NewExponential(2 * s.poll)
	return retry.WithJitter(backoffJitter, retry.WithCappedDuration(backoffCap, b))
}

// processBatch locks a batch and settles every row in the same transaction.
// Only repository failures abort it.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var seen int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.rows.FetchUnpublishedForPublish(tx, s.batch, s.maxAttempts)
		if err != nil {
			return err
		}
		seen = len(rows)
		for _, row := range rows {
			if err := s.settle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return seen > 0, err
}

type outcome struct {
	result string
	reason enums.OutboxDLQErrorReason
	cause  error
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	resolved, err := s.resolver.Resolve(row)
	o := s.classify(ctx, row, resolved, err)
	ctx = s.logg.WithFields(ctx, rowFields(row, resolved))

	switch o.result {
	case metrics.PublishResultPublished:
		if err := s.rows.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		s.logg.Info(ctx, "outbox event published")
	case metrics.PublishResultRetry:
		s.logg.Warn(s.logg.WithField(ctx, "error", o.cause.Error()), "outbox publish failed, will retry")
		if err := s.rows.MarkFailedTx(tx, row.ID, o.cause); err != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, err)
		}
	case metrics.PublishResultDeadLettered:
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"error":        o.cause.Error(),
			"error_reason": o.reason,
		}), "outbox event dead-lettered")
		if err := s.deadLetter(tx, row, o); err != nil {
			return err
		}
	}
	s.metrics.Inc(string(row.EventType), o.result)
	return nil
}

// classify publishes when the row resolved and maps the result to an outcome.
func (s *Service) classify(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent, resolveErr error) outcome {
	if resolveErr != nil {
		return outcome{metrics.PublishResultDeadLettered, enums.OutboxDLQReasonNonRetryable, resolveErr}
	}
	err := s.publish(ctx, row, resolved)
	var permanent registry.NonRetryableError
	switch {
	case err == nil:
		return outcome{result: metrics.PublishResultPublished}
	case errors.As(err, &permanent):
		return outcome{metrics.PublishResultDeadLettered, enums.OutboxDLQReasonNonRetryable, err}
	case row.AttemptCount+1 >= s.maxAttempts:
		return outcome{metrics.PublishResultDeadLettered, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)}
	}
	return outcome{result: metrics.PublishResultRetry, cause: err}
}

func (s *Service) deadLetter(tx *gorm.DB, row models.OutboxEvent, o outcome) error {
	msg := o.cause.Error()
	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   o.reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := s.rows.MarkTerminalTx(tx, row.ID, o.cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

// publish waits for the server ack. Consumers route on event_type and dedupe
// on event_id.
func (s *Service) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	res := pub.Publish(ctx, &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if res == nil {
		return registry.NewNonRetryableError(fmt.Errorf("topic %s returned no publish result", topic))
	}
	_, err := res.Get(ctx)
	return err
}

func rowFields(row models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	f := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if resolved != nil {
		f["event_id"] = resolved.Envelope.EventID
		f["topic"] = resolved.Descriptor.Topic
	}
	if row.LastError != nil {
		f["last_error"] = *row.LastError
	}
	return f
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type gcpPublisher struct {
	topic *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.topic.Publish(ctx, msg)
}
