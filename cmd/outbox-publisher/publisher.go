package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/config"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
	"github.com/innocapforge/forge-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxIdleBackoff        = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	BuryTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, at time.Time) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type PublisherParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	PubSub     topicSource
	Events     eventStore
	DeadLetter deadLetterStore
	Registry   eventResolver
	Metrics    *metrics.OutboxMetrics
	// Topics overrides the Pub/Sub publisher lookup; used by tests.
	Topics func(topic string) topicPublisher
}

// Publisher drains outbox_events onto Pub/Sub. Each batch runs in one
// transaction so rows locked with SKIP LOCKED are marked before commit.
type Publisher struct {
	logg         *logger.Logger
	db           txRunner
	pubsub       topicSource
	events       eventStore
	deadLetter   deadLetterStore
	registry     eventResolver
	metrics      *metrics.OutboxMetrics
	topics       func(topic string) topicPublisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	jitter       *rand.Rand
	now          func() time.Time
}

func NewPublisher(params PublisherParams) (*Publisher, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Events == nil:
		return nil, errors.New("outbox repository is required")
	case params.DeadLetter == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	p := &Publisher{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		events:       params.Events,
		deadLetter:   params.DeadLetter,
		registry:     params.Registry,
		metrics:      params.Metrics,
		topics:       params.Topics,
		batchSize:    params.Outbox.BatchSize,
		maxAttempts:  params.Outbox.MaxAttempts,
		pollInterval: time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
		jitter:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          func() time.Time { return time.Now().UTC() },
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if p.pollInterval <= 0 {
		p.pollInterval = defaultPollInterval
	}
	if p.topics == nil {
		p.topics = func(topic string) topicPublisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			return gcpTopic{pub}
		}
	}
	return p, nil
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// another poll; batch errors back off exponentially up to maxIdleBackoff.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := p.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	wait := p.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		handled, err := p.drain(ctx)
		switch {
		case err != nil:
			p.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case handled > 0:
			wait = p.pollInterval
			continue
		default:
			wait = p.pollInterval
		}

		if err := p.sleep(ctx, wait+time.Duration(p.jitter.Int63n(int64(jitterWindow)))); err != nil {
			return err
		}
	}
}

// drain handles one batch and reports how many rows it touched.
func (p *Publisher) drain(ctx context.Context) (int, error) {
	handled := 0
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := p.events.FetchUnpublishedForPublish(tx, p.batchSize, p.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range batch {
			if err := p.handle(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

// handle publishes one row and records the outcome. A returned error aborts
// the batch; publish failures are recorded on the row instead.
func (p *Publisher) handle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	logCtx := p.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	resolved, err := p.registry.Resolve(event)
	if err != nil {
		return p.bury(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	logCtx = p.logg.WithFields(logCtx, map[string]any{
		"event_id": resolved.Envelope.EventID,
		"topic":    resolved.Descriptor.Topic,
	})

	pubErr := p.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := p.events.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		p.metrics.Published(string(event.EventType))
		p.logg.Info(logCtx, "outbox.published")
		return nil
	}

	var permanent registry.NonRetryableError
	if errors.As(pubErr, &permanent) {
		return p.bury(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr)
	}
	if event.AttemptCount+1 >= p.maxAttempts {
		return p.bury(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", pubErr))
	}

	p.logg.Warn(p.logg.WithField(logCtx, "error", pubErr.Error()), "outbox.publish_retry")
	if err := p.events.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	p.metrics.Retried(string(event.EventType))
	return nil
}

// bury copies the row into outbox_dlq and stops further attempts.
func (p *Publisher) bury(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
		"error_reason": string(reason),
		"error":        cause.Error(),
	}), "outbox.dead_lettered")

	if err := p.deadLetter.BuryTx(tx, event, reason, cause, p.now()); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := p.events.MarkTerminalTx(tx, event.ID, cause, p.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	p.metrics.DeadLettered(string(event.EventType))
	return nil
}

func (p *Publisher) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := p.topics(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := pub.Publish(ctx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := result.Get(ctx)
	return err
}

func (p *Publisher) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type gcpTopic struct {
	pub *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.pub.Publish(ctx, msg)
}
