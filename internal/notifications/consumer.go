package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/mailer"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/idempotency"
)

const notificationConsumer = "notification-worker"

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type messageSource interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// ConsumerParams wires the notification worker.
type ConsumerParams struct {
	Repo         creator
	Users        userDirectory
	Mailer       mailer.Sender
	Subscription messageSource
	Idempotency  *idempotency.Manager
	Logger       *logger.Logger
}

// Consumer turns domain events into in-app notifications and, when mail is
// configured, an email to the recipient.
type Consumer struct {
	repo         creator
	users        userDirectory
	mailer       mailer.Sender
	subscription messageSource
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	sender := params.Mailer
	if sender == nil {
		sender = mailer.Noop{}
	}
	return &Consumer{
		repo:         params.Repo,
		users:        params.Users,
		mailer:       sender,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	notification, err := FromEvent(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to build notification", err)
		return processResult{ack: true}
	}
	if notification == nil {
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	logCtx = c.logg.WithField(logCtx, "user_id", notification.UserID.String())
	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "notification insert failed", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}
	c.logg.Info(logCtx, "notification created")

	c.sendEmail(ctx, logCtx, notification)
	return processResult{ack: true}
}

// sendEmail is best effort; the in-app notification already exists.
func (c *Consumer) sendEmail(ctx, logCtx context.Context, n *models.Notification) {
	if c.users == nil {
		return
	}
	if _, ok := c.mailer.(mailer.Noop); ok {
		return
	}
	user, err := c.users.FindByID(ctx, n.UserID)
	if err != nil || user == nil {
		c.logg.Warn(logCtx, "notification recipient lookup failed")
		return
	}
	link := ""
	if n.Link != nil {
		link = *n.Link
	}
	body, err := mailer.RenderNotification(mailer.NotificationEmail{Title: n.Title, Message: n.Message, Link: link})
	if err != nil {
		c.logg.Error(logCtx, "render notification email", err)
		return
	}
	if err := c.mailer.Send(ctx, []string{user.Email}, n.Title, body); err != nil {
		c.logg.Error(logCtx, "send notification email", err)
	}
}
