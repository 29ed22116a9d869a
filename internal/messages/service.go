package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

const (
	maxBodyLength = 5000
	previewLength = 140
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
}

// ListParams pages through an inbox or a conversation.
type ListParams struct {
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// Service sends and lists direct messages between users.
type Service interface {
	Send(ctx context.Context, actor auth.Actor, req SendRequest) (*MessageDTO, error)
	Inbox(ctx context.Context, actor auth.Actor, params ListParams) (*Page, error)
	Conversation(ctx context.Context, actor auth.Actor, otherID uuid.UUID, params ListParams) (*Page, error)
	MarkRead(ctx context.Context, actor auth.Actor, id uuid.UUID) error
}

type service struct {
	repo    Repository
	users   userDirectory
	tx      txRunner
	emitter outbox.Emitter
	now     func() time.Time
}

func NewService(repo Repository, users userDirectory, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("messages repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:    repo,
		users:   users,
		tx:      tx,
		emitter: emitter,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Send(ctx context.Context, actor auth.Actor, req SendRequest) (*MessageDTO, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "message body must be at most %d characters", maxBodyLength)
	}
	if req.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient_id is required")
	}
	if req.RecipientID == actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot message yourself")
	}

	recipient, err := s.users.FindByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recipient not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
	}
	if !recipient.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recipient not found")
	}
	if req.ProjectID != nil {
		ok, err := s.repo.ProjectExists(ctx, *req.ProjectID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
	}

	msg := &models.Message{
		SenderID:    actor.UserID,
		RecipientID: recipient.ID,
		ProjectID:   req.ProjectID,
		Body:        body,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMessageSent,
			AggregateType: enums.AggregateMessage,
			AggregateID:   msg.ID,
			Actor:         outbox.NewActorRef(actor.UserID, string(actor.Role)),
			Data: payloads.MessageSentEvent{
				MessageID:   msg.ID,
				SenderID:    msg.SenderID,
				RecipientID: msg.RecipientID,
				ProjectID:   msg.ProjectID,
				Preview:     truncate(body, previewLength),
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send message")
	}

	names, _ := s.users.FindByIDs(ctx, []uuid.UUID{msg.SenderID, msg.RecipientID})
	dto := fromModel(*msg, names)
	return &dto, nil
}

func (s *service) Inbox(ctx context.Context, actor auth.Actor, params ListParams) (*Page, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.Inbox(ctx, inboxQuery{
		RecipientID: actor.UserID,
		UnreadOnly:  params.UnreadOnly,
		Cursor:      cursor,
		Limit:       pagination.LimitWithBuffer(params.Limit),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inbox")
	}
	return s.toPage(ctx, rows, params.Limit)
}

func (s *service) Conversation(ctx context.Context, actor auth.Actor, otherID uuid.UUID, params ListParams) (*Page, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if otherID == uuid.Nil || otherID == actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid conversation partner")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.Conversation(ctx, actor.UserID, otherID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list conversation")
	}
	return s.toPage(ctx, rows, params.Limit)
}

// MarkRead is idempotent. Only the recipient may mark a message read.
func (s *service) MarkRead(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if !actor.Valid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	found, err := s.repo.MarkRead(ctx, actor.UserID, id, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark message read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
	}
	return nil
}

func (s *service) toPage(ctx context.Context, rows []models.Message, limit int) (*Page, error) {
	page := pagination.Trim(rows, limit, func(m models.Message) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	ids := make([]uuid.UUID, 0, len(page.Items)*2)
	seen := map[uuid.UUID]struct{}{}
	for _, m := range page.Items {
		for _, id := range []uuid.UUID{m.SenderID, m.RecipientID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	names, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participants")
	}
	items := make([]MessageDTO, 0, len(page.Items))
	for _, m := range page.Items {
		items = append(items, fromModel(m, names))
	}
	return &Page{Items: items, NextCursor: page.NextCursor}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
