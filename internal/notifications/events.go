package notifications

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
)

const previewLength = 80

// FromEvent turns a domain event payload into the notification its recipient
// should see. Event types without a recipient return nil. Release rules write
// their own notify notifications, so release_rule_triggered is skipped here.
func FromEvent(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventProjectReviewed:
		var p payloads.ProjectReviewedEvent
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		title := fmt.Sprintf("Project %q approved", p.Title)
		message := "Your project is now visible to investors."
		if p.Status == enums.ProjectStatusRejected {
			title = fmt.Sprintf("Project %q rejected", p.Title)
			message = "Reason: " + p.Reason
		}
		return build(p.OwnerID, enums.NotificationTypeProject, title, message, projectLink(p.ProjectID))

	case enums.EventMilestoneSubmitted:
		var p payloads.MilestoneSubmittedEvent
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		return build(p.OwnerID, enums.NotificationTypeMilestone,
			fmt.Sprintf("Milestone %q submitted", p.Title),
			"Your completion evidence is awaiting admin verification.",
			projectLink(p.ProjectID))

	case enums.EventMilestoneApproved, enums.EventMilestoneRejected:
		var p payloads.MilestoneDecidedEvent
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		if p.Status == enums.MilestoneStatusRejected {
			return build(p.OwnerID, enums.NotificationTypeMilestone,
				fmt.Sprintf("Milestone %q needs changes", p.Title),
				"Reason: "+p.Reason,
				projectLink(p.ProjectID))
		}
		return build(p.OwnerID, enums.NotificationTypeMilestone,
			fmt.Sprintf("Milestone %q approved", p.Title),
			"The milestone passed verification.",
			projectLink(p.ProjectID))

	case enums.EventFundsReleased:
		var p payloads.FundsReleasedEvent
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		return build(p.OwnerID, enums.NotificationTypeFunds,
			"Funds released",
			fmt.Sprintf("$%s was released to your wallet.", p.Amount.StringFixed(2)),
			"/wallet")

	case enums.EventInvestmentCreated:
		var p payloads.InvestmentCreatedEvent
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		return build(p.OwnerID, enums.NotificationTypeFunds,
			"New investment",
			fmt.Sprintf("An investor pledged $%s to your project.", p.Amount.StringFixed(2)),
			projectLink(p.ProjectID))

	case enums.EventMessageSent:
		var p payloads.MessageSentEvent
		if err := decode(data, &p); err != nil {
			return nil, err
		}
		return build(p.RecipientID, enums.NotificationTypeMessage,
			"New message", preview(p.Preview), "/messages/"+p.SenderID.String())

	default:
		return nil, nil
	}
}

func decode(data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	return nil
}

func build(userID uuid.UUID, kind enums.NotificationType, title, message, link string) (*models.Notification, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("recipient missing")
	}
	n := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: strings.TrimSpace(message),
	}
	if link != "" {
		n.Link = &link
	}
	return n, nil
}

func projectLink(id uuid.UUID) string {
	return "/projects/" + id.String()
}

func preview(body string) string {
	r := []rune(strings.TrimSpace(body))
	if len(r) <= previewLength {
		return string(r)
	}
	return string(r[:previewLength]) + "…"
}
