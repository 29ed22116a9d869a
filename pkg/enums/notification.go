package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeProject   NotificationType = "project"
	NotificationTypeMilestone NotificationType = "milestone"
	NotificationTypeFunds     NotificationType = "funds"
	NotificationTypeMessage   NotificationType = "message"
	NotificationTypeRule      NotificationType = "rule"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeProject,
	NotificationTypeMilestone,
	NotificationTypeFunds,
	NotificationTypeMessage,
	NotificationTypeRule,
}

func (n NotificationType) IsValid() bool { return contains(validNotificationTypes, n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return parse("notification type", validNotificationTypes, value)
}
