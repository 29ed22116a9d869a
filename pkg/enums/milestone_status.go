package enums

// MilestoneStatus is the single lifecycle state of a milestone.
//
//	pending -> in_progress -> awaiting_verification -> approved
//	                ^                  |
//	                +--- rejected <----+
type MilestoneStatus string

const (
	MilestoneStatusPending              MilestoneStatus = "pending"
	MilestoneStatusInProgress           MilestoneStatus = "in_progress"
	MilestoneStatusAwaitingVerification MilestoneStatus = "awaiting_verification"
	MilestoneStatusApproved             MilestoneStatus = "approved"
	MilestoneStatusRejected             MilestoneStatus = "rejected"
)

var validMilestoneStatuses = []MilestoneStatus{
	MilestoneStatusPending,
	MilestoneStatusInProgress,
	MilestoneStatusAwaitingVerification,
	MilestoneStatusApproved,
	MilestoneStatusRejected,
}

func (s MilestoneStatus) String() string { return string(s) }

func (s MilestoneStatus) IsValid() bool { return contains(validMilestoneStatuses, s) }

// Editable reports whether the owner may change the milestone's descriptive fields.
func (s MilestoneStatus) Editable() bool {
	return s == MilestoneStatusPending || s == MilestoneStatusInProgress || s == MilestoneStatusRejected
}

func ParseMilestoneStatus(value string) (MilestoneStatus, error) {
	return parse("milestone status", validMilestoneStatuses, value)
}

// MilestoneStatuses returns every status in lifecycle order.
func MilestoneStatuses() []MilestoneStatus {
	out := make([]MilestoneStatus, len(validMilestoneStatuses))
	copy(out, validMilestoneStatuses)
	return out
}
