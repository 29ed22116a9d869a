package enums

// ProjectStatus maps to the project_status enum in Postgres.
type ProjectStatus string

const (
	ProjectStatusPendingApproval ProjectStatus = "pending_approval"
	ProjectStatusActive          ProjectStatus = "active"
	ProjectStatusRejected        ProjectStatus = "rejected"
	ProjectStatusCompleted       ProjectStatus = "completed"
)

var validProjectStatuses = []ProjectStatus{
	ProjectStatusPendingApproval,
	ProjectStatusActive,
	ProjectStatusRejected,
	ProjectStatusCompleted,
}

func (s ProjectStatus) String() string { return string(s) }

func (s ProjectStatus) IsValid() bool { return contains(validProjectStatuses, s) }

// Editable reports whether owners may still change the project plan.
func (s ProjectStatus) Editable() bool {
	return s == ProjectStatusPendingApproval || s == ProjectStatusActive
}

func ParseProjectStatus(value string) (ProjectStatus, error) {
	return parse("project status", validProjectStatuses, value)
}

// ReviewDecision is the admin verdict on a project or milestone.
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "approve"
	ReviewDecisionReject  ReviewDecision = "reject"
)

var validReviewDecisions = []ReviewDecision{ReviewDecisionApprove, ReviewDecisionReject}

func (d ReviewDecision) IsValid() bool { return contains(validReviewDecisions, d) }

func ParseReviewDecision(value string) (ReviewDecision, error) {
	return parse("decision", validReviewDecisions, value)
}
