package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateProject     OutboxAggregateType = "project"
	AggregateMilestone   OutboxAggregateType = "milestone"
	AggregateEscrow      OutboxAggregateType = "escrow_transaction"
	AggregateInvestment  OutboxAggregateType = "investment"
	AggregateReleaseRule OutboxAggregateType = "release_rule"
	AggregateMessage     OutboxAggregateType = "message"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateProject,
	AggregateMilestone,
	AggregateEscrow,
	AggregateInvestment,
	AggregateReleaseRule,
	AggregateMessage,
}

func (a OutboxAggregateType) IsValid() bool { return contains(validAggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", validAggregateTypes, value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventProjectCreated       OutboxEventType = "project_created"
	EventProjectReviewed      OutboxEventType = "project_reviewed"
	EventMilestoneSubmitted   OutboxEventType = "milestone_submitted"
	EventMilestoneApproved    OutboxEventType = "milestone_approved"
	EventMilestoneRejected    OutboxEventType = "milestone_rejected"
	EventFundsReleased        OutboxEventType = "funds_released"
	EventInvestmentCreated    OutboxEventType = "investment_created"
	EventReleaseRuleTriggered OutboxEventType = "release_rule_triggered"
	EventMessageSent          OutboxEventType = "message_sent"
)

var validOutboxEventTypes = []OutboxEventType{
	EventProjectCreated,
	EventProjectReviewed,
	EventMilestoneSubmitted,
	EventMilestoneApproved,
	EventMilestoneRejected,
	EventFundsReleased,
	EventInvestmentCreated,
	EventReleaseRuleTriggered,
	EventMessageSent,
}

func (e OutboxEventType) IsValid() bool { return contains(validOutboxEventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", validOutboxEventTypes, value)
}

// OutboxDLQErrorReason explains why an event landed in the dead letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
