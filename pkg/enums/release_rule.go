package enums

// RuleConditionType tags a release rule condition.
type RuleConditionType string

const (
	RuleConditionMilestoneCompleted RuleConditionType = "milestone_completed"
	RuleConditionVerificationCount  RuleConditionType = "verification_count"
	RuleConditionTimePassed         RuleConditionType = "time_passed"
	RuleConditionProjectFunding     RuleConditionType = "project_funding"
)

var validRuleConditionTypes = []RuleConditionType{
	RuleConditionMilestoneCompleted,
	RuleConditionVerificationCount,
	RuleConditionTimePassed,
	RuleConditionProjectFunding,
}

func (t RuleConditionType) IsValid() bool { return contains(validRuleConditionTypes, t) }

func ParseRuleConditionType(value string) (RuleConditionType, error) {
	return parse("condition type", validRuleConditionTypes, value)
}

// RuleActionType tags a release rule action.
type RuleActionType string

const (
	RuleActionReleaseFunds RuleActionType = "release_funds"
	RuleActionNotify       RuleActionType = "notify"
	RuleActionUpdateStatus RuleActionType = "update_status"
)

var validRuleActionTypes = []RuleActionType{RuleActionReleaseFunds, RuleActionNotify, RuleActionUpdateStatus}

func (t RuleActionType) IsValid() bool { return contains(validRuleActionTypes, t) }

func ParseRuleActionType(value string) (RuleActionType, error) {
	return parse("action type", validRuleActionTypes, value)
}
