package rules

import "time"

// ConditionField names the email field a condition inspects
type ConditionField string

const (
	FieldSubject ConditionField = "subject"
	FieldFrom    ConditionField = "from"
)

// ConditionOperator names how a condition compares its value
type ConditionOperator string

const (
	OperatorContains ConditionOperator = "contains"
	OperatorEquals   ConditionOperator = "equals"
)

// ActionType names the outcome recorded for a matching rule
type ActionType string

const (
	ActionAddTag    ActionType = "addTag"
	ActionAutoReply ActionType = "autoReply"
)

// Condition is a predicate over one field of an email
type Condition struct {
	Field    ConditionField    `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    string            `json:"value"`
}

// Action describes what would happen to a matching email.
// Actions are recorded only; nothing executes them.
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
}

// Rule is a stored condition/action pair with an enabled flag
type Rule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// clone returns a copy that shares no mutable state with r
func (r *Rule) clone() *Rule {
	c := *r
	return &c
}

// NewRule is the input for creating a rule
type NewRule struct {
	Name      string    `json:"name"`
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`
}

// Email is the candidate message a simulation evaluates.
// Body is accepted but never inspected by matching.
type Email struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

// SimulationResult holds every enabled rule that matched, in creation
// order, with Actions parallel to Rules
type SimulationResult struct {
	Matched bool     `json:"matched"`
	Rules   []*Rule  `json:"rules"`
	Actions []Action `json:"actions"`
}

// First returns the earliest matching rule and its action, or nils when
// nothing matched
func (r *SimulationResult) First() (*Rule, *Action) {
	if r == nil || len(r.Rules) == 0 {
		return nil, nil
	}
	action := r.Actions[0]
	return r.Rules[0], &action
}
