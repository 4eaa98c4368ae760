package rules

// validPairings lists the field/operator combinations the matcher implements.
// Any other pairing could be stored but would never match.
var validPairings = map[ConditionField]ConditionOperator{
	FieldSubject: OperatorContains,
	FieldFrom:    OperatorEquals,
}

// ValidateNewRule trims the text fields of in and checks every field.
// Returns a *ValidationError listing all problems, nil if the rule is valid.
func ValidateNewRule(in *NewRule) error {
	verr := &ValidationError{}

	in.Name = trimSpace(in.Name)
	in.Condition.Value = trimSpace(in.Condition.Value)
	in.Action.Value = trimSpace(in.Action.Value)

	if in.Name == "" {
		verr.Add("name", "name is required")
	}

	fieldOK := isValidField(in.Condition.Field)
	if !fieldOK {
		verr.Add("condition.field", "must be one of: subject, from")
	}

	operatorOK := isValidOperator(in.Condition.Operator)
	if !operatorOK {
		verr.Add("condition.operator", "must be one of: contains, equals")
	}

	// Only report the pairing once both halves are individually valid
	if fieldOK && operatorOK && validPairings[in.Condition.Field] != in.Condition.Operator {
		verr.Add("condition.operator", "field "+string(in.Condition.Field)+" requires operator "+string(validPairings[in.Condition.Field]))
	}

	if in.Condition.Value == "" {
		verr.Add("condition.value", "condition.value is required")
	}

	if !isValidActionType(in.Action.Type) {
		verr.Add("action.type", "must be one of: addTag, autoReply")
	}

	if in.Action.Value == "" {
		verr.Add("action.value", "action.value is required")
	}

	return verr.OrNil()
}

// ValidateEmail checks the simulation input. Body is optional.
func ValidateEmail(email Email) error {
	verr := &ValidationError{}

	if email.From == "" {
		verr.Add("from", "from is required")
	}
	if email.Subject == "" {
		verr.Add("subject", "subject is required")
	}

	return verr.OrNil()
}

func isValidField(f ConditionField) bool {
	switch f {
	case FieldSubject, FieldFrom:
		return true
	}
	return false
}

func isValidOperator(op ConditionOperator) bool {
	switch op {
	case OperatorContains, OperatorEquals:
		return true
	}
	return false
}

func isValidActionType(t ActionType) bool {
	switch t {
	case ActionAddTag, ActionAutoReply:
		return true
	}
	return false
}
