package rules

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/google/cel-go/cel"
)

// pairing identifies one field/operator combination
type pairing struct {
	field    ConditionField
	operator ConditionOperator
}

// pairingExpressions maps each supported pairing to the CEL expression that
// decides it. Inputs are normalized before evaluation.
var pairingExpressions = map[pairing]string{
	{FieldSubject, OperatorContains}: `subject.contains(value)`,
	{FieldFrom, OperatorEquals}:      `from == value`,
}

// Matcher decides whether a condition matches an email.
// A Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	programs map[pairing]cel.Program
}

// NewMatcher compiles the CEL program for every supported pairing
func NewMatcher() (*Matcher, error) {
	env, err := cel.NewEnv(
		cel.Variable("subject", cel.StringType),
		cel.Variable("from", cel.StringType),
		cel.Variable("value", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	m := &Matcher{programs: make(map[pairing]cel.Program, len(pairingExpressions))}
	for p, expr := range pairingExpressions {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile error for %s/%s: %w", p.field, p.operator, issues.Err())
		}

		// No cost limit: both programs are a single linear string operation
		// and a cancelled evaluation would read as a false negative
		prog, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program creation error for %s/%s: %w", p.field, p.operator, err)
		}
		m.programs[p] = prog
	}

	return m, nil
}

// MustNewMatcher is like NewMatcher but panics on error
func MustNewMatcher() *Matcher {
	m, err := NewMatcher()
	if err != nil {
		panic(err)
	}
	return m
}

// Match evaluates cond against email. Unsupported pairings never match and
// never return an error.
func (m *Matcher) Match(cond Condition, email Email) (bool, error) {
	prog, ok := m.programs[pairing{cond.Field, cond.Operator}]
	if !ok {
		return false, nil
	}

	out, _, err := prog.Eval(map[string]any{
		"subject": normalize(email.Subject),
		"from":    normalize(email.From),
		"value":   normalize(cond.Value),
	})
	if err != nil {
		return false, fmt.Errorf("evaluating %s/%s: %w", cond.Field, cond.Operator, err)
	}

	matched, ok := out.Value().(bool)
	return ok && matched, nil
}

// Matches is Match with evaluation errors treated as no match
func (m *Matcher) Matches(cond Condition, email Email) bool {
	matched, err := m.Match(cond, email)
	return err == nil && matched
}

var defaultMatcher = sync.OnceValue(MustNewMatcher)

// RuleMatches reports whether rule's condition matches email using a shared
// Matcher
func RuleMatches(rule *Rule, email Email) bool {
	return defaultMatcher().Matches(rule.Condition, email)
}

// normalize trims surrounding whitespace and lowercases s
func normalize(s string) string {
	return strings.ToLower(trimSpace(s))
}

// trimSpace strips Unicode whitespace and the byte order mark from both ends
func trimSpace(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}
