package rules

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jameskimau/inbox-rules/internal/logger"
)

// Engine validates and persists rules and simulates emails against the
// enabled rule set.
// Simulation uses the all-matches policy: every enabled rule whose condition
// matches is returned, oldest first.
type Engine struct {
	store   RuleStore
	cache   RulesCache // nil disables caching of the enabled rule set
	matcher *Matcher
	now     func() time.Time
	newID   func() string
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithCache enables caching of the enabled rule set
func WithCache(cache RulesCache) EngineOption {
	return func(en *Engine) { en.cache = cache }
}

// WithClock overrides the time source used for CreatedAt
func WithClock(now func() time.Time) EngineOption {
	return func(en *Engine) { en.now = now }
}

// WithIDGenerator overrides rule ID generation
func WithIDGenerator(newID func() string) EngineOption {
	return func(en *Engine) { en.newID = newID }
}

// NewEngine creates a new rules engine over store
func NewEngine(store RuleStore, opts ...EngineOption) (*Engine, error) {
	matcher, err := NewMatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher: %w", err)
	}

	en := &Engine{
		store:   store,
		matcher: matcher,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(en)
	}

	return en, nil
}

// CreateRule validates in and stores it as a new enabled rule
func (en *Engine) CreateRule(ctx context.Context, in NewRule) (*Rule, error) {
	if err := ValidateNewRule(&in); err != nil {
		return nil, err
	}

	now := en.now().UTC()
	rule := &Rule{
		ID:        en.newID(),
		Name:      in.Name,
		Enabled:   true,
		Condition: in.Condition,
		Action:    in.Action,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := en.store.Create(ctx, rule); err != nil {
		return nil, err
	}

	en.invalidate()
	logger.Debug("rule created", "rule_id", rule.ID, "name", rule.Name)

	return rule, nil
}

// ListRules returns every rule, newest first
func (en *Engine) ListRules(ctx context.Context) ([]*Rule, error) {
	return en.store.List(ctx)
}

// ToggleRule flips the enabled flag of the rule with the given ID
func (en *Engine) ToggleRule(ctx context.Context, id string) (*Rule, error) {
	canonical, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	rule, err := en.store.Toggle(ctx, canonical)
	if err != nil {
		return nil, err
	}

	en.invalidate()
	logger.Debug("rule toggled", "rule_id", rule.ID, "enabled", rule.Enabled)

	return rule, nil
}

// Simulate evaluates email against every enabled rule
func (en *Engine) Simulate(ctx context.Context, email Email) (*SimulationResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	enabled, err := en.enabledRules(ctx)
	if err != nil {
		return nil, err
	}

	// Stores promise oldest-first, but matching order must not depend on it
	slices.SortStableFunc(enabled, func(a, b *Rule) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	result := &SimulationResult{
		Rules:   []*Rule{},
		Actions: []Action{},
	}
	for _, rule := range enabled {
		matched, err := en.matcher.Match(rule.Condition, email)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		if matched {
			result.Rules = append(result.Rules, rule)
			result.Actions = append(result.Actions, rule.Action)
		}
	}
	result.Matched = len(result.Rules) > 0

	return result, nil
}

// enabledRules loads the enabled rule set, from cache when configured
func (en *Engine) enabledRules(ctx context.Context) ([]*Rule, error) {
	if en.cache == nil {
		return en.store.ListEnabled(ctx)
	}

	if cached := en.cache.Get(); cached != nil {
		return cached, nil
	}

	generation := en.cache.Generation()
	enabled, err := en.store.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	en.cache.Set(generation, enabled)

	return enabled, nil
}

func (en *Engine) invalidate() {
	if en.cache != nil {
		en.cache.Invalidate()
	}
}
