package rules

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// RuleStore manages rule persistence and retrieval
type RuleStore interface {
	// Create persists a new rule. Duplicate IDs are an error.
	Create(ctx context.Context, rule *Rule) error

	// Get a rule by ID
	Get(ctx context.Context, id string) (*Rule, error)

	// List all rules, newest first
	List(ctx context.Context) ([]*Rule, error)

	// ListEnabled returns enabled rules, oldest first
	ListEnabled(ctx context.Context) ([]*Rule, error)

	// Toggle flips the enabled flag and returns the updated rule
	Toggle(ctx context.Context, id string) (*Rule, error)
}

// InMemoryRuleStore implements RuleStore using an in-memory map.
// Rules handed out are copies, so callers never share state with the store.
type InMemoryRuleStore struct {
	rules map[string]*Rule
	order []string // insertion order, breaks CreatedAt ties
	now   func() time.Time
	mu    sync.RWMutex
}

// NewInMemoryRuleStore creates a new in-memory rule store
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[string]*Rule),
		now:   time.Now,
	}
}

// Create adds a new rule to the store
func (s *InMemoryRuleStore) Create(ctx context.Context, rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	s.rules[rule.ID] = rule.clone()
	s.order = append(s.order, rule.ID)
	return nil
}

// Get retrieves a rule by ID
func (s *InMemoryRuleStore) Get(ctx context.Context, id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return rule.clone(), nil
}

// List returns all rules, newest first
func (s *InMemoryRuleStore) List(ctx context.Context) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Rule, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		all = append(all, s.rules[s.order[i]].clone())
	}

	// Stable so that equal timestamps keep reverse insertion order
	slices.SortStableFunc(all, func(a, b *Rule) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return all, nil
}

// ListEnabled returns enabled rules, oldest first
func (s *InMemoryRuleStore) ListEnabled(ctx context.Context) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var enabled []*Rule
	for _, id := range s.order {
		if rule := s.rules[id]; rule.Enabled {
			enabled = append(enabled, rule.clone())
		}
	}

	slices.SortStableFunc(enabled, func(a, b *Rule) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return enabled, nil
}

// Toggle flips the enabled flag of a rule
func (s *InMemoryRuleStore) Toggle(ctx context.Context, id string) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}

	rule.Enabled = !rule.Enabled
	rule.UpdatedAt = s.now()
	return rule.clone(), nil
}
