package rules

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// tickingClock returns a clock that advances one second per call
func tickingClock() func() time.Time {
	now := baseTime
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestEngine(t *testing.T, store RuleStore, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithClock(tickingClock())}, opts...)
	engine, err := NewEngine(store, opts...)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return engine
}

func mustCreate(t *testing.T, engine *Engine, in NewRule) *Rule {
	t.Helper()
	rule, err := engine.CreateRule(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateRule(%s) failed: %v", in.Name, err)
	}
	return rule
}

func invoiceRule() NewRule {
	return NewRule{
		Name:      "Invoices",
		Condition: subjectContains("Invoice "),
		Action:    Action{Type: ActionAddTag, Value: "billing"},
	}
}

func bossRule() NewRule {
	return NewRule{
		Name:      "Boss",
		Condition: fromEquals("Boss@Company.com"),
		Action:    Action{Type: ActionAutoReply, Value: "On it"},
	}
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(NewInMemoryRuleStore())
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	if engine == nil {
		t.Fatal("NewEngine() should return non-nil engine")
	}
}

func TestEngineCreateRule(t *testing.T) {
	store := NewInMemoryRuleStore()
	engine := newTestEngine(t, store)

	rule := mustCreate(t, engine, NewRule{
		Name:      "  Invoices ",
		Condition: subjectContains(" Invoice "),
		Action:    Action{Type: ActionAddTag, Value: "billing"},
	})

	if _, err := uuid.Parse(rule.ID); err != nil {
		t.Errorf("CreateRule() ID %q is not a UUID: %v", rule.ID, err)
	}
	if !rule.Enabled {
		t.Error("New rules should be enabled")
	}
	if rule.Name != "Invoices" || rule.Condition.Value != "Invoice" {
		t.Errorf("CreateRule() should store trimmed text, got %+v", rule)
	}
	if rule.CreatedAt.IsZero() || !rule.CreatedAt.Equal(rule.UpdatedAt) {
		t.Errorf("CreatedAt = %v, UpdatedAt = %v, want equal non-zero", rule.CreatedAt, rule.UpdatedAt)
	}

	stored, err := store.Get(context.Background(), rule.ID)
	if err != nil {
		t.Fatalf("Created rule not in store: %v", err)
	}
	if stored.Name != "Invoices" {
		t.Errorf("Stored Name = %q, want Invoices", stored.Name)
	}
}

func TestEngineCreateRuleValidation(t *testing.T) {
	store := NewInMemoryRuleStore()
	engine := newTestEngine(t, store)

	_, err := engine.CreateRule(context.Background(), NewRule{Name: "incomplete"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateRule() error = %v, want *ValidationError", err)
	}

	all, _ := store.List(context.Background())
	if len(all) != 0 {
		t.Errorf("Invalid rule should not be stored, store has %d rules", len(all))
	}
}

func TestEngineCreateRuleUniqueIDs(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rule := mustCreate(t, engine, invoiceRule())
		if seen[rule.ID] {
			t.Fatalf("Duplicate rule ID %s", rule.ID)
		}
		seen[rule.ID] = true
	}
}

func TestEngineListRulesNewestFirst(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())

	first := mustCreate(t, engine, invoiceRule())
	second := mustCreate(t, engine, bossRule())

	all, err := engine.ListRules(context.Background())
	if err != nil {
		t.Fatalf("ListRules() failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID || all[1].ID != first.ID {
		t.Errorf("ListRules() order wrong: %v", ruleIDs(all))
	}
}

func TestEngineToggleRule(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())
	ctx := context.Background()

	rule := mustCreate(t, engine, invoiceRule())

	toggled, err := engine.ToggleRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("ToggleRule() failed: %v", err)
	}
	if toggled.Enabled {
		t.Error("ToggleRule() should disable the rule")
	}

	// Uppercase IDs resolve to the same rule
	toggled, err = engine.ToggleRule(ctx, strings.ToUpper(rule.ID))
	if err != nil {
		t.Fatalf("ToggleRule() with uppercase ID failed: %v", err)
	}
	if !toggled.Enabled {
		t.Error("ToggleRule() twice should re-enable the rule")
	}
}

func TestEngineToggleRuleErrors(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())
	ctx := context.Background()

	if _, err := engine.ToggleRule(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("ToggleRule(invalid) error = %v, want ErrInvalidID", err)
	}
	if _, err := engine.ToggleRule(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleRule(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestEngineSimulateNoRules(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())

	result, err := engine.Simulate(context.Background(), Email{From: "a@b.c", Subject: "hi"})
	if err != nil {
		t.Fatalf("Simulate() failed: %v", err)
	}
	if result.Matched {
		t.Error("Simulate() with no rules should not match")
	}
	if result.Rules == nil || result.Actions == nil {
		t.Error("Simulate() should return empty non-nil slices")
	}
	if rule, action := result.First(); rule != nil || action != nil {
		t.Error("First() on empty result should return nils")
	}
}

func TestEngineSimulateAllMatches(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())

	invoices := mustCreate(t, engine, invoiceRule())
	mustCreate(t, engine, NewRule{
		Name:      "Receipts",
		Condition: subjectContains("receipt"),
		Action:    Action{Type: ActionAddTag, Value: "receipts"},
	})
	boss := mustCreate(t, engine, bossRule())

	result, err := engine.Simulate(context.Background(), Email{
		From:    "boss@company.com",
		Subject: "Your invoice  #123",
	})
	if err != nil {
		t.Fatalf("Simulate() failed: %v", err)
	}

	if !result.Matched {
		t.Fatal("Simulate() should match")
	}
	if got, want := ruleIDs(result.Rules), []string{invoices.ID, boss.ID}; !slices.Equal(got, want) {
		t.Errorf("Matched rules = %v, want %v", got, want)
	}
	if len(result.Actions) != 2 || result.Actions[0] != invoices.Action || result.Actions[1] != boss.Action {
		t.Errorf("Actions = %+v, want parallel to rules", result.Actions)
	}

	first, action := result.First()
	if first.ID != invoices.ID || action.Value != "billing" {
		t.Errorf("First() = %s/%+v, want oldest matching rule", first.ID, action)
	}
}

func TestEngineSimulateSkipsDisabled(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())
	ctx := context.Background()

	invoices := mustCreate(t, engine, invoiceRule())
	if _, err := engine.ToggleRule(ctx, invoices.ID); err != nil {
		t.Fatalf("ToggleRule() failed: %v", err)
	}

	result, err := engine.Simulate(ctx, Email{From: "x@y.z", Subject: "invoice"})
	if err != nil {
		t.Fatalf("Simulate() failed: %v", err)
	}
	if result.Matched {
		t.Error("Disabled rules should not match")
	}
}

func TestEngineSimulateValidation(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())

	_, err := engine.Simulate(context.Background(), Email{Subject: "hi"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Simulate() error = %v, want *ValidationError", err)
	}
	if _, ok := verr.Fields["from"]; !ok {
		t.Errorf("Expected from error, got %v", verr.Fields)
	}
}

// Long subjects must still match; evaluation is never cut short
func TestEngineSimulateLargeSubject(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore())

	needle := strings.Repeat("a", 5000)
	rule := mustCreate(t, engine, NewRule{
		Name:      "Long needle",
		Condition: subjectContains(needle),
		Action:    Action{Type: ActionAddTag, Value: "long"},
	})

	subject := strings.Repeat("b", 900000) + needle
	result, err := engine.Simulate(context.Background(), Email{From: "a@b.c", Subject: subject})
	if err != nil {
		t.Fatalf("Simulate() failed: %v", err)
	}
	if !result.Matched || len(result.Rules) != 1 || result.Rules[0].ID != rule.ID {
		t.Errorf("Simulate() = %+v, want match on %s", result, rule.ID)
	}
}

// reversedStore returns enabled rules newest first to prove the engine
// orders matches itself
type reversedStore struct {
	*InMemoryRuleStore
}

func (s reversedStore) ListEnabled(ctx context.Context) ([]*Rule, error) {
	enabled, err := s.InMemoryRuleStore.ListEnabled(ctx)
	slices.Reverse(enabled)
	return enabled, err
}

func TestEngineSimulateOrderIndependentOfStore(t *testing.T) {
	engine := newTestEngine(t, reversedStore{NewInMemoryRuleStore()})

	var want []string
	for i := 0; i < 5; i++ {
		rule := mustCreate(t, engine, NewRule{
			Name:      fmt.Sprintf("rule %d", i),
			Condition: subjectContains("hello"),
			Action:    Action{Type: ActionAddTag, Value: fmt.Sprintf("tag-%d", i)},
		})
		want = append(want, rule.ID)
	}

	result, err := engine.Simulate(context.Background(), Email{From: "a@b.c", Subject: "Hello world"})
	if err != nil {
		t.Fatalf("Simulate() failed: %v", err)
	}
	if got := ruleIDs(result.Rules); !slices.Equal(got, want) {
		t.Errorf("Matched rules = %v, want creation order %v", got, want)
	}
}

type failingStore struct {
	*InMemoryRuleStore
	err error
}

func (s failingStore) ListEnabled(ctx context.Context) ([]*Rule, error) {
	return nil, s.err
}

func TestEngineSimulateStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	engine := newTestEngine(t, failingStore{NewInMemoryRuleStore(), storeErr})

	_, err := engine.Simulate(context.Background(), Email{From: "a@b.c", Subject: "hi"})
	if !errors.Is(err, storeErr) {
		t.Errorf("Simulate() error = %v, want store error", err)
	}
}

// countingStore counts ListEnabled calls to observe cache hits
type countingStore struct {
	*InMemoryRuleStore
	calls int
}

func (s *countingStore) ListEnabled(ctx context.Context) ([]*Rule, error) {
	s.calls++
	return s.InMemoryRuleStore.ListEnabled(ctx)
}

func TestEngineSimulateWithCache(t *testing.T) {
	store := &countingStore{InMemoryRuleStore: NewInMemoryRuleStore()}
	engine := newTestEngine(t, store, WithCache(NewInMemoryRulesCache(DefaultCacheConfig())))
	ctx := context.Background()
	email := Email{From: "boss@company.com", Subject: "Your invoice #1"}

	invoices := mustCreate(t, engine, invoiceRule())

	for i := 0; i < 3; i++ {
		if _, err := engine.Simulate(ctx, email); err != nil {
			t.Fatalf("Simulate() failed: %v", err)
		}
	}
	if store.calls != 1 {
		t.Errorf("ListEnabled() called %d times, want 1 with warm cache", store.calls)
	}

	// Mutations must be visible to the next simulation
	boss := mustCreate(t, engine, bossRule())
	result, _ := engine.Simulate(ctx, email)
	if got := ruleIDs(result.Rules); !slices.Equal(got, []string{invoices.ID, boss.ID}) {
		t.Errorf("After create, matched = %v", got)
	}

	if _, err := engine.ToggleRule(ctx, invoices.ID); err != nil {
		t.Fatalf("ToggleRule() failed: %v", err)
	}
	result, _ = engine.Simulate(ctx, email)
	if got := ruleIDs(result.Rules); !slices.Equal(got, []string{boss.ID}) {
		t.Errorf("After toggle, matched = %v", got)
	}

	if store.calls != 3 {
		t.Errorf("ListEnabled() called %d times, want 3", store.calls)
	}
}

func TestEngineWithIDGenerator(t *testing.T) {
	engine := newTestEngine(t, NewInMemoryRuleStore(), WithIDGenerator(func() string { return "fixed" }))

	rule := mustCreate(t, engine, invoiceRule())
	if rule.ID != "fixed" {
		t.Errorf("ID = %s, want fixed", rule.ID)
	}

	if _, err := engine.CreateRule(context.Background(), invoiceRule()); err == nil {
		t.Error("CreateRule() with colliding ID should fail")
	}
}

func ruleIDs(rules []*Rule) []string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}
