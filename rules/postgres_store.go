package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

const ruleColumns = `id, name, enabled, condition_field, condition_operator, condition_value,
		action_type, action_value, created_at, updated_at`

// PostgresRuleStore implements RuleStore backed by PostgreSQL
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a new PostgreSQL-backed RuleStore
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

// Ping checks that the database is reachable
func (s *PostgresRuleStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a new rule into the database
func (s *PostgresRuleStore) Create(ctx context.Context, rule *Rule) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1)
	`, rule.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rule.ID, rule.Name, rule.Enabled,
		rule.Condition.Field, rule.Condition.Operator, rule.Condition.Value,
		rule.Action.Type, rule.Action.Value,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// Get retrieves a rule by ID
func (s *PostgresRuleStore) Get(ctx context.Context, id string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		WHERE id = $1
	`, id)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// List returns all rules, newest first
func (s *PostgresRuleStore) List(ctx context.Context) ([]*Rule, error) {
	return s.query(ctx, "list rules", `
		SELECT `+ruleColumns+`
		FROM rules
		ORDER BY created_at DESC, id DESC
	`)
}

// ListEnabled returns all enabled rules, oldest first
func (s *PostgresRuleStore) ListEnabled(ctx context.Context) ([]*Rule, error) {
	return s.query(ctx, "list enabled rules", `
		SELECT `+ruleColumns+`
		FROM rules
		WHERE enabled = true
		ORDER BY created_at ASC, id ASC
	`)
}

// Toggle flips the enabled flag in a single statement
func (s *PostgresRuleStore) Toggle(ctx context.Context, id string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE rules
		SET enabled = NOT enabled, updated_at = NOW()
		WHERE id = $1
		RETURNING `+ruleColumns+`
	`, id)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle rule: %w", err)
	}

	return rule, nil
}

func (s *PostgresRuleStore) query(ctx context.Context, op, q string) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	rulesList := []*Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rulesList = append(rulesList, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rulesList, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*Rule, error) {
	var r Rule
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Enabled,
		&r.Condition.Field,
		&r.Condition.Operator,
		&r.Condition.Value,
		&r.Action.Type,
		&r.Action.Value,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
