// Package storage keeps the history of savings plans in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"risparmi/internal/core"
	applog "risparmi/internal/log"

	_ "modernc.org/sqlite"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewPlanRepository(dbPath string) (*PlanRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PlanRepository{db: db}, nil
}

func (r *PlanRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *PlanRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save stores p. Saving a plan whose ID is already stored is a no-op, so
// redelivered events are harmless.
func (r *PlanRepository) Save(ctx context.Context, p core.Plan) error {
	original, err := json.Marshal(p.Original)
	if err != nil {
		return fmt.Errorf("encode original expenses: %w", err)
	}
	adjusted, err := json.Marshal(p.Adjusted)
	if err != nil {
		return fmt.Errorf("encode adjusted expenses: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO plans (id, created_at_ms, strategy, model, savings_goal, excluded, original, adjusted, reply)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.CreatedAt.UnixMilli(), string(p.Strategy), p.Model, p.SavingsGoal,
		p.Excluded, string(original), string(adjusted), p.Reply,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}

	logger := applog.FromContext(ctx).WithComponent(applog.ComponentStorage)
	if n, _ := res.RowsAffected(); n == 0 {
		logger.DebugContext(ctx, "Plan already stored", applog.FieldPlanID, p.ID)
		return nil
	}
	logger.InfoContext(ctx, "Plan saved to SQLite",
		applog.FieldPlanID, p.ID,
		applog.FieldStrategy, p.Strategy.String(),
		applog.FieldOperation, applog.OpCreate)
	return nil
}

// Record implements services.Recorder.
func (r *PlanRepository) Record(ctx context.Context, p core.Plan) error {
	return r.Save(ctx, p)
}

// Get returns the plan with the given id or core.ErrPlanNotFound.
func (r *PlanRepository) Get(ctx context.Context, id string) (core.Plan, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, created_at_ms, strategy, model, savings_goal, excluded, original, adjusted, reply
		FROM plans WHERE id = ?`, id)

	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Plan{}, fmt.Errorf("%w: %s", core.ErrPlanNotFound, id)
	}
	if err != nil {
		return core.Plan{}, fmt.Errorf("get plan %s: %w", id, err)
	}
	return p, nil
}

// List returns the most recent plans, newest first. A non-positive limit
// selects DefaultListLimit; limits above MaxListLimit are capped.
func (r *PlanRepository) List(ctx context.Context, limit int) ([]core.Plan, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at_ms, strategy, model, savings_goal, excluded, original, adjusted, reply
		FROM plans ORDER BY created_at_ms DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []core.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (core.Plan, error) {
	var (
		p                  core.Plan
		createdMs          int64
		strategy           string
		original, adjusted string
	)
	if err := s.Scan(&p.ID, &createdMs, &strategy, &p.Model, &p.SavingsGoal,
		&p.Excluded, &original, &adjusted, &p.Reply); err != nil {
		return core.Plan{}, err
	}
	p.CreatedAt = time.UnixMilli(createdMs).UTC()
	p.Strategy = core.Strategy(strategy)
	if err := json.Unmarshal([]byte(original), &p.Original); err != nil {
		return core.Plan{}, fmt.Errorf("decode original expenses: %w", err)
	}
	if err := json.Unmarshal([]byte(adjusted), &p.Adjusted); err != nil {
		return core.Plan{}, fmt.Errorf("decode adjusted expenses: %w", err)
	}
	return p, nil
}
