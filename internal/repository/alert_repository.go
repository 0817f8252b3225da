package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	defaultTimezone         = "Europe/London"
	defaultQuietStart       = "22:00"
	defaultQuietEnd         = "09:00"
	defaultCheckIntervalSec = 900
	defaultMaxAlertsPerDay  = 8
)

// AlertRepository persists alert settings, rules and per-key trigger state.
type AlertRepository struct {
	pool   PgxPool
	tracer trace.Tracer
	now    func() time.Time
}

func NewAlertRepository(pool PgxPool, tracer trace.Tracer) *AlertRepository {
	return &AlertRepository{pool: pool, tracer: tracer, now: time.Now}
}

func (r *AlertRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "alert-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS alert_settings (
			user_id BIGINT PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			timezone TEXT NOT NULL DEFAULT 'Europe/London',
			quiet_start TEXT,
			quiet_end TEXT,
			check_interval_sec INT NOT NULL DEFAULT 900,
			max_alerts_per_day INT NOT NULL DEFAULT 8,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS alert_rules (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			ticker TEXT NOT NULL,
			rule_type TEXT NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, ticker, rule_type)
		);
		CREATE INDEX IF NOT EXISTS idx_alert_rules_ticker ON alert_rules (ticker) WHERE enabled;
		CREATE TABLE IF NOT EXISTS alert_state (
			user_id BIGINT NOT NULL,
			ticker TEXT NOT NULL,
			rule_type TEXT NOT NULL,
			last_triggered_at TIMESTAMPTZ,
			last_triggered_value DOUBLE PRECISION,
			alerts_today INT NOT NULL DEFAULT 0,
			last_alert_date DATE,
			PRIMARY KEY (user_id, ticker, rule_type)
		);
	`)
	return err
}

// GetSettings returns the user's settings, lazily creating defaults on first
// access.
func (r *AlertRepository) GetSettings(ctx context.Context, userID int64) (domain.AlertSettings, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.get-settings")
	defer span.End()

	var (
		s          domain.AlertSettings
		quietStart *string
		quietEnd   *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, enabled, timezone, quiet_start, quiet_end, check_interval_sec, max_alerts_per_day
		 FROM alert_settings WHERE user_id = $1`,
		userID,
	).Scan(&s.UserID, &s.Enabled, &s.Timezone, &quietStart, &quietEnd, &s.CheckIntervalSec, &s.MaxAlertsPerDay)
	if err == nil {
		if quietStart != nil {
			s.QuietStart = *quietStart
		}
		if quietEnd != nil {
			s.QuietEnd = *quietEnd
		}
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.AlertSettings{}, err
	}

	defaults := domain.AlertSettings{
		UserID:           userID,
		Enabled:          true,
		Timezone:         defaultTimezone,
		QuietStart:       defaultQuietStart,
		QuietEnd:         defaultQuietEnd,
		CheckIntervalSec: defaultCheckIntervalSec,
		MaxAlertsPerDay:  defaultMaxAlertsPerDay,
	}
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO alert_settings (user_id, enabled, timezone, quiet_start, quiet_end, check_interval_sec, max_alerts_per_day)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, defaults.Enabled, defaults.Timezone, defaults.QuietStart, defaults.QuietEnd,
		defaults.CheckIntervalSec, defaults.MaxAlertsPerDay,
	); err != nil {
		return domain.AlertSettings{}, fmt.Errorf("create default settings: %w", err)
	}
	return defaults, nil
}

// UpdateSettings applies a typed partial update; nil fields stay untouched.
func (r *AlertRepository) UpdateSettings(ctx context.Context, userID int64, upd domain.SettingsUpdate) error {
	if upd.IsZero() {
		return nil
	}

	_, span := r.tracer.Start(ctx, "alert-repo.update-settings")
	defer span.End()

	set := make([]string, 0, 6)
	args := make([]any, 0, 7)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Enabled != nil {
		add("enabled", *upd.Enabled)
	}
	if upd.Timezone != nil {
		add("timezone", *upd.Timezone)
	}
	if upd.QuietStart != nil {
		add("quiet_start", nullable(*upd.QuietStart))
	}
	if upd.QuietEnd != nil {
		add("quiet_end", nullable(*upd.QuietEnd))
	}
	if upd.CheckIntervalSec != nil {
		add("check_interval_sec", *upd.CheckIntervalSec)
	}
	if upd.MaxAlertsPerDay != nil {
		add("max_alerts_per_day", *upd.MaxAlertsPerDay)
	}

	args = append(args, userID)
	sql := fmt.Sprintf("UPDATE alert_settings SET %s WHERE user_id = $%d", strings.Join(set, ", "), len(args))
	_, err := r.pool.Exec(ctx, sql, args...)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AddRule inserts a rule. The (user_id, ticker, rule_type) combination is
// unique: re-adding an existing combination returns the existing rule
// unchanged instead of duplicating it.
func (r *AlertRepository) AddRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType, threshold float64) (domain.AlertRule, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.add-rule")
	defer span.End()

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO alert_rules (user_id, ticker, rule_type, threshold, enabled)
		 VALUES ($1, $2, $3, $4, TRUE)
		 ON CONFLICT (user_id, ticker, rule_type) DO NOTHING
		 RETURNING id`,
		userID, ticker, string(ruleType), threshold,
	).Scan(&id)
	if err == nil {
		return domain.AlertRule{
			ID: id, UserID: userID, Ticker: ticker,
			RuleType: ruleType, Threshold: threshold, Enabled: true,
		}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.AlertRule{}, err
	}

	existing, err := r.GetRule(ctx, userID, ticker, ruleType)
	if err != nil {
		return domain.AlertRule{}, err
	}
	if existing == nil {
		return domain.AlertRule{}, fmt.Errorf("rule for user %d %s %s vanished after conflict", userID, ticker, ruleType)
	}
	return *existing, nil
}

func (r *AlertRepository) GetRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (*domain.AlertRule, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.get-rule")
	defer span.End()

	rule, err := scanRule(r.pool.QueryRow(ctx,
		`SELECT id, user_id, ticker, rule_type, threshold, enabled
		 FROM alert_rules WHERE user_id = $1 AND ticker = $2 AND rule_type = $3`,
		userID, ticker, string(ruleType),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *AlertRepository) ListRulesForUser(ctx context.Context, userID int64) ([]domain.AlertRule, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.list-rules-for-user")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, ticker, rule_type, threshold, enabled
		 FROM alert_rules WHERE user_id = $1 ORDER BY ticker, rule_type`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListEnabledRules returns every enabled rule across all users, the working
// set of one scheduler cycle.
func (r *AlertRepository) ListEnabledRules(ctx context.Context) ([]domain.AlertRule, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.list-enabled-rules")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, ticker, rule_type, threshold, enabled
		 FROM alert_rules WHERE enabled ORDER BY ticker, user_id, rule_type`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// RemoveRule deletes a rule permanently. Returns false when nothing matched.
func (r *AlertRepository) RemoveRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.remove-rule")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM alert_rules WHERE user_id = $1 AND ticker = $2 AND rule_type = $3`,
		userID, ticker, string(ruleType),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ToggleRule flips the enabled flag and returns the new state; a missing rule
// reports false without error.
func (r *AlertRepository) ToggleRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.toggle-rule")
	defer span.End()

	var enabled bool
	err := r.pool.QueryRow(ctx,
		`UPDATE alert_rules SET enabled = NOT enabled
		 WHERE user_id = $1 AND ticker = $2 AND rule_type = $3
		 RETURNING enabled`,
		userID, ticker, string(ruleType),
	).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return enabled, nil
}

// RecordTriggered upserts the trigger state in one statement so concurrent
// evaluations of the same key cannot race the counter. The daily counter
// increments while the stored date matches, otherwise restarts at 1 — the
// sole reset mechanism for the daily cap.
func (r *AlertRepository) RecordTriggered(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType, value float64) error {
	_, span := r.tracer.Start(ctx, "alert-repo.record-triggered")
	defer span.End()

	now := r.now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO alert_state (user_id, ticker, rule_type, last_triggered_at, last_triggered_value, alerts_today, last_alert_date)
		 VALUES ($1, $2, $3, $4, $5, 1, $6::date)
		 ON CONFLICT (user_id, ticker, rule_type) DO UPDATE SET
		     last_triggered_at = EXCLUDED.last_triggered_at,
		     last_triggered_value = EXCLUDED.last_triggered_value,
		     alerts_today = CASE
		         WHEN alert_state.last_alert_date = EXCLUDED.last_alert_date THEN alert_state.alerts_today + 1
		         ELSE 1
		     END,
		     last_alert_date = EXCLUDED.last_alert_date`,
		userID, ticker, string(ruleType), now, value, now.Format("2006-01-02"),
	)
	return err
}

func (r *AlertRepository) GetState(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (*domain.AlertState, error) {
	_, span := r.tracer.Start(ctx, "alert-repo.get-state")
	defer span.End()

	var (
		state       domain.AlertState
		triggeredAt *time.Time
		value       *float64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT last_triggered_at, last_triggered_value, alerts_today,
		        COALESCE(to_char(last_alert_date, 'YYYY-MM-DD'), '')
		 FROM alert_state WHERE user_id = $1 AND ticker = $2 AND rule_type = $3`,
		userID, ticker, string(ruleType),
	).Scan(&triggeredAt, &value, &state.AlertsToday, &state.LastAlertDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if triggeredAt != nil {
		state.LastTriggeredAt = triggeredAt.UTC()
	}
	if value != nil {
		state.LastTriggeredValue = *value
	}
	return &state, nil
}

func scanRule(row pgx.Row) (domain.AlertRule, error) {
	var (
		rule     domain.AlertRule
		ruleType string
	)
	if err := row.Scan(&rule.ID, &rule.UserID, &rule.Ticker, &ruleType, &rule.Threshold, &rule.Enabled); err != nil {
		return domain.AlertRule{}, err
	}
	rule.RuleType = domain.RuleType(ruleType)
	return rule, nil
}

func collectRules(rows pgx.Rows) ([]domain.AlertRule, error) {
	var out []domain.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
