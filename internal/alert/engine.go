// Package alert implements the rule-evaluation engine: evaluators plus the
// quiet-hours, cooldown and daily-cap suppression chain.
package alert

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/rules"
)

const defaultCooldownHours = 12

// Store is the slice of the settings/state store the engine needs.
type Store interface {
	GetSettings(ctx context.Context, userID int64) (domain.AlertSettings, error)
	GetState(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (*domain.AlertState, error)
	RecordTriggered(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType, value float64) error
}

// Outcome names the terminal state of one rule evaluation.
type Outcome string

const (
	OutcomeSkippedDisabled    Outcome = "skipped_disabled"
	OutcomeSkippedNoData      Outcome = "skipped_no_data"
	OutcomeNotTriggered       Outcome = "not_triggered"
	OutcomeSuppressedQuiet    Outcome = "suppressed_quiet_hours"
	OutcomeSuppressedCooldown Outcome = "suppressed_cooldown"
	OutcomeSuppressedDailyCap Outcome = "suppressed_daily_cap"
	OutcomeEmitted            Outcome = "emitted"
)

// Engine evaluates alert rules against series snapshots and applies the
// suppression filters. The cooldown window is a single engine-wide setting
// shared by all rule types.
type Engine struct {
	store         Store
	cooldownHours int
	now           func() time.Time
}

func NewEngine(store Store, cooldownHours int, now func() time.Time) *Engine {
	if cooldownHours <= 0 {
		cooldownHours = defaultCooldownHours
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, cooldownHours: cooldownHours, now: now}
}

// EvaluateRule runs one rule through evaluation and the filter chain:
// quiet hours, then cooldown, then daily cap, short-circuiting at the first
// suppression. On a full pass the trigger is recorded before the event is
// returned, so a delivery failure downstream cannot produce a duplicate
// alert on the next cycle.
func (e *Engine) EvaluateRule(ctx context.Context, rule domain.AlertRule, series *domain.Series) (*domain.AlertEvent, Outcome, error) {
	if !rule.Enabled {
		return nil, OutcomeSkippedDisabled, nil
	}

	settings, err := e.store.GetSettings(ctx, rule.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("get settings for user %d: %w", rule.UserID, err)
	}
	if !settings.Enabled {
		return nil, OutcomeSkippedDisabled, nil
	}

	if series.Len() == 0 {
		return nil, OutcomeSkippedNoData, nil
	}

	result, err := e.evaluate(rule, series)
	if err != nil {
		return nil, "", err
	}
	if !result.Triggered {
		return nil, OutcomeNotTriggered, nil
	}

	now := e.now().UTC()

	if inQuietHours(settings, now) {
		return nil, OutcomeSuppressedQuiet, nil
	}

	// One state read serves both the cooldown and the daily cap. A failed
	// read fails open: alerts are never silently dropped by a state bug.
	state, err := e.store.GetState(ctx, rule.UserID, rule.Ticker, rule.RuleType)
	if err != nil {
		log.Printf("alert state read failed for user %d %s %s, failing open: %v",
			rule.UserID, rule.Ticker, rule.RuleType, err)
		state = nil
	}

	if !e.cooldownPassed(state, now) {
		return nil, OutcomeSuppressedCooldown, nil
	}
	if dailyCapReached(state, settings, now) {
		return nil, OutcomeSuppressedDailyCap, nil
	}

	if err := e.store.RecordTriggered(ctx, rule.UserID, rule.Ticker, rule.RuleType, result.CurrentValue); err != nil {
		return nil, "", fmt.Errorf("record trigger for user %d %s %s: %w", rule.UserID, rule.Ticker, rule.RuleType, err)
	}

	return &domain.AlertEvent{
		UserID:    rule.UserID,
		Ticker:    rule.Ticker,
		RuleType:  rule.RuleType,
		Triggered: true,
		Message:   formatMessage(rule, result),
		Value:     result.CurrentValue,
	}, OutcomeEmitted, nil
}

func (e *Engine) evaluate(rule domain.AlertRule, series *domain.Series) (rules.RuleResult, error) {
	switch rule.RuleType {
	case domain.RulePriceDropDay:
		return rules.EvalPriceDropDay(series, rule.Threshold), nil
	case domain.RuleRSILow:
		return rules.EvalRSILow(series, rule.Threshold), nil
	case domain.RuleBelowSMA200:
		return rules.EvalBelowSMA200(series), nil
	default:
		return rules.RuleResult{}, fmt.Errorf("unknown rule type: %s", rule.RuleType)
	}
}

func (e *Engine) cooldownPassed(state *domain.AlertState, now time.Time) bool {
	if state == nil || state.LastTriggeredAt.IsZero() {
		return true
	}
	elapsed := now.Sub(state.LastTriggeredAt).Hours()
	return elapsed >= float64(e.cooldownHours)
}

func dailyCapReached(state *domain.AlertState, settings domain.AlertSettings, now time.Time) bool {
	if state == nil || settings.MaxAlertsPerDay <= 0 {
		return false
	}
	// Counter only counts against today's date; a stale date means the next
	// recorded trigger restarts it at 1, so the cap cannot apply.
	if state.LastAlertDate != now.Format("2006-01-02") {
		return false
	}
	return state.AlertsToday >= settings.MaxAlertsPerDay
}

// inQuietHours compares the configured window against the current UTC hour.
// Only the hour component is used; the stored timezone field is not consulted.
// Malformed hour strings degrade to "not in quiet hours": a config parsing
// bug must not silently drop alerts.
func inQuietHours(settings domain.AlertSettings, now time.Time) bool {
	if settings.QuietStart == "" || settings.QuietEnd == "" {
		return false
	}
	start, ok := parseHour(settings.QuietStart)
	if !ok {
		return false
	}
	end, ok := parseHour(settings.QuietEnd)
	if !ok {
		return false
	}

	hour := now.Hour()
	if start < end {
		return start <= hour && hour < end
	}
	// Window crosses midnight, e.g. 22:00-09:00.
	return hour >= start || hour < end
}

func parseHour(clock string) (int, bool) {
	head, _, _ := strings.Cut(clock, ":")
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || n < 0 || n > 23 {
		return 0, false
	}
	return n, true
}

var ruleEmoji = map[domain.RuleType]string{
	domain.RulePriceDropDay: "📉",
	domain.RuleRSILow:       "📊",
	domain.RuleBelowSMA200:  "⬇️",
}

var ruleLabel = map[domain.RuleType]string{
	domain.RulePriceDropDay: "Падение за день",
	domain.RuleRSILow:       "RSI перепроданность",
	domain.RuleBelowSMA200:  "Ниже SMA200",
}

func formatMessage(rule domain.AlertRule, result rules.RuleResult) string {
	emoji, ok := ruleEmoji[rule.RuleType]
	if !ok {
		emoji = "🔔"
	}
	label, ok := ruleLabel[rule.RuleType]
	if !ok {
		label = string(rule.RuleType)
	}
	return fmt.Sprintf("%s %s\nТип: %s\n%s", emoji, rule.Ticker, label, result.Details)
}
