package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/resolver"

	"go.opentelemetry.io/otel/trace"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// ValidTicker reports whether the normalized form of raw is an acceptable
// ticker: 1-10 characters of uppercase letters, digits, dots and dashes.
func ValidTicker(raw string) bool {
	return tickerPattern.MatchString(strings.ToUpper(strings.TrimSpace(raw)))
}

type AlertRuleStore interface {
	AddRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType, threshold float64) (domain.AlertRule, error)
	ListRulesForUser(ctx context.Context, userID int64) ([]domain.AlertRule, error)
	RemoveRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error)
	ToggleRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error)
	GetSettings(ctx context.Context, userID int64) (domain.AlertSettings, error)
	UpdateSettings(ctx context.Context, userID int64, upd domain.SettingsUpdate) error
}

type TickerResolver interface {
	Resolve(ticker string) (domain.Asset, error)
	Stats() resolver.Stats
}

// AlertService validates user input and fronts the rule store and the ticker
// resolver for the bot commands and the HTTP handlers.
type AlertService struct {
	tracer   trace.Tracer
	store    AlertRuleStore
	resolver TickerResolver
}

func NewAlertService(tracer trace.Tracer, store AlertRuleStore, res TickerResolver) *AlertService {
	return &AlertService{tracer: tracer, store: store, resolver: res}
}

// AddRule validates the ticker, rule type and threshold, resolves the ticker
// so its asset mapping is warm before the first scheduler cycle, then stores
// the rule. Resolution failure other than a blank ticker never blocks the
// rule: the US fallback guarantees an asset for any well-formed symbol.
func (s *AlertService) AddRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType, threshold float64) (domain.AlertRule, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.add-rule")
	defer span.End()

	normalized, err := s.normalizeTicker(ticker)
	if err != nil {
		return domain.AlertRule{}, err
	}
	if !ruleType.IsValid() {
		return domain.AlertRule{}, fmt.Errorf("unknown rule type: %s", ruleType)
	}
	if err := validateThreshold(ruleType, threshold); err != nil {
		return domain.AlertRule{}, err
	}

	if _, err := s.resolver.Resolve(normalized); err != nil {
		return domain.AlertRule{}, fmt.Errorf("resolve %s: %w", normalized, err)
	}

	return s.store.AddRule(ctx, userID, normalized, ruleType, threshold)
}

func (s *AlertService) ListRules(ctx context.Context, userID int64) ([]domain.AlertRule, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.list-rules")
	defer span.End()

	return s.store.ListRulesForUser(ctx, userID)
}

func (s *AlertService) RemoveRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.remove-rule")
	defer span.End()

	normalized, err := s.normalizeTicker(ticker)
	if err != nil {
		return false, err
	}
	if !ruleType.IsValid() {
		return false, fmt.Errorf("unknown rule type: %s", ruleType)
	}
	return s.store.RemoveRule(ctx, userID, normalized, ruleType)
}

func (s *AlertService) ToggleRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.toggle-rule")
	defer span.End()

	normalized, err := s.normalizeTicker(ticker)
	if err != nil {
		return false, err
	}
	if !ruleType.IsValid() {
		return false, fmt.Errorf("unknown rule type: %s", ruleType)
	}
	return s.store.ToggleRule(ctx, userID, normalized, ruleType)
}

func (s *AlertService) GetSettings(ctx context.Context, userID int64) (domain.AlertSettings, error) {
	ctx, span := s.tracer.Start(ctx, "alert-service.get-settings")
	defer span.End()

	return s.store.GetSettings(ctx, userID)
}

// UpdateSettings validates the provided fields and applies the partial
// update. Quiet-hour bounds must both be "HH:MM" clock strings, and both
// must be set or cleared together so the window stays well-formed.
func (s *AlertService) UpdateSettings(ctx context.Context, userID int64, upd domain.SettingsUpdate) error {
	ctx, span := s.tracer.Start(ctx, "alert-service.update-settings")
	defer span.End()

	if (upd.QuietStart == nil) != (upd.QuietEnd == nil) {
		return fmt.Errorf("quiet hours must set both bounds")
	}
	if upd.QuietStart != nil {
		if err := validateClock(*upd.QuietStart); err != nil {
			return fmt.Errorf("quiet start: %w", err)
		}
		if err := validateClock(*upd.QuietEnd); err != nil {
			return fmt.Errorf("quiet end: %w", err)
		}
	}
	if upd.Timezone != nil && *upd.Timezone != "" {
		if _, err := time.LoadLocation(*upd.Timezone); err != nil {
			return fmt.Errorf("unknown timezone: %s", *upd.Timezone)
		}
	}
	if upd.CheckIntervalSec != nil && *upd.CheckIntervalSec < 60 {
		return fmt.Errorf("check interval below 60s")
	}
	if upd.MaxAlertsPerDay != nil && *upd.MaxAlertsPerDay < 0 {
		return fmt.Errorf("negative daily alert cap")
	}

	return s.store.UpdateSettings(ctx, userID, upd)
}

// SetAlertsEnabled flips the per-user global switch.
func (s *AlertService) SetAlertsEnabled(ctx context.Context, userID int64, enabled bool) error {
	ctx, span := s.tracer.Start(ctx, "alert-service.set-alerts-enabled")
	defer span.End()

	return s.store.UpdateSettings(ctx, userID, domain.SettingsUpdate{Enabled: &enabled})
}

func (s *AlertService) ResolveTicker(ticker string) (domain.Asset, error) {
	return s.resolver.Resolve(ticker)
}

func (s *AlertService) ResolverStats() resolver.Stats {
	return s.resolver.Stats()
}

func (s *AlertService) normalizeTicker(raw string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return "", domain.ErrEmptyTicker
	}
	if !tickerPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid ticker: %s", raw)
	}
	return normalized, nil
}

func validateThreshold(ruleType domain.RuleType, threshold float64) error {
	switch ruleType {
	case domain.RulePriceDropDay:
		if threshold <= 0 || threshold > 100 {
			return fmt.Errorf("drop threshold must be in (0, 100], got %g", threshold)
		}
	case domain.RuleRSILow:
		if threshold <= 0 || threshold >= 100 {
			return fmt.Errorf("rsi threshold must be in (0, 100), got %g", threshold)
		}
	case domain.RuleBelowSMA200:
		// No threshold: the rule compares close against the long average.
	}
	return nil
}

// validateClock accepts "HH:MM" 24-hour clock strings.
func validateClock(clock string) error {
	if _, err := time.Parse("15:04", clock); err != nil {
		return fmt.Errorf("expected HH:MM, got %q", clock)
	}
	return nil
}
