package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/resolver"

	"go.opentelemetry.io/otel/trace"
)

type stubRuleStore struct {
	addedTicker   string
	addedType     domain.RuleType
	addedValue    float64
	updates       []domain.SettingsUpdate
	removedTicker string
	toggled       bool
}

func (s *stubRuleStore) AddRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType, threshold float64) (domain.AlertRule, error) {
	s.addedTicker = ticker
	s.addedType = ruleType
	s.addedValue = threshold
	return domain.AlertRule{ID: 1, UserID: userID, Ticker: ticker, RuleType: ruleType, Threshold: threshold, Enabled: true}, nil
}

func (s *stubRuleStore) ListRulesForUser(ctx context.Context, userID int64) ([]domain.AlertRule, error) {
	return nil, nil
}

func (s *stubRuleStore) RemoveRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error) {
	s.removedTicker = ticker
	return true, nil
}

func (s *stubRuleStore) ToggleRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error) {
	s.toggled = true
	return true, nil
}

func (s *stubRuleStore) GetSettings(ctx context.Context, userID int64) (domain.AlertSettings, error) {
	return domain.AlertSettings{UserID: userID, Enabled: true}, nil
}

func (s *stubRuleStore) UpdateSettings(ctx context.Context, userID int64, upd domain.SettingsUpdate) error {
	s.updates = append(s.updates, upd)
	return nil
}

func newTestService(store *stubRuleStore) *AlertService {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	return NewAlertService(tracer, store, resolver.New(resolver.NewRegistry()))
}

func TestAddRuleNormalizesTicker(t *testing.T) {
	store := &stubRuleStore{}
	svc := newTestService(store)

	rule, err := svc.AddRule(context.Background(), 7, "  vwra ", domain.RulePriceDropDay, 5.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.addedTicker != "VWRA" || rule.Ticker != "VWRA" {
		t.Fatalf("expected normalized ticker VWRA, got %q", store.addedTicker)
	}
}

func TestAddRuleRejectsMalformedTicker(t *testing.T) {
	svc := newTestService(&stubRuleStore{})

	for _, raw := range []string{"BAD$TICKER", "WAYTOOLONGTICKER", "приве"} {
		if _, err := svc.AddRule(context.Background(), 7, raw, domain.RulePriceDropDay, 5.0); err == nil {
			t.Fatalf("expected rejection for %q", raw)
		}
	}
}

func TestAddRuleRejectsEmptyTicker(t *testing.T) {
	svc := newTestService(&stubRuleStore{})

	if _, err := svc.AddRule(context.Background(), 7, "   ", domain.RulePriceDropDay, 5.0); !errors.Is(err, domain.ErrEmptyTicker) {
		t.Fatalf("expected ErrEmptyTicker, got %v", err)
	}
}

func TestAddRuleRejectsUnknownType(t *testing.T) {
	svc := newTestService(&stubRuleStore{})

	if _, err := svc.AddRule(context.Background(), 7, "VWRA", "price_above_level", 5.0); err == nil {
		t.Fatal("expected rejection for unknown rule type")
	}
}

func TestAddRuleThresholdBounds(t *testing.T) {
	store := &stubRuleStore{}
	svc := newTestService(store)

	if _, err := svc.AddRule(context.Background(), 7, "VWRA", domain.RulePriceDropDay, 0); err == nil {
		t.Fatal("expected rejection for zero drop threshold")
	}
	if _, err := svc.AddRule(context.Background(), 7, "VWRA", domain.RuleRSILow, 150); err == nil {
		t.Fatal("expected rejection for rsi threshold above 100")
	}
	if _, err := svc.AddRule(context.Background(), 7, "VWRA", domain.RuleBelowSMA200, 0); err != nil {
		t.Fatalf("expected thresholdless rule to pass, got %v", err)
	}
}

func TestRemoveRuleNormalizesTicker(t *testing.T) {
	store := &stubRuleStore{}
	svc := newTestService(store)

	removed, err := svc.RemoveRule(context.Background(), 7, "vwra", domain.RulePriceDropDay)
	if err != nil || !removed {
		t.Fatalf("unexpected result: removed=%v err=%v", removed, err)
	}
	if store.removedTicker != "VWRA" {
		t.Fatalf("expected normalized ticker, got %q", store.removedTicker)
	}
}

func TestUpdateSettingsQuietBoundsMustPair(t *testing.T) {
	svc := newTestService(&stubRuleStore{})

	start := "22:00"
	if err := svc.UpdateSettings(context.Background(), 7, domain.SettingsUpdate{QuietStart: &start}); err == nil {
		t.Fatal("expected rejection when only one quiet bound is set")
	}
}

func TestUpdateSettingsValidatesClock(t *testing.T) {
	svc := newTestService(&stubRuleStore{})

	start := "late"
	end := "09:00"
	if err := svc.UpdateSettings(context.Background(), 7, domain.SettingsUpdate{QuietStart: &start, QuietEnd: &end}); err == nil {
		t.Fatal("expected rejection for malformed clock string")
	}
}

func TestUpdateSettingsAppliesValidUpdate(t *testing.T) {
	store := &stubRuleStore{}
	svc := newTestService(store)

	start := "21:00"
	end := "08:00"
	interval := 600
	err := svc.UpdateSettings(context.Background(), 7, domain.SettingsUpdate{
		QuietStart:       &start,
		QuietEnd:         &end,
		CheckIntervalSec: &interval,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updates) != 1 || *store.updates[0].QuietStart != "21:00" {
		t.Fatalf("expected update delegated, got %+v", store.updates)
	}
}

func TestUpdateSettingsRejectsShortInterval(t *testing.T) {
	svc := newTestService(&stubRuleStore{})

	interval := 30
	if err := svc.UpdateSettings(context.Background(), 7, domain.SettingsUpdate{CheckIntervalSec: &interval}); err == nil {
		t.Fatal("expected rejection for interval below 60s")
	}
}

func TestSetAlertsEnabled(t *testing.T) {
	store := &stubRuleStore{}
	svc := newTestService(store)

	if err := svc.SetAlertsEnabled(context.Background(), 7, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.updates) != 1 || store.updates[0].Enabled == nil || *store.updates[0].Enabled {
		t.Fatalf("expected enabled=false update, got %+v", store.updates)
	}
}

func TestValidTicker(t *testing.T) {
	valid := []string{"VWRA", "vwra.l", " BRK-B ", "9988"}
	for _, v := range valid {
		if !ValidTicker(v) {
			t.Fatalf("expected %q to be valid", v)
		}
	}
	invalid := []string{"", "WAYTOOLONGTICKER", "BAD$", "A B"}
	for _, v := range invalid {
		if ValidTicker(v) {
			t.Fatalf("expected %q to be invalid", v)
		}
	}
}
