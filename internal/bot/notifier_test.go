package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type stubSender struct {
	sent []string
	to   []int64
	err  error
}

func (s *stubSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	if chat, ok := to.(*tele.Chat); ok {
		s.to = append(s.to, chat.ID)
	}
	if text, ok := what.(string); ok {
		s.sent = append(s.sent, text)
	}
	return &tele.Message{}, nil
}

func TestNotifierSendsToUserChat(t *testing.T) {
	sender := &stubSender{}
	n := NewNotifier(sender)

	if err := n.SendAlert(context.Background(), 42, "📉 VWRA"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.to) != 1 || sender.to[0] != 42 {
		t.Fatalf("expected delivery to chat 42, got %v", sender.to)
	}
	if sender.sent[0] != "📉 VWRA" {
		t.Fatalf("unexpected message: %s", sender.sent[0])
	}
}

func TestNotifierPropagatesSendError(t *testing.T) {
	n := NewNotifier(&stubSender{err: errors.New("blocked")})

	if err := n.SendAlert(context.Background(), 42, "x"); err == nil {
		t.Fatal("expected send error")
	}
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	if err := n.SendAlert(context.Background(), 42, "x"); err != nil {
		t.Fatalf("expected nil notifier no-op, got %v", err)
	}
}

func TestParseAlertMode(t *testing.T) {
	for raw, want := range map[string]string{"on": "on", "OFF": "off", "status": "status"} {
		got, err := parseAlertMode([]string{raw})
		if err != nil || got != want {
			t.Fatalf("parseAlertMode(%q) = %q, %v", raw, got, err)
		}
	}
	if got, err := parseAlertMode(nil); err != nil || got != "status" {
		t.Fatalf("expected default status mode, got %q, %v", got, err)
	}
	if _, err := parseAlertMode([]string{"maybe"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestFormatRuleOmitsThresholdForSMARule(t *testing.T) {
	rule := domain.AlertRule{Ticker: "VWRA", RuleType: domain.RuleBelowSMA200, Enabled: true}
	if got := formatRule(rule); strings.Contains(got, "0 [") {
		t.Fatalf("expected no threshold in %q", got)
	}

	rule = domain.AlertRule{Ticker: "VWRA", RuleType: domain.RulePriceDropDay, Threshold: 5, Enabled: false}
	got := formatRule(rule)
	if !strings.Contains(got, "5") || !strings.Contains(got, "[off]") {
		t.Fatalf("unexpected format: %q", got)
	}
}

func TestFormatSettings(t *testing.T) {
	s := domain.AlertSettings{
		Enabled:          true,
		QuietStart:       "22:00",
		QuietEnd:         "09:00",
		CheckIntervalSec: 900,
		MaxAlertsPerDay:  8,
	}
	got := formatSettings(s)
	if !strings.Contains(got, "ON") || !strings.Contains(got, "22:00-09:00") {
		t.Fatalf("unexpected settings format: %q", got)
	}

	s.Enabled = false
	s.QuietStart = ""
	got = formatSettings(s)
	if !strings.Contains(got, "OFF") || !strings.Contains(got, "not set") {
		t.Fatalf("unexpected settings format: %q", got)
	}
}
