package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type RuleManager interface {
	AddRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType, threshold float64) (domain.AlertRule, error)
	ListRules(ctx context.Context, userID int64) ([]domain.AlertRule, error)
	RemoveRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error)
	ToggleRule(ctx context.Context, userID int64, ticker string, ruleType domain.RuleType) (bool, error)
	GetSettings(ctx context.Context, userID int64) (domain.AlertSettings, error)
	UpdateSettings(ctx context.Context, userID int64, upd domain.SettingsUpdate) error
	SetAlertsEnabled(ctx context.Context, userID int64, enabled bool) error
	ResolveTicker(ticker string) (domain.Asset, error)
}

func StartTelegramBot(alertService RuleManager) *Notifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	notifier := NewNotifier(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/alert", func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("Unable to detect user")
		}
		return handleAlertCommand(c, alertService, sender.ID, c.Args())
	})

	b.Handle("/alerts", func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("Unable to detect user")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		ctx := context.Background()
		switch mode {
		case "on":
			if err := alertService.SetAlertsEnabled(ctx, sender.ID, true); err != nil {
				return c.Send(fmt.Sprintf("Error: %v", err))
			}
			return c.Send("Alerts enabled.")
		case "off":
			if err := alertService.SetAlertsEnabled(ctx, sender.ID, false); err != nil {
				return c.Send(fmt.Sprintf("Error: %v", err))
			}
			return c.Send("Alerts disabled.")
		default:
			settings, err := alertService.GetSettings(ctx, sender.ID)
			if err != nil {
				return c.Send(fmt.Sprintf("Error: %v", err))
			}
			return c.Send(formatSettings(settings))
		}
	})

	b.Handle("/quiet", func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return c.Send("Unable to detect user")
		}
		return handleQuietCommand(c, alertService, sender.ID, c.Args())
	})

	log.Println("Telegram bot started")
	go b.Start()
	return notifier
}

func handleAlertCommand(c tele.Context, svc RuleManager, userID int64, args []string) error {
	const usage = "Usage: /alert add VWRA price_drop_day 5 | /alert del VWRA price_drop_day | /alert toggle VWRA price_drop_day | /alert list"

	if len(args) == 0 {
		return c.Send(usage)
	}
	ctx := context.Background()

	switch strings.ToLower(args[0]) {
	case "list":
		rules, err := svc.ListRules(ctx, userID)
		if err != nil {
			return c.Send(fmt.Sprintf("Error: %v", err))
		}
		if len(rules) == 0 {
			return c.Send("No alert rules yet. Add one with /alert add VWRA price_drop_day 5")
		}
		return c.Send(formatRules(rules))

	case "add":
		if len(args) < 3 {
			return c.Send(usage)
		}
		ruleType := domain.RuleType(strings.ToLower(args[2]))
		threshold := 0.0
		if len(args) >= 4 {
			v, err := strconv.ParseFloat(args[3], 64)
			if err != nil {
				return c.Send(fmt.Sprintf("Invalid threshold: %s", args[3]))
			}
			threshold = v
		}
		rule, err := svc.AddRule(ctx, userID, args[1], ruleType, threshold)
		if err != nil {
			return c.Send(fmt.Sprintf("Error: %v", err))
		}
		asset, err := svc.ResolveTicker(rule.Ticker)
		if err != nil {
			return c.Send(fmt.Sprintf("Added: %s", formatRule(rule)))
		}
		return c.Send(fmt.Sprintf("Added: %s\nTracking %s", formatRule(rule), asset.DisplayName()))

	case "del":
		if len(args) < 3 {
			return c.Send(usage)
		}
		removed, err := svc.RemoveRule(ctx, userID, args[1], domain.RuleType(strings.ToLower(args[2])))
		if err != nil {
			return c.Send(fmt.Sprintf("Error: %v", err))
		}
		if !removed {
			return c.Send("No such rule.")
		}
		return c.Send("Rule removed.")

	case "toggle":
		if len(args) < 3 {
			return c.Send(usage)
		}
		enabled, err := svc.ToggleRule(ctx, userID, args[1], domain.RuleType(strings.ToLower(args[2])))
		if err != nil {
			return c.Send(fmt.Sprintf("Error: %v", err))
		}
		if enabled {
			return c.Send("Rule enabled.")
		}
		return c.Send("Rule disabled.")

	default:
		return c.Send(usage)
	}
}

func handleQuietCommand(c tele.Context, svc RuleManager, userID int64, args []string) error {
	const usage = "Usage: /quiet 22:00 09:00 | /quiet off"

	ctx := context.Background()
	if len(args) == 1 && strings.EqualFold(args[0], "off") {
		empty := ""
		err := svc.UpdateSettings(ctx, userID, domain.SettingsUpdate{QuietStart: &empty, QuietEnd: &empty})
		if err != nil {
			return c.Send(fmt.Sprintf("Error: %v", err))
		}
		return c.Send("Quiet hours disabled.")
	}
	if len(args) != 2 {
		return c.Send(usage)
	}

	start, end := args[0], args[1]
	err := svc.UpdateSettings(ctx, userID, domain.SettingsUpdate{QuietStart: &start, QuietEnd: &end})
	if err != nil {
		return c.Send(fmt.Sprintf("Error: %v", err))
	}
	return c.Send(fmt.Sprintf("Quiet hours set: %s-%s UTC.", start, end))
}

func parseAlertMode(args []string) (string, error) {
	if len(args) == 0 {
		return "status", nil
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on":
		return "on", nil
	case "off":
		return "off", nil
	case "status":
		return "status", nil
	default:
		return "", fmt.Errorf("invalid mode")
	}
}

func formatSettings(s domain.AlertSettings) string {
	status := "OFF"
	if s.Enabled {
		status = "ON"
	}
	quiet := "not set"
	if s.QuietStart != "" && s.QuietEnd != "" {
		quiet = fmt.Sprintf("%s-%s UTC", s.QuietStart, s.QuietEnd)
	}
	return fmt.Sprintf(
		"Alerts: %s\nQuiet hours: %s\nCheck interval: %ds\nDaily cap: %d",
		status, quiet, s.CheckIntervalSec, s.MaxAlertsPerDay,
	)
}

func formatRule(r domain.AlertRule) string {
	state := "on"
	if !r.Enabled {
		state = "off"
	}
	switch r.RuleType {
	case domain.RuleBelowSMA200:
		return fmt.Sprintf("%s %s [%s]", r.Ticker, r.RuleType, state)
	default:
		return fmt.Sprintf("%s %s %g [%s]", r.Ticker, r.RuleType, r.Threshold, state)
	}
}

func formatRules(rules []domain.AlertRule) string {
	lines := make([]string, 0, len(rules)+1)
	lines = append(lines, "Your alert rules:")
	for _, r := range rules {
		lines = append(lines, formatRule(r))
	}
	return strings.Join(lines, "\n")
}
