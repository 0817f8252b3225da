// Package job runs the periodic alert evaluation cycle.
package job

import (
	"context"
	"log"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/alert"
	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCheckInterval  = 15 * time.Minute
	defaultCycleBackoff   = 30 * time.Second
	defaultMaxConcurrency = 4

	seriesRange    = "1y"
	seriesInterval = "1d"
	seriesMinRows  = 2
)

type RuleLister interface {
	ListEnabledRules(ctx context.Context) ([]domain.AlertRule, error)
}

type AssetResolver interface {
	Resolve(ticker string) (domain.Asset, error)
}

type SeriesFetcher interface {
	GetSeries(ctx context.Context, symbol, rng, interval string, minRows int) (*domain.Series, error)
}

type RuleEvaluator interface {
	EvaluateRule(ctx context.Context, rule domain.AlertRule, series *domain.Series) (*domain.AlertEvent, alert.Outcome, error)
}

type Notifier interface {
	SendAlert(ctx context.Context, userID int64, text string) error
}

// AlertChecker walks all enabled rules on a fixed cadence, fetching each
// distinct ticker once per cycle and pushing emitted events to the notifier.
type AlertChecker struct {
	tracer         trace.Tracer
	rules          RuleLister
	resolver       AssetResolver
	fetcher        SeriesFetcher
	evaluator      RuleEvaluator
	notifier       Notifier
	interval       time.Duration
	backoff        time.Duration
	maxConcurrency int
}

func NewAlertChecker(
	tracer trace.Tracer,
	rules RuleLister,
	resolver AssetResolver,
	fetcher SeriesFetcher,
	evaluator RuleEvaluator,
	notifier Notifier,
	interval time.Duration,
	backoff time.Duration,
	maxConcurrency int,
) *AlertChecker {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	if backoff <= 0 {
		backoff = defaultCycleBackoff
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &AlertChecker{
		tracer:         tracer,
		rules:          rules,
		resolver:       resolver,
		fetcher:        fetcher,
		evaluator:      evaluator,
		notifier:       notifier,
		interval:       interval,
		backoff:        backoff,
		maxConcurrency: maxConcurrency,
	}
}

// Start blocks until ctx is cancelled. A failed cycle retries after a short
// backoff instead of waiting out the full interval.
func (c *AlertChecker) Start(ctx context.Context) {
	log.Println("Alert checker starting...")

	for {
		wait := c.interval
		if err := c.RunCycle(ctx); err != nil {
			log.Printf("alert cycle error: %v", err)
			wait = c.backoff
		}

		select {
		case <-ctx.Done():
			log.Println("Alert checker stopped")
			return
		case <-time.After(wait):
		}
	}
}

// RunCycle evaluates every enabled rule once. Rules are grouped by ticker so
// one series fetch serves all rules watching the same symbol, and tickers are
// processed concurrently under a fixed limit. Per-ticker failures are logged
// and isolated; only the rule listing itself can fail the cycle.
func (c *AlertChecker) RunCycle(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "alert-job.run-cycle")
	defer span.End()

	rules, err := c.rules.ListEnabledRules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	byTicker := make(map[string][]domain.AlertRule)
	for _, rule := range rules {
		byTicker[rule.Ticker] = append(byTicker[rule.Ticker], rule)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)
	for ticker, group := range byTicker {
		g.Go(func() error {
			c.checkTicker(ctx, ticker, group)
			return nil
		})
	}
	return g.Wait()
}

func (c *AlertChecker) checkTicker(ctx context.Context, ticker string, rules []domain.AlertRule) {
	asset, err := c.resolver.Resolve(ticker)
	if err != nil {
		log.Printf("resolve %s failed, skipping %d rules: %v", ticker, len(rules), err)
		return
	}

	series, err := c.fetcher.GetSeries(ctx, asset.DataSourceSymbol, seriesRange, seriesInterval, seriesMinRows)
	if err != nil {
		// The engine records a no-data skip per rule; a fetch failure must
		// not look like a triggered-and-suppressed evaluation.
		log.Printf("series fetch for %s (%s) failed: %v", ticker, asset.DataSourceSymbol, err)
		series = nil
	}

	for _, rule := range rules {
		event, outcome, err := c.evaluator.EvaluateRule(ctx, rule, series)
		if err != nil {
			log.Printf("evaluate rule %d (%s %s) failed: %v", rule.ID, rule.Ticker, rule.RuleType, err)
			continue
		}
		if event == nil {
			if outcome != alert.OutcomeNotTriggered && outcome != alert.OutcomeEmitted {
				log.Printf("rule %d (%s %s): %s", rule.ID, rule.Ticker, rule.RuleType, outcome)
			}
			continue
		}
		if err := c.notifier.SendAlert(ctx, event.UserID, event.Message); err != nil {
			// Trigger state is already recorded; delivery failure only costs
			// this one message.
			log.Printf("send alert to user %d failed: %v", event.UserID, err)
		}
	}
}
