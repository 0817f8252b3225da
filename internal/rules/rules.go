// Package rules holds the pure alert rule evaluators. Each evaluator inspects
// only the most recent one or two rows of an indicator-augmented series and
// never fails: a missing precondition yields triggered=false with a
// diagnostic, so the engine can call them speculatively.
package rules

import (
	"fmt"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"
)

type RuleResult struct {
	Triggered    bool
	CurrentValue float64
	Details      string
}

// EvalPriceDropDay triggers when the close-to-close drop reaches the
// threshold percentage. The reported value is signed: positive means a drop.
func EvalPriceDropDay(series *domain.Series, thresholdPercent float64) RuleResult {
	if series.Len() < 2 {
		return RuleResult{Details: "Недостаточно данных"}
	}

	prevClose := series.Rows[series.Len()-2].Close
	currClose := series.Rows[series.Len()-1].Close
	if prevClose <= 0 {
		return RuleResult{Details: "Неверные данные цены"}
	}

	dropPercent := (prevClose - currClose) / prevClose * 100
	return RuleResult{
		Triggered:    dropPercent >= thresholdPercent,
		CurrentValue: dropPercent,
		Details:      fmt.Sprintf("Падение: %.1f%% (порог: %g%%)", dropPercent, thresholdPercent),
	}
}

// EvalRSILow triggers when the latest pre-computed RSI is below the threshold.
func EvalRSILow(series *domain.Series, threshold float64) RuleResult {
	last, ok := series.Last()
	if !ok {
		return RuleResult{Details: "Нет данных RSI"}
	}
	if last.RSI == nil {
		return RuleResult{Details: "RSI не вычислен"}
	}

	rsi := *last.RSI
	return RuleResult{
		Triggered:    rsi < threshold,
		CurrentValue: rsi,
		Details:      fmt.Sprintf("RSI: %.0f (порог: %g)", rsi, threshold),
	}
}

// EvalBelowSMA200 triggers when the close sits below the pre-computed long
// moving average. The reported value is the percentage distance below it.
func EvalBelowSMA200(series *domain.Series) RuleResult {
	last, ok := series.Last()
	if !ok {
		return RuleResult{Details: "Нет данных SMA"}
	}
	if last.SMA200 == nil {
		return RuleResult{Details: "SMA200 не вычислена"}
	}

	sma := *last.SMA200
	triggered := last.Close < sma

	var distancePct float64
	if sma > 0 {
		distancePct = (sma - last.Close) / sma * 100
	}

	details := fmt.Sprintf("SMA200: %.2f", sma)
	if triggered {
		details = fmt.Sprintf("Цена ниже SMA200 на %.1f%%", distancePct)
	}
	return RuleResult{
		Triggered:    triggered,
		CurrentValue: distancePct,
		Details:      details,
	}
}
