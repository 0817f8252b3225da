package rules

import (
	"math"
	"testing"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"
)

func seriesFromCloses(closes ...float64) *domain.Series {
	s := &domain.Series{Symbol: "TEST"}
	base := time.Unix(0, 0).UTC()
	for i, c := range closes {
		s.Rows = append(s.Rows, domain.SeriesRow{
			Time:  base.Add(time.Duration(i) * 24 * time.Hour),
			Close: c,
		})
	}
	return s
}

func TestEvalPriceDropDayTriggers(t *testing.T) {
	result := EvalPriceDropDay(seriesFromCloses(100, 94), 5.0)
	if !result.Triggered {
		t.Fatal("expected trigger for 6% drop against 5% threshold")
	}
	if math.Abs(result.CurrentValue-6.0) > 1e-9 {
		t.Fatalf("expected drop of 6.0, got %f", result.CurrentValue)
	}
}

func TestEvalPriceDropDayBelowThreshold(t *testing.T) {
	result := EvalPriceDropDay(seriesFromCloses(100, 96), 5.0)
	if result.Triggered {
		t.Fatal("expected no trigger for 4% drop against 5% threshold")
	}
	if math.Abs(result.CurrentValue-4.0) > 1e-9 {
		t.Fatalf("expected drop of 4.0, got %f", result.CurrentValue)
	}
}

func TestEvalPriceDropDayInsufficientData(t *testing.T) {
	if result := EvalPriceDropDay(seriesFromCloses(100), 5.0); result.Triggered || result.Details == "" {
		t.Fatalf("expected non-triggered diagnostic result, got %+v", result)
	}
	if result := EvalPriceDropDay(nil, 5.0); result.Triggered || result.Details == "" {
		t.Fatalf("expected non-triggered diagnostic result for nil series, got %+v", result)
	}
}

func TestEvalPriceDropDayBadPrevClose(t *testing.T) {
	if result := EvalPriceDropDay(seriesFromCloses(0, 94), 5.0); result.Triggered {
		t.Fatal("expected no trigger when previous close is non-positive")
	}
}

func TestEvalRSILow(t *testing.T) {
	s := seriesFromCloses(100, 99)
	rsi := 25.0
	s.Rows[len(s.Rows)-1].RSI = &rsi

	result := EvalRSILow(s, 30)
	if !result.Triggered {
		t.Fatal("expected trigger for RSI 25 against threshold 30")
	}
	if result.CurrentValue != 25 {
		t.Fatalf("expected current value 25, got %f", result.CurrentValue)
	}

	rsi = 45
	if result := EvalRSILow(s, 30); result.Triggered {
		t.Fatal("expected no trigger for RSI 45")
	}
}

func TestEvalRSILowMissingColumn(t *testing.T) {
	if result := EvalRSILow(seriesFromCloses(100, 99), 30); result.Triggered || result.Details == "" {
		t.Fatalf("expected diagnostic result without RSI column, got %+v", result)
	}
	if result := EvalRSILow(nil, 30); result.Triggered {
		t.Fatal("expected no trigger for nil series")
	}
}

func TestEvalBelowSMA200(t *testing.T) {
	s := seriesFromCloses(100, 90)
	sma := 100.0
	s.Rows[len(s.Rows)-1].SMA200 = &sma

	result := EvalBelowSMA200(s)
	if !result.Triggered {
		t.Fatal("expected trigger for close 90 below SMA 100")
	}
	if math.Abs(result.CurrentValue-10.0) > 1e-9 {
		t.Fatalf("expected 10%% distance below average, got %f", result.CurrentValue)
	}
}

func TestEvalBelowSMA200NotTriggered(t *testing.T) {
	s := seriesFromCloses(100, 110)
	sma := 100.0
	s.Rows[len(s.Rows)-1].SMA200 = &sma

	if result := EvalBelowSMA200(s); result.Triggered {
		t.Fatal("expected no trigger for close above SMA")
	}
}

func TestEvalBelowSMA200NonPositiveAverage(t *testing.T) {
	s := seriesFromCloses(100, 90)
	sma := 0.0
	s.Rows[len(s.Rows)-1].SMA200 = &sma

	result := EvalBelowSMA200(s)
	if result.CurrentValue != 0 {
		t.Fatalf("expected zero distance for non-positive average, got %f", result.CurrentValue)
	}
}

func TestEvalBelowSMA200MissingColumn(t *testing.T) {
	if result := EvalBelowSMA200(seriesFromCloses(100, 90)); result.Triggered || result.Details == "" {
		t.Fatalf("expected diagnostic result without SMA column, got %+v", result)
	}
}
