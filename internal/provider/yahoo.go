// Package provider fetches daily price history from the Yahoo Finance chart
// API and augments it with the indicator columns the rule evaluators read.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	rsiPeriod      = 14
	smaPeriod      = 200
)

// SeriesProvider is the market-data dependency of the alert scheduler.
type SeriesProvider interface {
	GetSeries(ctx context.Context, symbol, rng, interval string, minRows int) (*domain.Series, error)
}

type YahooProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewYahooProvider(tracer trace.Tracer) *YahooProvider {
	return &YahooProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		tracer:  tracer,
	}
}

// NewYahooProviderWithBaseURL exists for tests against a local HTTP server.
func NewYahooProviderWithBaseURL(tracer trace.Tracer, baseURL string) *YahooProvider {
	p := NewYahooProvider(tracer)
	p.baseURL = baseURL
	return p
}

// yahooChart is the chart API response envelope.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []any `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v any) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// GetSeries fetches the close series for one data-source symbol and attaches
// RSI and long-average columns. Fewer than minRows usable rows reports
// domain.ErrInsufficientData so callers can distinguish thin listings from
// transport failures.
func (p *YahooProvider) GetSeries(ctx context.Context, symbol, rng, interval string, minRows int) (*domain.Series, error) {
	ctx, span := p.tracer.Start(ctx, "provider.get-series")
	defer span.End()

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		p.baseURL, url.PathEscape(symbol), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("chart read body: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("chart fetch %s: %w", symbol, domain.ErrRateLimited)
	case http.StatusNotFound:
		return nil, fmt.Errorf("chart fetch %s: %w", symbol, domain.ErrNotFound)
	default:
		return nil, fmt.Errorf("chart fetch %s: status %d, body: %s", symbol, resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("chart decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error for %s (%s): %w",
			symbol, chart.Chart.Error.Code, domain.ErrNotFound)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart fetch %s: %w", symbol, domain.ErrNotFound)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	rows := make([]domain.SeriesRow, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		c := toFloat(quote.Close[i])
		if c == 0 {
			continue // null bars on holidays
		}
		rows = append(rows, domain.SeriesRow{Time: time.Unix(ts, 0).UTC(), Close: c})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })

	if len(rows) < minRows {
		return nil, fmt.Errorf("chart fetch %s: %d rows: %w", symbol, len(rows), domain.ErrInsufficientData)
	}

	attachIndicators(rows)
	return &domain.Series{Symbol: symbol, Rows: rows}, nil
}

// attachIndicators fills the RSI and SMA columns in place; rows without
// enough history keep nil columns and the evaluators report that themselves.
func attachIndicators(rows []domain.SeriesRow) {
	closes := make([]float64, len(rows))
	for i := range rows {
		closes[i] = rows[i].Close
	}

	rsi := rsiSeries(closes, rsiPeriod)
	for i := range rows {
		if rsi != nil && !math.IsNaN(rsi[i]) {
			v := rsi[i]
			rows[i].RSI = &v
		}
	}

	sma := smaSeries(closes, smaPeriod)
	for i := range rows {
		if sma != nil && !math.IsNaN(sma[i]) {
			v := sma[i]
			rows[i].SMA200 = &v
		}
	}
}

func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}

	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func smaSeries(closes []float64, period int) []float64 {
	if len(closes) < period {
		return nil
	}
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	var sum float64
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			series[i] = sum / float64(period)
		}
	}
	return series
}
