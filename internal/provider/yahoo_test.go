package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func chartBody(closes []any) string {
	var ts []string
	var cs []string
	for i, c := range closes {
		ts = append(ts, fmt.Sprintf("%d", 86400*(i+1)))
		if c == nil {
			cs = append(cs, "null")
		} else {
			cs = append(cs, fmt.Sprintf("%v", c))
		}
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`,
		strings.Join(ts, ","), strings.Join(cs, ","))
}

func TestGetSeriesParsesChart(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		fmt.Fprint(w, chartBody([]any{100.0, nil, 94.0}))
	}))
	defer srv.Close()

	p := NewYahooProviderWithBaseURL(testTracer(), srv.URL)
	series, err := p.GetSeries(context.Background(), "VWRA.L", "1y", "1d", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotPath, "/v8/finance/chart/VWRA.L") || !strings.Contains(gotPath, "range=1y") {
		t.Fatalf("unexpected request path: %s", gotPath)
	}
	if series.Len() != 2 {
		t.Fatalf("expected null bar skipped, got %d rows", series.Len())
	}
	if series.Rows[0].Close != 100 || series.Rows[1].Close != 94 {
		t.Fatalf("unexpected closes: %+v", series.Rows)
	}
	if !series.Rows[0].Time.Before(series.Rows[1].Time) {
		t.Fatal("expected rows sorted by time")
	}
}

func TestGetSeriesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewYahooProviderWithBaseURL(testTracer(), srv.URL)
	if _, err := p.GetSeries(context.Background(), "VWRA.L", "1y", "1d", 2); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGetSeriesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewYahooProviderWithBaseURL(testTracer(), srv.URL)
	if _, err := p.GetSeries(context.Background(), "NOPE", "1y", "1d", 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetSeriesAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer srv.Close()

	p := NewYahooProviderWithBaseURL(testTracer(), srv.URL)
	if _, err := p.GetSeries(context.Background(), "NOPE", "1y", "1d", 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for api error envelope, got %v", err)
	}
}

func TestGetSeriesInsufficientRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody([]any{100.0}))
	}))
	defer srv.Close()

	p := NewYahooProviderWithBaseURL(testTracer(), srv.URL)
	if _, err := p.GetSeries(context.Background(), "THIN", "1y", "1d", 2); !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestRSISeriesMatchesWilderSmoothing(t *testing.T) {
	closes := make([]float64, 0, 30)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100+float64(i%5))
	}
	series := rsiSeries(closes, 14)
	if series == nil {
		t.Fatal("expected an rsi series")
	}
	for i := 0; i < 14; i++ {
		if !math.IsNaN(series[i]) {
			t.Fatalf("expected NaN before the warm-up period at %d", i)
		}
	}
	last := series[len(series)-1]
	if math.IsNaN(last) || last < 0 || last > 100 {
		t.Fatalf("rsi out of range: %f", last)
	}
}

func TestRSISeriesAllGainsSaturates(t *testing.T) {
	closes := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100+float64(i))
	}
	series := rsiSeries(closes, 14)
	if got := series[len(series)-1]; got != 100 {
		t.Fatalf("expected rsi 100 for monotonic gains, got %f", got)
	}
}

func TestSMASeriesRollingWindow(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	series := smaSeries(closes, 3)
	if series == nil {
		t.Fatal("expected an sma series")
	}
	if !math.IsNaN(series[0]) || !math.IsNaN(series[1]) {
		t.Fatal("expected NaN before the window fills")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if math.Abs(series[i+2]-w) > 1e-9 {
			t.Fatalf("sma[%d]: expected %f, got %f", i+2, w, series[i+2])
		}
	}
	if smaSeries([]float64{1, 2}, 3) != nil {
		t.Fatal("expected nil for fewer closes than the window")
	}
}

func TestAttachIndicatorsShortSeriesKeepsNilColumns(t *testing.T) {
	rows := []domain.SeriesRow{{Close: 100}, {Close: 94}}
	attachIndicators(rows)
	if rows[1].RSI != nil || rows[1].SMA200 != nil {
		t.Fatalf("expected nil indicator columns for a short series, got %+v", rows[1])
	}
}
