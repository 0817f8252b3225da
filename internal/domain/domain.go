package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyTicker      = errors.New("ticker cannot be empty")
	ErrNotFound         = errors.New("series not found")
	ErrRateLimited      = errors.New("rate limited by data provider")
	ErrInsufficientData = errors.New("insufficient data rows")
)

type Exchange string

const (
	ExchangeLSE    Exchange = "LSE"
	ExchangeNASDAQ Exchange = "NASDAQ"
	ExchangeNYSE   Exchange = "NYSE"
	ExchangeXETRA  Exchange = "XETRA"
	ExchangeEUREX  Exchange = "EUREX"
)

func (e Exchange) IsValid() bool {
	switch e {
	case ExchangeLSE, ExchangeNASDAQ, ExchangeNYSE, ExchangeXETRA, ExchangeEUREX:
		return true
	}
	return false
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyEUR Currency = "EUR"
)

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyUSD, CurrencyGBP, CurrencyEUR:
		return true
	}
	return false
}

type AssetType string

const (
	AssetStock AssetType = "stock"
	AssetFund  AssetType = "fund"
)

// Asset is an immutable venue-and-currency-qualified representation of a
// ticker. Construct via NewAsset/NewStock/NewFund; a classification change
// means a new Asset, never a mutation.
type Asset struct {
	Symbol           string    `json:"symbol"`
	Exchange         Exchange  `json:"exchange"`
	Currency         Currency  `json:"currency"`
	DataSourceSymbol string    `json:"data_source_symbol"`
	Type             AssetType `json:"type"`
}

func NewAsset(symbol string, exchange Exchange, currency Currency, dataSourceSymbol string, assetType AssetType) (Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Asset{}, ErrEmptyTicker
	}
	if !exchange.IsValid() {
		return Asset{}, fmt.Errorf("unsupported exchange: %s", exchange)
	}
	if !currency.IsValid() {
		return Asset{}, fmt.Errorf("unsupported currency: %s", currency)
	}
	dataSourceSymbol = strings.TrimSpace(dataSourceSymbol)
	if dataSourceSymbol == "" {
		dataSourceSymbol = symbol
	}
	// LSE instruments carry the ".L" suffix on the data-source side; pricing
	// an LSE symbol without it silently fetches a different venue.
	if exchange == ExchangeLSE && !strings.HasSuffix(dataSourceSymbol, ".L") {
		return Asset{}, fmt.Errorf("LSE data source symbol must end with .L: %s", dataSourceSymbol)
	}
	return Asset{
		Symbol:           symbol,
		Exchange:         exchange,
		Currency:         currency,
		DataSourceSymbol: dataSourceSymbol,
		Type:             assetType,
	}, nil
}

func NewStock(symbol string, exchange Exchange, currency Currency, dataSourceSymbol string) (Asset, error) {
	return NewAsset(symbol, exchange, currency, dataSourceSymbol, AssetStock)
}

func NewFund(symbol string, exchange Exchange, currency Currency, dataSourceSymbol string) (Asset, error) {
	return NewAsset(symbol, exchange, currency, dataSourceSymbol, AssetFund)
}

// DisplayName renders "SGLN (LSE, GBP)".
func (a Asset) DisplayName() string {
	return fmt.Sprintf("%s (%s, %s)", a.Symbol, a.Exchange, a.Currency)
}

type RuleType string

const (
	RulePriceDropDay RuleType = "price_drop_day"
	RuleRSILow       RuleType = "rsi_low"
	RuleBelowSMA200  RuleType = "below_sma200"
)

var RuleTypes = []RuleType{RulePriceDropDay, RuleRSILow, RuleBelowSMA200}

func (t RuleType) IsValid() bool {
	switch t {
	case RulePriceDropDay, RuleRSILow, RuleBelowSMA200:
		return true
	}
	return false
}

type AlertRule struct {
	ID        int64    `json:"id"`
	UserID    int64    `json:"user_id"`
	Ticker    string   `json:"ticker"`
	RuleType  RuleType `json:"rule_type"`
	Threshold float64  `json:"threshold"`
	Enabled   bool     `json:"enabled"`
}

// AlertSettings holds per-user notification preferences. Empty QuietStart or
// QuietEnd means no quiet-hours window is configured.
type AlertSettings struct {
	UserID           int64  `json:"user_id"`
	Enabled          bool   `json:"enabled"`
	Timezone         string `json:"timezone"`
	QuietStart       string `json:"quiet_start,omitempty"`
	QuietEnd         string `json:"quiet_end,omitempty"`
	CheckIntervalSec int    `json:"check_interval_sec"`
	MaxAlertsPerDay  int    `json:"max_alerts_per_day"`
}

// SettingsUpdate is a typed partial update: nil fields are left untouched.
type SettingsUpdate struct {
	Enabled          *bool
	Timezone         *string
	QuietStart       *string
	QuietEnd         *string
	CheckIntervalSec *int
	MaxAlertsPerDay  *int
}

func (u SettingsUpdate) IsZero() bool {
	return u.Enabled == nil && u.Timezone == nil && u.QuietStart == nil &&
		u.QuietEnd == nil && u.CheckIntervalSec == nil && u.MaxAlertsPerDay == nil
}

// AlertState tracks the last trigger per (user, ticker, rule_type) key.
// LastAlertDate is an ISO YYYY-MM-DD date; the daily counter only applies to
// that date and restarts at 1 on the first trigger of a new date.
type AlertState struct {
	LastTriggeredAt    time.Time `json:"last_triggered_at"`
	LastTriggeredValue float64   `json:"last_triggered_value"`
	AlertsToday        int       `json:"alerts_today"`
	LastAlertDate      string    `json:"last_alert_date"`
}

// AlertEvent is ephemeral: produced by the engine, handed straight to the
// delivery layer, never persisted or retried.
type AlertEvent struct {
	UserID    int64    `json:"user_id"`
	Ticker    string   `json:"ticker"`
	RuleType  RuleType `json:"rule_type"`
	Triggered bool     `json:"triggered"`
	Message   string   `json:"message"`
	Value     float64  `json:"value"`
}

// SeriesRow is one bar of an indicator-augmented price series. RSI and SMA200
// are nil until the provider has enough history to compute them.
type SeriesRow struct {
	Time   time.Time `json:"time"`
	Close  float64   `json:"close"`
	RSI    *float64  `json:"rsi,omitempty"`
	SMA200 *float64  `json:"sma_200,omitempty"`
}

type Series struct {
	Symbol string      `json:"symbol"`
	Rows   []SeriesRow `json:"rows"`
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// Last returns the most recent row, or false for an empty series.
func (s *Series) Last() (SeriesRow, bool) {
	if s.Len() == 0 {
		return SeriesRow{}, false
	}
	return s.Rows[len(s.Rows)-1], true
}
