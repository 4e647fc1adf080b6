// Package quote defines the market-data contract consumed by the ledger
// engine and an HTTP client for the Yahoo-style chart/options endpoints.
package quote

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stonkbot/ledger-engine/internal/model"
)

// Range and interval granularities accepted by the chart endpoint.
const (
	RangeDay   = "1d"
	RangeWeek  = "5d"
	RangeMonth = "1mo"

	IntervalMinute     = "1m"
	IntervalFiveMinute = "5m"
	IntervalHour       = "1h"
)

// Provider retrieves live market data. A (nil, nil) return signals
// "ticker not found or upstream returned nothing"; the caller treats it
// the same as an error and never mutates state on it.
type Provider interface {
	// GetQuote retrieves a ranged chart quote for a ticker.
	GetQuote(ctx context.Context, ticker, rng, interval string) (*ChartQuote, error)

	// GetOptionsChain retrieves the options chain for an underlying,
	// including the underlying's own embedded quote.
	GetOptionsChain(ctx context.Context, ticker string) (*OptionsChain, error)
}

// ChartMeta carries the quote fields the engine reads from a chart result.
type ChartMeta struct {
	Symbol             string          `json:"symbol"`
	ExchangeName       string          `json:"exchangeName"`
	Currency           string          `json:"currency"`
	RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
	ChartPreviousClose decimal.Decimal `json:"chartPreviousClose"`
	PreviousClose      decimal.Decimal `json:"previousClose"`
}

// ChartQuote is a ranged price series for one ticker.
type ChartQuote struct {
	Meta       ChartMeta `json:"meta"`
	Timestamps []int64   `json:"timestamp"`
}

// OptionContract is a single listed contract from an options chain.
type OptionContract struct {
	ContractSymbol string          `json:"contractSymbol"`
	Strike         decimal.Decimal `json:"strike"`
	Currency       string          `json:"currency"`
	LastPrice      decimal.Decimal `json:"lastPrice"`
	Bid            decimal.Decimal `json:"bid"`
	Ask            decimal.Decimal `json:"ask"`
	Expiration     int64           `json:"expiration"`
	InTheMoney     bool            `json:"inTheMoney"`
}

// OptionExpiry groups calls and puts for one expiration date.
type OptionExpiry struct {
	ExpirationDate int64            `json:"expirationDate"`
	Calls          []OptionContract `json:"calls"`
	Puts           []OptionContract `json:"puts"`
}

// UnderlyingQuote is the quote embedded in an options chain response.
type UnderlyingQuote struct {
	Symbol                     string          `json:"symbol"`
	DisplayName                string          `json:"displayName"`
	ShortName                  string          `json:"shortName"`
	RegularMarketPrice         decimal.Decimal `json:"regularMarketPrice"`
	RegularMarketPreviousClose decimal.Decimal `json:"regularMarketPreviousClose"`
}

// Name returns the best available display name for the underlying.
func (q UnderlyingQuote) Name() string {
	if q.DisplayName != "" {
		return q.DisplayName
	}
	if q.ShortName != "" {
		return q.ShortName
	}
	return q.Symbol
}

// OptionsChain is the options listing for one underlying.
type OptionsChain struct {
	UnderlyingSymbol string          `json:"underlyingSymbol"`
	Quote            UnderlyingQuote `json:"quote"`
	Strikes          []decimal.Decimal `json:"strikes"`
	ExpirationDates  []int64         `json:"expirationDates"`
	Options          []OptionExpiry  `json:"options"`
}

// Security is the tagged stock/option variant carried from the point of
// quote resolution onward, so downstream code never re-derives the kind
// from structure.
type Security struct {
	Kind   model.SecurityKind
	Stock  *ChartQuote     // set when Kind == KindStock
	Option *OptionContract // set when Kind == KindOption
}

// StockSecurity wraps a chart quote as a tradable security.
func StockSecurity(q *ChartQuote) Security {
	return Security{Kind: model.KindStock, Stock: q}
}

// OptionSecurity wraps an option contract as a tradable security.
func OptionSecurity(c *OptionContract) Security {
	return Security{Kind: model.KindOption, Option: c}
}

// Ticker returns the identifier lots are keyed by: the stock symbol, or
// the full contract symbol for options.
func (s Security) Ticker() string {
	if s.Kind == model.KindOption {
		return s.Option.ContractSymbol
	}
	return s.Stock.Meta.Symbol
}

// UnitPrice returns the live per-unit price: regular market price for
// stock, the contract's own last price for options.
func (s Security) UnitPrice() decimal.Decimal {
	if s.Kind == model.KindOption {
		return s.Option.LastPrice
	}
	return s.Stock.Meta.RegularMarketPrice
}
