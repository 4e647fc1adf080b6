package portfolio

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/stonkbot/ledger-engine/internal/metrics"
	"github.com/stonkbot/ledger-engine/internal/model"
	"github.com/stonkbot/ledger-engine/internal/quote"
)

// PerformanceEntry is one ticker's line in the portfolio overview,
// sorted by day change.
type PerformanceEntry struct {
	Ticker    string             `json:"ticker"`
	Name      string             `json:"name"`
	Kind      model.SecurityKind `json:"kind"`
	LastPrice decimal.Decimal    `json:"last_price"`
	DayChange decimal.Decimal    `json:"day_change"`
}

// Overview is the aggregated live view of a profile. Tickers the quote
// provider knows nothing about are skipped rather than failing the
// whole computation.
type Overview struct {
	Balance      decimal.Decimal    `json:"balance"`
	DayPL        decimal.Decimal    `json:"day_pl"`
	UnrealizedPL decimal.Decimal    `json:"unrealized_pl"`
	ProfitLoss   decimal.Decimal    `json:"profit_loss"`
	CostBasis    decimal.Decimal    `json:"cost_basis"`
	Shares       int64              `json:"shares"`
	Contracts    int64              `json:"contracts"`
	Performance  []PerformanceEntry `json:"performance"`
}

// GetOverview loads a profile and prices every open lot against live
// quotes, fetched concurrently per distinct ticker.
func (s *Service) GetOverview(ctx context.Context, userID string) (*Overview, error) {
	profile, err := s.store.LoadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	quotes := s.fetchQuotes(ctx, distinctTickers(profile.Lots))

	ov := &Overview{
		Balance:      decimal.Zero,
		DayPL:        decimal.Zero,
		UnrealizedPL: decimal.Zero,
		CostBasis:    profile.CostBasis,
	}

	seen := make(map[string]bool)
	for _, lot := range profile.Lots {
		q, ok := quotes[lot.Ticker]
		if !ok {
			continue
		}

		live := q.Meta.RegularMarketPrice
		prevClose := previousClose(q)
		qty := decimal.NewFromInt(lot.Quantity)

		ov.Balance = ov.Balance.Add(live.Mul(qty))
		ov.DayPL = ov.DayPL.Add(live.Sub(prevClose))
		ov.UnrealizedPL = ov.UnrealizedPL.Add(live.Sub(lot.CreationPrice).Mul(qty))

		switch lot.Kind {
		case model.KindOption:
			ov.Contracts += lot.Quantity
		default:
			ov.Shares += lot.Quantity
		}

		if !seen[lot.Ticker] {
			seen[lot.Ticker] = true
			ov.Performance = append(ov.Performance, PerformanceEntry{
				Ticker:    lot.Ticker,
				Name:      lot.Name,
				Kind:      lot.Kind,
				LastPrice: live,
				DayChange: live.Sub(prevClose),
			})
		}
	}

	ov.ProfitLoss = profile.GlobalPL.Add(ov.UnrealizedPL)

	// Best day first; equal movers keep acquisition order.
	sort.SliceStable(ov.Performance, func(i, j int) bool {
		return ov.Performance[i].DayChange.GreaterThan(ov.Performance[j].DayChange)
	})

	return ov, nil
}

// Asset is a single open lot annotated with its unrealized gain/loss at
// the current market price.
type Asset struct {
	model.Lot
	GainLoss decimal.Decimal `json:"gain_loss"`
}

// SecurityOverview breaks one ticker's holdings down by kind.
type SecurityOverview struct {
	Ticker          string          `json:"ticker"`
	Name            string          `json:"name"`
	LastPrice       decimal.Decimal `json:"last_price"`
	Shares          []Asset         `json:"shares"`
	Contracts       []Asset         `json:"contracts"`
	AvgShareCost    decimal.Decimal `json:"avg_share_cost"`
	AvgContractCost decimal.Decimal `json:"avg_contract_cost"`
}

// GetTickerOverview reports a user's holdings in one ticker. Returns
// (nil, nil) when the user holds no lots for it.
func (s *Service) GetTickerOverview(ctx context.Context, userID, ticker string) (*SecurityOverview, error) {
	profile, err := s.store.LoadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	open := profile.OpenLots(ticker)
	if len(open) == 0 {
		return nil, nil
	}

	q, err := s.quotes.GetQuote(ctx, ticker, quote.RangeDay, quote.IntervalMinute)
	if err != nil || q == nil {
		metrics.QuoteFetchErrors.Inc()
		return nil, ErrDataUnavailable
	}
	live := q.Meta.RegularMarketPrice

	so := &SecurityOverview{
		Ticker:          ticker,
		Name:            open[0].Name,
		LastPrice:       live,
		AvgShareCost:    decimal.Zero,
		AvgContractCost: decimal.Zero,
	}

	var shareCost, contractCost decimal.Decimal
	var shareQty, contractQty int64
	for _, lot := range open {
		qty := decimal.NewFromInt(lot.Quantity)
		asset := Asset{
			Lot:      lot,
			GainLoss: live.Sub(lot.CreationPrice).Mul(qty),
		}
		switch lot.Kind {
		case model.KindOption:
			so.Contracts = append(so.Contracts, asset)
			contractCost = contractCost.Add(lot.CreationPrice.Mul(qty))
			contractQty += lot.Quantity
		default:
			so.Shares = append(so.Shares, asset)
			shareCost = shareCost.Add(lot.CreationPrice.Mul(qty))
			shareQty += lot.Quantity
		}
	}

	if shareQty > 0 {
		so.AvgShareCost = shareCost.Div(decimal.NewFromInt(shareQty)).Round(notionalScale)
	}
	if contractQty > 0 {
		so.AvgContractCost = contractCost.Div(decimal.NewFromInt(contractQty)).Round(notionalScale)
	}

	return so, nil
}

// fetchQuotes retrieves 1d/1m chart quotes for each ticker concurrently.
// Tickers that error or come back empty are simply absent from the map.
func (s *Service) fetchQuotes(ctx context.Context, tickers []string) map[string]*quote.ChartQuote {
	quotes := make(map[string]*quote.ChartQuote, len(tickers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			q, err := s.quotes.GetQuote(ctx, ticker, quote.RangeDay, quote.IntervalMinute)
			if err != nil || q == nil {
				if err != nil {
					metrics.QuoteFetchErrors.Inc()
					slog.Warn("quote fetch failed", "ticker", ticker, "error", err)
				}
				return
			}
			mu.Lock()
			quotes[ticker] = q
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()

	return quotes
}

func distinctTickers(open []model.Lot) []string {
	seen := make(map[string]bool, len(open))
	var tickers []string
	for _, lot := range open {
		if !seen[lot.Ticker] {
			seen[lot.Ticker] = true
			tickers = append(tickers, lot.Ticker)
		}
	}
	return tickers
}

func previousClose(q *quote.ChartQuote) decimal.Decimal {
	if !q.Meta.ChartPreviousClose.IsZero() {
		return q.Meta.ChartPreviousClose
	}
	return q.Meta.PreviousClose
}
