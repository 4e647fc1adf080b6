package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

const chartBody = `{
	"chart": {
		"result": [{
			"meta": {
				"symbol": "GME",
				"exchangeName": "NYQ",
				"currency": "USD",
				"regularMarketPrice": 25.5,
				"chartPreviousClose": 24.0,
				"previousClose": 24.0
			},
			"timestamp": [1718900000, 1718900060]
		}],
		"error": null
	}
}`

const optionsBody = `{
	"optionChain": {
		"result": [{
			"underlyingSymbol": "GME",
			"quote": {
				"symbol": "GME",
				"displayName": "GameStop",
				"regularMarketPrice": 25.5,
				"regularMarketPreviousClose": 24.0
			},
			"strikes": [20, 25, 30],
			"expirationDates": [1719014400],
			"options": [{
				"expirationDate": 1719014400,
				"calls": [{
					"contractSymbol": "GME240621C00025000",
					"strike": 25,
					"lastPrice": 2.15,
					"bid": 2.1,
					"ask": 2.2,
					"expiration": 1719014400,
					"inTheMoney": true
				}],
				"puts": []
			}]
		}],
		"error": null
	}
}`

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/finance/chart/GME" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("range"); got != RangeDay {
			t.Errorf("expected range=1d, got %s", got)
		}
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	c := NewYahooClientWithBaseURL(srv.URL)
	q, err := c.GetQuote(context.Background(), "GME", RangeDay, IntervalMinute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil {
		t.Fatal("expected a quote")
	}
	if q.Meta.Symbol != "GME" {
		t.Errorf("expected symbol=GME, got %s", q.Meta.Symbol)
	}
	if !q.Meta.RegularMarketPrice.Equal(decimal.NewFromFloat(25.5)) {
		t.Errorf("expected price=25.5, got %s", q.Meta.RegularMarketPrice)
	}
}

func TestGetQuote_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewYahooClientWithBaseURL(srv.URL)
	q, err := c.GetQuote(context.Background(), "NOPE", RangeDay, IntervalMinute)
	if err != nil {
		t.Fatalf("not-found must not error, got %v", err)
	}
	if q != nil {
		t.Errorf("expected nil quote, got %+v", q)
	}
}

func TestGetQuote_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[],"error":{"code":"Not Found","description":"No data"}}}`))
	}))
	defer srv.Close()

	c := NewYahooClientWithBaseURL(srv.URL)
	q, err := c.GetQuote(context.Background(), "NOPE", RangeDay, IntervalMinute)
	if err != nil || q != nil {
		t.Errorf("expected (nil, nil), got (%+v, %v)", q, err)
	}
}

func TestGetOptionsChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v7/finance/options/GME" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(optionsBody))
	}))
	defer srv.Close()

	c := NewYahooClientWithBaseURL(srv.URL)
	chain, err := c.GetOptionsChain(context.Background(), "GME")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chain == nil {
		t.Fatal("expected a chain")
	}
	if chain.Quote.Name() != "GameStop" {
		t.Errorf("expected name=GameStop, got %s", chain.Quote.Name())
	}
	if len(chain.Options) != 1 || len(chain.Options[0].Calls) != 1 {
		t.Fatal("expected one expiry with one call")
	}
	call := chain.Options[0].Calls[0]
	if call.ContractSymbol != "GME240621C00025000" {
		t.Errorf("unexpected contract symbol: %s", call.ContractSymbol)
	}
	if !call.LastPrice.Equal(decimal.NewFromFloat(2.15)) {
		t.Errorf("expected lastPrice=2.15, got %s", call.LastPrice)
	}
}

func TestSecurity_TaggedVariant(t *testing.T) {
	stock := StockSecurity(&ChartQuote{Meta: ChartMeta{
		Symbol:             "GME",
		RegularMarketPrice: decimal.NewFromFloat(25.5),
	}})
	if stock.Ticker() != "GME" {
		t.Errorf("expected ticker=GME, got %s", stock.Ticker())
	}
	if !stock.UnitPrice().Equal(decimal.NewFromFloat(25.5)) {
		t.Errorf("unexpected unit price: %s", stock.UnitPrice())
	}

	opt := OptionSecurity(&OptionContract{
		ContractSymbol: "GME240621C00025000",
		LastPrice:      decimal.NewFromFloat(2.15),
	})
	if opt.Ticker() != "GME240621C00025000" {
		t.Errorf("unexpected option ticker: %s", opt.Ticker())
	}
	if !opt.UnitPrice().Equal(decimal.NewFromFloat(2.15)) {
		t.Errorf("unexpected option unit price: %s", opt.UnitPrice())
	}
}
