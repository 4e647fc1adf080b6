package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://query2.finance.yahoo.com"

// YahooClient implements Provider against the Yahoo Finance v7 chart and
// options endpoints. Missing tickers and upstream failures come back as
// (nil, nil); only transport-level problems surface as errors.
type YahooClient struct {
	baseURL string
	client  *http.Client
}

// NewYahooClient creates a client with a sane request timeout.
func NewYahooClient() *YahooClient {
	return &YahooClient{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewYahooClientWithBaseURL creates a client against a custom endpoint.
// Used by tests to point at an httptest server.
func NewYahooClientWithBaseURL(baseURL string) *YahooClient {
	return &YahooClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type chartResponse struct {
	Chart struct {
		Result []ChartQuote `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type optionsResponse struct {
	OptionChain struct {
		Result []OptionsChain `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"optionChain"`
}

func (c *YahooClient) GetQuote(ctx context.Context, ticker, rng, interval string) (*ChartQuote, error) {
	u := fmt.Sprintf("%s/v7/finance/chart/%s?range=%s&interval=%s&includeTimestamps=true",
		c.baseURL, url.PathEscape(ticker), url.QueryEscape(rng), url.QueryEscape(interval))

	var resp chartResponse
	ok, err := c.getJSON(ctx, u, &resp)
	if err != nil || !ok {
		return nil, err
	}
	if resp.Chart.Error != nil || len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	return &resp.Chart.Result[0], nil
}

func (c *YahooClient) GetOptionsChain(ctx context.Context, ticker string) (*OptionsChain, error) {
	u := fmt.Sprintf("%s/v7/finance/options/%s", c.baseURL, url.PathEscape(ticker))

	var resp optionsResponse
	ok, err := c.getJSON(ctx, u, &resp)
	if err != nil || !ok {
		return nil, err
	}
	if resp.OptionChain.Error != nil || len(resp.OptionChain.Result) == 0 {
		return nil, nil
	}
	return &resp.OptionChain.Result[0], nil
}

// getJSON performs a GET and decodes the body. The bool reports whether
// the upstream answered with a usable 2xx payload; non-2xx statuses are
// treated as "nothing found" rather than errors.
func (c *YahooClient) getJSON(ctx context.Context, u string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ledger-engine/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("quote fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("quote decode: %w", err)
	}
	return true, nil
}
