// Package limits implements paper-trading exposure caps consulted before
// a buy is accepted: a maximum open quantity per ticker and a maximum
// total open quantity across the whole profile.
package limits

import "errors"

var (
	// ErrPerTickerLimitExceeded is returned when a buy would push one
	// ticker's open quantity beyond the per-ticker maximum.
	ErrPerTickerLimitExceeded = errors.New("limits: per-ticker position limit exceeded")

	// ErrPortfolioLimitExceeded is returned when a buy would push the
	// total open quantity across all tickers beyond the portfolio maximum.
	ErrPortfolioLimitExceeded = errors.New("limits: portfolio exposure limit exceeded")
)

// PositionLimiter enforces open-quantity caps.
type PositionLimiter struct {
	// MaxPerTicker is the maximum open quantity in any single ticker.
	MaxPerTicker int64

	// MaxTotal is the maximum aggregate open quantity across all tickers.
	MaxTotal int64
}

// NewPositionLimiter creates a limiter with the given per-ticker and
// aggregate caps. Non-positive caps are treated as unlimited.
func NewPositionLimiter(maxPerTicker, maxTotal int64) *PositionLimiter {
	return &PositionLimiter{
		MaxPerTicker: maxPerTicker,
		MaxTotal:     maxTotal,
	}
}

// CheckLimit validates whether buying `addQty` more units of `ticker`
// respects the caps, given the profile's current open quantities per
// ticker. Returns nil when the buy is within limits.
func (l *PositionLimiter) CheckLimit(ticker string, addQty int64, holdings map[string]int64) error {
	if l.MaxPerTicker > 0 && holdings[ticker]+addQty > l.MaxPerTicker {
		return ErrPerTickerLimitExceeded
	}

	if l.MaxTotal > 0 {
		total := addQty
		for _, qty := range holdings {
			total += qty
		}
		if total > l.MaxTotal {
			return ErrPortfolioLimitExceeded
		}
	}

	return nil
}
