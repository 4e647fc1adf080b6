// Package contract handles option contract symbol parsing and validation.
//
// Symbols follow the OCC convention used by the quote feed:
//
//	{UNDERLYING}{YYMMDD}{C|P}{strike × 1000, 8 digits}
//
// Example: GME240621C00025000 is a GME call expiring 2024-06-21 with a
// $25 strike.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Option right.
const (
	RightCall = "C"
	RightPut  = "P"
)

// symbolRegex matches: {underlying}{YYMMDD}{C|P}{8-digit strike}
var symbolRegex = regexp.MustCompile(`^([A-Z]{1,6})(\d{6})([CP])(\d{8})$`)

var (
	ErrInvalidSymbol = errors.New("contract: invalid option symbol format")
	ErrInvalidExpiry = errors.New("contract: invalid expiry date")
)

// Contract is a parsed option contract symbol.
type Contract struct {
	Symbol     string          `json:"symbol"`
	Underlying string          `json:"underlying"`
	Expiry     time.Time       `json:"expiry"`
	Right      string          `json:"right"` // "C" or "P"
	Strike     decimal.Decimal `json:"strike"`
}

// ParseSymbol parses and validates an OCC-style option contract symbol.
func ParseSymbol(symbol string) (*Contract, error) {
	matches := symbolRegex.FindStringSubmatch(symbol)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected {UNDERLYING}{YYMMDD}{C|P}{strike})",
			ErrInvalidSymbol, symbol)
	}

	underlying := matches[1]
	dateStr := matches[2]
	right := matches[3]
	strikeStr := matches[4]

	expiry, err := time.Parse("060102", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpiry, dateStr)
	}

	// Strike is encoded as price × 1000 with leading zeros.
	raw, err := strconv.ParseInt(strikeStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad strike %s", ErrInvalidSymbol, strikeStr)
	}
	strike := decimal.NewFromInt(raw).Div(decimal.NewFromInt(1000))

	return &Contract{
		Symbol:     symbol,
		Underlying: underlying,
		Expiry:     expiry,
		Right:      right,
		Strike:     strike,
	}, nil
}

// Underlying extracts the underlying ticker from an option symbol without
// full validation: everything before the first digit. Falls back to the
// input when no digit is present, which lets plain stock tickers pass
// through unchanged.
func Underlying(symbol string) string {
	for i, r := range symbol {
		if r >= '0' && r <= '9' {
			return symbol[:i]
		}
	}
	return symbol
}
