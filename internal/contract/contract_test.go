package contract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseSymbol_Valid(t *testing.T) {
	c, err := ParseSymbol("GME240621C00025000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Underlying != "GME" {
		t.Errorf("expected underlying=GME, got %s", c.Underlying)
	}
	if c.Right != RightCall {
		t.Errorf("expected right=C, got %s", c.Right)
	}
	if !c.Strike.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected strike=25, got %s", c.Strike)
	}
	expected := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	if !c.Expiry.Equal(expected) {
		t.Errorf("expected expiry=%v, got %v", expected, c.Expiry)
	}
}

func TestParseSymbol_FractionalStrike(t *testing.T) {
	c, err := ParseSymbol("AAPL250117P00182500")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Right != RightPut {
		t.Errorf("expected right=P, got %s", c.Right)
	}
	if !c.Strike.Equal(decimal.NewFromFloat(182.5)) {
		t.Errorf("expected strike=182.5, got %s", c.Strike)
	}
}

func TestParseSymbol_Invalid(t *testing.T) {
	tests := []string{
		"",
		"GME",
		"GME240621C",
		"GME240621X00025000",  // bad right
		"gme240621C00025000",  // lowercase underlying
		"GME2406C00025000",    // short date
		"GME240621C0002500",   // short strike
		"TOOLONGG240621C00025000", // underlying > 6 chars
	}
	for _, symbol := range tests {
		if _, err := ParseSymbol(symbol); err == nil {
			t.Errorf("expected error for symbol %q", symbol)
		}
	}
}

func TestUnderlying(t *testing.T) {
	tests := map[string]string{
		"GME240621C00025000":  "GME",
		"AAPL250117P00182500": "AAPL",
		"GME":                 "GME", // plain ticker passes through
	}
	for symbol, want := range tests {
		if got := Underlying(symbol); got != want {
			t.Errorf("Underlying(%q) = %q, want %q", symbol, got, want)
		}
	}
}
