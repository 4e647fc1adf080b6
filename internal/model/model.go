// Package model defines the core domain types shared across the ledger engine.
// All monetary values use shopspring/decimal; never float64 for money.
// Quantities are whole shares/contracts and stay int64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SecurityKind distinguishes plain equity lots from option contract lots.
type SecurityKind string

const (
	KindStock  SecurityKind = "STOCK"
	KindOption SecurityKind = "OPTION"
)

// Multiplier returns the contract multiplier applied to notional values:
// 100 for option contracts, 1 for stock.
func (k SecurityKind) Multiplier() decimal.Decimal {
	if k == KindOption {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(1)
}

// Direction is the side of a transaction.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Lot is a still-open purchase of one security at a single price point.
// A lot whose quantity reaches zero is closed and removed from its profile.
type Lot struct {
	Name          string          `json:"name" bson:"name"`
	Ticker        string          `json:"ticker" bson:"ticker"`
	Kind          SecurityKind    `json:"kind" bson:"kind"`
	CreatedAt     time.Time       `json:"created_at" bson:"createdAt"`
	CreationPrice decimal.Decimal `json:"creation_price" bson:"creationPrice"` // per unit, never multiplier-scaled
	Quantity      int64           `json:"quantity" bson:"quantity"`
}

// Transaction is an immutable audit record of one buy or sell execution.
// Once appended to a profile these are never modified or deleted.
type Transaction struct {
	ID        string          `json:"id" bson:"id"`
	Ticker    string          `json:"ticker" bson:"ticker"`
	Kind      SecurityKind    `json:"kind" bson:"securityKind"`
	Direction Direction       `json:"direction" bson:"direction"`
	CreatedAt time.Time       `json:"created_at" bson:"createdAt"`
	Price     decimal.Decimal `json:"price" bson:"price"` // unit price at execution
	Quantity  int64           `json:"quantity" bson:"quantity"`
	Notional  decimal.Decimal `json:"notional" bson:"notional"` // price × quantity × multiplier, 2dp
}

// Profile is the per-user ledger: open lots in acquisition order, the
// append-only transaction log, and the running aggregates.
//
// Invariants:
//   - after any completed buy, at most one open lot exists per
//     (ticker, creation price) pair
//   - CostBasis never goes below zero
//   - Lots and Transactions are mutated only through the portfolio service
type Profile struct {
	UserID       string          `json:"user_id" bson:"userId"`
	Lots         []Lot           `json:"lots" bson:"lots"`
	Transactions []Transaction   `json:"transactions" bson:"transactions"`
	GlobalPL     decimal.Decimal `json:"global_pl" bson:"globalPL"`   // realized P/L
	CostBasis    decimal.Decimal `json:"cost_basis" bson:"costBasis"` // unrecovered purchase cost, clamped ≥ 0
}

// NewProfile returns an empty profile with zeroed accumulators.
func NewProfile(userID string) *Profile {
	return &Profile{
		UserID:    userID,
		GlobalPL:  decimal.Zero,
		CostBasis: decimal.Zero,
	}
}

// OpenLots returns copies of the profile's open lots for one ticker,
// preserving acquisition order.
func (p *Profile) OpenLots(ticker string) []Lot {
	var out []Lot
	for _, lot := range p.Lots {
		if lot.Ticker == ticker {
			out = append(out, lot)
		}
	}
	return out
}

// TotalHeld sums the open quantity across one ticker's lots.
func (p *Profile) TotalHeld(ticker string) int64 {
	var total int64
	for _, lot := range p.Lots {
		if lot.Ticker == ticker {
			total += lot.Quantity
		}
	}
	return total
}

// Snapshot is one point of a profile's daily balance history.
type Snapshot struct {
	Date    time.Time       `json:"date" bson:"date"`
	Balance decimal.Decimal `json:"balance" bson:"balance"`
	Change  decimal.Decimal `json:"change" bson:"change"` // vs. previous snapshot
}
