// Package lots implements the pure lot engine: combining a new purchase
// into an existing same-price lot, and selecting which lots to reduce or
// remove when a holding is sold.
//
// Functions here never mutate their inputs. Callers pass value snapshots
// in and apply the returned collections back to the profile, so a lot is
// never aliased between the stored document and an in-flight computation.
package lots

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stonkbot/ledger-engine/internal/model"
)

var (
	// ErrNonPositiveAmount is returned when a close is requested for
	// zero or negative units.
	ErrNonPositiveAmount = errors.New("lots: close amount must be positive")

	// ErrExceedsHeld is returned when a close requests more units than
	// the supplied lots hold. The portfolio service checks holdings
	// before calling Close, so this is unreachable through the API.
	ErrExceedsHeld = errors.New("lots: close amount exceeds held quantity")
)

// Combine merges a candidate lot into an existing lot set. If an open lot
// shares the candidate's ticker and exact creation price, its quantity
// grows by the candidate's and the candidate is discarded; otherwise the
// candidate is appended as a new lot. The second return reports whether a
// merge happened.
//
// Price equality is exact decimal equality: two prices that render the
// same at two decimal places but differ in a lower digit open distinct
// lots. That keeps every acquisition price traceable.
func Combine(existing []model.Lot, candidate model.Lot) ([]model.Lot, bool) {
	out := make([]model.Lot, len(existing))
	copy(out, existing)

	for i := range out {
		if out[i].Ticker == candidate.Ticker && out[i].CreationPrice.Equal(candidate.CreationPrice) {
			out[i].Quantity += candidate.Quantity
			return out, true
		}
	}
	return append(out, candidate), false
}

// PartialClose records a lot that was reduced but not emptied by a sale.
type PartialClose struct {
	Lot         model.Lot // post-close state (Quantity == NewQuantity)
	OldQuantity int64
	NewQuantity int64
	Delta       int64 // units consumed from this lot
}

// Closure is the outcome of closing `amount` units across a ticker's lots.
type Closure struct {
	Full    []model.Lot    // fully emptied lots, pre-close values
	Partial []PartialClose // at most one entry
	Closed  int64          // units actually closed; equals the requested amount

	// Basis is Σ creationPrice × units consumed, per lot, without the
	// contract multiplier. The mutator scales and rounds it.
	Basis decimal.Decimal
}

// Close selects which of one ticker's open lots to reduce for a sale of
// `amount` units. Lots are visited in ascending order of remaining
// quantity, smallest first with ties kept in acquisition order, so small
// fragments are swept up before larger lots are split.
//
// Each visited lot is consumed one unit at a time. A lot whose whole
// quantity fits in the remaining amount is fully closed; when only part
// of a lot is needed the lot is reduced and stays open, and the walk
// stops there.
func Close(open []model.Lot, amount int64) (Closure, error) {
	c := Closure{Basis: decimal.Zero}

	if amount <= 0 {
		return c, ErrNonPositiveAmount
	}

	var total int64
	for _, lot := range open {
		total += lot.Quantity
	}
	if amount > total {
		return c, ErrExceedsHeld
	}

	ordered := make([]model.Lot, len(open))
	copy(ordered, open)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Quantity < ordered[j].Quantity
	})

	for _, lot := range ordered {
		if c.Closed == amount {
			break
		}

		var consumed int64
		for i := int64(0); i < lot.Quantity; i++ {
			if c.Closed == amount {
				break
			}
			consumed++
			c.Closed++
		}
		if consumed == 0 {
			continue
		}

		c.Basis = c.Basis.Add(lot.CreationPrice.Mul(decimal.NewFromInt(consumed)))

		if consumed == lot.Quantity {
			c.Full = append(c.Full, lot)
			continue
		}

		reduced := lot
		reduced.Quantity = lot.Quantity - consumed
		c.Partial = append(c.Partial, PartialClose{
			Lot:         reduced,
			OldQuantity: lot.Quantity,
			NewQuantity: reduced.Quantity,
			Delta:       consumed,
		})
	}

	return c, nil
}

// Apply rebuilds a profile-wide lot slice after a closure on one ticker:
// fully-closed lots are dropped, partially-closed lots are replaced with
// their reduced values, everything else keeps its position. Within one
// ticker the (open) lots are uniquely keyed by creation price, which is
// what Apply matches on.
func Apply(all []model.Lot, ticker string, c Closure) []model.Lot {
	fullyClosed := func(lot model.Lot) bool {
		for _, f := range c.Full {
			if f.CreationPrice.Equal(lot.CreationPrice) {
				return true
			}
		}
		return false
	}

	out := make([]model.Lot, 0, len(all))
	for _, lot := range all {
		if lot.Ticker != ticker {
			out = append(out, lot)
			continue
		}
		if fullyClosed(lot) {
			continue
		}
		replaced := false
		for _, p := range c.Partial {
			if p.Lot.CreationPrice.Equal(lot.CreationPrice) {
				out = append(out, p.Lot)
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, lot)
		}
	}
	return out
}
