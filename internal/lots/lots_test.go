package lots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stonkbot/ledger-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func stockLot(ticker string, price float64, qty int64) model.Lot {
	return model.Lot{
		Name:          ticker + " Inc.",
		Ticker:        ticker,
		Kind:          model.KindStock,
		CreatedAt:     time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
		CreationPrice: d(price),
		Quantity:      qty,
	}
}

// --- Combine ---

func TestCombine_SamePriceMerges(t *testing.T) {
	existing := []model.Lot{stockLot("GME", 5, 10)}

	out, merged := Combine(existing, stockLot("GME", 5, 5))
	if !merged {
		t.Fatal("expected merge for identical ticker and price")
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 lot, got %d", len(out))
	}
	if out[0].Quantity != 15 {
		t.Errorf("expected quantity=15, got %d", out[0].Quantity)
	}
}

func TestCombine_DifferentPriceAppends(t *testing.T) {
	existing := []model.Lot{stockLot("GME", 5, 10)}

	out, merged := Combine(existing, stockLot("GME", 6, 5))
	if merged {
		t.Fatal("expected no merge for different price")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 lots, got %d", len(out))
	}
}

func TestCombine_DifferentTickerAppends(t *testing.T) {
	existing := []model.Lot{stockLot("GME", 5, 10)}

	out, merged := Combine(existing, stockLot("AMC", 5, 5))
	if merged {
		t.Fatal("expected no merge for different ticker")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 lots, got %d", len(out))
	}
}

func TestCombine_ExactPriceEquality(t *testing.T) {
	// 5.00 and 5.001 render identically at two decimal places but stay
	// separate lots.
	existing := []model.Lot{stockLot("GME", 5.00, 10)}

	out, merged := Combine(existing, stockLot("GME", 5.001, 5))
	if merged {
		t.Fatal("near-equal prices must not merge")
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 lots, got %d", len(out))
	}
}

func TestCombine_DoesNotMutateInput(t *testing.T) {
	existing := []model.Lot{stockLot("GME", 5, 10)}

	Combine(existing, stockLot("GME", 5, 5))
	if existing[0].Quantity != 10 {
		t.Errorf("input slice mutated: quantity=%d", existing[0].Quantity)
	}
}

// --- Close ---

func TestClose_SingleLotFull(t *testing.T) {
	open := []model.Lot{stockLot("GME", 5, 10)}

	c, err := Close(open, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Closed != 10 {
		t.Errorf("expected closed=10, got %d", c.Closed)
	}
	if len(c.Full) != 1 || len(c.Partial) != 0 {
		t.Errorf("expected 1 full close and no partials, got %d/%d", len(c.Full), len(c.Partial))
	}
	if !c.Basis.Equal(d(50)) {
		t.Errorf("expected basis=50, got %s", c.Basis)
	}
}

func TestClose_Partial(t *testing.T) {
	// Buy 10 @ $5, buy 5 more @ $5 → one lot of 15. Sell 12 → lot left
	// at 3, basis 12 × $5 = $60.
	open := []model.Lot{stockLot("GME", 5, 15)}

	c, err := Close(open, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Full) != 0 {
		t.Errorf("expected no full closes, got %d", len(c.Full))
	}
	if len(c.Partial) != 1 {
		t.Fatalf("expected 1 partial close, got %d", len(c.Partial))
	}
	p := c.Partial[0]
	if p.OldQuantity != 15 || p.NewQuantity != 3 || p.Delta != 12 {
		t.Errorf("unexpected partial close: old=%d new=%d delta=%d", p.OldQuantity, p.NewQuantity, p.Delta)
	}
	if !c.Basis.Equal(d(60)) {
		t.Errorf("expected basis=60, got %s", c.Basis)
	}
}

func TestClose_SmallestLotsFirst(t *testing.T) {
	open := []model.Lot{
		stockLot("GME", 10, 8),
		stockLot("GME", 4, 2),
		stockLot("GME", 7, 5),
	}

	// 2 + 5 = 7 units from the two smallest lots; the 8-lot is untouched.
	c, err := Close(open, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Full) != 2 {
		t.Fatalf("expected 2 full closes, got %d", len(c.Full))
	}
	if !c.Full[0].CreationPrice.Equal(d(4)) || !c.Full[1].CreationPrice.Equal(d(7)) {
		t.Errorf("expected lots closed smallest first, got %s then %s",
			c.Full[0].CreationPrice, c.Full[1].CreationPrice)
	}
	if len(c.Partial) != 0 {
		t.Errorf("expected no partial closes, got %d", len(c.Partial))
	}
	// 2×$4 + 5×$7 = $43
	if !c.Basis.Equal(d(43)) {
		t.Errorf("expected basis=43, got %s", c.Basis)
	}
}

func TestClose_TiesKeepAcquisitionOrder(t *testing.T) {
	open := []model.Lot{
		stockLot("GME", 9, 5),
		stockLot("GME", 3, 5),
	}

	c, err := Close(open, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Full) != 1 {
		t.Fatalf("expected 1 full close, got %d", len(c.Full))
	}
	if !c.Full[0].CreationPrice.Equal(d(9)) {
		t.Errorf("tie should close the earlier lot, got price %s", c.Full[0].CreationPrice)
	}
}

func TestClose_SpansFullAndPartial(t *testing.T) {
	open := []model.Lot{
		stockLot("GME", 5, 3),
		stockLot("GME", 6, 10),
	}

	c, err := Close(open, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Full) != 1 || len(c.Partial) != 1 {
		t.Fatalf("expected 1 full + 1 partial, got %d/%d", len(c.Full), len(c.Partial))
	}
	if c.Partial[0].Delta != 5 || c.Partial[0].NewQuantity != 5 {
		t.Errorf("unexpected partial: delta=%d new=%d", c.Partial[0].Delta, c.Partial[0].NewQuantity)
	}
	// 3×$5 + 5×$6 = $45
	if !c.Basis.Equal(d(45)) {
		t.Errorf("expected basis=45, got %s", c.Basis)
	}
}

func TestClose_Conservation(t *testing.T) {
	open := []model.Lot{
		stockLot("GME", 5, 7),
		stockLot("GME", 6, 1),
		stockLot("GME", 8, 4),
	}

	for amount := int64(1); amount <= 12; amount++ {
		c, err := Close(open, amount)
		if err != nil {
			t.Fatalf("amount=%d: unexpected error: %v", amount, err)
		}
		var removed int64
		for _, f := range c.Full {
			removed += f.Quantity
		}
		for _, p := range c.Partial {
			removed += p.Delta
		}
		if removed != amount || c.Closed != amount {
			t.Errorf("amount=%d: removed=%d closed=%d", amount, removed, c.Closed)
		}
	}
}

func TestClose_ExceedsHeld(t *testing.T) {
	open := []model.Lot{stockLot("GME", 5, 15)}

	if _, err := Close(open, 20); err != ErrExceedsHeld {
		t.Errorf("expected ErrExceedsHeld, got %v", err)
	}
}

func TestClose_NonPositiveAmount(t *testing.T) {
	open := []model.Lot{stockLot("GME", 5, 15)}

	for _, amount := range []int64{0, -3} {
		if _, err := Close(open, amount); err != ErrNonPositiveAmount {
			t.Errorf("amount=%d: expected ErrNonPositiveAmount, got %v", amount, err)
		}
	}
}

func TestClose_DoesNotMutateInput(t *testing.T) {
	open := []model.Lot{stockLot("GME", 5, 15)}

	if _, err := Close(open, 12); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if open[0].Quantity != 15 {
		t.Errorf("input lot mutated: quantity=%d", open[0].Quantity)
	}
}

// --- Apply ---

func TestApply_RemovesAndReplaces(t *testing.T) {
	all := []model.Lot{
		stockLot("AMC", 3, 4),
		stockLot("GME", 5, 3),
		stockLot("GME", 6, 10),
	}

	c, err := Close(all[1:], 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := Apply(all, "GME", c)
	if len(out) != 2 {
		t.Fatalf("expected 2 lots after apply, got %d", len(out))
	}
	if out[0].Ticker != "AMC" {
		t.Errorf("expected AMC lot untouched in place, got %s", out[0].Ticker)
	}
	if out[1].Ticker != "GME" || out[1].Quantity != 5 {
		t.Errorf("expected reduced GME lot qty=5, got %s qty=%d", out[1].Ticker, out[1].Quantity)
	}
}

func TestApply_SellAllLeavesNone(t *testing.T) {
	all := []model.Lot{
		stockLot("GME", 5, 3),
		stockLot("GME", 6, 10),
	}

	c, err := Close(all, 13)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := Apply(all, "GME", c)
	if len(out) != 0 {
		t.Errorf("expected no lots after selling all, got %d", len(out))
	}
}
