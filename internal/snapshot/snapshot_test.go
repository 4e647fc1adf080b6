package snapshot

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stonkbot/ledger-engine/internal/lots"
	"github.com/stonkbot/ledger-engine/internal/model"
	"github.com/stonkbot/ledger-engine/internal/portfolio"
	"github.com/stonkbot/ledger-engine/internal/quote"
	"github.com/stonkbot/ledger-engine/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fixedProvider struct {
	price decimal.Decimal
}

func (p *fixedProvider) GetQuote(context.Context, string, string, string) (*quote.ChartQuote, error) {
	return &quote.ChartQuote{
		Meta: quote.ChartMeta{RegularMarketPrice: p.price, ChartPreviousClose: p.price},
	}, nil
}

func (p *fixedProvider) GetOptionsChain(context.Context, string) (*quote.OptionsChain, error) {
	return nil, nil
}

func seedProfile(t *testing.T, st store.Store, userID string, qty int64, price string) {
	t.Helper()
	profile, err := st.LoadProfile(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	profile.Lots, _ = lots.Combine(profile.Lots, model.Lot{
		Ticker:        "GME",
		Kind:          model.KindStock,
		CreationPrice: d(price),
		Quantity:      qty,
	})
	if err := st.SaveProfile(context.Background(), profile); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnceRecordsBalanceAndChange(t *testing.T) {
	st := store.NewMemoryStore()
	p := &fixedProvider{price: d("10.00")}
	svc := portfolio.NewService(st, p, nil, nil)
	rec := NewRecorder(st, svc, "")

	seedProfile(t, st, "u1", 5, "8.00")

	rec.RunOnce(context.Background())

	snaps, err := st.GetSnapshots(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if !snaps[0].Balance.Equal(d("50.00")) {
		t.Errorf("balance = %s, want 50.00", snaps[0].Balance)
	}
	if !snaps[0].Change.IsZero() {
		t.Errorf("first snapshot change = %s, want 0", snaps[0].Change)
	}

	// Market moves up before the next run.
	p.price = d("12.00")
	rec.RunOnce(context.Background())

	snaps, _ = st.GetSnapshots(context.Background(), "u1")
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if !snaps[1].Balance.Equal(d("60.00")) {
		t.Errorf("balance = %s, want 60.00", snaps[1].Balance)
	}
	if !snaps[1].Change.Equal(d("10.00")) {
		t.Errorf("change = %s, want 10.00", snaps[1].Change)
	}
}

func TestRunOnceCoversAllUsers(t *testing.T) {
	st := store.NewMemoryStore()
	p := &fixedProvider{price: d("3.00")}
	svc := portfolio.NewService(st, p, nil, nil)
	rec := NewRecorder(st, svc, "")

	seedProfile(t, st, "u1", 1, "3.00")
	seedProfile(t, st, "u2", 2, "3.00")

	rec.RunOnce(context.Background())

	for _, userID := range []string{"u1", "u2"} {
		snaps, err := st.GetSnapshots(context.Background(), userID)
		if err != nil {
			t.Fatal(err)
		}
		if len(snaps) != 1 {
			t.Errorf("user %s: expected 1 snapshot, got %d", userID, len(snaps))
		}
	}
}
