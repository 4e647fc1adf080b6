// Package portfolio implements the ledger mutator: atomic buy/sell
// operations against per-user profiles, read-only overview aggregation,
// and the HTTP surface the command layer talks to.
//
// All monetary values use shopspring/decimal; never float64 for money.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stonkbot/ledger-engine/internal/contract"
	"github.com/stonkbot/ledger-engine/internal/limits"
	"github.com/stonkbot/ledger-engine/internal/lots"
	"github.com/stonkbot/ledger-engine/internal/metrics"
	"github.com/stonkbot/ledger-engine/internal/model"
	"github.com/stonkbot/ledger-engine/internal/quote"
	"github.com/stonkbot/ledger-engine/internal/store"
)

// AmountAll is the sentinel close quantity meaning "every unit held".
const AmountAll int64 = -1

var (
	// ErrDataUnavailable means the quote provider returned nothing for a
	// ticker the operation depends on. Nothing was mutated.
	ErrDataUnavailable = errors.New("portfolio: error retrieving market data")

	// ErrInsufficientHoldings means a sell asked for more units than the
	// profile holds. Nothing was mutated.
	ErrInsufficientHoldings = errors.New("portfolio: insufficient holdings for this transaction")

	// ErrInvalidAmount means the requested quantity was zero, negative,
	// or not a whole number. Rejected before any lookup.
	ErrInvalidAmount = errors.New("portfolio: amount must be a positive whole number")
)

// notionalScale is the rounding precision for notional and basis values.
const notionalScale int32 = 2

// Service executes buys and sells against user profiles and computes
// overviews. Mutations for the same user are serialized through a
// per-user mutex: concurrent buy/sell calls for one user would otherwise
// race on the shared lot set and accumulators.
type Service struct {
	store   store.Store
	quotes  quote.Provider
	limiter *limits.PositionLimiter
	wsHub   *WSHub // optional, nil disables broadcasting

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewService creates a portfolio service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, quotes quote.Provider, limiter *limits.PositionLimiter, hub *WSHub) *Service {
	return &Service{
		store:     st,
		quotes:    quotes,
		limiter:   limiter,
		wsHub:     hub,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing mutations for one user,
// creating it on first use. Different users proceed concurrently.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// TradeReceipt reports an executed buy or sell.
type TradeReceipt struct {
	LastPrice decimal.Decimal `json:"last_price"`
	Amount    int64           `json:"amount"`
	Notional  decimal.Decimal `json:"notional"`
}

// Buy opens `amount` units of the given security for a user. The
// underlying is validated against the quote provider before anything is
// touched; the stored profile is only written once every step succeeded.
func (s *Service) Buy(ctx context.Context, userID string, sec quote.Security, amount int64) (*TradeReceipt, error) {
	start := time.Now()

	if amount <= 0 {
		metrics.TradeRejections.WithLabelValues("invalid_amount").Inc()
		return nil, ErrInvalidAmount
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.store.LoadProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	// The underlying lookup validates the ticker exists and supplies the
	// display name and the stock reference price. For options the lot's
	// creation price still comes from the contract's own last price.
	underlying := contract.Underlying(sec.Ticker())
	chain, err := s.quotes.GetOptionsChain(ctx, underlying)
	if err != nil || chain == nil {
		metrics.QuoteFetchErrors.Inc()
		return nil, ErrDataUnavailable
	}

	if s.limiter != nil {
		holdings := make(map[string]int64)
		for _, lot := range profile.Lots {
			holdings[lot.Ticker] += lot.Quantity
		}
		if err := s.limiter.CheckLimit(sec.Ticker(), amount, holdings); err != nil {
			metrics.TradeRejections.WithLabelValues("exposure_limit").Inc()
			return nil, err
		}
	}

	creationPrice := chain.Quote.RegularMarketPrice
	if sec.Kind == model.KindOption {
		creationPrice = sec.Option.LastPrice
	}

	candidate := model.Lot{
		Name:          chain.Quote.Name(),
		Ticker:        sec.Ticker(),
		Kind:          sec.Kind,
		CreatedAt:     time.Now().UTC(),
		CreationPrice: creationPrice,
		Quantity:      amount,
	}
	profile.Lots, _ = lots.Combine(profile.Lots, candidate)

	txn := newTransaction(candidate.Ticker, sec.Kind, model.DirectionBuy, creationPrice, amount)
	profile.Transactions = append(profile.Transactions, txn)
	profile.CostBasis = profile.CostBasis.Add(txn.Notional)

	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	metrics.TradesTotal.WithLabelValues(string(model.DirectionBuy), string(sec.Kind)).Inc()
	metrics.TradeLatency.WithLabelValues(string(model.DirectionBuy)).Observe(time.Since(start).Seconds())

	slog.Info("buy executed",
		"user", userID,
		"ticker", candidate.Ticker,
		"kind", sec.Kind,
		"amount", amount,
		"price", creationPrice.String(),
		"notional", txn.Notional.String(),
	)

	s.broadcast(userID, txn)

	return &TradeReceipt{
		LastPrice: creationPrice,
		Amount:    amount,
		Notional:  txn.Notional,
	}, nil
}

// Sell closes `amount` units (or everything, with AmountAll) of the given
// security for a user: lots are reduced smallest-first, realized P/L is
// added to the profile's accumulator, and cost basis is reduced by the
// basis recovered from the closed lots, floored at zero.
func (s *Service) Sell(ctx context.Context, userID string, sec quote.Security, amount int64) (*TradeReceipt, error) {
	start := time.Now()

	if amount <= 0 && amount != AmountAll {
		metrics.TradeRejections.WithLabelValues("invalid_amount").Inc()
		return nil, ErrInvalidAmount
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.store.LoadProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	ticker := sec.Ticker()
	unitPrice := sec.UnitPrice()

	open := profile.OpenLots(ticker)
	var totalHeld int64
	for _, lot := range open {
		totalHeld += lot.Quantity
	}

	if amount == AmountAll {
		amount = totalHeld
	}
	if totalHeld == 0 || amount > totalHeld {
		metrics.TradeRejections.WithLabelValues("insufficient_holdings").Inc()
		return nil, ErrInsufficientHoldings
	}

	closure, err := lots.Close(open, amount)
	if err != nil {
		return nil, err
	}

	multiplier := sec.Kind.Multiplier()
	qty := decimal.NewFromInt(amount)
	notional := unitPrice.Mul(qty).Mul(multiplier).Round(notionalScale)
	basisDelta := closure.Basis.Mul(multiplier).Round(notionalScale)
	realized := notional.Sub(basisDelta)

	profile.Lots = lots.Apply(profile.Lots, ticker, closure)

	// One aggregate SELL record per sale, stamped with the first matched
	// lot's metadata and the requested quantity.
	first := open[0]
	txn := newTransaction(first.Ticker, first.Kind, model.DirectionSell, unitPrice, amount)
	profile.Transactions = append(profile.Transactions, txn)

	profile.GlobalPL = profile.GlobalPL.Add(realized)
	profile.CostBasis = profile.CostBasis.Sub(basisDelta)
	if profile.CostBasis.IsNegative() {
		profile.CostBasis = decimal.Zero
	}

	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	metrics.TradesTotal.WithLabelValues(string(model.DirectionSell), string(sec.Kind)).Inc()
	metrics.TradeLatency.WithLabelValues(string(model.DirectionSell)).Observe(time.Since(start).Seconds())

	slog.Info("sell executed",
		"user", userID,
		"ticker", ticker,
		"amount", amount,
		"price", unitPrice.String(),
		"notional", notional.String(),
		"realized_pl", realized.String(),
		"full_closes", len(closure.Full),
		"partial_closes", len(closure.Partial),
	)

	s.broadcast(userID, txn)

	return &TradeReceipt{
		LastPrice: unitPrice,
		Amount:    amount,
		Notional:  notional,
	}, nil
}

func newTransaction(ticker string, kind model.SecurityKind, dir model.Direction, price decimal.Decimal, amount int64) model.Transaction {
	return model.Transaction{
		ID:        uuid.New().String(),
		Ticker:    ticker,
		Kind:      kind,
		Direction: dir,
		CreatedAt: time.Now().UTC(),
		Price:     price,
		Quantity:  amount,
		Notional:  price.Mul(kind.Multiplier()).Mul(decimal.NewFromInt(amount)).Round(notionalScale),
	}
}

func (s *Service) broadcast(userID string, txn model.Transaction) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:      "trade_executed",
		UserID:    userID,
		Ticker:    txn.Ticker,
		Kind:      string(txn.Kind),
		Direction: string(txn.Direction),
		Price:     txn.Price.String(),
		Quantity:  txn.Quantity,
		Notional:  txn.Notional.String(),
	})
}
