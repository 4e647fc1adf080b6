package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stonkbot/ledger-engine/internal/contract"
	"github.com/stonkbot/ledger-engine/internal/limits"
	"github.com/stonkbot/ledger-engine/internal/quote"
)

// Handler exposes the portfolio service over HTTP.
type Handler struct {
	service *Service
	quotes  quote.Provider
}

func NewHandler(service *Service, quotes quote.Provider) *Handler {
	return &Handler{service: service, quotes: quotes}
}

// Routes mounts the handler under a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/buy", h.handleBuy)
	r.Post("/sell", h.handleSell)
	r.Get("/profile/{userID}", h.handleProfile)
	r.Get("/profile/{userID}/overview", h.handleOverview)
	r.Get("/profile/{userID}/overview/{ticker}", h.handleTickerOverview)
}

type tradeRequest struct {
	UserID string `json:"user_id"`
	Ticker string `json:"ticker"`
	Amount string `json:"amount"`
}

type tradeResponse struct {
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	Details *TradeReceipt `json:"details,omitempty"`
}

func (h *Handler) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "user_id and ticker are required")
		return
	}

	amount, err := parseAmount(req.Amount, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidAmount.Error())
		return
	}

	sec, err := h.resolveSecurity(r.Context(), req.Ticker)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	receipt, err := h.service.Buy(r.Context(), req.UserID, sec, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse{Success: true, Details: receipt})
}

func (h *Handler) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "user_id and ticker are required")
		return
	}

	amount, err := parseAmount(req.Amount, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidAmount.Error())
		return
	}

	sec, err := h.resolveSecurity(r.Context(), req.Ticker)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	receipt, err := h.service.Sell(r.Context(), req.UserID, sec, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse{Success: true, Details: receipt})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	profile, err := h.service.store.LoadProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ov, err := h.service.GetOverview(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (h *Handler) handleTickerOverview(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

	so, err := h.service.GetTickerOverview(r.Context(), userID, ticker)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if so == nil {
		writeError(w, http.StatusNotFound, "no holdings for ticker")
		return
	}
	writeJSON(w, http.StatusOK, so)
}

// resolveSecurity decides whether a ticker names a stock or an option
// contract and fetches its current quote. A symbol that parses as an
// OCC contract is looked up inside its underlying's options chain.
func (h *Handler) resolveSecurity(ctx context.Context, ticker string) (quote.Security, error) {
	ticker = strings.ToUpper(ticker)

	if _, err := contract.ParseSymbol(ticker); err == nil {
		chain, err := h.quotes.GetOptionsChain(ctx, contract.Underlying(ticker))
		if err != nil || chain == nil {
			return quote.Security{}, ErrDataUnavailable
		}
		if c := findContract(chain, ticker); c != nil {
			return quote.OptionSecurity(c), nil
		}
		return quote.Security{}, ErrDataUnavailable
	}

	q, err := h.quotes.GetQuote(ctx, ticker, quote.RangeDay, quote.IntervalMinute)
	if err != nil || q == nil {
		return quote.Security{}, ErrDataUnavailable
	}
	return quote.StockSecurity(q), nil
}

func findContract(chain *quote.OptionsChain, symbol string) *quote.OptionContract {
	for _, expiry := range chain.Options {
		for i := range expiry.Calls {
			if expiry.Calls[i].ContractSymbol == symbol {
				return &expiry.Calls[i]
			}
		}
		for i := range expiry.Puts {
			if expiry.Puts[i].ContractSymbol == symbol {
				return &expiry.Puts[i]
			}
		}
	}
	return nil
}

// parseAmount turns a request's amount field into a unit count. "all"
// maps to the AmountAll sentinel on sells only.
func parseAmount(raw string, allowAll bool) (int64, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if allowAll && raw == "all" {
		return AmountAll, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientHoldings),
		errors.Is(err, limits.ErrPerTickerLimitExceeded),
		errors.Is(err, limits.ErrPortfolioLimitExceeded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrDataUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, tradeResponse{Success: false, Error: msg})
}
