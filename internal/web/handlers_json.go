package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
	"go.uber.org/zap"
)

type startStrategyRequest struct {
	Symbol         string          `json:"symbol"`
	USDAmount      decimal.Decimal `json:"usd_amount"`
	Leverage       int             `json:"leverage"`
	Interval       string          `json:"interval"`
	CandleInterval string          `json:"candle_interval"`
	CandleLimit    int             `json:"candle_limit"`
}

type openPositionRequest struct {
	Symbol    string          `json:"symbol"`
	Side      domain.Side     `json:"side"`
	USDAmount decimal.Decimal `json:"usd_amount"`
	Leverage  int             `json:"leverage"`
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

type leverageRequest struct {
	Symbol   string `json:"symbol"`
	Leverage int    `json:"leverage"`
}

type closeResponse struct {
	Closed bool                `json:"closed"`
	Order  *domain.OrderResult `json:"order,omitempty"`
}

type connectionResponse struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleStartStrategy(w http.ResponseWriter, r *http.Request) {
	var req startStrategyRequest
	if !s.decode(w, r, &req) {
		return
	}

	config := s.defaults
	if req.Symbol != "" {
		config.Symbol = strings.ToUpper(req.Symbol)
	}
	if !req.USDAmount.IsZero() {
		config.USDAmount = req.USDAmount
	}
	if req.Leverage != 0 {
		config.Leverage = req.Leverage
	}
	if req.CandleLimit != 0 {
		config.CandleLimit = req.CandleLimit
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{{req.Interval, &config.Interval}, {req.CandleInterval, &config.CandleInterval}} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, domain.NewOrderError(domain.InvalidConfiguration, config.Symbol,
				fmt.Sprintf("bad duration %q", d.raw), nil))
			return
		}
		*d.dst = parsed
	}

	if err := s.runner.Start(config); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleStopStrategy(w http.ResponseWriter, r *http.Request) {
	s.runner.Stop()
	s.writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if !s.decode(w, r, &req) {
		return
	}

	intent := domain.PositionIntent{
		Symbol:    s.symbolOrDefault(req.Symbol),
		USDAmount: s.defaults.USDAmount,
		Leverage:  s.defaults.Leverage,
		Side:      domain.Side(strings.ToUpper(string(req.Side))),
	}
	if !req.USDAmount.IsZero() {
		intent.USDAmount = req.USDAmount
	}
	if req.Leverage != 0 {
		intent.Leverage = req.Leverage
	}

	// Detached so a client disconnect cannot abandon an order mid-flight.
	result, err := s.orders.OpenPosition(context.WithoutCancel(r.Context()), intent)
	if err != nil {
		s.publish(domain.EventError, intent.Symbol, "Manual "+string(intent.Side)+" failed", err)
		s.writeError(w, err)
		return
	}
	s.publish(domain.EventOrder, intent.Symbol,
		fmt.Sprintf("Manual %s: %s %s (order %s)", intent.Side, result.Side, result.Quantity, result.OrderID), nil)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClosePositions(w http.ResponseWriter, r *http.Request) {
	var req symbolRequest
	if !s.decode(w, r, &req) {
		return
	}
	symbol := s.symbolOrDefault(req.Symbol)

	closed, result, err := s.orders.CloseAllPositions(context.WithoutCancel(r.Context()), symbol)
	if err != nil {
		s.publish(domain.EventError, symbol, "Manual close failed", err)
		s.writeError(w, err)
		return
	}
	if closed {
		s.publish(domain.EventOrder, symbol,
			fmt.Sprintf("Manual close: %s %s (order %s)", result.Side, result.Quantity, result.OrderID), nil)
	} else {
		s.publish(domain.EventOrder, symbol, "Manual close: position already flat", nil)
	}
	s.writeJSON(w, http.StatusOK, closeResponse{Closed: closed, Order: result})
}

func (s *Server) handleSetLeverage(w http.ResponseWriter, r *http.Request) {
	var req leverageRequest
	if !s.decode(w, r, &req) {
		return
	}
	symbol := s.symbolOrDefault(req.Symbol)

	if err := s.orders.SetLeverage(r.Context(), symbol, req.Leverage); err != nil {
		s.publish(domain.EventError, symbol, "Leverage change failed", err)
		s.writeError(w, err)
		return
	}
	s.publish(domain.EventLeverage, symbol, fmt.Sprintf("Leverage set to %dx", req.Leverage), nil)
	s.writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	ok, message := s.exchange.CheckConnection(r.Context())
	s.writeJSON(w, http.StatusOK, connectionResponse{Connected: ok, Message: message})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	info, err := s.exchange.GetAccountInfo(r.Context())
	if err != nil {
		s.logger.Error("Failed to get account info", zap.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.events.Recent(limit))
}

func (s *Server) symbolOrDefault(symbol string) string {
	if symbol == "" {
		return s.defaults.Symbol
	}
	return strings.ToUpper(symbol)
}

func (s *Server) publish(kind domain.EventKind, symbol, message string, err error) {
	event := domain.Event{Kind: kind, Symbol: symbol, Message: message}
	if err != nil {
		event.Error = err.Error()
	}
	s.events.Publish(event)
}

// decode reads an optional JSON body into dst. An empty body leaves dst zero.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.InvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, domain.OrderRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.DataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.TransientExchangeError):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
