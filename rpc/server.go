package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"burnswap/core/types"
	"burnswap/native/exchange"
	"burnswap/observability/metrics"
	"burnswap/token"
)

// Engine is the subset of the exchange engine the HTTP surface needs.
type Engine interface {
	Exchange(caller [20]byte, sourceAmount *big.Int, permitPayload []byte) (*big.Int, error)
	Quote(sourceAmount *big.Int) (*big.Int, error)
	Config() (*exchange.Config, error)
	Reserve() (*big.Int, error)
	Withdraw(caller [20]byte, symbol string, amount *big.Int) error
	SetRatio(caller [20]byte, newRatio *big.Int) error
	SetWithdrawDeadline(caller [20]byte, newDeadline int64) error
}

// EventLog exposes the persisted event history.
type EventLog interface {
	Events(limit int) ([]*types.Event, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine  Engine
	Events  EventLog
	Logger  *slog.Logger
	Metrics *metrics.ExchangeMetrics
}

// Server exposes the exchange and administration operations over HTTP.
type Server struct {
	engine  Engine
	events  EventLog
	log     *slog.Logger
	metrics *metrics.ExchangeMetrics
	router  http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		engine:  cfg.Engine,
		events:  cfg.Events,
		log:     logger,
		metrics: cfg.Metrics,
	}
	srv.router = srv.buildRouter()
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/exchange", s.handleExchange)
		r.Get("/exchange/config", s.handleConfig)
		r.Get("/exchange/quote", s.handleQuote)
		r.Get("/exchange/events", s.handleEvents)
		r.Route("/admin", func(r chi.Router) {
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/ratio", s.handleSetRatio)
			r.Post("/deadline", s.handleSetDeadline)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := uuid.NewString()
		next.ServeHTTP(w, r)
		s.log.Info("http request",
			"requestId", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"durationMs", time.Since(started).Milliseconds(),
		)
	})
}

type exchangeRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
	Permit string `json:"permit,omitempty"`
}

type exchangeResponse struct {
	SourceAmount string `json:"sourceAmount"`
	TargetAmount string `json:"targetAmount"`
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	var permit []byte
	if trimmed := strings.TrimSpace(req.Permit); trimmed != "" {
		decoded, err := hexutil.Decode(trimmed)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid permit payload encoding")
			return
		}
		permit = decoded
	}
	target, err := s.engine.Exchange(caller, amount, permit)
	if err != nil {
		s.metrics.ObserveExchangeFailure(failureReason(err))
		s.writeEngineError(w, err)
		return
	}
	s.metrics.ObserveExchange()
	s.publishReserve()
	s.writeJSON(w, http.StatusOK, exchangeResponse{
		SourceAmount: amount.String(),
		TargetAmount: target.String(),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	amount, ok := parseAmount(r.URL.Query().Get("amount"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	target, err := s.engine.Quote(amount)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exchangeResponse{
		SourceAmount: amount.String(),
		TargetAmount: target.String(),
	})
}

type configResponse struct {
	SourceToken      string `json:"sourceToken"`
	TargetToken      string `json:"targetToken"`
	Ratio            string `json:"ratio"`
	RatioScale       string `json:"ratioScale"`
	WithdrawDeadline int64  `json:"withdrawDeadline"`
	Admin            string `json:"admin"`
	Reserve          string `json:"reserve"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Config()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	reserve, err := s.engine.Reserve()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, configResponse{
		SourceToken:      cfg.SourceToken,
		TargetToken:      cfg.TargetToken,
		Ratio:            cfg.Ratio.String(),
		RatioScale:       exchange.RatioScale.String(),
		WithdrawDeadline: cfg.WithdrawDeadline,
		Admin:            ethcommon.BytesToAddress(cfg.Admin[:]).Hex(),
		Reserve:          reserve.String(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeError(w, http.StatusNotFound, "event log not configured")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	evts, err := s.events.Events(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "event log unavailable")
		return
	}
	if evts == nil {
		evts = []*types.Event{}
	}
	s.writeJSON(w, http.StatusOK, evts)
}

type withdrawRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := s.engine.Withdraw(caller, req.Token, amount); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.metrics.ObserveWithdrawal()
	s.publishReserve()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ratioRequest struct {
	Caller string `json:"caller"`
	Ratio  string `json:"ratio"`
}

func (s *Server) handleSetRatio(w http.ResponseWriter, r *http.Request) {
	var req ratioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	ratio, ok := parseAmount(req.Ratio)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid ratio")
		return
	}
	if err := s.engine.SetRatio(caller, ratio); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.metrics.ObserveAdminUpdate("ratio")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type deadlineRequest struct {
	Caller   string `json:"caller"`
	Deadline int64  `json:"deadline"`
}

func (s *Server) handleSetDeadline(w http.ResponseWriter, r *http.Request) {
	var req deadlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	if err := s.engine.SetWithdrawDeadline(caller, req.Deadline); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.metrics.ObserveAdminUpdate("deadline")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) publishReserve() {
	reserve, err := s.engine.Reserve()
	if err != nil {
		return
	}
	value, _ := new(big.Float).SetInt(reserve).Float64()
	s.metrics.SetReserve(value)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	s.writeError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, exchange.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, exchange.ErrTimeoutNotReached),
		errors.Is(err, exchange.ErrDeadlineNotIncreasing):
		return http.StatusConflict
	case errors.Is(err, exchange.ErrInsufficientReserve),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exchange.ErrMalformedPermit),
		errors.Is(err, exchange.ErrPermitSignerMismatch),
		errors.Is(err, exchange.ErrPermitSpenderMismatch),
		errors.Is(err, exchange.ErrPermitAmountMismatch),
		errors.Is(err, exchange.ErrInvalidAmount),
		errors.Is(err, exchange.ErrInvalidRatio),
		errors.Is(err, exchange.ErrZeroOutput),
		errors.Is(err, exchange.ErrUnknownAsset),
		errors.Is(err, token.ErrUnknownToken),
		errors.Is(err, token.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, exchange.ErrInsufficientReserve):
		return "reserve"
	case errors.Is(err, token.ErrInsufficientBalance):
		return "balance"
	case errors.Is(err, token.ErrInsufficientAllowance):
		return "allowance"
	case errors.Is(err, exchange.ErrMalformedPermit),
		errors.Is(err, exchange.ErrPermitSignerMismatch),
		errors.Is(err, exchange.ErrPermitSpenderMismatch),
		errors.Is(err, exchange.ErrPermitAmountMismatch):
		return "permit"
	case errors.Is(err, exchange.ErrZeroOutput):
		return "zero_output"
	default:
		return "other"
	}
}

func parseAddress(raw string) ([20]byte, bool) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return addr, false
	}
	copy(addr[:], ethcommon.HexToAddress(trimmed).Bytes())
	return addr, true
}

func parseAmount(raw string) (*big.Int, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, false
	}
	return parsed, true
}
