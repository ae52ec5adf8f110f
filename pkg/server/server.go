package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/erain9/tickorder/pkg/core"
	"github.com/erain9/tickorder/pkg/custody"
	"github.com/erain9/tickorder/pkg/logging"
	"github.com/gorilla/mux"
	"github.com/nikolaydubina/fpdecimal"
)

// HTTPServer exposes pool and order operations over a JSON REST API
type HTTPServer struct {
	manager   *PoolManager
	router    *mux.Router
	onCrossed func(*core.ScanReport)
}

// NewHTTPServer creates the REST surface over a pool manager
func NewHTTPServer(manager *PoolManager) *HTTPServer {
	s := &HTTPServer{
		manager: manager,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

// Router returns the configured handler, wrapped with request logging
func (s *HTTPServer) Router() http.Handler {
	return logging.Middleware(s.router)
}

// OnCrossedReport registers a hook invoked with every non-empty scan report,
// typically a relayer's Submit. Must be set before the server starts serving.
func (s *HTTPServer) OnCrossedReport(fn func(*core.ScanReport)) {
	s.onCrossed = fn
}

func (s *HTTPServer) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/pools", s.handleCreatePool).Methods(http.MethodPost)
	api.HandleFunc("/pools", s.handleListPools).Methods(http.MethodGet)
	api.HandleFunc("/pools/{pool}", s.handleGetPool).Methods(http.MethodGet)
	api.HandleFunc("/pools/{pool}/swaps", s.handleSwap).Methods(http.MethodPost)
	api.HandleFunc("/pools/{pool}/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	api.HandleFunc("/pools/{pool}/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/pools/{pool}/orders/{id}/cancel", s.handleCancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/pools/{pool}/orders/{id}/settle", s.handleSettleOrder).Methods(http.MethodPost)
	api.HandleFunc("/pools/{pool}/users/{owner}/orders", s.handleUserOrders).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{account}/balances", s.handleMint).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{account}/balances/{asset}", s.handleGetBalance).Methods(http.MethodGet)
}

type createPoolRequest struct {
	PoolID      string            `json:"pool_id"`
	Token0      string            `json:"token0"`
	Token1      string            `json:"token1"`
	TickSpacing int64             `json:"tick_spacing"`
	InitialTick int64             `json:"initial_tick"`
	Backend     string            `json:"backend"`
	Options     map[string]string `json:"options,omitempty"`
}

type poolResponse struct {
	PoolID      string `json:"pool_id"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	TickSpacing int64  `json:"tick_spacing"`
	Backend     string `json:"backend"`
	CurrentTick int64  `json:"current_tick"`
}

type placeOrderRequest struct {
	Owner       string `json:"owner"`
	OrderType   string `json:"order_type"`
	AmountIn    string `json:"amount_in"`
	TriggerTick int64  `json:"trigger_tick"`
}

type cancelOrderRequest struct {
	Caller string `json:"caller"`
}

type settleOrderRequest struct {
	Settler       string `json:"settler"`
	CounterAmount string `json:"counter_amount"`
	Data          string `json:"data,omitempty"`
}

type settleOrderResponse struct {
	OrderID   string `json:"order_id"`
	Settler   string `json:"settler"`
	AmountOut string `json:"amount_out"`
}

type swapRequest struct {
	ZeroForOne bool  `json:"zero_for_one"`
	NewTick    int64 `json:"new_tick"`
}

type mintRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

func (s *HTTPServer) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pool := core.PoolKey{
		ID:          req.PoolID,
		Token0:      req.Token0,
		Token1:      req.Token1,
		TickSpacing: req.TickSpacing,
	}

	var (
		info *PoolInfo
		err  error
	)
	switch req.Backend {
	case "redis":
		info, err = s.manager.CreateRedisPool(r.Context(), pool, req.InitialTick, req.Options)
	default:
		info, err = s.manager.CreateMemoryPool(r.Context(), pool, req.InitialTick)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	engine, err := s.manager.GetEngine(info.PoolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPoolResponse(info, engine))
}

func (s *HTTPServer) handleListPools(w http.ResponseWriter, r *http.Request) {
	infos := s.manager.ListPools()

	pools := make([]poolResponse, 0, len(infos))
	for _, info := range infos {
		engine, err := s.manager.GetEngine(info.PoolID)
		if err != nil {
			continue
		}
		pools = append(pools, toPoolResponse(info, engine))
	}

	writeJSON(w, http.StatusOK, map[string]any{"pools": pools})
}

func (s *HTTPServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID := mux.Vars(r)["pool"]

	info, err := s.manager.GetPoolInfo(poolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	engine, err := s.manager.GetEngine(poolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPoolResponse(info, engine))
}

func (s *HTTPServer) handleSwap(w http.ResponseWriter, r *http.Request) {
	engine, err := s.manager.GetEngine(mux.Vars(r)["pool"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := engine.AfterSwap(r.Context(), req.ZeroForOne, req.NewTick)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.onCrossed != nil && !report.Empty() {
		s.onCrossed(report)
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	engine, err := s.manager.GetEngine(mux.Vars(r)["pool"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amountIn, err := fpdecimal.FromString(req.AmountIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount_in")
		return
	}

	order, err := engine.Place(r.Context(), req.Owner, core.OrderType(req.OrderType), amountIn, req.TriggerTick)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (s *HTTPServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	engine, err := s.manager.GetEngine(vars["pool"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	order := engine.GetOrder(vars["id"])
	if order == nil {
		writeDomainError(w, core.ErrOrderNotFound)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	engine, err := s.manager.GetEngine(vars["pool"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := engine.Cancel(r.Context(), req.Caller, vars["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// handleSettleOrder runs a ledger-funded settlement: the settler delivers a
// fixed counter amount to the engine account inside the callback, in exchange
// for the custodied input the engine hands over first.
func (s *HTTPServer) handleSettleOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	engine, err := s.manager.GetEngine(vars["pool"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req settleOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	counterAmount, err := fpdecimal.FromString(req.CounterAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid counter_amount")
		return
	}

	ledger := s.manager.Ledger()
	callback := custody.NewLedgerSettler(ledger, req.Settler, engine.Account(), counterAmount)

	delivered, err := engine.Settle(r.Context(), req.Settler, vars["id"], []byte(req.Data), callback)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settleOrderResponse{
		OrderID:   vars["id"],
		Settler:   req.Settler,
		AmountOut: delivered.String(),
	})
}

func (s *HTTPServer) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	engine, err := s.manager.GetEngine(vars["pool"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	orders := engine.UserOrders(vars["owner"])
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// handleMint credits an account on the in-process ledger. Development aid
// standing in for a real deposit flow.
func (s *HTTPServer) handleMint(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := fpdecimal.FromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	if err := s.manager.Ledger().Mint(account, req.Asset, amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Account: account,
		Asset:   req.Asset,
		Balance: s.manager.Ledger().Balance(account, req.Asset).String(),
	})
}

func (s *HTTPServer) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	writeJSON(w, http.StatusOK, balanceResponse{
		Account: vars["account"],
		Asset:   vars["asset"],
		Balance: s.manager.Ledger().Balance(vars["account"], vars["asset"]).String(),
	})
}

func toPoolResponse(info *PoolInfo, engine *core.Engine) poolResponse {
	return poolResponse{
		PoolID:      info.PoolID,
		Token0:      info.Token0,
		Token1:      info.Token1,
		TickSpacing: info.TickSpacing,
		Backend:     info.Backend,
		CurrentTick: engine.CurrentTick(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain sentinels onto HTTP status codes
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPoolNotFound), errors.Is(err, core.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPoolExists), errors.Is(err, core.ErrOrderExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, core.ErrTriggerNotMet):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidOrderType),
		errors.Is(err, core.ErrInvalidTickSpacing), errors.Is(err, custody.ErrInsufficientBalance),
		errors.Is(err, custody.ErrNonPositiveAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
