package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nhbmarket/core"
	"nhbmarket/indexer"
	"nhbmarket/observability"
	"nhbmarket/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig bounds the HTTP surface. Zero values select defaults.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxBodyBytes      int64
	RateLimit         float64
	RateBurst         int
	TrustProxyHeaders bool
	Auth              AuthOptions
}

type eventLister interface {
	List(ctx context.Context, filter indexer.Filter) ([]indexer.Record, error)
}

type methodFunc func(r *http.Request, req *RPCRequest) (interface{}, *methodError)

type method struct {
	module  string
	handler methodFunc
}

// Server exposes the node over JSON-RPC 2.0 and streams committed events over
// a websocket.
type Server struct {
	node    *core.Node
	events  eventLister
	hub     *Hub
	cfg     ServerConfig
	auth    *Authenticator
	limiter *clientLimiter
	logger  *slog.Logger
	methods map[string]method

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer wires the handlers for node. events and hub may be nil, in which
// case market_listEvents and /ws/events report the feature as unavailable.
func NewServer(node *core.Node, events eventLister, hub *Hub, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxRequestBytes
	}
	s := &Server{
		node:    node,
		events:  events,
		hub:     hub,
		cfg:     cfg,
		auth:    NewAuthenticator(cfg.Auth),
		limiter: newClientLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  logger,
	}
	s.methods = map[string]method{
		"market_purchase":          {"market", s.handleMarketPurchase},
		"market_openDispute":       {"market", s.handleMarketOpenDispute},
		"market_resolveDispute":    {"market", s.handleMarketResolveDispute},
		"market_getSale":           {"market", s.handleMarketGetSale},
		"market_getEscrow":         {"market", s.handleMarketGetEscrow},
		"market_getDispute":        {"market", s.handleMarketGetDispute},
		"market_params":            {"market", s.handleMarketParams},
		"market_setFeePercent":     {"market", s.handleMarketSetFeePercent},
		"market_listEvents":        {"market", s.handleMarketListEvents},
		"catalog_createListing":    {"catalog", s.handleCatalogCreateListing},
		"catalog_updateListing":    {"catalog", s.handleCatalogUpdateListing},
		"catalog_removeListing":    {"catalog", s.handleCatalogRemoveListing},
		"catalog_getListing":       {"catalog", s.handleCatalogGetListing},
		"catalog_registerCategory": {"catalog", s.handleCatalogRegisterCategory},
		"bank_balance":             {"bank", s.handleBankBalance},
		"bank_transfer":            {"bank", s.handleBankTransfer},
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/rpc", otelhttp.NewHandler(http.HandlerFunc(s.handle), "rpc"))
	r.Get("/ws/events", s.handleEventsWS)
	return r
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	if listener == nil {
		return errors.New("rpc: listener required")
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: durationOr(s.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       durationOr(s.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      durationOr(s.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       durationOr(s.cfg.IdleTimeout, 60*time.Second),
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("json-rpc server listening", "address", listener.Addr().String())
	return srv.Serve(listener)
}

// Shutdown gracefully stops the server started by Serve.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	ok, err := s.node.Initialized()
	if err != nil || !ok {
		http.Error(w, "marketplace not initialized", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	if !s.limiter.Allow(s.clientSource(r), time.Now()) {
		observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if s.node == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "node unavailable", nil)
		return
	}

	start := time.Now()
	result, failure := m.handler(r, req)
	code := 0
	if failure != nil {
		code = failure.err.Code
		if failure.status >= http.StatusInternalServerError {
			s.logger.Error("rpc method failed", "method", req.Method, "code", code, "error", failure.err.Data,
				logging.MaskField("authorization", r.Header.Get("Authorization")))
		}
		writeError(w, failure.status, req.ID, failure.err.Code, failure.err.Message, failure.err.Data)
	} else {
		writeResult(w, req.ID, result)
	}
	observability.ModuleMetrics().Observe(m.module, req.Method, code, time.Since(start))
}

// clientSource identifies the caller for rate limiting. Forwarding headers
// are only honoured behind a trusted proxy.
func (s *Server) clientSource(r *http.Request) string {
	if s.cfg.TrustProxyHeaders {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			candidate := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if candidate != "" {
				return candidate
			}
		}
		if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
			return real
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
