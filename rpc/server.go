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

	"lendchain/core"
	lenderrors "lendchain/core/errors"
	"lendchain/indexer"
	"lendchain/observability"
	lendotel "lendchain/observability/otel"
)

const (
	maxRequestBytes     = 1 << 20 // 1 MiB
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
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

// EventSource serves historical committed events.
type EventSource interface {
	List(ctx context.Context, q indexer.Query) ([]indexer.Record, error)
}

// ServerConfig wires the optional collaborators of the RPC server.
type ServerConfig struct {
	JWTSecret    string
	JWTIssuer    string
	RateLimit    float64
	RateBurst    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Events backs events_list. Nil disables the method.
	Events EventSource
	// Hub backs /ws/events. Nil disables streaming.
	Hub    *Hub
	Logger *slog.Logger
}

type handlerFunc func(ctx context.Context, caller [20]byte, req *RPCRequest) (interface{}, error)

type method struct {
	auth bool
	fn   handlerFunc
}

// Server exposes the ledger node over JSON-RPC 2.0.
type Server struct {
	node    *core.Node
	cfg     ServerConfig
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	methods map[string]method

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// NewServer builds the RPC server for node.
func NewServer(node *core.Node, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		auth:    NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  logger.With(slog.String("component", "rpc")),
	}
	s.methods = s.routes()
	return s, nil
}

func (s *Server) routes() map[string]method {
	return map[string]method{
		"lend_listItem":        {auth: true, fn: s.handleListItem},
		"lend_updateItem":      {auth: true, fn: s.handleUpdateItem},
		"lend_delistItem":      {auth: true, fn: s.handleDelistItem},
		"lend_borrow":          {auth: true, fn: s.handleBorrow},
		"lend_settle":          {auth: true, fn: s.handleSettle},
		"lend_setArbitration":  {auth: true, fn: s.handleSetArbitration},
		"lend_getItem":         {fn: s.handleGetItem},
		"lend_getItemsByOwner": {fn: s.handleGetItemsByOwner},
		"lend_getTransaction":  {fn: s.handleGetTransaction},
		"lend_getStats":        {fn: s.handleGetStats},
		"lend_getReputation":   {fn: s.handleGetReputation},
		"lend_borrowDigest":    {fn: s.handleBorrowDigest},

		"arb_castVote":        {auth: true, fn: s.handleCastVote},
		"arb_finalize":        {auth: true, fn: s.handleFinalize},
		"arb_setVotingPeriod": {auth: true, fn: s.handleSetVotingPeriod},
		"arb_setPanel":        {auth: true, fn: s.handleSetPanel},
		"arb_withdrawStray":   {auth: true, fn: s.handleWithdrawStray},
		"arb_setLedger":       {auth: true, fn: s.handleSetLedger},
		"arb_getDispute":      {fn: s.handleGetDispute},
		"arb_getVote":         {fn: s.handleGetVote},
		"arb_getPanel":        {fn: s.handleGetPanel},
		"arb_getParams":       {fn: s.handleGetParams},
		"arb_getReputation":   {fn: s.handleGetArbitratorReputation},

		"admin_setPaused": {auth: true, fn: s.handleSetPaused},
		"bank_getBalance": {fn: s.handleGetBalance},
		"events_list":     {fn: s.handleListEvents},
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(withAccessLog(s.logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.withRateLimit).Post("/rpc", s.handle)
	if s.cfg.Hub != nil {
		r.With(s.withRateLimit).Get("/ws/events", s.cfg.Hub.ServeHTTP)
	}
	return otelhttp.NewHandler(r, "lend.rpc")
}

// Serve listens on addr until Shutdown.
func (s *Server) Serve(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.ServeListener(listener)
}

// ServeListener serves on an existing listener. It returns nil once Shutdown
// has been called.
func (s *Server) ServeListener(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.http = srv
	s.mu.Unlock()

	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()

	if s.cfg.Hub != nil {
		s.cfg.Hub.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
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

// handle is the JSON-RPC entry point.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
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
	s.dispatch(w, r, req)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	start := time.Now()
	namespace := req.Method
	if idx := strings.IndexByte(namespace, '_'); idx > 0 {
		namespace = namespace[:idx]
	}
	ctx, span := lendotel.StartRPC(r.Context(), req.Method)
	defer span.End()

	code := 0
	defer func() {
		observability.RPC().Observe(namespace, req.Method, code, time.Since(start))
	}()

	m, ok := s.methods[req.Method]
	if !ok {
		code = codeMethodNotFound
		writeError(w, http.StatusNotFound, req.ID, code, "method not found", req.Method)
		return
	}
	var caller [20]byte
	if m.auth {
		var err error
		caller, err = s.auth.Caller(r)
		if err != nil {
			code = codeUnauthorized
			writeError(w, http.StatusUnauthorized, req.ID, code, "unauthorized", err.Error())
			return
		}
	}
	result, err := m.fn(ctx, caller, req)
	if err != nil {
		var status int
		var message string
		var data interface{}
		status, code, message, data = mapError(err)
		span.SetAttributes(lendotel.KeyRPCCode.Int(code))
		s.logger.Debug("rpc call failed",
			slog.String("requestId", requestIDFrom(r.Context())),
			slog.String("method", req.Method),
			slog.Int("code", code),
			slog.Any("error", err),
		)
		writeError(w, status, req.ID, code, message, data)
		return
	}
	writeResult(w, req.ID, result)
}

// mapError turns a handler failure into an HTTP status and JSON-RPC error.
func mapError(err error) (status int, code int, message string, data interface{}) {
	var pe *paramError
	if errors.As(err, &pe) {
		return http.StatusBadRequest, codeInvalidParams, pe.Error(), nil
	}
	if errors.Is(err, errEventsDisabled) {
		return http.StatusServiceUnavailable, codeServerError, err.Error(), nil
	}
	code = lenderrors.Code(err)
	name := lenderrors.Name(err)
	if name != "" {
		data = name
	}
	switch lenderrors.Classify(err) {
	case lenderrors.ClassAuthorization:
		status = http.StatusForbidden
	case lenderrors.ClassValidation:
		status = http.StatusBadRequest
	case lenderrors.ClassState:
		status = http.StatusConflict
		if name == "ErrNotFound" {
			status = http.StatusNotFound
		}
	case lenderrors.ClassInvariant:
		status = http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError, codeServerError, "internal error", nil
	}
	return status, code, err.Error(), data
}
