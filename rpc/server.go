package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"qamarket/core"
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
	codeNotFound       = -32040
	codeRejected       = -32030
	codeInsufficient   = -32050
	codeRateLimited    = -32020
)

// Config carries the server's runtime knobs.
type Config struct {
	// JWTSecret signs and verifies bearer tokens for admin methods. An empty
	// secret disables authentication, which is only acceptable in tests and
	// local development.
	JWTSecret []byte
	// RateLimitPerSecond bounds per-client request throughput on /rpc.
	// Zero disables limiting.
	RateLimitPerSecond float64
	// RateLimitBurst is the short-term burst allowance per client.
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Server exposes the marketplace node over JSON-RPC, plus a websocket event
// stream and operational endpoints.
type Server struct {
	node    *core.Node
	logger  *slog.Logger
	auth    *authenticator
	limits  *clientLimiters
	hub     *EventHub
	methods map[string]methodSpec

	readTimeout  time.Duration
	writeTimeout time.Duration
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

type methodSpec struct {
	handler handlerFunc
	admin   bool
}

// NewServer wires a server around the supplied node.
func NewServer(node *core.Node, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:         node,
		logger:       logger,
		auth:         newAuthenticator(cfg.JWTSecret),
		limits:       newClientLimiters(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		hub:          NewEventHub(logger),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
	s.methods = map[string]methodSpec{
		"qa_initialize":          {handler: s.handleInitialize, admin: true},
		"qa_toggleMarketplace":   {handler: s.handleToggleMarketplace, admin: true},
		"qa_toggleOperation":     {handler: s.handleToggleOperation, admin: true},
		"qa_updateFees":          {handler: s.handleUpdateFees, admin: true},
		"qa_updateTreasury":      {handler: s.handleUpdateTreasury, admin: true},
		"qa_transferAuthority":   {handler: s.handleTransferAuthority, admin: true},
		"qa_blacklist":           {handler: s.handleBlacklist, admin: true},
		"qa_unblacklist":         {handler: s.handleUnblacklist, admin: true},
		"qa_initializeUserState": {handler: s.handleInitializeUserState},
		"qa_createQuestion":      {handler: s.handleCreateQuestion},
		"qa_mintUnlockKey":       {handler: s.handleMintUnlockKey},
		"qa_listKey":             {handler: s.handleListKey},
		"qa_updateListing":       {handler: s.handleUpdateListing},
		"qa_cancelListing":       {handler: s.handleCancelListing},
		"qa_buyListedKey":        {handler: s.handleBuyListedKey},
		"qa_getMarketplace":      {handler: s.handleGetMarketplace},
		"qa_getQuestion":         {handler: s.handleGetQuestion},
		"qa_getUnlockKey":        {handler: s.handleGetUnlockKey},
		"qa_getUserState":        {handler: s.handleGetUserState},
		"qa_getBalance":          {handler: s.handleGetBalance},
	}
	return s
}

// EventSink returns the emitter feeding the websocket stream. Wire it into
// the node's emitter chain.
func (s *Server) EventSink() *EventHub { return s.hub }

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Method(http.MethodPost, "/rpc", otelhttp.NewHandler(http.HandlerFunc(s.handleRPC), "rpc"))
	r.Get("/ws/events", s.hub.handleWS)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	readTimeout := s.readTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := s.writeTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	s.logger.Info("rpc server listening", "addr", addr)
	return srv.ListenAndServe()
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a structured failure.
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

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.limits.allow(clientKey(r)) {
		observeRequest("", "rate_limited", time.Since(start))
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "too many requests", nil)
		return
	}

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

	spec, ok := s.methods[req.Method]
	if !ok {
		observeRequest(req.Method, "not_found", time.Since(start))
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method", req.Method)
		return
	}
	if spec.admin {
		if authErr := s.auth.requireAuth(r); authErr != nil {
			observeRequest(req.Method, "unauthorized", time.Since(start))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	spec.handler(w, r, req)
	observeRequest(req.Method, "handled", time.Since(start))
}
