package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// RPCRequest is a JSON-RPC 2.0 request. A request without id is a notification.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// HealthStatus represents the health state of the relay service
type HealthStatus struct {
	Status        string `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64  `json:"uptime_seconds"`
	RelayRunning  bool   `json:"relay_running"`
	MQTTConnected bool   `json:"mqtt_connected"`
}

// ServerConfig configures the HTTP control server.
type ServerConfig struct {
	Addr      string
	Callbacks CommandCallbacks
	// Health reports readiness; nil always reports healthy
	Health func() HealthStatus
}

// Server serves JSON-RPC commands and health endpoints over HTTP
type Server struct {
	cfg     ServerConfig
	started time.Time
	server  *http.Server
}

// NewServer creates the HTTP control server. It does not listen until Start.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		cfg:     cfg,
		started: time.Now(),
	}
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the route mux:
//
//	POST /rpc        JSON-RPC 2.0 commands
//	GET  /health     liveness
//	GET  /readiness  detailed readiness (503 when unhealthy)
//	GET  /status     get_status result
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.rpcHandler)
	mux.HandleFunc("/health", s.livenessHandler)
	mux.HandleFunc("/readiness", s.readinessHandler)
	mux.HandleFunc("/status", s.statusHandler)
	return mux
}

// Start listens on the configured address and serves in the background.
// Listen errors (e.g., port in use) are returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	slog.Info("control: starting http server",
		"addr", ln.Addr().String(),
		"endpoints", []string{"/rpc", "/health", "/readiness", "/status"},
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control: http server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) rpcHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RPCRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeRPC(w, RPCResponse{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			ID:      json.RawMessage("null"),
		})
		return
	}

	id := req.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPC(w, RPCResponse{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: CodeInvalidRequest, Message: "invalid request"},
			ID:      id,
		})
		return
	}

	slog.Debug("control: rpc call", "method", req.Method)

	result, err := Dispatch(s.cfg.Callbacks, req.Method, req.Params)

	// Notifications get no response body
	if len(req.ID) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := RPCResponse{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &RPCError{Code: rpcCode(err), Message: err.Error()}
		slog.Warn("control: rpc call failed", "method", req.Method, "error", err)
	} else {
		resp.Result = result
	}
	writeRPC(w, resp)
}

func rpcCode(err error) int {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return CodeMethodNotFound
	case IsInvalidParams(err):
		return CodeInvalidParams
	default:
		return CodeInternalError
	}
}

func writeRPC(w http.ResponseWriter, resp RPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// livenessHandler handles /health endpoint (simple liveness check)
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

// readinessHandler handles /readiness endpoint (detailed readiness check)
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "healthy"}
	if s.cfg.Health != nil {
		health = s.cfg.Health()
	}
	health.UptimeSeconds = int64(time.Since(s.started).Seconds())

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// statusHandler handles /status endpoint (same data as get_status)
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Callbacks.OnGetStatus == nil {
		http.Error(w, "status not available", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Callbacks.OnGetStatus())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
