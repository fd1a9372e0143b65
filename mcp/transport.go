package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthHeaderType defines the type of authentication header to use
type AuthHeaderType string

const (
	AuthHeaderBearer AuthHeaderType = "bearer"  // Authorization: Bearer <token>
	AuthHeaderAPIKey AuthHeaderType = "api-key" // X-API-Key: <token>
)

// SessionHeader carries the session id issued on initialize.
const SessionHeader = "Mcp-Session-Id"

const maxRequestBody = 10 * 1024 * 1024

// authenticator guards HTTP handlers with an optional APIKeyValidator.
// A nil validator lets every request through.
type authenticator struct {
	validator  APIKeyValidator
	headerType AuthHeaderType
	logger     *slog.Logger
}

func (a *authenticator) providedKey(r *http.Request) string {
	if a.headerType == AuthHeaderAPIKey {
		return r.Header.Get("X-API-Key")
	}
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (a *authenticator) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.validator == nil {
			next(w, r)
			return
		}

		key := a.providedKey(r)
		if !a.validator.Validate(r.Context(), key) {
			a.logger.Warn("unauthorized MCP request",
				"auth_type", a.headerType,
				"has_key", key != "",
				"path", r.URL.Path,
				"remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// HTTPTransport serves MCP JSON-RPC over plain HTTP POST, plus REST helpers
// for simple clients.
type HTTPTransport struct {
	server         *Server
	router         *http.ServeMux
	logger         *slog.Logger
	auth           *authenticator
	jsonrpcHandler *JSONRPCHandler
}

// NewHTTPTransport creates a new HTTP transport for the MCP server.
// Authentication uses Authorization: Bearer unless changed with
// WithAuthHeaderType; a nil validator disables it.
func NewHTTPTransport(
	server *Server,
	logger *slog.Logger,
	apiKeyValidator APIKeyValidator) *HTTPTransport {

	router := http.NewServeMux()
	transport := &HTTPTransport{
		server: server,
		router: router,
		logger: logger,
		auth: &authenticator{
			validator:  apiKeyValidator,
			headerType: AuthHeaderBearer,
			logger:     logger,
		},
		jsonrpcHandler: NewJSONRPCHandler(server),
	}

	router.HandleFunc("/mcp", transport.auth.wrap(transport.handleMCP))
	router.HandleFunc("/mcp/tools/list", transport.auth.wrap(transport.handleListTools))
	router.HandleFunc("/mcp/tools/call", transport.auth.wrap(transport.handleCallTool))
	router.HandleFunc("/mcp/health", healthHandler(server))
	router.HandleFunc("/health", healthHandler(server))

	return transport
}

// WithAuthHeaderType sets the authentication header type (bearer or api-key)
func (t *HTTPTransport) WithAuthHeaderType(headerType AuthHeaderType) *HTTPTransport {
	t.auth.headerType = headerType
	return t
}

func (t *HTTPTransport) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodDelete:
		// Sessions carry no server state, so ending one is always accepted.
		w.WriteHeader(http.StatusOK)
		return
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "method not allowed, use POST for JSON-RPC requests", http.StatusMethodNotAllowed)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		t.logger.Error("failed to read request body", "error", err)
		http.Error(w, fmt.Sprintf("failed to read request: %v", err), http.StatusBadRequest)
		return
	}

	responses, isBatch := t.jsonrpcHandler.HandleBatch(r.Context(), body)

	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if !isBatch && isInitialize(body) {
		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		w.Header().Set(SessionHeader, sessionID)
	}

	var payload interface{} = responses
	if !isBatch {
		payload = responses[0]
	}
	writeJSON(w, t.logger, http.StatusOK, payload)
}

func isInitialize(body []byte) bool {
	var probe struct {
		Method string `json:"method"`
	}
	return json.Unmarshal(body, &probe) == nil && probe.Method == MethodInitialize
}

func healthHandler(server *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"service":   server.Name(),
			"version":   server.Version(),
			"tools":     len(server.GetTools()),
			"timestamp": time.Now().Unix(),
		})
	}
}

func (t *HTTPTransport) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, t.logger, http.StatusOK, t.jsonrpcHandler.handleToolsList())
}

// CallToolRequest is the body of the REST tool call endpoint
type CallToolRequest struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"arguments"`
}

func (t *HTTPTransport) handleCallTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CallToolRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		t.logger.Error("failed to decode request", "error", err)
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	result, rpcErr := t.server.CallTool(r.Context(), req.Name, req.Params)
	if rpcErr != nil {
		status := http.StatusBadRequest
		if rpcErr.Data == ErrToolNotFound.Error() {
			status = http.StatusNotFound
			t.logger.Warn("tool not found", "tool", req.Name)
		}
		writeJSON(w, t.logger, status, map[string]interface{}{"error": rpcErr})
		return
	}

	// Tool failures are still 200, flagged with isError in the body.
	writeJSON(w, t.logger, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("error writing response", "error", err)
	}
}

// ServeHTTP implements http.Handler
func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.router.ServeHTTP(w, r)
}

// Start serves on the given port until ctx is cancelled, then shuts down
// gracefully.
func (t *HTTPTransport) Start(ctx context.Context, port string) error {
	return listenAndServe(ctx, t.logger, &http.Server{
		Addr:         ":" + port,
		Handler:      t,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	})
}

func listenAndServe(ctx context.Context, logger *slog.Logger, server *http.Server) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down MCP server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err)
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("MCP server stopped gracefully")
		return nil
	}
}
