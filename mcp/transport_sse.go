package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	sse "github.com/tmaxmax/go-sse"
)

const (
	sseEndpointEvent = "endpoint"
	sseMessageEvent  = "message"

	sseKeepAlive = 25 * time.Second
)

// SSETransport implements the HTTP+SSE MCP transport. A client opens an event
// stream with GET /sse, receives an "endpoint" event naming its message URL,
// and POSTs JSON-RPC requests there. Responses arrive on the stream as
// "message" events.
type SSETransport struct {
	server         *Server
	router         *http.ServeMux
	logger         *slog.Logger
	auth           *authenticator
	jsonrpcHandler *JSONRPCHandler

	mu       sync.Mutex
	sessions map[string]*sseSession
}

type sseSession struct {
	id       string
	outbound chan *JSONRPCResponse
	done     chan struct{}
}

func NewSSETransport(server *Server, logger *slog.Logger, apiKeyValidator APIKeyValidator) *SSETransport {
	router := http.NewServeMux()
	t := &SSETransport{
		server: server,
		router: router,
		logger: logger,
		auth: &authenticator{
			validator:  apiKeyValidator,
			headerType: AuthHeaderBearer,
			logger:     logger,
		},
		jsonrpcHandler: NewJSONRPCHandler(server),
		sessions:       make(map[string]*sseSession),
	}

	router.HandleFunc("/sse", t.auth.wrap(t.handleStream))
	router.HandleFunc("/messages", t.auth.wrap(t.handleMessage))
	router.HandleFunc("/messages/", t.auth.wrap(t.handleMessage))
	router.HandleFunc("/health", healthHandler(server))

	return t
}

// WithAuthHeaderType sets the authentication header type (bearer or api-key)
func (t *SSETransport) WithAuthHeaderType(headerType AuthHeaderType) *SSETransport {
	t.auth.headerType = headerType
	return t
}

func (t *SSETransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.router.ServeHTTP(w, r)
}

// Start serves on the given port until ctx is cancelled.
func (t *SSETransport) Start(ctx context.Context, port string) error {
	return listenAndServe(ctx, t.logger, &http.Server{
		Addr:        ":" + port,
		Handler:     t,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		// Streams never go idle, so they end with ctx rather than on Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	})
}

func (t *SSETransport) register() *sseSession {
	s := &sseSession{
		id:       uuid.NewString(),
		outbound: make(chan *JSONRPCResponse, 16),
		done:     make(chan struct{}),
	}
	t.mu.Lock()
	t.sessions[s.id] = s
	t.mu.Unlock()
	return s
}

func (t *SSETransport) unregister(s *sseSession) {
	t.mu.Lock()
	delete(t.sessions, s.id)
	t.mu.Unlock()
	close(s.done)
}

func (t *SSETransport) session(id string) (*sseSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	return s, ok
}

// SessionCount reports the number of open event streams.
func (t *SSETransport) SessionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *SSETransport) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stream, err := sse.Upgrade(w, r)
	if err != nil {
		t.logger.Error("failed to upgrade to event stream", "error", err)
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s := t.register()
	defer t.unregister(s)

	logger := t.logger.With("session", s.id)
	logger.Info("SSE client connected", "remote", r.RemoteAddr)

	endpoint := &sse.Message{Type: sse.Type(sseEndpointEvent)}
	endpoint.AppendData("/messages?sessionId=" + s.id)
	if err := sendAndFlush(stream, endpoint); err != nil {
		logger.Warn("failed to send endpoint event", "error", err)
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Info("SSE client disconnected")
			return

		case <-keepAlive.C:
			ping := &sse.Message{}
			ping.AppendComment("keep-alive")
			if err := sendAndFlush(stream, ping); err != nil {
				logger.Warn("keep-alive failed", "error", err)
				return
			}

		case resp := <-s.outbound:
			data, err := json.Marshal(resp)
			if err != nil {
				logger.Error("error marshaling response", "error", err)
				continue
			}
			msg := &sse.Message{Type: sse.Type(sseMessageEvent)}
			msg.AppendData(string(data))
			if err := sendAndFlush(stream, msg); err != nil {
				logger.Warn("failed to deliver response", "error", err)
				return
			}
		}
	}
}

func sendAndFlush(stream *sse.Session, msg *sse.Message) error {
	if err := stream.Send(msg); err != nil {
		return err
	}
	return stream.Flush()
}

func (t *SSETransport) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("sessionId")
	if id == "" {
		id = r.URL.Query().Get("session_id")
	}
	s, ok := t.session(id)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown session %q", id), http.StatusNotFound)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request: %v", err), http.StatusBadRequest)
		return
	}

	// The POST is acknowledged immediately; the reply travels on the stream.
	w.WriteHeader(http.StatusAccepted)

	// Tool calls may outlive the POST, so they are bound to the stream instead.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	go func() {
		defer cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
		}
	}()

	go func() {
		defer cancel()
		responses, _ := t.jsonrpcHandler.HandleBatch(ctx, body)
		for _, resp := range responses {
			select {
			case s.outbound <- resp:
			case <-s.done:
				return
			}
		}
	}()
}
