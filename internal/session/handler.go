package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voicerelay/gateway/internal/metrics"
	"github.com/voicerelay/gateway/internal/pipeline"
	"github.com/voicerelay/gateway/internal/trace"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandlerConfig holds the shared, dependency-injected engine handles and
// policy for all sessions. Engines are constructed once at startup; no
// process-wide mutable engine state exists.
type HandlerConfig struct {
	Transcriber   pipeline.Transcriber
	Generator     pipeline.Generator
	Synthesizer   pipeline.Synthesizer
	FallbackReply string
	Timeouts      pipeline.Timeouts
	MaxSessions   int
	QueueDepth    int
	TraceStore    *trace.Store
}

// Handler upgrades client connections and runs sessions with admission
// control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a session handler with a concurrent session limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 100
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxSessions),
	}
}

// ServeHTTP upgrades the connection and runs the session to completion.
// Returns 503 when at capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	newSession(conn, h.cfg).run(context.Background())
}
