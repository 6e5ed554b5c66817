package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicerelay/gateway/internal/pipeline"
	"github.com/voicerelay/gateway/internal/trace"
)

// defaultSessionLimit is how many run-log sessions are returned when the
// caller omits the ?limit= query parameter.
const defaultSessionLimit = 20

type deps struct {
	cfg        config
	sttRouter  *pipeline.Router[pipeline.Transcriber]
	llmRouter  *pipeline.Router[pipeline.Generator]
	ttsRouter  *pipeline.Router[pipeline.Synthesizer]
	wsHandler  http.Handler
	traceStore *trace.Store
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws", d.wsHandler)
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/engines", d.handleEngines)
	if d.traceStore != nil {
		mux.HandleFunc("GET /api/sessions", d.handleListSessions)
		mux.HandleFunc("GET /api/sessions/{id}", d.handleGetSession)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleEngines(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"transcription": map[string]any{
			"active":  d.cfg.sttEngine,
			"engines": d.sttRouter.Engines(),
		},
		"generation": map[string]any{
			"model":   d.cfg.groqModel,
			"engines": d.llmRouter.Engines(),
		},
		"synthesis": map[string]any{
			"active":  d.cfg.ttsEngine,
			"engines": d.ttsRouter.Engines(),
		},
	}
	writeJSON(w, resp)
}

func (d deps) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultSessionLimit)
	offset := queryInt(r, "offset", 0)

	sessions, total, err := d.traceStore.ListSessions(limit, offset)
	if err != nil {
		slog.Error("list sessions", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"sessions": sessions, "total": total})
}

func (d deps) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, runs, err := d.traceStore.GetSession(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get session", "error", err, "id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"session": sess, "runs": runs})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
