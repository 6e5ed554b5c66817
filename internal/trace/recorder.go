package trace

import "log/slog"

const maxTextLen = 500

type recordMsg struct {
	kind string // "session_start", "session_end", "run"
	run  RunRecord
}

// Recorder writes one session's records asynchronously via a buffered channel
// so database latency never sits on the pipeline path. All methods are
// nil-safe: a nil Recorder (tracing disabled) is a no-op.
type Recorder struct {
	store     *Store
	sessionID string
	ch        chan recordMsg
	done      chan struct{}
}

// NewRecorder creates a recorder bound to a session and records the session
// start. Must call Close when the session ends.
func NewRecorder(store *Store, sessionID string) *Recorder {
	if store == nil {
		return nil
	}
	r := &Recorder{
		store:     store,
		sessionID: sessionID,
		ch:        make(chan recordMsg, 64),
		done:      make(chan struct{}),
	}
	go r.drain()
	r.ch <- recordMsg{kind: "session_start"}
	return r
}

func (r *Recorder) drain() {
	defer close(r.done)
	for msg := range r.ch {
		r.handle(msg)
	}
}

func (r *Recorder) handle(m recordMsg) {
	var err error
	switch m.kind {
	case "session_start":
		err = r.store.CreateSession(r.sessionID)
	case "session_end":
		err = r.store.EndSession(r.sessionID)
	case "run":
		err = r.store.InsertRun(m.run)
	default:
		return
	}
	if err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
	}
}

// Run records the terminal state of one pipeline run.
func (r *Recorder) Run(rec RunRecord) {
	if r == nil {
		return
	}
	rec.Transcript = truncate(rec.Transcript, maxTextLen)
	rec.Reply = truncate(rec.Reply, maxTextLen)
	r.ch <- recordMsg{kind: "run", run: rec}
}

// Close records the session end, drains pending writes, and stops the
// background goroutine.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.ch <- recordMsg{kind: "session_end"}
	close(r.ch)
	<-r.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
