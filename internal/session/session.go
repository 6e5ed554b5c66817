package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicerelay/gateway/internal/metrics"
	"github.com/voicerelay/gateway/internal/pipeline"
	"github.com/voicerelay/gateway/internal/protocol"
	"github.com/voicerelay/gateway/internal/trace"
)

// Session owns one client connection: a freshly generated UUID identity
// (never the connection pointer), the read loop, a serialized run worker, and
// the temporary buffers of in-flight runs. Nothing in a Session is shared
// across sessions, so one session's failure cannot reach another.
type Session struct {
	id        string
	conn      *websocket.Conn
	out       *sender
	pipe      *pipeline.Pipeline
	queue     chan *clipBuffer
	resources *resourceSet
	seq       atomic.Uint64
	recorder  *trace.Recorder
	log       *slog.Logger
}

func newSession(conn *websocket.Conn, cfg HandlerConfig) *Session {
	id := uuid.NewString()
	recorder := trace.NewRecorder(cfg.TraceStore, id)

	queueDepth := cfg.QueueDepth
	if queueDepth <= 0 {
		queueDepth = 8
	}

	return &Session{
		id:   id,
		conn: conn,
		out:  newSender(conn),
		pipe: pipeline.New(pipeline.Config{
			Transcriber:   cfg.Transcriber,
			Generator:     cfg.Generator,
			Synthesizer:   cfg.Synthesizer,
			FallbackReply: cfg.FallbackReply,
			Timeouts:      cfg.Timeouts,
			SessionID:     id,
			Recorder:      recorder,
		}),
		queue:     make(chan *clipBuffer, queueDepth),
		resources: newResourceSet(),
		recorder:  recorder,
		log:       slog.With("session_id", id),
	}
}

// run drives the session to completion. The read loop keeps draining the
// socket while runs execute, so a transport close is noticed mid-run: it
// cancels the in-flight engine call, stops all outbound writes, and releases
// every temporary buffer exactly once.
func (s *Session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.work(ctx)
	}()

	s.log.Info("session started")
	s.readLoop()

	s.out.Close()
	cancel()
	wg.Wait()
	s.resources.ReleaseAll()
	s.recorder.Close()
	s.log.Info("session ended")
}

// readLoop reads inbound messages until the transport closes or errors.
func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Info("connection closed", "error", err)
			return
		}
		s.handleMessage(data)
	}
}

func (s *Session) handleMessage(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		metrics.ProtocolErrors.Inc()
		s.log.Warn("rejected envelope", "error", err)
		s.out.Send(protocol.Error(err.Error()))
		return
	}
	if !env.Known() {
		// Forward compatibility: unknown kinds are skipped, never fatal.
		s.log.Debug("ignoring unknown envelope kind", "kind", string(env.Type))
		return
	}
	if env.Type != protocol.KindAudio {
		s.log.Debug("ignoring non-audio inbound envelope", "kind", string(env.Type))
		return
	}

	clip, err := env.AudioBytes()
	if err != nil {
		metrics.ProtocolErrors.Inc()
		s.log.Warn("rejected audio envelope", "error", err)
		s.out.Send(protocol.Error(err.Error()))
		return
	}

	buf := s.resources.Hold(clip)
	select {
	case s.queue <- buf:
	default:
		// A decoded request is never dropped silently: tell the client.
		buf.Release()
		metrics.QueueRejected.Inc()
		s.out.Send(protocol.Error("too many pending utterances"))
	}
}

// work consumes queued clips and runs them one at a time, so envelopes for
// each turn complete before the next turn starts (deterministic turn order).
func (s *Session) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case buf := <-s.queue:
			seq := s.seq.Add(1)
			outcome := s.pipe.Run(ctx, seq, buf.Data, s.out.Send)
			buf.Release()
			s.log.Info("run finished",
				"run", seq,
				"status", string(outcome.Status),
				"failed_stage", string(outcome.FailedStage),
				"e2e_ms", outcome.Duration.Milliseconds(),
			)
		}
	}
}
