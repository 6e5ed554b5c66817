package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voicerelay/gateway/internal/audio"
	"github.com/voicerelay/gateway/internal/metrics"
	"github.com/voicerelay/gateway/internal/protocol"
	"github.com/voicerelay/gateway/internal/trace"
)

// State is the position of a run in the per-utterance state machine.
type State int

const (
	StateReceived State = iota
	StateTranscribing
	StateTranscribed
	StateGenerating
	StateGenerated
	StateSynthesizing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"received", "transcribing", "transcribed", "generating",
	"generated", "synthesizing", "done", "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Status is the terminal status of a run.
type Status string

const (
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Outcome summarizes one completed run.
type Outcome struct {
	Status      Status
	FailedStage Stage
	Transcript  string
	Reply       string
	Duration    time.Duration
}

// Timeouts bound each external engine call so a hung backend cannot stall a
// run forever.
type Timeouts struct {
	Transcribe time.Duration
	Generate   time.Duration
	Synthesize time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Transcribe <= 0 {
		t.Transcribe = 30 * time.Second
	}
	if t.Generate <= 0 {
		t.Generate = 60 * time.Second
	}
	if t.Synthesize <= 0 {
		t.Synthesize = 30 * time.Second
	}
	return t
}

// Config holds the injected engines and policy for one session's pipeline.
type Config struct {
	Transcriber   Transcriber
	Generator     Generator
	Synthesizer   Synthesizer
	FallbackReply string
	Timeouts      Timeouts
	SessionID     string
	Recorder      *trace.Recorder
}

// Emit delivers one outbound envelope to the session's client. It returns an
// error once the connection is gone, which cancels the run.
type Emit func(protocol.Envelope) error

// maxHistoryTurns bounds how much conversation history a long-lived session
// keeps and prepends to each generation call.
const maxHistoryTurns = 20

// turn holds one user→assistant exchange for conversation history.
type turn struct {
	user      string
	assistant string
}

// Pipeline drives transcription → generation → synthesis for one session.
// Runs are serialized by the session worker, so no internal locking is needed.
type Pipeline struct {
	cfg     Config
	history []turn
}

// New creates a pipeline bound to one session.
func New(cfg Config) *Pipeline {
	cfg.Timeouts = cfg.Timeouts.withDefaults()
	return &Pipeline{cfg: cfg}
}

// run tracks the state machine for a single utterance.
type run struct {
	id    string
	seq   uint64
	state State
	log   *slog.Logger
}

func (r *run) advance(to State) {
	r.log.Debug("run state", "from", r.state.String(), "to", to.String())
	r.state = to
}

// Run executes one utterance through the full state machine:
// Received → Transcribing → Transcribed → Generating → Generated →
// Synthesizing → Done, with Failed(stage) absorbing from any earlier state.
// A later stage never starts after an earlier stage failed, and every decoded
// audio envelope yields either progress envelopes or an explicit error; the
// request is never dropped silently. Runs are never retried internally.
func (p *Pipeline) Run(ctx context.Context, seq uint64, clip []byte, emit Emit) Outcome {
	start := time.Now()
	r := &run{
		id:    uuid.NewString(),
		seq:   seq,
		state: StateReceived,
		log:   slog.With("session_id", p.cfg.SessionID, "run", seq),
	}

	if info, err := audio.Probe(clip); err == nil {
		metrics.ClipSeconds.Observe(info.Duration.Seconds())
		r.log.Info("clip received", "bytes", len(clip), "sample_rate", info.SampleRate, "clip_ms", info.Duration.Milliseconds())
	} else {
		// The transcriber is the authority on clip validity; the probe only
		// feeds telemetry.
		r.log.Info("clip received", "bytes", len(clip), "probe_error", err)
	}

	finish := func(o Outcome) Outcome {
		o.Duration = time.Since(start)
		metrics.RunsTotal.WithLabelValues(string(o.Status)).Inc()
		p.cfg.Recorder.Run(trace.RunRecord{
			ID:          r.id,
			SessionID:   p.cfg.SessionID,
			Seq:         seq,
			StartedAt:   start,
			DurationMs:  float64(o.Duration.Milliseconds()),
			Transcript:  o.Transcript,
			Reply:       o.Reply,
			Status:      string(o.Status),
			FailedStage: string(o.FailedStage),
		})
		return o
	}
	canceled := func() Outcome {
		r.log.Info("run canceled", "state", r.state.String())
		return finish(Outcome{Status: StatusCanceled})
	}
	failed := func(stage Stage, transcript string) Outcome {
		r.advance(StateFailed)
		return finish(Outcome{Status: StatusFailed, FailedStage: stage, Transcript: transcript})
	}

	// Stage 1: transcription. Engine failure ends the run with an error
	// envelope; an empty transcript (silence) is passed through unchanged.
	r.advance(StateTranscribing)
	tctx, cancel := context.WithTimeout(ctx, p.cfg.Timeouts.Transcribe)
	transcript, err := p.cfg.Transcriber.Transcribe(tctx, clip)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return canceled()
		}
		r.log.Error("transcription failed", "error", err)
		if emit(protocol.Error(err.Error())) != nil {
			return canceled()
		}
		return failed(StageTranscription, "")
	}
	transcript = strings.TrimSpace(transcript)
	if emit(protocol.Transcription(transcript)) != nil {
		return canceled()
	}
	r.advance(StateTranscribed)
	r.log.Info("transcript", "text", transcript)

	// Stage 2: generation. A failed completion degrades to the fixed fallback
	// reply, so the client always receives a response envelope for this turn.
	r.advance(StateGenerating)
	gctx, cancel := context.WithTimeout(ctx, p.cfg.Timeouts.Generate)
	reply, err := p.cfg.Generator.Generate(gctx, p.formatInput(transcript))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return canceled()
		}
		r.log.Warn("generation failed, using fallback reply", "error", err)
		reply = p.cfg.FallbackReply
	}
	if emit(protocol.Response(reply)) != nil {
		return canceled()
	}
	r.advance(StateGenerated)
	r.log.Info("reply", "text", reply)

	p.history = append(p.history, turn{user: transcript, assistant: reply})
	if len(p.history) > maxHistoryTurns {
		p.history = p.history[len(p.history)-maxHistoryTurns:]
	}

	// Stage 3: synthesis. The response text already stands, so a failure here
	// is reported as an error envelope without retracting it.
	r.advance(StateSynthesizing)
	sctx, cancel := context.WithTimeout(ctx, p.cfg.Timeouts.Synthesize)
	voiced, err := p.cfg.Synthesizer.Synthesize(sctx, reply)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return canceled()
		}
		r.log.Error("synthesis failed", "error", err)
		if emit(protocol.Error(err.Error())) != nil {
			return canceled()
		}
		return failed(StageSynthesis, transcript)
	}
	if emit(protocol.Audio(voiced)) != nil {
		return canceled()
	}
	r.advance(StateDone)

	r.log.Info("run done", "e2e_ms", time.Since(start).Milliseconds(), "audio_bytes", len(voiced))
	return finish(Outcome{Status: StatusDone, Transcript: transcript, Reply: reply})
}

// formatInput prepends conversation history so replies stay multi-turn aware.
func (p *Pipeline) formatInput(current string) string {
	if len(p.history) == 0 {
		return current
	}
	var b strings.Builder
	for _, t := range p.history {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.user, t.assistant)
	}
	fmt.Fprintf(&b, "User: %s", current)
	return b.String()
}
