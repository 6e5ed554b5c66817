package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicerelay/gateway/internal/pipeline"
	"github.com/voicerelay/gateway/internal/protocol"
)

// echoTranscriber returns the clip bytes as the transcript, which lets tests
// tell sessions apart. A clip reading "unusable" fails the stage.
type echoTranscriber struct{}

func (echoTranscriber) Transcribe(_ context.Context, clip []byte) (string, error) {
	if string(clip) == "unusable" {
		return "", &pipeline.TranscriptionError{Err: errors.New("unreadable clip")}
	}
	return string(clip), nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, message string) (string, error) {
	return "echo: " + message, nil
}

type echoSynthesizer struct{}

func (echoSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("voiced: " + text), nil
}

// blockingGenerator parks until its context is canceled, then signals.
type blockingGenerator struct {
	canceled chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	close(g.canceled)
	return "", &pipeline.GenerationError{Message: ctx.Err().Error()}
}

func echoHandler() *Handler {
	return NewHandler(HandlerConfig{
		Transcriber: echoTranscriber{},
		Generator:   echoGenerator{},
		Synthesizer: echoSynthesizer{},
	})
}

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAudio(t *testing.T, conn *websocket.Conn, clip string) {
	t.Helper()
	if err := conn.WriteJSON(protocol.Audio([]byte(clip))); err != nil {
		t.Fatalf("send audio: %v", err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env protocol.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestSessionRoundTrip(t *testing.T) {
	srv := httptest.NewServer(echoHandler())
	defer srv.Close()
	conn := dialTest(t, srv)

	sendAudio(t, conn, "hello there")

	env := readEnvelope(t, conn)
	if env.Type != protocol.KindTranscription || *env.Text != "hello there" {
		t.Fatalf("first envelope=%+v, want transcription of the clip", env)
	}

	env = readEnvelope(t, conn)
	if env.Type != protocol.KindResponse || *env.Text != "echo: hello there" {
		t.Fatalf("second envelope=%+v, want response", env)
	}

	env = readEnvelope(t, conn)
	if env.Type != protocol.KindAudio {
		t.Fatalf("third envelope=%+v, want audio", env)
	}
	voiced, err := env.AudioBytes()
	if err != nil {
		t.Fatalf("audio payload: %v", err)
	}
	if string(voiced) != "voiced: echo: hello there" {
		t.Fatalf("voiced=%q", voiced)
	}
}

func TestMalformedMessageKeepsSessionAlive(t *testing.T) {
	srv := httptest.NewServer(echoHandler())
	defer srv.Close()
	conn := dialTest(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("send malformed: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != protocol.KindError {
		t.Fatalf("envelope=%+v, want error for malformed message", env)
	}

	// The session must still process subsequent utterances.
	sendAudio(t, conn, "still here")
	env = readEnvelope(t, conn)
	if env.Type != protocol.KindTranscription || *env.Text != "still here" {
		t.Fatalf("envelope after recovery=%+v", env)
	}
}

func TestUnknownAndNonAudioKindsIgnored(t *testing.T) {
	srv := httptest.NewServer(echoHandler())
	defer srv.Close()
	conn := dialTest(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("send unknown kind: %v", err)
	}
	if err := conn.WriteJSON(protocol.Response("client should not send this")); err != nil {
		t.Fatalf("send non-audio kind: %v", err)
	}

	// Neither message produces a reply; the next read is the transcription of
	// the real utterance.
	sendAudio(t, conn, "real clip")
	env := readEnvelope(t, conn)
	if env.Type != protocol.KindTranscription || *env.Text != "real clip" {
		t.Fatalf("envelope=%+v, want transcription of the real clip", env)
	}
}

func TestSessionIsolation(t *testing.T) {
	srv := httptest.NewServer(echoHandler())
	defer srv.Close()
	connA := dialTest(t, srv)
	connB := dialTest(t, srv)

	sendAudio(t, connA, "unusable")
	sendAudio(t, connB, "fine over here")

	envA := readEnvelope(t, connA)
	if envA.Type != protocol.KindError {
		t.Fatalf("session A envelope=%+v, want error", envA)
	}

	envB := readEnvelope(t, connB)
	if envB.Type != protocol.KindTranscription || *envB.Text != "fine over here" {
		t.Fatalf("session B envelope=%+v, want its own transcription", envB)
	}

	// The failed run must not poison session A for later turns.
	sendAudio(t, connA, "recovered")
	envA = readEnvelope(t, connA)
	if envA.Type != protocol.KindTranscription || *envA.Text != "recovered" {
		t.Fatalf("session A after failure=%+v", envA)
	}
}

func TestCloseMidRunCancelsEngineCall(t *testing.T) {
	gen := &blockingGenerator{canceled: make(chan struct{})}
	h := NewHandler(HandlerConfig{
		Transcriber: echoTranscriber{},
		Generator:   gen,
		Synthesizer: echoSynthesizer{},
	})
	srv := httptest.NewServer(h)
	defer srv.Close()
	conn := dialTest(t, srv)

	sendAudio(t, conn, "hang on this one")
	env := readEnvelope(t, conn)
	if env.Type != protocol.KindTranscription {
		t.Fatalf("envelope=%+v, want transcription before generation blocks", env)
	}

	conn.Close()

	select {
	case <-gen.canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("closing the connection did not cancel the in-flight engine call")
	}
}

func TestAtCapacityReturns503(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Transcriber: echoTranscriber{},
		Generator:   echoGenerator{},
		Synthesizer: echoSynthesizer{},
		MaxSessions: 1,
	})
	srv := httptest.NewServer(h)
	defer srv.Close()
	dialTest(t, srv) // occupies the only slot

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("second connection attempt: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", resp.StatusCode)
	}
}
