package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAISynthesizerRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer speech-key" {
			t.Errorf("authorization=%q", got)
		}
		var body struct {
			Input          string `json:"input"`
			Model          string `json:"model"`
			Voice          string `json:"voice"`
			ResponseFormat string `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Input != "hello" || body.Model != "kokoro" || body.Voice != "af_heart" || body.ResponseFormat != "mp3" {
			t.Errorf("body=%+v", body)
		}
		w.Write([]byte("mp3 bytes"))
	}))
	defer srv.Close()

	syn := NewOpenAISynthesizer(srv.URL, "speech-key", "kokoro", "af_heart", NewPooledHTTPClient(2, 5*time.Second))
	clip, err := syn.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(clip) != "mp3 bytes" {
		t.Fatalf("clip=%q", clip)
	}
}

func TestPiperSynthesizerRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize" {
			t.Errorf("path=%s", r.URL.Path)
		}
		var body struct {
			Text  string `json:"text"`
			Voice string `json:"voice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Text != "good morning" || body.Voice != "en_US-lessac-medium" {
			t.Errorf("body=%+v", body)
		}
		w.Write([]byte("wav bytes"))
	}))
	defer srv.Close()

	syn := NewPiperSynthesizer(srv.URL, "en_US-lessac-medium", NewPooledHTTPClient(2, 5*time.Second))
	clip, err := syn.Synthesize(context.Background(), "good morning")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(clip) != "wav bytes" {
		t.Fatalf("clip=%q", clip)
	}
}

func TestSynthesizerWrapsBackendFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusNotFound)
	}))
	defer srv.Close()

	syn := NewPiperSynthesizer(srv.URL, "missing-voice", NewPooledHTTPClient(2, 5*time.Second))
	_, err := syn.Synthesize(context.Background(), "hello")

	var serr *SynthesisError
	if !errors.As(err, &serr) {
		t.Fatalf("error=%v, want *SynthesisError", err)
	}
}
