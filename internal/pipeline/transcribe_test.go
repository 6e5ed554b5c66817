package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAITranscriberRequestShape(t *testing.T) {
	clip := []byte("fake wav bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The same versioned base URL the chat client uses must land on
		// <base>/audio/transcriptions, not a doubled /v1/v1 path.
		if r.URL.Path != "/openai/v1/audio/transcriptions" {
			t.Errorf("path=%s, want /openai/v1/audio/transcriptions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization=%q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("model=%q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "audio.wav" {
			t.Errorf("filename=%q", header.Filename)
		}
		sent, _ := io.ReadAll(file)
		if !bytes.Equal(sent, clip) {
			t.Errorf("clip bytes altered in transit")
		}
		w.Write([]byte(`{"text": "hello world"}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(srv.URL+"/openai/v1", "test-key", "whisper-large-v3", 2)
	text, err := tr.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text=%q", text)
	}
}

func TestWhisperTranscriberUsesInferenceEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("local whisper request must not carry auth")
		}
		w.Write([]byte(`{"text": ""}`))
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(srv.URL, 2)
	text, err := tr.Transcribe(context.Background(), []byte("silence"))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "" {
		t.Fatalf("text=%q, want empty for silence", text)
	}
}

func TestTranscriberWrapsBackendFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(srv.URL, 2)
	_, err := tr.Transcribe(context.Background(), []byte("clip"))

	var terr *TranscriptionError
	if !errors.As(err, &terr) {
		t.Fatalf("error=%v, want *TranscriptionError", err)
	}
}

func TestTranscriberHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewWhisperTranscriber(srv.URL, 2)
	if _, err := tr.Transcribe(ctx, []byte("clip")); err == nil {
		t.Fatal("expected an error from a canceled context")
	}
}
