package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voicerelay/gateway/internal/metrics"
)

// --- ElevenLabs backend (cloud API, returns MP3) ---

type elevenlabsSynthesizer struct {
	apiKey  string
	voiceID string
	modelID string
	client  *http.Client
}

// NewElevenLabsSynthesizer creates a client for the ElevenLabs text-to-speech
// API. Output is mp3_44100_128, matching what clients expect to play back.
func NewElevenLabsSynthesizer(apiKey, voiceID, modelID string, client *http.Client) Synthesizer {
	return &elevenlabsSynthesizer{apiKey: apiKey, voiceID: voiceID, modelID: modelID, client: client}
}

func (e *elevenlabsSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text    string `json:"text"`
		ModelID string `json:"model_id"`
	}{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("marshal elevenlabs request: %w", err)}
	}

	url := fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s?output_format=mp3_44100_128", e.voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("create elevenlabs request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	return doSynthRequest(e.client, req)
}

// --- OpenAI-compatible backend (any server exposing /v1/audio/speech) ---

type openaiSynthesizer struct {
	url    string
	apiKey string
	model  string
	voice  string
	client *http.Client
}

// NewOpenAISynthesizer creates a client for an OpenAI-compatible speech
// endpoint (Kokoro, Orpheus, or the hosted API).
func NewOpenAISynthesizer(url, apiKey, model, voice string, client *http.Client) Synthesizer {
	return &openaiSynthesizer{url: url, apiKey: apiKey, model: model, voice: voice, client: client}
}

func (o *openaiSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Input          string `json:"input"`
		Model          string `json:"model"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}{Input: text, Model: o.model, Voice: o.voice, ResponseFormat: "mp3"})
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("marshal speech request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("create speech request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	return doSynthRequest(o.client, req)
}

// --- Piper backend (local neural TTS, returns WAV) ---

type piperSynthesizer struct {
	url    string
	voice  string
	client *http.Client
}

// NewPiperSynthesizer creates a client for a piper-tts sidecar.
func NewPiperSynthesizer(url, voice string, client *http.Client) Synthesizer {
	return &piperSynthesizer{url: url, voice: voice, client: client}
}

func (p *piperSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}{Text: text, Voice: p.voice})
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("marshal piper request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.url+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("create piper request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	return doSynthRequest(p.client, req)
}

// --- shared HTTP helper ---

func doSynthRequest(client *http.Client, req *http.Request) ([]byte, error) {
	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("synthesis", "http").Inc()
		return nil, &SynthesisError{Err: fmt.Errorf("synthesis request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.Errors.WithLabelValues("synthesis", "status").Inc()
		return nil, &SynthesisError{Err: fmt.Errorf("synthesis status %d: %s", resp.StatusCode, respBody)}
	}

	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Err: fmt.Errorf("read synthesis response: %w", err)}
	}

	metrics.StageDuration.WithLabelValues("synthesis").Observe(time.Since(start).Seconds())
	return clip, nil
}
