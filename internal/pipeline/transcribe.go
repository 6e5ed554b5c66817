package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/voicerelay/gateway/internal/metrics"
)

// MultipartTranscriber posts a complete WAV clip as multipart form data to a
// whisper-style HTTP endpoint and reads back {"text": "..."}. whisper.cpp
// serves this at /inference; OpenAI-compatible servers at
// <base>/audio/transcriptions with an added model field and bearer auth.
type MultipartTranscriber struct {
	url      string
	endpoint string
	label    string
	apiKey   string
	model    string
	client   *http.Client
}

// NewWhisperTranscriber creates a client for a whisper.cpp server.
func NewWhisperTranscriber(url string, poolSize int) *MultipartTranscriber {
	return &MultipartTranscriber{
		url:      url,
		endpoint: "/inference",
		label:    "whisper",
		client:   NewPooledHTTPClient(poolSize, 60*time.Second),
	}
}

// NewOpenAITranscriber creates a client for any OpenAI-compatible audio
// transcriptions endpoint (Groq-hosted whisper, for example). url is the same
// versioned base URL the chat client takes, e.g.
// https://api.groq.com/openai/v1.
func NewOpenAITranscriber(url, apiKey, model string, poolSize int) *MultipartTranscriber {
	return &MultipartTranscriber{
		url:      url,
		endpoint: "/audio/transcriptions",
		label:    "openai-stt",
		apiKey:   apiKey,
		model:    model,
		client:   NewPooledHTTPClient(poolSize, 60*time.Second),
	}
}

// Transcribe forwards the clip bytes as-is (the inbound clip is already a
// complete WAV container) and returns the transcript, which may be empty for
// silence. Failures are reported as *TranscriptionError.
func (c *MultipartTranscriber) Transcribe(ctx context.Context, clip []byte) (string, error) {
	start := time.Now()

	body, contentType, err := buildMultipartClip(clip, c.model)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+c.endpoint, body)
	if err != nil {
		return "", &TranscriptionError{Err: fmt.Errorf("create %s request: %w", c.label, err)}
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("transcription", "http").Inc()
		return "", &TranscriptionError{Err: fmt.Errorf("%s request: %w", c.label, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.Errors.WithLabelValues("transcription", "status").Inc()
		return "", &TranscriptionError{Err: fmt.Errorf("%s status %d: %s", c.label, resp.StatusCode, respBody)}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &TranscriptionError{Err: fmt.Errorf("decode %s response: %w", c.label, err)}
	}

	metrics.StageDuration.WithLabelValues("transcription").Observe(time.Since(start).Seconds())
	return result.Text, nil
}

func buildMultipartClip(clip []byte, model string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err = part.Write(clip); err != nil {
		return nil, "", fmt.Errorf("write clip: %w", err)
	}
	if model != "" {
		if err = writer.WriteField("model", model); err != nil {
			return nil, "", fmt.Errorf("write model field: %w", err)
		}
	}
	if err = writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
