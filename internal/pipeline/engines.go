package pipeline

import (
	"context"
	"fmt"
)

// Stage names one of the three pipeline stages. Used in error taxonomy,
// metrics labels, and run records.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageGeneration    Stage = "generation"
	StageSynthesis     Stage = "synthesis"
)

// Transcriber converts one complete audio clip into text. An empty transcript
// is a valid result (silence), not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, clip []byte) (string, error)
}

// Generator produces a reply for the given user message.
type Generator interface {
	Generate(ctx context.Context, message string) (string, error)
}

// Synthesizer renders reply text into an audio clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// TranscriptionError reports a speech-to-text failure. It ends the run; no
// later stage starts.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return "transcription: " + e.Err.Error() }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// GenerationError reports a completion failure. The run degrades to the fixed
// fallback reply instead of ending.
type GenerationError struct {
	Status  int
	Message string
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generation: %s (status %d)", e.Message, e.Status)
	}
	return "generation: " + e.Message
}

// SynthesisError reports a text-to-speech failure. The reply text already
// emitted for the turn stands.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return "synthesis: " + e.Err.Error() }
func (e *SynthesisError) Unwrap() error { return e.Err }
