package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Kind tags an envelope on the wire.
type Kind string

const (
	KindAudio         Kind = "audio"
	KindTranscription Kind = "transcription"
	KindResponse      Kind = "response"
	KindError         Kind = "error"
)

// Envelope is one self-contained message exchanged over the connection.
// Exactly one payload field is populated, depending on Type: audio_data for
// audio envelopes, text for transcription/response, message for errors.
type Envelope struct {
	Type      Kind    `json:"type"`
	AudioData string  `json:"audio_data,omitempty"`
	Text      *string `json:"text,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// ProtocolError reports a malformed or incomplete inbound envelope.
// It is recoverable: the offending message is rejected, the session continues.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Reason
}

// Decode parses one inbound wire message. Returns a *ProtocolError for
// malformed JSON or a missing type tag. Envelopes with an unrecognized type
// decode successfully; callers must skip them (see Known).
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if env.Type == "" {
		return nil, &ProtocolError{Reason: "missing type field"}
	}
	return &env, nil
}

// Known reports whether the envelope's type is one this protocol defines.
// Unknown types are skipped by receivers, never treated as fatal.
func (e *Envelope) Known() bool {
	switch e.Type {
	case KindAudio, KindTranscription, KindResponse, KindError:
		return true
	}
	return false
}

// AudioBytes decodes the base64 audio payload of an audio envelope.
func (e *Envelope) AudioBytes() ([]byte, error) {
	if e.AudioData == "" {
		return nil, &ProtocolError{Reason: "audio envelope missing audio_data"}
	}
	clip, err := base64.StdEncoding.DecodeString(e.AudioData)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("audio_data is not valid base64: %v", err)}
	}
	return clip, nil
}

// Audio builds a server→client audio envelope from a synthesized clip.
func Audio(clip []byte) Envelope {
	return Envelope{Type: KindAudio, AudioData: base64.StdEncoding.EncodeToString(clip)}
}

// Transcription builds a transcription envelope. The text field is always
// present on the wire, even when the transcript is empty (e.g. silence).
func Transcription(text string) Envelope {
	return Envelope{Type: KindTranscription, Text: &text}
}

// Response builds a reply-text envelope.
func Response(text string) Envelope {
	return Envelope{Type: KindResponse, Text: &text}
}

// Error builds an error envelope describing a failure to the client.
func Error(message string) Envelope {
	return Envelope{Type: KindError, Message: message}
}
