package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeAudioEnvelope(t *testing.T) {
	clip := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0x01}
	raw := `{"type":"audio","audio_data":"` + base64.StdEncoding.EncodeToString(clip) + `"}`

	env, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if env.Type != KindAudio {
		t.Fatalf("type=%s, want audio", env.Type)
	}
	got, err := env.AudioBytes()
	if err != nil {
		t.Fatalf("audio bytes: %v", err)
	}
	if !bytes.Equal(got, clip) {
		t.Fatalf("payload mismatch: got %x want %x", got, clip)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"type":"audio"`},
		{"not an object", `42`},
		{"missing type", `{"audio_data":"aGk="}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Fatalf("got %v, want *ProtocolError", err)
			}
		})
	}
}

func TestAudioBytesErrors(t *testing.T) {
	env, err := Decode([]byte(`{"type":"audio","audio_data":"%%%not base64%%%"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err = env.AudioBytes(); err == nil {
		t.Fatal("expected error for invalid base64")
	}

	env, err = Decode([]byte(`{"type":"audio"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err = env.AudioBytes(); err == nil {
		t.Fatal("expected error for missing audio_data")
	}
}

func TestUnknownKindIsNotFatal(t *testing.T) {
	env, err := Decode([]byte(`{"type":"ping","text":"ignored"}`))
	if err != nil {
		t.Fatalf("unknown kind must decode, got %v", err)
	}
	if env.Known() {
		t.Fatal("ping must not be a known kind")
	}
}

func TestEmptyTranscriptionKeepsTextField(t *testing.T) {
	data, err := json.Marshal(Transcription(""))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err = json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	text, ok := m["text"]
	if !ok {
		t.Fatalf("text field missing from %s", data)
	}
	if text != "" {
		t.Fatalf("text=%q, want empty string", text)
	}
}

func TestErrorEnvelope(t *testing.T) {
	data, err := json.Marshal(Error("synthesis failed"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if env.Type != KindError || env.Message != "synthesis failed" {
		t.Fatalf("got type=%s message=%q", env.Type, env.Message)
	}
}
