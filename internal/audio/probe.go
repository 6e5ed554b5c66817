package audio

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-audio/wav"
)

// ClipInfo describes an inbound WAV clip.
type ClipInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Probe inspects a complete audio clip and reports its container parameters.
// It never mutates the clip; callers forward the original bytes to the
// transcriber regardless of the probe result.
func Probe(clip []byte) (*ClipInfo, error) {
	dec := wav.NewDecoder(bytes.NewReader(clip))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav clip")
	}

	dur, err := dec.Duration()
	if err != nil {
		return nil, fmt.Errorf("wav duration: %w", err)
	}

	return &ClipInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   dur,
	}, nil
}
