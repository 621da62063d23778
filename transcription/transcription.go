package transcription

import (
	"context"
	"strings"
	"time"
)

// Segment is a transcribed span of audio.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Transcript is the result of one engine run. Segments is empty unless
// timestamps were requested.
type Transcript struct {
	Text     string
	Segments []Segment
	Language string
	Engine   string
	Model    string
}

func (t *Transcript) HasSegments() bool {
	return len(t.Segments) > 0
}

// PlainText returns Text, falling back to the joined segment texts.
func (t *Transcript) PlainText() string {
	if text := strings.TrimSpace(t.Text); text != "" {
		return text
	}

	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

type Options struct {
	Language   string // "" lets the engine decide
	Timestamps bool
}

// Engine is an ASR backend operating on a mono 16 kHz WAV file.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string, opts Options) (*Transcript, error)
	HealthCheck(ctx context.Context) error
}
