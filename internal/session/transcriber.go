package session

import (
	"context"
	"errors"

	"github.com/voxpipe/voxpipe/internal/quality"
)

var (
	// ErrPipelineUnavailable indicates runtime pipeline wiring is missing.
	ErrPipelineUnavailable = errors.New("capture and transcription pipeline not wired")
	// ErrEmptyTranscript indicates stop completed but the server returned no text.
	ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")
)

// StopResult is the pipeline output consumed by the session controller.
// Rejected reports that the recording failed the pre-flight quality gate;
// that is a normal outcome, not an error, and Metrics explains why.
type StopResult struct {
	Transcript   string
	Rejected     bool
	RejectReason string
	Metrics      *quality.Metrics
	ArtifactPath string
	AudioDevice  string
}

// Transcriber abstracts the capture/analyze/transcribe operations needed by
// session orchestration.
type Transcriber interface {
	Start(context.Context) error
	StopAndTranscribe(context.Context) (StopResult, error)
	Cancel(context.Context) error
}

// PlaceholderTranscriber is a no-op placeholder used in tests/fallback wiring.
type PlaceholderTranscriber struct{}

func (PlaceholderTranscriber) Start(context.Context) error {
	return nil
}

func (PlaceholderTranscriber) StopAndTranscribe(context.Context) (StopResult, error) {
	return StopResult{}, ErrPipelineUnavailable
}

func (PlaceholderTranscriber) Cancel(context.Context) error {
	return nil
}
