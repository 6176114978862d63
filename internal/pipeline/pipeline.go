// Package pipeline wires capture, quality gating, and transcription into one
// dictation flow.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxpipe/voxpipe/internal/audio"
	"github.com/voxpipe/voxpipe/internal/config"
	"github.com/voxpipe/voxpipe/internal/quality"
	"github.com/voxpipe/voxpipe/internal/session"
	"github.com/voxpipe/voxpipe/internal/transcribe"
)

// levelInterval is the live input-level polling cadence.
const levelInterval = 100 * time.Millisecond

// recorderAPI is the capture surface the pipeline drives.
type recorderAPI interface {
	Start(ctx context.Context, device audio.Device) error
	Stop() (string, error)
	Level() float64
}

// analyzerAPI is the quality-gate surface the pipeline consults.
type analyzerAPI interface {
	AnalyzeFile(path string) (quality.Metrics, error)
	RejectReason(quality.Metrics) string
}

// transcriberAPI is the network surface the pipeline submits artifacts to.
type transcriberAPI interface {
	Transcribe(ctx context.Context, path string) (string, error)
	Warmup(ctx context.Context)
}

// Pipeline owns one end-to-end capture -> quality gate -> transcription flow.
// It implements session.Transcriber.
type Pipeline struct {
	cfg    config.Config
	logger *slog.Logger

	recorder     recorderAPI
	analyzer     analyzerAPI
	client       transcriberAPI
	selectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)

	// OnLevel, when set before Start, receives the live input RMS at each
	// polling tick. Called from the poller goroutine.
	OnLevel func(float64)

	mu        sync.Mutex
	started   bool
	selection audio.Selection
	stopLevel context.CancelFunc
	levelDone chan struct{}
}

// New constructs a pipeline from runtime config.
func New(cfg config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		recorder: audio.NewRecorder(audio.RecorderConfig{
			SampleRate:        cfg.Audio.SampleRate,
			MaxSessionSeconds: cfg.Audio.MaxSessionSeconds,
			TrimThreshold:     cfg.Audio.TrimThreshold,
			TrimPadSeconds:    cfg.Audio.TrimPadSeconds,
		}, logger),
		analyzer: quality.NewAnalyzer(Thresholds(cfg.Quality)),
		client: transcribe.New(transcribe.Config{
			APIBase:  cfg.Transcription.APIBase,
			APIKey:   cfg.Transcription.APIKey,
			KeyAlias: cfg.Transcription.KeyAlias,
			Model:    cfg.Transcription.Model,
		}, logger),
		selectDevice: audio.SelectDevice,
	}
}

// Start resolves device selection, begins capture, and spawns the level poller.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("pipeline already started")
	}

	selection, err := p.selectDevice(ctx, p.cfg.Audio.Input, p.cfg.Audio.Fallback)
	if err != nil {
		return err
	}
	p.selection = selection
	if selection.Warning != "" {
		p.logger.Warn(selection.Warning)
	}

	if err := p.recorder.Start(ctx, selection.Device); err != nil {
		return err
	}

	levelCtx, cancel := context.WithCancel(context.Background())
	p.stopLevel = cancel
	p.levelDone = make(chan struct{})
	go p.levelLoop(levelCtx, p.levelDone)

	if p.cfg.Transcription.Warmup {
		go p.client.Warmup(context.Background())
	}

	p.started = true
	return nil
}

// StopAndTranscribe stops capture, analyzes the artifact, and submits it when
// the quality gate passes. A gate rejection is a normal result, not an error.
func (p *Pipeline) StopAndTranscribe(ctx context.Context) (session.StopResult, error) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return session.StopResult{}, session.ErrPipelineUnavailable
	}
	p.started = false
	stopLevel := p.stopLevel
	levelDone := p.levelDone
	selection := p.selection
	p.mu.Unlock()

	// The poller must be joined before Stop releases the session buffer so it
	// never reads freed samples.
	joinLevelPoller(stopLevel, levelDone)

	result := session.StopResult{AudioDevice: describeDevice(selection.Device)}

	artifact, err := p.recorder.Stop()
	if err != nil {
		return result, fmt.Errorf("stop recording: %w", err)
	}
	result.ArtifactPath = artifact

	metrics, err := p.analyzer.AnalyzeFile(artifact)
	if err != nil {
		return result, fmt.Errorf("analyze artifact: %w", err)
	}
	result.Metrics = &metrics

	if !metrics.HasVoice {
		result.Rejected = true
		result.RejectReason = p.analyzer.RejectReason(metrics)
		p.logger.Info("artifact rejected before upload",
			"reason", result.RejectReason,
			"duration_seconds", metrics.DurationSeconds,
			"rms", metrics.RMSLevel,
			"activity_ratio", metrics.VoiceActivityRatio,
		)
		return result, nil
	}

	text, err := p.client.Transcribe(ctx, artifact)
	if err != nil {
		return result, err
	}
	result.Transcript = text

	p.logger.Info("transcription complete",
		"device", result.AudioDevice,
		"duration_seconds", metrics.DurationSeconds,
		"quality_score", metrics.QualityScore,
		"transcript_chars", len(text),
	)
	return result, nil
}

// Cancel stops capture immediately and discards the session.
func (p *Pipeline) Cancel(_ context.Context) error {
	p.mu.Lock()
	started := p.started
	p.started = false
	stopLevel := p.stopLevel
	levelDone := p.levelDone
	p.mu.Unlock()

	if !started {
		return nil
	}

	joinLevelPoller(stopLevel, levelDone)
	_, err := p.recorder.Stop()
	if err != nil {
		p.logger.Warn("cancel: stop recording", "error", err)
	}
	return nil
}

// levelLoop polls the live input level until cancelled.
func (p *Pipeline) levelLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(levelInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			level := p.recorder.Level()
			p.logger.Debug("input level", "rms", level)
			if p.OnLevel != nil {
				p.OnLevel(level)
			}
		}
	}
}

// joinLevelPoller cancels the poller and waits for it to exit.
func joinLevelPoller(stop context.CancelFunc, done chan struct{}) {
	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
}

// Thresholds overlays configured analyzer tunables on the defaults.
func Thresholds(q config.QualityConfig) quality.Thresholds {
	t := quality.DefaultThresholds()
	if q.VoiceRMS > 0 {
		t.VoiceRMS = q.VoiceRMS
	}
	if q.MinDuration > 0 {
		t.MinDuration = q.MinDuration
	}
	if q.MinActivityRatio > 0 {
		t.MinActivityRatio = q.MinActivityRatio
	}
	if q.NoiseDominanceRatio > 0 {
		t.NoiseDominanceRatio = q.NoiseDominanceRatio
	}
	if q.VADPercentile > 0 {
		t.VADPercentile = q.VADPercentile
	}
	return t
}

// describeDevice formats device metadata for logs/session results.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}
