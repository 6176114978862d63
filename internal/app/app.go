// Package app dispatches parsed CLI commands against the runtime wiring.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/voxpipe/voxpipe/internal/audio"
	"github.com/voxpipe/voxpipe/internal/cli"
	"github.com/voxpipe/voxpipe/internal/config"
	"github.com/voxpipe/voxpipe/internal/doctor"
	"github.com/voxpipe/voxpipe/internal/logging"
	"github.com/voxpipe/voxpipe/internal/pipeline"
	"github.com/voxpipe/voxpipe/internal/quality"
	"github.com/voxpipe/voxpipe/internal/session"
	"github.com/voxpipe/voxpipe/internal/transcribe"
	"github.com/voxpipe/voxpipe/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("voxpipe"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("voxpipe"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded, logger)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandAnalyze:
		return r.commandAnalyze(cfgLoaded.Config, parsed.File)
	case cli.CommandTranscribe:
		return r.commandTranscribe(ctx, cfgLoaded.Config, parsed.File, logger)
	case cli.CommandModels:
		return r.commandModels(ctx, cfgLoaded.Config, logger)
	case cli.CommandRecord:
		return r.commandRecord(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDoctor(ctx context.Context, cfgLoaded config.Loaded, logger *slog.Logger) int {
	client := newTranscribeClient(cfgLoaded.Config, logger)
	report := doctor.Run(ctx, cfgLoaded, client)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandAnalyze(cfg config.Config, path string) int {
	analyzer := quality.NewAnalyzer(pipeline.Thresholds(cfg.Quality))
	metrics, err := analyzer.AnalyzeFile(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	printMetrics(r.Stdout, metrics)
	if metrics.HasVoice {
		return 0
	}
	fmt.Fprintf(r.Stderr, "rejected: %s\n", analyzer.RejectReason(metrics))
	return 1
}

func (r Runner) commandTranscribe(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) int {
	client := newTranscribeClient(cfg, logger)
	if !client.ValidateConfig() {
		for _, message := range client.ConfigErrors() {
			fmt.Fprintf(r.Stderr, "error: %s\n", message)
		}
		return 1
	}

	text, err := client.Transcribe(ctx, path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, text)
	return 0
}

func (r Runner) commandModels(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	client := newTranscribeClient(cfg, logger)
	ok, models, message := client.ListModels(ctx)
	fmt.Fprintln(r.Stdout, message)
	for _, model := range models {
		fmt.Fprintf(r.Stdout, "  %s\n", model)
	}
	if ok {
		return 0
	}
	return 1
}

// commandRecord runs one interactive dictation session: record until the
// process receives SIGINT/SIGTERM, then analyze, gate, and transcribe.
func (r Runner) commandRecord(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	p := pipeline.New(cfg, logger)
	committer := session.CommitFunc(func(_ context.Context, transcript string) error {
		_, err := fmt.Fprintln(r.Stdout, strings.TrimSpace(transcript))
		return err
	})
	controller := session.NewController(logger, p, committer)

	// The controller owns its own lifetime; the signal context only decides
	// when to request a stop, so a Ctrl-C transcribes instead of discarding.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	resultCh := make(chan session.Result, 1)
	go func() {
		resultCh <- controller.Run(runCtx)
	}()

	fmt.Fprintln(r.Stderr, "recording... press Ctrl-C to stop and transcribe")

	var result session.Result
	select {
	case result = <-resultCh:
		// Startup failed before any signal arrived.
	case <-ctx.Done():
		if err := controller.RequestStop(); err != nil {
			cancelRun()
		}
		result = <-resultCh
	}

	logSessionResult(logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if result.Rejected {
		fmt.Fprintf(r.Stderr, "rejected: %s\n", result.RejectReason)
		if result.Metrics != nil {
			printMetrics(r.Stderr, *result.Metrics)
		}
		return 1
	}

	return 0
}

// newTranscribeClient maps the transcription config onto a client.
func newTranscribeClient(cfg config.Config, logger *slog.Logger) *transcribe.Client {
	return transcribe.New(transcribe.Config{
		APIBase:  cfg.Transcription.APIBase,
		APIKey:   cfg.Transcription.APIKey,
		KeyAlias: cfg.Transcription.KeyAlias,
		Model:    cfg.Transcription.Model,
	}, logger)
}

// printMetrics renders the analyzer output as aligned key/value lines.
func printMetrics(w io.Writer, m quality.Metrics) {
	fmt.Fprintf(w, "has_voice:            %t\n", m.HasVoice)
	fmt.Fprintf(w, "duration_seconds:     %.2f\n", m.DurationSeconds)
	fmt.Fprintf(w, "sample_rate:          %d\n", m.SampleRate)
	fmt.Fprintf(w, "rms_level:            %.4f\n", m.RMSLevel)
	fmt.Fprintf(w, "peak_level:           %.4f\n", m.PeakLevel)
	fmt.Fprintf(w, "voice_activity_ratio: %.3f\n", m.VoiceActivityRatio)
	fmt.Fprintf(w, "noise_level:          %.4f\n", m.NoiseLevel)
	fmt.Fprintf(w, "dynamic_range_db:     %.1f\n", m.DynamicRangeDB)
	fmt.Fprintf(w, "clipping_detected:    %t\n", m.ClippingDetected)
	fmt.Fprintf(w, "quality_score:        %.0f\n", m.QualityScore)
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"rejected", result.Rejected,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_device", result.AudioDevice,
		"artifact", result.ArtifactPath,
		"transcript_length", len(result.Transcript),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
