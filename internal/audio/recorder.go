package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/voxpipe/voxpipe/internal/wav"
)

// levelWindowSeconds is the live-level RMS window surfaced to pollers.
const levelWindowSeconds = 0.05

// RecorderConfig bundles the capture tunables.
type RecorderConfig struct {
	SampleRate        int
	MaxSessionSeconds int
	TrimThreshold     float64
	TrimPadSeconds    float64
	ArtifactDir       string
}

// withDefaults fills unset fields with the canonical capture defaults.
func (c RecorderConfig) withDefaults() RecorderConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.MaxSessionSeconds <= 0 {
		c.MaxSessionSeconds = 30
	}
	if c.TrimThreshold <= 0 {
		c.TrimThreshold = 0.01
	}
	if c.TrimPadSeconds <= 0 {
		c.TrimPadSeconds = 0.2
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = filepath.Join(os.TempDir(), "voxpipe")
	}
	return c
}

// Recorder owns at most one live recording session process-wide.
type Recorder struct {
	cfg    RecorderConfig
	logger *slog.Logger

	mu   sync.Mutex
	sess *recordingSession
}

// recordingSession is the per-recording state: a fixed-capacity sample
// buffer filled by the Pulse callback plus the handles needed to stop it.
type recordingSession struct {
	device    Device
	buf       []int16
	n         int
	startedAt time.Time
	stopped   bool
	client    *pulse.Client
	stream    *pulse.RecordStream
}

// NewRecorder constructs a recorder; nil logger disables capture logging.
func NewRecorder(cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{cfg: cfg.withDefaults(), logger: logger}
}

// Active reports whether a recording session is currently live.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess != nil && !r.sess.stopped
}

// Device returns the device of the live session for diagnostics.
func (r *Recorder) Device() Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return Device{}
	}
	return r.sess.device
}

// Start probes the device for exclusive availability, allocates the session
// buffer, and begins filling it from the Pulse backend. Starting while a
// session is active fails with ErrAlreadyRecording and leaves the live
// session untouched.
func (r *Recorder) Start(_ context.Context, device Device) error {
	if r.Active() {
		return ErrAlreadyRecording
	}

	if err := Probe(device, r.cfg.SampleRate); err != nil {
		return err
	}

	client, err := newPulseClient()
	if err != nil {
		return classifyDeviceError(err)
	}
	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return fmt.Errorf("%w: resolve source %q: %v", ErrDeviceUnavailable, device.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess != nil {
		client.Close()
		return ErrAlreadyRecording
	}

	sess := &recordingSession{
		device:    device,
		buf:       make([]int16, r.cfg.MaxSessionSeconds*r.cfg.SampleRate),
		startedAt: time.Now(),
		client:    client,
	}

	sink := pulse.NewWriter(writerFunc(r.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		sink,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(r.cfg.SampleRate),
		pulse.RecordMediaName("voxpipe dictation"),
	)
	if err != nil {
		client.Close()
		return classifyDeviceError(err)
	}
	sess.stream = stream

	r.sess = sess
	stream.Start()
	r.logger.Info("recording started",
		"device", Describe(device),
		"sample_rate", r.cfg.SampleRate,
		"buffer_seconds", r.cfg.MaxSessionSeconds,
	)
	return nil
}

// Level returns the RMS amplitude of the most recent ~50ms of captured
// samples, or 0 when idle. Non-blocking beyond the session mutex; reads
// only the bounded session buffer.
func (r *Recorder) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.sess
	if sess == nil || sess.stopped || sess.n == 0 {
		return 0
	}
	window := int(levelWindowSeconds * float64(r.cfg.SampleRate))
	if window <= 0 {
		return 0
	}
	start := sess.n - window
	if start < 0 {
		start = 0
	}
	return rmsInt16(sess.buf[start:sess.n])
}

// Stop halts capture, trims trailing silence, writes the mono PCM16 artifact,
// and releases the session buffer. The buffer is zeroed even when artifact
// serialization fails so a later session can never observe stale samples.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	sess := r.sess
	if sess == nil || sess.stopped {
		r.mu.Unlock()
		return "", ErrNotRecording
	}
	sess.stopped = true
	elapsed := time.Since(sess.startedAt)
	r.mu.Unlock()

	// Halt hardware capture before touching the samples; the Pulse callback
	// exits on the stopped flag.
	if sess.stream != nil {
		sess.stream.Stop()
		sess.stream.Close()
	}
	if sess.client != nil {
		sess.client.Close()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The buffer is pre-allocated to the session maximum and normally only
	// partially filled; bound the captured region by wall-clock time as well
	// as the write cursor.
	captured := int(elapsed.Seconds() * float64(r.cfg.SampleRate))
	if captured > sess.n {
		captured = sess.n
	}

	trimmed := trimTrailingSilence(sess.buf[:captured], r.cfg.SampleRate, r.cfg.TrimThreshold, r.cfg.TrimPadSeconds)
	path, err := r.writeArtifact(trimmed)

	for i := range sess.buf {
		sess.buf[i] = 0
	}
	sess.buf = nil
	r.sess = nil

	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	r.logger.Info("recording stopped",
		"device", Describe(sess.device),
		"captured_samples", captured,
		"trimmed_samples", len(trimmed),
		"artifact", path,
	)
	return path, nil
}

// onPCM receives raw Pulse frames and appends them to the session buffer up
// to its fixed capacity; overflow past the capacity is dropped.
func (r *Recorder) onPCM(buffer []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.sess
	if sess == nil || sess.stopped {
		return 0, io.EOF
	}
	for i := 0; i+1 < len(buffer); i += 2 {
		if sess.n >= len(sess.buf) {
			break
		}
		sess.buf[sess.n] = int16(binary.LittleEndian.Uint16(buffer[i:]))
		sess.n++
	}
	return len(buffer), nil
}

// writeArtifact persists trimmed samples to a fresh uniquely named WAV file.
func (r *Recorder) writeArtifact(samples []int16) (string, error) {
	if err := os.MkdirAll(r.cfg.ArtifactDir, 0o700); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	name := fmt.Sprintf("recording-%d-%s.wav", time.Now().UnixMilli(), uuid.NewString()[:8])
	path := filepath.Join(r.cfg.ArtifactDir, name)
	if err := wav.WritePCM16(path, samples, r.cfg.SampleRate); err != nil {
		return "", err
	}
	return path, nil
}
