package audio

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxpipe/voxpipe/internal/wav"
)

// installSession injects a live session without touching Pulse so the buffer
// and stop paths can be exercised hermetically.
func installSession(t *testing.T, r *Recorder, startedAgo time.Duration) *recordingSession {
	t.Helper()
	sess := &recordingSession{
		device:    Device{ID: "test-mic", Description: "Test Mic"},
		buf:       make([]int16, r.cfg.MaxSessionSeconds*r.cfg.SampleRate),
		startedAt: time.Now().Add(-startedAgo),
	}
	r.mu.Lock()
	r.sess = sess
	r.mu.Unlock()
	return sess
}

// pcmBytes encodes int16 samples as the little-endian byte stream Pulse delivers.
func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	return NewRecorder(RecorderConfig{
		SampleRate:        16000,
		MaxSessionSeconds: 2,
		ArtifactDir:       t.TempDir(),
	}, nil)
}

func TestStartWhileActiveReturnsAlreadyRecording(t *testing.T) {
	r := newTestRecorder(t)
	sess := installSession(t, r, time.Second)

	_, err := r.onPCM(pcmBytes([]int16{100, 200, 300}))
	require.NoError(t, err)
	require.Equal(t, 3, sess.n)

	err = r.Start(context.Background(), Device{ID: "other"})
	require.ErrorIs(t, err, ErrAlreadyRecording)

	// The live session's buffer must be untouched by the rejected start.
	require.Equal(t, 3, sess.n)
	require.Equal(t, int16(100), sess.buf[0])
}

func TestStopWithoutSessionReturnsNotRecording(t *testing.T) {
	r := newTestRecorder(t)
	_, err := r.Stop()
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestOnPCMFillsBufferUpToCapacity(t *testing.T) {
	r := newTestRecorder(t)
	sess := installSession(t, r, time.Second)

	capacity := len(sess.buf)
	oversized := make([]int16, capacity+500)
	for i := range oversized {
		oversized[i] = 1000
	}

	n, err := r.onPCM(pcmBytes(oversized))
	require.NoError(t, err)
	require.Equal(t, len(oversized)*2, n)
	require.Equal(t, capacity, sess.n) // overflow dropped, no reallocation
}

func TestLevelReflectsRecentSamples(t *testing.T) {
	r := newTestRecorder(t)
	require.Zero(t, r.Level()) // idle

	installSession(t, r, time.Second)
	require.Zero(t, r.Level()) // no samples yet

	loud := make([]int16, 1600)
	for i := range loud {
		loud[i] = 16000
	}
	_, err := r.onPCM(pcmBytes(loud))
	require.NoError(t, err)

	level := r.Level()
	require.InDelta(t, 0.488, level, 0.01)
}

func TestStopWritesTrimmedArtifactAndClearsState(t *testing.T) {
	r := newTestRecorder(t)
	installSession(t, r, time.Second)

	// 0.5s of steady tone followed by 0.4s of silence.
	samples := make([]int16, 14400)
	for i := 0; i < 8000; i++ {
		samples[i] = 8000
	}
	_, err := r.onPCM(pcmBytes(samples))
	require.NoError(t, err)

	path, err := r.Stop()
	require.NoError(t, err)
	require.False(t, r.Active())

	artifact, err := wav.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 16000, artifact.SampleRate)
	// Voiced region plus the 0.2s pad.
	require.Len(t, artifact.Samples, 8000+3200)

	_, err = r.Stop()
	require.ErrorIs(t, err, ErrNotRecording)
	require.Zero(t, r.Level())
}

func TestStopBoundsCaptureByWallClock(t *testing.T) {
	r := newTestRecorder(t)
	installSession(t, r, 0) // just started

	loud := make([]int16, 16000)
	for i := range loud {
		loud[i] = 12000
	}
	_, err := r.onPCM(pcmBytes(loud))
	require.NoError(t, err)

	path, err := r.Stop()
	require.NoError(t, err)

	artifact, err := wav.ReadFile(path)
	require.NoError(t, err)
	// Essentially no wall-clock time elapsed, so almost nothing is kept even
	// though the buffer holds a full second of samples.
	require.Less(t, len(artifact.Samples), 4000)
}

func TestSecondSessionNeverContainsPriorSamples(t *testing.T) {
	r := newTestRecorder(t)
	installSession(t, r, time.Second)

	first := make([]int16, 16000)
	for i := range first {
		first[i] = 30000
	}
	_, err := r.onPCM(pcmBytes(first))
	require.NoError(t, err)
	_, err = r.Stop()
	require.NoError(t, err)

	installSession(t, r, time.Second)
	second := make([]int16, 8000)
	for i := range second {
		second[i] = 8000
	}
	_, err = r.onPCM(pcmBytes(second))
	require.NoError(t, err)

	path, err := r.Stop()
	require.NoError(t, err)

	artifact, err := wav.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, artifact.Samples, 8000)
	for _, s := range artifact.Samples {
		require.InDelta(t, 8000.0/32768, s, 1e-3) // no phantom audio from the first session
	}
}

func TestOnPCMAfterStopReturnsEOF(t *testing.T) {
	r := newTestRecorder(t)
	sess := installSession(t, r, time.Second)
	sess.stopped = true

	_, err := r.onPCM(pcmBytes([]int16{1, 2, 3}))
	require.Error(t, err)
}

func TestRecorderConfigDefaults(t *testing.T) {
	cfg := RecorderConfig{}.withDefaults()
	require.Equal(t, 16000, cfg.SampleRate)
	require.Equal(t, 30, cfg.MaxSessionSeconds)
	require.InDelta(t, 0.01, cfg.TrimThreshold, 1e-9)
	require.InDelta(t, 0.2, cfg.TrimPadSeconds, 1e-9)
	require.NotEmpty(t, cfg.ArtifactDir)
}
