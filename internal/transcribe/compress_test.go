package transcribe

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxpipe/voxpipe/internal/wav"
)

func TestDecimate(t *testing.T) {
	samples := []float64{0, 0.3, 0.6, 0.9, 0.3}
	out := decimate(samples, 3)
	require.Len(t, out, 2)
	require.InDelta(t, 0.3, out[0], 1e-9)
	require.InDelta(t, 0.6, out[1], 1e-9)

	require.Equal(t, samples, decimate(samples, 1))
	require.Empty(t, decimate(nil, 3))
}

func TestCompressArtifactDownsamplesHighRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hires.wav")
	samples := make([]float64, 48000) // 1s at 48kHz
	for i := range samples {
		samples[i] = 0.25
	}
	require.NoError(t, wav.WriteFloat(path, samples, 48000))

	data, err := compressArtifact(path)
	require.NoError(t, err)

	reencoded := decodeWAVBytes(t, data)
	require.Equal(t, 16000, reencoded.SampleRate)
	require.InDelta(t, 1.0, reencoded.Duration(), 0.01)
}

func TestCompressArtifactKeepsModerateRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moderate.wav")
	samples := make([]float64, 22050)
	require.NoError(t, wav.WriteFloat(path, samples, 22050))

	data, err := compressArtifact(path)
	require.NoError(t, err)

	reencoded := decodeWAVBytes(t, data)
	require.Equal(t, 22050, reencoded.SampleRate)
}

func TestLoadPayloadUsesCompressionOnlyPastCeiling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	samples := make([]float64, 48000)
	for i := range samples {
		samples[i] = 0.25
	}
	require.NoError(t, wav.WriteFloat(path, samples, 48000))

	client := newTestClient(t, "http://unused")

	// Under the ceiling: exact original bytes.
	payload, err := client.loadPayload(path)
	require.NoError(t, err)
	require.Len(t, payload, 48000*2+44)

	// Force the ceiling below the file size: payload is re-encoded smaller.
	client.sizeCeiling = 1024
	compressed, err := client.loadPayload(path)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(payload))
	require.False(t, bytes.Equal(payload, compressed))
}

// decodeWAVBytes round-trips encoder output through a temp file for decoding.
func decodeWAVBytes(t *testing.T, data []byte) wav.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decoded.wav")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	artifact, err := wav.ReadFile(path)
	require.NoError(t, err)
	return artifact
}
