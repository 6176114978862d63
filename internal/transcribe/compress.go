package transcribe

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/voxpipe/voxpipe/internal/wav"
)

// targetRate is what oversized artifacts are decimated toward; it matches
// the transcription model's native rate.
const targetRate = 16000

// compressArtifact re-encodes an oversized artifact as mono 16-bit PCM,
// downsampling toward 16kHz when the source rate exceeds 24kHz. Returns the
// bytes of the re-encoded WAV.
func compressArtifact(path string) ([]byte, error) {
	artifact, err := wav.ReadFile(path)
	if err != nil {
		return nil, err
	}

	samples := artifact.Samples
	rate := artifact.SampleRate
	if rate > 24000 {
		factor := int(math.Round(float64(rate) / targetRate))
		if factor < 2 {
			factor = 2
		}
		samples = decimate(samples, factor)
		rate = rate / factor
	}

	// The wav encoder needs a seekable sink for header backfill, so the
	// re-encode goes through a scratch file.
	scratch := filepath.Join(os.TempDir(), fmt.Sprintf("voxpipe-compress-%s.wav", uuid.NewString()[:8]))
	defer os.Remove(scratch)

	if err := wav.WriteFloat(scratch, samples, rate); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(scratch)
	if err != nil {
		return nil, fmt.Errorf("read compressed artifact: %w", err)
	}
	return data, nil
}

// decimate reduces the sample rate by an integer factor, averaging each
// block as a cheap anti-aliasing pass.
func decimate(samples []float64, factor int) []float64 {
	if factor <= 1 || len(samples) == 0 {
		return samples
	}
	out := make([]float64, 0, len(samples)/factor+1)
	for start := 0; start < len(samples); start += factor {
		end := start + factor
		if end > len(samples) {
			end = len(samples)
		}
		var sum float64
		for _, s := range samples[start:end] {
			sum += s
		}
		out = append(out, sum/float64(end-start))
	}
	return out
}
