// Package wav serializes and decodes the mono 16-bit PCM artifacts passed
// between the recorder, the quality analyzer, and the transcription client.
package wav

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Artifact is a decoded recording: mono samples normalized to [-1, 1].
type Artifact struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the artifact length in seconds.
func (a Artifact) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// WritePCM16 writes mono int16 samples as a 16-bit PCM WAV file.
func WritePCM16(path string, samples []int16, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %q: %w", path, err)
	}

	if err := encodePCM16(file, samples, sampleRate); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteFloat clamps [-1, 1] float samples to int16 and writes them.
func WriteFloat(path string, samples []float64, sampleRate int) error {
	return WritePCM16(path, QuantizeFloat(samples), sampleRate)
}

// QuantizeFloat converts normalized float samples to int16 PCM values.
func QuantizeFloat(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// ReadFile decodes a WAV file, mixing multi-channel audio down to mono.
func ReadFile(path string) (Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact %q: %w", path, err)
	}
	defer file.Close()

	decoder := gowav.NewDecoder(file)
	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return Artifact{}, fmt.Errorf("decode artifact %q: %w", path, err)
	}
	if buffer == nil || buffer.Format == nil {
		return Artifact{}, fmt.Errorf("decode artifact %q: missing format", path)
	}

	channels := buffer.Format.NumChannels
	if channels <= 0 {
		return Artifact{}, fmt.Errorf("decode artifact %q: invalid channel count %d", path, channels)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := mixToMono(buffer, channels, scale)
	return Artifact{Samples: samples, SampleRate: buffer.Format.SampleRate}, nil
}

// mixToMono averages interleaved channels into one normalized channel.
func mixToMono(buffer *audio.IntBuffer, channels int, scale float64) []float64 {
	frames := len(buffer.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buffer.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float64(channels)
	}
	return samples
}

// encodePCM16 streams samples through the go-audio encoder.
func encodePCM16(file *os.File, samples []int16, sampleRate int) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	encoder := gowav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := encoder.Write(buffer); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
