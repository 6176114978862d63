package audio

import "math"

// trimWindowSeconds is the scan granularity for trailing-silence removal.
const trimWindowSeconds = 0.1

// trimTrailingSilence scans backward from the end of the capture in fixed
// windows and cuts after the last window whose RMS exceeds threshold, plus a
// fixed pad. Windows stay aligned to the start of the signal, which makes
// re-trimming an already trimmed capture a no-op beyond the pad. When no
// window exceeds the threshold the result is empty and the quality gate
// rejects it downstream.
func trimTrailingSilence(samples []int16, sampleRate int, threshold float64, padSeconds float64) []int16 {
	window := int(trimWindowSeconds * float64(sampleRate))
	if window <= 0 || len(samples) == 0 {
		return samples
	}

	lastVoicedEnd := -1
	for start := ((len(samples) - 1) / window) * window; start >= 0; start -= window {
		end := start + window
		if end > len(samples) {
			end = len(samples)
		}
		if rmsInt16(samples[start:end]) > threshold {
			lastVoicedEnd = end
			break
		}
	}
	if lastVoicedEnd < 0 {
		return samples[:0]
	}

	end := lastVoicedEnd + int(padSeconds*float64(sampleRate))
	if end > len(samples) {
		end = len(samples)
	}
	return samples[:end]
}

// rmsInt16 computes RMS amplitude of int16 samples normalized to [-1, 1].
func rmsInt16(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
