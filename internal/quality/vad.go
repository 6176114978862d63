package quality

import (
	"math"
	"sort"
)

// detectSegments runs energy-based voice activity detection: 25ms frames at
// a 10ms hop, an adaptive threshold of max(VoiceRMS, percentile of frame
// energies), and suppression of voiced runs shorter than MinSegmentSeconds.
func (a *Analyzer) detectSegments(samples []float64, sampleRate int) []Segment {
	t := a.thresholds

	frameLen := int(t.FrameSeconds * float64(sampleRate))
	hop := int(t.HopSeconds * float64(sampleRate))
	if frameLen <= 0 || hop <= 0 {
		return nil
	}

	var energies []float64
	for start := 0; start+frameLen < len(samples); start += hop {
		energies = append(energies, rms(samples[start:start+frameLen]))
	}
	if len(energies) == 0 {
		return nil
	}

	// Adapting to the ambient energy distribution instead of a single global
	// constant keeps quiet rooms and loud rooms comparable.
	threshold := math.Max(t.VoiceRMS, percentile(energies, t.VADPercentile))

	var segments []Segment
	inSegment := false
	var segmentStart float64

	flush := func(endTime float64) {
		duration := endTime - segmentStart
		if duration < t.MinSegmentSeconds {
			return
		}
		startFrame := int(segmentStart / t.HopSeconds)
		endFrame := int(endTime / t.HopSeconds)
		confidence := meanRange(energies, startFrame, endFrame) / threshold
		if confidence > 1 {
			confidence = 1
		}
		segments = append(segments, Segment{
			StartTime:  segmentStart,
			EndTime:    endTime,
			Duration:   duration,
			Confidence: confidence,
		})
	}

	for i, energy := range energies {
		timePos := float64(i) * t.HopSeconds
		voiced := energy > threshold
		switch {
		case voiced && !inSegment:
			inSegment = true
			segmentStart = timePos
		case !voiced && inSegment:
			flush(timePos)
			inSegment = false
		}
	}
	if inSegment {
		flush(float64(len(samples)) / float64(sampleRate))
	}
	return segments
}

// meanRange averages values[start:end] with clamped bounds.
func meanRange(values []float64, start, end int) float64 {
	if start < 0 {
		start = 0
	}
	if end > len(values) {
		end = len(values)
	}
	if start >= end {
		return 0
	}
	var sum float64
	for _, v := range values[start:end] {
		sum += v
	}
	return sum / float64(end-start)
}

// percentile computes the p-th percentile with linear interpolation between
// closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	frac := rank - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
