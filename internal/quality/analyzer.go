package quality

import (
	"math"

	"github.com/voxpipe/voxpipe/internal/wav"
)

// noiseWindow is the sliding window (in samples) for noise-floor estimation,
// advanced at 50% overlap.
const noiseWindow = 1024

// Analyzer computes Metrics for finished artifacts. It is a pure function of
// the samples and sample rate: no I/O beyond reading the artifact, no shared
// mutable state, safe from any goroutine.
type Analyzer struct {
	thresholds Thresholds
}

// NewAnalyzer builds an analyzer; zero-valued thresholds fall back to defaults.
func NewAnalyzer(thresholds Thresholds) *Analyzer {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Analyzer{thresholds: thresholds}
}

// AnalyzeFile decodes a WAV artifact (mixing to mono) and analyzes it.
func (a *Analyzer) AnalyzeFile(path string) (Metrics, error) {
	artifact, err := wav.ReadFile(path)
	if err != nil {
		return Metrics{}, err
	}
	return a.Analyze(artifact.Samples, artifact.SampleRate), nil
}

// Analyze computes the full metric set for normalized mono samples.
func (a *Analyzer) Analyze(samples []float64, sampleRate int) Metrics {
	t := a.thresholds

	duration := 0.0
	if sampleRate > 0 {
		duration = float64(len(samples)) / float64(sampleRate)
	}
	rmsLevel := rms(samples)
	peakLevel := peak(samples)

	segments := a.detectSegments(samples, sampleRate)
	activityRatio := voiceRatio(segments, duration)

	noiseLevel := a.estimateNoiseLevel(samples)
	dynamicRange := dynamicRangeDB(peakLevel, rmsLevel)
	clipping := peakLevel > t.ClippingPeak

	hasVoice := duration >= t.MinDuration &&
		rmsLevel > t.VoiceRMS &&
		activityRatio > t.MinActivityRatio &&
		!(noiseLevel > rmsLevel*t.NoiseDominanceRatio)

	score := qualityScore(rmsLevel, duration, activityRatio, noiseLevel, dynamicRange, clipping)

	return Metrics{
		HasVoice:           hasVoice,
		RMSLevel:           rmsLevel,
		PeakLevel:          peakLevel,
		DurationSeconds:    duration,
		SampleRate:         sampleRate,
		VoiceActivityRatio: activityRatio,
		NoiseLevel:         noiseLevel,
		DynamicRangeDB:     dynamicRange,
		ClippingDetected:   clipping,
		QualityScore:       score,
	}
}

// RejectReason names the dominant failing gate for a non-voice result. The
// gates are checked in the order they most often fail in practice.
func (a *Analyzer) RejectReason(m Metrics) string {
	t := a.thresholds
	switch {
	case m.DurationSeconds < t.MinDuration:
		return "recording too short"
	case m.RMSLevel <= t.VoiceRMS:
		return "input level too low"
	case m.NoiseLevel > m.RMSLevel*t.NoiseDominanceRatio:
		return "background noise dominates"
	case m.VoiceActivityRatio <= t.MinActivityRatio:
		return "too little voice activity"
	default:
		return "no voice detected"
	}
}

// estimateNoiseLevel takes a low percentile of sliding-window RMS values as
// the noise floor. A percentile rather than the minimum resists single
// silent outlier windows.
func (a *Analyzer) estimateNoiseLevel(samples []float64) float64 {
	var values []float64
	for start := 0; start+noiseWindow < len(samples); start += noiseWindow / 2 {
		values = append(values, rms(samples[start:start+noiseWindow]))
	}
	if len(values) == 0 {
		return 0
	}
	return percentile(values, a.thresholds.NoisePercentile)
}

// voiceRatio is total voiced time over total duration, clamped to [0, 1].
func voiceRatio(segments []Segment, duration float64) float64 {
	if len(segments) == 0 || duration <= 0 {
		return 0
	}
	var voiced float64
	for _, segment := range segments {
		voiced += segment.Duration
	}
	ratio := voiced / duration
	if ratio > 1 {
		return 1
	}
	return ratio
}

// dynamicRangeDB is 20*log10(peak/rms), or 0 for degenerate signals.
func dynamicRangeDB(peakLevel, rmsLevel float64) float64 {
	if peakLevel <= 0 || rmsLevel <= 0 {
		return 0
	}
	return 20 * math.Log10(peakLevel/rmsLevel)
}

// qualityScore folds the metrics into a 0-100 diagnostic score. It informs
// UI feedback only; the accept/reject gate is hasVoice.
func qualityScore(rmsLevel, duration, activityRatio, noiseLevel, dynamicRange float64, clipping bool) float64 {
	score := 100.0

	if rmsLevel < 0.01 {
		score -= 30 // too quiet
	} else if rmsLevel > 0.5 {
		score -= 20 // too loud
	}

	if duration < 1.0 {
		score -= 20 * (1.0 - duration)
	}

	if activityRatio > 0.5 {
		score += 10
	} else if activityRatio < 0.1 {
		score -= 30
	}

	if noiseLevel > rmsLevel*0.5 {
		score -= 25
	}

	if dynamicRange < 6.0 {
		score -= 15
	}

	if clipping {
		score -= 20
	}

	return math.Max(0, math.Min(100, score))
}

// rms computes root-mean-square amplitude.
func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// peak computes the maximum absolute amplitude.
func peak(samples []float64) float64 {
	var max float64
	for _, s := range samples {
		if v := math.Abs(s); v > max {
			max = v
		}
	}
	return max
}
