// Package quality decides whether a recording contains usable speech before
// a network call is spent on it, and quantifies how good the audio is.
package quality

// Metrics is the immutable analysis result for one artifact.
type Metrics struct {
	HasVoice           bool
	RMSLevel           float64
	PeakLevel          float64
	DurationSeconds    float64
	SampleRate         int
	VoiceActivityRatio float64
	NoiseLevel         float64
	DynamicRangeDB     float64
	ClippingDetected   bool
	QualityScore       float64
}

// Segment is one detected run of voiced frames; consumed only internally to
// compute the voice activity ratio.
type Segment struct {
	StartTime  float64
	EndTime    float64
	Duration   float64
	Confidence float64
}

// Thresholds holds every analyzer tunable. The noise-dominance ratio and the
// adaptive VAD percentile are empirically tuned against real recordings, not
// derived, so they stay overridable rather than hard-coded.
type Thresholds struct {
	VoiceRMS            float64 // minimum overall RMS for speech
	SilenceRMS          float64 // below this a recording reads as silent
	MinDuration         float64 // seconds
	MinActivityRatio    float64 // minimum voiced fraction of the recording
	NoiseDominanceRatio float64 // reject when noise > rms * ratio
	VADPercentile       float64 // adaptive frame-energy threshold percentile
	NoisePercentile     float64 // noise-floor estimate percentile
	ClippingPeak        float64 // peak level that counts as clipping
	MinSegmentSeconds   float64 // voiced runs shorter than this are spikes
	FrameSeconds        float64 // VAD frame length
	HopSeconds          float64 // VAD frame hop
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VoiceRMS:            0.005,
		SilenceRMS:          0.003,
		MinDuration:         0.2,
		MinActivityRatio:    0.03,
		NoiseDominanceRatio: 0.8,
		VADPercentile:       40,
		NoisePercentile:     20,
		ClippingPeak:        0.98,
		MinSegmentSeconds:   0.1,
		FrameSeconds:        0.025,
		HopSeconds:          0.010,
	}
}
