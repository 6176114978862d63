// Package config resolves, parses, validates, and defaults the voxpipe
// runtime configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Quality       QualityConfig       `yaml:"quality"`
	Transcription TranscriptionConfig `yaml:"transcription"`
}

// AudioConfig controls device selection and capture behavior.
type AudioConfig struct {
	Input             string  `yaml:"input"`
	Fallback          string  `yaml:"fallback"`
	SampleRate        int     `yaml:"sample_rate"`
	MaxSessionSeconds int     `yaml:"max_session_seconds"`
	TrimThreshold     float64 `yaml:"trim_threshold"`
	TrimPadSeconds    float64 `yaml:"trim_pad_seconds"`
}

// QualityConfig exposes the analyzer tunables whose values are empirically
// tuned rather than derived.
type QualityConfig struct {
	VoiceRMS            float64 `yaml:"voice_rms"`
	MinDuration         float64 `yaml:"min_duration"`
	MinActivityRatio    float64 `yaml:"min_activity_ratio"`
	NoiseDominanceRatio float64 `yaml:"noise_dominance_ratio"`
	VADPercentile       float64 `yaml:"vad_percentile"`
}

// TranscriptionConfig holds endpoint credentials and model selection.
type TranscriptionConfig struct {
	APIBase  string `yaml:"api_base"`
	APIKey   string `yaml:"api_key"`
	KeyAlias string `yaml:"key_alias"`
	Model    string `yaml:"model"`
	Warmup   bool   `yaml:"warmup"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Message string
}
