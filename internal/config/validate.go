package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.MaxSessionSeconds <= 0 {
		return nil, fmt.Errorf("audio.max_session_seconds must be > 0")
	}
	if cfg.Audio.TrimThreshold < 0 {
		return nil, fmt.Errorf("audio.trim_threshold must be >= 0")
	}
	if cfg.Audio.TrimPadSeconds < 0 {
		return nil, fmt.Errorf("audio.trim_pad_seconds must be >= 0")
	}
	if cfg.Quality.VoiceRMS <= 0 {
		return nil, fmt.Errorf("quality.voice_rms must be > 0")
	}
	if cfg.Quality.MinDuration < 0 {
		return nil, fmt.Errorf("quality.min_duration must be >= 0")
	}
	if cfg.Quality.MinActivityRatio < 0 || cfg.Quality.MinActivityRatio > 1 {
		return nil, fmt.Errorf("quality.min_activity_ratio must be within [0, 1]")
	}
	if cfg.Quality.NoiseDominanceRatio <= 0 {
		return nil, fmt.Errorf("quality.noise_dominance_ratio must be > 0")
	}
	if cfg.Quality.VADPercentile < 0 || cfg.Quality.VADPercentile > 100 {
		return nil, fmt.Errorf("quality.vad_percentile must be within [0, 100]")
	}
	if strings.TrimSpace(cfg.Transcription.APIBase) == "" {
		return nil, fmt.Errorf("transcription.api_base must not be empty")
	}

	if cfg.Audio.SampleRate != 16000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio.sample_rate %d differs from the model-native 16000; large uploads will be resampled", cfg.Audio.SampleRate)})
	}
	if strings.TrimSpace(cfg.Transcription.APIKey) == "" {
		warnings = append(warnings, Warning{Message: "transcription.api_key is empty; transcription requests will fail until one is set"})
	}
	if strings.TrimSpace(cfg.Transcription.Model) == "" {
		warnings = append(warnings, Warning{Message: "transcription.model is empty; run 'voxpipe models' to list available models"})
	}

	return warnings, nil
}
