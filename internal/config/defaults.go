package config

// Default returns the canonical runtime configuration used when no file is
// present. 16kHz capture matches the transcription model's native rate and
// avoids resampling.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Input:             "default",
			Fallback:          "default",
			SampleRate:        16000,
			MaxSessionSeconds: 30,
			TrimThreshold:     0.01,
			TrimPadSeconds:    0.2,
		},
		Quality: QualityConfig{
			VoiceRMS:            0.005,
			MinDuration:         0.2,
			MinActivityRatio:    0.03,
			NoiseDominanceRatio: 0.8,
			VADPercentile:       40,
		},
		Transcription: TranscriptionConfig{
			APIBase: "http://localhost:4000",
			Warmup:  true,
		},
	}
}
