// Package doctor runs runtime readiness diagnostics for config, audio, and
// the transcription endpoint.
package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxpipe/voxpipe/internal/audio"
	"github.com/voxpipe/voxpipe/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ConnectionTester is the endpoint probe the doctor runs last.
type ConnectionTester interface {
	TestConnection(ctx context.Context) (bool, string)
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, tester ConnectionTester) Report {
	checks := []Check{}

	checks = append(checks, checkConfig(cfg))
	checks = append(checks, checkCredentials(cfg.Config.Transcription))
	checks = append(checks, checkInputDevices(ctx))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkEndpoint(ctx, tester))

	return Report{Checks: checks}
}

// checkConfig reports where config came from and surfaces load warnings.
func checkConfig(cfg config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("%q not found; running on defaults", cfg.Path)
	}
	if len(cfg.Warnings) > 0 {
		notes := make([]string, 0, len(cfg.Warnings))
		for _, warning := range cfg.Warnings {
			notes = append(notes, warning.Message)
		}
		message = message + " (" + strings.Join(notes, "; ") + ")"
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkCredentials validates the fields transcription requests cannot run without.
func checkCredentials(cfg config.TranscriptionConfig) Check {
	missing := []string{}
	if strings.TrimSpace(cfg.APIBase) == "" {
		missing = append(missing, "api_base")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		missing = append(missing, "model")
	}
	if len(missing) > 0 {
		return Check{Name: "transcription.config", Pass: false, Message: "missing: " + strings.Join(missing, ", ")}
	}
	return Check{Name: "transcription.config", Pass: true, Message: "credentials and model configured"}
}

// checkInputDevices verifies the Pulse server is reachable and has sources.
func checkInputDevices(ctx context.Context) Check {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return Check{Name: "audio.devices", Pass: false, Message: err.Error()}
	}
	if len(devices) == 0 {
		return Check{Name: "audio.devices", Pass: false, Message: "no input devices found"}
	}
	return Check{Name: "audio.devices", Pass: true, Message: fmt.Sprintf("%d input device(s) found", len(devices))}
}

// checkAudioSelection runs live device selection and a short probe to surface
// exclusive-access issues before a real recording hits them.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	if err := audio.Probe(selection.Device, cfg.Audio.SampleRate); err != nil {
		return Check{Name: "audio.device", Pass: false, Message: fmt.Sprintf("selected %q but probe failed: %v", selection.Device.ID, err)}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkEndpoint probes the transcription API base for reachability and auth.
func checkEndpoint(ctx context.Context, tester ConnectionTester) Check {
	if tester == nil {
		return Check{Name: "transcription.endpoint", Pass: false, Message: "no endpoint tester wired"}
	}
	ok, message := tester.TestConnection(ctx)
	return Check{Name: "transcription.endpoint", Pass: ok, Message: message}
}
