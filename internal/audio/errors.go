package audio

import (
	"errors"
	"fmt"
	"strings"
)

// Capture error taxonomy. Callers branch on these with errors.Is: the
// busy/unavailable split drives different user remediation ("close the app
// holding the microphone" vs "check the microphone is plugged in").
var (
	ErrAlreadyRecording  = errors.New("recording already in progress")
	ErrNotRecording      = errors.New("no recording in progress")
	ErrDeviceBusy        = errors.New("audio device is in use by another application")
	ErrDeviceUnavailable = errors.New("audio device is unavailable")
	ErrCaptureFailed     = errors.New("audio capture failed")
)

// busyMarkers are backend error fragments that indicate exclusive holds
// rather than missing hardware.
var busyMarkers = []string{
	"busy",
	"access denied",
	"sharing violation",
	"in use",
	"resource temporarily unavailable",
}

// classifyDeviceError maps a backend probe/open failure onto the
// busy-vs-unavailable taxonomy.
func classifyDeviceError(err error) error {
	if err == nil {
		return nil
	}
	message := strings.ToLower(err.Error())
	for _, marker := range busyMarkers {
		if strings.Contains(message, marker) {
			return fmt.Errorf("%w: %v", ErrDeviceBusy, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
