package transcribe

import (
	"errors"
	"fmt"
)

// Failure taxonomy. InvalidCredentials is fatal and never retried; the
// service-unavailable and network classes are retried up to the attempt
// budget before surfacing.
var (
	ErrInvalidCredentials = errors.New("transcription API key is invalid")
	ErrServiceUnavailable = errors.New("transcription service is temporarily unavailable")
	ErrNetwork            = errors.New("transcription network error")
	ErrRetriesExhausted   = errors.New("transcription failed after 3 attempts")
)

// StatusError carries the final non-2xx status code once retries are spent.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("transcription failed (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("transcription failed (HTTP %d): %s", e.StatusCode, e.Body)
}
