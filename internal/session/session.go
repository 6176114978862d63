// Package session coordinates dictation lifecycle state, actions, and commit flow.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxpipe/voxpipe/internal/fsm"
	"github.com/voxpipe/voxpipe/internal/quality"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State        fsm.State
	Transcript   string
	Cancelled    bool
	Rejected     bool
	RejectReason string
	Err          error
	AudioDevice  string
	ArtifactPath string
	Metrics      *quality.Metrics
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Controller orchestrates session state transitions and side effects.
type Controller struct {
	logger     *slog.Logger
	transcribe Transcriber
	commit     Committer

	mu    sync.RWMutex
	state fsm.State

	actions chan action
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(logger *slog.Logger, transcriber Transcriber, committer Committer) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if transcriber == nil {
		transcriber = PlaceholderTranscriber{}
	}
	if committer == nil {
		committer = CommitFunc(func(context.Context, string) error { return nil })
	}

	return &Controller{
		logger:     logger,
		transcribe: transcriber,
		commit:     committer,
		state:      fsm.StateIdle,
		actions:    make(chan action, 1),
	}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run executes one dictation lifecycle from start to stop/cancel/failure
// completion. It blocks until RequestStop/RequestCancel fires or ctx is done.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	if err := c.transition(fsm.EventStart); err != nil {
		return c.finish(result, err)
	}

	if err := c.transcribe.Start(ctx); err != nil {
		c.toErrorAndReset()
		return c.finish(result, err)
	}

	select {
	case <-ctx.Done():
		_ = c.transcribe.Cancel(context.Background())
		c.toErrorAndReset()
		return c.finish(result, ctx.Err())
	case a := <-c.actions:
		switch a {
		case actionCancel:
			_ = c.transcribe.Cancel(context.Background())
			_ = c.transition(fsm.EventCancel)
			result.Cancelled = true
			return c.finish(result, nil)
		case actionStop:
			if err := c.transition(fsm.EventStop); err != nil {
				c.toErrorAndReset()
				return c.finish(result, err)
			}

			stopResult, err := c.transcribe.StopAndTranscribe(ctx)
			result.AudioDevice = stopResult.AudioDevice
			result.ArtifactPath = stopResult.ArtifactPath
			result.Metrics = stopResult.Metrics
			if err != nil {
				c.toErrorAndReset()
				return c.finish(result, err)
			}

			if stopResult.Rejected {
				c.logger.Info("recording rejected by quality gate", "reason", stopResult.RejectReason)
				_ = c.transition(fsm.EventReject)
				result.Rejected = true
				result.RejectReason = stopResult.RejectReason
				return c.finish(result, nil)
			}

			result.Transcript = stopResult.Transcript
			if strings.TrimSpace(stopResult.Transcript) == "" {
				c.toErrorAndReset()
				return c.finish(result, ErrEmptyTranscript)
			}

			if err := c.commit.Commit(ctx, stopResult.Transcript); err != nil {
				c.toErrorAndReset()
				return c.finish(result, err)
			}

			if err := c.transition(fsm.EventTranscribed); err != nil {
				return c.finish(result, err)
			}
			return c.finish(result, nil)
		default:
			c.toErrorAndReset()
			return c.finish(result, fmt.Errorf("unknown action %d", a))
		}
	}
}

// RequestStop enqueues a stop action when state permits it.
func (c *Controller) RequestStop() error {
	state := c.State()
	if state == fsm.StateTranscribing {
		return errors.New("already transcribing")
	}
	if state != fsm.StateRecording {
		return fmt.Errorf("cannot stop from state %s", state)
	}

	select {
	case c.actions <- actionStop:
	default:
		// An action is already pending; stop is idempotent.
	}
	return nil
}

// RequestCancel enqueues a cancel action when state permits it.
func (c *Controller) RequestCancel() error {
	state := c.State()
	if state == fsm.StateTranscribing {
		return errors.New("cannot cancel while transcribing")
	}
	if state != fsm.StateRecording {
		return fmt.Errorf("cannot cancel from state %s", state)
	}

	select {
	case c.actions <- actionCancel:
	default:
	}
	return nil
}

// finish stamps the result with the terminal state and completion time.
func (c *Controller) finish(result Result, err error) Result {
	result.State = c.State()
	result.Err = err
	result.FinishedAt = time.Now()
	return result
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

// IsPipelineUnavailable reports whether an error represents missing pipeline wiring.
func IsPipelineUnavailable(err error) bool {
	return errors.Is(err, ErrPipelineUnavailable)
}
