package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/metrics"
	"github.com/hairizuan-noorazman/workflow-capture/screenshot"
)

// Termination messages written to the terminal step and the abort reason.
const (
	reasonNoCompletion = "automation ended without completion signal"
	reasonInterrupted  = "interrupted"
)

// Driver runs one task through an automation backend and turns its step
// events into a finalized capture.
type Driver struct {
	automation Automation
	shots      *screenshot.Store
	config     DriverConfig
	logger     logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewDriver creates a driver. A nil metrics collector is allowed.
func NewDriver(automation Automation, shots *screenshot.Store, config DriverConfig, log logger.Logger, m *metrics.Metrics) *Driver {
	return &Driver{
		automation: automation,
		shots:      shots,
		config:     config.withDefaults(),
		logger:     log,
		metrics:    m,
		now:        time.Now,
	}
}

// runState tracks the loop between events.
type runState struct {
	first, last time.Time
	failures    int
	outcome     *capture.Outcome
}

// Run executes task and returns its finalized capture. The capture is
// returned for every terminal outcome, including cancellation; an error is
// returned only when the task is invalid or the recorder rejects a step.
func (d *Driver) Run(ctx context.Context, task Task) (*capture.WorkflowCapture, error) {
	task = task.Normalize()
	if err := task.Validate(); err != nil {
		return nil, err
	}

	rec := capture.NewRecorder(capture.Metadata{
		AppName:          task.App,
		TaskName:         task.Name,
		TaskDescription:  task.Description,
		StartURL:         task.StartURL,
		CaptureTimestamp: d.now(),
	})
	taskDir := rec.Capture().Directory()
	log := d.logger.WithFields(map[string]interface{}{
		"app":      task.App,
		"task":     task.Name,
		"task_dir": taskDir,
	})
	log.Info(ctx, "capture run started", map[string]interface{}{
		"start_url": task.StartURL,
		"max_steps": d.config.MaxSteps,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan StepEvent, d.config.EventBuffer)
	done := make(chan error, 1)
	go func() {
		err := d.automation.Run(runCtx, task, events)
		close(events)
		done <- err
	}()

	var (
		st         runState
		backendErr error
		joined     bool
		fatal      error
	)

	for st.outcome == nil && fatal == nil {
		if ctx.Err() != nil {
			st.outcome = interrupted(ctx)
			break
		}

		select {
		case <-ctx.Done():
			st.outcome = interrupted(ctx)

		case ev, ok := <-events:
			if !ok {
				backendErr, joined = <-done, true
				switch {
				case ctx.Err() != nil:
					st.outcome = interrupted(ctx)
				case backendErr != nil:
					reason := fmt.Sprintf("automation failed: %v", backendErr)
					st.outcome = &capture.Outcome{Status: capture.StatusAborted, AbortReason: reason, TerminalError: reason}
				default:
					st.outcome = &capture.Outcome{Status: capture.StatusAborted, AbortReason: reasonNoCompletion, TerminalError: reasonNoCompletion}
				}
				break
			}

			now := d.now()
			if st.first.IsZero() {
				st.first = now
			}
			st.last = now

			step, err := d.record(ctx, log, rec, taskDir, ev)
			if err != nil {
				fatal = err
				break
			}
			st.outcome = d.terminal(&st, ev, step, rec.Len())
		}
	}

	// Stop the backend and wait for it so no goroutine outlives the run.
	cancel()
	if !joined {
		for range events {
		}
		backendErr = <-done
	}
	if backendErr != nil && !errors.Is(backendErr, context.Canceled) {
		log.Warn(ctx, "automation backend returned an error", map[string]interface{}{
			"error": backendErr.Error(),
		})
	}

	if fatal != nil {
		log.Error(ctx, "capture run aborted by recorder", map[string]interface{}{
			"error": fatal.Error(),
		})
		return nil, fatal
	}

	if !st.first.IsZero() {
		st.outcome.Duration = st.last.Sub(st.first)
	}
	c, err := rec.Finalize(*st.outcome)
	if err != nil {
		return nil, fmt.Errorf("finalizing capture: %w", err)
	}

	log.Info(ctx, "capture run finished", map[string]interface{}{
		"status":       string(c.Metadata.Status),
		"total_steps":  c.Metadata.TotalSteps,
		"abort_reason": c.Metadata.AbortReason,
	})
	return c, nil
}

// record saves the event's screenshot, then appends the step. A screenshot
// failure becomes a step error; a recorder failure is returned.
func (d *Driver) record(ctx context.Context, log logger.Logger, rec *capture.Recorder, taskDir string, ev StepEvent) (capture.StepRecord, error) {
	errs := append([]string{}, ev.Errors...)
	n := rec.Next()

	var shotPath *string
	if len(ev.Screenshot) > 0 && d.shots != nil {
		p, err := d.shots.Save(ctx, taskDir, n, ev.ScreenshotLabel, ev.Screenshot)
		if err != nil {
			d.metrics.ScreenshotFailed()
			log.Warn(ctx, "failed to save screenshot", map[string]interface{}{
				"step":  n,
				"error": err.Error(),
			})
			errs = append(errs, fmt.Sprintf("screenshot: %v", err))
		} else {
			shotPath = &p
		}
	}

	step, err := rec.Record(capture.Observation{
		URL:            ev.URL,
		Title:          ev.Title,
		Description:    ev.Description,
		StepTask:       ev.StepTask,
		ScreenshotPath: shotPath,
		Actions:        ev.Actions,
		Errors:         errs,
		Success:        ev.Success,
	})
	if err != nil {
		return capture.StepRecord{}, fmt.Errorf("recording step %d: %w", n, err)
	}

	d.metrics.StepRecorded(rec.Capture().Metadata.AppName)
	log.Debug(ctx, "step recorded", map[string]interface{}{
		"step":    step.StepNumber,
		"url":     step.URL,
		"errors":  len(step.Errors),
		"is_done": ev.IsDone,
	})
	return step, nil
}

// terminal applies the termination policy after a step: done, unrecoverable,
// consecutive failures, then the step cap.
func (d *Driver) terminal(st *runState, ev StepEvent, step capture.StepRecord, recorded int) *capture.Outcome {
	if ev.IsDone {
		if step.Success != nil && *step.Success && len(ev.Errors) == 0 && !ev.Unrecoverable {
			return &capture.Outcome{Status: capture.StatusDoneSuccess}
		}
		return &capture.Outcome{Status: capture.StatusDoneFailure}
	}

	if ev.Unrecoverable {
		reason := strings.Join(ev.Errors, "; ")
		if reason == "" {
			reason = "unrecoverable agent state"
		}
		return &capture.Outcome{Status: capture.StatusAborted, AbortReason: reason}
	}

	if len(ev.Errors) > 0 {
		st.failures++
	} else {
		st.failures = 0
	}
	if st.failures >= d.config.MaxConsecutiveFailures {
		reason := fmt.Sprintf("%d consecutive failed steps", st.failures)
		return &capture.Outcome{Status: capture.StatusAborted, AbortReason: reason, TerminalError: reason}
	}

	if recorded >= d.config.MaxSteps {
		return &capture.Outcome{
			Status:        capture.StatusDoneFailure,
			TerminalError: fmt.Sprintf("max step limit (%d) reached without completion", d.config.MaxSteps),
		}
	}
	return nil
}

func interrupted(ctx context.Context) *capture.Outcome {
	reason := fmt.Sprintf("%s: %v", reasonInterrupted, context.Cause(ctx))
	return &capture.Outcome{Status: capture.StatusAborted, AbortReason: reason, TerminalError: reason}
}
