// Package capture holds the workflow capture document and the recorder that
// builds it one agent step at a time.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/hairizuan-noorazman/workflow-capture/internal/slug"
)

var (
	// ErrCaptureFinalized is returned when a finalized capture is mutated.
	ErrCaptureFinalized = errors.New("capture already finalized")

	// ErrNotFinalized is returned when an operation needs a finalized capture.
	ErrNotFinalized = errors.New("capture not finalized")

	// ErrInvalidStatus is returned when a status is unknown or not terminal.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidCapture is returned when a capture breaks a structural invariant.
	ErrInvalidCapture = errors.New("invalid capture")
)

// DirectoryTimeFormat is the timestamp layout used in task directory names.
const DirectoryTimeFormat = "20060102T150405Z"

// Status is the lifecycle state of a capture.
type Status string

const (
	StatusRunning     Status = "running"
	StatusDoneSuccess Status = "done_success"
	StatusDoneFailure Status = "done_failure"
	StatusAborted     Status = "aborted"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusRunning, StatusDoneSuccess, StatusDoneFailure, StatusAborted:
		return true
	default:
		return false
	}
}

// IsFinal checks if the status is terminal.
func (s Status) IsFinal() bool {
	return s == StatusDoneSuccess || s == StatusDoneFailure || s == StatusAborted
}

// Judgement is the evaluator's assessment of a finished task.
type Judgement struct {
	Verdict        bool   `json:"verdict"`
	Reasoning      string `json:"reasoning"`
	FailureReason  string `json:"failure_reason"`
	ImpossibleTask bool   `json:"impossible_task"`
	ReachedCaptcha bool   `json:"reached_captcha"`
}

// ActionInvocation is one action the agent executed during a step.
type ActionInvocation struct {
	ActionName string         `json:"action_name"`
	Params     map[string]any `json:"params"`
}

// StepRecord is one observation/action cycle of the agent.
type StepRecord struct {
	StepNumber     int                `json:"step_number"`
	URL            string             `json:"url"`
	Title          string             `json:"title"`
	ScreenshotPath *string            `json:"screenshot_path"`
	Description    string             `json:"description"`
	StepTask       string             `json:"step_task"`
	ActionsTaken   []ActionInvocation `json:"actions_taken"`
	Errors         []string           `json:"errors"`
	// Success is nil until a determination has been made for the step.
	Success   *bool      `json:"success"`
	IsDone    bool       `json:"is_done"`
	Judgement *Judgement `json:"judgement,omitempty"`
}

// Metadata describes the task execution as a whole.
type Metadata struct {
	AppName              string     `json:"app_name"`
	TaskName             string     `json:"task_name"`
	TaskDescription      string     `json:"task_description"`
	StartURL             string     `json:"start_url"`
	CaptureTimestamp     time.Time  `json:"capture_timestamp"`
	TotalDurationSeconds float64    `json:"total_duration_seconds"`
	TotalSteps           int        `json:"total_steps"`
	Success              bool       `json:"success"`
	Judgement            *Judgement `json:"judgement"`
	Status               Status     `json:"status,omitempty"`
	AbortReason          string     `json:"abort_reason,omitempty"`
	// RunID tells apart runs of the same task started in the same second.
	RunID string `json:"run_id,omitempty"`
}

// WorkflowCapture is the complete trace of one task execution.
type WorkflowCapture struct {
	Metadata Metadata     `json:"metadata"`
	Steps    []StepRecord `json:"steps"`
}

// Directory returns the task-scoped directory shared by the screenshots and
// the workflow document: {app}_{task_name}_{timestamp}_{run_id}.
func (c *WorkflowCapture) Directory() string {
	app := slug.Make(c.Metadata.AppName, 40)
	if app == "" {
		app = "unknown"
	}
	task := slug.Make(c.Metadata.TaskName, 60)
	if task == "" {
		task = "task"
	}
	dir := fmt.Sprintf("%s_%s_%s", app, task, c.Metadata.CaptureTimestamp.UTC().Format(DirectoryTimeFormat))
	if run := slug.Make(c.Metadata.RunID, 16); run != "" {
		dir += "_" + run
	}
	return dir
}

// Terminal returns the terminal step, or nil if the capture has no steps.
func (c *WorkflowCapture) Terminal() *StepRecord {
	if len(c.Steps) == 0 {
		return nil
	}
	return &c.Steps[len(c.Steps)-1]
}

// AttachJudgement sets the judgement on the metadata and mirrors it on the
// terminal step.
func (c *WorkflowCapture) AttachJudgement(j Judgement) error {
	last := c.Terminal()
	if !c.Metadata.Status.IsFinal() || last == nil || !last.IsDone {
		return ErrNotFinalized
	}
	meta, step := j, j
	c.Metadata.Judgement = &meta
	last.Judgement = &step
	return nil
}

// Validate checks the structural invariants of a finalized capture.
func (c *WorkflowCapture) Validate() error {
	if !c.Metadata.Status.IsFinal() {
		return fmt.Errorf("%w: status %q is not terminal", ErrInvalidCapture, c.Metadata.Status)
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidCapture)
	}
	if len(c.Steps) != c.Metadata.TotalSteps {
		return fmt.Errorf("%w: total_steps is %d but %d steps recorded", ErrInvalidCapture, c.Metadata.TotalSteps, len(c.Steps))
	}
	if c.Metadata.Success != (c.Metadata.Status == StatusDoneSuccess) {
		return fmt.Errorf("%w: success %t disagrees with status %q", ErrInvalidCapture, c.Metadata.Success, c.Metadata.Status)
	}

	last := len(c.Steps) - 1
	for i, step := range c.Steps {
		if step.StepNumber != i {
			return fmt.Errorf("%w: step at index %d has step_number %d", ErrInvalidCapture, i, step.StepNumber)
		}
		if step.IsDone != (i == last) {
			return fmt.Errorf("%w: step %d has is_done=%t", ErrInvalidCapture, i, step.IsDone)
		}
		if step.Judgement != nil && i != last {
			return fmt.Errorf("%w: judgement on non-terminal step %d", ErrInvalidCapture, i)
		}
	}
	return nil
}

// Summary is the human-facing digest of a capture.
type Summary struct {
	App            string        `json:"app"`
	Task           string        `json:"task"`
	Status         Status        `json:"status"`
	Duration       time.Duration `json:"duration"`
	Steps          int           `json:"steps"`
	Screenshots    int           `json:"screenshots"`
	Success        bool          `json:"success"`
	AbortReason    string        `json:"abort_reason,omitempty"`
	Judged         bool          `json:"judged"`
	Verdict        bool          `json:"verdict"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	ReachedCaptcha bool          `json:"reached_captcha"`
	ImpossibleTask bool          `json:"impossible_task"`
}

// Summarize returns the run summary logged at the end of each run.
func (c *WorkflowCapture) Summarize() Summary {
	s := Summary{
		App:         c.Metadata.AppName,
		Task:        c.Metadata.TaskName,
		Status:      c.Metadata.Status,
		Duration:    time.Duration(c.Metadata.TotalDurationSeconds * float64(time.Second)),
		Steps:       len(c.Steps),
		Success:     c.Metadata.Success,
		AbortReason: c.Metadata.AbortReason,
	}
	for _, step := range c.Steps {
		if step.ScreenshotPath != nil {
			s.Screenshots++
		}
	}
	if j := c.Metadata.Judgement; j != nil {
		s.Judged = true
		s.Verdict = j.Verdict
		s.FailureReason = j.FailureReason
		s.ReachedCaptcha = j.ReachedCaptcha
		s.ImpossibleTask = j.ImpossibleTask
	}
	return s
}
