package capture

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// runIDLength is the number of hex characters kept from a fresh uuid.
const runIDLength = 8

// Observation is the input to Recorder.Record: what the agent did and saw in
// one step, with the screenshot already persisted.
type Observation struct {
	URL            string
	Title          string
	Description    string
	StepTask       string
	ScreenshotPath *string
	Actions        []ActionInvocation
	Errors         []string
	Success        *bool
}

// Outcome describes how a run ended.
type Outcome struct {
	Status      Status
	AbortReason string
	// TerminalError is appended to the terminal step's errors when set.
	TerminalError string
	Duration      time.Duration
}

// Recorder accumulates step records for a single capture. It is safe for
// concurrent use, although a capture normally has exactly one writer.
type Recorder struct {
	mu        sync.Mutex
	capture   *WorkflowCapture
	finalized bool
}

// NewRecorder starts a capture with the given metadata. The capture timestamp
// is normalized to UTC and defaults to now; an empty run ID gets a random one.
func NewRecorder(meta Metadata) *Recorder {
	if meta.CaptureTimestamp.IsZero() {
		meta.CaptureTimestamp = time.Now()
	}
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()[:runIDLength]
	}
	meta.CaptureTimestamp = meta.CaptureTimestamp.UTC()
	meta.Status = StatusRunning
	meta.TotalSteps = 0
	meta.Success = false
	meta.Judgement = nil

	return &Recorder{
		capture: &WorkflowCapture{
			Metadata: meta,
			Steps:    []StepRecord{},
		},
	}
}

// Record appends the next step. Agent errors with no success determination
// mark the step as failed; every other combination keeps the tri-state as given.
func (r *Recorder) Record(obs Observation) (StepRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return StepRecord{}, ErrCaptureFinalized
	}

	step := StepRecord{
		StepNumber:     len(r.capture.Steps),
		URL:            obs.URL,
		Title:          obs.Title,
		ScreenshotPath: copyString(obs.ScreenshotPath),
		Description:    obs.Description,
		StepTask:       obs.StepTask,
		ActionsTaken:   copyActions(obs.Actions),
		Errors:         append([]string{}, obs.Errors...),
		Success:        copyBool(obs.Success),
	}
	if step.Success == nil && len(step.Errors) > 0 {
		step.Success = boolPtr(false)
	}

	r.capture.Steps = append(r.capture.Steps, step)
	return step, nil
}

// Next reports the step number the next Record call will assign.
func (r *Recorder) Next() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.capture.Steps)
}

// Len reports how many steps have been recorded.
func (r *Recorder) Len() int {
	return r.Next()
}

// Finalized reports whether Finalize has been called.
func (r *Recorder) Finalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}

// Capture returns the capture being built. Callers must not mutate it before
// Finalize.
func (r *Recorder) Capture() *WorkflowCapture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture
}

// Finalize closes the capture. The last step becomes the only terminal step;
// when nothing was recorded a synthetic terminal step at the start URL is
// added so the document is still well formed.
func (r *Recorder) Finalize(out Outcome) (*WorkflowCapture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return nil, ErrCaptureFinalized
	}
	if !out.Status.IsFinal() {
		return nil, ErrInvalidStatus
	}

	c := r.capture
	if len(c.Steps) == 0 {
		c.Steps = append(c.Steps, StepRecord{
			StepNumber:   0,
			URL:          c.Metadata.StartURL,
			Description:  "no steps recorded before the run ended",
			ActionsTaken: []ActionInvocation{},
			Errors:       []string{},
		})
	}

	last := &c.Steps[len(c.Steps)-1]
	last.IsDone = true
	if out.TerminalError != "" {
		last.Errors = append(last.Errors, out.TerminalError)
		if last.Success == nil {
			last.Success = boolPtr(false)
		}
	}

	c.Metadata.TotalSteps = len(c.Steps)
	c.Metadata.TotalDurationSeconds = out.Duration.Seconds()
	c.Metadata.Status = out.Status
	c.Metadata.Success = out.Status == StatusDoneSuccess
	c.Metadata.AbortReason = out.AbortReason

	r.finalized = true
	return c, nil
}

func boolPtr(b bool) *bool {
	return &b
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	return boolPtr(*b)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyActions(in []ActionInvocation) []ActionInvocation {
	out := make([]ActionInvocation, 0, len(in))
	for _, a := range in {
		params := make(map[string]any, len(a.Params))
		for k, v := range a.Params {
			params[k] = v
		}
		out = append(out, ActionInvocation{ActionName: a.ActionName, Params: params})
	}
	return out
}
