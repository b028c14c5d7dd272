package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/session"
	"github.com/hairizuan-noorazman/workflow-capture/tasks"
)

var (
	// ErrInvalidTask is returned when a task lacks a description or start URL.
	ErrInvalidTask = errors.New("task requires a description and a start url")

	// ErrUnknownBackend is returned for an unsupported agent.backend value.
	ErrUnknownBackend = errors.New("unknown automation backend")
)

// Task is one natural-language instruction against one web app.
type Task struct {
	App         string
	Name        string
	Description string
	StartURL    string

	// Instructions is the wording handed to the backend when it differs from
	// the recorded Description, such as a rewrite produced by the question
	// parser. Empty means Description.
	Instructions string
	// AuthRequired tells the backend the task needs a signed-in profile.
	AuthRequired bool

	// Session is the browser profile lease the backend must drive. It is nil
	// when the driver is used without a session manager.
	Session *session.Session
}

// Normalize trims the task and derives Name from the description when empty.
func (t Task) Normalize() Task {
	t.App = strings.TrimSpace(t.App)
	t.Description = strings.TrimSpace(t.Description)
	t.StartURL = strings.TrimSpace(t.StartURL)
	t.Name = strings.TrimSpace(t.Name)
	t.Instructions = strings.TrimSpace(t.Instructions)
	if t.Name == "" {
		t.Name = tasks.Slug(t.Description)
	}
	return t
}

// Validate checks that the task can be run.
func (t Task) Validate() error {
	if t.Description == "" || t.StartURL == "" {
		return ErrInvalidTask
	}
	return nil
}

// AgentInstructions returns what the backend should be asked to do.
func (t Task) AgentInstructions() string {
	if t.Instructions != "" {
		return t.Instructions
	}
	return t.Description
}

// ProfileDir returns the leased profile directory, or "" without a lease.
func (t Task) ProfileDir() string {
	if t.Session == nil {
		return ""
	}
	return t.Session.ProfileDir
}

// StepEvent is what an automation backend reports after each observation
// and action cycle.
type StepEvent struct {
	URL         string
	Title       string
	Description string
	StepTask    string
	Actions     []capture.ActionInvocation
	Errors      []string
	// Success is nil when the backend made no determination for the step.
	Success *bool
	IsDone  bool
	// Unrecoverable marks a step after which the agent cannot continue,
	// such as a captcha or a blocked navigation.
	Unrecoverable bool

	Screenshot      []byte
	ScreenshotLabel string
}

// Automation drives a browser agent through a task and publishes one event
// per step. Implementations must send with Emit and return once ctx is done.
// The caller owns and closes events.
type Automation interface {
	Run(ctx context.Context, task Task, events chan<- StepEvent) error
}

// AutomationFunc adapts a function to Automation.
type AutomationFunc func(ctx context.Context, task Task, events chan<- StepEvent) error

// Run implements Automation.
func (f AutomationFunc) Run(ctx context.Context, task Task, events chan<- StepEvent) error {
	return f(ctx, task, events)
}

// Emit sends ev unless ctx is done first.
func Emit(ctx context.Context, events chan<- StepEvent, ev StepEvent) error {
	if ctx.Err() != nil {
		return fmt.Errorf("emitting step event: %w", context.Cause(ctx))
	}
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("emitting step event: %w", context.Cause(ctx))
	}
}

// JoinContents builds a step task string from the agent's extracted contents.
func JoinContents(contents []string) string {
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " | ")
}

// InferSuccess derives a step's success from its errors when the backend
// reported none: errors mean failure, their absence leaves it unknown.
func InferSuccess(success *bool, errs []string) *bool {
	if success != nil || len(errs) == 0 {
		return success
	}
	f := false
	return &f
}
