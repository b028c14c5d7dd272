package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"gopkg.in/yaml.v3"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
)

// Plan action kinds understood by PlaywrightAutomation.
const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionFill     = "fill"
	ActionPress    = "press"
	ActionWait     = "wait"
	ActionDone     = "done"
)

// PlanStep is one scripted browser action.
type PlanStep struct {
	Action   string `yaml:"action"`
	URL      string `yaml:"url,omitempty"`
	Selector string `yaml:"selector,omitempty"`
	Value    string `yaml:"value,omitempty"`
	Key      string `yaml:"key,omitempty"`
	// Wait is a duration for the wait action, e.g. "2s".
	Wait string `yaml:"wait,omitempty"`
	// Label names the UI state shown after the action.
	Label string `yaml:"label,omitempty"`
	Note  string `yaml:"note,omitempty"`
}

// Plan is a scripted task for PlaywrightAutomation.
type Plan struct {
	Steps []PlanStep `yaml:"steps"`
}

// ParsePlan decodes a YAML plan and checks every step.
func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	for i, s := range plan.Steps {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("plan step %d: %w", i+1, err)
		}
	}
	return &plan, nil
}

// LoadPlan reads a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return ParsePlan(data)
}

func (s PlanStep) validate() error {
	switch s.Action {
	case ActionNavigate:
		if s.URL == "" {
			return fmt.Errorf("navigate requires url")
		}
	case ActionClick:
		if s.Selector == "" {
			return fmt.Errorf("click requires selector")
		}
	case ActionFill:
		if s.Selector == "" {
			return fmt.Errorf("fill requires selector")
		}
	case ActionPress:
		if s.Key == "" {
			return fmt.Errorf("press requires key")
		}
	case ActionWait:
		if _, err := time.ParseDuration(s.Wait); err != nil {
			return fmt.Errorf("wait requires a duration: %w", err)
		}
	case ActionDone:
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}

// params returns the action parameters recorded in actions_taken.
func (s PlanStep) params() map[string]any {
	p := map[string]any{}
	if s.URL != "" {
		p["url"] = s.URL
	}
	if s.Selector != "" {
		p["selector"] = s.Selector
	}
	if s.Value != "" {
		p["value"] = s.Value
	}
	if s.Key != "" {
		p["key"] = s.Key
	}
	if s.Wait != "" {
		p["wait"] = s.Wait
	}
	return p
}

// PlaywrightAutomation replays a scripted plan in a persistent browser
// context rooted at the task's leased profile directory, so an already
// signed-in profile is reused. Each plan step produces one event with a
// PNG screenshot.
type PlaywrightAutomation struct {
	plan     *Plan
	headless bool
	timeout  time.Duration
	logger   logger.Logger
}

// NewPlaywrightAutomation creates a scripted browser backend. timeout bounds
// each browser action.
func NewPlaywrightAutomation(plan *Plan, headless bool, timeout time.Duration, log logger.Logger) *PlaywrightAutomation {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PlaywrightAutomation{plan: plan, headless: headless, timeout: timeout, logger: log}
}

// Run implements Automation.
func (a *PlaywrightAutomation) Run(ctx context.Context, task Task, events chan<- StepEvent) error {
	profile := task.ProfileDir()
	if profile == "" {
		return fmt.Errorf("playwright backend requires a leased browser profile")
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.LaunchPersistentContext(profile, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(a.headless),
	})
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()
	browser.SetDefaultTimeout(float64(a.timeout.Milliseconds()))

	var page playwright.Page
	if pages := browser.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = browser.NewPage(); err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}

	steps := a.plan.Steps
	if len(steps) == 0 || steps[0].Action != ActionNavigate {
		steps = append([]PlanStep{{Action: ActionNavigate, URL: task.StartURL, Label: "start"}}, steps...)
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}

		ev := StepEvent{
			Description: step.Note,
			StepTask:    task.AgentInstructions(),
			Actions:     []capture.ActionInvocation{{ActionName: step.Action, Params: step.params()}},
			IsDone:      step.Action == ActionDone,
		}
		if err := a.perform(ctx, page, step); err != nil {
			ev.Errors = []string{err.Error()}
		}
		ev.Success = InferSuccess(nil, ev.Errors)
		if ev.IsDone && len(ev.Errors) == 0 {
			ok := true
			ev.Success = &ok
		}

		ev.URL = page.URL()
		title, err := page.Title()
		if err != nil {
			a.logger.Warn(ctx, "page title unavailable", map[string]interface{}{
				"action": step.Action,
				"error":  err.Error(),
			})
		}
		ev.Title = title
		ev.ScreenshotLabel = step.Label
		if img, err := page.Screenshot(playwright.PageScreenshotOptions{
			Type: playwright.ScreenshotTypePng,
		}); err != nil {
			a.logger.Warn(ctx, "screenshot failed", map[string]interface{}{
				"action": step.Action,
				"error":  err.Error(),
			})
		} else {
			ev.Screenshot = img
		}

		if err := Emit(ctx, events, ev); err != nil {
			return err
		}
		if ev.IsDone {
			return nil
		}
	}
	return nil
}

func (a *PlaywrightAutomation) perform(ctx context.Context, page playwright.Page, step PlanStep) error {
	switch step.Action {
	case ActionNavigate:
		_, err := page.Goto(step.URL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
		})
		if err != nil {
			return fmt.Errorf("navigation failed: %w", err)
		}
	case ActionClick:
		if err := page.Locator(step.Selector).Click(); err != nil {
			return fmt.Errorf("click failed: %w", err)
		}
	case ActionFill:
		if err := page.Locator(step.Selector).Fill(step.Value); err != nil {
			return fmt.Errorf("fill failed: %w", err)
		}
	case ActionPress:
		var err error
		if step.Selector != "" {
			err = page.Locator(step.Selector).Press(step.Key)
		} else {
			err = page.Keyboard().Press(step.Key)
		}
		if err != nil {
			return fmt.Errorf("press %s failed: %w", strings.TrimSpace(step.Key), err)
		}
	case ActionWait:
		d, _ := time.ParseDuration(step.Wait)
		if err := sleepContext(ctx, d); err != nil {
			return fmt.Errorf("wait interrupted: %w", err)
		}
	}
	return nil
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
