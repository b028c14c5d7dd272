package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
)

// maxEventLine bounds one NDJSON event, screenshot included.
const maxEventLine = 32 << 20

// ProcessConfig is the JSON document written to the agent script's stdin.
type ProcessConfig struct {
	App             string `json:"app"`
	TaskName        string `json:"task_name"`
	TaskDescription string `json:"task_description"`

	// OptimizedDescription is the instruction the agent should follow when it
	// differs from TaskDescription.
	OptimizedDescription string `json:"optimized_description,omitempty"`

	StartURL     string `json:"start_url"`
	AuthRequired bool   `json:"auth_required"`
	ProfileDir   string `json:"profile_dir,omitempty"`
	Headless     bool   `json:"headless"`
	MaxSteps     int    `json:"max_steps"`
}

// processEvent is one line of the agent script's stdout.
type processEvent struct {
	URL               string   `json:"url"`
	Title             string   `json:"title"`
	Memory            string   `json:"memory"`
	ExtractedContents []string `json:"extracted_contents"`
	Actions           []struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	} `json:"actions"`
	Errors          []string `json:"errors"`
	Success         *bool    `json:"success"`
	IsDone          bool     `json:"is_done"`
	Unrecoverable   bool     `json:"unrecoverable"`
	Screenshot      string   `json:"screenshot"`
	ScreenshotLabel string   `json:"screenshot_label"`
}

// ProcessAutomation runs an external agent script, for example a
// browser-use runner, and reads its step events as newline-delimited JSON.
type ProcessAutomation struct {
	Command  string
	Args     []string
	Env      []string
	Headless bool
	MaxSteps int
	logger   logger.Logger
}

// NewProcessAutomation creates a backend that runs command with args.
func NewProcessAutomation(command string, args []string, headless bool, maxSteps int, log logger.Logger) *ProcessAutomation {
	return &ProcessAutomation{
		Command:  command,
		Args:     args,
		Headless: headless,
		MaxSteps: maxSteps,
		logger:   log,
	}
}

// Run implements Automation. The script is killed when ctx is done.
func (p *ProcessAutomation) Run(ctx context.Context, task Task, events chan<- StepEvent) error {
	cfg, err := json.Marshal(ProcessConfig{
		App:                  task.App,
		TaskName:             task.Name,
		TaskDescription:      task.Description,
		OptimizedDescription: task.Instructions,
		StartURL:             task.StartURL,
		AuthRequired:         task.AuthRequired,
		ProfileDir:           task.ProfileDir(),
		Headless:             p.Headless,
		MaxSteps:             p.MaxSteps,
	})
	if err != nil {
		return fmt.Errorf("encoding agent config: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Stdin = bytes.NewReader(cfg)
	if len(p.Env) > 0 {
		cmd.Env = append(cmd.Environ(), p.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("agent stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("agent stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting agent script: %w", err)
	}
	p.logger.Info(ctx, "agent script started", map[string]interface{}{
		"command": p.Command,
		"pid":     cmd.Process.Pid,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.logStderr(ctx, stderr)
	}()

	readErr := p.readEvents(ctx, stdout, events)
	if readErr != nil {
		// Unblock the script if it is still writing.
		_, _ = io.Copy(io.Discard, stdout)
	}
	wg.Wait()

	waitErr := cmd.Wait()
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return fmt.Errorf("agent script exited: %w", waitErr)
	}
	return nil
}

func (p *ProcessAutomation) readEvents(ctx context.Context, r io.Reader, events chan<- StepEvent) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		ev, err := decodeEvent([]byte(raw))
		if err != nil {
			p.logger.Warn(ctx, "skipping malformed agent event", map[string]interface{}{
				"line":  line,
				"error": err.Error(),
			})
			continue
		}
		if err := Emit(ctx, events, ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading agent events: %w", err)
	}
	return nil
}

func (p *ProcessAutomation) logStderr(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.logger.Debug(ctx, "agent script", map[string]interface{}{
			"stderr": scanner.Text(),
		})
	}
}

func decodeEvent(raw []byte) (StepEvent, error) {
	var pe processEvent
	if err := json.Unmarshal(raw, &pe); err != nil {
		return StepEvent{}, err
	}

	ev := StepEvent{
		URL:             pe.URL,
		Title:           pe.Title,
		Description:     pe.Memory,
		StepTask:        JoinContents(pe.ExtractedContents),
		Errors:          pe.Errors,
		Success:         InferSuccess(pe.Success, pe.Errors),
		IsDone:          pe.IsDone,
		Unrecoverable:   pe.Unrecoverable,
		ScreenshotLabel: pe.ScreenshotLabel,
	}
	for _, a := range pe.Actions {
		ev.Actions = append(ev.Actions, capture.ActionInvocation{ActionName: a.Name, Params: a.Params})
	}
	if pe.Screenshot != "" {
		img, err := base64.StdEncoding.DecodeString(pe.Screenshot)
		if err != nil {
			return StepEvent{}, fmt.Errorf("decoding screenshot: %w", err)
		}
		ev.Screenshot = img
	}
	return ev, nil
}
