package judge

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
)

const systemPrompt = `You evaluate whether a browser automation agent completed a task in a web application.

Success criteria:
1. All required fields were filled and actions taken as specified in the task.
2. The final state shows task completion (success message, created item visible, confirmation dialog, redirect to the new item).
3. No blockers occurred: no captchas, no authentication failures, no error messages.
4. The workflow reached its natural completion state.

Failure indicators:
- Stuck on a login or authentication page
- Captcha encountered
- Error messages displayed
- Task incomplete, for example a modal still open or a form not submitted
- Browser stuck on the same page without progress

Return verdict=true ONLY if the task is fully completed with clear success indicators.
Set reached_captcha=true if a captcha or bot check blocked the agent at any point.
Set impossible_task=true if the task cannot be done in this application as described.
These two flags are independent of the verdict.

Respond with a single JSON object and nothing else:
{"verdict": bool, "reasoning": string, "failure_reason": string, "impossible_task": bool, "reached_captcha": bool}
failure_reason must be an empty string when verdict is true.`

// maxFieldLength keeps a single verbose step from dominating the prompt.
const maxFieldLength = 500

// BuildPrompt renders the task and ordered step trace for the evaluator.
func BuildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n", req.TaskDescription)
	if req.App != "" {
		fmt.Fprintf(&b, "Application: %s\n", req.App)
	}
	fmt.Fprintf(&b, "\nStep trace (%d steps):\n", len(req.Steps))

	for _, step := range req.Steps {
		fmt.Fprintf(&b, "\n[Step %d] %s", step.StepNumber, step.URL)
		if step.Title != "" {
			fmt.Fprintf(&b, " (%s)", step.Title)
		}
		b.WriteString("\n")
		if step.Description != "" {
			fmt.Fprintf(&b, "  Observed: %s\n", truncate(step.Description))
		}
		if step.StepTask != "" {
			fmt.Fprintf(&b, "  Sub-goal: %s\n", truncate(step.StepTask))
		}
		for _, a := range step.ActionsTaken {
			fmt.Fprintf(&b, "  Action: %s\n", formatAction(a))
		}
		for _, e := range step.Errors {
			fmt.Fprintf(&b, "  Error: %s\n", truncate(e))
		}
		fmt.Fprintf(&b, "  Success: %s\n", formatSuccess(step.Success))
		if step.IsDone {
			b.WriteString("  (final step)\n")
		}
	}

	return b.String()
}

func formatAction(a capture.ActionInvocation) string {
	if len(a.Params) == 0 {
		return a.ActionName + "()"
	}
	keys := make([]string, 0, len(a.Params))
	for k := range a.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, a.Params[k]))
	}
	return truncate(a.ActionName + "(" + strings.Join(parts, ", ") + ")")
}

func formatSuccess(s *bool) string {
	switch {
	case s == nil:
		return "unknown"
	case *s:
		return "yes"
	default:
		return "no"
	}
}

func truncate(s string) string {
	if len(s) <= maxFieldLength {
		return s
	}
	n := maxFieldLength
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
