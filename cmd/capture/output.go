package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
)

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// printSummary writes the human-readable digest of a capture.
func printSummary(w io.Writer, c *capture.WorkflowCapture, path string) {
	s := c.Summarize()
	rows := [][]string{
		{"App", s.App},
		{"Task", s.Task},
		{"Description", truncate(c.Metadata.TaskDescription, 80)},
		{"Status", string(s.Status)},
		{"Success", yesNo(s.Success)},
		{"Duration", s.Duration.String()},
		{"Steps", fmt.Sprint(s.Steps)},
		{"Screenshots", fmt.Sprint(s.Screenshots)},
	}
	if s.AbortReason != "" {
		rows = append(rows, []string{"Abort reason", s.AbortReason})
	}
	if s.Judged {
		rows = append(rows,
			[]string{"Verdict", yesNo(s.Verdict)},
			[]string{"Reached captcha", yesNo(s.ReachedCaptcha)},
			[]string{"Impossible task", yesNo(s.ImpossibleTask)},
		)
		if s.FailureReason != "" {
			rows = append(rows, []string{"Failure reason", s.FailureReason})
		}
	} else {
		rows = append(rows, []string{"Verdict", "not judged"})
	}
	if path != "" {
		rows = append(rows, []string{"Workflow", path})
	}
	printTable(w, []string{"FIELD", "VALUE"}, rows)
}

// printSteps writes one row per step.
func printSteps(w io.Writer, c *capture.WorkflowCapture) {
	rows := make([][]string, 0, len(c.Steps))
	for _, step := range c.Steps {
		success := "-"
		if step.Success != nil {
			success = yesNo(*step.Success)
		}
		shot := "-"
		if step.ScreenshotPath != nil {
			shot = *step.ScreenshotPath
		}
		actions := make([]string, 0, len(step.ActionsTaken))
		for _, a := range step.ActionsTaken {
			actions = append(actions, a.ActionName)
		}
		rows = append(rows, []string{
			fmt.Sprint(step.StepNumber),
			truncate(step.URL, 50),
			strings.Join(actions, ","),
			success,
			fmt.Sprint(len(step.Errors)),
			yesNo(step.IsDone),
			shot,
		})
	}
	printTable(w, []string{"STEP", "URL", "ACTIONS", "SUCCESS", "ERRORS", "DONE", "SCREENSHOT"}, rows)
}
