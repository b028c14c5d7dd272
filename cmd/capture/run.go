package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hairizuan-noorazman/workflow-capture/agent"
	"github.com/hairizuan-noorazman/workflow-capture/tasks"
)

var (
	runApp         string
	runTask        string
	runName        string
	runURL         string
	runIndices     []int
	runAll         bool
	runMaxSteps    int
	runHeadless    bool
	runConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture one task, or a selection from the task catalogue",
	Example: `  capture run --app linear --task "Create a new issue titled 'Bug'" --url https://linear.app
  capture run --app linear --index 1,3
  capture run --all --concurrency 2`,
	RunE: runCapture,
}

func init() {
	runCmd.Flags().StringVar(&runApp, "app", "", "app name (linear, asana, ...)")
	runCmd.Flags().StringVar(&runTask, "task", "", "task description for a single ad-hoc run")
	runCmd.Flags().StringVar(&runName, "name", "", "task name (derived from the description when empty)")
	runCmd.Flags().StringVar(&runURL, "url", "", "start URL (defaults to the app's catalogue URL)")
	runCmd.Flags().IntSliceVar(&runIndices, "index", nil, "1-based catalogue task indices")
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every catalogue task of every app")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "override agent.max_steps")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "override agent.headless")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "override agent.max_concurrent_workers")
	rootCmd.AddCommand(runCmd)
}

// taskKey identifies a task in batch results.
func taskKey(app string, index int) string {
	return fmt.Sprintf("%s#%d", app, index)
}

// splitTaskKey is the inverse of taskKey.
func splitTaskKey(key string) (string, int) {
	i := strings.LastIndex(key, "#")
	if i < 0 {
		return key, 0
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return key, 0
	}
	return key[:i], n
}

// sortTaskKeys orders keys by app, then by numeric task index.
func sortTaskKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ai, ni := splitTaskKey(keys[i])
		aj, nj := splitTaskKey(keys[j])
		if ai != aj {
			return ai < aj
		}
		return ni < nj
	})
}

// selectTasks resolves the command line into the tasks to run, keyed for the
// results table. Invalid indices are reported through warn and skipped.
func selectTasks(catalog *tasks.Catalog, warn func(app string, index int)) ([]string, map[string]agent.Task, error) {
	selected := map[string]agent.Task{}
	var keys []string
	add := func(key string, t agent.Task) {
		keys = append(keys, key)
		selected[key] = t
	}

	if runTask != "" {
		if runApp == "" {
			return nil, nil, fmt.Errorf("--app is required with --task")
		}
		url := runURL
		if url == "" {
			entries, err := catalog.All(runApp)
			if err != nil {
				return nil, nil, fmt.Errorf("--url is required for apps outside the catalogue: %w", err)
			}
			url = entries[0].StartURL
		}
		add(taskKey(strings.ToLower(runApp), 0), agent.Task{App: strings.ToLower(runApp), Name: runName, Description: runTask, StartURL: url})
		return keys, selected, nil
	}

	var apps []string
	switch {
	case runAll:
		apps = catalog.AppNames()
	case runApp != "":
		apps = []string{runApp}
	default:
		return nil, nil, fmt.Errorf("one of --task, --app or --all is required")
	}

	for _, app := range apps {
		indices := runIndices
		if runAll {
			indices = nil
		}
		entries, invalid, err := catalog.Select(app, indices)
		if err != nil {
			return nil, nil, err
		}
		for _, idx := range invalid {
			warn(app, idx)
		}
		for _, e := range entries {
			add(taskKey(e.App, e.Index), agent.Task{App: e.App, Name: e.Name, Description: e.Description, StartURL: e.StartURL})
		}
	}
	if len(keys) == 0 {
		return nil, nil, fmt.Errorf("no valid tasks selected")
	}
	return keys, selected, nil
}

type runOutcome struct {
	result *agent.Result
	err    error
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.Agent.MaxSteps = runMaxSteps
	}
	if cmd.Flags().Changed("headless") {
		cfg.Agent.Headless = runHeadless
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Agent.MaxConcurrentWorkers = runConcurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := tasks.Load(cfg.Tasks.Catalog)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	keys, selected, err := selectTasks(catalog, func(app string, index int) {
		a.log.Warn(ctx, "invalid task index, skipping", map[string]interface{}{
			"app":   app,
			"index": index,
		})
	})
	if err != nil {
		return err
	}

	limit := cfg.Agent.MaxConcurrentWorkers
	if limit < 1 {
		limit = 1
	}

	var mu sync.Mutex
	outcomes := make(map[string]runOutcome, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, key := range keys {
		i, key := i, key
		task := selected[key]
		g.Go(func() error {
			a.log.Info(gctx, "running task", map[string]interface{}{
				"task_key":    key,
				"position":    fmt.Sprintf("%d/%d", i+1, len(keys)),
				"description": task.Description,
			})
			res, err := a.pipeline.Capture(gctx, task)
			if err != nil {
				a.log.Error(gctx, "task failed", map[string]interface{}{
					"task_key": key,
					"error":    err.Error(),
				})
			}
			mu.Lock()
			outcomes[key] = runOutcome{result: res, err: err}
			mu.Unlock()
			// A failed task never stops the batch.
			return nil
		})
	}
	_ = g.Wait()

	out := cmd.OutOrStdout()
	if len(keys) == 1 {
		o := outcomes[keys[0]]
		if o.err != nil {
			return o.err
		}
		printSummary(out, o.result.Capture, o.result.Path)
		return nil
	}

	sortTaskKeys(keys)
	failed := 0
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		o := outcomes[key]
		if o.err != nil {
			failed++
			rows = append(rows, []string{key, "error", "-", "-", truncate(o.err.Error(), 60)})
			continue
		}
		md := o.result.Capture.Metadata
		rows = append(rows, []string{key, string(md.Status), yesNo(md.Success), fmt.Sprint(md.TotalSteps), o.result.Path})
	}
	printTable(out, []string{"TASK", "STATUS", "SUCCESS", "STEPS", "WORKFLOW"}, rows)

	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(keys))
	}
	return nil
}
