package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/workflow-capture/agent"
	"github.com/hairizuan-noorazman/workflow-capture/judge"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/question"
)

var (
	askParseOnly bool
	askJSON      bool
	askMaxSteps  int
	askHeadless  bool
)

var askCmd = &cobra.Command{
	Use:   `ask "<question>"`,
	Short: "Turn a question about a web app into a task and capture it",
	Example: `  capture ask "How do I create a project in Linear?"
  capture ask --parse-only --json "How do I star a repository on GitHub?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askParseOnly, "parse-only", false, "print the parsed task without running it")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the parsed task as JSON")
	askCmd.Flags().IntVar(&askMaxSteps, "max-steps", 0, "override agent.max_steps")
	askCmd.Flags().BoolVar(&askHeadless, "headless", false, "override agent.headless")
	rootCmd.AddCommand(askCmd)
}

// newQuestionParser builds the parser from the question settings.
func newQuestionParser(ctx context.Context, cfg *Config, log logger.Logger) (*question.Parser, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Question.Provider))
	if provider == "" || provider == "none" {
		return nil, fmt.Errorf("question.provider (or judge.provider) must name a model provider")
	}
	completer, err := judge.NewCompleter(ctx, judge.Config{
		Provider:  provider,
		Model:     cfg.Question.Model,
		Region:    cfg.Question.Region,
		APIKey:    cfg.Question.APIKey,
		MaxTokens: cfg.Question.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize question parser: %w", err)
	}
	return question.NewParser(completer, cfg.Question.Cache, log), nil
}

// taskFromQuestion maps a parsed question onto a capture task.
func taskFromQuestion(p question.Parsed) agent.Task {
	return agent.Task{
		App:          strings.ToLower(strings.TrimSpace(p.AppName)),
		Name:         p.TaskName,
		Description:  p.Task,
		Instructions: p.OptimizedDescription,
		StartURL:     p.AppURL,
		AuthRequired: p.AuthRequired,
	}
}

func parseQuestion(ctx context.Context, cfg *Config, log logger.Logger, q string) (question.Parsed, error) {
	parser, err := newQuestionParser(ctx, cfg, log)
	if err != nil {
		return question.Parsed{}, err
	}
	if cfg.Question.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Question.Timeout)
		defer cancel()
	}
	return parser.Parse(ctx, q)
}

func printParsed(w io.Writer, p question.Parsed) {
	printTable(w, []string{"FIELD", "VALUE"}, [][]string{
		{"App", p.AppName},
		{"URL", p.AppURL},
		{"Task", p.Task},
		{"Task name", p.TaskName},
		{"Instructions", p.OptimizedDescription},
		{"Auth required", yesNo(p.AuthRequired)},
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.Agent.MaxSteps = askMaxSteps
	}
	if cmd.Flags().Changed("headless") {
		cfg.Agent.Headless = askHeadless
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()

	if askParseOnly {
		log := newLogger(cfg)
		defer log.Close()

		parsed, err := parseQuestion(ctx, cfg, log, args[0])
		if err != nil {
			return err
		}
		if askJSON {
			return printJSON(out, parsed)
		}
		printParsed(out, parsed)
		return nil
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	parsed, err := parseQuestion(ctx, cfg, a.log, args[0])
	if err != nil {
		return err
	}
	if askJSON {
		if err := printJSON(out, parsed); err != nil {
			return err
		}
	} else {
		printParsed(out, parsed)
		fmt.Fprintln(out)
	}

	task := taskFromQuestion(parsed)
	a.log.Info(ctx, "running task from question", map[string]interface{}{
		"app":           task.App,
		"task_name":     task.Name,
		"auth_required": task.AuthRequired,
	})
	res, err := a.pipeline.Capture(ctx, task)
	if err != nil {
		return err
	}
	printSummary(out, res.Capture, res.Path)
	return nil
}
