// Package question turns a natural-language question about a web application
// into a runnable task using an LLM completer.
package question

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hairizuan-noorazman/workflow-capture/internal/slug"
	"github.com/hairizuan-noorazman/workflow-capture/judge"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
)

// TaskNameWords bounds the number of words in a parsed task name.
const TaskNameWords = 5

var (
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrMalformedAnswer is returned when the model output cannot be parsed
	// or does not match the answer schema.
	ErrMalformedAnswer = errors.New("malformed question answer")

	// ErrNotATask is returned when the question does not describe a task in
	// a web application.
	ErrNotATask = errors.New("question does not describe a web application task")
)

//go:embed question.schema.json
var answerSchemaJSON string

var answerSchema = judge.MustCompileSchema(answerSchemaJSON, "question.schema.json")

// Parsed is a question resolved into the parts of a capture task.
type Parsed struct {
	AppName              string `json:"app_name"`
	AppURL               string `json:"app_url"`
	Task                 string `json:"task"`
	TaskName             string `json:"task_name"`
	OptimizedDescription string `json:"optimized_description"`
	AuthRequired         bool   `json:"auth_required"`
	Question             string `json:"question"`
}

// Parser asks a model to parse questions. It is safe for concurrent use.
type Parser struct {
	completer judge.Completer
	logger    logger.Logger

	cacheEnabled bool
	mu           sync.Mutex
	cache        map[string]Parsed
}

// NewParser creates a parser. When cache is true, answers are kept per
// question for the lifetime of the parser.
func NewParser(completer judge.Completer, cache bool, log logger.Logger) *Parser {
	return &Parser{
		completer:    completer,
		logger:       log,
		cacheEnabled: cache,
		cache:        make(map[string]Parsed),
	}
}

// Parse resolves question into a task.
func (p *Parser) Parse(ctx context.Context, question string) (Parsed, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Parsed{}, ErrEmptyQuestion
	}

	if parsed, ok := p.cached(question); ok {
		p.logger.Debug(ctx, "question cache hit", map[string]interface{}{"question": question})
		return parsed, nil
	}

	text, err := p.completer.Complete(ctx, systemPrompt, BuildPrompt(question))
	if err != nil {
		p.logger.Error(ctx, "question completion failed", map[string]interface{}{"error": err.Error()})
		return Parsed{}, fmt.Errorf("completion failed: %w", err)
	}

	parsed, err := ParseAnswer(text)
	if err != nil {
		p.logger.Warn(ctx, "question rejected", map[string]interface{}{
			"question": question,
			"error":    err.Error(),
		})
		return Parsed{}, err
	}
	parsed.Question = question

	p.logger.Info(ctx, "question parsed", map[string]interface{}{
		"app":           parsed.AppName,
		"app_url":       parsed.AppURL,
		"task_name":     parsed.TaskName,
		"auth_required": parsed.AuthRequired,
	})

	if p.cacheEnabled {
		p.mu.Lock()
		p.cache[question] = parsed
		p.mu.Unlock()
	}
	return parsed, nil
}

func (p *Parser) cached(question string) (Parsed, bool) {
	if !p.cacheEnabled {
		return Parsed{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	parsed, ok := p.cache[question]
	return parsed, ok
}

// ParseAnswer extracts, validates and normalizes the model's answer.
func ParseAnswer(text string) (Parsed, error) {
	body := judge.ExtractJSON(text)
	if body == "" {
		return Parsed{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedAnswer)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	if err := answerSchema.Validate(doc); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}

	var parsed Parsed
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	parsed.AppName = strings.TrimSpace(parsed.AppName)
	parsed.AppURL = strings.TrimSpace(parsed.AppURL)
	parsed.Task = strings.TrimSpace(parsed.Task)
	parsed.OptimizedDescription = strings.TrimSpace(parsed.OptimizedDescription)
	parsed.Question = ""

	if err := validate(parsed); err != nil {
		return Parsed{}, err
	}

	parsed.TaskName = slug.Words(parsed.TaskName, TaskNameWords)
	if parsed.TaskName == "" || parsed.TaskName == "unknown" {
		parsed.TaskName = slug.Words(parsed.Task, TaskNameWords)
	}
	if strings.EqualFold(parsed.OptimizedDescription, Unknown) {
		parsed.OptimizedDescription = ""
	}
	return parsed, nil
}

func validate(p Parsed) error {
	if p.AppName == Unknown || p.AppURL == Unknown || p.Task == Unknown {
		return ErrNotATask
	}
	if len(p.AppName) < 2 {
		return fmt.Errorf("%w: invalid app name %q", ErrNotATask, p.AppName)
	}
	if !strings.HasPrefix(p.AppURL, "https://") {
		return fmt.Errorf("%w: invalid app url %q", ErrNotATask, p.AppURL)
	}
	if len(p.Task) < 3 {
		return fmt.Errorf("%w: invalid task %q", ErrNotATask, p.Task)
	}
	return nil
}
