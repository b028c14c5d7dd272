package judge

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
)

//go:embed verdict.schema.json
var verdictSchemaJSON string

var verdictSchema = MustCompileSchema(verdictSchemaJSON, "verdict.schema.json")

// MustCompileSchema compiles an embedded JSON schema document and panics if
// it is invalid.
func MustCompileSchema(raw, name string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Completer sends a single system+user prompt to a model and returns its text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LLMEvaluator asks a model for a verdict using the fixed judge prompt.
type LLMEvaluator struct {
	completer Completer
}

// NewLLMEvaluator creates an evaluator backed by completer.
func NewLLMEvaluator(completer Completer) *LLMEvaluator {
	return &LLMEvaluator{completer: completer}
}

// Evaluate implements Evaluator.
func (e *LLMEvaluator) Evaluate(ctx context.Context, req Request) (capture.Judgement, error) {
	text, err := e.completer.Complete(ctx, systemPrompt, BuildPrompt(req))
	if err != nil {
		return capture.Judgement{}, fmt.Errorf("completion failed: %w", err)
	}
	return ParseVerdict(text)
}

// ParseVerdict extracts and validates the verdict object from model output.
func ParseVerdict(text string) (capture.Judgement, error) {
	body := ExtractJSON(text)
	if body == "" {
		return capture.Judgement{}, fmt.Errorf("%w: no JSON object in response", ErrMalformedVerdict)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return capture.Judgement{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if err := verdictSchema.Validate(doc); err != nil {
		return capture.Judgement{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}

	var raw struct {
		Verdict        bool    `json:"verdict"`
		Reasoning      string  `json:"reasoning"`
		FailureReason  *string `json:"failure_reason"`
		ImpossibleTask bool    `json:"impossible_task"`
		ReachedCaptcha bool    `json:"reached_captcha"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return capture.Judgement{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}

	j := capture.Judgement{
		Verdict:        raw.Verdict,
		Reasoning:      raw.Reasoning,
		ImpossibleTask: raw.ImpossibleTask,
		ReachedCaptcha: raw.ReachedCaptcha,
	}
	if !raw.Verdict && raw.FailureReason != nil {
		j.FailureReason = *raw.FailureReason
	}
	return j, nil
}

// ExtractJSON strips markdown code fences and any prose around the outermost
// JSON object. It returns "" when text holds no object.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}
