// Package judge scores a finished capture with an LLM evaluator and never
// fails: any evaluator problem yields a standardized fallback verdict.
package judge

import (
	"context"
	"errors"
	"time"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/metrics"
)

// EvaluationUnavailable is the failure_reason of the fallback verdict.
const EvaluationUnavailable = "evaluation unavailable"

var (
	// ErrEvaluatorDisabled is returned by DisabledEvaluator.
	ErrEvaluatorDisabled = errors.New("evaluator disabled")

	// ErrMalformedVerdict is returned when the evaluator output cannot be
	// parsed or does not match the verdict schema.
	ErrMalformedVerdict = errors.New("malformed verdict")

	// ErrUnknownProvider is returned for an unsupported judge.provider value.
	ErrUnknownProvider = errors.New("unknown judge provider")
)

// Request is what the evaluator sees: the task and the ordered step trace.
type Request struct {
	App             string
	TaskDescription string
	Steps           []capture.StepRecord
}

// Evaluator produces a judgement for a request.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (capture.Judgement, error)
}

// Unavailable returns the fallback judgement.
func Unavailable() capture.Judgement {
	return capture.Judgement{
		Verdict:        false,
		FailureReason:  EvaluationUnavailable,
		ImpossibleTask: false,
		ReachedCaptcha: false,
	}
}

// Judge wraps an Evaluator with a timeout and the fallback policy.
type Judge struct {
	evaluator Evaluator
	timeout   time.Duration
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// New creates a judge. A zero timeout means the caller's context alone bounds
// the evaluation.
func New(evaluator Evaluator, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Judge {
	return &Judge{
		evaluator: evaluator,
		timeout:   timeout,
		logger:    log,
		metrics:   m,
	}
}

// Evaluate returns the evaluator's judgement, or Unavailable() on any error.
func (j *Judge) Evaluate(ctx context.Context, req Request) capture.Judgement {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	verdict, err := j.evaluator.Evaluate(ctx, req)
	if err != nil {
		j.logger.Warn(ctx, "judge evaluation unavailable, using fallback verdict", map[string]interface{}{
			"app":   req.App,
			"steps": len(req.Steps),
			"error": err.Error(),
		})
		j.metrics.Judged("unavailable")
		return Unavailable()
	}

	outcome := "fail"
	if verdict.Verdict {
		outcome = "pass"
	}
	j.metrics.Judged(outcome)
	j.logger.Info(ctx, "judge evaluation complete", map[string]interface{}{
		"app":             req.App,
		"verdict":         verdict.Verdict,
		"reached_captcha": verdict.ReachedCaptcha,
		"impossible_task": verdict.ImpossibleTask,
		"duration_ms":     time.Since(start).Milliseconds(),
	})
	return verdict
}

// DisabledEvaluator always fails, so every capture gets the fallback verdict.
type DisabledEvaluator struct{}

// Evaluate implements Evaluator.
func (DisabledEvaluator) Evaluate(ctx context.Context, req Request) (capture.Judgement, error) {
	return capture.Judgement{}, ErrEvaluatorDisabled
}
