package judge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/metrics"
)

type stubEvaluator struct {
	judgement capture.Judgement
	err       error
	block     bool
}

func (s stubEvaluator) Evaluate(ctx context.Context, req Request) (capture.Judgement, error) {
	if s.block {
		<-ctx.Done()
		return capture.Judgement{}, ctx.Err()
	}
	return s.judgement, s.err
}

func TestUnavailable(t *testing.T) {
	j := Unavailable()
	assert.False(t, j.Verdict)
	assert.Equal(t, "evaluation unavailable", j.FailureReason)
	assert.False(t, j.ImpossibleTask)
	assert.False(t, j.ReachedCaptcha)
}

func TestJudge_Evaluate(t *testing.T) {
	tests := []struct {
		name      string
		evaluator Evaluator
		timeout   time.Duration
		want      capture.Judgement
		wantWarn  bool
	}{
		{
			name:      "passes through evaluator verdict",
			evaluator: stubEvaluator{judgement: capture.Judgement{Verdict: true, Reasoning: "created"}},
			want:      capture.Judgement{Verdict: true, Reasoning: "created"},
		},
		{
			name:      "captcha flag independent of verdict",
			evaluator: stubEvaluator{judgement: capture.Judgement{Verdict: true, ReachedCaptcha: true, ImpossibleTask: true}},
			want:      capture.Judgement{Verdict: true, ReachedCaptcha: true, ImpossibleTask: true},
		},
		{
			name:      "evaluator error yields fallback",
			evaluator: stubEvaluator{err: errors.New("throttled")},
			want:      Unavailable(),
			wantWarn:  true,
		},
		{
			name:      "timeout yields fallback",
			evaluator: stubEvaluator{block: true},
			timeout:   10 * time.Millisecond,
			want:      Unavailable(),
			wantWarn:  true,
		},
		{
			name:      "disabled evaluator yields fallback",
			evaluator: DisabledEvaluator{},
			want:      Unavailable(),
			wantWarn:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.NewTestLogger()
			j := New(tt.evaluator, tt.timeout, log, metrics.New(prometheus.NewRegistry()))

			got := j.Evaluate(context.Background(), Request{App: "linear", TaskDescription: "create issue"})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantWarn, log.HasMessage("warn", "judge evaluation unavailable, using fallback verdict"))
		})
	}
}

func TestJudge_EvaluateCancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := New(stubEvaluator{block: true}, 0, logger.NewTestLogger(), nil)
	assert.Equal(t, Unavailable(), j.Evaluate(ctx, Request{}))
}
