package question

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/workflow-capture/logger"
)

type stubCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	system   string
	prompt   string
}

func (s *stubCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.system = system
	s.prompt = prompt
	return s.response, s.err
}

const linearAnswer = `{
  "app_name": "Linear",
  "app_url": "https://linear.app",
  "task": "filter issues by priority with status Done",
  "task_name": "Filter Issues By Priority Status Done Urgent",
  "optimized_description": "Open Issues and filter by priority, then set status to Done",
  "auth_required": true
}`

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Parsed
		wantErr error
	}{
		{
			name: "fenced object",
			text: "```json\n" + linearAnswer + "\n```",
			want: Parsed{
				AppName:              "Linear",
				AppURL:               "https://linear.app",
				Task:                 "filter issues by priority with status Done",
				TaskName:             "filter_issues_by_priority_status",
				OptimizedDescription: "Open Issues and filter by priority, then set status to Done",
				AuthRequired:         true,
			},
		},
		{
			name: "task name derived from task",
			text: `{"app_name": "GitHub", "app_url": "https://github.com", "task": "view stars on torvalds/linux", "task_name": "unknown", "optimized_description": "UNKNOWN", "auth_required": false}`,
			want: Parsed{
				AppName:  "GitHub",
				AppURL:   "https://github.com",
				Task:     "view stars on torvalds/linux",
				TaskName: "view_stars_on_torvalds_linux",
			},
		},
		{
			name:    "unknown question",
			text:    `{"app_name": "UNKNOWN", "app_url": "UNKNOWN", "task": "UNKNOWN", "task_name": "unknown", "optimized_description": "UNKNOWN", "auth_required": true}`,
			wantErr: ErrNotATask,
		},
		{
			name:    "plain http url",
			text:    `{"app_name": "Linear", "app_url": "http://linear.app", "task": "create a project", "task_name": "create_project", "optimized_description": "Create a project", "auth_required": true}`,
			wantErr: ErrNotATask,
		},
		{
			name:    "app name too short",
			text:    `{"app_name": "L", "app_url": "https://linear.app", "task": "create a project", "task_name": "create_project", "optimized_description": "Create a project", "auth_required": true}`,
			wantErr: ErrNotATask,
		},
		{
			name:    "task too short",
			text:    `{"app_name": "Linear", "app_url": "https://linear.app", "task": "go", "task_name": "go", "optimized_description": "Go", "auth_required": true}`,
			wantErr: ErrNotATask,
		},
		{
			name:    "auth flag wrong type",
			text:    `{"app_name": "Linear", "app_url": "https://linear.app", "task": "create a project", "task_name": "create_project", "optimized_description": "Create a project", "auth_required": "yes"}`,
			wantErr: ErrMalformedAnswer,
		},
		{name: "missing fields", text: `{"app_name": "Linear"}`, wantErr: ErrMalformedAnswer},
		{name: "no json", text: "Linear, probably.", wantErr: ErrMalformedAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswer(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParser_Parse(t *testing.T) {
	t.Run("sends question and keeps it on the result", func(t *testing.T) {
		c := &stubCompleter{response: linearAnswer}
		p := NewParser(c, false, logger.NewTestLogger())

		got, err := p.Parse(context.Background(), "  How do I filter issues by priority in Linear?  ")
		require.NoError(t, err)
		assert.Equal(t, "How do I filter issues by priority in Linear?", got.Question)
		assert.Equal(t, "https://linear.app", got.AppURL)
		assert.Equal(t, systemPrompt, c.system)
		assert.Equal(t, `Question: "How do I filter issues by priority in Linear?"`, c.prompt)
	})

	t.Run("empty question skips the model", func(t *testing.T) {
		c := &stubCompleter{response: linearAnswer}
		_, err := NewParser(c, false, logger.NewTestLogger()).Parse(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyQuestion)
		assert.Equal(t, 0, c.calls)
	})

	t.Run("completion error", func(t *testing.T) {
		boom := errors.New("429")
		_, err := NewParser(&stubCompleter{err: boom}, false, logger.NewTestLogger()).Parse(context.Background(), "create a project in Linear")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("rejected answer", func(t *testing.T) {
		c := &stubCompleter{response: `{"app_name": "UNKNOWN", "app_url": "UNKNOWN", "task": "UNKNOWN", "task_name": "unknown", "optimized_description": "UNKNOWN", "auth_required": true}`}
		_, err := NewParser(c, false, logger.NewTestLogger()).Parse(context.Background(), "Tell me a joke")
		assert.ErrorIs(t, err, ErrNotATask)
	})
}

func TestParser_Cache(t *testing.T) {
	q := "How do I filter issues by priority in Linear?"

	t.Run("enabled", func(t *testing.T) {
		c := &stubCompleter{response: linearAnswer}
		p := NewParser(c, true, logger.NewTestLogger())

		first, err := p.Parse(context.Background(), q)
		require.NoError(t, err)
		second, err := p.Parse(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, c.calls)
	})

	t.Run("disabled", func(t *testing.T) {
		c := &stubCompleter{response: linearAnswer}
		p := NewParser(c, false, logger.NewTestLogger())

		for i := 0; i < 2; i++ {
			_, err := p.Parse(context.Background(), q)
			require.NoError(t, err)
		}
		assert.Equal(t, 2, c.calls)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		c := &stubCompleter{response: "no idea"}
		p := NewParser(c, true, logger.NewTestLogger())

		_, err := p.Parse(context.Background(), q)
		require.Error(t, err)
		c.response = linearAnswer
		_, err = p.Parse(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, 2, c.calls)
	})
}
