package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/workflow-capture/agent"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/question"
)

func TestTaskFromQuestion(t *testing.T) {
	task := taskFromQuestion(question.Parsed{
		AppName:              " Linear ",
		AppURL:               "https://linear.app",
		Task:                 "create a project named Galactus",
		TaskName:             "create_project_galactus",
		OptimizedDescription: "Create a new project named Galactus with Urgent priority",
		AuthRequired:         true,
	})

	assert.Equal(t, agent.Task{
		App:          "linear",
		Name:         "create_project_galactus",
		Description:  "create a project named Galactus",
		Instructions: "Create a new project named Galactus with Urgent priority",
		StartURL:     "https://linear.app",
		AuthRequired: true,
	}, task)
	require.NoError(t, task.Normalize().Validate())
	assert.Equal(t, "Create a new project named Galactus with Urgent priority", task.AgentInstructions())
}

func TestNewQuestionParser(t *testing.T) {
	tests := []struct {
		name    string
		cfg     QuestionConfig
		wantErr bool
	}{
		{name: "no provider", cfg: QuestionConfig{}, wantErr: true},
		{name: "disabled", cfg: QuestionConfig{Provider: "none"}, wantErr: true},
		{name: "missing key", cfg: QuestionConfig{Provider: "openai", Model: "gpt-4o-mini"}, wantErr: true},
		{name: "unknown provider", cfg: QuestionConfig{Provider: "cohere", Model: "x"}, wantErr: true},
		{name: "openai", cfg: QuestionConfig{Provider: "OpenAI", Model: "gpt-4o-mini", APIKey: "sk-test", Cache: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := newQuestionParser(context.Background(), &Config{Question: tt.cfg}, logger.NewTestLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestPrintParsed(t *testing.T) {
	var buf bytes.Buffer
	printParsed(&buf, question.Parsed{AppName: "GitHub", AppURL: "https://github.com", Task: "view stars", TaskName: "view_stars"})

	out := buf.String()
	assert.Contains(t, out, "https://github.com")
	assert.Contains(t, out, "view_stars")
	assert.Regexp(t, `Auth required\s+no`, out)
}
