package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want error
	}{
		{name: "valid", job: Job{Type: JobTypeWorkflowCapture, Config: captureConfig("linear")}},
		{name: "bad type", job: Job{Type: "ui_exploration", Config: captureConfig("linear")}, want: ErrInvalidJobType},
		{name: "missing description", job: Job{Type: JobTypeWorkflowCapture, Config: JSONMap{ConfigStartURL: "https://x"}}, want: ErrInvalidConfig},
		{name: "missing url", job: Job{Type: JobTypeWorkflowCapture, Config: JSONMap{ConfigTaskDescription: "x"}}, want: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJob_Lifecycle(t *testing.T) {
	j := &Job{Type: JobTypeWorkflowCapture, Status: StatusCreated}

	assert.ErrorIs(t, j.Complete(StatusSuccess, nil), ErrJobNotRunning)
	require.NoError(t, j.Start())
	assert.ErrorIs(t, j.Start(), ErrJobAlreadyStarted)
	assert.ErrorIs(t, j.Complete(StatusRunning, nil), ErrInvalidStatus)

	require.NoError(t, j.Complete(StatusSuccess, JSONMap{ResultTotalSteps: 3}))
	assert.Equal(t, StatusSuccess, j.Status)
	assert.NotNil(t, j.EndTime)
	assert.NotNil(t, j.Duration)
}

func TestJSONMap_Scan(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan([]byte(`{"app":"asana"}`)))
	assert.Equal(t, "asana", m.String("app"))

	require.NoError(t, m.Scan(`{"app":"linear"}`))
	assert.Equal(t, "linear", m.String("app"))

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.Error(t, m.Scan(42))
	assert.Equal(t, "", JSONMap{"n": 1}.String("n"))
}
