package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder() *Recorder {
	return NewRecorder(Metadata{
		AppName:          "linear",
		TaskName:         "create_issue",
		TaskDescription:  "Create an issue titled Bug",
		StartURL:         "https://linear.app",
		CaptureTimestamp: time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("SGT", 8*3600)),
	})
}

func TestRecorder_AssignsContiguousStepNumbers(t *testing.T) {
	r := newTestRecorder()

	for i := 0; i < 5; i++ {
		assert.Equal(t, i, r.Next())
		step, err := r.Record(Observation{URL: "https://linear.app/team"})
		require.NoError(t, err)
		assert.Equal(t, i, step.StepNumber)
	}
	assert.Equal(t, 5, r.Len())

	for i, step := range r.Capture().Steps {
		assert.Equal(t, i, step.StepNumber)
	}
}

func TestRecorder_NewRecorderNormalizesMetadata(t *testing.T) {
	r := newTestRecorder()
	c := r.Capture()

	assert.Equal(t, time.UTC, c.Metadata.CaptureTimestamp.Location())
	assert.Equal(t, StatusRunning, c.Metadata.Status)
	assert.NotNil(t, c.Steps)
	assert.Empty(t, c.Steps)
	assert.Len(t, c.Metadata.RunID, runIDLength)

	kept := NewRecorder(Metadata{AppName: "linear", RunID: "given"})
	assert.Equal(t, "given", kept.Capture().Metadata.RunID)
}

func TestRecorder_SameSecondRunsGetDistinctDirectories(t *testing.T) {
	a := newTestRecorder().Capture()
	b := newTestRecorder().Capture()

	assert.Equal(t, a.Metadata.CaptureTimestamp, b.Metadata.CaptureTimestamp)
	assert.NotEqual(t, a.Metadata.RunID, b.Metadata.RunID)
	assert.NotEqual(t, a.Directory(), b.Directory())
}

func TestRecorder_DoesNotAliasCallerData(t *testing.T) {
	r := newTestRecorder()

	path := "run/step_000.png"
	ok := true
	obs := Observation{
		ScreenshotPath: &path,
		Success:        &ok,
		Actions:        []ActionInvocation{{ActionName: "click", Params: map[string]any{"index": float64(3)}}},
		Errors:         []string{"first"},
	}
	_, err := r.Record(obs)
	require.NoError(t, err)

	path = "changed"
	ok = false
	obs.Actions[0].Params["index"] = float64(9)
	obs.Errors[0] = "changed"

	step := r.Capture().Steps[0]
	assert.Equal(t, "run/step_000.png", *step.ScreenshotPath)
	assert.True(t, *step.Success)
	assert.Equal(t, float64(3), step.ActionsTaken[0].Params["index"])
	assert.Equal(t, []string{"first"}, step.Errors)
}

func TestRecorder_SuccessTriState(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name    string
		obs     Observation
		want    *bool
		wantNil bool
	}{
		{name: "unknown without errors stays unknown", obs: Observation{}, wantNil: true},
		{name: "unknown with errors becomes false", obs: Observation{Errors: []string{"element not found"}}, want: &no},
		{name: "explicit true with errors is kept", obs: Observation{Success: &yes, Errors: []string{"slow"}}, want: &yes},
		{name: "explicit false is kept", obs: Observation{Success: &no}, want: &no},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRecorder()
			step, err := r.Record(tt.obs)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, step.Success)
				return
			}
			require.NotNil(t, step.Success)
			assert.Equal(t, *tt.want, *step.Success)
		})
	}
}

func TestRecorder_EmptySlicesAreNotNil(t *testing.T) {
	r := newTestRecorder()
	step, err := r.Record(Observation{})
	require.NoError(t, err)
	assert.NotNil(t, step.ActionsTaken)
	assert.NotNil(t, step.Errors)
}

func TestRecorder_Finalize(t *testing.T) {
	r := newTestRecorder()
	for i := 0; i < 3; i++ {
		_, err := r.Record(Observation{})
		require.NoError(t, err)
	}

	c, err := r.Finalize(Outcome{Status: StatusDoneSuccess, Duration: 1500 * time.Millisecond})
	require.NoError(t, err)

	assert.True(t, r.Finalized())
	assert.Equal(t, 3, c.Metadata.TotalSteps)
	assert.Equal(t, 1.5, c.Metadata.TotalDurationSeconds)
	assert.True(t, c.Metadata.Success)
	assert.Equal(t, StatusDoneSuccess, c.Metadata.Status)
	assert.False(t, c.Steps[0].IsDone)
	assert.False(t, c.Steps[1].IsDone)
	assert.True(t, c.Steps[2].IsDone)
	require.NoError(t, c.Validate())
}

func TestRecorder_FinalizeWithTerminalError(t *testing.T) {
	r := newTestRecorder()
	_, err := r.Record(Observation{})
	require.NoError(t, err)

	c, err := r.Finalize(Outcome{
		Status:        StatusDoneFailure,
		TerminalError: "max step limit (1) reached without completion",
	})
	require.NoError(t, err)

	last := c.Terminal()
	require.NotNil(t, last)
	assert.Equal(t, []string{"max step limit (1) reached without completion"}, last.Errors)
	require.NotNil(t, last.Success)
	assert.False(t, *last.Success)
	assert.False(t, c.Metadata.Success)
}

func TestRecorder_FinalizeWithoutStepsAddsSyntheticTerminalStep(t *testing.T) {
	r := newTestRecorder()

	c, err := r.Finalize(Outcome{Status: StatusAborted, AbortReason: "interrupted: context canceled"})
	require.NoError(t, err)

	require.Len(t, c.Steps, 1)
	assert.Equal(t, "https://linear.app", c.Steps[0].URL)
	assert.True(t, c.Steps[0].IsDone)
	assert.Nil(t, c.Steps[0].ScreenshotPath)
	assert.Equal(t, "interrupted: context canceled", c.Metadata.AbortReason)
	assert.False(t, c.Metadata.Success)
	require.NoError(t, c.Validate())
}

func TestRecorder_ContractViolations(t *testing.T) {
	r := newTestRecorder()

	_, err := r.Finalize(Outcome{Status: StatusRunning})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = r.Finalize(Outcome{Status: StatusDoneFailure})
	require.NoError(t, err)

	_, err = r.Record(Observation{})
	assert.ErrorIs(t, err, ErrCaptureFinalized)

	_, err = r.Finalize(Outcome{Status: StatusDoneFailure})
	assert.ErrorIs(t, err, ErrCaptureFinalized)

	assert.Len(t, r.Capture().Steps, 1)
}
