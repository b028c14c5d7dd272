package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "simple", path: "workflow.json", want: "workflow.json"},
		{name: "nested", path: "run/step_001.png", want: "run/step_001.png"},
		{name: "redundant segments", path: "run/./x/../step.png", want: "run/step.png"},
		{name: "backslashes", path: `run\step.png`, want: "run/step.png"},
		{name: "empty", path: "", wantErr: true},
		{name: "parent", path: "..", wantErr: true},
		{name: "escape", path: "../x", wantErr: true},
		{name: "hidden escape", path: "run/../../x", wantErr: true},
		{name: "absolute", path: "/x", wantErr: true},
		{name: "dot", path: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanKey(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", contentType("a/state_1_x.PNG"))
	assert.Equal(t, "application/json", contentType("a/workflow.json"))
	assert.Equal(t, "application/octet-stream", contentType("a/blob"))
}

func TestNewBlobStorage(t *testing.T) {
	ctx := context.Background()

	s, err := NewBlobStorage(ctx, Config{Type: "local", BaseDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewBlobStorage(ctx, Config{Type: "local"})
	assert.Error(t, err)

	_, err = NewBlobStorage(ctx, Config{Type: "s3", S3Region: "us-east-1"})
	assert.Error(t, err)

	_, err = NewBlobStorage(ctx, Config{Type: "s3", S3Bucket: "captures"})
	assert.Error(t, err)

	_, err = NewBlobStorage(ctx, Config{Type: "gcs"})
	assert.Error(t, err)
}

func TestS3Storage_Key(t *testing.T) {
	s := &S3Storage{prefix: "captures"}
	key, err := s.key("linear_x/workflow.json")
	require.NoError(t, err)
	assert.Equal(t, "captures/linear_x/workflow.json", key)

	_, err = s.key("../escape")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestS3Storage_KeyPrefix(t *testing.T) {
	s := &S3Storage{prefix: "datasets/v1"}

	key, err := s.key("run/step_000.png")
	require.NoError(t, err)
	assert.Equal(t, "datasets/v1/run/step_000.png", key)

	_, err = s.key("../escape")
	assert.ErrorIs(t, err, ErrInvalidPath)

	s.prefix = ""
	key, err = s.key("workflow.json")
	require.NoError(t, err)
	assert.Equal(t, "workflow.json", key)
}
