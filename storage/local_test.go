package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	tests := []struct {
		name      string
		baseDir   string
		wantError bool
	}{
		{name: "existing directory", baseDir: t.TempDir()},
		{name: "creates missing directory", baseDir: filepath.Join(t.TempDir(), "captures")},
		{name: "empty base directory", baseDir: "", wantError: true},
		{name: "dot as base directory", baseDir: ".", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewLocalStorage(tt.baseDir)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.DirExists(t, s.BaseDir())
		})
	}
}

func TestLocalStorage_Upload(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	s, err := NewLocalStorage(baseDir)
	require.NoError(t, err)

	tests := []struct {
		name      string
		path      string
		content   string
		wantError bool
	}{
		{name: "workflow document", path: "linear_create_issue_20250101T000000Z/workflow.json", content: "{}"},
		{name: "nested screenshot", path: "a/b/step_000.png", content: "png"},
		{name: "empty path", path: "", wantError: true},
		{name: "traversal", path: "../outside.txt", wantError: true},
		{name: "absolute", path: "/etc/passwd", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Upload(ctx, tt.path, strings.NewReader(tt.content))
			if tt.wantError {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)

			data, err := os.ReadFile(filepath.Join(baseDir, tt.path))
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}

func TestLocalStorage_UploadOverwriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "run/workflow.json", strings.NewReader("first")))
	require.NoError(t, s.Upload(ctx, "run/workflow.json", strings.NewReader("second")))

	entries, err := os.ReadDir(filepath.Join(s.BaseDir(), "run"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "workflow.json", entries[0].Name())

	rc, err := s.Download(ctx, "run/workflow.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestLocalStorage_UploadFailureKeepsPreviousContent(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "doc.json", strings.NewReader("original")))
	require.Error(t, s.Upload(ctx, "doc.json", failingReader{}))

	data, err := os.ReadFile(filepath.Join(s.BaseDir(), "doc.json"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(s.BaseDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStorage_ConcurrentReadersSeeWholeDocuments(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	a := strings.Repeat("a", 64*1024)
	b := strings.Repeat("b", 64*1024)
	require.NoError(t, s.Upload(ctx, "doc", strings.NewReader(a)))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			content := a
			if i%2 == 0 {
				content = b
			}
			assert.NoError(t, s.Upload(ctx, "doc", strings.NewReader(content)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			rc, err := s.Download(ctx, "doc")
			if !assert.NoError(t, err) {
				return
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			assert.NoError(t, err)
			got := string(data)
			assert.True(t, got == a || got == b, "reader observed a partial document of %d bytes", len(got))
		}
	}()
	wg.Wait()
}

func TestLocalStorage_DownloadDeleteExists(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Download(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, s.Upload(ctx, "shots/step_000.png", strings.NewReader("x")))

	exists, err := s.Exists(ctx, "shots/step_000.png")
	require.NoError(t, err)
	assert.True(t, exists)

	url, err := s.GetURL(ctx, "shots/step_000.png")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(url))

	require.NoError(t, s.Delete(ctx, "shots/step_000.png"))
	assert.ErrorIs(t, s.Delete(ctx, "shots/step_000.png"), ErrFileNotFound)

	exists, err = s.Exists(ctx, "shots/step_000.png")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.GetURL(ctx, "shots/step_000.png")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
