package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/screenshot"
	"github.com/hairizuan-noorazman/workflow-capture/storage"
)

var pngStub = []byte("\x89PNG\r\n\x1a\nstub")

func boolPtr(b bool) *bool { return &b }

func testTask() Task {
	return Task{
		App:         "linear",
		Description: "Navigate to Linear issues page and filter issues by status 'In Progress'",
		StartURL:    "https://linear.app",
	}
}

// setupDriver creates a driver writing screenshots under a temp dir.
func setupDriver(t *testing.T, automation Automation, cfg DriverConfig) (*Driver, *storage.LocalStorage, *logger.TestLogger) {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	log := logger.NewTestLogger()
	d := NewDriver(automation, screenshot.NewStore(blobs, log), cfg, log, nil)
	return d, blobs, log
}

// scripted emits events in order and then returns err.
func scripted(err error, events ...StepEvent) Automation {
	return AutomationFunc(func(ctx context.Context, task Task, out chan<- StepEvent) error {
		for _, ev := range events {
			if e := Emit(ctx, out, ev); e != nil {
				return e
			}
		}
		return err
	})
}

// endless emits failing-free steps until cancelled.
func endless() Automation {
	return AutomationFunc(func(ctx context.Context, task Task, out chan<- StepEvent) error {
		for i := 0; ; i++ {
			ev := StepEvent{
				URL:             fmt.Sprintf("https://linear.app/step/%d", i),
				Actions:         []capture.ActionInvocation{{ActionName: "scroll", Params: map[string]any{"down": true}}},
				Screenshot:      pngStub,
				ScreenshotLabel: "scrolling",
			}
			if err := Emit(ctx, out, ev); err != nil {
				return err
			}
		}
	})
}

// fakeClock advances one second per call.
func fakeClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * time.Second)
		n++
		return t
	}
}

var errBroken = errors.New("disk on fire")

// brokenStorage fails every operation.
type brokenStorage struct{}

func (brokenStorage) Upload(ctx context.Context, path string, r io.Reader) error { return errBroken }
func (brokenStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	return nil, errBroken
}
func (brokenStorage) Delete(ctx context.Context, path string) error { return errBroken }
func (brokenStorage) Exists(ctx context.Context, path string) (bool, error) {
	return false, errBroken
}
func (brokenStorage) GetURL(ctx context.Context, path string) (string, error) { return "", errBroken }

// readBlob returns the object at p.
func readBlob(t *testing.T, blobs storage.BlobStorage, p string) []byte {
	t.Helper()
	rc, err := blobs.Download(context.Background(), p)
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = io.Copy(&buf, rc)
	require.NoError(t, err)
	return buf.Bytes()
}
