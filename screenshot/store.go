// Package screenshot persists per-step screenshots into a task directory.
package screenshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/hairizuan-noorazman/workflow-capture/internal/slug"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/storage"
)

var (
	// ErrEmptyImage is returned when Save is called without image bytes.
	ErrEmptyImage = errors.New("empty screenshot image")

	// ErrStorageFailure wraps any error from the underlying blob storage.
	ErrStorageFailure = errors.New("screenshot storage failure")
)

const maxLabelLength = 40

// maxCollisionSuffix bounds the search for a free filename.
const maxCollisionSuffix = 1000

// Store writes PNG screenshots through a BlobStorage.
type Store struct {
	blobs  storage.BlobStorage
	logger logger.Logger

	// mu serializes the exists-then-write sequence so concurrent saves of the
	// same step and label never pick the same name.
	mu sync.Mutex
}

// NewStore creates a screenshot store.
func NewStore(blobs storage.BlobStorage, log logger.Logger) *Store {
	return &Store{blobs: blobs, logger: log}
}

// FileName returns the base filename for a step: state_{n}_{label}.png, or
// step_{NNN}.png when the label is empty after slugging.
func FileName(stepNumber int, label string) string {
	if l := slug.Make(label, maxLabelLength); l != "" {
		return fmt.Sprintf("state_%d_%s.png", stepNumber, l)
	}
	return fmt.Sprintf("step_%03d.png", stepNumber)
}

// Save writes img into taskDir and returns its path relative to the storage
// root. An existing file is never overwritten; a _2, _3, ... suffix is added
// instead.
func (s *Store) Save(ctx context.Context, taskDir string, stepNumber int, label string, img []byte) (string, error) {
	if len(img) == 0 {
		return "", ErrEmptyImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := FileName(stepNumber, label)
	base := name[:len(name)-len(".png")]

	candidate := path.Join(taskDir, name)
	for i := 2; ; i++ {
		exists, err := s.blobs.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
		if !exists {
			break
		}
		if i > maxCollisionSuffix {
			return "", fmt.Errorf("%w: no free name for %s", ErrStorageFailure, name)
		}
		candidate = path.Join(taskDir, fmt.Sprintf("%s_%d.png", base, i))
	}

	if err := s.blobs.Upload(ctx, candidate, bytes.NewReader(img)); err != nil {
		s.logger.Error(ctx, "failed to write screenshot", map[string]interface{}{
			"path":  candidate,
			"error": err.Error(),
		})
		return "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.logger.Debug(ctx, "screenshot saved", map[string]interface{}{
		"path":        candidate,
		"step_number": stepNumber,
		"bytes":       len(img),
	})
	return candidate, nil
}
