// Package workflow persists finalized captures as workflow.json documents.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/storage"
)

// DocumentName is the file name of the persisted capture inside its task directory.
const DocumentName = "workflow.json"

var (
	// ErrPersist is returned when a capture cannot be written.
	ErrPersist = errors.New("failed to persist workflow")

	// ErrLoad is returned when a workflow document cannot be read back.
	ErrLoad = errors.New("failed to load workflow")

	// ErrDocumentExists is returned when the target path already holds the
	// document of a different run.
	ErrDocumentExists = errors.New("workflow document belongs to another run")
)

// Writer serializes captures through a BlobStorage.
type Writer struct {
	blobs  storage.BlobStorage
	logger logger.Logger
}

// NewWriter creates a workflow writer.
func NewWriter(blobs storage.BlobStorage, log logger.Logger) *Writer {
	return &Writer{blobs: blobs, logger: log}
}

// PathFor returns where Persist writes c.
func PathFor(c *capture.WorkflowCapture) string {
	return path.Join(c.Directory(), DocumentName)
}

// Persist validates c and writes it to {Directory()}/workflow.json. Writing the
// same run again overwrites the same path; a document left there by another
// run is never replaced.
func (w *Writer) Persist(ctx context.Context, c *capture.WorkflowCapture) (string, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}

	p := PathFor(c)
	if err := w.checkOwner(ctx, p, c.Metadata.RunID); err != nil {
		w.logger.Error(ctx, "refusing to write workflow document", map[string]interface{}{
			"path":   p,
			"run_id": c.Metadata.RunID,
			"error":  err.Error(),
		})
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}

	if err := w.blobs.Upload(ctx, p, bytes.NewReader(data)); err != nil {
		w.logger.Error(ctx, "failed to write workflow document", map[string]interface{}{
			"path":  p,
			"error": err.Error(),
		})
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}

	w.logger.Info(ctx, "workflow document written", map[string]interface{}{
		"path":        p,
		"total_steps": c.Metadata.TotalSteps,
		"success":     c.Metadata.Success,
		"status":      string(c.Metadata.Status),
	})
	return p, nil
}

// Load reads a workflow document back.
func (w *Writer) Load(ctx context.Context, p string) (*capture.WorkflowCapture, error) {
	rc, err := w.blobs.Download(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer rc.Close()

	var c capture.WorkflowCapture
	if err := json.NewDecoder(rc).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return &c, nil
}

// checkOwner fails unless p is free or already holds a document of runID.
func (w *Writer) checkOwner(ctx context.Context, p, runID string) error {
	exists, err := w.blobs.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	prev, err := w.Load(ctx, p)
	if err != nil {
		return fmt.Errorf("%w: unreadable document at %s: %w", ErrDocumentExists, p, err)
	}
	if prev.Metadata.RunID != runID {
		return fmt.Errorf("%w: %s has run %q", ErrDocumentExists, p, prev.Metadata.RunID)
	}
	return nil
}
