package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hairizuan-noorazman/workflow-capture/internal/slug"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
)

// Manager hands out profile leases rooted at a single directory, one profile
// per app, and reclaims expired leases in the background.
type Manager struct {
	store       *Store
	profileRoot string
	duration    time.Duration
	logger      logger.Logger
	stopCh      chan struct{}
}

// NewManager creates a manager. duration bounds how long a crashed run can
// hold a profile.
func NewManager(profileRoot string, duration time.Duration, log logger.Logger) *Manager {
	return &Manager{
		store:       NewStore(),
		profileRoot: profileRoot,
		duration:    duration,
		logger:      log,
		stopCh:      make(chan struct{}),
	}
}

// ProfileDir returns the profile directory used for app.
func (m *Manager) ProfileDir(app string) string {
	name := slug.Make(app, 40)
	if name == "" {
		name = "default"
	}
	return filepath.Join(m.profileRoot, name)
}

// TryAcquire leases the app's profile or returns ErrProfileBusy.
func (m *Manager) TryAcquire(ctx context.Context, app string) (*Session, error) {
	s, _, err := m.tryAcquire(ctx, app)
	return s, err
}

// Acquire leases the app's profile, waiting for a concurrent run to release
// it if necessary.
func (m *Manager) Acquire(ctx context.Context, app string) (*Session, error) {
	for {
		s, released, err := m.tryAcquire(ctx, app)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrProfileBusy) {
			return nil, err
		}

		m.logger.Debug(ctx, "waiting for browser profile", map[string]interface{}{
			"app": app,
		})
		select {
		case <-released:
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s profile: %w", app, ctx.Err())
		}
	}
}

func (m *Manager) tryAcquire(ctx context.Context, app string) (*Session, <-chan struct{}, error) {
	dir := m.ProfileDir(app)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	now := time.Now()
	s := &Session{
		ID:         uuid.New(),
		App:        app,
		ProfileDir: dir,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.duration),
	}

	released, err := m.store.TryLease(s)
	if err != nil {
		return nil, released, err
	}

	m.logger.Info(ctx, "browser profile leased", map[string]interface{}{
		"session_id":  s.ID.String(),
		"app":         app,
		"profile_dir": dir,
	})
	return s, released, nil
}

// Get retrieves a live lease by ID.
func (m *Manager) Get(sessionID uuid.UUID) (*Session, error) {
	return m.store.Get(sessionID)
}

// Release ends a lease.
func (m *Manager) Release(ctx context.Context, s *Session) error {
	if err := m.store.Delete(s.ID); err != nil {
		return err
	}
	m.logger.Info(ctx, "browser profile released", map[string]interface{}{
		"session_id": s.ID.String(),
		"app":        s.App,
	})
	return nil
}

// StartCleanup starts a background goroutine that periodically removes expired leases.
func (m *Manager) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				removed := m.store.Cleanup()
				if removed > 0 {
					m.logger.Info(context.Background(), "reclaimed expired profile leases", map[string]interface{}{
						"removed_count": removed,
					})
				}
			case <-m.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// StopCleanup stops the cleanup goroutine.
func (m *Manager) StopCleanup() {
	close(m.stopCh)
}
