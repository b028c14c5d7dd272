package job

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/workflow-capture/logger"
)

// claimAttempts bounds how often ClaimNextCreated retries after losing a race.
const claimAttempts = 5

// SQLStore implements Store with GORM on MySQL or SQLite.
type SQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewSQLStore creates a new GORM-backed job store.
func NewSQLStore(db *gorm.DB, log logger.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new job in the database.
func (s *SQLStore) Create(ctx context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(j).Error; err != nil {
		s.logger.Error(ctx, "failed to create job", map[string]interface{}{
			"error": err.Error(),
			"type":  string(j.Type),
		})
		return err
	}

	s.logger.Info(ctx, "job created", map[string]interface{}{
		"job_id": j.ID.String(),
		"type":   string(j.Type),
		"app":    j.App,
	})

	return nil
}

// GetByID retrieves a job by its ID.
func (s *SQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&j).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		s.logger.Error(ctx, "failed to get job by ID", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		return nil, err
	}

	return &j, nil
}

// Update updates a job with the given setters.
func (s *SQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	j, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(j); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(j).Error; err != nil {
		s.logger.Error(ctx, "failed to update job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		return err
	}

	s.logger.Info(ctx, "job updated", map[string]interface{}{
		"job_id": id.String(),
	})

	return nil
}

func (s *SQLStore) filtered(ctx context.Context, filter ListFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&Job{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.App != "" {
		q = q.Where("app = ?", filter.App)
	}
	return q
}

// List retrieves a page of jobs, newest first.
func (s *SQLStore) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Job, error) {
	var jobs []*Job
	err := s.filtered(ctx, filter).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list jobs", map[string]interface{}{
			"error":  err.Error(),
			"status": string(filter.Status),
			"app":    filter.App,
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}

	return jobs, nil
}

// Count returns how many jobs match filter.
func (s *SQLStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	var count int64
	if err := s.filtered(ctx, filter).Count(&count).Error; err != nil {
		s.logger.Error(ctx, "failed to count jobs", map[string]interface{}{
			"error":  err.Error(),
			"status": string(filter.Status),
			"app":    filter.App,
		})
		return 0, err
	}

	return int(count), nil
}

// Start marks a job as running.
func (s *SQLStore) Start(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		if err := tx.Where("id = ?", id).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if err := j.Start(); err != nil {
			return err
		}

		return tx.Save(&j).Error
	})

	if err != nil {
		if !errors.Is(err, ErrJobNotFound) && !errors.Is(err, ErrJobAlreadyStarted) {
			s.logger.Error(ctx, "failed to start job", map[string]interface{}{
				"error":  err.Error(),
				"job_id": id.String(),
			})
		}
		return err
	}

	s.logger.Info(ctx, "job started", map[string]interface{}{
		"job_id": id.String(),
	})

	return nil
}

// Complete marks a job as finished with the given status and result.
func (s *SQLStore) Complete(ctx context.Context, id uuid.UUID, status Status, result JSONMap) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		if err := tx.Where("id = ?", id).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if err := j.Complete(status, result); err != nil {
			return err
		}

		return tx.Save(&j).Error
	})

	if err != nil {
		if !errors.Is(err, ErrJobNotFound) && !errors.Is(err, ErrJobNotRunning) {
			s.logger.Error(ctx, "failed to complete job", map[string]interface{}{
				"error":  err.Error(),
				"job_id": id.String(),
				"status": string(status),
			})
		}
		return err
	}

	s.logger.Info(ctx, "job completed", map[string]interface{}{
		"job_id": id.String(),
		"status": string(status),
	})

	return nil
}

// ClaimNextCreated picks the oldest created job and flips it to running with a
// conditional UPDATE. Losing the race to another worker shows up as zero
// affected rows, in which case the next candidate is tried.
func (s *SQLStore) ClaimNextCreated(ctx context.Context) (*Job, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var j Job
		err := s.db.WithContext(ctx).
			Where("status = ?", StatusCreated).
			Order("created_at ASC").
			First(&j).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			s.logger.Error(ctx, "failed to find created job", map[string]interface{}{
				"error": err.Error(),
			})
			return nil, err
		}

		now := time.Now()
		res := s.db.WithContext(ctx).
			Model(&Job{}).
			Where("id = ? AND status = ?", j.ID, StatusCreated).
			Updates(map[string]interface{}{
				"status":     StatusRunning,
				"start_time": now,
			})
		if res.Error != nil {
			s.logger.Error(ctx, "failed to claim job", map[string]interface{}{
				"error":  res.Error.Error(),
				"job_id": j.ID.String(),
			})
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			j.Status = StatusRunning
			j.StartTime = &now
			s.logger.Info(ctx, "job claimed", map[string]interface{}{
				"job_id": j.ID.String(),
			})
			return &j, nil
		}
	}
	return nil, nil
}
