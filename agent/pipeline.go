package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hairizuan-noorazman/workflow-capture/capture"
	"github.com/hairizuan-noorazman/workflow-capture/job"
	"github.com/hairizuan-noorazman/workflow-capture/judge"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/metrics"
	"github.com/hairizuan-noorazman/workflow-capture/session"
	"github.com/hairizuan-noorazman/workflow-capture/workflow"
)

// DefaultPersistTimeout bounds the workflow write when none is configured.
const DefaultPersistTimeout = 30 * time.Second

// Result is a persisted capture.
type Result struct {
	Capture *capture.WorkflowCapture
	Path    string
}

// Pipeline runs a task end to end: preflight, profile lease, capture,
// judgement and persistence.
type Pipeline struct {
	config    Config
	driver    *Driver
	sessions  *session.Manager
	judge     *judge.Judge
	writer    *workflow.Writer
	preflight *Preflight
	jobStore  job.Store
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// NewPipeline creates a new capture pipeline. sessions and jobStore may be
// nil: without a session manager tasks run without a profile lease, and
// without a job store RunAfterClaim cannot be used.
func NewPipeline(
	config Config,
	driver *Driver,
	sessions *session.Manager,
	j *judge.Judge,
	writer *workflow.Writer,
	jobStore job.Store,
	m *metrics.Metrics,
	log logger.Logger,
) *Pipeline {
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = DefaultPersistTimeout
	}
	var pre *Preflight
	if config.Preflight {
		pre = NewPreflight(nil)
	}
	return &Pipeline{
		config:    config,
		driver:    driver,
		sessions:  sessions,
		judge:     j,
		writer:    writer,
		preflight: pre,
		jobStore:  jobStore,
		metrics:   m,
		logger:    log,
	}
}

// WithPreflight replaces the preflight checker.
func (p *Pipeline) WithPreflight(pre *Preflight) *Pipeline {
	p.preflight = pre
	return p
}

// Capture runs task and persists its workflow document. An interrupted run
// is still persisted, without a judgement. Errors are returned only when
// nothing could be captured or the document could not be written.
func (p *Pipeline) Capture(ctx context.Context, task Task) (*Result, error) {
	task = task.Normalize()
	if err := task.Validate(); err != nil {
		return nil, err
	}

	if p.config.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.TimeLimit)
		defer cancel()
	}

	if p.preflight != nil {
		if err := p.preflight.Check(ctx, task.StartURL); err != nil {
			return nil, err
		}
	}

	if p.sessions != nil {
		lease, err := p.sessions.Acquire(ctx, task.App)
		if err != nil {
			return nil, fmt.Errorf("leasing browser profile: %w", err)
		}
		defer func() {
			if err := p.sessions.Release(context.WithoutCancel(ctx), lease); err != nil {
				p.logger.Warn(ctx, "failed to release browser profile", map[string]interface{}{
					"session_id": lease.ID.String(),
					"error":      err.Error(),
				})
			}
		}()
		task.Session = lease
	}

	p.metrics.RunStarted()
	c, err := p.driver.Run(ctx, task)
	if err != nil {
		p.metrics.RunFinished(task.App, "error", 0)
		return nil, err
	}

	if ctx.Err() == nil {
		verdict := p.judge.Evaluate(ctx, judge.Request{
			App:             task.App,
			TaskDescription: task.Description,
			Steps:           c.Steps,
		})
		if err := c.AttachJudgement(verdict); err != nil {
			p.logger.Error(ctx, "failed to attach judgement", map[string]interface{}{
				"error": err.Error(),
			})
		}
	} else {
		p.logger.Info(ctx, "skipping judgement for interrupted run", map[string]interface{}{
			"app":  task.App,
			"task": task.Name,
		})
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.PersistTimeout)
	defer cancel()
	path, err := p.writer.Persist(persistCtx, c)
	p.metrics.RunFinished(task.App, string(c.Metadata.Status), c.Metadata.TotalDurationSeconds)
	if err != nil {
		p.metrics.PersistFailed()
		return nil, err
	}

	p.logSummary(ctx, c, path)
	return &Result{Capture: c, Path: path}, nil
}

func (p *Pipeline) logSummary(ctx context.Context, c *capture.WorkflowCapture, path string) {
	s := c.Summarize()
	fields := map[string]interface{}{
		"app":           s.App,
		"task":          s.Task,
		"status":        string(s.Status),
		"duration_s":    s.Duration.Seconds(),
		"steps":         s.Steps,
		"screenshots":   s.Screenshots,
		"success":       s.Success,
		"workflow_path": path,
	}
	if s.AbortReason != "" {
		fields["abort_reason"] = s.AbortReason
	}
	if s.Judged {
		fields["verdict"] = s.Verdict
		fields["failure_reason"] = s.FailureReason
		fields["reached_captcha"] = s.ReachedCaptcha
		fields["impossible_task"] = s.ImpossibleTask
	}
	p.logger.Info(ctx, "capture summary", fields)
}

// TaskFromJob builds a task from a workflow_capture job's config.
func TaskFromJob(j *job.Job) Task {
	return Task{
		App:          j.Config.String(job.ConfigApp),
		Name:         j.Config.String(job.ConfigTaskName),
		Description:  j.Config.String(job.ConfigTaskDescription),
		Instructions: j.Config.String(job.ConfigInstructions),
		StartURL:     j.Config.String(job.ConfigStartURL),
		AuthRequired: j.Config.Bool(job.ConfigAuthRequired),
	}
}

// Run marks a created job as running and executes it.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID) {
	if err := p.jobStore.Start(ctx, jobID); err != nil {
		p.failJob(ctx, jobID, fmt.Sprintf("failed to start job: %v", err))
		return
	}
	p.RunAfterClaim(ctx, jobID)
}

// RunAfterClaim executes a job that is already running, recording the
// outcome on the job.
func (p *Pipeline) RunAfterClaim(ctx context.Context, jobID uuid.UUID) {
	p.logger.Info(ctx, "starting capture pipeline", map[string]interface{}{
		"job_id": jobID.String(),
	})

	j, err := p.jobStore.GetByID(ctx, jobID)
	if err != nil {
		p.failJob(ctx, jobID, fmt.Sprintf("failed to fetch job: %v", err))
		return
	}
	if j.Type != job.JobTypeWorkflowCapture {
		p.failJob(ctx, jobID, fmt.Sprintf("unsupported job type %q", j.Type))
		return
	}

	res, err := p.Capture(ctx, TaskFromJob(j))
	if err != nil {
		p.failJob(ctx, jobID, err.Error())
		return
	}

	md := res.Capture.Metadata
	result := job.JSONMap{
		job.ResultWorkflowPath: res.Path,
		job.ResultSuccess:      md.Success,
		job.ResultTotalSteps:   md.TotalSteps,
		job.ResultStatus:       string(md.Status),
	}
	if md.AbortReason != "" {
		result[job.ResultAbortReason] = md.AbortReason
	}
	if md.Judgement != nil {
		result[job.ResultVerdict] = md.Judgement.Verdict
	}

	// The job itself succeeded once a document exists; the capture outcome
	// is in the result.
	completeCtx := context.WithoutCancel(ctx)
	if err := p.jobStore.Complete(completeCtx, jobID, job.StatusSuccess, result); err != nil {
		p.logger.Error(ctx, "failed to mark job as success", map[string]interface{}{
			"error":  err.Error(),
			"job_id": jobID.String(),
		})
		return
	}

	p.logger.Info(ctx, "capture pipeline completed", map[string]interface{}{
		"job_id":        jobID.String(),
		"workflow_path": res.Path,
		"success":       md.Success,
	})
}

// failJob marks a job as failed with the given reason.
func (p *Pipeline) failJob(ctx context.Context, jobID uuid.UUID, reason string) {
	p.logger.Error(ctx, "capture pipeline failed", map[string]interface{}{
		"job_id": jobID.String(),
		"reason": reason,
	})

	ctx = context.WithoutCancel(ctx)
	if err := p.jobStore.Complete(ctx, jobID, job.StatusFailed, job.JSONMap{
		job.ResultError: reason,
	}); err != nil {
		// A job that never started cannot be completed; set the status directly.
		if err2 := p.jobStore.Update(ctx, jobID, job.SetStatus(job.StatusFailed), job.MergeResult(job.JSONMap{
			job.ResultError: reason,
		})); err2 != nil {
			p.logger.Error(ctx, "failed to mark job as failed", map[string]interface{}{
				"error":  err2.Error(),
				"job_id": jobID.String(),
			})
		}
	}
}
