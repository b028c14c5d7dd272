package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hairizuan-noorazman/workflow-capture/job"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
)

// JobRunner executes a claimed job.
type JobRunner interface {
	RunAfterClaim(ctx context.Context, jobID uuid.UUID)
}

// WorkerPool runs queued capture jobs. Workers wake on Notify or on the poll
// interval, then drain every created job; ClaimNextCreated guarantees a job
// is claimed by exactly one worker.
type WorkerPool struct {
	work         chan struct{}
	maxWorkers   int
	pollInterval time.Duration
	jobStore     job.Store
	runner       JobRunner
	logger       logger.Logger
	wg           sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. A zero pollInterval disables
// polling, leaving Notify as the only wake-up.
func NewWorkerPool(maxWorkers int, pollInterval time.Duration, jobStore job.Store, runner JobRunner, log logger.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		work:         make(chan struct{}, maxWorkers),
		maxWorkers:   maxWorkers,
		pollInterval: pollInterval,
		jobStore:     jobStore,
		runner:       runner,
		logger:       log,
	}
}

// Notify wakes one idle worker. It never blocks.
func (p *WorkerPool) Notify() {
	select {
	case p.work <- struct{}{}:
	default:
	}
}

// Start spawns worker goroutines. They stop when ctx is done; use Wait to
// block until they have.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info(ctx, "starting worker pool", map[string]interface{}{
		"max_workers":   p.maxWorkers,
		"poll_interval": p.pollInterval.String(),
	})
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	// Pick up jobs queued before this process started.
	p.Notify()
}

// Wait blocks until every worker has stopped.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Info(ctx, "worker started", map[string]interface{}{
		"worker_id": id,
	})

	var tick <-chan time.Time
	if p.pollInterval > 0 {
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-p.work:
			p.drain(ctx, id)
		case <-tick:
			p.drain(ctx, id)
		case <-ctx.Done():
			p.logger.Info(ctx, "worker stopping", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
	}
}

// drain runs created jobs until none are left.
func (p *WorkerPool) drain(ctx context.Context, id int) {
	for ctx.Err() == nil {
		j, err := p.jobStore.ClaimNextCreated(ctx)
		if err != nil {
			p.logger.Error(ctx, "worker failed to claim job", map[string]interface{}{
				"worker_id": id,
				"error":     err.Error(),
			})
			return
		}
		if j == nil {
			return
		}
		p.logger.Info(ctx, "worker processing job", map[string]interface{}{
			"worker_id": id,
			"job_id":    j.ID.String(),
		})
		p.runner.RunAfterClaim(ctx, j.ID)
	}
}
