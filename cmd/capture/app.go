package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/workflow-capture/agent"
	"github.com/hairizuan-noorazman/workflow-capture/job"
	"github.com/hairizuan-noorazman/workflow-capture/judge"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/metrics"
	"github.com/hairizuan-noorazman/workflow-capture/screenshot"
	"github.com/hairizuan-noorazman/workflow-capture/session"
	"github.com/hairizuan-noorazman/workflow-capture/storage"
	"github.com/hairizuan-noorazman/workflow-capture/workflow"
)

// app holds the components shared by the run and serve commands.
type app struct {
	cfg      *Config
	log      *logger.LogrusLogger
	blobs    storage.BlobStorage
	writer   *workflow.Writer
	sessions *session.Manager
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	pipeline *agent.Pipeline
	jobs     job.Store
}

func newLogger(cfg *Config) *logger.LogrusLogger {
	return logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
}

func newStorage(ctx context.Context, cfg *Config) (storage.BlobStorage, error) {
	return storage.NewBlobStorage(ctx, storage.Config{
		Type:          cfg.Storage.Type,
		BaseDir:       cfg.Storage.BaseDir,
		S3Bucket:      cfg.Storage.S3Bucket,
		S3Region:      cfg.Storage.S3Region,
		S3Prefix:      cfg.Storage.S3Prefix,
		PresignExpiry: cfg.Storage.S3PresignExpiry,
	})
}

// newAutomation builds the configured automation backend.
func newAutomation(cfg *Config, log logger.Logger) (agent.Automation, error) {
	switch strings.ToLower(cfg.Agent.Backend) {
	case "", "process":
		if cfg.Agent.ScriptPath == "" {
			return nil, fmt.Errorf("agent.script_path is required for the process backend")
		}
		command, args := cfg.Agent.ScriptPath, []string(nil)
		if cfg.Agent.Python != "" {
			command, args = cfg.Agent.Python, []string{cfg.Agent.ScriptPath}
		}
		return agent.NewProcessAutomation(command, args, cfg.Agent.Headless, cfg.Agent.MaxSteps, log), nil

	case "playwright":
		if cfg.Agent.Plan == "" {
			return nil, fmt.Errorf("agent.plan is required for the playwright backend")
		}
		plan, err := agent.LoadPlan(cfg.Agent.Plan)
		if err != nil {
			return nil, err
		}
		return agent.NewPlaywrightAutomation(plan, cfg.Agent.Headless, cfg.Agent.ActionTimeout, log), nil

	default:
		return nil, fmt.Errorf("%w: %s", agent.ErrUnknownBackend, cfg.Agent.Backend)
	}
}

// newApp wires storage, profile leasing, judge, driver and pipeline. db is
// nil outside server mode, where no job store is needed.
func newApp(ctx context.Context, cfg *Config, db *gorm.DB) (*app, error) {
	log := newLogger(cfg)

	var jobs job.Store
	if db != nil {
		jobs = job.NewSQLStore(db, log)
	}

	blobs, err := newStorage(ctx, cfg)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	automation, err := newAutomation(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	evaluator, err := judge.NewEvaluator(ctx, judge.Config{
		Provider:  cfg.Judge.Provider,
		Model:     cfg.Judge.Model,
		Region:    cfg.Judge.Region,
		APIKey:    cfg.Judge.APIKey,
		MaxTokens: cfg.Judge.MaxTokens,
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to initialize judge: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	sessions := session.NewManager(cfg.Session.ProfileRoot, cfg.Session.LeaseDuration, log)
	writer := workflow.NewWriter(blobs, log)
	driver := agent.NewDriver(automation, screenshot.NewStore(blobs, log), agent.DriverConfig{
		MaxSteps:               cfg.Agent.MaxSteps,
		MaxConsecutiveFailures: cfg.Agent.MaxConsecutiveFailures,
		EventBuffer:            cfg.Agent.EventBuffer,
	}, log, m)

	pipeline := agent.NewPipeline(agent.Config{
		TimeLimit:      cfg.Agent.TimeLimit,
		PersistTimeout: cfg.Workflow.PersistTimeout,
		Preflight:      cfg.Agent.Preflight,
	}, driver, sessions, judge.New(evaluator, cfg.Judge.Timeout, log, m), writer, jobs, m, log)

	log.Info(ctx, "capture components initialized", map[string]interface{}{
		"storage":        cfg.Storage.Type,
		"backend":        cfg.Agent.Backend,
		"judge_provider": cfg.Judge.Provider,
		"max_steps":      cfg.Agent.MaxSteps,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		blobs:    blobs,
		writer:   writer,
		sessions: sessions,
		metrics:  m,
		registry: registry,
		pipeline: pipeline,
		jobs:     jobs,
	}, nil
}

func (a *app) Close() {
	a.log.Close()
}
