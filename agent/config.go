package agent

import (
	"time"
)

// Default limits of a capture run.
const (
	DefaultMaxSteps               = 30
	DefaultMaxConsecutiveFailures = 3
	DefaultEventBuffer            = 8
)

// DriverConfig bounds a single capture run.
type DriverConfig struct {
	MaxSteps               int
	MaxConsecutiveFailures int
	// EventBuffer is the capacity of the channel between the backend and
	// the driver. Zero makes every step a synchronous hand-off.
	EventBuffer int
}

// withDefaults fills unset limits.
func (c DriverConfig) withDefaults() DriverConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.EventBuffer < 0 {
		c.EventBuffer = 0
	}
	return c
}

// Config holds the agent pipeline configuration.
type Config struct {
	// TimeLimit bounds a whole run including judgement. Zero means no limit.
	TimeLimit time.Duration

	// PersistTimeout bounds the workflow write, which runs detached from the
	// run's context so interrupted runs are still saved.
	PersistTimeout time.Duration

	// Preflight checks the start URL before a browser is launched.
	Preflight bool
}
