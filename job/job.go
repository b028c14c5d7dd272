package job

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidJobType    = errors.New("job type is required")
	ErrInvalidConfig     = errors.New("job config requires task_description and start_url")
	ErrInvalidStatus     = errors.New("invalid job status")
	ErrJobAlreadyStarted = errors.New("job already started")
	ErrJobNotRunning     = errors.New("job is not running")
)

type Status string

const (
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
	StatusSuccess Status = "success"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusStopped, StatusFailed, StatusSuccess:
		return true
	}
	return false
}

// IsFinal reports whether the job can no longer change state.
func (s Status) IsFinal() bool {
	return s == StatusStopped || s == StatusFailed || s == StatusSuccess
}

type JobType string

const (
	JobTypeWorkflowCapture JobType = "workflow_capture"
)

func (jt JobType) IsValid() bool {
	switch jt {
	case JobTypeWorkflowCapture:
		return true
	}
	return false
}

// Config keys of a workflow_capture job.
const (
	ConfigApp             = "app"
	ConfigTaskName        = "task_name"
	ConfigTaskDescription = "task_description"
	ConfigStartURL        = "start_url"
	ConfigInstructions    = "optimized_description"
	ConfigAuthRequired    = "auth_required"
)

// Result keys of a finished workflow_capture job.
const (
	ResultWorkflowPath = "workflow_path"
	ResultSuccess      = "success"
	ResultTotalSteps   = "total_steps"
	ResultStatus       = "capture_status"
	ResultAbortReason  = "abort_reason"
	ResultVerdict      = "verdict"
	ResultError        = "error"
)

// JSONMap is a custom type for JSON columns.
type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*j = make(JSONMap)
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan JSONMap: unsupported type %T", value)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// String returns the string value stored under key, or "".
func (j JSONMap) String(key string) string {
	s, _ := j[key].(string)
	return s
}

// Bool returns the boolean value stored under key, or false.
func (j JSONMap) Bool(key string) bool {
	b, _ := j[key].(bool)
	return b
}

// Job records one capture request and its outcome.
type Job struct {
	ID        uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Type      JobType    `json:"type" gorm:"column:type;type:varchar(50);not null"`
	App       string     `json:"app" gorm:"type:varchar(100);not null;default:'';index:idx_jobs_app"`
	Status    Status     `json:"status" gorm:"type:varchar(20);not null;default:'created';index:idx_jobs_status"`
	Config    JSONMap    `json:"config" gorm:"type:json"`
	Result    JSONMap    `json:"result" gorm:"type:json"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Duration  *int64     `json:"duration,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = StatusCreated
	}
	if j.App == "" {
		j.App = j.Config.String(ConfigApp)
	}
	return nil
}

func (j *Job) Validate() error {
	if !j.Type.IsValid() {
		return ErrInvalidJobType
	}
	if j.Config.String(ConfigTaskDescription) == "" || j.Config.String(ConfigStartURL) == "" {
		return ErrInvalidConfig
	}
	return nil
}

// Start marks the job as running.
func (j *Job) Start() error {
	if j.Status != StatusCreated {
		return ErrJobAlreadyStarted
	}
	now := time.Now()
	j.Status = StatusRunning
	j.StartTime = &now
	return nil
}

// Complete marks the job as finished with the given status and result.
func (j *Job) Complete(status Status, result JSONMap) error {
	if j.Status != StatusRunning {
		return ErrJobNotRunning
	}
	if !status.IsFinal() {
		return ErrInvalidStatus
	}
	now := time.Now()
	j.Status = status
	j.EndTime = &now
	j.Result = result
	if j.StartTime != nil {
		duration := now.Sub(*j.StartTime).Milliseconds()
		j.Duration = &duration
	}
	return nil
}
