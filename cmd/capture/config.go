package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Server   ServerConfig
	Agent    AgentConfig
	Session  SessionConfig
	Judge    JudgeConfig
	Question QuestionConfig
	Workflow WorkflowConfig
	Tasks    TasksConfig
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// StorageConfig holds blob storage configuration.
type StorageConfig struct {
	Type            string // "local" or "s3"
	BaseDir         string
	S3Bucket        string
	S3Region        string
	S3Prefix        string
	S3PresignExpiry time.Duration
}

// DatabaseConfig holds job database configuration.
type DatabaseConfig struct {
	Driver       string // "sqlite" or "mysql"
	Path         string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PollInterval time.Duration
}

// AgentConfig holds automation backend and run limits.
type AgentConfig struct {
	Backend                string // "process" or "playwright"
	ScriptPath             string
	Python                 string
	Plan                   string
	MaxSteps               int
	MaxConsecutiveFailures int
	EventBuffer            int
	MaxConcurrentWorkers   int
	Headless               bool
	TimeLimit              time.Duration
	ActionTimeout          time.Duration
	Preflight              bool
}

// SessionConfig holds browser profile leasing configuration.
type SessionConfig struct {
	ProfileRoot   string
	LeaseDuration time.Duration
}

// JudgeConfig holds evaluator configuration.
type JudgeConfig struct {
	Provider  string // "bedrock", "anthropic", "openai" or "none"
	Model     string
	Region    string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

// QuestionConfig holds question parser configuration. Empty provider, model,
// region and api_key fall back to the judge settings.
type QuestionConfig struct {
	Provider  string
	Model     string
	Region    string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
	Cache     bool
}

// WorkflowConfig holds workflow document configuration.
type WorkflowConfig struct {
	PersistTimeout time.Duration
}

// TasksConfig holds task catalogue configuration.
type TasksConfig struct {
	Catalog string
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_dir", "./dataset")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_prefix", "")
	v.SetDefault("storage.s3_presign_expiry", "15m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./workflow_capture.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "workflow_capture")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.poll_interval", "30s")

	v.SetDefault("agent.backend", "process")
	v.SetDefault("agent.script_path", "./agent/agent_runner.py")
	v.SetDefault("agent.python", "python3")
	v.SetDefault("agent.plan", "")
	v.SetDefault("agent.max_steps", 30)
	v.SetDefault("agent.max_consecutive_failures", 3)
	v.SetDefault("agent.event_buffer", 8)
	v.SetDefault("agent.max_concurrent_workers", 1)
	v.SetDefault("agent.headless", false)
	v.SetDefault("agent.time_limit", "15m")
	v.SetDefault("agent.action_timeout", "30s")
	v.SetDefault("agent.preflight", true)

	v.SetDefault("session.profile_root", "./browser_profiles")
	v.SetDefault("session.lease_duration", "1h")

	v.SetDefault("judge.provider", "none")
	v.SetDefault("judge.model", "")
	v.SetDefault("judge.region", "us-east-1")
	v.SetDefault("judge.api_key", "")
	v.SetDefault("judge.max_tokens", 1024)
	v.SetDefault("judge.timeout", "60s")

	v.SetDefault("question.provider", "")
	v.SetDefault("question.model", "")
	v.SetDefault("question.region", "")
	v.SetDefault("question.api_key", "")
	v.SetDefault("question.max_tokens", 512)
	v.SetDefault("question.timeout", "30s")
	v.SetDefault("question.cache", false)

	v.SetDefault("workflow.persist_timeout", "30s")

	v.SetDefault("tasks.catalog", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config

	config.Log.Level = v.GetString("log.level")
	config.Log.File = v.GetString("log.file")
	config.Log.MaxSizeMB = v.GetInt("log.max_size_mb")
	config.Log.MaxBackups = v.GetInt("log.max_backups")

	config.Storage.Type = v.GetString("storage.type")
	config.Storage.BaseDir = v.GetString("storage.base_dir")
	config.Storage.S3Bucket = v.GetString("storage.s3_bucket")
	config.Storage.S3Region = v.GetString("storage.s3_region")
	config.Storage.S3Prefix = v.GetString("storage.s3_prefix")
	config.Storage.S3PresignExpiry = v.GetDuration("storage.s3_presign_expiry")

	config.Database.Driver = v.GetString("database.driver")
	config.Database.Path = v.GetString("database.path")
	config.Database.Host = v.GetString("database.host")
	config.Database.Port = v.GetInt("database.port")
	config.Database.User = v.GetString("database.user")
	config.Database.Password = v.GetString("database.password")
	config.Database.Database = v.GetString("database.database")
	config.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	config.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")

	config.Server.Host = v.GetString("server.host")
	config.Server.Port = v.GetInt("server.port")
	config.Server.ReadTimeout = v.GetDuration("server.read_timeout")
	config.Server.WriteTimeout = v.GetDuration("server.write_timeout")
	config.Server.PollInterval = v.GetDuration("server.poll_interval")

	config.Agent.Backend = v.GetString("agent.backend")
	config.Agent.ScriptPath = v.GetString("agent.script_path")
	config.Agent.Python = v.GetString("agent.python")
	config.Agent.Plan = v.GetString("agent.plan")
	config.Agent.MaxSteps = v.GetInt("agent.max_steps")
	config.Agent.MaxConsecutiveFailures = v.GetInt("agent.max_consecutive_failures")
	config.Agent.EventBuffer = v.GetInt("agent.event_buffer")
	config.Agent.MaxConcurrentWorkers = v.GetInt("agent.max_concurrent_workers")
	config.Agent.Headless = v.GetBool("agent.headless")
	config.Agent.TimeLimit = v.GetDuration("agent.time_limit")
	config.Agent.ActionTimeout = v.GetDuration("agent.action_timeout")
	config.Agent.Preflight = v.GetBool("agent.preflight")

	config.Session.ProfileRoot = v.GetString("session.profile_root")
	config.Session.LeaseDuration = v.GetDuration("session.lease_duration")

	config.Judge.Provider = v.GetString("judge.provider")
	config.Judge.Model = v.GetString("judge.model")
	config.Judge.Region = v.GetString("judge.region")
	config.Judge.APIKey = v.GetString("judge.api_key")
	config.Judge.MaxTokens = v.GetInt("judge.max_tokens")
	config.Judge.Timeout = v.GetDuration("judge.timeout")

	config.Question.Provider = firstNonEmpty(v.GetString("question.provider"), config.Judge.Provider)
	config.Question.Model = firstNonEmpty(v.GetString("question.model"), config.Judge.Model)
	config.Question.Region = firstNonEmpty(v.GetString("question.region"), config.Judge.Region)
	config.Question.APIKey = firstNonEmpty(v.GetString("question.api_key"), config.Judge.APIKey)
	config.Question.MaxTokens = v.GetInt("question.max_tokens")
	config.Question.Timeout = v.GetDuration("question.timeout")
	config.Question.Cache = v.GetBool("question.cache")

	config.Workflow.PersistTimeout = v.GetDuration("workflow.persist_timeout")

	config.Tasks.Catalog = v.GetString("tasks.catalog")

	return &config, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
