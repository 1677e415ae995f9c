// Package config loads the cluster's single YAML config file, discovered by
// walking up from the working directory to the repository root the way
// scheduler/helpers/cli.py:get_repo_root located it in the original
// implementation -- except the Go port looks for a go.mod marker instead of
// shelling out to `git rev-parse --show-toplevel`.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type StoreConfig struct {
	Driver string `yaml:"driver"` // "postgres" | "sqlite"
	DSN    string `yaml:"dsn"`
}

type OrchestrationConfig struct {
	SnoozeTimeSeconds        int    `yaml:"snooze_time_seconds"`
	JobLogsRoot              string `yaml:"job_logs_root"`
	PollBatchSize            int    `yaml:"poll_batch_size"`
	StaleRunningAfterMinutes int    `yaml:"stale_running_after_minutes"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type NotifyConfig struct {
	RedisAddr string `yaml:"redis_addr"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Store         StoreConfig         `yaml:"store"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Logging       LoggingConfig       `yaml:"logging"`
	Notify        NotifyConfig        `yaml:"notify"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	HTTP          HTTPConfig          `yaml:"http"`
}

// SnoozeDuration returns the configured snooze interval. A value of 0 means
// "exit immediately when the queue is empty" -- batch mode -- and is left as
// zero rather than defaulted, per spec.
func (c Config) SnoozeDuration() time.Duration {
	return time.Duration(c.Orchestration.SnoozeTimeSeconds) * time.Second
}

func (c Config) PollLimit() int {
	if c.Orchestration.PollBatchSize <= 0 {
		return 10
	}
	return c.Orchestration.PollBatchSize
}

// StaleAfterDuration returns the reaper's staleness threshold. A value of
// 0 (the default) leaves the reaper disabled; see reaper.New.
func (c Config) StaleAfterDuration() time.Duration {
	return time.Duration(c.Orchestration.StaleRunningAfterMinutes) * time.Minute
}

const repoRootMarker = "go.mod"

// FindRepoRoot walks up from dir (or the working directory, if dir is empty)
// looking for the marker file that identifies the repository root.
func FindRepoRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("find repo root: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("find repo root: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, repoRootMarker)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("find repo root: no %s found above %s", repoRootMarker, dir)
		}
		dir = parent
	}
}

// FilePath returns the path to config.yaml at the repository root.
func FilePath() (string, error) {
	root, err := FindRepoRoot("")
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("config file not found at %s: %w", p, err)
	}
	return p, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Orchestration.JobLogsRoot == "" {
		cfg.Orchestration.JobLogsRoot = "./var/job-logs"
	}
	return &cfg, nil
}

// LoadFromRepoRoot is the common entrypoint for the CLI binaries: find
// config.yaml by walking up to the repo root, then load it.
func LoadFromRepoRoot() (*Config, error) {
	path, err := FilePath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}
