// Package config loads jobq's runtime configuration from YAML and exposes
// it through a hot-swappable, mutex-guarded Store, matching spec.md's
// Get/Set/List/Reset contract: mutations take effect on the next use, and
// in-flight jobs keep whatever timeout/max_retries they already captured
// at enqueue time.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Workers groups the worker-pool-related options.
type Workers struct {
	Max             int           `yaml:"max"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Retry groups the retry/backoff-related options.
type Retry struct {
	MaxRetries uint32        `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// Jobs groups job-lifecycle defaults and retention options.
type Jobs struct {
	DefaultTimeout        time.Duration `yaml:"default_timeout"`
	CleanupCompletedAfter time.Duration `yaml:"cleanup_completed_after"`
	CleanupFailedAfter    time.Duration `yaml:"cleanup_failed_after"`
}

// Config is the full set of runtime-tunable options enumerated in
// spec.md §6.
type Config struct {
	Workers Workers `yaml:"workers"`
	Retry   Retry   `yaml:"retry"`
	Jobs    Jobs    `yaml:"jobs"`
}

// Default returns the configuration jobq ships with out of the box.
func Default() Config {
	return Config{
		Workers: Workers{
			Max:             4,
			PollInterval:    time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Retry: Retry{
			MaxRetries: 5,
			BaseDelay:  time.Second,
			MaxDelay:   5 * time.Minute,
		},
		Jobs: Jobs{
			DefaultTimeout:        30 * time.Second,
			CleanupCompletedAfter: 24 * time.Hour,
			CleanupFailedAfter:    7 * 24 * time.Hour,
		},
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so any fields the file omits keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Store holds a live Config, safe for concurrent Get/Set/List/Reset from
// the CLI, the Queue Service and its sweepers.
//
// Mutations take effect on next read; a component that has already
// captured a value (for example, a Worker that read Jobs.DefaultTimeout
// when building a Job) keeps that captured value for jobs already in
// flight.
type Store struct {
	mu      sync.RWMutex
	initial Config
	current Config
}

// NewStore creates a Store seeded with cfg, which also becomes the value
// Reset restores.
func NewStore(cfg Config) *Store {
	return &Store{initial: cfg, current: cfg}
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// List returns the current configuration as a flat key/value map, using
// the same dotted-path names as spec.md §6 (e.g. "workers.max").
func (s *Store) List() map[string]string {
	c := s.Get()
	return map[string]string{
		"workers.max":                  fmt.Sprint(c.Workers.Max),
		"workers.poll_interval":        c.Workers.PollInterval.String(),
		"workers.shutdown_timeout":     c.Workers.ShutdownTimeout.String(),
		"retry.max_retries":            fmt.Sprint(c.Retry.MaxRetries),
		"retry.base_delay":             c.Retry.BaseDelay.String(),
		"retry.max_delay":              c.Retry.MaxDelay.String(),
		"jobs.default_timeout":         c.Jobs.DefaultTimeout.String(),
		"jobs.cleanup_completed_after":  c.Jobs.CleanupCompletedAfter.String(),
		"jobs.cleanup_failed_after":     c.Jobs.CleanupFailedAfter.String(),
	}
}

// Set updates a single dotted-path option by key, parsing value according
// to that option's type. Set returns an error for an unknown key or a
// value that cannot be parsed.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case "workers.max":
		n, err := parseInt(value)
		if err != nil {
			return err
		}
		s.current.Workers.Max = n
	case "workers.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		s.current.Workers.PollInterval = d
	case "workers.shutdown_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		s.current.Workers.ShutdownTimeout = d
	case "retry.max_retries":
		n, err := parseInt(value)
		if err != nil {
			return err
		}
		s.current.Retry.MaxRetries = uint32(n)
	case "retry.base_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		s.current.Retry.BaseDelay = d
	case "retry.max_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		s.current.Retry.MaxDelay = d
	case "jobs.default_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		s.current.Jobs.DefaultTimeout = d
	case "jobs.cleanup_completed_after":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		s.current.Jobs.CleanupCompletedAfter = d
	case "jobs.cleanup_failed_after":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		s.current.Jobs.CleanupFailedAfter = d
	default:
		return fmt.Errorf("config: unknown option %q", key)
	}
	return nil
}

// Reset restores the configuration to the value the Store was created
// with (or last Loaded via ReplaceAll).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.initial
}

// ReplaceAll atomically swaps the entire configuration and updates the
// value Reset restores.
func (s *Store) ReplaceAll(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initial = cfg
	s.current = cfg
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, fmt.Errorf("config: invalid integer %q", s)
	}
	return n, nil
}
