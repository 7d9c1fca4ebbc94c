package scheduler

import "time"

// Config controls sweep intervals and batch sizes.
type Config struct {
	RunInterval  time.Duration
	BatchSize    int
	JobTimeout   time.Duration
	StatusSweep  bool
	ClaimedSweep bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  time.Minute,
		BatchSize:    50,
		JobTimeout:   30 * time.Second,
		StatusSweep:  true,
		ClaimedSweep: true,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c == (Config{}) {
		return defaults
	}
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
