package scheduler

import (
	"time"

	"github.com/smallbiznis/bootcamp/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval   time.Duration
	BatchSize     int
	StaleOrderAge time.Duration
	LockTTL       time.Duration
	EnabledJobs   []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Hour,
		BatchSize:     100,
		StaleOrderAge: 24 * time.Hour,
		LockTTL:       10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:   cfg.SchedulerInterval,
		StaleOrderAge: cfg.StaleOrderAge,
		EnabledJobs:   cfg.SchedulerJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.StaleOrderAge <= 0 {
		c.StaleOrderAge = defaults.StaleOrderAge
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
