package config

import (
	"errors"
	"fmt"
)

// Validate checks the fields required by every enabled feature.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"postgres\", got %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return errors.New("store.dsn is required")
	}

	if c.Classifier.Enabled {
		switch c.Classifier.Provider {
		case "openai":
			if c.Classifier.Model == "" {
				return errors.New("classifier.model is required for the openai provider")
			}
		case "gemini":
		default:
			return fmt.Errorf("classifier.provider must be \"openai\" or \"gemini\", got %q", c.Classifier.Provider)
		}
		if c.Classifier.APIKey == "" {
			return errors.New("classifier.api_key is required when the classifier is enabled")
		}
	}

	if c.Organize.FolderTitle == "" {
		return errors.New("organize.folder_title is required")
	}
	if c.Organize.RootFolderID == "" {
		return errors.New("organize.root_folder_id is required")
	}

	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be a positive integer")
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor (%v) must be at least 1", c.Retry.BackoffFactor)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%s) must not be below retry.base_delay (%s)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Scan.ProbeCeiling < 0 || c.Scan.CategorizeCeiling < 0 {
		return errors.New("scan ceilings must not be negative")
	}
	if c.Diagnostics.Capacity <= 0 {
		return errors.New("diagnostics.capacity must be a positive integer")
	}

	return nil
}

// ValidateWorker checks the settings only the background worker needs.
func (c *Config) ValidateWorker() error {
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}
	return nil
}
