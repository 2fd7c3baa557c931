package config

import (
	"fmt"
	"strings"
)

// Validate checks the loaded values. Load calls it automatically.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be > 0 (got %d)", c.Database.MaxOpenConns)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must be >= 0 (got %s)", c.Database.BusyTimeout)
	}
	if c.Loader.MaxSize < 1 {
		return fmt.Errorf("loader.max_size must be > 0 (got %d)", c.Loader.MaxSize)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be > 0 (got %d)", c.Ingest.Workers)
	}
	if c.Ingest.ContributorBatchSize < 1 {
		return fmt.Errorf("ingest.contributor_batch_size must be > 0 (got %d)", c.Ingest.ContributorBatchSize)
	}
	if c.Ingest.ContributorFlushInterval < 0 {
		return fmt.Errorf("ingest.contributor_flush_interval must be >= 0 (got %s)", c.Ingest.ContributorFlushInterval)
	}
	if c.Search.ContextLineBreaks < 1 {
		return fmt.Errorf("search.context_line_breaks must be > 0 (got %d)", c.Search.ContextLineBreaks)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}
