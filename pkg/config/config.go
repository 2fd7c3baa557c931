// Package config loads songindex settings from YAML, the environment and defaults.
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Loader   LoaderConfig   `yaml:"loader"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Search   SearchConfig   `yaml:"search"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	Path         string        `yaml:"path"           env:"SONGINDEX_DB"             env-default:"songindex.db"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"SONGINDEX_DB_MAX_CONNS"   env-default:"4"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"   env:"SONGINDEX_DB_BUSY_TIMEOUT" env-default:"5s"`
}

// LoaderConfig limits what is read from lyric files.
type LoaderConfig struct {
	MaxSize int64 `yaml:"max_size" env:"SONGINDEX_LOADER_MAX_SIZE" env-default:"4194304"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	Workers              int `yaml:"workers"                env:"SONGINDEX_WORKERS"                env-default:"4"`
	ContributorBatchSize int `yaml:"contributor_batch_size" env:"SONGINDEX_CONTRIBUTOR_BATCH_SIZE" env-default:"1"`
	// ContributorFlushInterval commits a partly filled contributor batch after this long.
	ContributorFlushInterval time.Duration `yaml:"contributor_flush_interval" env:"SONGINDEX_CONTRIBUTOR_FLUSH_INTERVAL" env-default:"250ms"`
}

// SearchConfig holds occurrence and song search settings.
type SearchConfig struct {
	// ContextLineBreaks is how many line breaks a context window spans on
	// each side of a match.
	ContextLineBreaks int `yaml:"context_line_breaks" env:"SONGINDEX_CONTEXT_LINE_BREAKS" env-default:"2"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
