// Command songindex indexes lyric files into a SQLite database and queries
// the index: word tables, positional lookup, statistics, song search and
// word or phrase occurrences with surrounding lines.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/japaniel/songindex/pkg/analyzer"
	"github.com/japaniel/songindex/pkg/config"
	"github.com/japaniel/songindex/pkg/db"
	"github.com/japaniel/songindex/pkg/loader"
)

// Globals are flags shared by every command.
type Globals struct {
	Config string `name:"config" short:"c" help:"Path to YAML config file (default: $CONFIG_PATH or ./songindex.yaml)" type:"path"`
	DB     string `name:"db" help:"SQLite database path, overrides the config" type:"path"`
}

// CLI defines the command-line interface for songindex.
var CLI struct {
	Globals

	Ingest  IngestCmd  `cmd:"" help:"Load and index lyric files"`
	Credit  CreditCmd  `cmd:"" help:"Credit contributors on a song"`
	Words   WordsCmd   `cmd:"" help:"List words with occurrence counts"`
	Index   IndexCmd   `cmd:"" help:"List the located words of a song"`
	Stats   StatsCmd   `cmd:"" help:"Print average word, line, stanza and song lengths"`
	Songs   SongsCmd   `cmd:"" help:"Search songs by name, contributor and words"`
	Find    FindCmd    `cmd:"" help:"Find a word or phrase with its surrounding lines"`
	Resolve ResolveCmd `cmd:"" help:"Print the word at a stanza/line/word address"`
	Group   GroupCmd   `cmd:"" help:"Word group operations"`
	Phrase  PhraseCmd  `cmd:"" help:"Phrase operations"`
}

// runtime is what every command runs against.
type runtime struct {
	ctx context.Context
	cfg *config.Config
	log *slog.Logger
	an  *analyzer.Analyzer
	out io.Writer
}

// useSong makes name the active song when it is set.
func (rt *runtime) useSong(name string) error {
	if name == "" {
		return nil
	}
	return rt.an.Use(rt.ctx, name)
}

func setup(ctx context.Context, g *Globals, out, logOut io.Writer) (*runtime, func(), error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, err
	}
	if g.DB != "" {
		cfg.Database.Path = g.DB
	}
	logger := newLogger(cfg.Log, logOut)

	var conn *sql.DB
	conn, err = db.Open(cfg.Database.Path, cfg.Database.MaxOpenConns, cfg.Database.BusyTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	logger.Debug("database ready", "path", cfg.Database.Path)

	an := analyzer.New(conn, analyzer.Options{
		Loader:               loader.FileLoader{MaxSize: cfg.Loader.MaxSize},
		Logger:               logger,
		ContextLineBreaks:    cfg.Search.ContextLineBreaks,
		Workers:              cfg.Ingest.Workers,
		ContributorBatchSize: cfg.Ingest.ContributorBatchSize,

		ContributorFlushInterval: cfg.Ingest.ContributorFlushInterval,
	})
	rt := &runtime{ctx: ctx, cfg: cfg, log: logger, an: an, out: out}
	return rt, func() { conn.Close() }, nil
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("songindex"),
		kong.Description("Index lyrics by song, stanza, line and word."),
		kong.UsageOnError(),
	)

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, closeDB, err := setup(ctx, &CLI.Globals, os.Stdout, os.Stderr)
	kctx.FatalIfErrorf(err)

	err = kctx.Run(rt)
	closeDB()
	kctx.FatalIfErrorf(err)
}
