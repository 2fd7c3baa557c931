// Package analyzer is the song index engine: it loads and processes songs,
// credits contributors and answers word, address and occurrence queries.
package analyzer

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/japaniel/songindex/pkg/db"
	"github.com/japaniel/songindex/pkg/ingest"
	"github.com/japaniel/songindex/pkg/lyrics"
)

// ErrNoWords is returned when a group, phrase or word search contains no words.
var ErrNoWords = errors.New("no words given")

// Options configures an Analyzer. Zero values select defaults.
type Options struct {
	Loader               ingest.Loader
	Logger               *slog.Logger
	ContextLineBreaks    int
	Workers              int
	ContributorBatchSize int
	// ContributorFlushInterval is passed to the Ingester.
	ContributorFlushInterval time.Duration
}

// SongOccurrences holds the matches found in one song.
type SongOccurrences struct {
	SongID      int64
	Song        string
	Occurrences []lyrics.Occurrence
}

// Analyzer exposes the operations of the index. It keeps one loaded song and
// one active song; queries that name no song apply to the active one.
type Analyzer struct {
	DB       *sql.DB
	Ingester *ingest.Ingester
	Logger   *slog.Logger

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) ingest.WorkerPoolInterface

	lineBreaks int
	workers    int
	searchGate *semaphore.Weighted
}

// New creates an Analyzer over conn.
func New(conn *sql.DB, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ig := ingest.NewIngester(conn)
	ig.Logger = logger
	if opts.Loader != nil {
		ig.Loader = opts.Loader
	}
	if opts.ContributorBatchSize > 0 {
		ig.ContributorBatchSize = opts.ContributorBatchSize
	}
	if opts.ContributorFlushInterval > 0 {
		ig.ContributorFlushInterval = opts.ContributorFlushInterval
	}
	if opts.ContextLineBreaks < 1 {
		opts.ContextLineBreaks = lyrics.DefaultContextLineBreaks
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &Analyzer{
		DB:         conn,
		Ingester:   ig,
		Logger:     logger,
		lineBreaks: opts.ContextLineBreaks,
		workers:    opts.Workers,
		searchGate: semaphore.NewWeighted(1),
	}
}

// Load reads the lyric file at path as the song to process.
func (a *Analyzer) Load(ctx context.Context, path string) error {
	return a.Ingester.Load(ctx, path)
}

// LoadText sets text as the song to process under name.
func (a *Analyzer) LoadText(name, text string) error {
	return a.Ingester.LoadText(name, text)
}

// Process indexes the loaded song.
func (a *Analyzer) Process(ctx context.Context) (ingest.State, error) {
	return a.Ingester.Process(ctx)
}

// Use makes the stored song called name the active song.
func (a *Analyzer) Use(ctx context.Context, name string) error {
	return a.Ingester.Use(ctx, name)
}

// Active returns the active song.
func (a *Analyzer) Active() (db.Song, bool) {
	return a.Ingester.Active()
}

func (a *Analyzer) active() (db.Song, error) {
	song, ok := a.Ingester.Active()
	if !ok {
		return db.Song{}, ingest.ErrNoActiveSong
	}
	return song, nil
}

// AddContributors credits composers, writers and performers on the active song.
func (a *Analyzer) AddContributors(ctx context.Context, c ingest.Credits) error {
	return a.Ingester.AddCredits(ctx, c)
}

// AddContributorsAs credits names on the active song under role.
func (a *Analyzer) AddContributorsAs(ctx context.Context, role db.Role, names ...string) error {
	return a.Ingester.AddContributors(ctx, role, names...)
}

// GetWords returns the word table filtered by f.
func (a *Analyzer) GetWords(ctx context.Context, f db.WordFilter) ([]db.WordRow, error) {
	return db.ListWords(ctx, a.DB, f)
}

// GetSongWords returns the word table of the active song.
func (a *Analyzer) GetSongWords(ctx context.Context) ([]db.WordRow, error) {
	song, err := a.active()
	if err != nil {
		return nil, err
	}
	return db.ListWords(ctx, a.DB, db.WordFilter{SongID: song.ID})
}

// GetWordIndex returns every located occurrence in the active song, limited
// to word unless it is empty.
func (a *Analyzer) GetWordIndex(ctx context.Context, word string) ([]db.WordIndexRow, error) {
	song, err := a.active()
	if err != nil {
		return nil, err
	}
	return db.WordIndex(ctx, a.DB, song.ID, word)
}

// GetStats returns the corpus averages.
func (a *Analyzer) GetStats(ctx context.Context) (db.Stats, error) {
	return db.GetStats(ctx, a.DB)
}

// GetSongs searches songs. Searches that include words are tokenized like
// lyrics and run one at a time through the search gate.
func (a *Analyzer) GetSongs(ctx context.Context, q db.SongQuery) ([]db.SongRow, error) {
	if len(q.Words) > 0 {
		words, _ := lyrics.Vocabulary(lyrics.Normalize(strings.Join(q.Words, " ")))
		if len(words) == 0 {
			return nil, ErrNoWords
		}
		q.Words = words
		if err := a.searchGate.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer a.searchGate.Release(1)
	}
	return db.SearchSongs(ctx, a.DB, q)
}

// Resolve returns the word at (stanza, line, word) of the active song.
// found is false when the address is out of range.
func (a *Analyzer) Resolve(ctx context.Context, stanza, line, word int) (string, bool, error) {
	song, err := a.active()
	if err != nil {
		return "", false, err
	}
	return db.ResolveAddress(ctx, a.DB, song.ID, stanza, line, word)
}

// FindWords returns the occurrences of every word or phrase in words within
// the active song, ordered by offset.
func (a *Analyzer) FindWords(ctx context.Context, words ...string) ([]lyrics.Occurrence, error) {
	song, err := a.active()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(words))
	var out []lyrics.Occurrence
	for _, w := range words {
		key := db.NormalizeKey(w)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, lyrics.FindOccurrences(song.Text, key, a.lineBreaks)...)
	}
	slices.SortStableFunc(out, func(x, y lyrics.Occurrence) int {
		return cmp.Compare(x.Offset, y.Offset)
	})
	return out, nil
}

// FindGroup returns the occurrences of the words of the named group within
// the active song.
func (a *Analyzer) FindGroup(ctx context.Context, name string) ([]lyrics.Occurrence, error) {
	words, err := db.GroupWords(ctx, a.DB, name)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("group %q: %w", db.NormalizeKey(name), db.ErrNotFound)
	}
	return a.FindWords(ctx, words...)
}

func (a *Analyzer) newPool(workers, queue int) ingest.WorkerPoolInterface {
	if a.PoolFactory != nil {
		return a.PoolFactory(workers, queue)
	}
	return ingest.NewWorkerPool(workers, queue)
}

// FindOccurrences scans every stored song for target and returns the songs
// with at least one match, ordered by song name.
func (a *Analyzer) FindOccurrences(ctx context.Context, target string) ([]SongOccurrences, error) {
	if db.NormalizeKey(target) == "" {
		return nil, nil
	}
	songs, err := db.ListSongs(ctx, a.DB)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, nil
	}
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan SongOccurrences, len(songs))
	wp := a.newPool(a.workers, len(songs))
	wp.Start(ctx)
	for _, s := range songs {
		job := func(ctx context.Context) error {
			occ := lyrics.FindOccurrences(s.Text, target, a.lineBreaks)
			if len(occ) > 0 {
				results <- SongOccurrences{SongID: s.ID, Song: s.Name, Occurrences: occ}
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			cancel()
			wp.Close()
			return nil, fmt.Errorf("scan %q: %w", s.Name, err)
		}
	}
	wp.Close()
	close(results)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []SongOccurrences
	for r := range results {
		out = append(out, r)
	}
	slices.SortFunc(out, func(x, y SongOccurrences) int {
		return strings.Compare(x.Song, y.Song)
	})
	a.Logger.Debug("occurrence scan",
		"target", target,
		"songs", len(songs),
		"matched", len(out),
		"elapsed", time.Since(start))
	return out, nil
}

// AddGroup stores a named group of words, adding words to the group if it
// already exists. words are tokenized like lyrics.
func (a *Analyzer) AddGroup(ctx context.Context, name string, words ...string) (int64, error) {
	vocab, _ := lyrics.Vocabulary(lyrics.Normalize(strings.Join(words, " ")))
	if len(vocab) == 0 {
		return 0, ErrNoWords
	}
	var groupID int64
	err := db.RunInTx(ctx, a.DB, func(tx *sql.Tx) error {
		var err error
		groupID, err = db.CreateOrGetGroup(ctx, tx, name)
		if err != nil {
			return err
		}
		ids, err := db.ResolveWords(ctx, tx, vocab)
		if err != nil {
			return err
		}
		wordIDs := make([]int64, 0, len(vocab))
		for _, w := range vocab {
			wordIDs = append(wordIDs, ids[w])
		}
		return db.AddGroupWords(ctx, tx, groupID, wordIDs)
	})
	if err != nil {
		return 0, fmt.Errorf("add group %q: %w", name, err)
	}
	return groupID, nil
}

// AddPhrase stores a phrase as its ordered words. Punctuation and case do
// not matter: "Let it be!" and "let it  be" are the same phrase.
func (a *Analyzer) AddPhrase(ctx context.Context, text string) (int64, error) {
	tokens := lyrics.Words(lyrics.Normalize(text), 0)
	if len(tokens) == 0 {
		return 0, ErrNoWords
	}
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}

	var phraseID int64
	err := db.RunInTx(ctx, a.DB, func(tx *sql.Tx) error {
		var err error
		phraseID, err = db.CreateOrGetPhrase(ctx, tx, strings.Join(words, " "))
		if err != nil {
			return err
		}
		ids, err := db.ResolveWords(ctx, tx, words)
		if err != nil {
			return err
		}
		wordIDs := make([]int64, len(words))
		for i, w := range words {
			wordIDs[i] = ids[w]
		}
		return db.SetPhraseWords(ctx, tx, phraseID, wordIDs)
	})
	if err != nil {
		return 0, fmt.Errorf("add phrase %q: %w", text, err)
	}
	return phraseID, nil
}

// ListGroups returns the stored word groups.
func (a *Analyzer) ListGroups(ctx context.Context) ([]db.GroupRow, error) {
	return db.ListGroups(ctx, a.DB)
}

// ListPhrases returns the stored phrases.
func (a *Analyzer) ListPhrases(ctx context.Context) ([]db.PhraseRow, error) {
	return db.ListPhrases(ctx, a.DB)
}
