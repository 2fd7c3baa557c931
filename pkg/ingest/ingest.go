// Package ingest turns loaded lyric text into the song, stanza, line and word
// index. Each song is written in a single transaction and ingesting a song
// whose name is already stored is a no-op.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/japaniel/songindex/pkg/db"
	"github.com/japaniel/songindex/pkg/loader"
	"github.com/japaniel/songindex/pkg/lyrics"
)

var (
	// ErrNotLoaded is returned by Process when no text has been loaded.
	ErrNotLoaded = errors.New("no song loaded")
	// ErrNoActiveSong is returned by operations that need a processed or selected song.
	ErrNoActiveSong = errors.New("no active song")
	// ErrProcessFailed wraps every failure of the indexing transaction.
	ErrProcessFailed = errors.New("process song")
	// ErrUnresolvedWord means a token was not found among the words resolved
	// for the same text. It is a bug, never a data problem.
	ErrUnresolvedWord = errors.New("token missing from resolved words")
	// ErrOccurrenceMismatch means the stored locations of a word do not add
	// up to its occurrence count.
	ErrOccurrenceMismatch = errors.New("word locations do not match occurrence counts")
)

// State is the position of an Ingester in its load/process lifecycle.
type State int

const (
	StateNotLoaded State = iota
	StateLoaded
	StateProcessing
	StateAlreadyExists
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not loaded"
	case StateLoaded:
		return "loaded"
	case StateProcessing:
		return "processing"
	case StateAlreadyExists:
		return "already exists"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Loader reads the raw text of a lyric file.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

// Ingester handles the ingestion of songs into the database. It holds a
// single loaded song and a single active song and is not meant to run
// several ingestions at once.
type Ingester struct {
	DB     *sql.DB
	Loader Loader
	// Logger receives progress records. nil means slog.Default().
	Logger *slog.Logger
	// ContributorBatchSize is how many contributor associations share one
	// transaction. 1 commits every contributor on its own.
	ContributorBatchSize int
	// ContributorFlushInterval commits a partly filled contributor batch after
	// this long. 0 waits for a full batch or the end of the call.
	ContributorFlushInterval time.Duration

	mu     sync.Mutex
	state  State
	name   string
	path   string
	text   string
	active *db.Song
}

// NewIngester creates a new Ingester reading files with loader.FileLoader.
func NewIngester(conn *sql.DB) *Ingester {
	return &Ingester{
		DB:                   conn,
		Loader:               loader.FileLoader{},
		ContributorBatchSize: 1,
	}
}

func (ig *Ingester) logger() *slog.Logger {
	if ig.Logger != nil {
		return ig.Logger
	}
	return slog.Default()
}

// Load reads the lyric file at path and makes it the song to process. The
// song name is the lowercased file stem.
func (ig *Ingester) Load(ctx context.Context, path string) error {
	text, err := ig.Loader.Load(ctx, path)
	if err != nil {
		ig.reset()
		return fmt.Errorf("load %s: %w", path, err)
	}
	return ig.load(loader.SongName(path), path, text)
}

// LoadText makes text the song to process under name.
func (ig *Ingester) LoadText(name, text string) error {
	return ig.load(name, "", text)
}

// reset forgets the loaded song after a failed load so Process cannot run
// the previous text again. The active song is kept.
func (ig *Ingester) reset() {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	ig.state = StateNotLoaded
	ig.name, ig.path, ig.text = "", "", ""
}

func (ig *Ingester) load(name, path, text string) error {
	key := db.NormalizeKey(name)
	if key == "" {
		ig.reset()
		return fmt.Errorf("song name: %w", db.ErrEmptyKey)
	}
	ig.mu.Lock()
	defer ig.mu.Unlock()
	ig.name = key
	ig.path = path
	ig.text = lyrics.Normalize(text)
	ig.state = StateLoaded
	return nil
}

// State returns the current lifecycle state.
func (ig *Ingester) State() State {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return ig.state
}

// Name returns the normalized name of the loaded song.
func (ig *Ingester) Name() string {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return ig.name
}

// Text returns the normalized text of the loaded song.
func (ig *Ingester) Text() string {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return ig.text
}

// Active returns the song that contributor and per-song queries apply to.
func (ig *Ingester) Active() (db.Song, bool) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	if ig.active == nil {
		return db.Song{}, false
	}
	return *ig.active, true
}

// Use makes the stored song called name the active song.
func (ig *Ingester) Use(ctx context.Context, name string) error {
	song, found, err := db.FindSong(ctx, ig.DB, name)
	if err != nil {
		return fmt.Errorf("find song %q: %w", name, err)
	}
	if !found {
		return fmt.Errorf("song %q: %w", db.NormalizeKey(name), db.ErrNotFound)
	}
	ig.mu.Lock()
	ig.active = &song
	ig.mu.Unlock()
	return nil
}

// Process indexes the loaded song. A song that is already stored yields
// StateAlreadyExists and a nil error. Any failure while indexing rolls the
// whole song back and yields StateFailed together with an error wrapping
// ErrProcessFailed. On success the song becomes the active song.
func (ig *Ingester) Process(ctx context.Context) (State, error) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	if ig.state == StateNotLoaded {
		return StateNotLoaded, ErrNotLoaded
	}
	log := ig.logger().With("run_id", uuid.NewString(), "song", ig.name)

	if _, found, err := db.FindSong(ctx, ig.DB, ig.name); err != nil {
		return ig.fail(log, err)
	} else if found {
		ig.state = StateAlreadyExists
		log.Info("song already indexed")
		return ig.state, nil
	}

	ig.state = StateProcessing
	start := time.Now()
	song := db.Song{
		Name:    ig.name,
		Path:    ig.path,
		DocDate: start,
		Length:  utf8.RuneCountInString(ig.text),
		Text:    ig.text,
	}
	var sum summary
	err := db.RunInTx(ctx, ig.DB, func(tx *sql.Tx) error {
		var err error
		sum, err = indexSong(ctx, tx, &song)
		return err
	})
	if errors.Is(err, db.ErrSongExists) {
		ig.state = StateAlreadyExists
		log.Info("song indexed concurrently")
		return ig.state, nil
	}
	if err != nil {
		return ig.fail(log, err)
	}

	ig.state = StateSucceeded
	ig.active = &song
	log.Info("song indexed",
		"song_id", song.ID,
		"stanzas", sum.stanzas,
		"lines", sum.lines,
		"words", sum.words,
		"locations", sum.locations,
		"elapsed", time.Since(start))
	return ig.state, nil
}

func (ig *Ingester) fail(log *slog.Logger, err error) (State, error) {
	ig.state = StateFailed
	log.Error("indexing failed", "error", err)
	return ig.state, fmt.Errorf("%w: %q: %w", ErrProcessFailed, ig.name, err)
}

type summary struct {
	stanzas, lines, words, locations int
}

// indexSong writes song and its full index using tx. song.ID is set on return.
func indexSong(ctx context.Context, tx db.DBExecutor, song *db.Song) (summary, error) {
	var sum summary
	id, err := db.InsertSong(ctx, tx, *song)
	if err != nil {
		return sum, err
	}
	song.ID = id

	vocab, counts := lyrics.Vocabulary(song.Text)
	songWords := make(map[string]int64, len(vocab))
	if len(vocab) > 0 {
		ids, err := db.ResolveWords(ctx, tx, vocab)
		if err != nil {
			return sum, err
		}
		for _, w := range vocab {
			wordID, ok := ids[w]
			if !ok {
				return sum, fmt.Errorf("%w: %q", ErrUnresolvedWord, w)
			}
			swID, err := db.InsertSongWord(ctx, tx, song.ID, wordID, counts[w])
			if err != nil {
				return sum, err
			}
			songWords[w] = swID
		}
	}
	sum.words = len(vocab)

	for _, st := range lyrics.Tokenize(song.Text) {
		text := strings.TrimSpace(st.Text)
		stanzaID, err := db.InsertStanza(ctx, tx, db.Stanza{
			SongID:  song.ID,
			Ordinal: st.Ordinal,
			Length:  utf8.RuneCountInString(text),
			Text:    text,
		})
		if err != nil {
			return sum, err
		}
		sum.stanzas++

		for _, l := range st.Lines {
			lineID, err := db.InsertLine(ctx, tx, db.Line{
				SongID:   song.ID,
				StanzaID: stanzaID,
				Ordinal:  l.Ordinal,
				Length:   l.Length,
				Text:     l.Text,
			})
			if err != nil {
				return sum, err
			}
			sum.lines++

			for _, tok := range l.Tokens {
				swID, ok := songWords[tok.Text]
				if !ok {
					return sum, fmt.Errorf("%w: %q at %d", ErrUnresolvedWord, tok.Text, tok.Offset)
				}
				if err := db.InsertWordLocation(ctx, tx, swID, lineID, tok.Offset); err != nil {
					return sum, err
				}
				sum.locations++
			}
		}
	}

	n, err := db.OccurrenceMismatches(ctx, tx, song.ID)
	if err != nil {
		return sum, err
	}
	if n > 0 {
		return sum, fmt.Errorf("%w: %d words", ErrOccurrenceMismatch, n)
	}
	return sum, nil
}
