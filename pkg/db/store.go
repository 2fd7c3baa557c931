package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a lookup by natural key finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrEmptyKey is returned when a natural key normalizes to the empty string.
	ErrEmptyKey = errors.New("natural key must be non-empty")
	// ErrSongExists is returned by InsertSong when the name is already taken.
	ErrSongExists = errors.New("song already exists")
)

// resolveChunk keeps IN lists well below SQLite's bound-parameter limit.
const resolveChunk = 400

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// NormalizeKey lowercases s, trims it and collapses inner whitespace runs to
// a single space. It is the natural key used for every deduplicated entity.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ResolveWords returns the id of every word in words, inserting the ones that
// are missing. Keys are normalized before lookup and the returned map is keyed
// by the normalized text.
func ResolveWords(ctx context.Context, db DBExecutor, words []string) (map[string]int64, error) {
	seen := make(map[string]bool, len(words))
	var keys []string
	for _, w := range words {
		k := NormalizeKey(w)
		if k == "" {
			return nil, ErrEmptyKey
		}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	ids := make(map[string]int64, len(keys))
	for start := 0; start < len(keys); start += resolveChunk {
		chunk := keys[start:min(start+resolveChunk, len(keys))]

		insert := builder.Insert("words").Columns("word", "length")
		for _, k := range chunk {
			insert = insert.Values(k, utf8.RuneCountInString(k))
		}
		query, args, err := insert.Suffix("ON CONFLICT(word) DO NOTHING").ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("insert words: %w", err)
		}

		query, args, err = builder.Select("id", "word").From("words").Where(sq.Eq{"word": chunk}).ToSql()
		if err != nil {
			return nil, err
		}
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("select words: %w", err)
		}
		for rows.Next() {
			var id int64
			var w string
			if err := rows.Scan(&id, &w); err != nil {
				rows.Close()
				return nil, err
			}
			ids[w] = id
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// FindSong looks a song up by its case-insensitive name.
func FindSong(ctx context.Context, db DBExecutor, name string) (Song, bool, error) {
	var s Song
	err := db.QueryRowContext(ctx,
		`SELECT id, name, path, doc_date, length, text FROM songs WHERE name = ?`,
		NormalizeKey(name),
	).Scan(&s.ID, &s.Name, &s.Path, &s.DocDate, &s.Length, &s.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return Song{}, false, nil
	}
	if err != nil {
		return Song{}, false, err
	}
	return s, true, nil
}

// InsertSong creates a song row. A name collision yields ErrSongExists.
func InsertSong(ctx context.Context, db DBExecutor, s Song) (int64, error) {
	name := NormalizeKey(s.Name)
	if name == "" {
		return 0, ErrEmptyKey
	}
	if s.DocDate.IsZero() {
		s.DocDate = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO songs (name, path, doc_date, length, text) VALUES (?, ?, ?, ?, ?)`,
		name, s.Path, s.DocDate, s.Length, s.Text,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, fmt.Errorf("%w: %q", ErrSongExists, name)
		}
		return 0, fmt.Errorf("insert song: %w", err)
	}
	return res.LastInsertId()
}

// InsertStanza stores a stanza of a song.
func InsertStanza(ctx context.Context, db DBExecutor, st Stanza) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO stanzas (song_id, ordinal, length, text) VALUES (?, ?, ?, ?)`,
		st.SongID, st.Ordinal, st.Length, st.Text,
	)
	if err != nil {
		return 0, fmt.Errorf("insert stanza %d: %w", st.Ordinal, err)
	}
	return res.LastInsertId()
}

// InsertLine stores a line of a stanza.
func InsertLine(ctx context.Context, db DBExecutor, l Line) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO lines (song_id, stanza_id, ordinal, length, text) VALUES (?, ?, ?, ?, ?)`,
		l.SongID, l.StanzaID, l.Ordinal, l.Length, l.Text,
	)
	if err != nil {
		return 0, fmt.Errorf("insert line %d: %w", l.Ordinal, err)
	}
	return res.LastInsertId()
}

// InsertSongWord records how often a word occurs in a song.
func InsertSongWord(ctx context.Context, db DBExecutor, songID, wordID int64, occurrences int) (int64, error) {
	if occurrences < 1 {
		return 0, fmt.Errorf("occurrences must be positive, got %d", occurrences)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO song_words (song_id, word_id, occurrences) VALUES (?, ?, ?)`,
		songID, wordID, occurrences,
	)
	if err != nil {
		return 0, fmt.Errorf("insert song word %d: %w", wordID, err)
	}
	return res.LastInsertId()
}

// InsertWordLocation records one occurrence of a song word at a character
// position of the song text.
func InsertWordLocation(ctx context.Context, db DBExecutor, songWordID, lineID int64, position int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO word_locations (song_word_id, line_id, position) VALUES (?, ?, ?)`,
		songWordID, lineID, position,
	)
	if err != nil {
		return fmt.Errorf("insert word location %d: %w", position, err)
	}
	return nil
}

// CreateOrGetContributor returns the contributor with the given full name,
// creating it first when needed.
func CreateOrGetContributor(ctx context.Context, db DBExecutor, firstName, lastName string) (int64, error) {
	first, last := NormalizeKey(firstName), NormalizeKey(lastName)
	full := NormalizeKey(first + " " + last)
	if first == "" || last == "" {
		return 0, ErrEmptyKey
	}

	var id int64
	err := db.QueryRowContext(ctx, `INSERT INTO contributors (first_name, last_name, full_name)
		VALUES (?, ?, ?)
		ON CONFLICT(full_name) DO UPDATE SET full_name = excluded.full_name
		RETURNING id`, first, last, full).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert contributor: %w", err)
	}
	return id, nil
}

// LinkContributor credits a contributor on a song under role. It reports
// false when the association already existed.
func LinkContributor(ctx context.Context, db DBExecutor, songID, contributorID int64, role Role) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("unknown contributor role %q", role)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO contributor_roles (contributor_id, role) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		contributorID, role,
	); err != nil {
		return false, fmt.Errorf("link contributor role: %w", err)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO song_contributors (song_id, contributor_id, role) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		songID, contributorID, role,
	)
	if err != nil {
		return false, fmt.Errorf("link song contributor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateOrGetGroup returns the id of the named word group, creating it first when needed.
func CreateOrGetGroup(ctx context.Context, db DBExecutor, name string) (int64, error) {
	key := NormalizeKey(name)
	if key == "" {
		return 0, ErrEmptyKey
	}
	var id int64
	err := db.QueryRowContext(ctx, `INSERT INTO word_groups (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id`, key).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert group: %w", err)
	}
	return id, nil
}

// AddGroupWords adds words to a group. Words already in the group are skipped.
func AddGroupWords(ctx context.Context, db DBExecutor, groupID int64, wordIDs []int64) error {
	if len(wordIDs) == 0 {
		return nil
	}
	insert := builder.Insert("word_group_members").Columns("group_id", "word_id")
	for _, id := range wordIDs {
		insert = insert.Values(groupID, id)
	}
	query, args, err := insert.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add group words: %w", err)
	}
	return nil
}

// CreateOrGetPhrase returns the id of phrase, creating it first when needed.
func CreateOrGetPhrase(ctx context.Context, db DBExecutor, phrase string) (int64, error) {
	key := NormalizeKey(phrase)
	if key == "" {
		return 0, ErrEmptyKey
	}
	var id int64
	err := db.QueryRowContext(ctx, `INSERT INTO phrases (phrase) VALUES (?)
		ON CONFLICT(phrase) DO UPDATE SET phrase = excluded.phrase
		RETURNING id`, key).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert phrase: %w", err)
	}
	return id, nil
}

// SetPhraseWords stores the ordered words of a phrase; position i holds wordIDs[i].
func SetPhraseWords(ctx context.Context, db DBExecutor, phraseID int64, wordIDs []int64) error {
	if len(wordIDs) == 0 {
		return nil
	}
	insert := builder.Insert("phrase_words").Columns("phrase_id", "word_id", "position")
	for i, id := range wordIDs {
		insert = insert.Values(phraseID, id, i)
	}
	query, args, err := insert.Suffix("ON CONFLICT(phrase_id, position) DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set phrase words: %w", err)
	}
	return nil
}
