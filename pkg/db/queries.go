package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// likePrefix escapes LIKE wildcards in s and appends '%'.
func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s) + "%"
}

func prefixFilter(column, prefix string) sq.Sqlizer {
	return sq.Expr(column+` LIKE ? ESCAPE '\'`, likePrefix(strings.ToLower(strings.TrimSpace(prefix))))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// GetStats returns the mean word, line, stanza and song lengths. Each average
// is 0 when its table is empty.
func GetStats(ctx context.Context, db DBExecutor) (Stats, error) {
	var s Stats
	err := db.QueryRowContext(ctx, `SELECT
		COALESCE((SELECT AVG(length) FROM words), 0.0),
		COALESCE((SELECT AVG(length) FROM lines), 0.0),
		COALESCE((SELECT AVG(length) FROM stanzas), 0.0),
		COALESCE((SELECT AVG(length) FROM songs), 0.0)`,
	).Scan(&s.AverageWordLength, &s.AverageLineLength, &s.AverageStanzaLength, &s.AverageSongLength)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	s.AverageWordLength = round3(s.AverageWordLength)
	s.AverageLineLength = round3(s.AverageLineLength)
	s.AverageStanzaLength = round3(s.AverageStanzaLength)
	s.AverageSongLength = round3(s.AverageSongLength)
	return s, nil
}

// ListWords returns the word table: every word that occurs in a matching song
// with its summed occurrence count, ordered by word.
func ListWords(ctx context.Context, db DBExecutor, f WordFilter) ([]WordRow, error) {
	q := builder.Select("w.id", "w.word", "w.length", "SUM(sw.occurrences)").
		From("words w").
		Join("song_words sw ON sw.word_id = w.id").
		Join("songs s ON s.id = sw.song_id").
		GroupBy("w.id", "w.word", "w.length").
		OrderBy("w.word")
	if f.SongID > 0 {
		q = q.Where(sq.Eq{"sw.song_id": f.SongID})
	}
	if strings.TrimSpace(f.SongPrefix) != "" {
		q = q.Where(prefixFilter("s.name", f.SongPrefix))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	defer rows.Close()

	var out []WordRow
	for rows.Next() {
		var w WordRow
		if err := rows.Scan(&w.ID, &w.Word, &w.Length, &w.Occurrences); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// WordIndex returns every located occurrence in a song, optionally limited to
// one word, ordered by position.
func WordIndex(ctx context.Context, db DBExecutor, songID int64, word string) ([]WordIndexRow, error) {
	q := builder.Select("id", "word", "word_length", "position", "occurrences",
		"line_ordinal", "line_length", "stanza_ordinal", "stanza_length").
		From("word_index_view").
		Where(sq.Eq{"song_id": songID}).
		OrderBy("position")
	if key := NormalizeKey(word); key != "" {
		q = q.Where(sq.Eq{"word": key})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("word index: %w", err)
	}
	defer rows.Close()

	var out []WordIndexRow
	for rows.Next() {
		var r WordIndexRow
		if err := rows.Scan(&r.ID, &r.Word, &r.WordLength, &r.Position, &r.Occurrences,
			&r.LineOrdinal, &r.LineLength, &r.StanzaOrdinal, &r.StanzaLength); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchSongs returns one row per matching song/contributor/role combination,
// ordered by song name and then contributor name.
func SearchSongs(ctx context.Context, db DBExecutor, f SongQuery) ([]SongRow, error) {
	q := builder.Select("s.id", "s.name", "s.path", "s.doc_date", "s.length",
		"COALESCE(c.first_name, '')", "COALESCE(c.last_name, '')", "COALESCE(sc.role, '')").
		From("songs s").
		LeftJoin("song_contributors sc ON sc.song_id = s.id").
		LeftJoin("contributors c ON c.id = sc.contributor_id").
		GroupBy("s.id", "c.id", "sc.role").
		OrderBy("s.name", "c.last_name", "c.first_name", "sc.role")

	if strings.TrimSpace(f.NamePrefix) != "" {
		q = q.Where(prefixFilter("s.name", f.NamePrefix))
	}
	if strings.TrimSpace(f.FirstNamePrefix) != "" {
		q = q.Where(prefixFilter("c.first_name", f.FirstNamePrefix))
	}
	if strings.TrimSpace(f.LastNamePrefix) != "" {
		q = q.Where(prefixFilter("c.last_name", f.LastNamePrefix))
	}
	if f.Role != "" {
		q = q.Where(sq.Eq{"sc.role": f.Role})
	}
	if words := distinctKeys(f.Words); len(words) > 0 {
		sub, subArgs, err := builder.Select("sw.song_id").
			From("song_words sw").
			Join("words w ON w.id = sw.word_id").
			Where(sq.Eq{"w.word": words}).
			GroupBy("sw.song_id").
			Having("COUNT(DISTINCT w.word) = ?", len(words)).
			ToSql()
		if err != nil {
			return nil, err
		}
		q = q.Where("s.id IN ("+sub+")", subArgs...)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search songs: %w", err)
	}
	defer rows.Close()

	var out []SongRow
	for rows.Next() {
		var r SongRow
		var role string
		if err := rows.Scan(&r.SongID, &r.Name, &r.Path, &r.DocDate, &r.Length,
			&r.FirstName, &r.LastName, &role); err != nil {
			return nil, err
		}
		r.Role = Role(role)
		out = append(out, r)
	}
	return out, rows.Err()
}

func distinctKeys(words []string) []string {
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		k := NormalizeKey(w)
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// ListSongs returns every song with its text, ordered by name.
func ListSongs(ctx context.Context, db DBExecutor) ([]Song, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, path, doc_date, length, text FROM songs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	var out []Song
	for rows.Next() {
		var s Song
		if err := rows.Scan(&s.ID, &s.Name, &s.Path, &s.DocDate, &s.Length, &s.Text); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListGroups returns the word groups with their members, ordered by name.
func ListGroups(ctx context.Context, db DBExecutor) ([]GroupRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT g.id, g.name, COALESCE(group_concat(w.word, ', '), '')
		FROM word_groups g
		LEFT JOIN word_group_members m ON m.group_id = g.id
		LEFT JOIN words w ON w.id = m.word_id
		GROUP BY g.id, g.name
		ORDER BY g.name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []GroupRow
	for rows.Next() {
		var g GroupRow
		if err := rows.Scan(&g.ID, &g.Name, &g.Words); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GroupWords returns the words of the named group ordered alphabetically.
func GroupWords(ctx context.Context, db DBExecutor, name string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT w.word
		FROM word_groups g
		JOIN word_group_members m ON m.group_id = g.id
		JOIN words w ON w.id = m.word_id
		WHERE g.name = ?
		ORDER BY w.word`, NormalizeKey(name))
	if err != nil {
		return nil, fmt.Errorf("group words: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListPhrases returns the stored phrases ordered by text.
func ListPhrases(ctx context.Context, db DBExecutor) ([]PhraseRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT p.id, p.phrase, COUNT(pw.id)
		FROM phrases p
		LEFT JOIN phrase_words pw ON pw.phrase_id = p.id
		GROUP BY p.id, p.phrase
		ORDER BY p.phrase`)
	if err != nil {
		return nil, fmt.Errorf("list phrases: %w", err)
	}
	defer rows.Close()

	var out []PhraseRow
	for rows.Next() {
		var p PhraseRow
		if err := rows.Scan(&p.ID, &p.Phrase, &p.Words); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ResolveAddress returns the word at (stanza, line, word) of a song. stanza
// is matched against the stored stanza ordinal; line and word are positions
// within the stanza's lines and the line's located words. found is false when
// any level is out of range.
func ResolveAddress(ctx context.Context, db DBExecutor, songID int64, stanza, line, word int) (string, bool, error) {
	if stanza < 0 || line < 0 || word < 0 {
		return "", false, nil
	}

	var stanzaID int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM stanzas WHERE song_id = ? AND ordinal = ?`, songID, stanza,
	).Scan(&stanzaID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve stanza: %w", err)
	}

	var lineID int64
	err = db.QueryRowContext(ctx,
		`SELECT id FROM lines WHERE stanza_id = ? ORDER BY id LIMIT 1 OFFSET ?`, stanzaID, line,
	).Scan(&lineID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve line: %w", err)
	}

	var text string
	err = db.QueryRowContext(ctx, `SELECT w.word
		FROM word_locations wl
		JOIN song_words sw ON sw.id = wl.song_word_id
		JOIN words w ON w.id = sw.word_id
		WHERE sw.song_id = ? AND wl.line_id = ?
		ORDER BY wl.position
		LIMIT 1 OFFSET ?`, songID, lineID, word,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve word: %w", err)
	}
	return text, true, nil
}

// OccurrenceMismatches counts the song words of songID whose stored
// occurrence count differs from the number of their word locations.
func OccurrenceMismatches(ctx context.Context, db DBExecutor, songID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*)
		FROM song_words sw
		WHERE sw.song_id = ?
		AND sw.occurrences != (SELECT COUNT(*) FROM word_locations wl WHERE wl.song_word_id = sw.id)`,
		songID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("occurrence check: %w", err)
	}
	return n, nil
}
