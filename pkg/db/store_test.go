package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestResolveWordsNormalizesKeys(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	first, err := ResolveWords(ctx, db, []string{"Love"})
	if err != nil {
		t.Fatalf("create word: %v", err)
	}
	second, err := ResolveWords(ctx, db, []string{"  love "})
	if err != nil {
		t.Fatalf("get word: %v", err)
	}
	if first["love"] == 0 || first["love"] != second["love"] {
		t.Fatalf("expected same id, got %d and %d", first["love"], second["love"])
	}
}

func TestResolveWordsConcurrency(t *testing.T) {
	db := setupTestDB(t)
	const n = 8
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			got, err := ResolveWords(context.Background(), db, []string{"heart"})
			if err != nil {
				t.Errorf("resolve words: %v", err)
				ids <- 0
				return
			}
			ids <- got["heart"]
		}()
	}
	var first int64
	for i := 0; i < n; i++ {
		id := <-ids
		if id == 0 {
			t.Fatalf("error in goroutine")
		}
		if i == 0 {
			first = id
		}
		if id != first {
			t.Fatalf("expected same id, got %d and %d", first, id)
		}
	}
	// ensure only one row exists
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM words WHERE word = ?`, "heart").Scan(&cnt); err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 word row, got %d", cnt)
	}
}

func TestResolveWordsBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seeded, err := ResolveWords(ctx, db, []string{"yesterday"})
	require.NoError(t, err)
	existing := seeded["yesterday"]

	ids, err := ResolveWords(ctx, db, []string{"Yesterday", "all", "my", "troubles", "all"})
	require.NoError(t, err)
	require.Len(t, ids, 4)
	assert.Equal(t, existing, ids["yesterday"])

	again, err := ResolveWords(ctx, db, []string{"all", "troubles"})
	require.NoError(t, err)
	assert.Equal(t, ids["all"], again["all"])
	assert.Equal(t, ids["troubles"], again["troubles"])

	var cnt int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM words`).Scan(&cnt))
	assert.Equal(t, 4, cnt)

	var length int
	require.NoError(t, db.QueryRow(`SELECT length FROM words WHERE word = 'troubles'`).Scan(&length))
	assert.Equal(t, 8, length)
}

func TestResolveWordsSpansChunks(t *testing.T) {
	db := setupTestDB(t)
	words := make([]string, resolveChunk*2+17)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	ids, err := ResolveWords(context.Background(), db, words)
	require.NoError(t, err)
	assert.Len(t, ids, len(words))
}

func TestResolveWordsRejectsEmptyKey(t *testing.T) {
	db := setupTestDB(t)
	_, err := ResolveWords(context.Background(), db, []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestInsertSongRejectsDuplicateName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	id, err := InsertSong(ctx, db, Song{Name: "Help", Path: "/tmp/help.txt", Length: 4, Text: "help"})
	require.NoError(t, err)

	_, err = InsertSong(ctx, db, Song{Name: "HELP", Text: "help"})
	assert.ErrorIs(t, err, ErrSongExists)

	s, found, err := FindSong(ctx, db, "hElP")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "help", s.Name)
	assert.False(t, s.DocDate.IsZero())

	_, found, err = FindSong(ctx, db, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateOrGetContributorAndLink(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	songID, err := InsertSong(ctx, db, Song{Name: "imagine"})
	require.NoError(t, err)

	id1, err := CreateOrGetContributor(ctx, db, "John", "Lennon")
	require.NoError(t, err)
	id2, err := CreateOrGetContributor(ctx, db, "john ", " LENNON")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	linked, err := LinkContributor(ctx, db, songID, id1, RoleWriter)
	require.NoError(t, err)
	assert.True(t, linked)

	linked, err = LinkContributor(ctx, db, songID, id1, RoleWriter)
	require.NoError(t, err)
	assert.False(t, linked, "second link under the same role must be a no-op")

	linked, err = LinkContributor(ctx, db, songID, id1, RolePerformer)
	require.NoError(t, err)
	assert.True(t, linked)

	_, err = LinkContributor(ctx, db, songID, id1, Role("producer"))
	assert.Error(t, err)

	var roles int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM contributor_roles WHERE contributor_id = ?`, id1).Scan(&roles))
	assert.Equal(t, 2, roles)

	_, err = CreateOrGetContributor(ctx, db, "Prince", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestGroupsAndPhrases(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	gid, err := CreateOrGetGroup(ctx, db, "Colors")
	require.NoError(t, err)
	again, err := CreateOrGetGroup(ctx, db, "colors")
	require.NoError(t, err)
	assert.Equal(t, gid, again)

	ids, err := ResolveWords(ctx, db, []string{"red", "blue"})
	require.NoError(t, err)
	require.NoError(t, AddGroupWords(ctx, db, gid, []int64{ids["red"], ids["blue"]}))
	require.NoError(t, AddGroupWords(ctx, db, gid, []int64{ids["red"]}))

	words, err := GroupWords(ctx, db, "COLORS")
	require.NoError(t, err)
	assert.Equal(t, []string{"blue", "red"}, words)

	groups, err := ListGroups(ctx, db)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "colors", groups[0].Name)

	pid, err := CreateOrGetPhrase(ctx, db, "Red   Blue")
	require.NoError(t, err)
	require.NoError(t, SetPhraseWords(ctx, db, pid, []int64{ids["red"], ids["blue"]}))
	pid2, err := CreateOrGetPhrase(ctx, db, "red blue")
	require.NoError(t, err)
	assert.Equal(t, pid, pid2)

	phrases, err := ListPhrases(ctx, db)
	require.NoError(t, err)
	require.Len(t, phrases, 1)
	assert.Equal(t, PhraseRow{ID: pid, Phrase: "red blue", Words: 2}, phrases[0])
}

func TestRunInTxRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := RunInTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := ResolveWords(ctx, tx, []string{"ghost"}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	var cnt int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM words`).Scan(&cnt))
	assert.Zero(t, cnt)
}
