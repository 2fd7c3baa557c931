package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func tableColumns(t *testing.T, conn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragma %s: %v", table, err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}

// TestInitDBCreatesSchema verifies a fresh database gets the hierarchy tables
// with ordinal columns for stanzas and lines and a position column for word
// locations.
func TestInitDBCreatesSchema(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	if err := InitDB(dbConn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}

	for _, table := range []string{"songs", "stanzas", "lines", "words", "song_words", "word_locations",
		"contributors", "contributor_roles", "song_contributors", "word_groups", "word_group_members",
		"phrases", "phrase_words"} {
		var name string
		if err := dbConn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}

	if cols := tableColumns(t, dbConn, "stanzas"); !cols["ordinal"] || !cols["text"] {
		t.Fatalf("expected ordinal and text in stanzas, got %v", cols)
	}
	if cols := tableColumns(t, dbConn, "lines"); !cols["ordinal"] || !cols["stanza_id"] {
		t.Fatalf("expected ordinal and stanza_id in lines, got %v", cols)
	}
	if cols := tableColumns(t, dbConn, "word_locations"); !cols["position"] || !cols["line_id"] {
		t.Fatalf("expected position and line_id in word_locations, got %v", cols)
	}

	var view string
	if err := dbConn.QueryRow("SELECT name FROM sqlite_master WHERE type='view' AND name='word_index_view'").Scan(&view); err != nil {
		t.Fatalf("word_index_view missing: %v", err)
	}
}

func TestInitDBIsRepeatable(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	for i := 0; i < 2; i++ {
		if err := InitDB(dbConn); err != nil {
			t.Fatalf("InitDB run %d: %v", i, err)
		}
	}
}

func TestOpenEnablesForeignKeys(t *testing.T) {
	conn, err := Open(":memory:", 4, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	var on int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&on); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if on != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", on)
	}
}
