package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/japaniel/songindex/pkg/db"
	_ "github.com/mattn/go-sqlite3"
)

func setupBenchmarkDB(b *testing.B) *sql.DB {
	conn, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		b.Fatalf("failed to open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	// Optimize SQLite for performance to focus on application throughput
	_, _ = conn.Exec("PRAGMA synchronous = OFF")
	_, _ = conn.Exec("PRAGMA journal_mode = MEMORY")

	if err := db.InitDB(conn); err != nil {
		b.Fatalf("failed to init db: %v", err)
	}
	return conn
}

// generateBenchmarkSong builds a song of stanzas of four lines each, with a
// vocabulary that grows with the stanza number.
func generateBenchmarkSong(stanzas int) string {
	var sb strings.Builder
	for s := 0; s < stanzas; s++ {
		for l := 0; l < 4; l++ {
			fmt.Fprintf(&sb, "oh the night is long and word%d keeps line%d turning\n", s, l)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func BenchmarkProcess(b *testing.B) {
	for _, size := range []int{10, 100, 500} {
		text := generateBenchmarkSong(size)
		b.Run(fmt.Sprintf("Stanzas_%d", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				conn := setupBenchmarkDB(b)
				ig := NewIngester(conn)
				if err := ig.LoadText(fmt.Sprintf("bench_%d", i), text); err != nil {
					conn.Close()
					b.Fatalf("LoadText failed: %v", err)
				}
				b.StartTimer()

				state, err := ig.Process(context.Background())
				b.StopTimer()
				if err != nil || state != StateSucceeded {
					conn.Close()
					b.Fatalf("Process failed: %v (%s)", err, state)
				}
				conn.Close()
			}
		})
	}
}
