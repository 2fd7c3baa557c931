package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPlainText(t *testing.T) {
	path := writeFile(t, "Yesterday.txt", "Yesterday\nall my troubles\n")
	text, err := FileLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Yesterday\nall my troubles\n", text)
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	path := writeFile(t, "big.txt", strings.Repeat("a", 11))

	_, err := FileLoader{MaxSize: 10}.Load(context.Background(), path)
	assert.ErrorContains(t, err, "exceeds maximum size")

	text, err := FileLoader{MaxSize: 11}.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, text, 11)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := FileLoader{}.Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCanceledContext(t *testing.T) {
	path := writeFile(t, "song.txt", "la la la")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FileLoader{}.Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadHTMLExtractsReadableText(t *testing.T) {
	verse := strings.Repeat("Here comes the sun and I say it's all right. ", 12)
	page := `<!DOCTYPE html><html><head><title>Here Comes The Sun</title></head><body>
<nav><a href="/">Home</a></nav>
<article><h1>Here Comes The Sun</h1>
<p>` + verse + `</p>
<p>` + verse + `</p>
<p>Little darling, it's been a long cold lonely winter. ` + verse + `</p>
</article></body></html>`
	path := writeFile(t, "here_comes_the_sun.html", page)

	text, err := FileLoader{}.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "lonely winter")
	assert.NotContains(t, text, "<p>")
}

func TestSongName(t *testing.T) {
	assert.Equal(t, "hey jude", SongName("/music/Hey Jude.txt"))
	assert.Equal(t, "help", SongName("HELP.HTML"))
	assert.Equal(t, "let_it_be", SongName("lyrics/let_it_be"))
}
