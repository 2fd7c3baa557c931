// Package loader reads raw lyric text from disk.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-readability"
)

// DefaultMaxSize bounds how much of a lyric file is read.
const DefaultMaxSize = 4 * 1024 * 1024

// FileLoader loads plain-text lyric files. Files ending in .html or .htm are
// treated as saved lyric pages and reduced to their readable text.
type FileLoader struct {
	// MaxSize is the largest accepted file in bytes. Zero means DefaultMaxSize.
	MaxSize int64
}

// Load returns the contents of the lyric file at path.
func (l FileLoader) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	limit := l.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Read one byte past the limit so an oversized file can be told apart
	// from one that is exactly the limit.
	body, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("%s exceeds maximum size of %d bytes", path, limit)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return extractHTML(body, path)
	}
	return string(body), nil
}

func extractHTML(body []byte, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	pageURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract lyrics from %s: %w", path, err)
	}
	return strings.TrimSpace(article.TextContent), nil
}

// SongName derives the natural song name from a file path: the lowercased
// file name without its extension.
func SongName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.TrimSpace(base))
}
