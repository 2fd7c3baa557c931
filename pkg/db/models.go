package db

import "time"

// Song is an ingested lyric file. Name is its case-insensitive natural key.
type Song struct {
	ID      int64
	Name    string
	Path    string
	DocDate time.Time
	Length  int
	Text    string
}

// Stanza is stored with its ordinal position in the song, not a character offset.
type Stanza struct {
	ID      int64
	SongID  int64
	Ordinal int
	Length  int
	Text    string
}

// Line is stored with its ordinal position in the song, not a character offset.
type Line struct {
	ID       int64
	SongID   int64
	StanzaID int64
	Ordinal  int
	Length   int
	Text     string
}

// Word is the canonical, lowercased word entry shared by every song.
type Word struct {
	ID     int64
	Word   string
	Length int
}

// Role is the way a contributor took part in a song.
type Role string

const (
	RoleComposer  Role = "composer"
	RoleWriter    Role = "writer"
	RolePerformer Role = "performer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleComposer, RoleWriter, RolePerformer:
		return true
	}
	return false
}

// Contributor is a person credited on one or more songs.
type Contributor struct {
	ID        int64
	FirstName string
	LastName  string
	FullName  string
}

// WordFilter narrows ListWords. Zero values disable a filter.
type WordFilter struct {
	SongID     int64
	SongPrefix string
}

// WordRow is a line of the word table.
type WordRow struct {
	ID          int64
	Word        string
	Length      int
	Occurrences int
}

// WordIndexRow describes one concrete occurrence of a word inside a song.
type WordIndexRow struct {
	ID            int64
	Word          string
	WordLength    int
	Position      int
	Occurrences   int
	LineOrdinal   int
	LineLength    int
	StanzaOrdinal int
	StanzaLength  int
}

// Stats holds corpus-wide averages, in characters, rounded to 3 decimals.
type Stats struct {
	AverageWordLength   float64
	AverageLineLength   float64
	AverageStanzaLength float64
	AverageSongLength   float64
}

// SongQuery filters SearchSongs. Words must all appear in a song for it to match.
type SongQuery struct {
	NamePrefix      string
	FirstNamePrefix string
	LastNamePrefix  string
	Role            Role
	Words           []string
}

// SongRow is one song/contributor/role combination returned by SearchSongs.
// Contributor fields are empty for songs without credits.
type SongRow struct {
	SongID    int64
	Name      string
	Path      string
	DocDate   time.Time
	Length    int
	FirstName string
	LastName  string
	Role      Role
}

// GroupRow is a named word set with its members joined by ", ".
type GroupRow struct {
	ID    int64
	Name  string
	Words string
}

// PhraseRow is a stored phrase and its word count.
type PhraseRow struct {
	ID     int64
	Phrase string
	Words  int
}
