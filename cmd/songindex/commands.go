package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/japaniel/songindex/pkg/db"
	"github.com/japaniel/songindex/pkg/ingest"
	"github.com/japaniel/songindex/pkg/lyrics"
)

// IngestCmd loads and processes lyric files, optionally crediting contributors.
type IngestCmd struct {
	Paths     []string `arg:"" help:"Lyric files (.txt, .html)" type:"existingfile"`
	Composer  []string `help:"Composer full name (repeatable)" sep:"none"`
	Writer    []string `help:"Writer full name (repeatable)" sep:"none"`
	Performer []string `help:"Performer full name (repeatable)" sep:"none"`
}

func (c *IngestCmd) Run(rt *runtime) error {
	credits := ingest.Credits{Composers: c.Composer, Writers: c.Writer, Performers: c.Performer}
	hasCredits := len(c.Composer)+len(c.Writer)+len(c.Performer) > 0

	var failed int
	for _, path := range c.Paths {
		if err := rt.ctx.Err(); err != nil {
			return err
		}
		if err := rt.an.Load(rt.ctx, path); err != nil {
			rt.log.Error("load failed", "path", path, "error", err)
			failed++
			continue
		}
		name := rt.an.Ingester.Name()
		state, err := rt.an.Process(rt.ctx)
		fmt.Fprintf(rt.out, "%s\t%s\n", name, state)
		if err != nil {
			rt.log.Error("process failed", "path", path, "error", err)
			failed++
			continue
		}
		if !hasCredits {
			continue
		}
		if state == ingest.StateAlreadyExists {
			if err := rt.an.Use(rt.ctx, name); err != nil {
				return err
			}
		}
		if err := rt.an.AddContributors(rt.ctx, credits); err != nil {
			rt.log.Warn("some contributors were not credited", "song", name, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files had errors", failed, len(c.Paths))
	}
	fmt.Fprintln(rt.out, "Processing complete")
	return nil
}

// CreditCmd credits contributors on a stored song.
type CreditCmd struct {
	Song  string   `required:"" help:"Song name"`
	Role  string   `required:"" help:"Role: composer, writer or performer"`
	Names []string `arg:"" help:"Full names (\"first last\")"`
}

func (c *CreditCmd) Run(rt *runtime) error {
	role := db.Role(strings.ToLower(c.Role))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	if err := rt.useSong(c.Song); err != nil {
		return err
	}
	return rt.an.AddContributorsAs(rt.ctx, role, c.Names...)
}

// WordsCmd prints the word table.
type WordsCmd struct {
	Song   string `help:"Only words of this song"`
	Prefix string `help:"Only songs whose name starts with this prefix"`
}

func (c *WordsCmd) Run(rt *runtime) error {
	var rows []db.WordRow
	var err error
	if c.Song != "" {
		if err = rt.useSong(c.Song); err != nil {
			return err
		}
		rows, err = rt.an.GetSongWords(rt.ctx)
	} else {
		rows, err = rt.an.GetWords(rt.ctx, db.WordFilter{SongPrefix: c.Prefix})
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORD\tLENGTH\tOCCURRENCES")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", r.Word, r.Length, r.Occurrences)
	}
	return tw.Flush()
}

// IndexCmd prints every located word of a song.
type IndexCmd struct {
	Song string `required:"" help:"Song name"`
	Word string `arg:"" optional:"" help:"Only this word"`
}

func (c *IndexCmd) Run(rt *runtime) error {
	if err := rt.useSong(c.Song); err != nil {
		return err
	}
	rows, err := rt.an.GetWordIndex(rt.ctx, c.Word)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORD\tPOSITION\tOCCURRENCES\tWORD LEN\tLINE\tLINE LEN\tSTANZA\tSTANZA LEN")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.Word, r.Position, r.Occurrences, r.WordLength, r.LineOrdinal, r.LineLength, r.StanzaOrdinal, r.StanzaLength)
	}
	return tw.Flush()
}

// StatsCmd prints corpus averages.
type StatsCmd struct{}

func (c *StatsCmd) Run(rt *runtime) error {
	s, err := rt.an.GetStats(rt.ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "average word length\t%.3f\n", s.AverageWordLength)
	fmt.Fprintf(tw, "average line length\t%.3f\n", s.AverageLineLength)
	fmt.Fprintf(tw, "average stanza length\t%.3f\n", s.AverageStanzaLength)
	fmt.Fprintf(tw, "average song length\t%.3f\n", s.AverageSongLength)
	return tw.Flush()
}

// SongsCmd searches songs.
type SongsCmd struct {
	Name  string   `help:"Song name prefix"`
	First string   `help:"Contributor first name prefix"`
	Last  string   `help:"Contributor last name prefix"`
	Role  string   `help:"Contributor role"`
	Words []string `arg:"" optional:"" help:"Words that must all appear in the song"`
}

func (c *SongsCmd) Run(rt *runtime) error {
	q := db.SongQuery{
		NamePrefix:      c.Name,
		FirstNamePrefix: c.First,
		LastNamePrefix:  c.Last,
		Role:            db.Role(strings.ToLower(c.Role)),
		Words:           c.Words,
	}
	if q.Role != "" && !q.Role.Valid() {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	rows, err := rt.an.GetSongs(rt.ctx, q)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SONG\tLENGTH\tDATE\tFIRST\tLAST\tROLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Name, r.Length, r.DocDate.Format("2006-01-02"), r.FirstName, r.LastName, r.Role)
	}
	return tw.Flush()
}

// FindCmd prints the occurrences of a word or phrase.
type FindCmd struct {
	Song   string `help:"Search only this song"`
	Target string `arg:"" help:"Word or phrase"`
}

func (c *FindCmd) Run(rt *runtime) error {
	if c.Song != "" {
		if err := rt.useSong(c.Song); err != nil {
			return err
		}
		occ, err := rt.an.FindWords(rt.ctx, c.Target)
		if err != nil {
			return err
		}
		song, _ := rt.an.Active()
		printOccurrences(rt, song.Name, occ)
		return nil
	}
	res, err := rt.an.FindOccurrences(rt.ctx, c.Target)
	if err != nil {
		return err
	}
	for _, r := range res {
		printOccurrences(rt, r.Song, r.Occurrences)
	}
	return nil
}

func printOccurrences(rt *runtime, song string, occ []lyrics.Occurrence) {
	for _, o := range occ {
		fmt.Fprintf(rt.out, "%s @%d\n", song, o.Offset)
		for _, l := range strings.Split(o.Context, "\n") {
			fmt.Fprintf(rt.out, "    %s\n", l)
		}
	}
}

// ResolveCmd prints the word at an address.
type ResolveCmd struct {
	Song   string `required:"" help:"Song name"`
	Stanza int    `arg:"" help:"Stanza ordinal"`
	Line   int    `arg:"" help:"Line within the stanza"`
	Word   int    `arg:"" help:"Word within the line"`
}

func (c *ResolveCmd) Run(rt *runtime) error {
	if err := rt.useSong(c.Song); err != nil {
		return err
	}
	word, found, err := rt.an.Resolve(rt.ctx, c.Stanza, c.Line, c.Word)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no word at %d/%d/%d: %w", c.Stanza, c.Line, c.Word, db.ErrNotFound)
	}
	fmt.Fprintln(rt.out, word)
	return nil
}

// GroupCmd contains word group operations.
type GroupCmd struct {
	Add  GroupAddCmd  `cmd:"" help:"Add words to a group"`
	List GroupListCmd `cmd:"" help:"List groups"`
	Find GroupFindCmd `cmd:"" help:"Find the words of a group in a song"`
}

type GroupAddCmd struct {
	Name  string   `arg:"" help:"Group name"`
	Words []string `arg:"" help:"Words"`
}

func (c *GroupAddCmd) Run(rt *runtime) error {
	id, err := rt.an.AddGroup(rt.ctx, c.Name, c.Words...)
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "group %d\n", id)
	return nil
}

type GroupListCmd struct{}

func (c *GroupListCmd) Run(rt *runtime) error {
	groups, err := rt.an.ListGroups(rt.ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tWORDS")
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%s\n", g.Name, g.Words)
	}
	return tw.Flush()
}

type GroupFindCmd struct {
	Song string `required:"" help:"Song name"`
	Name string `arg:"" help:"Group name"`
}

func (c *GroupFindCmd) Run(rt *runtime) error {
	if err := rt.useSong(c.Song); err != nil {
		return err
	}
	occ, err := rt.an.FindGroup(rt.ctx, c.Name)
	if err != nil {
		return err
	}
	song, _ := rt.an.Active()
	printOccurrences(rt, song.Name, occ)
	return nil
}

// PhraseCmd contains phrase operations.
type PhraseCmd struct {
	Add  PhraseAddCmd  `cmd:"" help:"Store a phrase"`
	List PhraseListCmd `cmd:"" help:"List phrases"`
}

type PhraseAddCmd struct {
	Text []string `arg:"" help:"Phrase words"`
}

func (c *PhraseAddCmd) Run(rt *runtime) error {
	id, err := rt.an.AddPhrase(rt.ctx, strings.Join(c.Text, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "phrase %d\n", id)
	return nil
}

type PhraseListCmd struct{}

func (c *PhraseListCmd) Run(rt *runtime) error {
	phrases, err := rt.an.ListPhrases(rt.ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHRASE\tWORDS")
	for _, p := range phrases {
		fmt.Fprintf(tw, "%s\t%d\n", p.Phrase, p.Words)
	}
	return tw.Flush()
}
