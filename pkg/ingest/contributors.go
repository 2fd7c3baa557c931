package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/japaniel/songindex/pkg/db"
)

var (
	// ErrInvalidName is returned for contributor names that are not "first last".
	ErrInvalidName = errors.New("contributor name must have a first and a last name")
	// ErrRolledBack marks a contributor undone because another contributor in
	// the same batch failed.
	ErrRolledBack = errors.New("rolled back with its batch")
)

// Name is a contributor name split into its first and last parts.
type Name struct {
	First string
	Last  string
}

// Full returns "first last".
func (n Name) Full() string { return n.First + " " + n.Last }

// ParseName splits s on its first space. Everything after that space is the
// last name, so "ludwig van beethoven" has last name "van beethoven".
func ParseName(s string) (Name, error) {
	s = strings.Join(strings.Fields(s), " ")
	first, last, ok := strings.Cut(s, " ")
	if !ok || first == "" || last == "" {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return Name{First: first, Last: last}, nil
}

// ContributorError reports a contributor that could not be credited.
type ContributorError struct {
	Name string
	Role db.Role
	Err  error
}

func (e *ContributorError) Error() string {
	return fmt.Sprintf("contributor %q as %s: %v", e.Name, e.Role, e.Err)
}

func (e *ContributorError) Unwrap() error { return e.Err }

// Credits lists the people credited on a song by role.
type Credits struct {
	Composers  []string
	Writers    []string
	Performers []string
}

// AddCredits credits every name in c on the active song.
func (ig *Ingester) AddCredits(ctx context.Context, c Credits) error {
	if _, ok := ig.Active(); !ok {
		return ErrNoActiveSong
	}
	return errors.Join(
		ig.AddContributors(ctx, db.RoleComposer, c.Composers...),
		ig.AddContributors(ctx, db.RoleWriter, c.Writers...),
		ig.AddContributors(ctx, db.RolePerformer, c.Performers...),
	)
}

// AddContributors credits names on the active song under role. Contributors
// are committed ContributorBatchSize at a time, so a failure does not undo
// batches committed before it. Every contributor that ends up uncredited is
// returned, joined, as a *ContributorError, including the ones rolled back
// with a failing neighbour (ErrRolledBack). A contributor already credited
// under role is left as is.
func (ig *Ingester) AddContributors(ctx context.Context, role db.Role, names ...string) error {
	song, ok := ig.Active()
	if !ok {
		return ErrNoActiveSong
	}
	if !role.Valid() {
		return fmt.Errorf("unknown contributor role %q", role)
	}
	if len(names) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		errs   []error
		linked int
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	bw := NewBatchWriter(ctx, ig.DB, ig.ContributorBatchSize, ig.ContributorFlushInterval)
	bw.Logger = ig.logger()

	for _, raw := range names {
		name, err := ParseName(raw)
		if err != nil {
			record(&ContributorError{Name: raw, Role: role, Err: err})
			continue
		}
		key := db.NormalizeKey(name.Full())
		var added bool
		write := func(ctx context.Context, tx *sql.Tx) error {
			id, err := db.CreateOrGetContributor(ctx, tx, name.First, name.Last)
			if err != nil {
				return &ContributorError{Name: key, Role: role, Err: err}
			}
			added, err = db.LinkContributor(ctx, tx, song.ID, id, role)
			if err != nil {
				return &ContributorError{Name: key, Role: role, Err: err}
			}
			return nil
		}
		done := func(err error) {
			if err == nil {
				if added {
					mu.Lock()
					linked++
					mu.Unlock()
				}
				return
			}
			var ce *ContributorError
			if errors.As(err, &ce) && ce.Name == key {
				record(ce)
				return
			}
			record(&ContributorError{Name: key, Role: role, Err: fmt.Errorf("%w: %w", ErrRolledBack, err)})
		}
		if err := bw.SubmitDone(write, done); err != nil {
			record(&ContributorError{Name: key, Role: role, Err: err})
		}
	}

	closeErr := bw.Close()
	mu.Lock()
	defer mu.Unlock()
	if closeErr != nil && len(errs) == 0 {
		errs = append(errs, closeErr)
	}
	ig.logger().Info("contributors added",
		"song", song.Name,
		"role", role,
		"linked", linked,
		"committed", bw.Committed(),
		"failed", len(errs))
	return errors.Join(errs...)
}
