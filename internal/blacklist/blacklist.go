// Package blacklist is the persistent append-only set of (commit, series)
// pairs that must be skipped.
package blacklist

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/google/renameio"
	"github.com/pop-os/popci/internal/errs"
)

var errCorrupt = errors.New(`blacklist line is not "<sha> <series>"`)

// Entry is a single blacklisted (commit, series) pair.
type Entry struct {
	CommitID string
	Series   string
}

// Store owns the blacklist file. entries starts as the set loaded at
// startup; the single Writer goroutine appends newly blacklisted pairs to
// it. Each append atomically rewrites the whole file via
// renameio.WriteFile rather than appending to an open handle, for
// crash-safe, always-consistent on-disk state.
type Store struct {
	path    string
	entries []Entry
}

// Load reads path into a set of entries. If retry is true, or the file does
// not exist, the file is truncated (created empty) instead. A corrupted
// file (a line not matching "<sha> <series>") is logged and the file is
// recreated empty.
func Load(path string, retry bool) (*Store, []Entry, error) {
	if retry {
		if err := renameio.WriteFile(path, nil, 0644); err != nil {
			return nil, nil, &errs.Filesystem{Op: "create", Path: path, Cause: err}
		}
		return &Store{path: path}, nil, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, &errs.Filesystem{Op: "read", Path: path, Cause: err}
		}
		if err := renameio.WriteFile(path, nil, 0644); err != nil {
			return nil, nil, &errs.Filesystem{Op: "create", Path: path, Cause: err}
		}
		return &Store{path: path}, nil, nil
	}

	entries, err := parse(b)
	if err != nil {
		log.Warn("the blacklist file was corrupted, and is now being recreated")
		if err := renameio.WriteFile(path, nil, 0644); err != nil {
			return nil, nil, &errs.Filesystem{Op: "create", Path: path, Cause: err}
		}
		return &Store{path: path}, nil, nil
	}

	return &Store{path: path, entries: entries}, entries, nil
}

func parse(b []byte) ([]Entry, error) {
	var entries []Entry
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pos := strings.IndexByte(line, ' ')
		if pos < 0 {
			return nil, errCorrupt
		}
		entries = append(entries, Entry{
			CommitID: line[:pos],
			Series:   strings.TrimSpace(line[pos+1:]),
		})
	}
	return entries, nil
}

// Contains reports whether (id, series) is present among entries (the set
// loaded at startup via Load).
func Contains(entries []Entry, id, series string) bool {
	for _, e := range entries {
		if e.CommitID == id && e.Series == series {
			return true
		}
	}
	return false
}

// Writer starts the single-consumer goroutine that owns the blacklist
// state and atomically rewrites path for every entry received on the
// returned channel. The goroutine exits once the channel is closed and
// drained; done is closed right after. The caller must close the send
// channel once all producers are done.
func (s *Store) Writer(ctx context.Context) (chan<- Entry, <-chan struct{}) {
	entries := make(chan Entry)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range entries {
			log.WithField("commit", e.CommitID).WithField("series", e.Series).
				Warn("appending to blacklist")
			s.entries = append(s.entries, e)
			if err := renameio.WriteFile(s.path, []byte(render(s.entries)), 0644); err != nil {
				log.WithError(err).Error("failed to write blacklist entry")
			}
		}
	}()

	return entries, done
}

func render(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.CommitID)
		b.WriteByte(' ')
		b.WriteString(e.Series)
		b.WriteByte('\n')
	}
	return b.String()
}
