package gitrepo

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"
)

// GitTar describes a single commit's tree archive, content-addressed by
// commit id so duplicate creation across branches is idempotent.
type GitTar struct {
	ID        string
	Timestamp string
	Datetime  string
	Archive   string
}

// NewGitTar builds the GitTar for id, rooted at cwd, writing the archive to
// archivePath if it does not already exist. Timestamp, datetime, and the
// archive itself are produced concurrently.
func NewGitTar(ctx context.Context, cwd, archivePath, id string) (GitTar, error) {
	g, ctx := errgroup.WithContext(ctx)

	var timestamp, datetime string

	g.Go(func() error {
		var err error
		timestamp, err = TimestampID(ctx, cwd, id)
		return err
	})
	g.Go(func() error {
		var err error
		datetime, err = DatetimeID(ctx, cwd, id)
		return err
	})
	g.Go(func() error {
		if _, err := os.Stat(archivePath); err == nil {
			return nil // already built: archives are content-addressed by id
		}
		return ArchiveID(ctx, cwd, id, archivePath)
	})

	if err := g.Wait(); err != nil {
		return GitTar{}, err
	}

	return GitTar{
		ID:        id,
		Timestamp: timestamp,
		Datetime:  datetime,
		Archive:   archivePath,
	}, nil
}
