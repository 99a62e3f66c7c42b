// Package orchestrator drives the top-level pipeline: organization ->
// repository -> series -> pocket -> architecture.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/pop-os/popci/internal/apt"
	"github.com/pop-os/popci/internal/blacklist"
	"github.com/pop-os/popci/internal/collate"
	"github.com/pop-os/popci/internal/config"
	"github.com/pop-os/popci/internal/dpkg"
	"github.com/pop-os/popci/internal/errs"
	"github.com/pop-os/popci/internal/fetcher"
	"github.com/pop-os/popci/internal/forge"
	"github.com/pop-os/popci/internal/proc"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Run executes one full pass of the pipeline. It returns a non-nil error
// only when loading the blacklist at startup or publishing fails;
// per-repository failures are logged and otherwise swallowed.
func Run(ctx context.Context, cfg *config.Config) error {
	if free, err := DiskFree(cfg.Dirs.Base); err == nil {
		log.WithField("free_bytes", free).Info("starting run")
	}

	store, blacklisted, err := startup(ctx, cfg)
	if err != nil {
		return err
	}

	client := forge.NewClient(ctx)
	entries, writerDone := store.Writer(ctx)
	pockets := &pocketSet{}

	for _, org := range cfg.Organizations {
		log.WithField("org", org.Name).Info("fetching github organization")
		repos, err := client.OrganizationRepos(ctx, org.Name)
		if err != nil {
			log.WithField("org", org.Name).Error(errs.Chain(err))
			continue
		}

		sem := make(chan struct{}, concurrentBuilds(cfg))
		var g sync.WaitGroup
		for _, repo := range filterRepos(org, repos) {
			repo := repo
			sem <- struct{}{}
			g.Add(1)
			go func() {
				defer func() { <-sem; g.Done() }()
				processRepo(ctx, cfg, client, org.Name, repo, blacklisted, entries, pockets)
			}()
		}
		g.Wait()
	}

	close(entries)
	<-writerDone

	return publishAll(ctx, cfg, pockets.cells())
}

// startup concurrently cleans up lingering chroot sessions and loads the
// blacklist.
func startup(ctx context.Context, cfg *config.Config) (*blacklist.Store, []blacklist.Entry, error) {
	var store *blacklist.Store
	var entries []blacklist.Entry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := proc.Run(gctx, "", "schroot", "--end-session", "--all-sessions"); err != nil {
			log.WithError(err).Warn("failed to clean up schroot sessions")
		}
		return nil
	})
	g.Go(func() error {
		s, e, err := blacklist.Load(cfg.Dirs.Build+"/blacklist", cfg.Retry)
		if err != nil {
			return err
		}
		store, entries = s, e
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return store, entries, nil
}

func filterRepos(org config.Organization, repos []forge.Repo) []forge.Repo {
	if org.StartsFilter == "" {
		return repos
	}
	out := repos[:0:0]
	for _, r := range repos {
		if hasPrefix(r.Name, org.StartsFilter) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func concurrentBuilds(cfg *config.Config) int {
	if cfg.ConcurrentBuilds <= 0 {
		return 1
	}
	return cfg.ConcurrentBuilds
}

// pocketCell identifies one (pocket, codename) tree the Publisher must
// regenerate.
type pocketCell struct{ pocket, codename string }

// pocketSet accumulates the distinct (pocket, codename) pairs touched by
// any repository's build queue, across all organizations, so the Publisher
// knows which dists/ trees to regenerate after everything else completes.
type pocketSet struct {
	mu    sync.Mutex
	seen  map[pocketCell]bool
	order []pocketCell
}

func (s *pocketSet) add(pocket, codename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[pocketCell]bool)
	}
	cell := pocketCell{pocket, codename}
	if s.seen[cell] {
		return
	}
	s.seen[cell] = true
	s.order = append(s.order, cell)
}

func (s *pocketSet) cells() []pocketCell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pocketCell(nil), s.order...)
}

// processRepo runs the Fetcher, Collator, Source Builder, and Binary
// Builder for one repository. Errors are logged with full cause chain and
// never abort sibling work.
func processRepo(ctx context.Context, cfg *config.Config, client *forge.Client, org string, repo forge.Repo, blacklisted []blacklist.Entry, blacklistTx chan<- blacklist.Entry, pockets *pocketSet) {
	f := fetcher.New(client, cfg.Dirs.Base)
	fetched, err := f.Fetch(ctx, org, repo)
	if err != nil {
		log.WithField("repo", repo.Name).Error(errs.Chain(err))
		return
	}

	queue, err := collate.Build(ctx, cfg, fetched)
	if err != nil {
		log.WithField("repo", repo.Name).Error(errs.Chain(err))
		return
	}

	for series, cells := range queue {
		release, ok := cfg.Series[series]
		if !ok {
			continue
		}
		for pocket, git := range cells {
			if blacklist.Contains(blacklisted, git.ID, series) {
				log.WithField("repo", repo.Name).WithField("commit", git.ID).WithField("series", series).
					Info("skipping: blacklisted")
				continue
			}

			builder := &dpkg.Builder{
				Config: cfg, Repo: fetched, Codename: series, Release: release, Git: git,
			}

			source, err := builder.Source(ctx)
			if err != nil {
				log.WithField("repo", repo.Name).WithField("commit", git.ID).WithField("series", series).
					Error(errs.Chain(err))
				blacklistTx <- blacklist.Entry{CommitID: git.ID, Series: series}
				continue
			}

			pockets.add(pocket, series)

			for archName, buildAll := range cfg.Archs {
				if _, err := builder.Binary(ctx, source, archName, buildAll); err != nil {
					log.WithField("repo", repo.Name).WithField("commit", git.ID).WithField("series", series).
						WithField("arch", archName).Error(errs.Chain(err))
				}
			}
		}
	}
}

// publishAll runs the Publisher once per (pocket, codename) cell touched
// during this run, single-threaded, after all organizations have
// completed. A failure here is fatal: the signed repository tree must
// never be left half regenerated.
func publishAll(ctx context.Context, cfg *config.Config, cells []pocketCell) error {
	version := buildVersion()
	for _, cell := range cells {
		log.WithField("pocket", cell.pocket).WithField("series", cell.codename).Info("publishing")
		if err := apt.Publish(ctx, cfg, cell.pocket, cell.codename, version); err != nil {
			return fmt.Errorf("publish %s/%s: %w", cell.pocket, cell.codename, err)
		}
	}
	return nil
}

// buildVersion is the Release file's Version field: a monotonically
// increasing build identifier for this run of the publisher.
func buildVersion() string {
	return time.Now().UTC().Format("20060102150405")
}

// DiskFree reports the bytes free on the filesystem backing dir, logged
// once per run as a diagnostic, since builds can fail confusingly once
// _build/ fills the disk.
func DiskFree(dir string) (uint64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(dir, &fs); err != nil {
		return 0, err
	}
	return fs.Bavail * uint64(fs.Bsize), nil
}
