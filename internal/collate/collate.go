// Package collate fans branches out across the series x pocket build grid
// according to the branch-naming protocol "pocket[_series]".
package collate

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pop-os/popci/internal/config"
	"github.com/pop-os/popci/internal/fetcher"
	"github.com/pop-os/popci/internal/gitrepo"
	"golang.org/x/sync/errgroup"
)

// branchTar pairs a fetched branch with its GitTar, once built.
type branchTar struct {
	branch fetcher.Branch
	tar    gitrepo.GitTar
}

// BuildQueue is the nested series -> pocket -> GitTar mapping: the unit of
// work the builders consume.
type BuildQueue map[string]map[string]gitrepo.GitTar

// Build constructs the BuildQueue for repo. GitTar creation for all
// branches runs concurrently; collation into the grid happens serially on
// the calling goroutine as each archive completes, preserving the order in
// which results arrive.
func Build(ctx context.Context, cfg *config.Config, repo fetcher.Repository) (BuildQueue, error) {
	queue := make(BuildQueue, len(cfg.Series))
	for series := range cfg.Series {
		queue[series] = make(map[string]gitrepo.GitTar)
	}

	results := make(chan branchTar, len(repo.Branches))
	g, gctx := errgroup.WithContext(ctx)

	for _, branch := range repo.Branches {
		branch := branch
		g.Go(func() error {
			archivePath := filepath.Join(cfg.Dirs.Git, branch.SHA+".tar")
			tar, err := gitrepo.NewGitTar(gctx, repo.Directory, archivePath, branch.SHA)
			if err != nil {
				return err
			}
			results <- branchTar{branch: branch, tar: tar}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	for bt := range results {
		pocket, series, hasSeries := parseBranch(bt.branch.Name)
		if hasSeries {
			if pockets, ok := queue[series]; ok {
				pockets[pocket] = bt.tar
			}
			continue
		}
		// Wildcard branch: fill every series that lacks this pocket.
		for _, pockets := range queue {
			if _, exists := pockets[pocket]; !exists {
				pockets[pocket] = bt.tar
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return queue, nil
}

// parseBranch splits "pocket[_series]" on the first underscore.
func parseBranch(name string) (pocket, series string, hasSeries bool) {
	idx := strings.Index(name, "_")
	if idx < 0 {
		return name, "", false
	}
	return name[:idx], name[idx+1:], true
}
