// Package fetcher reconciles a forge repository's remote branches with a
// local working tree.
package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pop-os/popci/internal/errs"
	"github.com/pop-os/popci/internal/forge"
	"github.com/pop-os/popci/internal/gitrepo"
	"golang.org/x/sync/errgroup"
)

// Branch is a reconciled branch: its name, remote commit id, and whether
// this run had to check it out.
type Branch struct {
	Name             string
	SHA              string
	RequiredCheckout bool
}

// Repository is one fetched repository: its local working tree and the
// branches found in it, sorted by name.
type Repository struct {
	Name      string
	Directory string
	Branches  []Branch
}

// Fetcher reconciles repositories against a forge organization.
type Fetcher struct {
	client  *forge.Client
	baseDir string
}

// New constructs a Fetcher rooted at baseDir (where repositories are
// checked out as baseDir/<repo-name>).
func New(client *forge.Client, baseDir string) *Fetcher {
	return &Fetcher{client: client, baseDir: baseDir}
}

// Fetch reconciles owner/repo.Name against its local working tree.
func (f *Fetcher) Fetch(ctx context.Context, owner string, repo forge.Repo) (Repository, error) {
	cwd := filepath.Join(f.baseDir, repo.Name)

	var remoteBranches []forge.Branch
	var localHeads map[string]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		branches, err := f.client.RepositoryBranches(gctx, owner, repo.Name)
		if err != nil {
			return &errs.Git{Repo: repo.Name, Cause: err}
		}
		remoteBranches = filterNamespaced(branches)
		return nil
	})
	g.Go(func() error {
		heads, err := f.localBranches(gctx, cwd, owner, repo.Name)
		if err != nil {
			return err
		}
		localHeads = heads
		return nil
	})
	if err := g.Wait(); err != nil {
		return Repository{}, err
	}

	var branches []Branch
	fetched := false
	for _, rb := range remoteBranches {
		required := true
		if local, ok := localHeads[rb.Name]; ok && local == rb.SHA {
			required = false
		}

		if required {
			if !fetched {
				fetched = true
				if err := gitrepo.Fetch(ctx, cwd); err != nil {
					return Repository{}, &errs.Git{Repo: repo.Name, Branch: rb.Name, Cause: err}
				}
			}
			// Checkout must happen serially, in remote order: concurrent
			// mutating git invocations in the same working tree corrupt
			// refs.
			if err := gitrepo.CheckoutID(ctx, cwd, rb.SHA); err != nil {
				return Repository{}, &errs.Git{Repo: repo.Name, Branch: rb.Name, Cause: err}
			}
		}

		branches = append(branches, Branch{
			Name:             rb.Name,
			SHA:              rb.SHA,
			RequiredCheckout: required,
		})
	}

	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })

	return Repository{
		Name:      repo.Name,
		Directory: cwd,
		Branches:  branches,
	}, nil
}

func (f *Fetcher) localBranches(ctx context.Context, cwd, owner, repo string) (map[string]string, error) {
	if _, err := os.Stat(cwd); err != nil {
		url := "https://github.com/" + owner + "/" + repo
		if err := gitrepo.Clone(ctx, f.baseDir, url); err != nil {
			return nil, &errs.Git{Repo: repo, Cause: err}
		}
	}

	heads, err := gitrepo.LocalBranchHeads(ctx, cwd)
	if err != nil {
		return nil, &errs.Git{Repo: repo, Cause: err}
	}
	return heads, nil
}

// filterNamespaced drops branches whose name contains "/", excluding
// namespaced "no-build" branches.
func filterNamespaced(branches []forge.Branch) []forge.Branch {
	out := branches[:0:0]
	for _, b := range branches {
		if strings.Contains(b.Name, "/") {
			continue
		}
		out = append(out, b)
	}
	return out
}
