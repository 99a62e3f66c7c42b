// Package forge is a paginated GitHub client scoped to exactly the two
// endpoints popci needs: an organization's repositories, and a
// repository's branches. Pagination stops once a page comes back shorter
// than per_page=100.
package forge

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v27/github"
	"github.com/pop-os/popci/internal/errs"
	"golang.org/x/oauth2"
)

const perPage = 100

// tokenPath is where an optional bearer-token credential is read from.
const tokenPath = ".github_token"

var (
	tokenOnce sync.Once
	token     string
)

func githubToken() string {
	tokenOnce.Do(func() {
		b, err := os.ReadFile(tokenPath)
		if err != nil {
			return
		}
		token = strings.TrimSpace(string(b))
	})
	return token
}

// Repo is the shape of a GitHub repository list entry.
type Repo struct {
	Name     string
	URL      string
	PushedAt time.Time
}

// Branch is the shape of a GitHub branch list entry.
type Branch struct {
	Name string
	SHA  string
}

// Client wraps a google/go-github client, authenticated with the optional
// token from .github_token.
type Client struct {
	gh *github.Client
}

// NewClient constructs a Client, using an OAuth2 static token source when a
// token is available, and an unauthenticated transport otherwise.
func NewClient(ctx context.Context) *Client {
	var hc *http.Client
	if tok := githubToken(); tok != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok})
		hc = oauth2.NewClient(ctx, ts)
	}
	return &Client{gh: github.NewClient(hc)}
}

// NewClientAt builds a Client pointed at baseURL instead of the real
// GitHub API, for tests exercising the pagination contract against an
// httptest.Server.
func NewClientAt(baseURL string) (*Client, error) {
	gh := github.NewClient(nil)
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	gh.BaseURL = u
	return &Client{gh: gh}, nil
}

// OrganizationRepos fetches all repositories belonging to org, paginating
// until a page comes back shorter than perPage.
func (c *Client) OrganizationRepos(ctx context.Context, org string) ([]Repo, error) {
	var result []Repo
	page := 0
	for {
		page++
		repos, _, err := c.gh.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: perPage},
		})
		if err != nil {
			return nil, &errs.Forge{Org: org, Cause: err}
		}
		for _, r := range repos {
			result = append(result, Repo{
				Name:     r.GetName(),
				URL:      r.GetHTMLURL(),
				PushedAt: r.GetPushedAt().Time,
			})
		}
		if len(repos) < perPage {
			return result, nil
		}
	}
}

// RepositoryBranches fetches all branches of owner/repo.
func (c *Client) RepositoryBranches(ctx context.Context, owner, repo string) ([]Branch, error) {
	var result []Branch
	page := 0
	for {
		page++
		branches, _, err := c.gh.Repositories.ListBranches(ctx, owner, repo, &github.ListOptions{
			Page: page, PerPage: perPage,
		})
		if err != nil {
			return nil, &errs.Forge{Org: owner, Repo: repo, Cause: err}
		}
		for _, b := range branches {
			result = append(result, Branch{Name: b.GetName(), SHA: b.GetCommit().GetSHA()})
		}
		if len(branches) < perPage {
			return result, nil
		}
	}
}
