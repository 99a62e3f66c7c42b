package forge

import (
	"context"
	"fmt"

	"github.com/google/go-github/v27/github"
	"github.com/pop-os/popci/internal/errs"
)

// StatusContext describes a commit status to post back to the forge. It is
// unwired from internal/orchestrator by default: whether forge-status
// reporting should re-enter the core pipeline is left as a product
// decision for the caller, not the orchestrator itself.
type StatusContext struct {
	Context     string
	Description string
	State       string // "pending", "success", "failure"
	TargetURL   string
}

// SetStatus posts a commit status. Not called anywhere by default; see
// StatusContext.
func (c *Client) SetStatus(ctx context.Context, owner, repo, sha string, sc StatusContext) error {
	status := &github.RepoStatus{
		State:       &sc.State,
		Context:     &sc.Context,
		Description: &sc.Description,
	}
	if sc.TargetURL != "" {
		status.TargetURL = &sc.TargetURL
	}
	if _, _, err := c.gh.Repositories.CreateStatus(ctx, owner, repo, sha, status); err != nil {
		return &errs.Forge{Org: owner, Repo: repo, Cause: fmt.Errorf("set status: %w", err)}
	}
	return nil
}
