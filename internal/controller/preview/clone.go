package preview

import (
	"context"
	"os"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// GitCloner is the production RepoCloner, backed by go-git/v5. A branch
// checkout uses a depth-1 clone; a pinned commitSha needs the full
// history since a shallow clone cannot check out an arbitrary SHA, per
// SPEC_FULL.md §4.7.
type GitCloner struct{}

func (GitCloner) Clone(ctx context.Context, repoURL, branch, commitSha string) (string, error) {
	dir, err := os.MkdirTemp("", "ph-preview-")
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindGitClone, "create clone dir", err)
	}

	if commitSha != "" {
		repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL: repoURL,
		})
		if err != nil {
			os.RemoveAll(dir)
			return "", pherrors.Wrap(pherrors.KindGitClone, "clone repository", err)
		}
		wt, err := repo.Worktree()
		if err != nil {
			os.RemoveAll(dir)
			return "", pherrors.Wrap(pherrors.KindGitClone, "open worktree", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(commitSha)}); err != nil {
			os.RemoveAll(dir)
			return "", pherrors.Wrap(pherrors.KindGitClone, "checkout commit "+commitSha, err)
		}
		return dir, nil
	}

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		os.RemoveAll(dir)
		return "", pherrors.Wrap(pherrors.KindGitClone, "clone repository", err)
	}
	return dir, nil
}
