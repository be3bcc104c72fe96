package cache

import (
	"context"
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/igr88/archetect/internal/source"
)

// Fetcher materializes a remote spec into dest, an empty directory, and
// returns the commit it checked out.
type Fetcher interface {
	Fetch(ctx context.Context, spec source.Spec, dest string) (commit string, err error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, spec source.Spec, dest string) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, spec source.Spec, dest string) (string, error) {
	return f(ctx, spec, dest)
}

// ErrRefNotFound is returned when the requested branch, tag, or commit does
// not exist in the repository. It is not worth retrying.
var ErrRefNotFound = errors.New("ref not found")

// ErrNoDefaultBranch is returned when a spec has no ref and the repository
// has none of the conventional default branches.
var ErrNoDefaultBranch = errors.New("failed to find a default 'develop', 'main', or 'master' branch")

// defaultBranches are tried in order when the remote HEAD cannot be used.
var defaultBranches = []string{"develop", "main", "master"}

// permanent reports errors a second attempt cannot fix.
func permanent(err error) bool {
	return errors.Is(err, ErrRefNotFound) ||
		errors.Is(err, ErrNoDefaultBranch) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, transport.ErrRepositoryNotFound) ||
		errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) ||
		errors.Is(err, transport.ErrEmptyRemoteRepository)
}

// GoGitFetcher clones with the pure-Go git implementation.
type GoGitFetcher struct{}

func (GoGitFetcher) Fetch(ctx context.Context, spec source.Spec, dest string) (string, error) {
	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:  spec.URL,
		Tags: git.AllTags,
	})
	if err != nil {
		return "", fmt.Errorf("cloning %s: %w", spec.URL, err)
	}

	hash, err := resolveRef(repo, spec.Ref)
	if err != nil {
		return "", err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return "", fmt.Errorf("checking out %s: %w", hash, err)
	}
	return hash.String(), nil
}

func resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if ref == "" {
		if head, err := repo.Head(); err == nil {
			return head.Hash(), nil
		}
		for _, b := range defaultBranches {
			if h, err := repo.ResolveRevision(plumbing.Revision("refs/remotes/origin/" + b)); err == nil {
				return *h, nil
			}
		}
		return plumbing.ZeroHash, ErrNoDefaultBranch
	}

	candidates := []string{
		"refs/remotes/origin/" + ref,
		"refs/tags/" + ref,
		ref,
	}
	for _, c := range candidates {
		if h, err := repo.ResolveRevision(plumbing.Revision(c)); err == nil {
			return *h, nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrRefNotFound, ref)
}
