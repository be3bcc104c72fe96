package cache

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/igr88/archetect/internal/source"
)

// GitCLIFetcher shells out to the git binary on PATH. It honours the user's
// git configuration (credential helpers, proxies, insteadOf rewrites) that
// the pure-Go fetcher does not.
type GitCLIFetcher struct{}

func (GitCLIFetcher) Fetch(ctx context.Context, spec source.Spec, dest string) (string, error) {
	if err := ensureGit(); err != nil {
		return "", err
	}
	if _, err := runGit(ctx, "", "clone", "--quiet", spec.URL, dest); err != nil {
		return "", fmt.Errorf("cloning %s: %w", spec.URL, err)
	}

	target := spec.Ref
	switch {
	case target == "":
		// The clone already checked out the remote HEAD; fall back to a
		// conventional branch only if it did not.
		if _, err := runGit(ctx, dest, "rev-parse", "--verify", "-q", "HEAD"); err != nil {
			branch, err := defaultBranch(ctx, dest)
			if err != nil {
				return "", err
			}
			target = "origin/" + branch
		}
	case isRemoteBranch(ctx, dest, target):
		target = "origin/" + target
	}

	if target != "" {
		if _, err := runGit(ctx, dest, "checkout", "--quiet", "--detach", target); err != nil {
			return "", fmt.Errorf("%w: %s", ErrRefNotFound, spec.Ref)
		}
	}

	out, err := runGit(ctx, dest, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("reading checked out commit: %w", err)
	}
	return out, nil
}

func isRemoteBranch(ctx context.Context, dir, name string) bool {
	_, err := runGit(ctx, dir, "show-ref", "-q", "--verify", "refs/remotes/origin/"+name)
	return err == nil
}

func defaultBranch(ctx context.Context, dir string) (string, error) {
	for _, b := range defaultBranches {
		if isRemoteBranch(ctx, dir, b) {
			return b, nil
		}
	}
	return "", ErrNoDefaultBranch
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w\n%s", args[0], err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

// ensureGit checks that git is available on PATH.
func ensureGit() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git is required but not found in PATH")
	}
	return nil
}
