package git

import (
	"context"
	"strings"
)

// CurrentBranch returns the short name of the checked-out branch.
func CurrentBranch(ctx context.Context) (string, error) {
	return output(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// Checkout switches the worktree to the named branch.
func Checkout(ctx context.Context, name string) error {
	return run(ctx, "checkout", name)
}

// IsClean reports whether the worktree has no staged, unstaged, or untracked
// changes.
func IsClean(ctx context.Context) (bool, error) {
	out, err := output(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// MergedBranches returns the short names of local branches already merged
// into the given branch, excluding the branch itself.
func MergedBranches(ctx context.Context, into string) ([]string, error) {
	out, err := output(ctx, "branch", "--merged", into, "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}

	var branches []string
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || name == into {
			continue
		}
		branches = append(branches, name)
	}

	return branches, nil
}

// DeleteBranch deletes a local branch. With force set the branch is deleted
// even when it has not been merged.
func DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return run(ctx, "branch", flag, name)
}
