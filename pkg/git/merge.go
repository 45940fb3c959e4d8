package git

import "context"

// MergeOptions controls how Merge combines a branch into the current one.
// Squash and FFOnly are mutually exclusive with NoFF; callers validate.
type MergeOptions struct {
	// NoFF forces a merge commit even when fast-forward is possible.
	NoFF bool

	// Squash stages the branch's changes without committing them.
	Squash bool

	// FFOnly refuses to merge unless a fast-forward is possible.
	FFOnly bool
}

// Merge merges the named branch into the current branch.
func Merge(ctx context.Context, branch string, opts MergeOptions) error {
	args := []string{"merge"}

	switch {
	case opts.Squash:
		args = append(args, "--squash")
	case opts.FFOnly:
		args = append(args, "--ff-only")
	case opts.NoFF:
		args = append(args, "--no-ff", "--no-edit")
	default:
		args = append(args, "--no-edit")
	}

	args = append(args, branch)

	return run(ctx, args...)
}
