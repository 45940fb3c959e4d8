package git

import "context"

// StagedDiff returns the full diff of staged changes.
func StagedDiff(ctx context.Context) (string, error) {
	return output(ctx, "diff", "--cached")
}

// StagedStat returns the diffstat summary of staged changes.
func StagedStat(ctx context.Context) (string, error) {
	return output(ctx, "diff", "--cached", "--stat")
}

// Commit creates a commit from the staged changes with the given message.
func Commit(ctx context.Context, message string) error {
	return run(ctx, "commit", "-m", message)
}
