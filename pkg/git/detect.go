package git

import (
	"context"
	"os"
	"path/filepath"
)

// RepoName returns the name of the current git repository.
// It runs "git rev-parse --show-toplevel" and returns the base directory name.
// If not inside a git repo, it falls back to the base name of the working directory.
func RepoName(ctx context.Context) string {
	top, err := output(ctx, "rev-parse", "--show-toplevel")
	if err == nil && top != "" {
		return filepath.Base(top)
	}

	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Base(wd)
}
