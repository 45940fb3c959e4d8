// Package git provides utilities for inspecting and mutating the local git
// repository. All operations shell out to the git CLI with a bounded timeout.
package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

// ErrNoTags is returned by LatestTag when the repository has no tags yet.
var ErrNoTags = errors.New("no tags found")

// output runs a git command and returns its trimmed stdout. Failures carry
// git's stderr message when available.
func output(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return "", wrapGitErr(args, err)
	}

	return strings.TrimSpace(string(out)), nil
}

// run runs a git command, discarding stdout.
func run(ctx context.Context, args ...string) error {
	_, err := output(ctx, args...)
	return err
}

func wrapGitErr(args []string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			return fmt.Errorf("git %s: %s: %w", args[0], msg, err)
		}
	}
	return fmt.Errorf("git %s: %w", args[0], err)
}
