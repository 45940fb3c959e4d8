package git

import (
	"context"
	"strings"
)

// LatestTag returns the most recent tag reachable from HEAD.
// Returns ErrNoTags when the repository has no tags.
func LatestTag(ctx context.Context) (string, error) {
	out, err := output(ctx, "describe", "--tags", "--abbrev=0")
	if err != nil {
		if strings.Contains(err.Error(), "No names found") ||
			strings.Contains(err.Error(), "No tags can describe") {
			return "", ErrNoTags
		}
		return "", err
	}
	return out, nil
}

// Tags returns all tags sorted newest-first by version order.
func Tags(ctx context.Context) ([]string, error) {
	out, err := output(ctx, "tag", "--list", "--sort=-v:refname")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CreateTag creates a tag at HEAD. A non-empty message creates an annotated
// tag, otherwise a lightweight one.
func CreateTag(ctx context.Context, name, message string) error {
	if message != "" {
		return run(ctx, "tag", "-a", name, "-m", message)
	}
	return run(ctx, "tag", name)
}

// PushTag pushes a single tag to origin.
func PushTag(ctx context.Context, name string) error {
	return run(ctx, "push", "origin", name)
}
