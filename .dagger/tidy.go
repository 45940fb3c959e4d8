package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/spool/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum,
// meaning the module files were committed untidied.
//
// +check
func (s *Spool) CheckGoModTidy(ctx context.Context) (string, error) {
	out, err := s.goContainer().
		WithExec([]string{"sh", "-c", "cp go.mod go.mod.orig && cp go.sum go.sum.orig"}).
		WithExec([]string{"go", "mod", "tidy"}).
		WithExec([]string{
			"sh", "-c",
			"diff -u go.mod.orig go.mod && diff -u go.sum.orig go.sum",
		}).
		Stdout(ctx)

	var execErr *dagger.ExecError
	switch {
	case errors.As(err, &execErr):
		return "", fmt.Errorf("go.mod or go.sum need 'go mod tidy':\n\n%s", execErr.Stdout)
	case err != nil:
		return "", fmt.Errorf("checking go mod tidy: %w", err)
	}

	return fmt.Sprintf("go.mod and go.sum are tidy: %s", out), nil
}
