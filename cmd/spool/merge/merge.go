// Package mergecmder provides the merge command for combining branches
// with guardrails.
package mergecmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spoolworks/spool/pkg/cliui"
	"github.com/spoolworks/spool/pkg/git"
)

// protectedBranches are never deleted by --delete or --cleanup.
var protectedBranches = map[string]bool{
	"main":    true,
	"master":  true,
	"develop": true,
}

type MergeCommander struct {
	squash  bool
	ffOnly  bool
	noFF    bool
	delete  bool
	into    string
	cleanup bool
	dryRun  bool
}

const mergeLongDesc string = `Merge a branch into the current one with guardrails.

Refuses to run on a dirty worktree, never deletes protected branches
(main, master, develop), and reports exactly what it did. With --into
the target branch is checked out first.

Cleanup mode deletes local branches that are already merged into the
target, which keeps long-lived clones tidy.

Examples:
  spool merge feature/login             Merge feature/login into the current branch
  spool merge feature/login --squash    Stage the branch's changes without committing
  spool merge hotfix --into main        Check out main, then merge hotfix
  spool merge feature/login --delete    Merge, then delete the source branch
  spool merge --cleanup                 Delete branches already merged into the current one
  spool merge --cleanup --dry-run       List them without deleting`

const mergeShortDesc string = "Merge a branch with guardrails"

func NewMergeCmd() *cobra.Command {
	cmder := &MergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge [branch]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if cmder.cleanup {
				if len(args) > 0 {
					return errors.New("--cleanup takes no branch argument")
				}
				return cmder.runCleanup(ctx)
			}

			if len(args) == 0 {
				return errors.New("branch argument required (or use --cleanup)")
			}
			return cmder.run(ctx, args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.squash, "squash", false, "Stage the branch's changes without committing")
	cmd.Flags().BoolVar(&cmder.ffOnly, "ff-only", false, "Refuse unless a fast-forward is possible")
	cmd.Flags().BoolVar(&cmder.noFF, "no-ff", false, "Always create a merge commit")
	cmd.Flags().BoolVar(&cmder.delete, "delete", false, "Delete the source branch after merging")
	cmd.Flags().StringVar(&cmder.into, "into", "", "Target branch (default: current)")
	cmd.Flags().BoolVar(&cmder.cleanup, "cleanup", false, "Delete local branches already merged into the target")
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "With --cleanup, list branches without deleting")
	cmd.MarkFlagsMutuallyExclusive("squash", "ff-only", "no-ff")

	return cmd
}

func (c *MergeCommander) run(ctx context.Context, branch string) error {
	clean, err := git.IsClean(ctx)
	if err != nil {
		return err
	}
	if !clean {
		return errors.New("worktree has uncommitted changes; commit or stash first")
	}

	target, err := c.targetBranch(ctx)
	if err != nil {
		return err
	}

	if branch == target {
		return fmt.Errorf("cannot merge %q into itself", branch)
	}

	current, err := git.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if target != current {
		if err := git.Checkout(ctx, target); err != nil {
			return err
		}
		fmt.Printf("\n  %s Checked out %s\n", cliui.SuccessMark, cliui.NameStyle.Render(target))
	} else {
		fmt.Println()
	}

	opts := git.MergeOptions{
		Squash: c.squash,
		FFOnly: c.ffOnly,
		NoFF:   c.noFF,
	}
	if err := git.Merge(ctx, branch, opts); err != nil {
		return err
	}

	if c.squash {
		fmt.Printf("  %s Staged %s into %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(branch),
			cliui.NameStyle.Render(target),
			cliui.DimStyle.Render("(squashed; run git commit to finish)"),
		)
	} else {
		fmt.Printf("  %s Merged %s into %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(branch),
			cliui.NameStyle.Render(target),
		)
	}

	if c.delete {
		if err := c.deleteSource(ctx, branch); err != nil {
			return err
		}
	}
	fmt.Println()

	return nil
}

func (c *MergeCommander) deleteSource(ctx context.Context, branch string) error {
	if protectedBranches[branch] {
		fmt.Printf("  %s Not deleting protected branch %s\n",
			cliui.WarnStyle.Render("!"), cliui.NameStyle.Render(branch))
		return nil
	}

	if c.squash {
		// A squashed branch is not merged by ancestry, so git branch -d
		// would refuse and -D would discard the only copy of its history
		// before the squash commit exists.
		fmt.Printf("  %s Keeping %s until the squashed changes are committed\n",
			cliui.WarnStyle.Render("!"), cliui.NameStyle.Render(branch))
		return nil
	}

	if err := git.DeleteBranch(ctx, branch, false); err != nil {
		return err
	}
	fmt.Printf("  %s Deleted %s\n", cliui.SuccessMark, cliui.NameStyle.Render(branch))

	return nil
}

func (c *MergeCommander) runCleanup(ctx context.Context) error {
	target, err := c.targetBranch(ctx)
	if err != nil {
		return err
	}

	merged, err := git.MergedBranches(ctx, target)
	if err != nil {
		return err
	}

	var candidates []string
	for _, b := range merged {
		if !protectedBranches[b] {
			candidates = append(candidates, b)
		}
	}

	if len(candidates) == 0 {
		fmt.Printf("\n  %s No merged branches to clean up.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	if c.dryRun {
		fmt.Printf("\n  %s\n\n", cliui.HeaderStyle.Render(
			fmt.Sprintf("Branches merged into %s", target)))
		for _, b := range candidates {
			fmt.Printf("  %s %s\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render(b))
		}
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("Run again without --dry-run to delete."))
		return nil
	}

	fmt.Println()
	for _, b := range candidates {
		if err := git.DeleteBranch(ctx, b, false); err != nil {
			return err
		}
		fmt.Printf("  %s Deleted %s\n", cliui.SuccessMark, cliui.NameStyle.Render(b))
	}
	fmt.Println()

	return nil
}

// targetBranch resolves the branch merged into: --into when given,
// otherwise the current branch.
func (c *MergeCommander) targetBranch(ctx context.Context) (string, error) {
	if c.into != "" {
		return c.into, nil
	}
	return git.CurrentBranch(ctx)
}
