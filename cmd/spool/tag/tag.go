// Package tagcmder provides the tag command for cutting semantic version tags.
package tagcmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/spoolworks/spool/pkg/cliui"
	"github.com/spoolworks/spool/pkg/git"
)

// firstVersion is used when the repository has no tags yet.
const firstVersion = "0.1.0"

type TagCommander struct {
	major   bool
	minor   bool
	patch   bool
	pre     string
	message string
	push    bool
	dryRun  bool
	force   bool
}

const tagLongDesc string = `Cut the next semantic version tag.

Reads the latest tag reachable from HEAD, bumps it per the requested
component (patch by default), and creates the tag. Tags follow the
v<major>.<minor>.<patch> convention. A repository with no tags starts
at v0.1.0.

The command refuses to tag a dirty worktree unless --force is given.

Examples:
  spool tag                    v1.2.3 -> v1.2.4
  spool tag --minor            v1.2.3 -> v1.3.0
  spool tag --major --push     v1.2.3 -> v2.0.0, pushed to origin
  spool tag --pre rc.1         v1.2.3 -> v1.2.4-rc.1
  spool tag --dry-run          Show the next tag without creating it`

const tagShortDesc string = "Cut the next semantic version tag"

func NewTagCmd() *cobra.Command {
	cmder := &TagCommander{}

	cmd := &cobra.Command{
		Use:   "tag",
		Short: tagShortDesc,
		Long:  tagLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&cmder.major, "major", false, "Bump the major version")
	cmd.Flags().BoolVar(&cmder.minor, "minor", false, "Bump the minor version")
	cmd.Flags().BoolVar(&cmder.patch, "patch", false, "Bump the patch version (default)")
	cmd.Flags().StringVar(&cmder.pre, "pre", "", "Pre-release identifier (e.g. rc.1)")
	cmd.Flags().StringVarP(&cmder.message, "message", "m", "", "Annotation message (creates an annotated tag)")
	cmd.Flags().BoolVar(&cmder.push, "push", false, "Push the new tag to origin")
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "Show the next tag without creating it")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Tag even when the worktree is dirty")
	cmd.MarkFlagsMutuallyExclusive("major", "minor", "patch")

	return cmd
}

func (c *TagCommander) run(ctx context.Context) error {
	if !c.force {
		clean, err := git.IsClean(ctx)
		if err != nil {
			return err
		}
		if !clean {
			return errors.New("worktree has uncommitted changes (use --force to tag anyway)")
		}
	}

	current, next, err := c.nextVersion(ctx)
	if err != nil {
		return err
	}

	name := "v" + next.String()

	if c.dryRun {
		if current == "" {
			fmt.Printf("\n  %s No tags yet. Would create %s\n\n",
				cliui.DimStyle.Render("●"), cliui.NameStyle.Render(name))
		} else {
			fmt.Printf("\n  %s Would tag %s %s\n\n",
				cliui.DimStyle.Render("●"),
				cliui.NameStyle.Render(name),
				cliui.DimStyle.Render("(current: "+current+")"),
			)
		}
		return nil
	}

	if err := git.CreateTag(ctx, name, c.message); err != nil {
		return err
	}

	fmt.Printf("\n  %s Tagged %s", cliui.SuccessMark, cliui.NameStyle.Render(name))
	if current != "" {
		fmt.Printf(" %s", cliui.DimStyle.Render("(was "+current+")"))
	}
	fmt.Println()

	if c.push {
		if err := git.PushTag(ctx, name); err != nil {
			return err
		}
		fmt.Printf("  %s Pushed %s to origin\n", cliui.SuccessMark, cliui.NameStyle.Render(name))
	}
	fmt.Println()

	return nil
}

// nextVersion computes the bumped version from the latest reachable tag.
// Returns the current tag name ("" when the repo has no tags) and the next
// version.
func (c *TagCommander) nextVersion(ctx context.Context) (string, *semver.Version, error) {
	current, err := git.LatestTag(ctx)
	if err != nil {
		if !errors.Is(err, git.ErrNoTags) {
			return "", nil, err
		}
		first, err := c.applyPre(semver.MustParse(firstVersion))
		return "", first, err
	}

	v, err := semver.NewVersion(current)
	if err != nil {
		return "", nil, fmt.Errorf("latest tag %q is not semver: %w", current, err)
	}

	var bumped semver.Version
	switch {
	case c.major:
		bumped = v.IncMajor()
	case c.minor:
		bumped = v.IncMinor()
	default:
		bumped = v.IncPatch()
	}

	next, err := c.applyPre(&bumped)
	return current, next, err
}

func (c *TagCommander) applyPre(v *semver.Version) (*semver.Version, error) {
	if c.pre == "" {
		return v, nil
	}
	withPre, err := v.SetPrerelease(c.pre)
	if err != nil {
		return nil, fmt.Errorf("invalid pre-release %q: %w", c.pre, err)
	}
	return &withPre, nil
}
