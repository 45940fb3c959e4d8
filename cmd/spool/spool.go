// Package spoolcmder
package spoolcmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/spoolworks/spool/cmd/spool/auth"
	buildcmder "github.com/spoolworks/spool/cmd/spool/build"
	commitcmder "github.com/spoolworks/spool/cmd/spool/commit"
	configcmder "github.com/spoolworks/spool/cmd/spool/config"
	mergecmder "github.com/spoolworks/spool/cmd/spool/merge"
	servecmder "github.com/spoolworks/spool/cmd/spool/serve"
	tagcmder "github.com/spoolworks/spool/cmd/spool/tag"
	tailcmder "github.com/spoolworks/spool/cmd/spool/tail"
	versioncmder "github.com/spoolworks/spool/cmd/version"
)

const spoolLongDesc string = `Spool captures, stores, and replays event streams.

Point any SSE producer at the capture server and every message it emits
is persisted, searchable, and replayable:
  spool serve              Run the capture/replay server
  spool tail <stream>      Follow a stream live
  spool build -- <cmd>     Run a build and stream its progress

Spool also carries the day-to-day release chores:
  spool tag                Cut the next semantic version tag
  spool merge <branch>     Merge a branch with guardrails
  spool commit             Draft a commit message from the staged diff`

const spoolShortDesc string = "Spool - event stream capture and replay"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(tailcmder.NewTailCmd())
	cmd.AddCommand(buildcmder.NewBuildCmd())
	cmd.AddCommand(tagcmder.NewTagCmd())
	cmd.AddCommand(mergecmder.NewMergeCmd())
	cmd.AddCommand(commitcmder.NewCommitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
