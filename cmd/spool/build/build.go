// Package buildcmder provides the build command for running builds with
// progress streaming.
package buildcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spoolworks/spool/pkg/cliui"
	"github.com/spoolworks/spool/pkg/config"
	"github.com/spoolworks/spool/pkg/utils"
)

const (
	// debounceInterval coalesces bursts of file events into one rebuild.
	debounceInterval = 500 * time.Millisecond

	// maxLineBytes bounds scanner line length; some bundlers emit very
	// long single-line summaries.
	maxLineBytes = 1024 * 1024

	// lineKeep bounds the output line carried inside a progress event.
	lineKeep = 200
)

type BuildCommander struct {
	notify     string
	stream     string
	watch      bool
	watchPaths []string
	configDir  string
	v          *viper.Viper
}

var buildFlags = config.FlagSet{
	config.FlagWatchPaths: {
		Name:        "watch-paths",
		ViperKey:    "build.watch",
		Description: "Paths watched in --watch mode",
	},
}

var buildFlagKeys = []string{
	config.FlagWatchPaths,
}

const buildLongDesc string = `Run a build command and stream its progress.

The wrapped command's output passes through unchanged. Lines carrying a
percentage or a step counter ("42%", "[3/10]") become progress events.
With --notify the events are streamed to a spool server's ingest endpoint
as they happen, so spool tail can follow a build from another terminal.

With --watch the build re-runs whenever a watched path changes, debounced
so a burst of saves triggers one rebuild. Watch paths come from build.watch
or --watch-paths.

Everything after -- is the build command.

Examples:
  spool build -- make
  spool build -- npm run build
  spool build --notify http://localhost:8080 -- make
  spool build --watch --watch-paths src,include -- make
  spool build --notify http://localhost:8080 --stream web-builds -- npm run build`

const buildShortDesc string = "Run a build command and stream its progress"

func NewBuildCmd() *cobra.Command {
	cmder := &BuildCommander{}

	cmd := &cobra.Command{
		Use:   "build -- <command> [args...]",
		Short: buildShortDesc,
		Long:  buildLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, buildFlags, buildFlagKeys)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.ArgsLenAtDash() > 0 {
				return errors.New("unexpected arguments before --")
			}
			return cmder.run(cmd.Context(), args)
		},
	}

	config.AddStringSliceFlag(cmd, buildFlags, config.FlagWatchPaths, &cmder.watchPaths)
	cmd.Flags().StringVar(&cmder.notify, "notify", "", "Spool server URL to stream progress events to")
	cmd.Flags().StringVar(&cmder.stream, "stream", "builds", "Stream name for notify events")
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Re-run the build when watched paths change")

	return cmd
}

func (c *BuildCommander) run(ctx context.Context, cmdArgs []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !c.watch {
		return c.runBuild(ctx, cmdArgs, 1)
	}

	return c.watchLoop(ctx, cmdArgs, c.v.GetStringSlice("build.watch"))
}

// runBuild runs one build, relaying output and emitting progress events.
// The returned error is the build failure itself, or an infrastructure
// problem starting it.
func (c *BuildCommander) runBuild(ctx context.Context, cmdArgs []string, buildNum int) error {
	cmdline := strings.Join(cmdArgs, " ")
	start := time.Now()

	child := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	stdout, err := child.StdoutPipe()
	if err != nil {
		return fmt.Errorf("piping stdout: %w", err)
	}
	stderr, err := child.StderrPipe()
	if err != nil {
		return fmt.Errorf("piping stderr: %w", err)
	}

	var n *notifier
	if c.notify != "" {
		n, err = startNotifier(ctx, c.notify, c.stream)
		if err != nil {
			return fmt.Errorf("attaching notify stream: %w", err)
		}
	}

	fmt.Printf("\n  %s %s\n\n", cliui.StepStyle.Render("▶"), cmdline)

	if err := child.Start(); err != nil {
		if n != nil {
			n.Close()
		}
		return fmt.Errorf("starting build: %w", err)
	}

	if n != nil {
		n.emit("start", buildEvent{Build: buildNum, Command: cmdline})
	}

	state := &progressState{}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.relay(stdout, os.Stdout, n, state, buildNum)
	}()
	go func() {
		defer wg.Done()
		c.relay(stderr, os.Stderr, n, state, buildNum)
	}()
	wg.Wait()

	buildErr := child.Wait()
	elapsed := time.Since(start)

	if n != nil {
		status, code := "ok", 0
		if buildErr != nil {
			status, code = "failed", exitCode(buildErr)
		}
		n.emit("done", buildEvent{
			Build:     buildNum,
			Status:    status,
			ExitCode:  code,
			ElapsedMS: elapsed.Milliseconds(),
		})
		if err := n.Close(); err != nil {
			fmt.Printf("  %s notify stream: %v\n", cliui.WarnStyle.Render("!"), err)
		}
	}

	if buildErr != nil {
		fmt.Printf("\n  %s Build failed in %s\n\n", cliui.FailMark, cliui.FormatDuration(elapsed))
		return fmt.Errorf("build failed: %w", buildErr)
	}

	fmt.Printf("\n  %s Build succeeded in %s\n\n", cliui.SuccessMark, cliui.FormatDuration(elapsed))
	return nil
}

// relay copies build output through to w line by line, turning
// percent-bearing lines into progress events. Emit failures are ignored
// here; the transport error surfaces when the notifier closes.
func (c *BuildCommander) relay(r io.Reader, w io.Writer, n *notifier, state *progressState, buildNum int) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(w, line)

		pct, ok := extractPercent(line)
		if !ok || !state.update(pct) {
			continue
		}

		if n != nil {
			p := pct
			n.emit("progress", buildEvent{
				Build:   buildNum,
				Percent: &p,
				Line:    utils.Truncate(line, lineKeep),
			})
		}
	}
}

// watchLoop re-runs the build on file changes until the context is
// canceled. Build failures keep the loop alive; only watcher failures
// end it.
func (c *BuildCommander) watchLoop(ctx context.Context, cmdArgs, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
	}

	buildNum := 1
	c.runWatched(ctx, cmdArgs, buildNum)
	c.printWaiting(paths)

	debounce := time.NewTimer(debounceInterval)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n  %s Watch stopped.\n\n", cliui.DimStyle.Render("●"))
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(debounceInterval)

		case <-debounce.C:
			buildNum++
			c.runWatched(ctx, cmdArgs, buildNum)
			c.printWaiting(paths)

		case err := <-watcher.Errors:
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// runWatched runs one build in watch mode, where a failed build is
// reported but never ends the loop.
func (c *BuildCommander) runWatched(ctx context.Context, cmdArgs []string, buildNum int) {
	if err := c.runBuild(ctx, cmdArgs, buildNum); err != nil && ctx.Err() == nil {
		fmt.Printf("  %s %v\n", cliui.WarnStyle.Render("!"), err)
	}
}

func (c *BuildCommander) printWaiting(paths []string) {
	fmt.Printf("  %s\n", cliui.DimStyle.Render(
		fmt.Sprintf("● watching %s for changes...", strings.Join(paths, ", "))))
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
