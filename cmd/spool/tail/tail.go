// Package tailcmder provides the tail command for following event streams.
package tailcmder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spoolworks/spool/pkg/config"
	"github.com/spoolworks/spool/pkg/eventsource"
	"github.com/spoolworks/spool/pkg/logger"
	"github.com/spoolworks/spool/pkg/utils"
)

// dataPreviewLen bounds the data shown per message in plain mode.
const dataPreviewLen = 120

type TailCommander struct {
	serverTarget string
	lastEventID  string
	headers      []string
	retry        time.Duration
	raw          bool
	tui          bool
	debug        bool
	v            *viper.Viper
}

var tailFlags = config.FlagSet{
	config.FlagServerTarget: {
		Name:        "server-target",
		Shorthand:   "s",
		ViperKey:    "client.server_target",
		Description: "Spool server URL",
	},
}

var tailFlagKeys = []string{
	config.FlagServerTarget,
}

const tailLongDesc string = `Follow an event stream.

Attaches to a stream's replay endpoint on a spool server and renders
messages as they arrive. The connection resumes from the last seen event
id after drops, and honors retry intervals advertised by the server.

The argument is a stream name resolved against client.server_target, or a
full URL of any SSE endpoint.

Examples:
  spool tail builds                        Follow the builds stream
  spool tail builds --tui                  Full-screen view
  spool tail builds --last-event-id 42     Resume after sequence 42
  spool tail builds --raw                  Print only the data payloads
  spool tail https://example.com/events    Follow any SSE endpoint
  spool tail builds --header X-Token=abc   Add a request header`

const tailShortDesc string = "Follow an event stream"

func NewTailCmd() *cobra.Command {
	cmder := &TailCommander{}

	cmd := &cobra.Command{
		Use:   "tail <stream|url>",
		Short: tailShortDesc,
		Long:  tailLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, tailFlags, tailFlagKeys)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context(), args[0])
		},
	}

	config.AddStringFlag(cmd, tailFlags, config.FlagServerTarget, &cmder.serverTarget)
	cmd.Flags().StringVar(&cmder.lastEventID, "last-event-id", "", "Resume after this event id")
	cmd.Flags().StringArrayVar(&cmder.headers, "header", nil, "Extra request header as key=value (repeatable)")
	cmd.Flags().DurationVar(&cmder.retry, "retry", 0, "Initial reconnect interval (0 uses tail.retry)")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print only the data payloads")
	cmd.Flags().BoolVar(&cmder.tui, "tui", false, "Full-screen terminal UI")
	cmd.MarkFlagsMutuallyExclusive("raw", "tui")

	return cmd
}

func (c *TailCommander) run(ctx context.Context, target string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	streamURL, streamName, err := c.resolveTarget(target)
	if err != nil {
		return err
	}

	opts, err := c.clientOptions()
	if err != nil {
		return err
	}
	client := eventsource.NewClient(streamURL, opts...)

	if c.tui {
		return runTailTUI(ctx, client, streamName)
	}

	return c.runPlain(ctx, client, streamName)
}

// resolveTarget turns a stream name or full URL into the endpoint to
// subscribe to and a short name for display.
func (c *TailCommander) resolveTarget(target string) (string, string, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", "", fmt.Errorf("parsing url: %w", err)
		}
		return target, u.Host + u.Path, nil
	}

	server := strings.TrimRight(c.v.GetString("client.server_target"), "/")
	if server == "" {
		return "", "", errors.New("no server target; set client.server_target or pass a full URL")
	}

	streamURL := fmt.Sprintf("%s/streams/%s/replay?follow=true", server, url.PathEscape(target))
	return streamURL, target, nil
}

func (c *TailCommander) clientOptions() ([]eventsource.ClientOption, error) {
	retry := c.retry
	if retry <= 0 {
		retry = config.TailConfig{Retry: c.v.GetString("tail.retry")}.RetryInterval()
	}

	opts := []eventsource.ClientOption{
		eventsource.WithRetryInterval(retry),
	}
	if c.lastEventID != "" {
		opts = append(opts, eventsource.WithLastEventID(c.lastEventID))
	}
	if c.debug {
		opts = append(opts, eventsource.WithLogger(logger.New(logger.WithPretty(true), logger.WithDebug(true))))
	}
	for _, h := range c.headers {
		key, value, found := strings.Cut(h, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("malformed header %q, want key=value", h)
		}
		opts = append(opts, eventsource.WithHeader(key, value))
	}

	return opts, nil
}

// runPlain renders one log line per message until the context is canceled.
func (c *TailCommander) runPlain(ctx context.Context, client *eventsource.Client, streamName string) error {
	l := logger.New(logger.WithPretty(true), logger.WithDebug(c.debug))

	if !c.raw {
		l.Info("following stream", "stream", streamName)
	}

	err := client.Subscribe(ctx, func(m eventsource.Message) {
		if c.raw {
			fmt.Println(m.Data)
			return
		}

		event := m.Event
		if event == "" {
			event = "message"
		}
		preview := utils.Truncate(strings.ReplaceAll(m.Data, "\n", " "), dataPreviewLen)
		l.Info(preview, "id", m.ID, "event", event)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
