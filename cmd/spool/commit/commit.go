// Package commitcmder provides the commit command for drafting commit
// messages from the staged diff.
package commitcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spoolworks/spool/pkg/cliui"
	"github.com/spoolworks/spool/pkg/config"
	"github.com/spoolworks/spool/pkg/credentials"
	"github.com/spoolworks/spool/pkg/eventsource"
	"github.com/spoolworks/spool/pkg/git"
	"github.com/spoolworks/spool/pkg/llm"
	"github.com/spoolworks/spool/pkg/llm/provider"
)

const (
	// maxDiffBytes bounds how much of the staged diff is sent upstream.
	// Large diffs blow past model context windows and add little signal
	// beyond the diffstat.
	maxDiffBytes = 48 * 1024

	// maxMessageTokens bounds the drafted message length.
	maxMessageTokens = 500

	requestTimeout = 2 * time.Minute
)

const systemPrompt = `You write git commit messages from diffs.

Write a conventional commit message for the staged changes: a single
summary line of at most 72 characters in the form "type(scope): subject"
(scope optional), then a blank line, then a short body in plain prose
explaining what changed and why. Wrap body lines at 72 characters.
Output only the commit message, no code fences and no commentary.`

type CommitCommander struct {
	providerType string
	model        string
	target       string
	yes          bool
	configDir    string
	v            *viper.Viper
}

var commitFlags = config.FlagSet{
	config.FlagProvider: {
		Name:        "provider",
		ViperKey:    "ai.provider",
		Description: "LLM provider (openai, anthropic)",
	},
	config.FlagModel: {
		Name:        "model",
		ViperKey:    "ai.model",
		Description: "Model name (empty for the provider default)",
	},
	config.FlagTarget: {
		Name:        "target",
		ViperKey:    "ai.target",
		Description: "Provider API base URL (empty for the provider default)",
	},
}

var commitFlagKeys = []string{
	config.FlagProvider,
	config.FlagModel,
	config.FlagTarget,
}

const commitLongDesc string = `Draft a commit message from the staged diff.

Sends the staged diff to the configured LLM provider, streams back a
conventional-commits message, shows it for review, and commits on
confirmation. Requires staged changes and stored credentials for the
provider (see spool auth).

Examples:
  spool commit                         Draft, review, and commit
  spool commit --yes                   Commit without the confirmation prompt
  spool commit --provider anthropic    Use Anthropic for this draft
  spool commit --model gpt-4o          Override the model`

const commitShortDesc string = "Draft a commit message from the staged diff"

func NewCommitCmd() *cobra.Command {
	cmder := &CommitCommander{}

	cmd := &cobra.Command{
		Use:   "commit",
		Short: commitShortDesc,
		Long:  commitLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, commitFlags, commitFlagKeys)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, commitFlags, config.FlagProvider, &cmder.providerType)
	config.AddStringFlag(cmd, commitFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, commitFlags, config.FlagTarget, &cmder.target)
	cmd.Flags().BoolVarP(&cmder.yes, "yes", "y", false, "Commit without the confirmation prompt")

	return cmd
}

func (c *CommitCommander) run(ctx context.Context) error {
	diff, err := git.StagedDiff(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(diff) == "" {
		return errors.New("no staged changes; stage files with git add first")
	}

	stat, err := git.StagedStat(ctx)
	if err != nil {
		return err
	}

	providerType := c.v.GetString("ai.provider")
	model := c.v.GetString("ai.model")
	target := c.v.GetString("ai.target")

	prov, err := provider.New(providerType)
	if err != nil {
		return err
	}

	apiKey, err := c.resolveKey(prov.Name())
	if err != nil {
		return err
	}

	message, err := c.draft(ctx, prov, target, apiKey, model, stat, diff)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s\n", cliui.HeaderStyle.Render("Proposed commit message"))
	fmt.Println(renderMessage(message))

	if !c.yes {
		ok, err := confirm("Commit with this message?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("\n  %s Aborted.\n\n", cliui.DimStyle.Render("●"))
			return nil
		}
	}

	if err := git.Commit(ctx, message); err != nil {
		return err
	}

	fmt.Printf("\n  %s Committed\n\n%s\n", cliui.SuccessMark, cliui.DimStyle.Render(stat))
	return nil
}

// resolveKey finds the provider API key, preferring the environment over
// stored credentials.
func (c *CommitCommander) resolveKey(providerName string) (string, error) {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	apiKey, err := mgr.ResolveKey(providerName)
	if err != nil {
		return "", err
	}
	if apiKey == "" {
		envVar := credentials.EnvVarForProvider(providerName)
		return "", fmt.Errorf("no API key for %s; run 'spool auth %s' or set %s",
			providerName, providerName, envVar)
	}

	return apiKey, nil
}

// draft streams a completion for the staged diff and returns the
// reassembled message text.
func (c *CommitCommander) draft(ctx context.Context, prov provider.Provider, target, apiKey, model, stat, diff string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	stream := true
	req := &llm.ChatRequest{
		Model:     model,
		System:    systemPrompt,
		Messages:  []llm.Message{llm.NewTextMessage("user", buildPrompt(stat, diff))},
		Stream:    &stream,
		MaxTokens: intPtr(maxMessageTokens),
	}

	httpReq, err := prov.BuildRequest(ctx, target, apiKey, req)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", prov.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s returned %s: %s", prov.Name(), resp.Status, strings.TrimSpace(string(body)))
	}

	var acc llm.Accumulator
	var parseErr error

	err = cliui.Step(os.Stdout, "Drafting commit message", func() error {
		return eventsource.Consume(ctx, resp.Body, eventsource.OnMessage(func(m eventsource.Message) {
			if parseErr != nil {
				return
			}
			chunk, err := prov.ParseChunk([]byte(m.Data))
			if err != nil {
				parseErr = err
				return
			}
			acc.Add(chunk)
		}))
	})
	if err != nil {
		return "", fmt.Errorf("streaming response: %w", err)
	}
	if parseErr != nil {
		return "", fmt.Errorf("parsing response: %w", parseErr)
	}

	message := strings.TrimSpace(acc.Text())
	if message == "" {
		return "", errors.New("provider returned an empty message")
	}

	return message, nil
}

func buildPrompt(stat, diff string) string {
	var b strings.Builder
	b.WriteString("Diffstat:\n")
	b.WriteString(stat)
	b.WriteString("\n\nStaged diff:\n")

	if len(diff) > maxDiffBytes {
		b.WriteString(diff[:maxDiffBytes])
		b.WriteString("\n\n[diff truncated]")
	} else {
		b.WriteString(diff)
	}

	return b.String()
}

// renderMessage formats the drafted message with glamour, falling back to
// indented plain text when rendering fails.
func renderMessage(message string) string {
	out, err := cliui.RenderMarkdown("```\n" + message + "\n```")
	if err != nil {
		var b strings.Builder
		for _, line := range strings.Split(message, "\n") {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		return b.String()
	}
	return out
}

func confirm(prompt string) (bool, error) {
	fmt.Printf("  %s [y/N] ", prompt)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func intPtr(n int) *int { return &n }
