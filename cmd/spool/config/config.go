// Package configcmder provides the config command for managing persistent
// spool configuration stored in the .spool/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent spool configuration.

Configuration is stored as spool.toml in the .spool/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values, and SPOOL_* environment variables sit between the two.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.workers,
  database.driver, database.dsn,
  kafka.brokers, kafka.topic,
  ai.provider, ai.model, ai.target,
  client.server_target, tail.retry, build.watch

Use subcommands to get, set, or list configuration values:
  spool config set <key> <value>    Set a configuration value
  spool config get <key>            Get a configuration value
  spool config list                 List all configuration values

Examples:
  spool config set database.driver postgres
  spool config set ai.provider anthropic
  spool config get server.listen
  spool config list`

const configShortDesc string = "Manage persistent spool configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
