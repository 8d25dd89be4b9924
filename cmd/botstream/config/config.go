// Package configcmder provides the config command for managing persistent
// botstream configuration stored in the .botstream/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/botstream/pkg/cliui"
	"github.com/papercomputeco/botstream/pkg/config"
)

const configLongDesc string = `Manage persistent botstream configuration.

Configuration is stored as config.toml in the .botstream/ directory and provides
default values for command flags. CLI flags and BOTSTREAM_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.base_url, client.bot, client.xml_tools, client.timeout, client.max_rounds,
  toolbox.workers, toolbox.queue_size,
  sim.listen, sim.bot, sim.chunk_size

The bot access key is not a config key. Provide it with --access-key or
the BOTSTREAM_ACCESS_KEY environment variable.

Examples:
  botstream config set client.bot my-bot
  botstream config set client.xml_tools true
  botstream config get client.base_url
  botstream config list --json`

const configShortDesc string = "Manage persistent botstream configuration"

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

// completeKeys completes the first argument with the known config keys.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if config.IsValidConfigKey(key) {
		return nil
	}
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

// openConfiger resolves the config file. When out is non-nil the resolved
// path is printed as a header.
func openConfiger(out io.Writer, configDir string) (*config.Configer, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if out == nil {
		return cfger, nil
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
	return cfger, nil
}
