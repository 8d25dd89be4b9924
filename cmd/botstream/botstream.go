// Package botstreamcmder wires the botstream command tree.
package botstreamcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/botstream/cmd/botstream/chat"
	configcmder "github.com/papercomputeco/botstream/cmd/botstream/config"
	initcmder "github.com/papercomputeco/botstream/cmd/botstream/init"
	simcmder "github.com/papercomputeco/botstream/cmd/botstream/sim"
	versioncmder "github.com/papercomputeco/botstream/cmd/version"
	"github.com/papercomputeco/botstream/pkg/cliui"
)

const botstreamLongDesc string = `Botstream talks to conversational bots over their server-sent event
protocol, including tool calling and turn resumption.

Get started with:
  botstream sim        Run a local simulated bot
  botstream chat       Chat with a bot
  botstream config     Manage persistent configuration`

const botstreamShortDesc string = "Botstream - streaming bot client"

func NewBotstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "botstream",
		Short:        botstreamShortDesc,
		Long:         botstreamLongDesc,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				cliui.DisableColor()
			}
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().String("config-dir", "", "Override the .botstream/ directory holding config.toml")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(simcmder.NewSimCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
