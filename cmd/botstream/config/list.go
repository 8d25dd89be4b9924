package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/papercomputeco/botstream/pkg/config"
)

const listLongDesc string = `List all configuration values.

Prints every key with its value from config.toml or its default. With
--json the values are printed as one JSON object nested by section.

Examples:
  botstream config list
  botstream config list --json`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			if asJSON {
				return runListJSON(cmd.OutOrStdout(), configDir)
			}
			return runList(cmd.OutOrStdout(), configDir)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print values as JSON")

	return cmd
}

func runList(out io.Writer, configDir string) error {
	cfger, err := openConfiger(nil, configDir)
	if err != nil {
		return err
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "Using config file: %s\n\n", target)
	} else {
		fmt.Fprint(out, "No config file found. Using default config.\n\n")
	}

	keys := config.ValidConfigKeys()
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		if value == "" {
			fmt.Fprintf(out, "%-*s = <not set>\n", width, key)
		} else {
			fmt.Fprintf(out, "%-*s = %q\n", width, key, value)
		}
	}

	return nil
}

// runListJSON prints the values keyed by section. Unset keys are omitted.
func runListJSON(out io.Writer, configDir string) error {
	cfger, err := openConfiger(nil, configDir)
	if err != nil {
		return err
	}

	doc := "{}"
	for _, key := range config.ValidConfigKeys() {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if value == "" {
			continue
		}
		if doc, err = sjson.Set(doc, key, value); err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
	}

	_, err = out.Write(pretty.Pretty([]byte(doc)))
	return err
}
