package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docsync/internal/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after the config file and flag overrides are
applied. The output is a valid YAML config file.

Examples:
  docsync config
  docsync config --config ./docsync.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			data, err := config.Marshal(cfg)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to render config", err)
			}

			if rootOpts.Format == "json" {
				// Same shape as the file: durations stay strings.
				var doc map[string]any
				if err := yaml.Unmarshal(data, &doc); err != nil {
					return WrapExitError(ExitFailure, "failed to render config", err)
				}
				f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
				return f.Success(doc)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
