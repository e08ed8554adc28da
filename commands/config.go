package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridpointer/config"
)

func addConfig(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file.",
	}

	force := false
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := global.configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file.")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config as JSON.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			cfg, _, err := global.loadConfig()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := global.configPath()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	topLevel.AddCommand(cmd)
}
