package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the imap configuration file",
		// config commands must work without a valid configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration as YAML",
		Long: `Write a configuration file populated with the defaults so it can be
edited manually. The path defaults to ./` + config.DefaultConfigName + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := config.DefaultConfigName
			if len(args) == 1 {
				target = args[0]
			}
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("config file %s already exists, use --force to overwrite", target)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", target, err)
			}
			if err := config.SaveConfig(target); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			a.out.success("✓ Configuration written:", target)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}
