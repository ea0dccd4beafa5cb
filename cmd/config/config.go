// Package config holds commands that manage the configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/conf"
)

// Command creates the config parent command
func Command(_ *app.Context) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	configCmd.AddCommand(initCommand())

	return configCmd
}

func initCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with default settings",
		Long:  `Write the default settings as YAML. Without a path the file is created under ~/.config/lifer.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := targetPath(args)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			settings, err := conf.DefaultSettings()
			if err != nil {
				return err
			}
			if err := conf.SaveYAMLConfig(path, settings); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func targetPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory, pass a path: %w", err)
	}
	return filepath.Join(home, ".config", "lifer", "config.yaml"), nil
}
