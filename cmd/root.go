package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/lifer/cmd/config"
	"github.com/tphakala/lifer/cmd/importlist"
	"github.com/tphakala/lifer/cmd/lifelist"
	"github.com/tphakala/lifer/cmd/nearby"
	"github.com/tphakala/lifer/cmd/region"
	"github.com/tphakala/lifer/cmd/serve"
	settingscmd "github.com/tphakala/lifer/cmd/settings"
	"github.com/tphakala/lifer/cmd/version"
	"github.com/tphakala/lifer/internal/app"
	"github.com/tphakala/lifer/internal/conf"
	"github.com/tphakala/lifer/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	var (
		configFile string
		central    *logger.CentralLogger
	)

	rootCmd := &cobra.Command{
		Use:           "lifer",
		Short:         "Find birds you have not seen yet",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		logger.Global().Module("cli").Warn("flag binding failed", logger.Error(err))
	}

	versionCmd := version.Command(ctx)
	configCmd := config.Command(ctx)

	rootCmd.AddCommand(
		serve.Command(ctx),
		nearby.Command(ctx),
		importlist.Command(ctx),
		lifelist.Command(ctx),
		region.Command(ctx),
		settingscmd.Command(ctx),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for commands that never read settings
		if cmd == versionCmd || cmd.Parent() == configCmd {
			return nil
		}

		var err error
		central, err = initialize(ctx, configFile)
		return err
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if central == nil {
			return nil
		}
		logger.SetGlobal(nil)
		return central.Close()
	}

	return rootCmd
}

// initialize loads settings from file, environment and flags and installs
// the configured logger.
func initialize(ctx *app.Context, configFile string) (*logger.CentralLogger, error) {
	settings, err := conf.Load(configFile)
	if err != nil {
		return nil, err
	}
	settings.Version = ctx.Build.Version()
	settings.BuildDate = ctx.Build.BuildDate()
	ctx.Settings = settings

	central, err := app.SetupLogging(settings)
	if err != nil {
		return nil, err
	}
	logger.Global().Module("cli").Debug("settings loaded",
		logger.String("version", settings.Version),
		logger.String("database_type", settings.Database.Type))
	return central, nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config file (default: search ./, ~/.config/lifer, /etc/lifer)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().String("apikey", "", "eBird API key")
	rootCmd.PersistentFlags().String("database", "", "Path to the SQLite life-list database")

	for key, flag := range map[string]string{
		"debug":         "debug",
		"ebird.apikey":  "apikey",
		"database.path": "database",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	return nil
}
