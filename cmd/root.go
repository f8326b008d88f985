package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hyperledger-labs/yui-lane-relayer/config"
	"github.com/hyperledger-labs/yui-lane-relayer/internal/telemetry"
	"github.com/hyperledger-labs/yui-lane-relayer/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	homePath    string
	defaultHome = os.ExpandEnv("$HOME/.yui-lane-relayer")
	configPath  = filepath.Join("config", "config.yaml")
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(modules ...config.ModuleI) error {
	rootCmd, err := NewRootCmd(modules...)
	if err != nil {
		return err
	}
	return rootCmd.Execute()
}

// NewRootCmd returns the root command serving chains of the given modules
func NewRootCmd(modules ...config.ModuleI) (*cobra.Command, error) {
	// rootCmd represents the base command when called without any subcommands
	var rootCmd = &cobra.Command{
		Use:   "ylr",
		Short: "This application relays messages over the lanes between configured chains",
	}

	cobra.EnableCommandSorting = false
	rootCmd.SilenceUsage = true

	// Register top level flags --home
	rootCmd.PersistentFlags().StringVar(&homePath, flagHome, defaultHome, "set home directory")
	if err := viper.BindPFlag(flagHome, rootCmd.PersistentFlags().Lookup(flagHome)); err != nil {
		return nil, err
	}

	ctx := &config.Context{Modules: modules, Config: &config.Config{}}
	var shutdownTelemetry func(context.Context) error

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// reads `homeDir/config/config.yaml` into `ctx.Config` before each command
		if err := initConfig(ctx, cmd); err != nil {
			return err
		}
		global := ctx.Config.Global
		if err := log.InitLogger(global.LogLevel, global.LogFormat, global.LogOutput, global.EnableTelemetry); err != nil {
			return err
		}
		if global.EnableTelemetry {
			shutdown, err := telemetry.SetupOTelSDK(cmd.Context())
			if err != nil {
				return err
			}
			shutdownTelemetry = shutdown
		}
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if shutdownTelemetry == nil {
			return nil
		}
		return shutdownTelemetry(context.Background())
	}

	rootCmd.AddCommand(
		configCmd(ctx),
		lanesCmd(ctx),
		serviceCmd(ctx),
		modulesCmd(ctx),
	)

	return rootCmd, nil
}

func noCommand(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}
