package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperledger-labs/yui-lane-relayer/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func configCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "manage configuration file",
		RunE:    noCommand,
	}

	cmd.AddCommand(
		configShowCmd(ctx),
		configInitCmd(ctx),
	)

	return cmd
}

// Command for inititalizing an empty config at the --home location
func configInitCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"i"},
		Short:   "Creates a default home directory at path defined by --home",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := ctx.Config.ConfigPath
			// If the config exists, an error is returned...
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			}

			c := config.DefaultConfig(cfgPath)
			if withExample, _ := cmd.Flags().GetBool(flagExampleLane); withExample {
				if err := c.AddLane(exampleMockLane()); err != nil {
					return err
				}
			}
			return c.Save()
		},
	}
	return exampleLaneFlag(cmd)
}

// Command for printing current configuration
func configShowCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"s", "list", "l"},
		Short:   "Prints current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := ctx.Config.ConfigPath
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				return fmt.Errorf("config does not exist: %s", cfgPath)
			}

			out, err := config.MarshalYAML(*ctx.Config)
			if err != nil {
				return err
			}

			fmt.Println(string(out))
			return nil
		},
	}

	return cmd
}

// initConfig reads in config file if it exists
func initConfig(ctx *config.Context, cmd *cobra.Command) error {
	cfgPath := filepath.Join(viper.GetString(flagHome), configPath)
	c, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	ctx.Config = c
	return nil
}
