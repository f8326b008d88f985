package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/hyperledger-labs/yui-lane-relayer/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

func lanesCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lanes",
		Short: "manage lane configurations",
		Long: `
A lane is a unidirectional message channel from a source chain to a target chain. Its configuration
includes both chains, the polling intervals and the limits applied to every delivery transaction`,
		RunE: noCommand,
	}

	cmd.AddCommand(
		lanesListCmd(ctx),
		lanesShowCmd(ctx),
	)

	return cmd
}

func lanesListCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "print out configured lanes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, lane := range ctx.Config.Lanes {
				fmt.Printf("%s: lane %s %s(%s) -> %s(%s)\n",
					lane.Name, lane.LaneID,
					lane.Source.Name, lane.Source.Type,
					lane.Target.Name, lane.Target.Type,
				)
			}
			return nil
		},
	}
	return cmd
}

func lanesShowCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [lane-name]",
		Short: "print out the configuration of a lane",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lane, err := ctx.Config.GetLane(args[0])
			if err != nil {
				return err
			}
			jsn, _ := cmd.Flags().GetBool(flagJSON)
			yml, _ := cmd.Flags().GetBool(flagYAML)
			switch {
			case yml && jsn:
				return fmt.Errorf("can't pass both --json and --yaml, must pick one")
			case jsn:
				out, err := json.Marshal(lane.CoreParams(ctx.Config.Global))
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			default: // default format is yaml
				out, err := yaml.Marshal(lane)
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
		},
	}
	return yamlFlag(jsonFlag(cmd))
}
