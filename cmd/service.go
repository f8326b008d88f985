package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/config"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/hyperledger-labs/yui-lane-relayer/log"
	"github.com/spf13/cobra"
)

func serviceCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Relay Service Commands",
		Long:  "Commands to manage the relay service",
		RunE:  noCommand,
	}
	cmd.AddCommand(
		startCmd(ctx),
	)
	return cmd
}

func startCmd(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [lane-name...]",
		Short: "Relays messages over the given lanes, or over every configured lane if none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			lanes := ctx.Config.Lanes
			if len(args) > 0 {
				lanes = nil
				for _, name := range args {
					lane, err := ctx.Config.GetLane(name)
					if err != nil {
						return err
					}
					lanes = append(lanes, *lane)
				}
			}
			if len(lanes) == 0 {
				return errors.Wrap(core.ErrInvalidParams, "no lane is configured")
			}

			services := make([]*core.LaneService, 0, len(lanes))
			for _, lane := range lanes {
				srv, err := ctx.BuildLaneService(lane)
				if err != nil {
					return err
				}
				services = append(services, srv)
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.GetLogger().WithModule("cmd")
			logger.InfoContext(sigCtx, "starting relay service", "lanes", len(services))
			if err := core.StartServices(sigCtx, services...); err != nil {
				return err
			}
			logger.InfoContext(sigCtx, "relay service has been stopped")
			return nil
		},
	}
	return cmd
}
