package cmd

import (
	"time"

	"github.com/hyperledger-labs/yui-lane-relayer/config"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagHome        = "home"
	flagJSON        = "json"
	flagYAML        = "yaml"
	flagExampleLane = "example-lane"
)

func yamlFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagYAML, "y", false, "output using yaml")
	if err := viper.BindPFlag(flagYAML, cmd.Flags().Lookup(flagYAML)); err != nil {
		panic(err)
	}
	return cmd
}

func jsonFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagJSON, "j", false, "returns the response in json format")
	if err := viper.BindPFlag(flagJSON, cmd.Flags().Lookup(flagJSON)); err != nil {
		panic(err)
	}
	return cmd
}

func exampleLaneFlag(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().Bool(flagExampleLane, false, "add an example lane between two mock chains")
	if err := viper.BindPFlag(flagExampleLane, cmd.Flags().Lookup(flagExampleLane)); err != nil {
		panic(err)
	}
	return cmd
}

func exampleMockLane() config.LaneConfig {
	return config.LaneConfig{
		Name:   "mock-example",
		LaneID: "0x00000000",
		Source: config.ChainConfig{
			Type: "mock",
			Name: "millau",
			Config: map[string]interface{}{
				"finality_lag":            2,
				"messages":                100,
				"message_dispatch_weight": 1000,
				"message_size":            128,
				"message_reward":          10,
			},
		},
		Target: config.ChainConfig{
			Type: "mock",
			Name: "rialto",
			Config: map[string]interface{}{
				"finality_lag":                   1,
				"max_unrewarded_relayer_entries": 16,
			},
		},
		Params: config.ParamsConfig{
			SourceTick:   time.Second,
			TargetTick:   time.Second,
			StallTimeout: 5 * time.Minute,
			RetryBackoff: core.DefaultBackoffParams(),
			DeliveryParams: core.MessageDeliveryParams{
				MaxUnrewardedRelayerEntriesAtTarget: 16,
				MaxUnconfirmedNoncesAtTarget:        64,
				MaxMessagesInSingleBatch:            8,
				MaxMessagesWeightInSingleBatch:      1_000_000,
				MaxMessagesSizeInSingleBatch:        1 << 20,
				RelayerMode:                         core.RelayerModeAltruistic,
			},
		},
	}
}
