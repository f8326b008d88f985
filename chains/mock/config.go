package mock

import (
	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
)

// ChainType is the chain type served by the mock module
const ChainType = "mock"

// SourceConfig configures the simulated source chain of a configured lane
type SourceConfig struct {
	FinalityLag           uint64       `yaml:"finality_lag"`
	Messages              int          `yaml:"messages"`
	MessageDispatchWeight uint64       `yaml:"message_dispatch_weight"`
	MessageSize           uint32       `yaml:"message_size"`
	MessageReward         core.Balance `yaml:"message_reward"`
}

// TargetConfig configures the simulated target chain of a configured lane
type TargetConfig struct {
	FinalityLag                 uint64 `yaml:"finality_lag"`
	BatchHeaders                bool   `yaml:"batch_headers"`
	MaxUnrewardedRelayerEntries uint64 `yaml:"max_unrewarded_relayer_entries"`
	// the target client estimates delivery fees if any of the fees is set
	DeliveryBaseFee       core.Balance `yaml:"delivery_base_fee"`
	DeliveryFeePerMessage core.Balance `yaml:"delivery_fee_per_message"`
}

func (c SourceConfig) Validate() error {
	if c.Messages < 0 {
		return errors.New("messages must not be negative")
	}
	return nil
}

// NewLaneClients builds a lane with the configured messages already generated
func NewLaneClients(sourceName, targetName string, src SourceConfig, dst TargetConfig) (core.SourceClient, core.TargetClient, error) {
	if err := src.Validate(); err != nil {
		return nil, nil, err
	}
	lane := NewLane(Options{
		SourceName:                  sourceName,
		TargetName:                  targetName,
		SourceFinalityLag:           src.FinalityLag,
		TargetFinalityLag:           dst.FinalityLag,
		BatchHeaders:                dst.BatchHeaders,
		MaxUnrewardedRelayerEntries: dst.MaxUnrewardedRelayerEntries,
	})
	lane.GenerateUniformMessages(src.Messages, core.MessageDetails{
		DispatchWeight: src.MessageDispatchWeight,
		Size:           src.MessageSize,
		Reward:         src.MessageReward,
	})
	if dst.DeliveryBaseFee > 0 || dst.DeliveryFeePerMessage > 0 {
		return lane.Source(), lane.TargetWithFeeEstimator(dst.DeliveryBaseFee, dst.DeliveryFeePerMessage), nil
	}
	return lane.Source(), lane.Target(), nil
}
