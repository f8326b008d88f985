package module

import (
	"github.com/hyperledger-labs/yui-lane-relayer/chains/mock"
	"github.com/hyperledger-labs/yui-lane-relayer/config"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
)

type Module struct{}

var _ config.ModuleI = (*Module)(nil)

// Name returns the name of the module
func (Module) Name() string {
	return mock.ChainType
}

// NewLaneClients builds an in-memory lane from the mock chain configs of the lane
func (Module) NewLaneClients(lane config.LaneConfig) (core.SourceClient, core.TargetClient, error) {
	var (
		src mock.SourceConfig
		dst mock.TargetConfig
	)
	if err := lane.Source.Decode(&src); err != nil {
		return nil, nil, err
	}
	if err := lane.Target.Decode(&dst); err != nil {
		return nil, nil, err
	}
	return mock.NewLaneClients(lane.Source.Name, lane.Target.Name, src, dst)
}
