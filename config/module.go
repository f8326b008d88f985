package config

import (
	"github.com/hyperledger-labs/yui-lane-relayer/core"
)

// ModuleI defines an interface of Module
type ModuleI interface {
	// Name returns the name of the module. It is the chain type handled by the module.
	Name() string

	// NewLaneClients builds the clients of a lane whose chains are of the module type
	NewLaneClients(lane LaneConfig) (core.SourceClient, core.TargetClient, error)
}
