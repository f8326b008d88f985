package config

import (
	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/hyperledger-labs/yui-lane-relayer/otelcore"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/hyperledger-labs/yui-lane-relayer/config")

type Context struct {
	Modules []ModuleI
	Config  *Config
}

// GetModule returns the module handling a chain type
func (ctx *Context) GetModule(chainType string) (ModuleI, error) {
	for _, m := range ctx.Modules {
		if m.Name() == chainType {
			return m, nil
		}
	}
	return nil, errors.Newf("module for chain type '%s' not found", chainType)
}

// BuildLaneService builds the service relaying a configured lane. The clients built by the module
// are wrapped so that every call is traced.
func (ctx *Context) BuildLaneService(lane LaneConfig) (*core.LaneService, error) {
	if err := lane.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid lane '%s'", lane.Name)
	}
	m, err := ctx.GetModule(lane.Source.Type)
	if err != nil {
		return nil, err
	}
	source, target, err := m.NewLaneClients(lane)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build clients of lane '%s'", lane.Name)
	}
	params := lane.CoreParams(ctx.Config.Global)
	return core.NewLaneService(
		params,
		otelcore.NewSourceClient(source, params.Lane, params.SourceName, tracer),
		otelcore.NewTargetClient(target, params.Lane, params.TargetName, tracer),
		core.NewMessageLaneLoopMetrics(params.Lane),
	), nil
}
