package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"gopkg.in/yaml.v2"
)

// LaneConfig configures a message lane and the chains it bridges
type LaneConfig struct {
	Name   string       `yaml:"name" json:"name"`
	LaneID string       `yaml:"lane_id" json:"lane_id"`
	Source ChainConfig  `yaml:"source" json:"source"`
	Target ChainConfig  `yaml:"target" json:"target"`
	Params ParamsConfig `yaml:"params" json:"params"`
}

// ChainConfig names a chain and holds the settings decoded by the module of its type
type ChainConfig struct {
	Type   string                 `yaml:"type" json:"type"`
	Name   string                 `yaml:"name" json:"name"`
	Config map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// Decode decodes the module specific settings of the chain into out
func (cc ChainConfig) Decode(out interface{}) error {
	bz, err := yaml.Marshal(cc.Config)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(bz, out); err != nil {
		return errors.Wrapf(err, "failed to decode config of %s chain '%s'", cc.Type, cc.Name)
	}
	return nil
}

// ParamsConfig is the file representation of core.Params
type ParamsConfig struct {
	SourceTick     time.Duration              `yaml:"source_tick" json:"source_tick"`
	TargetTick     time.Duration              `yaml:"target_tick" json:"target_tick"`
	ReconnectDelay time.Duration              `yaml:"reconnect_delay,omitempty" json:"reconnect_delay,omitempty"`
	StallTimeout   time.Duration              `yaml:"stall_timeout" json:"stall_timeout"`
	RetryBackoff   core.BackoffParams         `yaml:"retry_backoff" json:"retry_backoff"`
	DeliveryParams core.MessageDeliveryParams `yaml:"delivery_params" json:"delivery_params"`
}

func (lc LaneConfig) Validate() error {
	switch {
	case lc.Name == "":
		return errors.New("lane name must be set")
	case lc.LaneID == "":
		return errors.New("lane_id must be set")
	case lc.Source.Type == "" || lc.Target.Type == "":
		return errors.New("source and target chain types must be set")
	case lc.Source.Type != lc.Target.Type:
		return errors.Newf("source chain type '%s' differs from target chain type '%s'", lc.Source.Type, lc.Target.Type)
	}
	return lc.CoreParams(GlobalConfig{}).Validate()
}

// CoreParams returns the loop params of the lane. Unset durations are inherited from the global config.
func (lc LaneConfig) CoreParams(global GlobalConfig) core.Params {
	p := core.Params{
		Lane:           core.LaneID(lc.LaneID),
		SourceName:     lc.Source.Name,
		TargetName:     lc.Target.Name,
		SourceTick:     lc.Params.SourceTick,
		TargetTick:     lc.Params.TargetTick,
		ReconnectDelay: lc.Params.ReconnectDelay,
		StallTimeout:   lc.Params.StallTimeout,
		RetryBackoff:   lc.Params.RetryBackoff,
		Delivery:       lc.Params.DeliveryParams,
	}
	if p.ReconnectDelay == 0 {
		p.ReconnectDelay = global.ReconnectDelay
	}
	if p.SourceName == "" {
		p.SourceName = lc.Source.Type
	}
	if p.TargetName == "" {
		p.TargetName = lc.Target.Type
	}
	if p.Delivery.RelayerMode == "" {
		p.Delivery.RelayerMode = core.RelayerModeAltruistic
	}
	return p
}
