package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperledger-labs/yui-lane-relayer/chains/mock"
	mockmodule "github.com/hyperledger-labs/yui-lane-relayer/chains/mock/module"
	"github.com/hyperledger-labs/yui-lane-relayer/config"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const laneYAML = `
global:
  log_level: DEBUG
  reconnect_delay: 3s
lanes:
- name: millau-rialto
  lane_id: "0x00000000"
  source:
    type: mock
    name: millau
    config:
      messages: 5
      message_dispatch_weight: 10
      message_size: 32
  target:
    type: mock
    name: rialto
    config:
      finality_lag: 2
  params:
    source_tick: 1s
    target_tick: 500ms
    stall_timeout: 5m
    delivery_params:
      max_unrewarded_relayer_entries_at_target: 8
      max_unconfirmed_nonces_at_target: 16
      max_messages_in_single_batch: 4
      max_messages_weight_in_single_batch: 1000
      max_messages_size_in_single_batch: 1000
`

func validLane(name string) config.LaneConfig {
	return config.LaneConfig{
		Name:   name,
		LaneID: "0x00000001",
		Source: config.ChainConfig{Type: mock.ChainType, Name: "millau"},
		Target: config.ChainConfig{Type: mock.ChainType, Name: "rialto"},
		Params: config.ParamsConfig{
			SourceTick:   time.Second,
			TargetTick:   time.Second,
			StallTimeout: time.Minute,
			DeliveryParams: core.MessageDeliveryParams{
				MaxUnrewardedRelayerEntriesAtTarget: 4,
				MaxUnconfirmedNoncesAtTarget:        4,
				MaxMessagesInSingleBatch:            2,
				MaxMessagesWeightInSingleBatch:      100,
				MaxMessagesSizeInSingleBatch:        100,
			},
		},
	}
}

func TestLoadMissingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")
	c, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(path), *c)
	assert.Equal(t, "INFO", c.Global.LogLevel)
	assert.Equal(t, 10*time.Second, c.Global.ReconnectDelay)
}

func TestUnmarshalYAML(t *testing.T) {
	c, err := config.UnmarshalYAML([]byte(laneYAML))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "DEBUG", c.Global.LogLevel)
	// unset global fields keep their defaults
	assert.Equal(t, "text", c.Global.LogFormat)
	assert.Equal(t, "stderr", c.Global.LogOutput)
	assert.Equal(t, 3*time.Second, c.Global.ReconnectDelay)

	lane, err := c.GetLane("millau-rialto")
	require.NoError(t, err)
	assert.Equal(t, time.Second, lane.Params.SourceTick)
	assert.Equal(t, 500*time.Millisecond, lane.Params.TargetTick)
	assert.Equal(t, 5*time.Minute, lane.Params.StallTimeout)
	assert.EqualValues(t, 4, lane.Params.DeliveryParams.MaxMessagesInSingleBatch)

	_, err = c.GetLane("rialto-millau")
	assert.Error(t, err)
}

func TestUnmarshalYAMLRejectsUnknownFields(t *testing.T) {
	_, err := config.UnmarshalYAML([]byte("global:\n  log_levle: DEBUG\n"))
	assert.Error(t, err)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")
	c := config.DefaultConfig(path)
	require.NoError(t, c.AddLane(validLane("millau-rialto")))
	require.NoError(t, c.Save())

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c, *loaded)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{
			name: "duplicate lane",
			modify: func(c *config.Config) {
				c.Lanes = append(c.Lanes, validLane("a"))
			},
		},
		{
			name: "negative reconnect delay",
			modify: func(c *config.Config) {
				c.Global.ReconnectDelay = -time.Second
			},
		},
		{
			name: "missing lane id",
			modify: func(c *config.Config) {
				c.Lanes[0].LaneID = ""
			},
		},
		{
			name: "mixed chain types",
			modify: func(c *config.Config) {
				c.Lanes[0].Target.Type = "tendermint"
			},
		},
		{
			name: "missing chain type",
			modify: func(c *config.Config) {
				c.Lanes[0].Source.Type = ""
			},
		},
		{
			name: "zero tick",
			modify: func(c *config.Config) {
				c.Lanes[0].Params.SourceTick = 0
			},
		},
		{
			name: "batch exceeding unconfirmed limit",
			modify: func(c *config.Config) {
				c.Lanes[0].Params.DeliveryParams.MaxMessagesInSingleBatch = 5
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.DefaultConfig("")
			c.Lanes = []config.LaneConfig{validLane("a")}
			require.NoError(t, c.Validate())
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestAddLane(t *testing.T) {
	c := config.DefaultConfig("")
	require.NoError(t, c.AddLane(validLane("a")))
	assert.Error(t, c.AddLane(validLane("a")))

	invalid := validLane("b")
	invalid.Params.StallTimeout = 0
	assert.Error(t, c.AddLane(invalid))
	assert.Len(t, c.Lanes, 1)
}

func TestCoreParams(t *testing.T) {
	lane := validLane("a")
	global := config.GlobalConfig{ReconnectDelay: 7 * time.Second}

	p := lane.CoreParams(global)
	assert.Equal(t, core.LaneID("0x00000001"), p.Lane)
	assert.Equal(t, "millau", p.SourceName)
	assert.Equal(t, "rialto", p.TargetName)
	assert.Equal(t, 7*time.Second, p.ReconnectDelay)
	assert.Equal(t, core.RelayerModeAltruistic, p.Delivery.RelayerMode)
	require.NoError(t, p.Validate())

	lane.Params.ReconnectDelay = time.Second
	lane.Params.DeliveryParams.RelayerMode = core.RelayerModeRational
	lane.Source.Name = ""
	p = lane.CoreParams(global)
	assert.Equal(t, time.Second, p.ReconnectDelay)
	assert.Equal(t, core.RelayerModeRational, p.Delivery.RelayerMode)
	assert.Equal(t, mock.ChainType, p.SourceName)
}

func TestChainConfigDecode(t *testing.T) {
	cc := config.ChainConfig{
		Type: mock.ChainType,
		Name: "millau",
		Config: map[string]interface{}{
			"finality_lag":  2,
			"messages":      3,
			"message_size":  64,
			"batch_headers": true,
		},
	}

	var src mock.SourceConfig
	err := cc.Decode(&src)
	require.Error(t, err, "batch_headers is not a source setting")

	delete(cc.Config, "batch_headers")
	require.NoError(t, cc.Decode(&src))
	assert.Equal(t, mock.SourceConfig{FinalityLag: 2, Messages: 3, MessageSize: 64}, src)
}

func TestBuildLaneService(t *testing.T) {
	c, err := config.UnmarshalYAML([]byte(laneYAML))
	require.NoError(t, err)
	ctx := &config.Context{Modules: []config.ModuleI{mockmodule.Module{}}, Config: c}

	_, err = ctx.BuildLaneService(c.Lanes[0])
	require.NoError(t, err)

	unknown := c.Lanes[0]
	unknown.Source.Type = "tendermint"
	unknown.Target.Type = "tendermint"
	_, err = ctx.BuildLaneService(unknown)
	assert.Error(t, err)

	invalid := c.Lanes[0]
	invalid.LaneID = ""
	_, err = ctx.BuildLaneService(invalid)
	assert.Error(t, err)
}
