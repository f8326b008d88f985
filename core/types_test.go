package core_test

import (
	"testing"
	"time"

	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceRange(t *testing.T) {
	r := core.NewNonceRange(5, 8)
	assert.False(t, r.IsEmpty())
	assert.EqualValues(t, 4, r.Len())
	assert.True(t, r.Contains(5))
	assert.True(t, r.Contains(8))
	assert.False(t, r.Contains(9))
	assert.Equal(t, "5..=8", r.String())

	empty := core.NewNonceRange(5, 4)
	assert.True(t, empty.IsEmpty())
	assert.EqualValues(t, 0, empty.Len())
	assert.False(t, empty.Contains(5))
}

func TestMessageDetailsMapNonces(t *testing.T) {
	m := core.MessageDetailsMap{3: {}, 1: {}, 2: {}}
	assert.Equal(t, []core.MessageNonce{1, 2, 3}, m.Nonces())
}

func TestClientStateValidate(t *testing.T) {
	valid := core.ClientState{
		BestSelf:          core.HeaderID{Number: 10, Hash: "a"},
		BestFinalizedSelf: core.HeaderID{Number: 8, Hash: "b"},
	}
	require.NoError(t, valid.Validate())

	invalid := valid
	invalid.BestFinalizedSelf.Number = 11
	require.Error(t, invalid.Validate())
}

func validParams() core.Params {
	return core.Params{
		Lane:           "0x00000001",
		SourceTick:     time.Second,
		TargetTick:     time.Second,
		ReconnectDelay: time.Second,
		StallTimeout:   time.Minute,
		Delivery: core.MessageDeliveryParams{
			MaxUnrewardedRelayerEntriesAtTarget: 4,
			MaxUnconfirmedNoncesAtTarget:        8,
			MaxMessagesInSingleBatch:            4,
			MaxMessagesWeightInSingleBatch:      100,
			MaxMessagesSizeInSingleBatch:        100,
			RelayerMode:                         core.RelayerModeAltruistic,
		},
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *core.Params)
		valid  bool
	}{
		{"valid", func(p *core.Params) {}, true},
		{"empty relayer mode", func(p *core.Params) { p.Delivery.RelayerMode = "" }, true},
		{"rational relayer mode", func(p *core.Params) { p.Delivery.RelayerMode = core.RelayerModeRational }, true},
		{"unknown relayer mode", func(p *core.Params) { p.Delivery.RelayerMode = "greedy" }, false},
		{"zero source tick", func(p *core.Params) { p.SourceTick = 0 }, false},
		{"negative target tick", func(p *core.Params) { p.TargetTick = -time.Second }, false},
		{"zero stall timeout", func(p *core.Params) { p.StallTimeout = 0 }, false},
		{"negative reconnect delay", func(p *core.Params) { p.ReconnectDelay = -time.Second }, false},
		{"zero relayer entries", func(p *core.Params) { p.Delivery.MaxUnrewardedRelayerEntriesAtTarget = 0 }, false},
		{"zero unconfirmed nonces", func(p *core.Params) { p.Delivery.MaxUnconfirmedNoncesAtTarget = 0 }, false},
		{"zero messages in batch", func(p *core.Params) { p.Delivery.MaxMessagesInSingleBatch = 0 }, false},
		{"batch larger than unconfirmed nonces", func(p *core.Params) { p.Delivery.MaxMessagesInSingleBatch = 9 }, false},
		{"batch equal to unconfirmed nonces", func(p *core.Params) { p.Delivery.MaxMessagesInSingleBatch = 8 }, true},
		{"zero batch weight", func(p *core.Params) { p.Delivery.MaxMessagesWeightInSingleBatch = 0 }, false},
		{"zero batch size", func(p *core.Params) { p.Delivery.MaxMessagesSizeInSingleBatch = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.modify(&p)
			err := p.Validate()
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, core.ErrInvalidParams)
			}
		})
	}
}

func TestTxStatusString(t *testing.T) {
	assert.Equal(t, "lost", core.TxStatusLost.String())
	assert.Equal(t, "finalized", core.TxStatusFinalized.String())
	assert.Equal(t, "invalidated", core.TxStatusInvalidated.String())
	assert.Equal(t, "unknown(7)", core.TxStatus(7).String())
}
