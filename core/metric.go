package core

import (
	"context"

	"github.com/hyperledger-labs/yui-lane-relayer/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

// MessageLaneLoopMetrics updates the lane instruments from the loop state.
// A nil *MessageLaneLoopMetrics is valid and records nothing.
type MessageLaneLoopMetrics struct {
	lane attribute.KeyValue
}

// NewMessageLaneLoopMetrics returns the metrics of a lane. telemetry.InitializeMetrics must have been called,
// otherwise nil is returned.
func NewMessageLaneLoopMetrics(lane LaneID) *MessageLaneLoopMetrics {
	if telemetry.BestBlockNumberGauge == nil {
		return nil
	}
	return &MessageLaneLoopMetrics{lane: AttributeKeyLaneID.String(string(lane))}
}

func (m *MessageLaneLoopMetrics) updateClientState(side string, state ClientState) {
	if m == nil {
		return
	}
	sideAttr := AttributeKeySide.String(side)
	telemetry.BestBlockNumberGauge.Set(int64(state.BestSelf.Number), m.lane, sideAttr, AttributeKeyType.String("best_self"))
	telemetry.BestBlockNumberGauge.Set(int64(state.BestFinalizedSelf.Number), m.lane, sideAttr, AttributeKeyType.String("best_finalized_self"))
	if state.BestFinalizedPeerAtBestSelf != nil {
		telemetry.BestBlockNumberGauge.Set(int64(state.BestFinalizedPeerAtBestSelf.Number), m.lane, sideAttr, AttributeKeyType.String("best_finalized_peer_at_best_self"))
	}
}

// UpdateSourceState records the block numbers of a source state
func (m *MessageLaneLoopMetrics) UpdateSourceState(state SourceClientState) {
	m.updateClientState("source", state)
}

// UpdateTargetState records the block numbers of a target state
func (m *MessageLaneLoopMetrics) UpdateTargetState(state TargetClientState) {
	m.updateClientState("target", state)
}

func (m *MessageLaneLoopMetrics) updateNonce(kind string, nonce MessageNonce) {
	if m == nil {
		return
	}
	telemetry.LaneNonceGauge.Set(int64(nonce), m.lane, AttributeKeyType.String(kind))
}

// UpdateSourceNonces records the nonces read from the source chain
func (m *MessageLaneLoopMetrics) UpdateSourceNonces(latestGenerated, latestConfirmed MessageNonce) {
	m.updateNonce("source_latest_generated", latestGenerated)
	m.updateNonce("source_latest_confirmed", latestConfirmed)
}

// UpdateTargetNonces records the nonces read from the target chain
func (m *MessageLaneLoopMetrics) UpdateTargetNonces(latestReceived, latestConfirmed MessageNonce) {
	m.updateNonce("target_latest_received", latestReceived)
	m.updateNonce("target_latest_confirmed", latestConfirmed)
}

// NoncesSubmitted counts the nonces covered by a submitted proof
func (m *MessageLaneLoopMetrics) NoncesSubmitted(ctx context.Context, race string, nonces NonceRange) {
	if m == nil {
		return
	}
	telemetry.SubmittedNoncesCounter.Add(ctx, int64(nonces.Len()), api.WithAttributes(m.lane, AttributeKeyRace.String(race)))
}

// LoopRestarted counts a restart of the lane loop
func (m *MessageLaneLoopMetrics) LoopRestarted(ctx context.Context) {
	if m == nil {
		return
	}
	telemetry.LoopRestartsCounter.Add(ctx, 1, api.WithAttributes(m.lane))
}
