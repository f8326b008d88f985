package mock

import (
	"context"
	"testing"
	"time"

	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMessage = core.MessageDetails{DispatchWeight: 10, Size: 32, Reward: 1}

func TestChainFinality(t *testing.T) {
	c := newChain("millau", 2)
	require.EqualValues(t, 0, c.finalizedHeight())

	for i := 0; i < 5; i++ {
		c.mine()
	}
	require.EqualValues(t, 5, c.height())
	require.EqualValues(t, 3, c.finalizedHeight())

	st := c.state()
	assert.EqualValues(t, 5, st.BestSelf.Number)
	assert.EqualValues(t, 3, st.BestFinalizedSelf.Number)
	assert.Nil(t, st.BestFinalizedPeerAtBestSelf)
	require.NoError(t, st.Validate())

	_, err := c.storageAt(c.headerID(6))
	assert.Error(t, err)
	_, err = c.storageAt(core.HeaderID{Number: 2, Hash: "unknown"})
	assert.Error(t, err)
	_, err = c.storageAt(c.headerID(2))
	assert.NoError(t, err)
}

func TestHeaderIDsDifferAcrossChains(t *testing.T) {
	a, b := newChain("millau", 0), newChain("rialto", 0)
	assert.NotEqual(t, a.headerID(1), b.headerID(1))
	assert.Equal(t, a.headerID(1), a.headerID(1))
}

func TestPruneRelayers(t *testing.T) {
	tests := []struct {
		name      string
		relayers  []relayerEntry
		confirmed core.MessageNonce
		expected  []relayerEntry
	}{
		{
			name:      "nothing confirmed",
			relayers:  []relayerEntry{{1, 2}, {3, 5}},
			confirmed: 0,
			expected:  []relayerEntry{{1, 2}, {3, 5}},
		},
		{
			name:      "oldest entry confirmed",
			relayers:  []relayerEntry{{1, 2}, {3, 5}},
			confirmed: 2,
			expected:  []relayerEntry{{3, 5}},
		},
		{
			name:      "entry partially confirmed",
			relayers:  []relayerEntry{{1, 2}, {3, 5}},
			confirmed: 4,
			expected:  []relayerEntry{{5, 5}},
		},
		{
			name:      "everything confirmed",
			relayers:  []relayerEntry{{1, 2}, {3, 5}},
			confirmed: 5,
			expected:  []relayerEntry{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := laneStorage{relayers: tt.relayers, confirmed: tt.confirmed}
			s.pruneRelayers()
			assert.ElementsMatch(t, tt.expected, s.relayers)
		})
	}
}

func TestRelayersState(t *testing.T) {
	s := laneStorage{received: 5, relayers: []relayerEntry{{2, 3}, {4, 5}}}
	assert.Equal(t, core.UnrewardedRelayersState{
		UnrewardedRelayerEntries: 2,
		MessagesInOldestEntry:    2,
		TotalMessages:            4,
		LastDeliveredNonce:       5,
	}, s.relayersState())
}

// finalizedSourceHeader mines the source chain and makes its finalized header known by the target
func finalizedSourceHeader(t *testing.T, lane *Lane) core.HeaderID {
	t.Helper()
	ctx := context.Background()
	st, err := lane.Source().State(ctx)
	require.NoError(t, err)
	batch, err := lane.Target().RequireSourceHeaderOnTarget(ctx, st.BestFinalizedSelf)
	require.NoError(t, err)
	require.Nil(t, batch)
	return st.BestFinalizedSelf
}

func waitTracker(t *testing.T, tracker core.TransactionTracker, client core.Client) core.TrackedTransactionStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// mine the block including the transaction
	switch c := client.(type) {
	case *SourceClient:
		_, err := c.State(ctx)
		require.NoError(t, err)
	case *TargetClient:
		_, err := c.State(ctx)
		require.NoError(t, err)
	}
	status, err := tracker.Wait(ctx)
	require.NoError(t, err)
	return status
}

func TestDeliverAndConfirmMessages(t *testing.T) {
	ctx := context.Background()
	lane := NewLane(Options{})
	nonces := lane.GenerateUniformMessages(3, testMessage)
	require.Equal(t, core.NewNonceRange(1, 3), nonces)
	source, target := lane.Source(), lane.Target()

	at := finalizedSourceHeader(t, lane)
	details, err := source.GeneratedMessageDetails(ctx, at, core.NewNonceRange(1, 10))
	require.NoError(t, err)
	require.Equal(t, []core.MessageNonce{1, 2, 3}, details.Nonces())

	proof, err := source.ProveMessages(ctx, at, nonces, core.MessagesProofParameters{})
	require.NoError(t, err)
	artifacts, err := target.SubmitMessagesProof(ctx, nil, at, nonces, proof)
	require.NoError(t, err)
	status := waitTracker(t, artifacts.Tracker, target)
	require.Equal(t, core.TxStatusFinalized, status.Status)
	require.Equal(t, []core.NonceRange{nonces}, lane.Deliveries())
	require.EqualValues(t, 3, lane.TargetReceivedNonce())

	// confirm at the target header including the delivery
	targetState, err := target.State(ctx)
	require.NoError(t, err)
	targetAt := targetState.BestFinalizedSelf
	batch, err := source.RequireTargetHeaderOnSource(ctx, targetAt)
	require.NoError(t, err)
	require.Nil(t, batch)

	receivingProof, err := target.ProveMessagesReceiving(ctx, targetAt)
	require.NoError(t, err)
	require.EqualValues(t, 3, receivingProof.LatestReceivedNonce)
	tracker, err := source.SubmitMessagesReceivingProof(ctx, nil, targetAt, receivingProof)
	require.NoError(t, err)
	status = waitTracker(t, tracker, source)
	require.Equal(t, core.TxStatusFinalized, status.Status)
	require.EqualValues(t, 3, lane.SourceConfirmedNonce())
	require.Equal(t, []core.MessageNonce{3}, lane.Confirmations())
}

func TestSubmitInvalidMessagesProof(t *testing.T) {
	tests := []struct {
		name   string
		modify func(at core.HeaderID, proof *core.MessagesProof) (core.HeaderID, core.NonceRange)
	}{
		{
			name: "tampered proof",
			modify: func(at core.HeaderID, proof *core.MessagesProof) (core.HeaderID, core.NonceRange) {
				proof.Data = makeProof("forged")
				return at, proof.Nonces
			},
		},
		{
			name: "other nonces",
			modify: func(at core.HeaderID, proof *core.MessagesProof) (core.HeaderID, core.NonceRange) {
				return at, core.NewNonceRange(1, 1)
			},
		},
		{
			name: "claimed outbound state",
			modify: func(at core.HeaderID, proof *core.MessagesProof) (core.HeaderID, core.NonceRange) {
				proof.OutboundStateIncluded = true
				return at, proof.Nonces
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			lane := NewLane(Options{})
			nonces := lane.GenerateUniformMessages(2, testMessage)
			at := finalizedSourceHeader(t, lane)

			proof, err := lane.Source().ProveMessages(ctx, at, nonces, core.MessagesProofParameters{})
			require.NoError(t, err)
			submitAt, submitNonces := tt.modify(at, &proof)
			artifacts, err := lane.Target().SubmitMessagesProof(ctx, nil, submitAt, submitNonces, proof)
			require.NoError(t, err)

			status, err := artifacts.Tracker.Wait(ctx)
			require.NoError(t, err)
			assert.Equal(t, core.TxStatusInvalidated, status.Status)
			assert.Empty(t, lane.Deliveries())
		})
	}
}

func TestSubmitMessagesProofAtUnknownHeader(t *testing.T) {
	ctx := context.Background()
	lane := NewLane(Options{})
	nonces := lane.GenerateUniformMessages(2, testMessage)
	st, err := lane.Source().State(ctx)
	require.NoError(t, err)

	proof, err := lane.Source().ProveMessages(ctx, st.BestFinalizedSelf, nonces, core.MessagesProofParameters{})
	require.NoError(t, err)
	artifacts, err := lane.Target().SubmitMessagesProof(ctx, nil, st.BestFinalizedSelf, nonces, proof)
	require.NoError(t, err)
	status, err := artifacts.Tracker.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.TxStatusInvalidated, status.Status)
}

func TestSubmitMessagesProofWithBatchedHeader(t *testing.T) {
	ctx := context.Background()
	lane := NewLane(Options{BatchHeaders: true})
	nonces := lane.GenerateUniformMessages(2, testMessage)
	st, err := lane.Source().State(ctx)
	require.NoError(t, err)
	at := st.BestFinalizedSelf

	batch, err := lane.Target().RequireSourceHeaderOnTarget(ctx, at)
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Equal(t, at, batch.RequiredHeaderID())

	proof, err := lane.Source().ProveMessages(ctx, at, nonces, core.MessagesProofParameters{})
	require.NoError(t, err)
	artifacts, err := lane.Target().SubmitMessagesProof(ctx, batch, at, nonces, proof)
	require.NoError(t, err)
	status := waitTracker(t, artifacts.Tracker, lane.Target())
	assert.Equal(t, core.TxStatusFinalized, status.Status)
	assert.Equal(t, []core.NonceRange{nonces}, lane.Deliveries())

	targetState, err := lane.Target().State(ctx)
	require.NoError(t, err)
	require.NotNil(t, targetState.BestFinalizedPeerAtBestSelf)
	assert.Equal(t, at, *targetState.BestFinalizedPeerAtBestSelf)
}

func TestRequireHeaderRejectsUnfinalizedHeader(t *testing.T) {
	ctx := context.Background()
	lane := NewLane(Options{SourceFinalityLag: 2})
	st, err := lane.Source().State(ctx)
	require.NoError(t, err)

	_, err = lane.Target().RequireSourceHeaderOnTarget(ctx, st.BestSelf)
	assert.Error(t, err)
	_, err = lane.Target().RequireSourceHeaderOnTarget(ctx, st.BestFinalizedSelf)
	assert.NoError(t, err)
}

func TestMaxUnrewardedRelayerEntries(t *testing.T) {
	ctx := context.Background()
	lane := NewLane(Options{MaxUnrewardedRelayerEntries: 1})
	lane.GenerateUniformMessages(2, testMessage)
	source, target := lane.Source(), lane.Target()

	at := finalizedSourceHeader(t, lane)
	for nonce := core.MessageNonce(1); nonce <= 2; nonce++ {
		nonces := core.NewNonceRange(nonce, nonce)
		proof, err := source.ProveMessages(ctx, at, nonces, core.MessagesProofParameters{})
		require.NoError(t, err)
		_, err = target.SubmitMessagesProof(ctx, nil, at, nonces, proof)
		require.NoError(t, err)
	}
	assert.Equal(t, []core.NonceRange{core.NewNonceRange(1, 1)}, lane.Deliveries())
	assert.EqualValues(t, 1, lane.TargetRelayersState().UnrewardedRelayerEntries)
}

func TestStateReadFailures(t *testing.T) {
	ctx := context.Background()
	lane := NewLane(Options{})
	lane.FailSourceStates(1)
	lane.DisconnectTarget()

	_, err := lane.Source().State(ctx)
	require.Error(t, err)
	assert.False(t, core.IsConnectionError(err))
	_, err = lane.Source().State(ctx)
	require.NoError(t, err)

	_, err = lane.Target().State(ctx)
	require.Error(t, err)
	assert.True(t, core.IsConnectionError(err))
	_, err = lane.Target().LatestReceivedNonce(ctx, lane.target.headerID(0))
	assert.True(t, core.IsConnectionError(err))

	require.NoError(t, lane.Target().Reconnect(ctx))
	_, err = lane.Target().State(ctx)
	require.NoError(t, err)

	source, target := lane.Reconnects()
	assert.Equal(t, 0, source)
	assert.Equal(t, 1, target)
}

func TestHeldTrackerWaitsForContext(t *testing.T) {
	lane := NewLane(Options{})
	lane.HoldTrackers(true)
	tracker := lane.submitted(lane.target)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tracker.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeeEstimatingTargetClient(t *testing.T) {
	lane := NewLane(Options{})
	target := lane.TargetWithFeeEstimator(25, 2)

	fee, err := target.EstimateDeliveryTransactionFee(context.Background(), core.NewNonceRange(3, 6), 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 33, fee)
}

func TestNewLaneClients(t *testing.T) {
	source, target, err := NewLaneClients("millau", "rialto", SourceConfig{Messages: 4}, TargetConfig{})
	require.NoError(t, err)
	_, ok := target.(core.DeliveryFeeEstimator)
	assert.False(t, ok)

	st, err := source.State(context.Background())
	require.NoError(t, err)
	generated, err := source.LatestGeneratedNonce(context.Background(), st.BestFinalizedSelf)
	require.NoError(t, err)
	assert.EqualValues(t, 4, generated)

	_, target, err = NewLaneClients("millau", "rialto", SourceConfig{}, TargetConfig{DeliveryBaseFee: 1})
	require.NoError(t, err)
	_, ok = target.(core.DeliveryFeeEstimator)
	assert.True(t, ok)

	_, _, err = NewLaneClients("millau", "rialto", SourceConfig{Messages: -1}, TargetConfig{})
	assert.Error(t, err)
}

func TestUnfinalizedDeliveries(t *testing.T) {
	tests := []struct {
		name   string
		fail   func(*Lane)
		status core.TxStatus
	}{
		{
			name:   "rejected",
			fail:   func(l *Lane) { l.RejectDeliveries(1) },
			status: core.TxStatusInvalidated,
		},
		{
			name:   "lost",
			fail:   func(l *Lane) { l.LoseDeliveries(1) },
			status: core.TxStatusLost,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			lane := NewLane(Options{})
			nonces := lane.GenerateUniformMessages(2, testMessage)
			source, target := lane.Source(), lane.Target()
			tt.fail(lane)

			at := finalizedSourceHeader(t, lane)
			proof, err := source.ProveMessages(ctx, at, nonces, core.MessagesProofParameters{})
			require.NoError(t, err)
			artifacts, err := target.SubmitMessagesProof(ctx, nil, at, nonces, proof)
			require.NoError(t, err)
			require.Equal(t, tt.status, waitTracker(t, artifacts.Tracker, target).Status)
			require.Empty(t, lane.Deliveries())
			require.Zero(t, lane.TargetReceivedNonce())

			// the same proof is accepted once the failures are used up
			artifacts, err = target.SubmitMessagesProof(ctx, nil, at, nonces, proof)
			require.NoError(t, err)
			require.Equal(t, core.TxStatusFinalized, waitTracker(t, artifacts.Tracker, target).Status)
			require.Equal(t, []core.NonceRange{nonces}, lane.Deliveries())
			require.Equal(t, 2, lane.DeliverySubmissions())
		})
	}
}
