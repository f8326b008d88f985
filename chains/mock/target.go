package mock

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/hyperledger-labs/yui-lane-relayer/log"
)

// TargetClient is the client of the simulated target chain
type TargetClient struct {
	lane *Lane
}

var _ core.TargetClient = (*TargetClient)(nil)

func (c *TargetClient) Reconnect(ctx context.Context) error {
	c.lane.reconnect(c.lane.target)
	return nil
}

func (c *TargetClient) State(ctx context.Context) (core.TargetClientState, error) {
	l := c.lane
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.target.checkFailure(); err != nil {
		return core.TargetClientState{}, err
	}
	l.target.mine()
	return l.target.state(), nil
}

func (c *TargetClient) storageAt(id core.HeaderID) (laneStorage, error) {
	l := c.lane
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.target.checkConnection(); err != nil {
		return laneStorage{}, err
	}
	return l.target.storageAt(id)
}

func (c *TargetClient) LatestReceivedNonce(ctx context.Context, id core.HeaderID) (core.MessageNonce, error) {
	s, err := c.storageAt(id)
	if err != nil {
		return 0, err
	}
	return s.received, nil
}

func (c *TargetClient) LatestConfirmedReceivedNonce(ctx context.Context, id core.HeaderID) (core.MessageNonce, error) {
	s, err := c.storageAt(id)
	if err != nil {
		return 0, err
	}
	return s.confirmed, nil
}

func (c *TargetClient) UnrewardedRelayersState(ctx context.Context, id core.HeaderID) (core.UnrewardedRelayersState, error) {
	s, err := c.storageAt(id)
	if err != nil {
		return core.UnrewardedRelayersState{}, err
	}
	return s.relayersState(), nil
}

func (c *TargetClient) ProveMessagesReceiving(ctx context.Context, id core.HeaderID) (core.MessagesReceivingProof, error) {
	s, err := c.storageAt(id)
	if err != nil {
		return core.MessagesReceivingProof{}, err
	}
	return core.MessagesReceivingProof{
		AtHeader:            id,
		LatestReceivedNonce: s.received,
		RelayersState:       s.relayersState(),
		Data:                messagesReceivingProof(c.lane.target.name, id, s),
	}, nil
}

func (c *TargetClient) SubmitMessagesProof(ctx context.Context, batch core.BatchTransaction, generatedAt core.HeaderID, nonces core.NonceRange, proof core.MessagesProof) (*core.NoncesSubmitArtifacts, error) {
	l := c.lane
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.target.checkConnection(); err != nil {
		return nil, err
	}
	if err := applyBatch(l.target, batch, generatedAt); err != nil {
		return nil, err
	}
	l.deliverySubmissions++
	if l.loseDeliveries > 0 {
		l.loseDeliveries--
		return &core.NoncesSubmitArtifacts{Nonces: nonces, Tracker: l.lost(l.target)}, nil
	}
	if err := l.acceptMessagesProof(generatedAt, nonces, proof); err != nil {
		log.GetLogger().WithModule("mock").WarnContext(ctx, "messages proof is invalidated", "chain", l.target.name, "error", err.Error())
		return &core.NoncesSubmitArtifacts{Nonces: nonces, Tracker: l.invalidated(l.target)}, nil
	}
	return &core.NoncesSubmitArtifacts{Nonces: nonces, Tracker: l.submitted(l.target)}, nil
}

// acceptMessagesProof applies a delivery to the target storage if the transaction is valid
func (l *Lane) acceptMessagesProof(generatedAt core.HeaderID, nonces core.NonceRange, proof core.MessagesProof) error {
	if l.rejectDeliveries > 0 {
		l.rejectDeliveries--
		return errors.New("messages proof is rejected")
	}
	if proof.AtHeader != generatedAt || proof.Nonces != nonces {
		return errors.Newf("proof of %v at %v is submitted as %v at %v", proof.Nonces, proof.AtHeader, nonces, generatedAt)
	}
	src, err := l.source.storageAt(generatedAt)
	if err != nil {
		return err
	}
	if err := verifyProof(messagesProof(l.source.name, generatedAt, nonces, src, proof.OutboundStateIncluded), proof.Data); err != nil {
		return err
	}

	next := l.target.live.clone()
	if next.peer == nil || next.peer.Number < generatedAt.Number {
		return errors.Newf("%s header %v is not known by %s", l.source.name, generatedAt, l.target.name)
	}
	if nonces.Begin != next.received+1 {
		return errors.Newf("messages %v do not follow received nonce %d", nonces, next.received)
	}
	if proof.OutboundStateIncluded && src.confirmed > next.confirmed {
		next.confirmed = src.confirmed
		next.pruneRelayers()
	}
	if limit := l.opts.MaxUnrewardedRelayerEntries; limit > 0 && uint64(len(next.relayers)) >= limit {
		return errors.Newf("too many unrewarded relayer entries: %d", len(next.relayers))
	}
	next.received = nonces.End
	next.relayers = append(next.relayers, relayerEntry{begin: nonces.Begin, end: nonces.End})

	l.target.live = next
	l.deliveries = append(l.deliveries, nonces)
	return nil
}

func (c *TargetClient) RequireSourceHeaderOnTarget(ctx context.Context, id core.HeaderID) (core.BatchTransaction, error) {
	return c.lane.requireHeader(c.lane.source, c.lane.target, id)
}

// FeeEstimatingTargetClient is a target client pricing delivery transactions
type FeeEstimatingTargetClient struct {
	*TargetClient
	baseFee       core.Balance
	perMessageFee core.Balance
}

var _ core.DeliveryFeeEstimator = (*FeeEstimatingTargetClient)(nil)

func (c *FeeEstimatingTargetClient) EstimateDeliveryTransactionFee(ctx context.Context, nonces core.NonceRange, totalDispatchWeight, totalSize uint64) (core.Balance, error) {
	return c.baseFee + c.perMessageFee*nonces.Len(), nil
}
