package mock

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/hyperledger-labs/yui-lane-relayer/log"
)

// SourceClient is the client of the simulated source chain
type SourceClient struct {
	lane *Lane
}

var _ core.SourceClient = (*SourceClient)(nil)

func (c *SourceClient) Reconnect(ctx context.Context) error {
	c.lane.reconnect(c.lane.source)
	return nil
}

func (c *SourceClient) State(ctx context.Context) (core.SourceClientState, error) {
	l := c.lane
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.source.checkFailure(); err != nil {
		return core.SourceClientState{}, err
	}
	l.source.mine()
	return l.source.state(), nil
}

// storageAt returns the source storage at a header, failing if the client is disconnected
func (c *SourceClient) storageAt(id core.HeaderID) (laneStorage, error) {
	l := c.lane
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.source.checkConnection(); err != nil {
		return laneStorage{}, err
	}
	return l.source.storageAt(id)
}

func (c *SourceClient) LatestGeneratedNonce(ctx context.Context, id core.HeaderID) (core.MessageNonce, error) {
	s, err := c.storageAt(id)
	if err != nil {
		return 0, err
	}
	return s.generated, nil
}

func (c *SourceClient) LatestConfirmedReceivedNonce(ctx context.Context, id core.HeaderID) (core.MessageNonce, error) {
	s, err := c.storageAt(id)
	if err != nil {
		return 0, err
	}
	return s.confirmed, nil
}

func (c *SourceClient) GeneratedMessageDetails(ctx context.Context, id core.HeaderID, nonces core.NonceRange) (core.MessageDetailsMap, error) {
	s, err := c.storageAt(id)
	if err != nil {
		return nil, err
	}
	l := c.lane
	l.mu.Lock()
	defer l.mu.Unlock()
	details := make(core.MessageDetailsMap)
	for nonce := nonces.Begin; nonce <= nonces.End && nonce <= s.generated; nonce++ {
		details[nonce] = l.messages[nonce]
	}
	return details, nil
}

func (c *SourceClient) ProveMessages(ctx context.Context, id core.HeaderID, nonces core.NonceRange, params core.MessagesProofParameters) (core.MessagesProof, error) {
	s, err := c.storageAt(id)
	if err != nil {
		return core.MessagesProof{}, err
	}
	if nonces.IsEmpty() || nonces.Begin == 0 || nonces.End > s.generated {
		return core.MessagesProof{}, errors.Newf("messages %v are not generated at %v", nonces, id)
	}
	return core.MessagesProof{
		AtHeader:              id,
		Nonces:                nonces,
		OutboundStateIncluded: params.OutboundStateProofRequired,
		Data:                  messagesProof(c.lane.source.name, id, nonces, s, params.OutboundStateProofRequired),
	}, nil
}

func (c *SourceClient) SubmitMessagesReceivingProof(ctx context.Context, batch core.BatchTransaction, generatedAt core.HeaderID, proof core.MessagesReceivingProof) (core.TransactionTracker, error) {
	l := c.lane
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.source.checkConnection(); err != nil {
		return nil, err
	}
	if err := applyBatch(l.source, batch, generatedAt); err != nil {
		return nil, err
	}
	if err := l.acceptReceivingProof(generatedAt, proof); err != nil {
		log.GetLogger().WithModule("mock").WarnContext(ctx, "receiving proof is invalidated", "chain", l.source.name, "error", err.Error())
		return l.invalidated(l.source), nil
	}
	return l.submitted(l.source), nil
}

func (l *Lane) acceptReceivingProof(generatedAt core.HeaderID, proof core.MessagesReceivingProof) error {
	if l.rejectConfirmations {
		return errors.New("confirmations are rejected")
	}
	if proof.AtHeader != generatedAt {
		return errors.Newf("proof is generated at %v, but submitted for %v", proof.AtHeader, generatedAt)
	}
	t, err := l.target.storageAt(generatedAt)
	if err != nil {
		return err
	}
	if err := verifyProof(messagesReceivingProof(l.target.name, generatedAt, t), proof.Data); err != nil {
		return err
	}
	src := &l.source.live
	if src.peer == nil || src.peer.Number < generatedAt.Number {
		return errors.Newf("%s header %v is not known by %s", l.target.name, generatedAt, l.source.name)
	}
	if proof.LatestReceivedNonce <= src.confirmed {
		return errors.Newf("nothing to confirm: received=%d confirmed=%d", proof.LatestReceivedNonce, src.confirmed)
	}
	if proof.LatestReceivedNonce > src.generated {
		return errors.Newf("received nonce %d is ahead of generated nonce %d", proof.LatestReceivedNonce, src.generated)
	}
	src.confirmed = proof.LatestReceivedNonce
	l.confirmations = append(l.confirmations, proof.LatestReceivedNonce)
	return nil
}

func (c *SourceClient) RequireTargetHeaderOnSource(ctx context.Context, id core.HeaderID) (core.BatchTransaction, error) {
	return c.lane.requireHeader(c.lane.target, c.lane.source, id)
}
