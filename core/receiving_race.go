package core

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const receivingRaceName = "receiving"

// receivingRace confirms delivered messages back to the source chain
type receivingRace struct {
	lane                        LaneID
	source                      SourceClient
	target                      TargetClient
	maxUnrewardedRelayerEntries uint64
	metrics                     *MessageLaneLoopMetrics
	logger                      *log.RelayLogger

	targetQueue    headerNonceQueue
	targetAt       *HeaderID
	targetRelayers UnrewardedRelayersState

	sourceState     *SourceClientState
	sourceAt        *HeaderID
	sourceConfirmed MessageNonce

	// after a resolved confirmation, selection waits for a source confirmed nonce read at or above minSourceHeader
	awaitingSourceHeader bool
	minSourceHeader      uint64
}

var _ raceStrategy = (*receivingRace)(nil)

func newReceivingRace(lane LaneID, source SourceClient, target TargetClient, params MessageDeliveryParams, metrics *MessageLaneLoopMetrics, logger *log.RelayLogger) *receivingRace {
	return &receivingRace{
		lane:                        lane,
		source:                      source,
		target:                      target,
		maxUnrewardedRelayerEntries: params.MaxUnrewardedRelayerEntriesAtTarget,
		metrics:                     metrics,
		logger:                      logger,
	}
}

func (r *receivingRace) updateSourceState(ctx context.Context, state SourceClientState) error {
	r.sourceState = &state
	at := state.BestFinalizedSelf
	if r.sourceAt == nil || *r.sourceAt != at {
		confirmed, err := r.source.LatestConfirmedReceivedNonce(ctx, at)
		if err != nil {
			return errors.Wrapf(err, "failed to read latest confirmed nonce at source header %v", at)
		}
		r.sourceConfirmed = confirmed
		r.sourceAt = &at
		r.targetQueue.prune(confirmed)
	}
	if r.awaitingSourceHeader && r.sourceAt.Number >= r.minSourceHeader {
		r.awaitingSourceHeader = false
	}
	return nil
}

func (r *receivingRace) updateTargetState(ctx context.Context, state TargetClientState) error {
	at := state.BestFinalizedSelf
	if r.targetAt != nil && *r.targetAt == at {
		return nil
	}
	received, err := r.target.LatestReceivedNonce(ctx, at)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest received nonce at target header %v", at)
	}
	relayers, err := r.target.UnrewardedRelayersState(ctx, at)
	if err != nil {
		return errors.Wrapf(err, "failed to read unrewarded relayers state at target header %v", at)
	}
	r.targetQueue.observe(at, received, 0)
	if r.sourceAt != nil {
		r.targetQueue.prune(r.sourceConfirmed)
	}
	r.targetRelayers = relayers
	r.targetAt = &at
	return nil
}

func (r *receivingRace) selectAndSubmit(ctx context.Context) (*raceSubmission, RaceState, error) {
	if r.sourceState == nil || r.sourceAt == nil || r.awaitingSourceHeader {
		return nil, RaceStateIdle, nil
	}
	latest, ok := r.targetQueue.latest()
	if !ok || latest.nonce <= r.sourceConfirmed {
		return nil, RaceStateIdle, nil
	}
	if r.targetRelayers.UnrewardedRelayerEntries >= r.maxUnrewardedRelayerEntries {
		r.logger.DebugContext(ctx, "unrewarded relayer entries at target are exhausted; confirming to unblock delivery",
			"entries", r.targetRelayers.UnrewardedRelayerEntries,
		)
	}

	var (
		entry headerNonce
		found bool
		batch BatchTransaction
	)
	if peer := r.sourceState.BestFinalizedPeerAtBestSelf; peer != nil {
		entry, found = r.targetQueue.bestAt(peer.Number, r.sourceConfirmed)
	}
	if !found {
		var err error
		batch, err = r.source.RequireTargetHeaderOnSource(ctx, latest.header)
		if err != nil {
			return nil, RaceStateIdle, errors.Wrapf(err, "failed to require target header %v on source", latest.header)
		}
		if batch == nil {
			r.logger.DebugContext(ctx, "waiting for target header to be relayed to source", "header", latest.header.String())
			return nil, RaceStateAwaitingHeaderPropagation, nil
		}
		if id := batch.RequiredHeaderID(); id != latest.header {
			return nil, RaceStateIdle, errors.Newf("batch transaction relays target header %v, but %v is required", id, latest.header)
		}
		entry = latest
	}

	nonces := NewNonceRange(r.sourceConfirmed+1, entry.nonce)
	ctx, span := tracer.Start(ctx, "receivingRace.submit",
		trace.WithAttributes(WithSubmissionAttributes(r.lane, receivingRaceName, entry.header, nonces, batch != nil)...),
		withPackage(r.source),
	)
	defer span.End()

	proof, err := r.target.ProveMessagesReceiving(ctx, entry.header)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, RaceStateComputingBatch, errors.Wrapf(err, "failed to prove messages receiving at target header %v", entry.header)
	}
	tracker, err := r.source.SubmitMessagesReceivingProof(ctx, batch, entry.header, proof)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, RaceStateComputingBatch, errors.Wrapf(err, "failed to submit receiving proof of messages %v", nonces)
	}
	if tracker == nil {
		span.SetStatus(codes.Error, "no transaction tracker")
		return nil, RaceStateComputingBatch, errors.Wrapf(ErrProtocolInvariantViolated, "source client returned no tracker for the receiving proof of messages %v", nonces)
	}

	r.logger.InfoContext(ctx, "Submitted messages receiving proof",
		"nonces", nonces.String(),
		"target header", entry.header.String(),
		"batched", batch != nil,
	)
	r.metrics.NoncesSubmitted(ctx, receivingRaceName, nonces)
	return &raceSubmission{nonces: nonces, tracker: tracker}, RaceStateSubmitted, nil
}

func (r *receivingRace) onTransactionResolved(sub *raceSubmission, status TrackedTransactionStatus) {
	switch status.Status {
	case TxStatusFinalized:
		r.awaitingSourceHeader = true
		r.minSourceHeader = status.FinalizedAt.Number
	default:
		r.logger.Warn("messages receiving transaction has not been finalized; nonces will be re-selected from the next source state",
			"nonces", sub.nonces.String(),
			"status", status.Status.String(),
		)
		// the source state the proof was selected from is stale
		r.awaitingSourceHeader = true
		r.minSourceHeader = r.sourceAt.Number + 1
	}
}
