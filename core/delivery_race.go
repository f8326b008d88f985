package core

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const deliveryRaceName = "delivery"

// targetNonces is the inbound lane state read at a target header
type targetNonces struct {
	at              HeaderID
	latestReceived  MessageNonce
	latestConfirmed MessageNonce
	relayers        UnrewardedRelayersState
}

// batchSelection is a contiguous range of messages selected for a single delivery transaction
type batchSelection struct {
	nonces         NonceRange
	dispatchWeight uint64
	size           uint64
	reward         Balance
	// oversized is set when a lone message exceeds the weight or size limit by itself
	oversized bool
}

// selectNoncesToDeliver selects the longest contiguous range starting at begin that fits into the delivery limits.
// latestConfirmedAtTarget is the confirmed nonce the target will know once the transaction is applied.
//
// A first message that exceeds the weight or size limit alone is still selected, otherwise the lane
// would be blocked forever.
func selectNoncesToDeliver(begin MessageNonce, details MessageDetailsMap, params MessageDeliveryParams, latestConfirmedAtTarget MessageNonce) batchSelection {
	sel := batchSelection{nonces: NonceRange{Begin: begin, End: begin - 1}}
	for nonce := begin; ; nonce++ {
		d, ok := details[nonce]
		if !ok {
			break
		}
		if nonce > latestConfirmedAtTarget && nonce-latestConfirmedAtTarget > params.MaxUnconfirmedNoncesAtTarget {
			break
		}
		count := sel.nonces.Len()
		if count+1 > params.MaxMessagesInSingleBatch {
			break
		}
		weight := sel.dispatchWeight + d.DispatchWeight
		size := sel.size + uint64(d.Size)
		exceeds := weight > params.MaxMessagesWeightInSingleBatch || size > params.MaxMessagesSizeInSingleBatch
		if exceeds && count > 0 {
			break
		}
		sel.nonces.End = nonce
		sel.dispatchWeight = weight
		sel.size = size
		sel.reward += d.Reward
		if exceeds {
			sel.oversized = true
			break
		}
	}
	return sel
}

// deliveryRace delivers messages from the source chain to the target chain
type deliveryRace struct {
	lane    LaneID
	source  SourceClient
	target  TargetClient
	params  MessageDeliveryParams
	metrics *MessageLaneLoopMetrics
	logger  *log.RelayLogger

	sourceQueue           headerNonceQueue
	sourceAt              *HeaderID
	sourceLatestConfirmed MessageNonce

	targetState  *TargetClientState
	targetNonces *targetNonces

	// after a resolved delivery, selection waits for target nonces read at or above minTargetHeader
	awaitingTargetHeader bool
	minTargetHeader      uint64
}

var _ raceStrategy = (*deliveryRace)(nil)

func newDeliveryRace(lane LaneID, source SourceClient, target TargetClient, params MessageDeliveryParams, metrics *MessageLaneLoopMetrics, logger *log.RelayLogger) *deliveryRace {
	return &deliveryRace{
		lane:    lane,
		source:  source,
		target:  target,
		params:  params,
		metrics: metrics,
		logger:  logger,
	}
}

func (d *deliveryRace) updateSourceState(ctx context.Context, state SourceClientState) error {
	at := state.BestFinalizedSelf
	if d.sourceAt != nil && *d.sourceAt == at {
		return nil
	}
	generated, err := d.source.LatestGeneratedNonce(ctx, at)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest generated nonce at source header %v", at)
	}
	confirmed, err := d.source.LatestConfirmedReceivedNonce(ctx, at)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest confirmed nonce at source header %v", at)
	}
	d.sourceQueue.observe(at, generated, confirmed)
	if d.targetNonces != nil {
		d.sourceQueue.prune(d.targetNonces.latestReceived)
	}
	d.sourceLatestConfirmed = confirmed
	d.sourceAt = &at
	d.metrics.UpdateSourceNonces(generated, confirmed)
	return nil
}

func (d *deliveryRace) updateTargetState(ctx context.Context, state TargetClientState) error {
	d.targetState = &state
	at := state.BestFinalizedSelf
	if d.targetNonces == nil || d.targetNonces.at != at {
		if err := d.readTargetNonces(ctx, at); err != nil {
			return err
		}
	}
	if d.awaitingTargetHeader && d.targetNonces.at.Number >= d.minTargetHeader {
		d.awaitingTargetHeader = false
	}
	return nil
}

func (d *deliveryRace) readTargetNonces(ctx context.Context, at HeaderID) error {
	received, err := d.target.LatestReceivedNonce(ctx, at)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest received nonce at target header %v", at)
	}
	confirmed, err := d.target.LatestConfirmedReceivedNonce(ctx, at)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest confirmed nonce at target header %v", at)
	}
	relayers, err := d.target.UnrewardedRelayersState(ctx, at)
	if err != nil {
		return errors.Wrapf(err, "failed to read unrewarded relayers state at target header %v", at)
	}
	d.targetNonces = &targetNonces{
		at:              at,
		latestReceived:  received,
		latestConfirmed: confirmed,
		relayers:        relayers,
	}
	d.sourceQueue.prune(received)
	d.metrics.UpdateTargetNonces(received, confirmed)
	return nil
}

func (d *deliveryRace) selectAndSubmit(ctx context.Context) (*raceSubmission, RaceState, error) {
	if d.targetState == nil || d.targetNonces == nil || d.awaitingTargetHeader {
		return nil, RaceStateIdle, nil
	}
	received := d.targetNonces.latestReceived
	latest, ok := d.sourceQueue.latest()
	if !ok || latest.nonce <= received {
		return nil, RaceStateIdle, nil
	}

	// the target prunes relayer entries before accepting new messages if it learns new confirmations
	entriesExhausted := d.targetNonces.relayers.UnrewardedRelayerEntries >= d.params.MaxUnrewardedRelayerEntriesAtTarget
	if entriesExhausted && d.sourceLatestConfirmed <= d.targetNonces.latestConfirmed {
		d.logger.DebugContext(ctx, "too many unrewarded relayer entries at target; waiting for confirmations",
			"entries", d.targetNonces.relayers.UnrewardedRelayerEntries,
			"max", d.params.MaxUnrewardedRelayerEntriesAtTarget,
		)
		return nil, RaceStateIdle, nil
	}

	var (
		entry headerNonce
		found bool
		batch BatchTransaction
	)
	if peer := d.targetState.BestFinalizedPeerAtBestSelf; peer != nil {
		entry, found = d.sourceQueue.bestAt(peer.Number, received)
	}
	// with exhausted entries only a proof carrying new confirmations is accepted by the target
	if found && entriesExhausted && entry.confirmed <= d.targetNonces.latestConfirmed {
		found = false
	}
	if !found {
		var next RaceState
		var err error
		if batch, next, err = d.requireSourceHeader(ctx, latest.header); batch == nil {
			return nil, next, err
		}
		entry = latest
	}

	sel, err := d.selectBatch(ctx, entry)
	if err != nil {
		return nil, RaceStateComputingBatch, err
	}
	// nothing worth delivering is proven at the known header, but newer messages may be
	if sel.nonces.IsEmpty() && batch == nil && entry.header != latest.header {
		var next RaceState
		if batch, next, err = d.requireSourceHeader(ctx, latest.header); batch == nil {
			return nil, next, err
		}
		entry = latest
		if sel, err = d.selectBatch(ctx, entry); err != nil {
			return nil, RaceStateComputingBatch, err
		}
	}
	if sel.nonces.IsEmpty() {
		return nil, RaceStateIdle, nil
	}

	return d.submit(ctx, batch, entry.header, sel, entry.confirmed > d.targetNonces.latestConfirmed)
}

// requireSourceHeader asks the target client to make a source header known. A nil batch means
// the header is being relayed separately and the returned state tells why nothing is submitted.
func (d *deliveryRace) requireSourceHeader(ctx context.Context, id HeaderID) (BatchTransaction, RaceState, error) {
	batch, err := d.target.RequireSourceHeaderOnTarget(ctx, id)
	if err != nil {
		return nil, RaceStateIdle, errors.Wrapf(err, "failed to require source header %v on target", id)
	}
	if batch == nil {
		d.logger.DebugContext(ctx, "waiting for source header to be relayed to target", "header", id.String())
		return nil, RaceStateAwaitingHeaderPropagation, nil
	}
	if required := batch.RequiredHeaderID(); required != id {
		return nil, RaceStateIdle, errors.Newf("batch transaction relays source header %v, but %v is required", required, id)
	}
	return batch, RaceStateComputingBatch, nil
}

// selectBatch selects the messages to deliver with a proof generated at entry
func (d *deliveryRace) selectBatch(ctx context.Context, entry headerNonce) (batchSelection, error) {
	confirmedAtTarget := d.targetNonces.latestConfirmed
	if entry.confirmed > confirmedAtTarget {
		confirmedAtTarget = entry.confirmed
	}
	begin := d.targetNonces.latestReceived + 1
	end := entry.nonce
	if end < begin {
		return batchSelection{nonces: NonceRange{Begin: begin, End: begin - 1}}, nil
	}
	if end-begin >= d.params.MaxMessagesInSingleBatch {
		end = begin + d.params.MaxMessagesInSingleBatch - 1
	}
	details, err := d.source.GeneratedMessageDetails(ctx, entry.header, NewNonceRange(begin, end))
	if err != nil {
		return batchSelection{}, errors.Wrapf(err, "failed to read details of messages %v", NewNonceRange(begin, end))
	}
	sel := selectNoncesToDeliver(begin, details, d.params, confirmedAtTarget)
	if sel.oversized {
		d.logger.WarnContext(ctx, "delivering a single message exceeding the batch limits", "nonce", sel.nonces.Begin, "weight", sel.dispatchWeight, "size", sel.size)
	}
	if d.params.RelayerMode == RelayerModeRational {
		return d.profitableSelection(ctx, details, sel)
	}
	return sel, nil
}

func (d *deliveryRace) submit(ctx context.Context, batch BatchTransaction, at HeaderID, sel batchSelection, outboundStateProofRequired bool) (*raceSubmission, RaceState, error) {
	ctx, span := tracer.Start(ctx, "deliveryRace.submit",
		trace.WithAttributes(WithSubmissionAttributes(d.lane, deliveryRaceName, at, sel.nonces, batch != nil)...),
		withPackage(d.target),
	)
	defer span.End()

	proof, err := d.source.ProveMessages(ctx, at, sel.nonces, MessagesProofParameters{
		OutboundStateProofRequired: outboundStateProofRequired,
		DispatchWeight:             sel.dispatchWeight,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, RaceStateComputingBatch, errors.Wrapf(err, "failed to prove messages %v at source header %v", sel.nonces, at)
	}
	artifacts, err := d.target.SubmitMessagesProof(ctx, batch, at, sel.nonces, proof)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, RaceStateComputingBatch, errors.Wrapf(err, "failed to submit proof of messages %v", sel.nonces)
	}
	if artifacts == nil || artifacts.Tracker == nil {
		span.SetStatus(codes.Error, "no transaction tracker")
		return nil, RaceStateComputingBatch, errors.Wrapf(ErrProtocolInvariantViolated, "target client returned no tracker for the proof of messages %v", sel.nonces)
	}

	d.logger.InfoContext(ctx, "Submitted messages proof",
		"nonces", artifacts.Nonces.String(),
		"source header", at.String(),
		"batched", batch != nil,
		"outbound state proof", outboundStateProofRequired,
	)
	d.metrics.NoncesSubmitted(ctx, deliveryRaceName, artifacts.Nonces)
	return &raceSubmission{nonces: artifacts.Nonces, tracker: artifacts.Tracker}, RaceStateSubmitted, nil
}

// profitableSelection shrinks the selection from its end until the reward covers the delivery fee
func (d *deliveryRace) profitableSelection(ctx context.Context, details MessageDetailsMap, sel batchSelection) (batchSelection, error) {
	estimator, ok := d.target.(DeliveryFeeEstimator)
	if !ok {
		return sel, errors.Wrap(ErrInvalidParams, "rational relayer mode requires a target client estimating delivery fees")
	}
	for !sel.nonces.IsEmpty() {
		fee, err := estimator.EstimateDeliveryTransactionFee(ctx, sel.nonces, sel.dispatchWeight, sel.size)
		if err != nil {
			return sel, errors.Wrapf(err, "failed to estimate fee of delivering messages %v", sel.nonces)
		}
		if sel.reward >= fee {
			return sel, nil
		}
		last := details[sel.nonces.End]
		sel.dispatchWeight -= last.DispatchWeight
		sel.size -= uint64(last.Size)
		sel.reward -= last.Reward
		sel.nonces.End--
	}
	d.logger.DebugContext(ctx, "no profitable batch of messages to deliver")
	return sel, nil
}

func (d *deliveryRace) onTransactionResolved(sub *raceSubmission, status TrackedTransactionStatus) {
	switch status.Status {
	case TxStatusFinalized:
		d.awaitingTargetHeader = true
		d.minTargetHeader = status.FinalizedAt.Number
	default:
		d.logger.Warn("messages delivery transaction has not been finalized; nonces will be re-selected from the next target state",
			"nonces", sub.nonces.String(),
			"status", status.Status.String(),
		)
		// the target state the proof was selected from is stale
		d.awaitingTargetHeader = true
		d.minTargetHeader = d.targetNonces.at.Number + 1
	}
}
