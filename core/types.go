package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
)

// LaneID identifies a unidirectional message lane between a source and a target chain
type LaneID string

// MessageNonce is the position of a message within a lane
type MessageNonce = uint64

// Balance is the unit in which message rewards and transaction fees are expressed
type Balance = uint64

// HeaderID identifies a block on some chain
type HeaderID struct {
	Number uint64 `json:"number" yaml:"number"`
	Hash   string `json:"hash" yaml:"hash"`
}

func (id HeaderID) String() string {
	return fmt.Sprintf("#%d(%s)", id.Number, id.Hash)
}

// NonceRange is a closed range of message nonces. A range with Begin > End is empty.
type NonceRange struct {
	Begin MessageNonce `json:"begin" yaml:"begin"`
	End   MessageNonce `json:"end" yaml:"end"`
}

// NewNonceRange returns the closed range [begin, end]
func NewNonceRange(begin, end MessageNonce) NonceRange {
	return NonceRange{Begin: begin, End: end}
}

func (r NonceRange) IsEmpty() bool {
	return r.Begin > r.End
}

// Len returns the number of nonces in the range
func (r NonceRange) Len() uint64 {
	if r.IsEmpty() {
		return 0
	}
	return r.End - r.Begin + 1
}

func (r NonceRange) Contains(nonce MessageNonce) bool {
	return r.Begin <= nonce && nonce <= r.End
}

func (r NonceRange) String() string {
	return fmt.Sprintf("%d..=%d", r.Begin, r.End)
}

// ClientState is a snapshot of what a chain client currently believes about its own chain and its peer
type ClientState struct {
	// BestSelf is the best (not necessarily finalized) known header of this chain
	BestSelf HeaderID `json:"best_self"`
	// BestFinalizedSelf is the best finalized header of this chain
	BestFinalizedSelf HeaderID `json:"best_finalized_self"`
	// BestFinalizedPeerAtBestSelf is the finalized header of the peer chain known at BestFinalizedSelf.
	// It is nil if no peer header has ever been relayed.
	BestFinalizedPeerAtBestSelf *HeaderID `json:"best_finalized_peer_at_best_self,omitempty"`
	// ActualBestFinalizedPeerAtBestSelf is the same header computed independently by the client
	ActualBestFinalizedPeerAtBestSelf *HeaderID `json:"actual_best_finalized_peer_at_best_self,omitempty"`
}

// Validate checks the invariants of a freshly polled state
func (s ClientState) Validate() error {
	if s.BestFinalizedSelf.Number > s.BestSelf.Number {
		return errors.Newf("best finalized header %v is ahead of best header %v", s.BestFinalizedSelf, s.BestSelf)
	}
	return nil
}

// SourceClientState is the state of the source chain client
type SourceClientState = ClientState

// TargetClientState is the state of the target chain client
type TargetClientState = ClientState

// MessageDetails is the per-message metadata fetched from the source chain
type MessageDetails struct {
	DispatchWeight uint64  `json:"dispatch_weight"`
	Size           uint32  `json:"size"`
	Reward         Balance `json:"reward"`
}

// MessageDetailsMap maps nonces to message details
type MessageDetailsMap map[MessageNonce]MessageDetails

// Nonces returns the nonces of the map in ascending order
func (m MessageDetailsMap) Nonces() []MessageNonce {
	nonces := make([]MessageNonce, 0, len(m))
	for nonce := range m {
		nonces = append(nonces, nonce)
	}
	slices.Sort(nonces)
	return nonces
}

// UnrewardedRelayersState describes the bounded set of relayers waiting for their reward at the target chain
type UnrewardedRelayersState struct {
	UnrewardedRelayerEntries uint64       `json:"unrewarded_relayer_entries"`
	MessagesInOldestEntry    uint64       `json:"messages_in_oldest_entry"`
	TotalMessages            uint64       `json:"total_messages"`
	LastDeliveredNonce       MessageNonce `json:"last_delivered_nonce"`
}

// RelayerMode decides whether the delivery race cares about the profitability of a batch
type RelayerMode string

const (
	// RelayerModeAltruistic delivers every message regardless of its reward
	RelayerModeAltruistic RelayerMode = "altruistic"
	// RelayerModeRational delivers a batch only if its cumulative reward covers the delivery fee
	RelayerModeRational RelayerMode = "rational"
)

// MessageDeliveryParams bounds every single delivery transaction
type MessageDeliveryParams struct {
	MaxUnrewardedRelayerEntriesAtTarget uint64      `json:"max_unrewarded_relayer_entries_at_target" yaml:"max_unrewarded_relayer_entries_at_target"`
	MaxUnconfirmedNoncesAtTarget        uint64      `json:"max_unconfirmed_nonces_at_target" yaml:"max_unconfirmed_nonces_at_target"`
	MaxMessagesInSingleBatch            uint64      `json:"max_messages_in_single_batch" yaml:"max_messages_in_single_batch"`
	MaxMessagesWeightInSingleBatch      uint64      `json:"max_messages_weight_in_single_batch" yaml:"max_messages_weight_in_single_batch"`
	MaxMessagesSizeInSingleBatch        uint64      `json:"max_messages_size_in_single_batch" yaml:"max_messages_size_in_single_batch"`
	RelayerMode                         RelayerMode `json:"relayer_mode" yaml:"relayer_mode"`
}

// Validate checks that the limits allow at least one message to be delivered
func (p MessageDeliveryParams) Validate() error {
	switch {
	case p.MaxUnrewardedRelayerEntriesAtTarget == 0:
		return errors.Wrap(ErrInvalidParams, "max_unrewarded_relayer_entries_at_target must be positive")
	case p.MaxUnconfirmedNoncesAtTarget == 0:
		return errors.Wrap(ErrInvalidParams, "max_unconfirmed_nonces_at_target must be positive")
	case p.MaxMessagesInSingleBatch == 0:
		return errors.Wrap(ErrInvalidParams, "max_messages_in_single_batch must be positive")
	case p.MaxMessagesInSingleBatch > p.MaxUnconfirmedNoncesAtTarget:
		return errors.Wrapf(ErrInvalidParams, "max_messages_in_single_batch(%d) exceeds max_unconfirmed_nonces_at_target(%d)",
			p.MaxMessagesInSingleBatch, p.MaxUnconfirmedNoncesAtTarget)
	case p.MaxMessagesWeightInSingleBatch == 0:
		return errors.Wrap(ErrInvalidParams, "max_messages_weight_in_single_batch must be positive")
	case p.MaxMessagesSizeInSingleBatch == 0:
		return errors.Wrap(ErrInvalidParams, "max_messages_size_in_single_batch must be positive")
	}
	switch p.RelayerMode {
	case "", RelayerModeAltruistic, RelayerModeRational:
	default:
		return errors.Wrapf(ErrInvalidParams, "unknown relayer mode '%v'", p.RelayerMode)
	}
	return nil
}

// BackoffParams configures the exponential backoff applied to a chain client after a failed state read
type BackoffParams struct {
	InitialInterval     time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval         time.Duration `json:"max_interval" yaml:"max_interval"`
	Multiplier          float64       `json:"multiplier" yaml:"multiplier"`
	RandomizationFactor float64       `json:"randomization_factor" yaml:"randomization_factor"`
}

// DefaultBackoffParams returns the backoff used when none is configured
func DefaultBackoffParams() BackoffParams {
	return BackoffParams{
		InitialInterval:     time.Second,
		MaxInterval:         time.Minute,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

// Params configures a single message lane loop
type Params struct {
	Lane LaneID
	// SourceName and TargetName name the bridged chains in logs
	SourceName string
	TargetName string
	// SourceTick is the interval between two source state reads
	SourceTick time.Duration
	// TargetTick is the interval between two target state reads
	TargetTick time.Duration
	// ReconnectDelay is the pause between a failed loop invocation and the next one
	ReconnectDelay time.Duration
	// StallTimeout bounds the time a submitted transaction may stay unresolved
	StallTimeout time.Duration
	RetryBackoff BackoffParams
	Delivery     MessageDeliveryParams
}

func (p Params) Validate() error {
	if p.SourceTick <= 0 || p.TargetTick <= 0 {
		return errors.Wrap(ErrInvalidParams, "tick intervals must be positive")
	}
	if p.StallTimeout <= 0 {
		return errors.Wrap(ErrInvalidParams, "stall timeout must be positive")
	}
	if p.ReconnectDelay < 0 {
		return errors.Wrap(ErrInvalidParams, "reconnect delay must not be negative")
	}
	return p.Delivery.Validate()
}

// MessagesProofParameters tells the source client what has to be proven along with the messages
type MessagesProofParameters struct {
	// OutboundStateProofRequired is set when the target does not know the latest confirmations of the source
	OutboundStateProofRequired bool
	// DispatchWeight is the cumulative dispatch weight of the proven messages
	DispatchWeight uint64
}

// MessagesProof is a proof of messages generated at a source header
type MessagesProof struct {
	AtHeader              HeaderID
	Nonces                NonceRange
	OutboundStateIncluded bool
	Data                  []byte
}

// MessagesReceivingProof is a proof of the inbound lane state generated at a target header
type MessagesReceivingProof struct {
	AtHeader            HeaderID
	LatestReceivedNonce MessageNonce
	RelayersState       UnrewardedRelayersState
	Data                []byte
}

// TxStatus is the final status of a tracked transaction
type TxStatus int

const (
	// TxStatusLost means the transaction is neither finalized nor invalidated in time
	TxStatusLost TxStatus = iota
	// TxStatusFinalized means the transaction is included in a finalized block
	TxStatusFinalized
	// TxStatusInvalidated means the transaction has been rejected by the chain
	TxStatusInvalidated
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusLost:
		return "lost"
	case TxStatusFinalized:
		return "finalized"
	case TxStatusInvalidated:
		return "invalidated"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// TrackedTransactionStatus is the outcome of a submitted transaction
type TrackedTransactionStatus struct {
	Status TxStatus
	// FinalizedAt is the header of the block including the transaction; set only for TxStatusFinalized
	FinalizedAt HeaderID
}

// NoncesSubmitArtifacts is the result of a delivery submission
type NoncesSubmitArtifacts struct {
	Nonces  NonceRange
	Tracker TransactionTracker
}
