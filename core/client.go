package core

import (
	"context"
)

// Client is the base capability of both chain clients
type Client interface {
	// Reconnect re-establishes the connection to the node after a connection error
	Reconnect(ctx context.Context) error
}

// SourceClient is a client of the chain that messages are sent from
type SourceClient interface {
	Client

	// State returns the current state of the source chain
	State(ctx context.Context) (SourceClientState, error)

	// LatestGeneratedNonce returns the nonce of the latest message sent over the lane at a given header
	LatestGeneratedNonce(ctx context.Context, id HeaderID) (MessageNonce, error)

	// LatestConfirmedReceivedNonce returns the latest nonce whose delivery is confirmed at a given source header
	LatestConfirmedReceivedNonce(ctx context.Context, id HeaderID) (MessageNonce, error)

	// GeneratedMessageDetails returns the details of the messages in a given nonce range
	GeneratedMessageDetails(ctx context.Context, id HeaderID, nonces NonceRange) (MessageDetailsMap, error)

	// ProveMessages generates a proof of the messages in a given nonce range at a given header
	ProveMessages(ctx context.Context, id HeaderID, nonces NonceRange, params MessagesProofParameters) (MessagesProof, error)

	// SubmitMessagesReceivingProof submits a receiving proof generated at a target header.
	// If batch is non-nil, the proof is appended to the header-relay transaction it carries.
	SubmitMessagesReceivingProof(ctx context.Context, batch BatchTransaction, generatedAt HeaderID, proof MessagesReceivingProof) (TransactionTracker, error)

	// RequireTargetHeaderOnSource asks for the target header to be relayed to the source chain.
	// It returns a non-nil BatchTransaction if the header relay may be fused with the next submission.
	RequireTargetHeaderOnSource(ctx context.Context, id HeaderID) (BatchTransaction, error)
}

// TargetClient is a client of the chain that messages are delivered to
type TargetClient interface {
	Client

	// State returns the current state of the target chain
	State(ctx context.Context) (TargetClientState, error)

	// LatestReceivedNonce returns the nonce of the latest message received at a given header
	LatestReceivedNonce(ctx context.Context, id HeaderID) (MessageNonce, error)

	// LatestConfirmedReceivedNonce returns the latest confirmed nonce known by the target at a given header
	LatestConfirmedReceivedNonce(ctx context.Context, id HeaderID) (MessageNonce, error)

	// UnrewardedRelayersState returns the state of the unrewarded relayers set at a given header
	UnrewardedRelayersState(ctx context.Context, id HeaderID) (UnrewardedRelayersState, error)

	// ProveMessagesReceiving generates a proof of the inbound lane state at a given header
	ProveMessagesReceiving(ctx context.Context, id HeaderID) (MessagesReceivingProof, error)

	// SubmitMessagesProof submits a messages proof generated at a source header.
	// If batch is non-nil, the proof is appended to the header-relay transaction it carries.
	SubmitMessagesProof(ctx context.Context, batch BatchTransaction, generatedAt HeaderID, nonces NonceRange, proof MessagesProof) (*NoncesSubmitArtifacts, error)

	// RequireSourceHeaderOnTarget asks for the source header to be relayed to the target chain.
	// It returns a non-nil BatchTransaction if the header relay may be fused with the next submission.
	RequireSourceHeaderOnTarget(ctx context.Context, id HeaderID) (BatchTransaction, error)
}

// DeliveryFeeEstimator is implemented by target clients able to price a delivery transaction.
// It is required when the relayer runs in RelayerModeRational.
type DeliveryFeeEstimator interface {
	EstimateDeliveryTransactionFee(ctx context.Context, nonces NonceRange, totalDispatchWeight, totalSize uint64) (Balance, error)
}

// TransactionTracker follows a submitted transaction until it is resolved
type TransactionTracker interface {
	// Wait blocks until the transaction is finalized, invalidated or lost
	Wait(ctx context.Context) (TrackedTransactionStatus, error)
}

// BatchTransaction is a prepared header-relay transaction that a message or receiving proof may be appended to
type BatchTransaction interface {
	// RequiredHeaderID returns the header that the batch relays
	RequiredHeaderID() HeaderID
}
