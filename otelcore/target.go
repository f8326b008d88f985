package otelcore

import (
	"context"

	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TargetClient traces every call made to the wrapped target client
type TargetClient struct {
	core.TargetClient
	info   clientInfo
	tracer trace.Tracer
}

var _ core.TargetClient = (*TargetClient)(nil)

// FeeEstimatingTargetClient is a traced target client whose wrapped client estimates delivery fees
type FeeEstimatingTargetClient struct {
	*TargetClient
	estimator core.DeliveryFeeEstimator
}

var _ core.DeliveryFeeEstimator = (*FeeEstimatingTargetClient)(nil)

// NewTargetClient wraps client. The result implements core.DeliveryFeeEstimator if and only if client does.
func NewTargetClient(client core.TargetClient, lane core.LaneID, chainName string, tracer trace.Tracer) core.TargetClient {
	c := &TargetClient{
		TargetClient: client,
		info:         clientInfo{lane: lane, chainName: chainName, side: "target"},
		tracer:       tracer,
	}
	if estimator, ok := client.(core.DeliveryFeeEstimator); ok {
		return &FeeEstimatingTargetClient{TargetClient: c, estimator: estimator}
	}
	return c
}

func (c *TargetClient) State(ctx context.Context) (core.TargetClientState, error) {
	ctx, span := c.tracer.Start(ctx, "TargetClient.State", c.info.spanOptions())
	defer span.End()

	state, err := c.TargetClient.State(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return state, err
}

func (c *TargetClient) LatestReceivedNonce(ctx context.Context, id core.HeaderID) (core.MessageNonce, error) {
	ctx, span := c.tracer.Start(ctx, "TargetClient.LatestReceivedNonce", c.info.spanOptions(headerAttributes(id)...))
	defer span.End()

	nonce, err := c.TargetClient.LatestReceivedNonce(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return nonce, err
}

func (c *TargetClient) LatestConfirmedReceivedNonce(ctx context.Context, id core.HeaderID) (core.MessageNonce, error) {
	ctx, span := c.tracer.Start(ctx, "TargetClient.LatestConfirmedReceivedNonce", c.info.spanOptions(headerAttributes(id)...))
	defer span.End()

	nonce, err := c.TargetClient.LatestConfirmedReceivedNonce(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return nonce, err
}

func (c *TargetClient) UnrewardedRelayersState(ctx context.Context, id core.HeaderID) (core.UnrewardedRelayersState, error) {
	ctx, span := c.tracer.Start(ctx, "TargetClient.UnrewardedRelayersState", c.info.spanOptions(headerAttributes(id)...))
	defer span.End()

	state, err := c.TargetClient.UnrewardedRelayersState(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return state, err
}

func (c *TargetClient) ProveMessagesReceiving(ctx context.Context, id core.HeaderID) (core.MessagesReceivingProof, error) {
	ctx, span := c.tracer.Start(ctx, "TargetClient.ProveMessagesReceiving", c.info.spanOptions(headerAttributes(id)...))
	defer span.End()

	proof, err := c.TargetClient.ProveMessagesReceiving(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return proof, err
}

func (c *TargetClient) SubmitMessagesProof(ctx context.Context, batch core.BatchTransaction, generatedAt core.HeaderID, nonces core.NonceRange, proof core.MessagesProof) (*core.NoncesSubmitArtifacts, error) {
	ctx, span := c.tracer.Start(ctx, "TargetClient.SubmitMessagesProof",
		c.info.spanOptions(append(headerAttributes(generatedAt), nonceAttributes(nonces)...)...),
	)
	defer span.End()

	artifacts, err := c.TargetClient.SubmitMessagesProof(ctx, batch, generatedAt, nonces, proof)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if artifacts == nil || artifacts.Tracker == nil {
		return artifacts, nil
	}
	return &core.NoncesSubmitArtifacts{
		Nonces:  artifacts.Nonces,
		Tracker: newTracker(artifacts.Tracker, c.info, c.tracer),
	}, nil
}

func (c *TargetClient) RequireSourceHeaderOnTarget(ctx context.Context, id core.HeaderID) (core.BatchTransaction, error) {
	ctx, span := c.tracer.Start(ctx, "TargetClient.RequireSourceHeaderOnTarget", c.info.spanOptions(headerAttributes(id)...))
	defer span.End()

	batch, err := c.TargetClient.RequireSourceHeaderOnTarget(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return batch, err
}

func (c *FeeEstimatingTargetClient) EstimateDeliveryTransactionFee(ctx context.Context, nonces core.NonceRange, totalDispatchWeight, totalSize uint64) (core.Balance, error) {
	ctx, span := c.tracer.Start(ctx, "TargetClient.EstimateDeliveryTransactionFee", c.info.spanOptions(nonceAttributes(nonces)...))
	defer span.End()

	fee, err := c.estimator.EstimateDeliveryTransactionFee(ctx, nonces, totalDispatchWeight, totalSize)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return fee, err
}
