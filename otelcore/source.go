package otelcore

import (
	"context"

	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SourceClient traces every call made to the wrapped source client
type SourceClient struct {
	core.SourceClient
	info   clientInfo
	tracer trace.Tracer
}

var _ core.SourceClient = (*SourceClient)(nil)

func NewSourceClient(client core.SourceClient, lane core.LaneID, chainName string, tracer trace.Tracer) *SourceClient {
	return &SourceClient{
		SourceClient: client,
		info:         clientInfo{lane: lane, chainName: chainName, side: "source"},
		tracer:       tracer,
	}
}

func (c *SourceClient) State(ctx context.Context) (core.SourceClientState, error) {
	ctx, span := c.tracer.Start(ctx, "SourceClient.State", c.info.spanOptions())
	defer span.End()

	state, err := c.SourceClient.State(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return state, err
}

func (c *SourceClient) LatestGeneratedNonce(ctx context.Context, id core.HeaderID) (core.MessageNonce, error) {
	ctx, span := c.tracer.Start(ctx, "SourceClient.LatestGeneratedNonce", c.info.spanOptions(headerAttributes(id)...))
	defer span.End()

	nonce, err := c.SourceClient.LatestGeneratedNonce(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return nonce, err
}

func (c *SourceClient) LatestConfirmedReceivedNonce(ctx context.Context, id core.HeaderID) (core.MessageNonce, error) {
	ctx, span := c.tracer.Start(ctx, "SourceClient.LatestConfirmedReceivedNonce", c.info.spanOptions(headerAttributes(id)...))
	defer span.End()

	nonce, err := c.SourceClient.LatestConfirmedReceivedNonce(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return nonce, err
}

func (c *SourceClient) GeneratedMessageDetails(ctx context.Context, id core.HeaderID, nonces core.NonceRange) (core.MessageDetailsMap, error) {
	ctx, span := c.tracer.Start(ctx, "SourceClient.GeneratedMessageDetails",
		c.info.spanOptions(append(headerAttributes(id), nonceAttributes(nonces)...)...),
	)
	defer span.End()

	details, err := c.SourceClient.GeneratedMessageDetails(ctx, id, nonces)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return details, err
}

func (c *SourceClient) ProveMessages(ctx context.Context, id core.HeaderID, nonces core.NonceRange, params core.MessagesProofParameters) (core.MessagesProof, error) {
	ctx, span := c.tracer.Start(ctx, "SourceClient.ProveMessages",
		c.info.spanOptions(append(headerAttributes(id), nonceAttributes(nonces)...)...),
	)
	defer span.End()

	proof, err := c.SourceClient.ProveMessages(ctx, id, nonces, params)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return proof, err
}

func (c *SourceClient) SubmitMessagesReceivingProof(ctx context.Context, batch core.BatchTransaction, generatedAt core.HeaderID, proof core.MessagesReceivingProof) (core.TransactionTracker, error) {
	ctx, span := c.tracer.Start(ctx, "SourceClient.SubmitMessagesReceivingProof", c.info.spanOptions(headerAttributes(generatedAt)...))
	defer span.End()

	tracker, err := c.SourceClient.SubmitMessagesReceivingProof(ctx, batch, generatedAt, proof)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if tracker == nil {
		return nil, nil
	}
	return newTracker(tracker, c.info, c.tracer), nil
}

func (c *SourceClient) RequireTargetHeaderOnSource(ctx context.Context, id core.HeaderID) (core.BatchTransaction, error) {
	ctx, span := c.tracer.Start(ctx, "SourceClient.RequireTargetHeaderOnSource", c.info.spanOptions(headerAttributes(id)...))
	defer span.End()

	batch, err := c.SourceClient.RequireTargetHeaderOnSource(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return batch, err
}
