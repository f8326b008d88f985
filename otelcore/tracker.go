package otelcore

import (
	"context"

	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracker traces the wait for a submitted transaction
type Tracker struct {
	core.TransactionTracker
	info   clientInfo
	tracer trace.Tracer
}

func newTracker(tracker core.TransactionTracker, info clientInfo, tracer trace.Tracer) *Tracker {
	return &Tracker{TransactionTracker: tracker, info: info, tracer: tracer}
}

func (t *Tracker) Wait(ctx context.Context) (core.TrackedTransactionStatus, error) {
	ctx, span := t.tracer.Start(ctx, "TransactionTracker.Wait", t.info.spanOptions())
	defer span.End()

	status, err := t.TransactionTracker.Wait(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return status, err
	}
	span.SetAttributes(attribute.String("status", status.Status.String()))
	return status, nil
}
