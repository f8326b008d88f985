package otelcore

import (
	"fmt"

	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/hyperledger-labs/yui-lane-relayer/otelcore/semconv"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// clientInfo identifies the chain client whose calls are traced
type clientInfo struct {
	lane      core.LaneID
	chainName string
	side      string
}

func (ci clientInfo) spanOptions(attrs ...attribute.KeyValue) trace.SpanStartOption {
	return trace.WithAttributes(append([]attribute.KeyValue{
		semconv.LaneIDKey.String(string(ci.lane)),
		semconv.ChainNameKey.String(ci.chainName),
		semconv.SideKey.String(ci.side),
	}, attrs...)...)
}

// uint64 values are converted to string because the attribute package does not support them
func headerAttributes(id core.HeaderID) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.HeaderNumberKey.String(fmt.Sprint(id.Number)),
		semconv.HeaderHashKey.String(id.Hash),
	}
}

func nonceAttributes(nonces core.NonceRange) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.NonceBeginKey.String(fmt.Sprint(nonces.Begin)),
		semconv.NonceEndKey.String(fmt.Sprint(nonces.End)),
	}
}
