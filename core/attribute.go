package core

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

const (
	AttributeKeyLaneID       = attribute.Key("lane_id")
	AttributeKeySide         = attribute.Key("side")
	AttributeKeyType         = attribute.Key("type")
	AttributeKeyRace         = attribute.Key("race")
	AttributeKeyNonceBegin   = attribute.Key("nonce_begin")
	AttributeKeyNonceEnd     = attribute.Key("nonce_end")
	AttributeKeyHeaderNumber = attribute.Key("header_number")
	AttributeKeyBatched      = attribute.Key("batched")
	AttributeKeyPackage      = attribute.Key("package")
)

// AttributeGroup prefixes the given key to all attributes.
//
// For example, if the key is "foo" and the key of an attribute is "bar", the new key will be "foo.bar".
func AttributeGroup(key string, attributes ...attribute.KeyValue) []attribute.KeyValue {
	newAttrs := make([]attribute.KeyValue, 0, len(attributes))
	for _, attr := range attributes {
		newAttrs = append(newAttrs, attribute.KeyValue{
			Key:   attribute.Key(key + "." + string(attr.Key)),
			Value: attr.Value,
		})
	}
	return newAttrs
}

// WithSubmissionAttributes returns the span attributes describing a proof submission
func WithSubmissionAttributes(lane LaneID, race string, at HeaderID, nonces NonceRange, batched bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttributeKeyLaneID.String(string(lane)),
		AttributeKeyRace.String(race),
		AttributeKeyBatched.Bool(batched),
	}
	// uint64 values are converted to string because the attribute package does not support them
	return append(attrs, AttributeGroup("proof",
		AttributeKeyHeaderNumber.String(fmt.Sprint(at.Number)),
		AttributeKeyNonceBegin.String(fmt.Sprint(nonces.Begin)),
		AttributeKeyNonceEnd.String(fmt.Sprint(nonces.End)),
	)...)
}
