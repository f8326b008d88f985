package semconv

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	// ChainNameKey represents the name of a bridged chain.
	//
	// Type: string
	// RequirementLevel: Recommended
	// Stability: Development
	// Examples: "millau"
	ChainNameKey = attribute.Key("chain_name")

	// LaneIDKey represents the lane ID.
	//
	// Type: string
	// RequirementLevel: Recommended
	// Stability: Development
	// Examples: "0x00000000"
	LaneIDKey = attribute.Key("lane_id")

	// SideKey represents the side of the lane a chain is on.
	//
	// Type: string
	// RequirementLevel: Recommended
	// Stability: Development
	// Examples: "source", "target"
	SideKey = attribute.Key("side")

	// HeaderNumberKey represents the number of the header a call is made at.
	//
	// Type: string
	// RequirementLevel: Recommended
	// Stability: Development
	// Examples: "123"
	HeaderNumberKey = attribute.Key("header.number")

	// HeaderHashKey represents the hash of the header a call is made at.
	//
	// Type: string
	// RequirementLevel: Recommended
	// Stability: Development
	// Examples: "9b1e7b3cb6a2d3c1"
	HeaderHashKey = attribute.Key("header.hash")

	// NonceBeginKey represents the first nonce of a range.
	//
	// Type: string
	// RequirementLevel: Recommended
	// Stability: Development
	// Examples: "1"
	NonceBeginKey = attribute.Key("nonces.begin")

	// NonceEndKey represents the last nonce of a range.
	//
	// Type: string
	// RequirementLevel: Recommended
	// Stability: Development
	// Examples: "4"
	NonceEndKey = attribute.Key("nonces.end")
)
