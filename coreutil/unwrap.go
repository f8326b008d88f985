package coreutil

import (
	"fmt"

	"github.com/hyperledger-labs/yui-lane-relayer/core"
	"github.com/hyperledger-labs/yui-lane-relayer/otelcore"
)

// UnwrapSourceClient finds the first value in the SourceClient field that matches the specified
// type argument.
//
// In the following example, UnwrapSourceClient returns a *mock.SourceClient value in the SourceClient field:
//
//	client, err := coreutil.UnwrapSourceClient[*mock.SourceClient](source)
func UnwrapSourceClient[C core.SourceClient](c core.SourceClient) (C, error) {
	client := c
	for {
		switch unwrapped := client.(type) {
		case C:
			return unwrapped, nil
		case *otelcore.SourceClient:
			client = unwrapped.SourceClient
		default:
			var zero C
			return zero, fmt.Errorf("failed to unwrap source client: expected=%T, actual=%T", zero, unwrapped)
		}
	}
}

// UnwrapTargetClient finds the first value in the TargetClient field that matches the specified
// type argument.
//
// In the following example, UnwrapTargetClient returns a *mock.TargetClient value in the TargetClient field:
//
//	client, err := coreutil.UnwrapTargetClient[*mock.TargetClient](target)
func UnwrapTargetClient[C core.TargetClient](c core.TargetClient) (C, error) {
	client := c
	for {
		switch unwrapped := client.(type) {
		case C:
			return unwrapped, nil
		case *otelcore.FeeEstimatingTargetClient:
			client = unwrapped.TargetClient.TargetClient
		case *otelcore.TargetClient:
			client = unwrapped.TargetClient
		default:
			var zero C
			return zero, fmt.Errorf("failed to unwrap target client: expected=%T, actual=%T", zero, unwrapped)
		}
	}
}
