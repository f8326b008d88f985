package mock

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
)

// makeProof commits to the proven values; a proof is valid if the verifier computes the same commitment
func makeProof(values ...any) []byte {
	h := sha256.Sum256([]byte(fmt.Sprint(values...)))
	return h[:]
}

func messagesProof(chainName string, at core.HeaderID, nonces core.NonceRange, storage laneStorage, outboundState bool) []byte {
	if outboundState {
		return makeProof(chainName, at, nonces, storage.confirmed)
	}
	return makeProof(chainName, at, nonces)
}

func messagesReceivingProof(chainName string, at core.HeaderID, storage laneStorage) []byte {
	return makeProof(chainName, at, storage.received, storage.relayersState())
}

func verifyProof(expected, actual []byte) error {
	if !bytes.Equal(expected, actual) {
		return errors.Newf("proof mismatch: expected=%x actual=%x", expected, actual)
	}
	return nil
}

// BatchTransaction relays a header along with the proof submitted in the same transaction
type BatchTransaction struct {
	header core.HeaderID
}

var _ core.BatchTransaction = (*BatchTransaction)(nil)

func (b *BatchTransaction) RequiredHeaderID() core.HeaderID {
	return b.header
}
