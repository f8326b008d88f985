package mock

import (
	"context"
	"math"

	retry "github.com/avast/retry-go"
	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
)

const trackerAttempts = math.MaxUint32

var errNotFinalized = errors.New("transaction is not finalized yet")

// Tracker follows a transaction submitted to a simulated chain
type Tracker struct {
	lane       *Lane
	chain      *chain
	includedAt uint64
	invalid    bool
	lost       bool
}

var _ core.TransactionTracker = (*Tracker)(nil)

// Wait polls the chain until the block including the transaction is finalized or ctx is done
func (t *Tracker) Wait(ctx context.Context) (core.TrackedTransactionStatus, error) {
	if t.invalid {
		return core.TrackedTransactionStatus{Status: core.TxStatusInvalidated}, nil
	}
	if t.lost {
		return core.TrackedTransactionStatus{Status: core.TxStatusLost}, nil
	}

	var status core.TrackedTransactionStatus
	if err := retry.Do(func() error {
		var ok bool
		status, ok = t.lane.finality(t.chain, t.includedAt)
		if !ok {
			return errNotFinalized
		}
		return nil
	},
		retry.Attempts(trackerAttempts),
		retry.Delay(t.lane.opts.TrackerPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	); err != nil {
		return core.TrackedTransactionStatus{}, err
	}
	return status, nil
}

func (l *Lane) finality(c *chain, includedAt uint64) (core.TrackedTransactionStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holdTrackers || c.finalizedHeight() < includedAt {
		return core.TrackedTransactionStatus{}, false
	}
	return core.TrackedTransactionStatus{
		Status:      core.TxStatusFinalized,
		FinalizedAt: c.blocks[includedAt].id,
	}, true
}
