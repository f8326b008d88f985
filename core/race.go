package core

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gammazero/deque"
	"github.com/hyperledger-labs/yui-lane-relayer/log"
)

// RaceState is the state of a delivery or receiving race
type RaceState int

const (
	// RaceStateIdle means there is nothing to submit
	RaceStateIdle RaceState = iota
	// RaceStateComputingBatch means a gap has been detected and a proof is being built
	RaceStateComputingBatch
	// RaceStateAwaitingHeaderPropagation means the peer chain does not know the header to prove at yet
	RaceStateAwaitingHeaderPropagation
	// RaceStateSubmitted means a transaction has been sent and is being tracked
	RaceStateSubmitted
)

func (s RaceState) String() string {
	switch s {
	case RaceStateIdle:
		return "idle"
	case RaceStateComputingBatch:
		return "computing_batch"
	case RaceStateAwaitingHeaderPropagation:
		return "awaiting_header_propagation"
	case RaceStateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// stateMailbox holds the latest client state for a single consumer.
// Put never blocks: an unread state is replaced by the newer one.
type stateMailbox struct {
	ch chan ClientState
}

func newStateMailbox() *stateMailbox {
	return &stateMailbox{ch: make(chan ClientState, 1)}
}

// Put must only be called from a single goroutine
func (m *stateMailbox) Put(state ClientState) {
	for {
		select {
		case m.ch <- state:
			return
		default:
		}
		select {
		case <-m.ch:
		default:
		}
	}
}

func (m *stateMailbox) C() <-chan ClientState {
	return m.ch
}

// headerNonce is a nonce observed at a header. confirmed is the confirmed nonce stored at the same
// header; the receiving race leaves it zero.
type headerNonce struct {
	header    HeaderID
	nonce     MessageNonce
	confirmed MessageNonce
}

// headerNonceQueue keeps the headers at which a nonce has grown, oldest first
type headerNonceQueue struct {
	entries deque.Deque[headerNonce]
}

// observe records the nonces read at a header. Entries that increase neither nonce are dropped,
// so every entry is the oldest header that knows its nonces.
func (q *headerNonceQueue) observe(header HeaderID, nonce, confirmed MessageNonce) {
	if q.entries.Len() > 0 {
		back := q.entries.Back()
		if header.Number <= back.header.Number || (nonce <= back.nonce && confirmed <= back.confirmed) {
			return
		}
	}
	q.entries.PushBack(headerNonce{header: header, nonce: nonce, confirmed: confirmed})
}

// prune removes entries that carry nothing above the given nonce
func (q *headerNonceQueue) prune(nonce MessageNonce) {
	for q.entries.Len() > 0 && q.entries.Front().nonce <= nonce {
		q.entries.PopFront()
	}
}

func (q *headerNonceQueue) latest() (headerNonce, bool) {
	if q.entries.Len() == 0 {
		return headerNonce{}, false
	}
	return q.entries.Back(), true
}

// bestAt returns the newest entry at or below maxHeader with a nonce above the given one
func (q *headerNonceQueue) bestAt(maxHeader uint64, above MessageNonce) (headerNonce, bool) {
	for i := q.entries.Len() - 1; i >= 0; i-- {
		entry := q.entries.At(i)
		if entry.header.Number <= maxHeader {
			return entry, entry.nonce > above
		}
	}
	return headerNonce{}, false
}

func (q *headerNonceQueue) len() int {
	return q.entries.Len()
}

// raceSubmission is a submitted transaction tracked by the race driver
type raceSubmission struct {
	nonces  NonceRange
	tracker TransactionTracker
}

// raceStrategy decides what a race submits. All methods are called from the race goroutine only.
type raceStrategy interface {
	// updateSourceState ingests a new source state
	updateSourceState(ctx context.Context, state SourceClientState) error
	// updateTargetState ingests a new target state
	updateTargetState(ctx context.Context, state TargetClientState) error
	// selectAndSubmit submits a proof if there is something to submit
	selectAndSubmit(ctx context.Context) (*raceSubmission, RaceState, error)
	// onTransactionResolved is called once the tracker of a submission is resolved
	onTransactionResolved(sub *raceSubmission, status TrackedTransactionStatus)
}

type trackerResolution struct {
	status TrackedTransactionStatus
	err    error
}

// runRace drives a race strategy until ctx is cancelled or an unrecoverable error occurs.
// It never returns nil.
func runRace(
	ctx context.Context,
	strategy raceStrategy,
	sourceStates, targetStates <-chan ClientState,
	stallTimeout time.Duration,
	logger *log.RelayLogger,
) error {
	var (
		state    = RaceStateIdle
		inFlight *raceSubmission
		resolved chan trackerResolution
	)
	setState := func(next RaceState) {
		if next != state {
			logger.DebugContext(ctx, "race state changed", "from", state.String(), "to", next.String())
			state = next
		}
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sourceStates:
			err = strategy.updateSourceState(ctx, s)
		case s := <-targetStates:
			err = strategy.updateTargetState(ctx, s)
		case res := <-resolved:
			sub := inFlight
			inFlight, resolved = nil, nil
			setState(RaceStateIdle)
			if res.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(res.err, context.DeadlineExceeded) {
					return errors.Wrapf(ErrRaceStalled, "transaction with nonces %v is not resolved in %v", sub.nonces, stallTimeout)
				}
				strategy.onTransactionResolved(sub, TrackedTransactionStatus{Status: TxStatusLost})
				err = errors.Wrapf(res.err, "failed to track transaction with nonces %v", sub.nonces)
			} else {
				logger.InfoContext(ctx, "transaction resolved", "nonces", sub.nonces.String(), "status", res.status.Status.String())
				strategy.onTransactionResolved(sub, res.status)
			}
		}
		if err != nil {
			if IsConnectionError(err) {
				return err
			}
			logger.ErrorContext(ctx, "failed to process race update", err)
			continue
		}
		if inFlight != nil {
			continue
		}

		sub, next, err := strategy.selectAndSubmit(ctx)
		if err != nil {
			if IsConnectionError(err) {
				return err
			}
			logger.ErrorContext(ctx, "failed to submit proof; retrying on the next update", err)
			setState(RaceStateIdle)
			continue
		}
		setState(next)
		if sub == nil {
			continue
		}

		inFlight = sub
		resolved = make(chan trackerResolution, 1)
		go func(tracker TransactionTracker, ch chan<- trackerResolution) {
			waitCtx, cancel := context.WithTimeout(ctx, stallTimeout)
			defer cancel()
			status, err := tracker.Wait(waitCtx)
			ch <- trackerResolution{status: status, err: err}
		}(sub.tracker, resolved)
	}
}
