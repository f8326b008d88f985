package core

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(n uint64) HeaderID {
	return HeaderID{Number: n, Hash: "h"}
}

func TestHeaderNonceQueue(t *testing.T) {
	var q headerNonceQueue

	_, ok := q.latest()
	require.False(t, ok)

	q.observe(header(1), 2, 0)
	q.observe(header(2), 2, 0) // nonce has not grown
	q.observe(header(3), 5, 0)
	q.observe(header(3), 6, 0) // header has not grown
	q.observe(header(5), 9, 0)
	require.Equal(t, 3, q.len())

	latest, ok := q.latest()
	require.True(t, ok)
	assert.Equal(t, headerNonce{header: header(5), nonce: 9}, latest)

	// newest entry at or below the peer header
	entry, ok := q.bestAt(4, 0)
	require.True(t, ok)
	assert.Equal(t, headerNonce{header: header(3), nonce: 5}, entry)

	// nothing new at the peer header
	_, ok = q.bestAt(4, 5)
	assert.False(t, ok)

	// peer does not know any observed header
	_, ok = q.bestAt(0, 0)
	assert.False(t, ok)

	q.prune(5)
	require.Equal(t, 1, q.len())
	entry, ok = q.bestAt(4, 0)
	assert.False(t, ok)
	entry, ok = q.bestAt(10, 5)
	require.True(t, ok)
	assert.Equal(t, headerNonce{header: header(5), nonce: 9}, entry)

	q.prune(9)
	assert.Equal(t, 0, q.len())
}

func TestHeaderNonceQueueTracksConfirmedNonce(t *testing.T) {
	var q headerNonceQueue
	q.observe(header(1), 5, 0)
	q.observe(header(2), 5, 0)
	q.observe(header(3), 5, 2) // confirmed nonce has grown
	q.observe(header(4), 5, 2)
	require.Equal(t, 2, q.len())

	entry, ok := q.bestAt(2, 0)
	require.True(t, ok)
	assert.Equal(t, headerNonce{header: header(1), nonce: 5}, entry)

	entry, ok = q.bestAt(4, 0)
	require.True(t, ok)
	assert.Equal(t, headerNonce{header: header(3), nonce: 5, confirmed: 2}, entry)

	q.prune(5)
	assert.Equal(t, 0, q.len())
}

func TestStateMailboxKeepsLatestState(t *testing.T) {
	m := newStateMailbox()
	for i := uint64(1); i <= 5; i++ {
		m.Put(ClientState{BestSelf: header(i), BestFinalizedSelf: header(i)})
	}

	select {
	case s := <-m.C():
		assert.EqualValues(t, 5, s.BestSelf.Number)
	default:
		t.Fatal("mailbox is empty")
	}

	select {
	case s := <-m.C():
		t.Fatalf("unexpected state %v", s.BestSelf)
	default:
	}
}

func TestSelectNoncesToDeliver(t *testing.T) {
	params := MessageDeliveryParams{
		MaxUnrewardedRelayerEntriesAtTarget: 4,
		MaxUnconfirmedNoncesAtTarget:        6,
		MaxMessagesInSingleBatch:            4,
		MaxMessagesWeightInSingleBatch:      100,
		MaxMessagesSizeInSingleBatch:        1000,
	}
	uniform := func(begin, end MessageNonce, weight uint64) MessageDetailsMap {
		m := make(MessageDetailsMap)
		for n := begin; n <= end; n++ {
			m[n] = MessageDetails{DispatchWeight: weight, Size: 10, Reward: 1}
		}
		return m
	}

	tests := []struct {
		name      string
		begin     MessageNonce
		details   MessageDetailsMap
		confirmed MessageNonce
		want      NonceRange
		oversized bool
	}{
		{
			name:    "count limit",
			begin:   1,
			details: uniform(1, 10, 1),
			want:    NewNonceRange(1, 4),
		},
		{
			name:    "fewer messages than the count limit",
			begin:   9,
			details: uniform(9, 10, 1),
			want:    NewNonceRange(9, 10),
		},
		{
			name:    "weight limit",
			begin:   1,
			details: uniform(1, 10, 40),
			want:    NewNonceRange(1, 2),
		},
		{
			name:      "unconfirmed limit",
			begin:     5,
			details:   uniform(5, 10, 1),
			confirmed: 0,
			want:      NewNonceRange(5, 6),
		},
		{
			name:      "unconfirmed limit reached",
			begin:     7,
			details:   uniform(7, 10, 1),
			confirmed: 0,
			want:      NewNonceRange(7, 6),
		},
		{
			name:    "stops at a missing nonce",
			begin:   1,
			details: MessageDetailsMap{1: {DispatchWeight: 1}, 2: {DispatchWeight: 1}, 4: {DispatchWeight: 1}},
			want:    NewNonceRange(1, 2),
		},
		{
			name:      "single oversized message",
			begin:     1,
			details:   MessageDetailsMap{1: {DispatchWeight: 500}, 2: {DispatchWeight: 1}},
			want:      NewNonceRange(1, 1),
			oversized: true,
		},
		{
			name:    "oversized message after others",
			begin:   1,
			details: MessageDetailsMap{1: {DispatchWeight: 1}, 2: {DispatchWeight: 500}},
			want:    NewNonceRange(1, 1),
		},
		{
			name:    "no details",
			begin:   1,
			details: MessageDetailsMap{},
			want:    NewNonceRange(1, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := selectNoncesToDeliver(tt.begin, tt.details, params, tt.confirmed)
			assert.Equal(t, tt.want, sel.nonces)
			assert.Equal(t, tt.oversized, sel.oversized)
		})
	}
}

func TestSelectNoncesToDeliverRespectsLimits(t *testing.T) {
	seed := time.Now().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	t.Logf("seed: %d", seed)

	for i := 0; i < 1000; i++ {
		params := MessageDeliveryParams{
			MaxUnrewardedRelayerEntriesAtTarget: 1,
			MaxUnconfirmedNoncesAtTarget:        uint64(rng.Intn(20) + 1),
			MaxMessagesWeightInSingleBatch:      uint64(rng.Intn(100) + 1),
			MaxMessagesSizeInSingleBatch:        uint64(rng.Intn(100) + 1),
		}
		params.MaxMessagesInSingleBatch = uint64(rng.Int63n(int64(params.MaxUnconfirmedNoncesAtTarget)) + 1)

		confirmed := MessageNonce(rng.Intn(10))
		begin := confirmed + MessageNonce(rng.Intn(10)) + 1
		details := make(MessageDetailsMap)
		count := MessageNonce(rng.Intn(30))
		for n := begin; n < begin+count; n++ {
			details[n] = MessageDetails{
				DispatchWeight: uint64(rng.Intn(int(params.MaxMessagesWeightInSingleBatch))) + 1,
				Size:           uint32(rng.Intn(int(params.MaxMessagesSizeInSingleBatch))) + 1,
				Reward:         uint64(rng.Intn(10)),
			}
		}

		sel := selectNoncesToDeliver(begin, details, params, confirmed)
		require.Equal(t, begin, sel.nonces.Begin)
		require.False(t, sel.oversized, "messages within the limits are never oversized")
		require.LessOrEqual(t, sel.nonces.Len(), params.MaxMessagesInSingleBatch)
		require.LessOrEqual(t, sel.dispatchWeight, params.MaxMessagesWeightInSingleBatch)
		require.LessOrEqual(t, sel.size, params.MaxMessagesSizeInSingleBatch)

		var weight, size uint64
		for n := sel.nonces.Begin; !sel.nonces.IsEmpty() && n <= sel.nonces.End; n++ {
			d, ok := details[n]
			require.True(t, ok, "selected nonce %d has no details", n)
			require.LessOrEqual(t, n-confirmed, params.MaxUnconfirmedNoncesAtTarget)
			weight += d.DispatchWeight
			size += uint64(d.Size)
		}
		require.Equal(t, weight, sel.dispatchWeight)
		require.Equal(t, size, sel.size)

		// the selection is maximal: the next message would break a limit
		next := sel.nonces.End + 1
		d, ok := details[next]
		if !ok {
			continue
		}
		blocked := sel.nonces.Len()+1 > params.MaxMessagesInSingleBatch ||
			next-confirmed > params.MaxUnconfirmedNoncesAtTarget ||
			weight+d.DispatchWeight > params.MaxMessagesWeightInSingleBatch ||
			size+uint64(d.Size) > params.MaxMessagesSizeInSingleBatch
		require.True(t, blocked, "nonce %d could have been selected with %v", next, sel.nonces)
	}
}

func TestRaceFailure(t *testing.T) {
	err := raceFailure(deliveryRaceName, nil)
	require.ErrorIs(t, err, ErrProtocolInvariantViolated)

	err = raceFailure(receivingRaceName, errors.Wrap(ErrRaceStalled, "tx"))
	require.ErrorIs(t, err, ErrRaceStalled)
	require.NotErrorIs(t, err, ErrProtocolInvariantViolated)
}

func TestClientPollerBacksOff(t *testing.T) {
	p := newClientPoller("source", "millau", nil, BackoffParams{
		InitialInterval:     10 * time.Millisecond,
		MaxInterval:         40 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	})
	require.True(t, p.required)

	for _, interval := range []time.Duration{10, 20, 40, 40} {
		interval *= time.Millisecond
		delay := p.goOffline()
		assert.GreaterOrEqual(t, delay, interval/2)
		assert.LessOrEqual(t, delay, interval*3/2)
		require.Equal(t, pollerBackoff, p.status)
		require.True(t, p.required)
		require.NotNil(t, p.offlineC())
		p.stop()
		p.goOnline()
		require.Equal(t, pollerIdle, p.status)
		require.Nil(t, p.offlineC())
	}

	p.backoff.Reset()
	delay := p.goOffline()
	assert.LessOrEqual(t, delay, 15*time.Millisecond)
	p.stop()
}

func TestClientPollerDefaults(t *testing.T) {
	p := newClientPoller("target", "rialto", nil, BackoffParams{})
	defaults := DefaultBackoffParams()
	assert.Equal(t, defaults.InitialInterval, p.backoff.InitialInterval)
	assert.Equal(t, defaults.MaxInterval, p.backoff.MaxInterval)
	assert.Equal(t, defaults.Multiplier, p.backoff.Multiplier)
	assert.Equal(t, defaults.RandomizationFactor, p.backoff.RandomizationFactor)
	assert.Equal(t, time.Duration(0), p.backoff.MaxElapsedTime)
}
