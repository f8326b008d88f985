package mock

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/core"
)

// Options configures the simulated chains of a lane
type Options struct {
	SourceName string
	TargetName string
	// SourceFinalityLag and TargetFinalityLag are the number of blocks between the best
	// and the best finalized block of each chain
	SourceFinalityLag uint64
	TargetFinalityLag uint64
	// BatchHeaders makes header requirements return a batch transaction instead of relaying the header instantly
	BatchHeaders bool
	// MaxUnrewardedRelayerEntries makes the target reject deliveries that would exceed it; zero means unlimited
	MaxUnrewardedRelayerEntries uint64
	// TrackerPollInterval is the interval at which trackers check the finality of a transaction
	TrackerPollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.SourceName == "" {
		o.SourceName = "source"
	}
	if o.TargetName == "" {
		o.TargetName = "target"
	}
	if o.TrackerPollInterval == 0 {
		o.TrackerPollInterval = 5 * time.Millisecond
	}
	return o
}

type relayerEntry struct {
	begin core.MessageNonce
	end   core.MessageNonce
}

// laneStorage is the lane state stored by one chain. The source chain uses generated and confirmed,
// the target chain uses received, confirmed and relayers.
type laneStorage struct {
	generated core.MessageNonce
	received  core.MessageNonce
	confirmed core.MessageNonce
	relayers  []relayerEntry
	// peer is the finalized header of the peer chain known by this chain
	peer *core.HeaderID
}

func (s laneStorage) clone() laneStorage {
	s.relayers = slices.Clone(s.relayers)
	if s.peer != nil {
		peer := *s.peer
		s.peer = &peer
	}
	return s
}

func (s *laneStorage) learnPeer(id core.HeaderID) {
	if s.peer == nil || s.peer.Number < id.Number {
		s.peer = &id
	}
}

// pruneRelayers drops the entries confirmed at the source chain
func (s *laneStorage) pruneRelayers() {
	for len(s.relayers) > 0 {
		oldest := &s.relayers[0]
		if oldest.end <= s.confirmed {
			s.relayers = s.relayers[1:]
			continue
		}
		if oldest.begin <= s.confirmed {
			oldest.begin = s.confirmed + 1
		}
		break
	}
}

func (s laneStorage) relayersState() core.UnrewardedRelayersState {
	st := core.UnrewardedRelayersState{
		UnrewardedRelayerEntries: uint64(len(s.relayers)),
		LastDeliveredNonce:       s.received,
	}
	for i, e := range s.relayers {
		n := e.end - e.begin + 1
		if i == 0 {
			st.MessagesInOldestEntry = n
		}
		st.TotalMessages += n
	}
	return st
}

type block struct {
	id      core.HeaderID
	storage laneStorage
}

// chain is a simulated chain producing a block at every state read
type chain struct {
	name        string
	finalityLag uint64
	live        laneStorage
	blocks      []block

	failures     int
	disconnected bool
	reconnects   int
}

func newChain(name string, finalityLag uint64) *chain {
	c := &chain{name: name, finalityLag: finalityLag}
	c.blocks = append(c.blocks, block{id: c.headerID(0)})
	return c
}

func (c *chain) headerID(number uint64) core.HeaderID {
	var bz [8]byte
	binary.BigEndian.PutUint64(bz[:], number)
	h := sha256.Sum256(append([]byte(c.name), bz[:]...))
	return core.HeaderID{Number: number, Hash: hex.EncodeToString(h[:8])}
}

func (c *chain) height() uint64 {
	return uint64(len(c.blocks) - 1)
}

func (c *chain) finalizedHeight() uint64 {
	if c.height() < c.finalityLag {
		return 0
	}
	return c.height() - c.finalityLag
}

func (c *chain) mine() {
	c.blocks = append(c.blocks, block{id: c.headerID(c.height() + 1), storage: c.live.clone()})
}

func (c *chain) state() core.ClientState {
	best := c.blocks[c.height()]
	st := core.ClientState{
		BestSelf:          best.id,
		BestFinalizedSelf: c.blocks[c.finalizedHeight()].id,
	}
	if best.storage.peer != nil {
		peer := *best.storage.peer
		actual := peer
		st.BestFinalizedPeerAtBestSelf = &peer
		st.ActualBestFinalizedPeerAtBestSelf = &actual
	}
	return st
}

// storageAt returns the lane storage at a header of this chain
func (c *chain) storageAt(id core.HeaderID) (laneStorage, error) {
	if id.Number > c.height() || c.blocks[id.Number].id != id {
		return laneStorage{}, errors.Newf("unknown %s header %v", c.name, id)
	}
	return c.blocks[id.Number].storage, nil
}

// checkConnection returns the injected error of the next call, if any
func (c *chain) checkConnection() error {
	if c.disconnected {
		return core.NewConnectionError(errors.Newf("%s node connection is lost", c.name))
	}
	return nil
}

func (c *chain) checkFailure() error {
	if err := c.checkConnection(); err != nil {
		return err
	}
	if c.failures > 0 {
		c.failures--
		return errors.Newf("%s node is temporarily unavailable", c.name)
	}
	return nil
}

// Lane is an in-memory message lane between two simulated chains.
// Every state read produces a new block on the chain being read.
type Lane struct {
	mu       sync.Mutex
	opts     Options
	source   *chain
	target   *chain
	messages map[core.MessageNonce]core.MessageDetails

	holdTrackers        bool
	rejectConfirmations bool
	rejectDeliveries    int
	loseDeliveries      int

	deliverySubmissions int
	deliveries          []core.NonceRange
	confirmations []core.MessageNonce
}

// NewLane returns a lane with no messages
func NewLane(opts Options) *Lane {
	opts = opts.withDefaults()
	return &Lane{
		opts:     opts,
		source:   newChain(opts.SourceName, opts.SourceFinalityLag),
		target:   newChain(opts.TargetName, opts.TargetFinalityLag),
		messages: make(map[core.MessageNonce]core.MessageDetails),
	}
}

// Source returns the client of the source chain
func (l *Lane) Source() *SourceClient {
	return &SourceClient{lane: l}
}

// Target returns the client of the target chain
func (l *Lane) Target() *TargetClient {
	return &TargetClient{lane: l}
}

// TargetWithFeeEstimator returns a target client pricing a delivery at baseFee plus perMessageFee for each message
func (l *Lane) TargetWithFeeEstimator(baseFee, perMessageFee core.Balance) *FeeEstimatingTargetClient {
	return &FeeEstimatingTargetClient{
		TargetClient:  l.Target(),
		baseFee:       baseFee,
		perMessageFee: perMessageFee,
	}
}

// GenerateMessages sends messages over the lane at the source chain and returns their nonces
func (l *Lane) GenerateMessages(details ...core.MessageDetails) core.NonceRange {
	l.mu.Lock()
	defer l.mu.Unlock()
	begin := l.source.live.generated + 1
	for _, d := range details {
		l.source.live.generated++
		l.messages[l.source.live.generated] = d
	}
	return core.NewNonceRange(begin, l.source.live.generated)
}

// GenerateUniformMessages sends n messages with the same details
func (l *Lane) GenerateUniformMessages(n int, details core.MessageDetails) core.NonceRange {
	ds := make([]core.MessageDetails, n)
	for i := range ds {
		ds[i] = details
	}
	return l.GenerateMessages(ds...)
}

// FailSourceStates makes the next n source state reads fail with a non-connection error
func (l *Lane) FailSourceStates(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source.failures += n
}

// FailTargetStates makes the next n target state reads fail with a non-connection error
func (l *Lane) FailTargetStates(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target.failures += n
}

// DisconnectSource makes every source call fail with a connection error until the client reconnects
func (l *Lane) DisconnectSource() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source.disconnected = true
}

// DisconnectTarget makes every target call fail with a connection error until the client reconnects
func (l *Lane) DisconnectTarget() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target.disconnected = true
}

// HoldTrackers keeps every transaction tracker unresolved while set
func (l *Lane) HoldTrackers(hold bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdTrackers = hold
}

// RejectConfirmations makes the source chain invalidate every receiving proof while set
func (l *Lane) RejectConfirmations(reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejectConfirmations = reject
}

// RejectDeliveries makes the target chain invalidate the next n messages proofs
func (l *Lane) RejectDeliveries(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejectDeliveries += n
}

// LoseDeliveries makes the target chain drop the next n messages proof transactions without applying them
func (l *Lane) LoseDeliveries(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loseDeliveries += n
}

// DeliverySubmissions returns the number of messages proofs submitted to the target chain, accepted or not
func (l *Lane) DeliverySubmissions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deliverySubmissions
}

// TargetHeight returns the best block number of the target chain. It grows by one at every target state read.
func (l *Lane) TargetHeight() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target.height()
}

// Deliveries returns the nonce ranges of the accepted delivery transactions
func (l *Lane) Deliveries() []core.NonceRange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.deliveries)
}

// Confirmations returns the received nonces of the accepted receiving proofs
func (l *Lane) Confirmations() []core.MessageNonce {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.confirmations)
}

// SourceConfirmedNonce returns the latest confirmed nonce stored by the source chain
func (l *Lane) SourceConfirmedNonce() core.MessageNonce {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source.live.confirmed
}

// TargetReceivedNonce returns the latest received nonce stored by the target chain
func (l *Lane) TargetReceivedNonce() core.MessageNonce {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target.live.received
}

// TargetRelayersState returns the unrewarded relayers state stored by the target chain
func (l *Lane) TargetRelayersState() core.UnrewardedRelayersState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target.live.relayersState()
}

// Reconnects returns the number of reconnections of the source and target clients
func (l *Lane) Reconnects() (source, target int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source.reconnects, l.target.reconnects
}

func (l *Lane) reconnect(c *chain) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.disconnected = false
	c.reconnects++
}

// requireHeader makes header id of chain from known by chain to
func (l *Lane) requireHeader(from, to *chain, id core.HeaderID) (core.BatchTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := to.checkConnection(); err != nil {
		return nil, err
	}
	if _, err := from.storageAt(id); err != nil {
		return nil, err
	}
	if id.Number > from.finalizedHeight() {
		return nil, errors.Newf("%s header %v is not finalized", from.name, id)
	}
	if l.opts.BatchHeaders {
		return &BatchTransaction{header: id}, nil
	}
	to.live.learnPeer(id)
	return nil, nil
}

// applyBatch relays the header carried by batch to chain c
func applyBatch(c *chain, batch core.BatchTransaction, generatedAt core.HeaderID) error {
	if batch == nil {
		return nil
	}
	b, ok := batch.(*BatchTransaction)
	if !ok {
		return errors.Newf("unexpected batch transaction type %T", batch)
	}
	if b.header != generatedAt {
		return errors.Newf("batch relays header %v, but the proof is generated at %v", b.header, generatedAt)
	}
	c.live.learnPeer(b.header)
	return nil
}

// submitted returns a tracker of a transaction included in the next block of chain c
func (l *Lane) submitted(c *chain) *Tracker {
	return &Tracker{lane: l, chain: c, includedAt: c.height() + 1}
}

func (l *Lane) invalidated(c *chain) *Tracker {
	return &Tracker{lane: l, chain: c, invalid: true}
}

func (l *Lane) lost(c *chain) *Tracker {
	return &Tracker{lane: l, chain: c, lost: true}
}
