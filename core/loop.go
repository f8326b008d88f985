package core

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/hyperledger-labs/yui-lane-relayer/log"
)

type pollerStatus int

const (
	pollerIdle pollerStatus = iota
	pollerPolling
	pollerBackoff
)

type stateResult struct {
	state ClientState
	err   error
}

// clientPoller reads the state of one chain client. At most one read is in flight at a time,
// and no read is started while the client is backing off after a failure.
type clientPoller struct {
	side      string
	chainName string
	state     func(context.Context) (ClientState, error)

	status   pollerStatus
	required bool
	results  chan stateResult
	offline  *time.Timer
	backoff  *backoff.ExponentialBackOff
}

func newClientPoller(side, chainName string, state func(context.Context) (ClientState, error), params BackoffParams) *clientPoller {
	defaults := DefaultBackoffParams()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = orDefault(params.InitialInterval, defaults.InitialInterval)
	b.MaxInterval = orDefault(params.MaxInterval, defaults.MaxInterval)
	b.Multiplier = orDefault(params.Multiplier, defaults.Multiplier)
	b.RandomizationFactor = orDefault(params.RandomizationFactor, defaults.RandomizationFactor)
	b.MaxElapsedTime = 0
	b.Reset()

	return &clientPoller{
		side:      side,
		chainName: chainName,
		state:     state,
		required:  true,
		results:   make(chan stateResult, 1),
		backoff:   b,
	}
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// poll starts a state read if one is required and the client is online
func (p *clientPoller) poll(ctx context.Context) {
	if p.status != pollerIdle || !p.required {
		return
	}
	p.required = false
	p.status = pollerPolling
	go func() {
		state, err := p.state(ctx)
		p.results <- stateResult{state: state, err: err}
	}()
}

// offlineC fires when the backoff of the client has elapsed
func (p *clientPoller) offlineC() <-chan time.Time {
	if p.offline == nil {
		return nil
	}
	return p.offline.C
}

func (p *clientPoller) goOffline() time.Duration {
	delay := p.backoff.NextBackOff()
	p.offline = time.NewTimer(delay)
	p.status = pollerBackoff
	p.required = true
	return delay
}

func (p *clientPoller) goOnline() {
	p.offline = nil
	p.status = pollerIdle
}

func (p *clientPoller) stop() {
	if p.offline != nil {
		p.offline.Stop()
	}
}

// handle processes the result of a state read. It returns ok if the state may be broadcast,
// and an error only if the loop invocation has to end.
func (p *clientPoller) handle(ctx context.Context, res stateResult, logger *log.RelayLogger) (bool, error) {
	p.status = pollerIdle
	if ctx.Err() != nil {
		return false, nil
	}
	err := res.err
	if err == nil {
		err = res.state.Validate()
	}
	if err == nil {
		p.backoff.Reset()
		return true, nil
	}

	logger.ErrorContext(ctx, fmt.Sprintf("Error retrieving state from %s node", p.chainName), err, "side", p.side)
	if IsConnectionError(err) {
		return false, err
	}
	delay := p.goOffline()
	logger.InfoContext(ctx, "state read is postponed", "side", p.side, "delay", delay)
	return false, nil
}

func laneLogger(params Params) *log.RelayLogger {
	return log.GetLogger().WithModule("core.lane").WithLane(string(params.Lane), params.SourceName, params.TargetName)
}

// Run runs one invocation of the message lane loop. It returns nil once ctx is cancelled, and a
// *LoopError if a client connection has been lost or a race has failed. Restarting the loop after a
// failure is up to the caller; see LaneService.
func Run(ctx context.Context, params Params, source SourceClient, target TargetClient, metrics *MessageLaneLoopMetrics) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if params.Delivery.RelayerMode == RelayerModeRational {
		if _, ok := target.(DeliveryFeeEstimator); !ok {
			return errors.Wrap(ErrInvalidParams, "rational relayer mode requires a target client estimating delivery fees")
		}
	}
	return runUntilConnectionLost(ctx, params, source, target, metrics)
}

func runUntilConnectionLost(ctx context.Context, params Params, source SourceClient, target TargetClient, metrics *MessageLaneLoopMetrics) error {
	logger := laneLogger(params)
	logger.InfoContext(ctx, "starting message lane loop")

	raceCtx, cancelRaces := context.WithCancel(ctx)
	defer cancelRaces()

	deliverySource, deliveryTarget := newStateMailbox(), newStateMailbox()
	receivingSource, receivingTarget := newStateMailbox(), newStateMailbox()

	deliveryLogger := logger.WithRace(deliveryRaceName)
	deliveryDone := make(chan error, 1)
	go func() {
		race := newDeliveryRace(params.Lane, source, target, params.Delivery, metrics, deliveryLogger)
		deliveryDone <- runRace(raceCtx, race, deliverySource.C(), deliveryTarget.C(), params.StallTimeout, deliveryLogger)
	}()

	receivingLogger := logger.WithRace(receivingRaceName)
	receivingDone := make(chan error, 1)
	go func() {
		race := newReceivingRace(params.Lane, source, target, params.Delivery, metrics, receivingLogger)
		receivingDone <- runRace(raceCtx, race, receivingSource.C(), receivingTarget.C(), params.StallTimeout, receivingLogger)
	}()

	sourcePoller := newClientPoller("source", params.SourceName, source.State, params.RetryBackoff)
	defer sourcePoller.stop()
	targetPoller := newClientPoller("target", params.TargetName, target.State, params.RetryBackoff)
	defer targetPoller.stop()

	sourceTick := time.NewTicker(params.SourceTick)
	defer sourceTick.Stop()
	targetTick := time.NewTicker(params.TargetTick)
	defer targetTick.Stop()

	for {
		sourcePoller.poll(ctx)
		targetPoller.poll(ctx)

		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "message lane loop has been stopped")
			return nil

		case res := <-sourcePoller.results:
			ok, err := sourcePoller.handle(ctx, res, logger)
			if err != nil {
				return &LoopError{Failed: FailedClientSource, Err: err}
			}
			if ok {
				deliverySource.Put(res.state)
				receivingSource.Put(res.state)
				metrics.UpdateSourceState(res.state)
			}
		case <-sourcePoller.offlineC():
			sourcePoller.goOnline()
		case <-sourceTick.C:
			sourcePoller.required = true

		case res := <-targetPoller.results:
			ok, err := targetPoller.handle(ctx, res, logger)
			if err != nil {
				return &LoopError{Failed: FailedClientTarget, Err: err}
			}
			if ok {
				deliveryTarget.Put(res.state)
				receivingTarget.Put(res.state)
				metrics.UpdateTargetState(res.state)
			}
		case <-targetPoller.offlineC():
			targetPoller.goOnline()
		case <-targetTick.C:
			targetPoller.required = true

		case err := <-deliveryDone:
			if ctx.Err() != nil {
				return nil
			}
			return &LoopError{Failed: FailedClientBoth, Err: raceFailure(deliveryRaceName, err)}
		case err := <-receivingDone:
			if ctx.Err() != nil {
				return nil
			}
			return &LoopError{Failed: FailedClientBoth, Err: raceFailure(receivingRaceName, err)}
		}
	}
}

// raceFailure converts the result of a finished race into the error ending the loop
func raceFailure(race string, err error) error {
	if err == nil {
		return errors.Wrapf(ErrProtocolInvariantViolated, "%s race has finished without an error", race)
	}
	return errors.Wrapf(err, "%s race has failed", race)
}
