package core

import (
	"context"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

const reconnectAttempts = 5

// StartService starts a lane service and blocks until ctx is cancelled
func StartService(
	ctx context.Context,
	params Params,
	source SourceClient,
	target TargetClient,
	metrics *MessageLaneLoopMetrics,
) error {
	return NewLaneService(params, source, target, metrics).Start(ctx)
}

// StartServices runs several lane services concurrently. It returns the first error
// that is not recoverable by restarting a loop.
func StartServices(ctx context.Context, services ...*LaneService) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, srv := range services {
		srv := srv
		eg.Go(func() error {
			return srv.Start(ctx)
		})
	}
	return eg.Wait()
}

// LaneService supervises the message lane loop of a single lane
type LaneService struct {
	params  Params
	source  SourceClient
	target  TargetClient
	metrics *MessageLaneLoopMetrics
}

// NewLaneService returns a new service
func NewLaneService(params Params, source SourceClient, target TargetClient, metrics *MessageLaneLoopMetrics) *LaneService {
	return &LaneService{
		params:  params,
		source:  source,
		target:  target,
		metrics: metrics,
	}
}

// Start runs the loop until ctx is cancelled. A failed loop invocation is followed by a reconnection
// of the failed clients and a new invocation; only invalid params end the service with an error.
func (srv *LaneService) Start(ctx context.Context) error {
	logger := laneLogger(srv.params)
	for {
		err := Run(ctx, srv.params, srv.source, srv.target, srv.metrics)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrInvalidParams) {
			return err
		}

		logger.ErrorContext(ctx, "Message lane loop has failed; restarting", err, "reconnect_delay", srv.params.ReconnectDelay)
		srv.metrics.LoopRestarted(ctx)
		if err := wait(ctx, srv.params.ReconnectDelay); err != nil {
			return nil
		}
		srv.reconnect(ctx, failedClientOf(err))
	}
}

func failedClientOf(err error) FailedClient {
	var loopErr *LoopError
	if errors.As(err, &loopErr) {
		return loopErr.Failed
	}
	return FailedClientBoth
}

func (srv *LaneService) reconnect(ctx context.Context, failed FailedClient) {
	logger := laneLogger(srv.params)
	clients := map[string]Client{}
	if failed == FailedClientSource || failed == FailedClientBoth {
		clients["source"] = srv.source
	}
	if failed == FailedClientTarget || failed == FailedClientBoth {
		clients["target"] = srv.target
	}

	for side, client := range clients {
		if err := retry.Do(func() error {
			return client.Reconnect(ctx)
		},
			retry.Attempts(reconnectAttempts),
			retry.Delay(srv.params.ReconnectDelay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				logger.InfoContext(ctx,
					"retrying to reconnect",
					"side", side,
					"try", n+1,
					"try_limit", reconnectAttempts,
					"error", err.Error(),
				)
			}),
		); err != nil {
			// the next loop invocation fails again and leads to another attempt
			logger.ErrorContext(ctx, "failed to reconnect", err, "side", side)
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
