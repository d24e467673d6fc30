package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/linkedge-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
	"github.com/angelmondragon/linkedge-backend/pkg/metrics"
)

const (
	defaultDispatchTimeout   = 2 * time.Second
	defaultDispatchAttempts  = 3
	defaultFanoutConcurrency = 8
	dispatchRetryBase        = 100 * time.Millisecond
	dispatchRetryCap         = 2 * time.Second
)

// FanoutParams configures a Fanout.
type FanoutParams struct {
	Dispatcher  Dispatcher
	Timeout     time.Duration
	Attempts    int
	Concurrency int
	RetryBase   time.Duration
	Metrics     *metrics.NotificationMetrics
	Logger      *logger.Logger
}

// Fanout sends many jobs with bounded concurrency. Every job runs under its
// own timeout and transient failures are retried; one failed recipient never
// stops the others.
type Fanout struct {
	dispatcher  Dispatcher
	timeout     time.Duration
	attempts    int
	concurrency int
	retryBase   time.Duration
	metrics     *metrics.NotificationMetrics
	logg        *logger.Logger
}

// FanoutResult summarizes one Dispatch call. Err is the last failure seen.
type FanoutResult struct {
	Sent   int
	Failed int
	Err    error
}

func NewFanout(params FanoutParams) (*Fanout, error) {
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	f := &Fanout{
		dispatcher:  params.Dispatcher,
		timeout:     params.Timeout,
		attempts:    params.Attempts,
		concurrency: params.Concurrency,
		retryBase:   params.RetryBase,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}
	if f.timeout <= 0 {
		f.timeout = defaultDispatchTimeout
	}
	if f.attempts <= 0 {
		f.attempts = defaultDispatchAttempts
	}
	if f.concurrency <= 0 {
		f.concurrency = defaultFanoutConcurrency
	}
	if f.retryBase <= 0 {
		f.retryBase = dispatchRetryBase
	}
	return f, nil
}

// FanoutFromConfig builds a Fanout from the notifications config section.
func FanoutFromConfig(cfg config.NotificationsConfig, dispatcher Dispatcher, m *metrics.NotificationMetrics, logg *logger.Logger) (*Fanout, error) {
	return NewFanout(FanoutParams{
		Dispatcher:  dispatcher,
		Timeout:     cfg.DispatchTimeout,
		Attempts:    cfg.DispatchAttempts,
		Concurrency: cfg.FanoutConcurrency,
		Metrics:     m,
		Logger:      logg,
	})
}

// Dispatch sends every job and waits for all of them.
func (f *Fanout) Dispatch(ctx context.Context, jobs []NotificationJob) FanoutResult {
	var (
		mu     sync.Mutex
		result FanoutResult
		g      errgroup.Group
	)
	g.SetLimit(f.concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			err := f.send(ctx, job)
			f.metrics.IncDispatched(string(job.Type), err == nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Err = err
				logCtx := f.logg.WithField(ctx, "recipient_id", job.RecipientID.String())
				f.logg.Error(logCtx, "notification dispatch failed", err)
				return nil
			}
			result.Sent++
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func (f *Fanout) send(ctx context.Context, job NotificationJob) error {
	backoff := retry.NewExponential(f.retryBase)
	backoff = retry.WithCappedDuration(dispatchRetryCap, backoff)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(uint64(f.attempts-1), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		err := f.dispatcher.Send(attemptCtx, job)
		if err != nil && (pkgerrors.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)) {
			return retry.RetryableError(err)
		}
		return err
	})
}
