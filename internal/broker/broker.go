package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"summarist/internal/domain"
	"summarist/internal/metrics"
)

const (
	DefaultMinRequestInterval = time.Second
	DefaultMaxRetries         = 3
)

var ErrStopped = errors.New("broker is stopped")

// Dispatcher performs provider calls on behalf of the broker. Precheck must
// not touch the network.
type Dispatcher interface {
	Precheck(req domain.SummaryRequest) error
	Dispatch(ctx context.Context, attempt domain.Attempt) (string, error)
}

type Options struct {
	// MinRequestInterval is the floor between the starts of two consecutive
	// dispatches, shared by all providers.
	MinRequestInterval time.Duration
	// MaxRetries caps the retries of a rate-limited job. Zero disables
	// retries; a negative value selects DefaultMaxRetries.
	MaxRetries int
}

// Broker serializes provider calls through a single worker goroutine. The
// queue, the running flag and lastDispatch are guarded by mu; only the worker
// pops jobs and moves lastDispatch.
type Broker struct {
	dispatcher Dispatcher
	interval   time.Duration
	maxRetries int

	mu           sync.Mutex
	queue        []*job
	running      bool
	stopped      bool
	lastDispatch time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger
}

func New(dispatcher Dispatcher, opts Options, log *slog.Logger) *Broker {
	if opts.MinRequestInterval <= 0 {
		opts.MinRequestInterval = DefaultMinRequestInterval
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Broker{
		dispatcher: dispatcher,
		interval:   opts.MinRequestInterval,
		maxRetries: opts.MaxRetries,
		ctx:        ctx,
		cancel:     cancel,
		log:        log,
	}
}

// Submit enqueues req and returns a channel that receives exactly one
// result. It never blocks.
func (b *Broker) Submit(req domain.SummaryRequest) <-chan domain.Result {
	j := newJob(req)

	if err := b.dispatcher.Precheck(req); err != nil {
		b.log.InfoContext(b.ctx, "Request is rejected before queueing",
			"error", err,
			"provider", req.Provider.String(),
			"operation", req.Operation.String(),
			"failureKind", domain.KindOf(err).String())

		b.finish(j, domain.Result{Err: err})

		return j.result
	}

	b.enqueue(j)

	return j.result
}

// Summarize submits req and waits for its result. When ctx ends first the
// job keeps running and its result is discarded.
func (b *Broker) Summarize(ctx context.Context, req domain.SummaryRequest) (string, error) {
	select {
	case res := <-b.Submit(req):
		return res.Summary, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}

// Stop cancels the in-flight call and resolves every pending job with
// ErrStopped.
func (b *Broker) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	b.mu.Lock()
	pending := b.queue
	b.queue = nil
	b.mu.Unlock()

	metrics.QueueLength.Set(0)

	for _, j := range pending {
		b.finish(j, domain.Result{Err: stoppedFailure(j.req)})
	}

	b.log.InfoContext(b.ctx, "Broker is stopped",
		"droppedJobs", len(pending))
}

func (b *Broker) enqueue(j *job) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		b.finish(j, domain.Result{Err: stoppedFailure(j.req)})

		return
	}

	b.queue = append(b.queue, j)
	queueLen := len(b.queue)

	if !b.running {
		b.running = true
		b.wg.Add(1)
		go b.run()
	}
	b.mu.Unlock()

	metrics.QueueLength.Set(float64(queueLen))
}

func (b *Broker) run() {
	defer b.wg.Done()

	for b.drainOne() {
	}
}

// drainOne waits for the spacing clock, pops the head job and dispatches it.
// It returns false once the queue is empty or the broker is stopping.
func (b *Broker) drainOne() bool {
	b.mu.Lock()
	if len(b.queue) == 0 || b.ctx.Err() != nil {
		b.running = false
		b.mu.Unlock()

		return false
	}
	wait := b.delayLocked(time.Now())
	b.mu.Unlock()

	if wait > 0 {
		b.log.DebugContext(b.ctx, "Spacing dispatch",
			"delay", wait,
			"queueLen", b.Len())

		select {
		case <-time.After(wait):
		case <-b.ctx.Done():
			b.mu.Lock()
			b.running = false
			b.mu.Unlock()

			return false
		}
	}

	b.mu.Lock()
	if len(b.queue) == 0 {
		b.running = false
		b.mu.Unlock()

		return false
	}
	j := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	queueLen := len(b.queue)

	now := time.Now()
	b.lastDispatch = now
	b.mu.Unlock()

	metrics.QueueLength.Set(float64(queueLen))

	b.dispatch(j, now)

	return true
}

func (b *Broker) delayLocked(now time.Time) time.Duration {
	if b.lastDispatch.IsZero() {
		return 0
	}

	return max(b.interval-now.Sub(b.lastDispatch), 0)
}

func (b *Broker) dispatch(j *job, at time.Time) {
	req := j.req
	attempt := domain.Attempt{
		Request:      req,
		Number:       j.retryCount + 1,
		DispatchedAt: at,
	}

	metrics.DispatchesTotal.WithLabelValues(req.Provider.String(), req.Operation.String()).Inc()

	summary, err := b.dispatcher.Dispatch(b.ctx, attempt)
	if err == nil {
		b.finish(j, domain.Result{Summary: summary})

		return
	}

	kind := domain.KindOf(err)

	if kind == domain.FailureRateLimited && j.retryCount < b.maxRetries && b.ctx.Err() == nil {
		b.retry(j)

		return
	}

	if kind == domain.FailureRateLimited && j.retryCount > 0 {
		err = fmt.Errorf("give up after %d retries: %w", j.retryCount, err)
	}

	b.log.WarnContext(b.ctx, "Request failed",
		"error", err,
		"provider", req.Provider.String(),
		"operation", req.Operation.String(),
		"failureKind", kind.String(),
		"attempt", attempt.Number)

	b.finish(j, domain.Result{Err: err})
}

// retry re-enqueues j at the tail after interval*(retryCount+1). The worker
// does not wait for it.
func (b *Broker) retry(j *job) {
	backoff := b.interval * time.Duration(j.retryCount+1)
	j.retryCount++

	metrics.RetriesTotal.WithLabelValues(j.req.Provider.String()).Inc()

	b.log.InfoContext(b.ctx, "Rate limited, retrying",
		"provider", j.req.Provider.String(),
		"backoff", backoff,
		"retry", j.retryCount,
		"maxRetries", b.maxRetries)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		timer := time.NewTimer(backoff)
		defer timer.Stop()

		select {
		case <-timer.C:
			b.enqueue(j)
		case <-b.ctx.Done():
			b.finish(j, domain.Result{Err: stoppedFailure(j.req)})
		}
	}()
}

func (b *Broker) finish(j *job, res domain.Result) {
	outcome := metrics.OutcomeSuccess
	if res.Err != nil {
		outcome = domain.KindOf(res.Err).String()
	}
	metrics.ResultsTotal.WithLabelValues(j.req.Provider.String(), outcome).Inc()

	j.resolve(res)
}

func stoppedFailure(req domain.SummaryRequest) error {
	return &domain.Failure{
		Kind:     domain.FailureUnknown,
		Provider: req.Provider,
		Err:      ErrStopped,
	}
}
