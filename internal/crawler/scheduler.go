package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sjsage522/gloomfloor/logger"
)

var (
	// ErrSchedulerClosed settles requests submitted after Close
	ErrSchedulerClosed = errors.New("enrichment scheduler closed")
	// ErrSchedulerHalted settles requests stranded behind a failure under HaltOnFailure
	ErrSchedulerHalted = errors.New("enrichment scheduler halted after a failed request")
)

// FailurePolicy decides what the scheduler does after an enrichment fails
type FailurePolicy int

const (
	// ContinueOnFailure settles the failed request and keeps draining the queue
	ContinueOnFailure FailurePolicy = iota
	// HaltOnFailure stops dispatching after the first failure. Queued requests
	// stay pending until Close, which settles them with ErrSchedulerHalted.
	HaltOnFailure
)

func (p FailurePolicy) String() string {
	if p == HaltOnFailure {
		return "halt"
	}
	return "continue"
}

// ParseFailurePolicy maps "continue" and "halt" to a policy
func ParseFailurePolicy(s string) (FailurePolicy, bool) {
	switch s {
	case "continue":
		return ContinueOnFailure, true
	case "halt":
		return HaltOnFailure, true
	}
	return ContinueOnFailure, false
}

// enrichRequest pairs an item with the channel its result is delivered on
type enrichRequest struct {
	item Item
	done chan Result
}

func (r *enrichRequest) settle(res Result) {
	r.done <- res
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithFailurePolicy sets the failure policy
func WithFailurePolicy(p FailurePolicy) SchedulerOption {
	return func(s *Scheduler) { s.policy = p }
}

// WithInterval enforces a minimum gap between two dispatches
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithSettleHook registers fn to run on the worker after every settlement
func WithSettleHook(fn func(Result)) SchedulerOption {
	return func(s *Scheduler) { s.onSettle = fn }
}

// Scheduler runs enrichment requests strictly one at a time, in submission
// order, on a single worker goroutine. Any number of callers may submit
// concurrently; each gets its own result channel.
type Scheduler struct {
	enricher Enricher
	policy   FailurePolicy
	limiter  *rate.Limiter
	onSettle func(Result)
	log      *logger.Logger

	mu      sync.Mutex
	queue   []*enrichRequest
	closed  bool
	started bool

	wake   chan struct{}
	halted chan struct{}
	done   chan struct{}
}

// NewScheduler creates a scheduler around enricher. Call Start before results are expected.
func NewScheduler(enricher Enricher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		enricher: enricher,
		log:      logger.ForScheduler(),
		wake:     make(chan struct{}, 1),
		halted:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker. Cancelling ctx settles the in-flight and every
// queued request with the context error.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go s.run(ctx)
}

// Submit queues item for enrichment and returns the channel its Result will
// be delivered on. It never blocks.
func (s *Scheduler) Submit(item Item) <-chan Result {
	req := &enrichRequest{item: item, done: make(chan Result, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		req.settle(Result{Item: item, Err: ErrSchedulerClosed})
		return req.done
	}
	s.queue = append(s.queue, req)
	s.mu.Unlock()

	s.signal()
	return req.done
}

// EnrichAll submits every item at once and waits for all of them. Results are
// returned in the order of items.
func (s *Scheduler) EnrichAll(ctx context.Context, items []Item) []Result {
	pending := make([]<-chan Result, len(items))
	for i, item := range items {
		pending[i] = s.Submit(item)
	}

	results := make([]Result, len(items))
	for i, ch := range pending {
		select {
		case res := <-ch:
			results[i] = res
		case <-s.halted:
			select {
			case res := <-ch:
				results[i] = res
			default:
				results[i] = Result{Item: items[i], Err: ErrSchedulerHalted}
			}
		case <-ctx.Done():
			results[i] = Result{Item: items[i], Err: ctx.Err()}
		}
	}
	return results
}

// Halted is closed once the scheduler stops dispatching because of HaltOnFailure
func (s *Scheduler) Halted() <-chan struct{} {
	return s.halted
}

// Pending returns the number of queued requests not yet dispatched
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops accepting requests, lets the worker finish what is queued and
// waits for it to exit. Under a halt, queued requests settle with ErrSchedulerHalted.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed && !s.started {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if !started {
		s.drain(ErrSchedulerClosed)
		return
	}
	s.signal()
	<-s.done
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next pops the head of the queue
func (s *Scheduler) next() (req *enrichRequest, remaining int, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, 0, s.closed
	}
	req = s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return req, len(s.queue), s.closed
}

// drain settles every queued request with err and refuses further submissions
func (s *Scheduler) drain(err error) {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.closed = true
	s.mu.Unlock()

	for _, req := range queue {
		s.finish(req, Result{Item: req.item, Err: err})
	}
}

func (s *Scheduler) finish(req *enrichRequest, res Result) {
	req.settle(res)
	if s.onSettle != nil {
		s.onSettle(res)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		if err := ctx.Err(); err != nil {
			s.drain(err)
			return
		}

		req, remaining, closed := s.next()
		if req == nil {
			if closed {
				return
			}
			select {
			case <-s.wake:
			case <-ctx.Done():
			}
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				s.finish(req, Result{Item: req.item, Err: err})
				continue
			}
		}

		s.log.Info().
			Str("number", req.item.Number).
			Int("remaining", remaining).
			Msgf("Fetching #%s - %d remaining", req.item.Number, remaining)

		enrichment, err := s.enricher.Enrich(ctx, req.item)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("number", req.item.Number).
				Msg("Enrichment failed")
			s.finish(req, Result{Item: req.item, Err: err})
			if s.policy == HaltOnFailure {
				s.halt(ctx)
				return
			}
			continue
		}

		s.finish(req, Result{Item: req.item.WithEnrichment(enrichment)})
	}
}

// halt parks the worker after a failure until Close or cancellation
func (s *Scheduler) halt(ctx context.Context) {
	s.log.Error().
		Int("stranded", s.Pending()).
		Msg("Enrichment halted, queued requests will not be dispatched")
	close(s.halted)

	for {
		select {
		case <-s.wake:
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.drain(ErrSchedulerHalted)
				return
			}
		case <-ctx.Done():
			s.drain(ctx.Err())
			return
		}
	}
}
