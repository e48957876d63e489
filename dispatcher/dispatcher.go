/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package dispatcher serializes messages from many producers into a single throttle.Throttle.
//
// A Dispatcher owns its Throttle: the goroutine running Run is the only one that submits
// messages to it and drains it, so the Throttle (which is not safe for concurrent use)
// may be fed from any number of goroutines via Dispatcher.Submit.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.uber.org/atomic"

	"github.com/acronis/go-msgthrottle/clock"
	"github.com/acronis/go-msgthrottle/log"
	"github.com/acronis/go-msgthrottle/lrucache"
	"github.com/acronis/go-msgthrottle/throttle"
)

// DefaultQueueSize is the default capacity of the inbound queue.
const DefaultQueueSize = 1024

// Errors returned by Dispatcher.
var (
	ErrStopped        = errors.New("dispatcher is stopped")
	ErrAlreadyRunning = errors.New("dispatcher is already running")
)

// Envelope carries a message together with its ID. The ID is used for deduplication.
type Envelope struct {
	ID      xid.ID
	Payload interface{}
}

// NewEnvelope wraps payload into an Envelope with a newly generated ID.
func NewEnvelope(payload interface{}) Envelope {
	return Envelope{ID: xid.New(), Payload: payload}
}

// DedupOpts configures dropping of envelopes whose IDs were seen recently.
type DedupOpts struct {
	// MaxKeys is the number of remembered IDs. The least recently seen ones are forgotten first.
	MaxKeys int

	// TTL is how long an ID is remembered (0 means until evicted).
	TTL time.Duration

	// Metrics collects metrics of the underlying cache (may be nil).
	Metrics lrucache.MetricsCollector
}

// Stats is a snapshot of Dispatcher counters.
type Stats struct {
	Submitted             int64
	DispatchedImmediately int64
	Buffered              int64
	Drained               int64
	Duplicates            int64
	PendingHigh           int64
	PendingOther          int64
	Queued                int
}

// Option is a functional option for New.
type Option func(*options)

type options struct {
	logger               log.FieldLogger
	metrics              MetricsCollector
	queueSize            int
	backlogWarnThreshold int
	dedup                *DedupOpts
	clock                clock.Clock
}

// WithLogger sets the logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithQueueSize sets the capacity of the inbound queue. Submit blocks when it is full.
func WithQueueSize(size int) Option {
	return func(o *options) {
		o.queueSize = size
	}
}

// WithBacklogWarnThreshold makes the dispatcher log a warning each time the backlog reaches n messages
// (after having been below it). 0 disables the warning.
func WithBacklogWarnThreshold(n int) Option {
	return func(o *options) {
		o.backlogWarnThreshold = n
	}
}

// WithDedup enables deduplication of envelopes by ID.
func WithDedup(opts DedupOpts) Option {
	return func(o *options) {
		o.dedup = &opts
	}
}

// WithClock sets the clock used for expiration of remembered IDs.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// Dispatcher feeds a Throttle from a bounded inbound queue and drains it on time.
type Dispatcher[H any] struct {
	thr     *throttle.Throttle[H]
	inbound chan Envelope
	stopped chan struct{}
	running atomic.Bool

	logger               log.FieldLogger
	metrics              MetricsCollector
	backlogWarnThreshold int
	backlogAboveWarn     bool
	dedup                *lrucache.LRUCache[xid.ID, struct{}]
	dedupTTL             time.Duration

	submitted             atomic.Int64
	dispatchedImmediately atomic.Int64
	buffered              atomic.Int64
	drained               atomic.Int64
	duplicates            atomic.Int64
	pendingHigh           atomic.Int64
	pendingOther          atomic.Int64
}

// New creates a new Dispatcher that owns thr. thr must not be used by anyone else afterwards.
func New[H any](thr *throttle.Throttle[H], opts ...Option) (*Dispatcher[H], error) {
	if thr == nil {
		return nil, fmt.Errorf("throttle must not be nil")
	}
	o := options{queueSize: DefaultQueueSize, clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.queueSize < 0 {
		return nil, fmt.Errorf("queue size must be >= 0, got %d", o.queueSize)
	}
	if o.backlogWarnThreshold < 0 {
		return nil, fmt.Errorf("backlog warn threshold must be >= 0, got %d", o.backlogWarnThreshold)
	}
	if o.logger == nil {
		o.logger = log.NewDisabledLogger()
	}
	if o.metrics == nil {
		o.metrics = DisabledMetrics{}
	}

	d := &Dispatcher[H]{
		thr:                  thr,
		inbound:              make(chan Envelope, o.queueSize),
		stopped:              make(chan struct{}),
		logger:               o.logger,
		metrics:              o.metrics,
		backlogWarnThreshold: o.backlogWarnThreshold,
	}
	if o.dedup != nil {
		cache, err := lrucache.NewWithOpts[xid.ID, struct{}](
			o.dedup.MaxKeys, o.dedup.Metrics, lrucache.Options{DefaultTTL: o.dedup.TTL, Clock: o.clock})
		if err != nil {
			return nil, fmt.Errorf("new dedup cache: %w", err)
		}
		d.dedup = cache
		d.dedupTTL = o.dedup.TTL
	}
	return d, nil
}

// Submit puts env into the inbound queue. It is safe for concurrent use.
// It blocks while the queue is full, until ctx is done or the dispatcher stops.
func (d *Dispatcher[H]) Submit(ctx context.Context, env Envelope) error {
	select {
	case <-d.stopped:
		return ErrStopped
	default:
	}
	select {
	case d.inbound <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}
}

// SubmitPayload wraps payload into a new Envelope and submits it.
func (d *Dispatcher[H]) SubmitPayload(ctx context.Context, payload interface{}) error {
	return d.Submit(ctx, NewEnvelope(payload))
}

// Run processes the inbound queue and drains the throttle until ctx is done.
// It implements service.Worker. Run may be called only once: messages left in the backlog
// when it returns are never dispatched, and further Submit calls fail with ErrStopped.
func (d *Dispatcher[H]) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(d.stopped)

	if d.dedup != nil && d.dedupTTL > 0 {
		cleanupCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go d.dedup.RunPeriodicCleanup(cleanupCtx, d.dedupTTL)
	}

	drainTimer := time.NewTimer(time.Hour)
	if !drainTimer.Stop() {
		<-drainTimer.C
	}
	defer drainTimer.Stop()
	drainScheduled := false
	scheduleDrain := func(delay time.Duration) {
		if delay > 0 && !drainScheduled {
			drainTimer.Reset(delay)
			drainScheduled = true
		}
	}

	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logStop()
			return nil
		case env := <-d.inbound:
			scheduleDrain(d.handle(env))
		case <-drainTimer.C:
			drainScheduled = false
			scheduleDrain(d.drain())
		}
	}
}

// Stats returns a snapshot of the dispatcher counters. It may be called from any goroutine.
func (d *Dispatcher[H]) Stats() Stats {
	return Stats{
		Submitted:             d.submitted.Load(),
		DispatchedImmediately: d.dispatchedImmediately.Load(),
		Buffered:              d.buffered.Load(),
		Drained:               d.drained.Load(),
		Duplicates:            d.duplicates.Load(),
		PendingHigh:           d.pendingHigh.Load(),
		PendingOther:          d.pendingOther.Load(),
		Queued:                len(d.inbound),
	}
}

// Done returns a channel that is closed when Run returns.
func (d *Dispatcher[H]) Done() <-chan struct{} {
	return d.stopped
}

func (d *Dispatcher[H]) handle(env Envelope) time.Duration {
	if d.isDuplicate(env) {
		d.duplicates.Inc()
		d.metrics.IncDuplicated()
		d.logger.Debug("duplicate message dropped", log.String("msg_id", env.ID.String()), log.MessageType(env.Payload))
		return 0
	}

	d.submitted.Inc()
	d.metrics.IncSubmitted()

	highBefore, _ := d.thr.Pending()
	delay := d.thr.Submit(env.Payload)
	if delay == 0 {
		d.dispatchedImmediately.Inc()
		d.metrics.AddDispatched(DispatchModeImmediate, 1)
		return 0
	}

	lane := LaneOther
	if highAfter, _ := d.thr.Pending(); highAfter > highBefore {
		lane = LaneHigh
	}
	d.buffered.Inc()
	d.metrics.IncBuffered(lane)
	d.metrics.ObserveThrottleDelay(delay)
	d.logger.Debug("message throttled",
		log.String("msg_id", env.ID.String()), log.MessageType(env.Payload),
		log.String("lane", lane), log.Duration("delay", delay))
	d.updateBacklog()
	return delay
}

func (d *Dispatcher[H]) drain() time.Duration {
	before := d.thr.Len()
	delay := d.thr.Drain()
	if n := before - d.thr.Len(); n > 0 {
		d.drained.Add(int64(n))
		d.metrics.AddDispatched(DispatchModeDrained, n)
	}
	d.updateBacklog()
	return delay
}

func (d *Dispatcher[H]) isDuplicate(env Envelope) bool {
	if d.dedup == nil || env.ID.IsNil() {
		return false
	}
	_, seen := d.dedup.GetOrAdd(env.ID, func() struct{} { return struct{}{} })
	return seen
}

func (d *Dispatcher[H]) updateBacklog() {
	high, other := d.thr.Pending()
	d.pendingHigh.Store(int64(high))
	d.pendingOther.Store(int64(other))
	d.metrics.SetBacklog(high, other)

	if d.backlogWarnThreshold == 0 {
		return
	}
	total := high + other
	switch {
	case total >= d.backlogWarnThreshold && !d.backlogAboveWarn:
		d.backlogAboveWarn = true
		d.logger.Warn("throttle backlog is growing",
			log.Int("backlog_high", high), log.Int("backlog_other", other),
			log.Int("threshold", d.backlogWarnThreshold))
	case total < d.backlogWarnThreshold && d.backlogAboveWarn:
		d.backlogAboveWarn = false
		d.logger.Info("throttle backlog is back below threshold",
			log.Int("backlog_high", high), log.Int("backlog_other", other))
	}
}

func (d *Dispatcher[H]) logStop() {
	high, other := d.thr.Pending()
	queued := len(d.inbound)
	if high+other+queued == 0 {
		d.logger.Info("dispatcher stopped")
		return
	}
	d.logger.Warn("dispatcher stopped with undispatched messages",
		log.Int("backlog_high", high), log.Int("backlog_other", other), log.Int("queued", queued))
}
