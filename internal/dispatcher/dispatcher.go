package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/torosent/lanebench/internal/lane"
	"github.com/torosent/lanebench/internal/message"
	"github.com/torosent/lanebench/internal/tracing"
)

var (
	// ErrLaneGone reports a lane that exited before it was told to terminate.
	ErrLaneGone = errors.New("lane gone")
	// ErrProtocolViolation reports an envelope that breaks the dispatch protocol
	// or a record whose history is incomplete.
	ErrProtocolViolation = errors.New("protocol violation")

	errNoSink = errors.New("dispatcher: sink is required")
)

// Result captures the run summary.
type Result struct {
	RunID         string
	Strategy      Strategy
	Lanes         int
	Steps         int64 // steps dispatched to a lane
	Records       int64 // records appended to the sink
	HeartBeats    int64
	Notifications int64
	Duration      time.Duration
}

// Dispatcher drives lanes through the step sequence and persists one record
// per step.
type Dispatcher struct {
	opt     Options
	log     *slog.Logger
	limiter *rate.Limiter
}

func New(opt Options) *Dispatcher {
	opt.normalize()
	d := &Dispatcher{
		opt: opt,
		log: opt.Logger.With("component", "dispatcher", "run_id", opt.RunID),
	}
	if opt.RatePerSecond > 0 {
		d.limiter = opt.LimiterFactory(opt.RatePerSecond)
	}
	return d
}

// RunID returns the identifier stamped on this dispatcher's run.
func (d *Dispatcher) RunID() string { return d.opt.RunID }

// Run executes steps 0..=Steps. Whatever the outcome, every live lane is sent
// Terminate exactly once, the sink is flushed, outbound channels are drained and
// all lanes are joined before Run returns. Cancelling ctx stops the run between
// steps.
func (d *Dispatcher) Run(ctx context.Context) (res Result, err error) {
	res = Result{RunID: d.opt.RunID, Strategy: d.opt.Strategy, Lanes: d.opt.Lanes}
	if d.opt.Sink == nil {
		return res, errNoSink
	}

	start := time.Now()
	ctx, span := tracing.StartRunSpan(ctx, d.opt.Tracer, d.opt.RunID, string(d.opt.Strategy), d.opt.Lanes, d.opt.Steps)

	r := newRun(d)
	r.span = span
	defer func() {
		res.Steps = r.dispatched
		res.Records = r.records
		res.HeartBeats = r.heartbeats
		res.Notifications = r.notifications
		res.Duration = time.Since(start)
		if err != nil {
			d.log.Error("run failed", "error", err, "records", res.Records, "duration", res.Duration)
		} else {
			d.log.Info("run finished", "records", res.Records, "heartbeats", res.HeartBeats,
				"notifications", res.Notifications, "duration", res.Duration)
		}
		tracing.EndSpan(span, err,
			attribute.Int64("lanebench.records", res.Records),
			attribute.Int64("lanebench.heartbeats", res.HeartBeats),
		)
	}()

	d.log.Info("run started", "lanes", d.opt.Lanes, "steps", d.opt.Steps,
		"strategy", d.opt.Strategy, "inbox_size", d.opt.InboxSize, "notify_every", d.opt.NotifyEvery)

	names := make([]string, d.opt.Lanes)
	for i := range names {
		names[i] = lane.Name(i)
	}
	d.opt.Collector.Plan(names, d.opt.Steps+1)
	d.opt.Collector.Start()

	r.startLanes(ctx, names)
	loopErr := r.loop(ctx)
	shutdownErr := r.shutdown()
	return res, errors.Join(loopErr, shutdownErr)
}

// run holds the state of a single Run call. Everything except the lane
// goroutines runs on the calling goroutine.
type run struct {
	d        *Dispatcher
	opt      *Options
	strategy collection

	inboxes    []chan message.Envelope
	outboxes   []chan message.Envelope // one per lane (lockstep) or one shared
	done       []chan struct{}         // closed when lane i has returned
	exited     chan int                // lane indexes in exit order
	joined     chan error
	terminated []bool
	span       trace.Span

	dispatched    int64
	records       int64
	heartbeats    int64
	notifications int64
}

func newRun(d *Dispatcher) *run {
	n := d.opt.Lanes
	r := &run{
		d:          d,
		opt:        &d.opt,
		inboxes:    make([]chan message.Envelope, n),
		done:       make([]chan struct{}, n),
		exited:     make(chan int, n),
		joined:     make(chan error, 1),
		terminated: make([]bool, n),
	}
	for i := range r.inboxes {
		r.inboxes[i] = make(chan message.Envelope, d.opt.InboxSize)
		r.done[i] = make(chan struct{})
	}
	switch d.opt.Strategy {
	case StrategyShared:
		r.outboxes = []chan message.Envelope{make(chan message.Envelope, d.opt.InboxSize)}
		r.strategy = &shared{r: r}
	default:
		r.outboxes = make([]chan message.Envelope, n)
		for i := range r.outboxes {
			r.outboxes[i] = make(chan message.Envelope, d.opt.InboxSize)
		}
		r.strategy = &lockstep{r: r}
	}
	return r
}

func (r *run) perLaneOutbox() bool { return len(r.outboxes) == len(r.inboxes) }

func (r *run) outboxFor(i int) chan message.Envelope {
	if r.perLaneOutbox() {
		return r.outboxes[i]
	}
	return r.outboxes[0]
}

// worker is the part of a lane the dispatcher supervises.
type worker interface {
	Run(ctx context.Context) error
}

func newLaneWorker(opt lane.Options) worker { return lane.New(opt) }

func (r *run) startLanes(ctx context.Context, names []string) {
	spawn := r.opt.spawn
	if spawn == nil {
		spawn = newLaneWorker
	}
	var g errgroup.Group
	for i, name := range names {
		l := spawn(lane.Options{
			ID:                  name,
			Inbox:               r.inboxes[i],
			Outbox:              r.outboxFor(i),
			AnnounceTermination: r.opt.Strategy == StrategyShared,
			Logger:              r.opt.Logger,
			Tracer:              r.opt.Tracer,
		})
		g.Go(func() error {
			defer func() {
				if r.perLaneOutbox() {
					close(r.outboxes[i])
				}
				close(r.done[i])
				r.exited <- i
			}()
			return l.Run(ctx)
		})
	}
	go func() {
		err := g.Wait()
		if !r.perLaneOutbox() {
			close(r.outboxes[0])
		}
		r.joined <- err
	}()
}

func (r *run) loop(ctx context.Context) error {
	for step := uint64(0); ; step++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stopped before step %d: %w", step, err)
		}
		if r.d.limiter != nil {
			if err := r.d.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("stopped before step %d: %w", step, err)
			}
		}

		target := int(step % uint64(r.opt.Lanes))
		began := time.Now()
		if err := r.strategy.dispatchStep(step, target, message.New(step)); err != nil {
			return err
		}
		r.dispatched++
		msg, err := r.strategy.collectStep(step, target)
		if err != nil {
			return err
		}
		if err := r.persist(step, target, msg, time.Since(began)); err != nil {
			return err
		}

		if step == r.opt.Steps {
			return nil
		}
	}
}

func (r *run) persist(step uint64, target int, msg *message.Message, latency time.Duration) error {
	if !msg.Stamp(message.Response, "OK") {
		return r.violation(step, target, "response already stamped")
	}
	if missing := msg.Missing(); len(missing) > 0 {
		return r.violation(step, target, fmt.Sprintf("history missing %v", missing))
	}
	line, err := message.Render(msg, r.opt.Format)
	if err != nil {
		return fmt.Errorf("render step %d: %w", step, err)
	}
	if err := r.opt.Sink.Append(line); err != nil {
		return fmt.Errorf("append step %d: %w", step, err)
	}
	r.records++
	r.opt.Collector.RecordStep(target, latency)
	return nil
}

// send delivers env to lane i unless that lane has already exited.
func (r *run) send(i int, step uint64, env message.Envelope) error {
	select {
	case r.inboxes[i] <- env:
		return nil
	case <-r.done[i]:
		return r.laneGone(i, step)
	}
}

func (r *run) notifyDue(step uint64) bool {
	n := uint64(r.opt.NotifyEvery)
	return n > 0 && step > 0 && step%n == 0
}

func notifyText(step uint64) string {
	return fmt.Sprintf("*** Step = %d ***", step)
}

// notify writes lane-forwarded text to the operational log.
func (r *run) notify(text string) {
	r.notifications++
	r.opt.Collector.RecordNotify()
	tracing.AddNotifyEvent(r.span, text)
	if _, err := fmt.Fprintln(r.opt.OpLog, text); err != nil {
		r.d.log.Warn("operational log write failed", "error", err)
	}
}

func (r *run) heartbeat(i int) {
	r.heartbeats++
	r.opt.Collector.RecordHeartBeat(i)
}

func (r *run) laneGone(i int, step uint64) error {
	return fmt.Errorf("step %d: lane %s: %w", step, lane.Name(i), ErrLaneGone)
}

func (r *run) violation(step uint64, i int, detail string) error {
	return fmt.Errorf("step %d: lane %s: %s: %w", step, lane.Name(i), detail, ErrProtocolViolation)
}

// terminate sends Terminate once to every lane still running.
func (r *run) terminate() {
	for i := range r.inboxes {
		if r.terminated[i] {
			continue
		}
		r.terminated[i] = true
		select {
		case r.inboxes[i] <- message.TerminateEnvelope{}:
		case <-r.done[i]:
		}
	}
}

func (r *run) shutdown() error {
	r.terminate()
	var flushErr error
	if err := r.opt.Sink.Flush(); err != nil {
		flushErr = fmt.Errorf("flush sink: %w", err)
	}
	r.strategy.drain()
	joinErr := <-r.joined
	return errors.Join(flushErr, joinErr)
}

// discard handles a leftover envelope seen while draining.
func (r *run) discard(env message.Envelope) {
	if n, ok := env.(message.NotifyEnvelope); ok {
		r.notify(n.Text)
		return
	}
	r.d.log.Debug("discarding envelope after run", "kind", env.Kind())
}
