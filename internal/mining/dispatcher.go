package mining

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/nholt/zkminer/internal/logging"
)

// Dispatcher owns the candidate queue and the worker pool. Create one
// with NewDispatcher and drive it with Run.
type Dispatcher struct {
	cfg     Config
	builder ContextBuilder
	sink    ProofSink
	log     logging.Logger

	queue        chan Candidate
	terminations chan termination

	// slots is only touched by the Run loop.
	slots []slotState
}

// slotState tracks one worker slot. The id is the slot index and never
// changes; the generation increments on every restart so that stale
// termination events can be recognized.
type slotState struct {
	generation uint64
}

type termination struct {
	slot       int
	generation uint64
	err        error
}

// NewDispatcher creates a dispatcher. The sink must be non-nil; a nil
// logger disables logging.
func NewDispatcher(log logging.Logger, cfg Config, builder ContextBuilder, sink ProofSink) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	cfg = cfg.normalize()
	return &Dispatcher{
		cfg:     cfg,
		builder: builder,
		sink:    sink,
		log:     log,
		queue:   make(chan Candidate, cfg.QueueCapacity),
	}
}

// Submit offers a candidate to the queue without blocking. When the
// queue is full the candidate is dropped and Submit returns false; the
// producer is never stalled by slow workers.
func (d *Dispatcher) Submit(c Candidate) bool {
	candidatesReceivedTotal.Inc()
	select {
	case d.queue <- c:
		return true
	default:
		candidatesDroppedTotal.Inc()
		d.log.Warn("mining queue full, dropping candidate", logging.Uint64("seq", c.Seq))
		return false
	}
}

// Run starts the worker pool and supervises it until ctx is cancelled.
// Candidates arriving on source are fanned into the bounded queue; a
// closed source stops intake but leaves the pool running. Each worker
// termination triggers exactly one restart of that slot.
func (d *Dispatcher) Run(ctx context.Context, source <-chan Candidate) error {
	workers := d.cfg.Workers()
	d.slots = make([]slotState, workers)
	// One outstanding termination per slot at most, so sends below
	// never block even after Run has returned.
	d.terminations = make(chan termination, workers)

	d.log.Info("starting mining pool",
		logging.Int("workers", workers),
		logging.Int("threads_per_worker", d.cfg.ThreadsPerWorker()),
		logging.Int("queue_capacity", d.cfg.QueueCapacity),
	)

	for id := range d.slots {
		d.slots[id].generation = 1
		go d.worker(ctx, id, 1)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cand, ok := <-source:
			if !ok {
				source = nil
				continue
			}
			d.Submit(cand)

		case t := <-d.terminations:
			d.restart(ctx, t)
		}
	}
}

// restart brings a terminated slot back up under the next generation.
func (d *Dispatcher) restart(ctx context.Context, t termination) {
	s := &d.slots[t.slot]
	if t.generation != s.generation {
		// A stale event from a generation that was already replaced.
		return
	}
	s.generation++
	gen := s.generation

	workerRestartsTotal.WithLabelValues(strconv.Itoa(t.slot)).Inc()
	d.log.Warn("mining worker terminated, restarting",
		logging.Int("slot", t.slot),
		logging.Uint64("generation", gen),
		logging.Err(t.err),
	)

	if d.cfg.RestartDelay > 0 {
		time.AfterFunc(d.cfg.RestartDelay, func() { d.worker(ctx, t.slot, gen) })
		return
	}
	go d.worker(ctx, t.slot, gen)
}

// worker is the body of one pool slot: build the proving context once,
// then prove candidates until shutdown. Any exit other than shutdown is
// reported as a termination event; panics are contained here so one bad
// candidate can never take down the process or a sibling worker.
func (d *Dispatcher) worker(ctx context.Context, id int, gen uint64) {
	var termErr error
	defer func() {
		if r := recover(); r != nil {
			termErr = fmt.Errorf("mining worker panic: %v\nStack: %s", r, debug.Stack())
		}
		if ctx.Err() != nil {
			return
		}
		d.terminations <- termination{slot: id, generation: gen, err: termErr}
	}()

	pctx, err := d.builder.Build(ctx, id)
	if err != nil {
		termErr = fmt.Errorf("build proving context: %w", err)
		return
	}
	defer pctx.Close()

	d.log.Info("mining worker ready",
		logging.Int("slot", id),
		logging.Uint64("generation", gen),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case cand := <-d.queue:
			proof, err := pctx.Prove(ctx, cand)
			if err != nil {
				attemptsFailedTotal.Inc()
				d.log.Warn("proving attempt failed",
					logging.Int("slot", id),
					logging.Uint64("seq", cand.Seq),
					logging.Err(err),
				)
				continue
			}
			proofsMinedTotal.Inc()
			// Fire and forget: a slow consumer must not stall proving.
			go d.sink(proof)
		}
	}
}
