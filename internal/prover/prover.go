// Package prover builds and runs per-worker proving contexts. A
// ProvingContext carries everything one mining worker needs to turn a
// block commitment into a proof: the proving program, a private scratch
// directory, a transform engine sized to the worker's thread share, and
// the shared domain cache. Construction is the expensive step; proving
// reuses the context for every candidate.
package prover

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/nholt/zkminer/internal/domain"
	"github.com/nholt/zkminer/internal/field"
	"github.com/nholt/zkminer/internal/logging"
	"github.com/nholt/zkminer/internal/mining"
	"github.com/nholt/zkminer/internal/poly"
)

// DefaultTraceLog sizes the execution trace at 2^8 = 256 rows. The
// extended domain is twice that, well inside the precompute ladder.
const DefaultTraceLog = 8

// traceBlowup is the low-degree extension factor.
const traceBlowup = 2

var (
	provingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prover_attempts_total",
			Help: "The total number of proving attempts by status",
		},
		[]string{"status"},
	)
	provingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "prover_attempt_duration_seconds",
			Help: "The duration of proving attempts in seconds",
		},
	)
)

var (
	_ mining.ContextBuilder = (*Builder)(nil)
	_ mining.ProvingContext = (*Context)(nil)
)

// Builder constructs proving contexts for the mining pool. It
// implements mining.ContextBuilder.
type Builder struct {
	// ProgramPath points at the proving program image. When empty, a
	// built-in program is synthesized, which keeps development setups
	// and tests self-contained.
	ProgramPath string
	// Cache is the shared domain cache. Required.
	Cache *domain.Cache
	// Threads is the worker's share of the thread budget, used to size
	// its transform engine. If 0, the engine default applies.
	Threads int
	// TraceLog is the log2 of the trace length. If 0, DefaultTraceLog.
	TraceLog int
	// Log is the logger for built contexts. A nil logger disables
	// logging.
	Log logging.Logger
}

// Context is one worker's proving state. It implements
// mining.ProvingContext and must not be shared between workers.
type Context struct {
	workerID      int
	program       []byte
	programDigest [32]byte
	scratchDir    string
	engine        *poly.Engine
	cache         *domain.Cache
	offset        field.Element
	traceLen      int
	log           logging.Logger
}

// Build loads the proving program, creates the worker's scratch
// directory and transform engine, and warms the domains the proving
// pipeline will hit.
func (b *Builder) Build(ctx context.Context, workerID int) (mining.ProvingContext, error) {
	log := b.Log
	if log == nil {
		log = logging.Nop()
	}

	program, err := b.loadProgram()
	if err != nil {
		return nil, fmt.Errorf("load proving program: %w", err)
	}

	scratch, err := os.MkdirTemp("", fmt.Sprintf("zkminer-worker-%d-", workerID))
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(scratch, "program.bin"), program, 0o600); err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("stage proving program: %w", err)
	}

	traceLog := b.TraceLog
	if traceLog == 0 {
		traceLog = DefaultTraceLog
	}
	traceLen := 1 << traceLog

	// The coset offset is the field generator, so the extended domain
	// is disjoint from the trace subgroup.
	offset := field.New(field.Generator)
	if err := b.Cache.Precompute(uint64(traceLen*traceBlowup), offset); err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("warm proving domains: %w", err)
	}

	c := &Context{
		workerID:      workerID,
		program:       program,
		programDigest: sha256.Sum256(program),
		scratchDir:    scratch,
		engine:        poly.New(log, poly.Options{MaxWorkers: b.Threads}),
		cache:         b.Cache,
		offset:        offset,
		traceLen:      traceLen,
		log:           log,
	}
	log.Info("proving context ready",
		logging.Int("worker", workerID),
		logging.Int("trace_len", traceLen),
		logging.String("scratch_dir", scratch),
	)
	return c, nil
}

func (b *Builder) loadProgram() ([]byte, error) {
	if b.ProgramPath != "" {
		return os.ReadFile(b.ProgramPath)
	}
	// Built-in program: a fixed seed expanded by hash chaining. What
	// matters downstream is that it is deterministic, so identical
	// candidates yield identical proofs on every worker.
	seed := sha256.Sum256([]byte("zkminer built-in proving program v1"))
	program := make([]byte, 0, 32*32)
	block := seed
	for i := 0; i < 32; i++ {
		block = sha256.Sum256(block[:])
		program = append(program, block[:]...)
	}
	return program, nil
}

// Prove runs the acceleration pipeline over one candidate: expand the
// commitment into an execution trace, low-degree extend it over the
// coset, build the composition column, interpolate back and commit.
// The result is deterministic for a given program and candidate.
func (c *Context) Prove(ctx context.Context, cand mining.Candidate) (proof mining.Proof, err error) {
	tracer := otel.Tracer("prover")
	ctx, span := tracer.Start(ctx, "Prove")
	defer span.End()

	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		status := "success"
		if err != nil {
			status = "error"
		}
		provingAttemptsTotal.WithLabelValues(status).Inc()
		provingDuration.Observe(duration)
		c.log.Debug("proving attempt finished",
			logging.Int("worker", c.workerID),
			logging.Uint64("seq", cand.Seq),
			logging.Float64("duration", duration),
			logging.String("status", status),
		)
	}()

	trace := c.expandTrace(cand)

	// Low-degree extension: pad the trace to the blowup size, move it
	// onto the coset and evaluate there.
	extended := make(poly.Poly, c.traceLen*traceBlowup)
	copy(extended, trace)
	lde, err := c.engine.Transform(ctx, c.cache.Shift(extended, c.offset))
	if err != nil {
		return mining.Proof{}, fmt.Errorf("low-degree extend: %w", err)
	}

	// Composition column: the squared extension plus the product of the
	// trace halves, evaluated over the same coset.
	squared, err := c.engine.Hadamard(lde, lde)
	if err != nil {
		return mining.Proof{}, fmt.Errorf("compose columns: %w", err)
	}
	half := c.traceLen / 2
	crossProduct, err := c.engine.Mul(ctx, trace[:half], trace[half:])
	if err != nil {
		return mining.Proof{}, fmt.Errorf("multiply trace halves: %w", err)
	}

	// Back to coefficient form over the coset.
	composition, err := c.cache.Intercosate(ctx, c.offset, uint64(len(squared)), squared)
	if err != nil {
		return mining.Proof{}, fmt.Errorf("interpolate composition: %w", err)
	}

	digest := commit(c.program, cand, composition, crossProduct)
	return mining.Proof{
		WorkerID:  c.workerID,
		Candidate: cand,
		Digest:    digest,
		Nonce:     binary.BigEndian.Uint64(digest[:8]),
	}, nil
}

// Close removes the worker's scratch storage.
func (c *Context) Close() error {
	return os.RemoveAll(c.scratchDir)
}

// expandTrace expands the candidate commitment into the execution
// trace by hash chaining, eight bytes per cell.
func (c *Context) expandTrace(cand mining.Candidate) poly.Poly {
	h := sha256.New()
	h.Write(c.programDigest[:])
	h.Write(cand.Commitment)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], cand.Seq)
	h.Write(seq[:])
	block := h.Sum(nil)

	trace := make(poly.Poly, c.traceLen)
	for i := 0; i < c.traceLen; i++ {
		if i%4 == 0 && i > 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		trace[i] = field.New(binary.BigEndian.Uint64(block[(i % 4 * 8):(i%4*8 + 8)]))
	}
	return trace
}

// commit folds the proving inputs and outputs into one digest.
func commit(program []byte, cand mining.Candidate, composition, crossProduct poly.Poly) []byte {
	h := sha256.New()
	h.Write(program)
	h.Write(cand.Commitment)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], cand.Seq)
	h.Write(buf[:])
	for _, coeff := range composition {
		binary.BigEndian.PutUint64(buf[:], coeff.Uint64())
		h.Write(buf[:])
	}
	for _, coeff := range crossProduct {
		binary.BigEndian.PutUint64(buf[:], coeff.Uint64())
		h.Write(buf[:])
	}
	return h.Sum(nil)
}
