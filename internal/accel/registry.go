package accel

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nholt/zkminer/internal/domain"
	"github.com/nholt/zkminer/internal/field"
	"github.com/nholt/zkminer/internal/logging"
	"github.com/nholt/zkminer/internal/poly"
)

var invocationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accel_invocations_total",
		Help: "The total number of accelerator invocations by operation and status",
	},
	[]string{"op", "status"},
)

// Args carries the operands for an accelerated operation. Each handler
// reads only the fields its operation defines; extras are ignored.
type Args struct {
	// Size is the subgroup order for OrderedRoot and Intercosate.
	Size uint64
	// Exponent is the power for BPow.
	Exponent uint64
	// Offset is the coset offset for Shift and Intercosate.
	Offset field.Element
	// Scalars are the field operands for the scalar operations.
	Scalars []field.Element
	// Polys are the polynomial operands for the vector operations.
	Polys []poly.Poly
}

// Result is the outcome of an accelerated operation. IsScalar selects
// which of the two payload fields is meaningful.
type Result struct {
	IsScalar bool
	Scalar   field.Element
	Poly     poly.Poly
}

func scalarResult(v field.Element) Result { return Result{IsScalar: true, Scalar: v} }
func polyResult(p poly.Poly) Result       { return Result{Poly: p} }

type handler func(ctx context.Context, r *Registry, args Args) (Result, error)

// Registry dispatches accelerated operations to their handlers. It is
// safe for concurrent use.
type Registry struct {
	engine   *poly.Engine
	cache    *domain.Cache
	log      logging.Logger
	handlers [numOps]handler
}

// NewRegistry builds the handler table over the given engine and cache.
// A nil logger disables logging.
func NewRegistry(log logging.Logger, engine *poly.Engine, cache *domain.Cache) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	r := &Registry{engine: engine, cache: cache, log: log}
	r.handlers = [numOps]handler{
		OpBAdd:        handleBAdd,
		OpBSub:        handleBSub,
		OpBNeg:        handleBNeg,
		OpBMul:        handleBMul,
		OpBPow:        handleBPow,
		OpBInv:        handleBInv,
		OpOrderedRoot: handleOrderedRoot,
		OpNTT:         handleNTT,
		OpInverseNTT:  handleInverseNTT,
		OpPolyMul:     handlePolyMul,
		OpHadamard:    handleHadamard,
		OpShift:       handleShift,
		OpIntercosate: handleIntercosate,
	}
	return r
}

// Invoke runs the named operation. Failures come back as errors, never
// as panics: a handler panic is recovered at this boundary.
func (r *Registry) Invoke(ctx context.Context, op Op, args Args) (res Result, err error) {
	if op < 0 || op >= numOps {
		invocationsTotal.WithLabelValues("unknown", "error").Inc()
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownOp, int(op))
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in accel op %s: %v\nStack: %s", op, rec, debug.Stack())
		}
		status := "success"
		if err != nil {
			status = "error"
			r.log.Debug("accelerator invocation failed",
				logging.String("op", op.String()),
				logging.Err(err),
			)
		}
		invocationsTotal.WithLabelValues(op.String(), status).Inc()
	}()
	return r.handlers[op](ctx, r, args)
}

// scalars unpacks exactly n scalar operands.
func (a Args) scalars(op Op, n int) ([]field.Element, error) {
	if len(a.Scalars) != n {
		return nil, fmt.Errorf("%w: %s wants %d scalars, got %d", ErrBadArgs, op, n, len(a.Scalars))
	}
	return a.Scalars, nil
}

// polys unpacks exactly n polynomial operands.
func (a Args) polys(op Op, n int) ([]poly.Poly, error) {
	if len(a.Polys) != n {
		return nil, fmt.Errorf("%w: %s wants %d polys, got %d", ErrBadArgs, op, n, len(a.Polys))
	}
	return a.Polys, nil
}

func handleBAdd(_ context.Context, _ *Registry, args Args) (Result, error) {
	s, err := args.scalars(OpBAdd, 2)
	if err != nil {
		return Result{}, err
	}
	return scalarResult(field.Add(s[0], s[1])), nil
}

func handleBSub(_ context.Context, _ *Registry, args Args) (Result, error) {
	s, err := args.scalars(OpBSub, 2)
	if err != nil {
		return Result{}, err
	}
	return scalarResult(field.Sub(s[0], s[1])), nil
}

func handleBNeg(_ context.Context, _ *Registry, args Args) (Result, error) {
	s, err := args.scalars(OpBNeg, 1)
	if err != nil {
		return Result{}, err
	}
	return scalarResult(field.Neg(s[0])), nil
}

func handleBMul(_ context.Context, _ *Registry, args Args) (Result, error) {
	s, err := args.scalars(OpBMul, 2)
	if err != nil {
		return Result{}, err
	}
	return scalarResult(field.Mul(s[0], s[1])), nil
}

func handleBPow(_ context.Context, _ *Registry, args Args) (Result, error) {
	s, err := args.scalars(OpBPow, 1)
	if err != nil {
		return Result{}, err
	}
	return scalarResult(field.Pow(s[0], args.Exponent)), nil
}

func handleBInv(_ context.Context, _ *Registry, args Args) (Result, error) {
	s, err := args.scalars(OpBInv, 1)
	if err != nil {
		return Result{}, err
	}
	inv, err := field.Inv(s[0])
	if err != nil {
		return Result{}, err
	}
	return scalarResult(inv), nil
}

func handleOrderedRoot(_ context.Context, _ *Registry, args Args) (Result, error) {
	root, err := field.OrderedRoot(args.Size)
	if err != nil {
		return Result{}, err
	}
	return scalarResult(root), nil
}

func handleNTT(ctx context.Context, r *Registry, args Args) (Result, error) {
	p, err := args.polys(OpNTT, 1)
	if err != nil {
		return Result{}, err
	}
	evals, err := r.engine.Transform(ctx, p[0])
	if err != nil {
		return Result{}, err
	}
	return polyResult(evals), nil
}

func handleInverseNTT(ctx context.Context, r *Registry, args Args) (Result, error) {
	p, err := args.polys(OpInverseNTT, 1)
	if err != nil {
		return Result{}, err
	}
	coeffs, err := r.engine.InverseTransform(ctx, p[0])
	if err != nil {
		return Result{}, err
	}
	return polyResult(coeffs), nil
}

func handlePolyMul(ctx context.Context, r *Registry, args Args) (Result, error) {
	p, err := args.polys(OpPolyMul, 2)
	if err != nil {
		return Result{}, err
	}
	prod, err := r.engine.Mul(ctx, p[0], p[1])
	if err != nil {
		return Result{}, err
	}
	return polyResult(prod), nil
}

func handleHadamard(_ context.Context, r *Registry, args Args) (Result, error) {
	p, err := args.polys(OpHadamard, 2)
	if err != nil {
		return Result{}, err
	}
	prod, err := r.engine.Hadamard(p[0], p[1])
	if err != nil {
		return Result{}, err
	}
	return polyResult(prod), nil
}

func handleShift(_ context.Context, r *Registry, args Args) (Result, error) {
	p, err := args.polys(OpShift, 1)
	if err != nil {
		return Result{}, err
	}
	return polyResult(r.cache.Shift(p[0], args.Offset)), nil
}

func handleIntercosate(ctx context.Context, r *Registry, args Args) (Result, error) {
	p, err := args.polys(OpIntercosate, 1)
	if err != nil {
		return Result{}, err
	}
	coeffs, err := r.cache.Intercosate(ctx, args.Offset, args.Size, p[0])
	if err != nil {
		return Result{}, err
	}
	return polyResult(coeffs), nil
}
