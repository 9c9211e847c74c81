// Package accel exposes the acceleration primitives behind a closed
// operation registry. Callers name an operation by its Op value and the
// registry dispatches through a handler table resolved once at
// construction, so there is no string matching or map lookup on the
// hot path and the set of reachable operations is fixed at startup.
package accel

import "errors"

// Op identifies an accelerated operation.
type Op int

const (
	OpBAdd Op = iota
	OpBSub
	OpBNeg
	OpBMul
	OpBPow
	OpBInv
	OpOrderedRoot
	OpNTT
	OpInverseNTT
	OpPolyMul
	OpHadamard
	OpShift
	OpIntercosate

	numOps
)

var opNames = [numOps]string{
	OpBAdd:        "badd",
	OpBSub:        "bsub",
	OpBNeg:        "bneg",
	OpBMul:        "bmul",
	OpBPow:        "bpow",
	OpBInv:        "binv",
	OpOrderedRoot: "ordered-root",
	OpNTT:         "bp-ntt",
	OpInverseNTT:  "bp-intt",
	OpPolyMul:     "bpmul",
	OpHadamard:    "bp-hadamard",
	OpShift:       "bp-shift",
	OpIntercosate: "bp-intercosate",
}

// String returns the wire verb for the operation.
func (op Op) String() string {
	if op < 0 || op >= numOps {
		return "unknown"
	}
	return opNames[op]
}

var (
	// ErrUnknownOp is returned for an Op outside the registered set.
	ErrUnknownOp = errors.New("accel: unknown operation")

	// ErrBadArgs is returned when the argument shape does not match the
	// operation.
	ErrBadArgs = errors.New("accel: bad arguments")
)
