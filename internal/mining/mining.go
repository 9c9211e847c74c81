package mining

import "context"

// Candidate is one unit of proof-search work. The dispatcher treats the
// commitment as opaque bytes.
type Candidate struct {
	// Seq orders candidates as they arrive from the node.
	Seq uint64
	// Commitment is the block commitment to prove over.
	Commitment []byte
}

// Proof is the result of a successful proving attempt.
type Proof struct {
	// WorkerID is the slot that produced the proof.
	WorkerID int
	// Candidate is the candidate the proof answers.
	Candidate Candidate
	// Digest is the proof commitment.
	Digest []byte
	// Nonce is the winning nonce.
	Nonce uint64
}

// ProofSink receives completed proofs. Delivery is fire and forget: the
// dispatcher never waits on the sink and never retries.
type ProofSink func(Proof)

// ProvingContext is a worker's private proving state. Implementations
// are expensive to build and are never shared between workers.
type ProvingContext interface {
	// Prove attempts a proof for the candidate. A failed attempt is an
	// error, not a worker fault.
	Prove(ctx context.Context, c Candidate) (Proof, error)

	// Close releases the context's resources.
	Close() error
}

// ContextBuilder constructs a worker's ProvingContext.
type ContextBuilder interface {
	Build(ctx context.Context, workerID int) (ProvingContext, error)
}
