// Package mining runs the proof-search dispatcher: a bounded candidate
// queue feeding a supervised pool of proving workers.
//
// Worker construction is expensive, so the pool is fixed-size with one
// proving context per worker, built once and reused across candidates.
// A worker that dies, whether from a failed build, a crash, or a panic,
// is restarted by the supervisor exactly once per termination event
// under the same slot id.
package mining

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// EnvThreads is the environment variable that overrides the thread
// budget.
const EnvThreads = "MINING_THREADS"

// DefaultQueueCapacity bounds the candidate queue. Stale candidates are
// worthless once the chain advances, so the queue stays shallow and the
// producer is never stalled.
const DefaultQueueCapacity = 32

// Config holds the dispatcher settings.
type Config struct {
	// TotalThreads is the thread budget split across workers.
	TotalThreads int
	// QueueCapacity is the candidate queue depth. If 0,
	// DefaultQueueCapacity is used.
	QueueCapacity int
	// RestartDelay is the pause before a terminated worker slot is
	// restarted. Zero restarts immediately.
	RestartDelay time.Duration
}

// FromEnv builds a Config from the environment: MINING_THREADS when set
// to a positive integer, otherwise runtime.NumCPU().
func FromEnv() Config {
	threads := runtime.NumCPU()
	if raw := os.Getenv(EnvThreads); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			threads = n
		}
	}
	return Config{TotalThreads: threads, QueueCapacity: DefaultQueueCapacity}
}

// normalize returns a copy of c with defaults filled in.
func (c Config) normalize() Config {
	if c.TotalThreads <= 0 {
		c.TotalThreads = runtime.NumCPU()
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	return c
}

// WorkerCount derives the pool size from a thread budget. Few threads
// favor one fast prover over many slow ones; past 16 threads the pool
// grows linearly with at least 4 threads per worker.
func WorkerCount(totalThreads int) int {
	switch {
	case totalThreads <= 4:
		return 1
	case totalThreads <= 8:
		return 2
	case totalThreads <= 16:
		return 4
	default:
		return totalThreads / 4
	}
}

// Workers returns the pool size for this configuration.
func (c Config) Workers() int {
	return WorkerCount(c.normalize().TotalThreads)
}

// ThreadsPerWorker returns each worker's share of the thread budget,
// never less than one.
func (c Config) ThreadsPerWorker() int {
	c = c.normalize()
	per := c.TotalThreads / WorkerCount(c.TotalThreads)
	if per < 1 {
		per = 1
	}
	return per
}
