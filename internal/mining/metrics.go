package mining

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mining_candidates_received_total",
			Help: "The total number of candidates offered to the queue",
		},
	)
	candidatesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mining_candidates_dropped_total",
			Help: "The total number of candidates dropped because the queue was full",
		},
	)
	attemptsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mining_attempts_failed_total",
			Help: "The total number of proving attempts that returned an error",
		},
	)
	proofsMinedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mining_proofs_mined_total",
			Help: "The total number of proofs produced",
		},
	)
	workerRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mining_worker_restarts_total",
			Help: "The total number of worker restarts by slot",
		},
		[]string{"slot"},
	)
)
