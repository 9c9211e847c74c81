package domain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_cache_lookups_total",
			Help: "The total number of domain cache lookups by result",
		},
		[]string{"result"},
	)
	shiftCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "domain_shift_calls_total",
			Help: "The total number of coset shift operations",
		},
	)
	intercosateCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "domain_intercosate_calls_total",
			Help: "The total number of coset interpolation operations",
		},
	)
)
