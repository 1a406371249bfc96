package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GamesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biscagate_games_total",
		Help: "The total number of blackjack games settled",
	}, []string{"outcome"})

	BetsVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biscagate_bets_volume_total",
		Help: "Total token volume escrowed as bets",
	})

	RandomnessRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biscagate_randomness_requests_total",
		Help: "Total randomness requests issued, by consumer",
	}, []string{"consumer"})

	RandomnessFulfillments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "biscagate_randomness_fulfillments_total",
		Help: "Total oracle callbacks accepted",
	})

	ProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "biscagate_proposals_total",
		Help: "Treasury multisig proposals, by lifecycle status",
	}, []string{"status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "biscagate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
