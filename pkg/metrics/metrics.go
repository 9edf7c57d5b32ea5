// Package metrics exposes process-wide Prometheus collectors for the
// queue engine and the reactor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slabq_queue_pushes_total",
		Help: "Total successful push operations by end.",
	}, []string{"end"})

	PushFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slabq_queue_push_failures_total",
		Help: "Total failed push operations by end.",
	}, []string{"end"})

	PopsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slabq_queue_pops_total",
		Help: "Total pop operations by end and result (hit|empty).",
	}, []string{"end", "result"})

	FreePoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slabq_freepool_size",
		Help: "Current occupancy of the shared free-block pool.",
	})

	QueueCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slabq_queue_count",
		Help: "Number of distinct named queues that have been created.",
	})

	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "slabq_queue_depth",
		Help: "Current element count of a named queue, sampled on each push/pop.",
	}, []string{"queue"})

	BlockAllocsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slabq_block_allocs_total",
		Help: "Total blocks freshly allocated, either pre-allocated at queue creation or on push when the free-block pool was empty.",
	})

	BlockRecyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slabq_block_recycles_total",
		Help: "Total blocks reused, either taken from the free-block pool or reset in place as a queue's tail.",
	})

	BlockFreesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slabq_block_frees_total",
		Help: "Total drained blocks discarded because the free-block pool was already at its cap.",
	})

	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slabq_connections_active",
		Help: "Currently adopted connections across all workers.",
	})

	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slabq_connections_total",
		Help: "Total accepted connections.",
	})

	WorkerConnectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slabq_worker_connections_total",
		Help: "Total connections handed to each worker (verifies round-robin fairness).",
	}, []string{"worker"})

	ProtocolViolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slabq_protocol_violations_total",
		Help: "Connections closed by the protocol layer: no parseable command within RBUF_MAX, or an invalid command line.",
	})
)

func init() {
	prometheus.MustRegister(
		PushesTotal,
		PushFailuresTotal,
		PopsTotal,
		FreePoolSize,
		QueueCount,
		QueueDepth,
		BlockAllocsTotal,
		BlockRecyclesTotal,
		BlockFreesTotal,
		ConnectionsActive,
		ConnectionsTotal,
		WorkerConnectionsTotal,
		ProtocolViolationsTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler { return promhttp.Handler() }
