// Package metrics exposes the Prometheus collectors SPEC_FULL.md's DOMAIN
// STACK section names: candidates dispatched/ingested, invalid fitnesses,
// queue sizes and the running best fitness. Grounded on the teacher's
// pkg/monitoring/metrics.go (a dedicated collector struct built from
// prometheus.New*Vec, registered against a private prometheus.Registry
// rather than the global default one) and pkg/observability/prometheus.go.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector this engine exports, on a private
// prometheus.Registry so a driver and worker sharing a process (as in
// ALL2ALL or in-process tests) don't collide on global registration.
type Registry struct {
	reg *prometheus.Registry

	CandidatesDispatched prometheus.Counter
	CandidatesIngested   prometheus.Counter
	InvalidFitness       prometheus.Counter
	WorkerEvaluations    *prometheus.CounterVec
	QueueSize            *prometheus.GaugeVec
	BestFitness          prometheus.Gauge
	TickDuration         prometheus.Histogram
}

// New builds a Registry with rank attached as a constant label, so metrics
// from every process in a fleet can be scraped into one Prometheus server
// without colliding.
func New(rank int) *Registry {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"rank": strconv.Itoa(rank)}

	r := &Registry{
		reg: reg,
		CandidatesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dab",
			Name:        "candidates_dispatched_total",
			Help:        "Candidates sent from the driver to a worker.",
			ConstLabels: labels,
		}),
		CandidatesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dab",
			Name:        "candidates_ingested_total",
			Help:        "Evaluated candidates the driver has received back.",
			ConstLabels: labels,
		}),
		InvalidFitness: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dab",
			Name:        "invalid_fitness_total",
			Help:        "Ingested results dropped for an invalid (non-finite or out-of-range) fitness.",
			ConstLabels: labels,
		}),
		WorkerEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "dab",
			Name:        "worker_evaluations_total",
			Help:        "Problem evaluations run by a worker, partitioned by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		QueueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "dab",
			Name:        "queue_size",
			Help:        "Current entry count of a SolutionQueue.",
			ConstLabels: labels,
		}, []string{"queue"}),
		BestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dab",
			Name:        "best_fitness",
			Help:        "Fitness of the current best-so-far candidate.",
			ConstLabels: labels,
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dab",
			Name:        "driver_tick_seconds",
			Help:        "Wall-clock duration of one DriverLoop tick.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.CandidatesDispatched,
		r.CandidatesIngested,
		r.InvalidFitness,
		r.WorkerEvaluations,
		r.QueueSize,
		r.BestFitness,
		r.TickDuration,
	)
	return r
}

// Handler returns the HTTP handler serving this registry's metrics in the
// Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
