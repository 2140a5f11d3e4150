package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRegistersEveryCollectorUnderItsRankLabel(t *testing.T) {
	r := New(3)
	r.CandidatesDispatched.Inc()
	r.CandidatesIngested.Inc()
	r.InvalidFitness.Inc()
	r.WorkerEvaluations.WithLabelValues("ok").Inc()
	r.QueueSize.WithLabelValues("pending").Set(5)
	r.BestFitness.Set(42)
	r.TickDuration.Observe(0.01)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `rank="3"`)
	assert.Contains(t, body, "dab_candidates_dispatched_total")
	assert.Contains(t, body, "dab_best_fitness")
}

func TestTwoRegistriesDoNotCollideOnRegistration(t *testing.T) {
	assert.NotPanics(t, func() {
		New(0)
		New(1)
	})
}
