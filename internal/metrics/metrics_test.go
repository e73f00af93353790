package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/chainplan/internal/domain"
)

func TestRecorder_ObserveRun(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(domain.PlanCompleted, 120*time.Millisecond, 3, 1, []domain.Diagnostic{
		{Kind: domain.DiagInputData},
		{Kind: domain.DiagInputData},
		{Kind: domain.DiagMissingPrediction},
	})
	r.ObserveRun(domain.PlanFailed, time.Second, 0, 0, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.orders))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transfers))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.diagnostics.WithLabelValues("input_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.diagnostics.WithLabelValues("missing_prediction")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.runDuration))
}

func TestRecorder_Cache(t *testing.T) {
	r := NewRecorder()
	r.CacheHit()
	r.CacheMiss()
	r.CacheMiss()
	r.CacheError()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheRequests.WithLabelValues("miss")))

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["planner_cache_requests_total"])
	assert.True(t, names["planner_runs_total"])
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRun(domain.PlanCompleted, time.Second, 1, 1, nil)
		r.CacheHit()
		r.CacheMiss()
		r.CacheError()
	})
}
