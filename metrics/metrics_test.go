package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsCountAndServe(t *testing.T) {
	c := NewCollectors()
	c.SolvesTotal.WithLabelValues("tester", "completed").Inc()
	c.SolvesTotal.WithLabelValues("tester", "completed").Inc()
	c.RecursionDepth.WithLabelValues("tester").Set(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.SolvesTotal.WithLabelValues("tester", "completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.RecursionDepth.WithLabelValues("tester")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dana_solves_total"))
}

func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollectors()
	b := NewCollectors()
	a.SolvesTotal.WithLabelValues("x", "completed").Inc()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.SolvesTotal.WithLabelValues("x", "completed")))
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Greater(t, CountTokens("The quick brown fox jumps over the lazy dog."), 0)
}

func TestTokensPerSecond(t *testing.T) {
	assert.Equal(t, 0.0, TokensPerSecond(0, time.Second))
	assert.Equal(t, 0.0, TokensPerSecond(100, 0))
	assert.InDelta(t, 50.0, TokensPerSecond(100, 2*time.Second), 1e-9)
}
