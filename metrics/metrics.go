package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ============================================================================
// RUNTIME METRICS
// ============================================================================

// Collectors bundles the runtime's prometheus instruments.
type Collectors struct {
	registry *prometheus.Registry

	SolvesTotal     *prometheus.CounterVec
	SolveDuration   *prometheus.HistogramVec
	LLMTokensTotal  *prometheus.CounterVec
	WorkflowStates  *prometheus.CounterVec
	EventsEmitted   *prometheus.CounterVec
	RecursionDepth  *prometheus.GaugeVec
	TokensPerSecond *prometheus.GaugeVec
}

// NewCollectors creates a self-contained metrics registry.
func NewCollectors() *Collectors {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collectors{
		registry: registry,
		SolvesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dana_solves_total",
			Help: "Solve invocations by agent and outcome.",
		}, []string{"agent", "status"}),
		SolveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dana_solve_duration_seconds",
			Help:    "Wall time of solve invocations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		LLMTokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dana_llm_tokens_total",
			Help: "Tokens consumed by LLM calls.",
		}, []string{"agent"}),
		WorkflowStates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dana_workflow_states_total",
			Help: "Workflow state executions by outcome.",
		}, []string{"agent", "status"}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dana_events_emitted_total",
			Help: "Events emitted on agent buses by type.",
		}, []string{"agent", "type"}),
		RecursionDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dana_recursion_depth",
			Help: "Deepest recursion observed for the current solve.",
		}, []string{"agent"}),
		TokensPerSecond: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dana_tokens_per_second",
			Help: "LLM token throughput of the last solve.",
		}, []string{"agent"}),
	}
}

// Handler serves the collectors over HTTP for scraping.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ============================================================================
// TOKEN COUNTING
// ============================================================================

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens counts text tokens with the cl100k_base encoding, falling
// back to the length/4 heuristic when the encoding is unavailable.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// TokensPerSecond derives throughput, guarding against zero elapsed time.
func TokensPerSecond(tokens int, elapsed time.Duration) float64 {
	if elapsed <= 0 || tokens <= 0 {
		return 0
	}
	return float64(tokens) / elapsed.Seconds()
}
