package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Queries       *prometheus.CounterVec
	Plans         *prometheus.CounterVec
	Steps         *prometheus.CounterVec
	LLMLatency    *prometheus.HistogramVec
	SearchResults prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workdesk",
			Name:      "queries_total",
			Help:      "Processed queries by terminal session status.",
		}, []string{"status"}),
		Plans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workdesk",
			Name:      "plans_total",
			Help:      "Planner calls by outcome.",
		}, []string{"outcome"}),
		Steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workdesk",
			Name:      "steps_total",
			Help:      "Executed plan steps by agent, action and outcome.",
		}, []string{"agent", "action", "outcome"}),
		LLMLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workdesk",
			Name:      "llm_call_seconds",
			Help:      "Language model call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"outcome"}),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "workdesk",
			Name:      "search_results",
			Help:      "Number of chunks returned per search.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16},
		}),
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) ObserveQuery(status string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePlan(ok bool) {
	if m == nil {
		return
	}
	m.Plans.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) ObserveStep(agent, action string, ok bool) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(agent, action, outcome(ok)).Inc()
}

func (m *Metrics) ObserveLLM(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.LLMLatency.WithLabelValues(outcome(err == nil)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSearch(results int) {
	if m == nil {
		return
	}
	m.SearchResults.Observe(float64(results))
}

// ServeMetrics exposes gatherer on /metrics and the heartbeat on /healthz until ctx ends.
func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := GetStatus()
		if !Healthy(90 * time.Second) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "phase=%s session=%s heartbeat=%s\n", st.Phase, st.ActiveSession, st.LastHeartbeat.Format(time.RFC3339))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
