package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
)

// Collector turns bus events into Prometheus metrics.
type Collector struct {
	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	Lookups           *prometheus.CounterVec
	LookupDuration    *prometheus.HistogramVec
	LookupNames       *prometheus.CounterVec
	ResolvedNodes     *prometheus.CounterVec
	ResolveRounds     prometheus.Histogram
	LocusDuration     *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
	GRPCCalls         *prometheus.CounterVec
}

// New registers the collector's metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olapcore_executions_total",
			Help: "Finished statement executions by final state.",
		}, []string{"state"}),
		ExecutionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "olapcore_execution_duration_seconds",
			Help:    "Wall time of statement executions.",
			Buckets: prometheus.DefBuckets,
		}),
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olapcore_lookups_total",
			Help: "Bulk children-by-name lookups by hierarchy and outcome.",
		}, []string{"hierarchy", "outcome"}),
		LookupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "olapcore_lookup_duration_seconds",
			Help:    "Latency of bulk children-by-name lookups.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"hierarchy"}),
		LookupNames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olapcore_lookup_names_total",
			Help: "Names requested from and found by lookups.",
		}, []string{"result"}),
		ResolvedNodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olapcore_resolved_nodes_total",
			Help: "Identifier nodes recorded by resolution runs, by status.",
		}, []string{"status"}),
		ResolveRounds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "olapcore_resolve_rounds",
			Help:    "Depth rounds executed per resolution run.",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		}),
		LocusDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "olapcore_locus_duration_seconds",
			Help:    "Time spent inside attribution frames, by component.",
			Buckets: prometheus.DefBuckets,
		}, []string{"component"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olapcore_http_requests_total",
			Help: "Admin HTTP requests by route and status.",
		}, []string{"route", "status"}),
		GRPCCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olapcore_grpc_server_calls_total",
			Help: "Catalog service calls by gRPC code.",
		}, []string{"code"}),
	}
}

// Attach subscribes c to bus and returns a function removing the subscriptions.
func (c *Collector) Attach(bus *eventbus.Bus) (detach func()) {
	unsubs := []func(){
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.ExecutionEnd) {
			c.Executions.WithLabelValues(e.State).Inc()
			c.ExecutionDuration.Observe(e.Duration.Seconds())
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.LookupFinish) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			c.Lookups.WithLabelValues(e.Hierarchy, outcome).Inc()
			c.LookupDuration.WithLabelValues(e.Hierarchy).Observe(e.Duration.Seconds())
			c.LookupNames.WithLabelValues("requested").Add(float64(e.Names))
			c.LookupNames.WithLabelValues("found").Add(float64(e.Found))
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.ResolveFinish) {
			c.ResolveRounds.Observe(float64(e.Rounds))
			c.ResolvedNodes.WithLabelValues("resolved").Add(float64(e.Resolved))
			c.ResolvedNodes.WithLabelValues("unresolved").Add(float64(e.Unresolved))
			c.ResolvedNodes.WithLabelValues("known").Add(float64(e.Known))
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.LocusExit) {
			c.LocusDuration.WithLabelValues(e.Component).Observe(e.Duration.Seconds())
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.HTTPFinish) {
			c.HTTPRequests.WithLabelValues(e.Route, strconv.Itoa(e.Status)).Inc()
		}),
		eventbus.SubscribeTo(bus, func(_ context.Context, e events.GRPCServerFinish) {
			c.GRPCCalls.WithLabelValues(e.Code.String()).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
