// Package metrics exposes Prometheus collectors for the HTTP API, the ledger
// service and the event worker. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dividi"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	expenseWrites *prometheus.CounterVec
	plansComputed prometheus.Counter
	planCache     *prometheus.CounterVec
	planSize      prometheus.Gauge
	outstanding   prometheus.Gauge

	events *prometheus.CounterVec
}

// New builds a Metrics backed by its own registry, with Go runtime and
// process collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		expenseWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "expense_writes_total",
			Help:      "Successful expense writes by operation.",
		}, []string{"operation"}),
		plansComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "plans_computed_total",
			Help:      "Settlement plans computed by the engine.",
		}),
		planCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "plan_cache_lookups_total",
			Help:      "Settlement plan cache lookups by result.",
		}, []string{"result"}),
		planSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "plan_settlements",
			Help:      "Number of transfers in the most recent plan.",
		}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "outstanding_amount",
			Help:      "Total amount moved by the most recent plan.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "total",
			Help:      "Ledger events by direction, type and result.",
		}, []string{"direction", "type", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.expenseWrites, m.plansComputed, m.planCache, m.planSize, m.outstanding,
		m.events,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ExpenseWritten(op string) {
	if m == nil {
		return
	}
	m.expenseWrites.WithLabelValues(op).Inc()
}

// PlanComputed records a fresh engine run.
func (m *Metrics) PlanComputed(settlements int, moved float64) {
	if m == nil {
		return
	}
	m.plansComputed.Inc()
	m.planSize.Set(float64(settlements))
	m.outstanding.Set(moved)
}

func (m *Metrics) PlanCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.planCache.WithLabelValues(result).Inc()
}

// Event counts a published or consumed event. result is "ok" or "error".
func (m *Metrics) Event(direction, eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.events.WithLabelValues(direction, eventType, result).Inc()
}
