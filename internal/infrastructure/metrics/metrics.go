// Package metrics exposes prometheus counters for lending activity.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptvault-client/internal/domain/loan"
	"cryptvault-client/internal/usecase/decryption"
)

// Metrics observes settled transactions and decryption reports.
type Metrics struct {
	registry  *prometheus.Registry
	settled   *prometheus.CounterVec
	decrypts  *prometheus.CounterVec
	requests  *prometheus.CounterVec
	poolLoans prometheus.Gauge
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cryptvault"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_settled_total",
			Help:      "Confirmed lending pool transactions by action.",
		}, []string{"action"}),
		decrypts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decryptions_total",
			Help:      "Loan decryption attempts by outcome.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status.",
		}, []string{"route", "method", "status"}),
		poolLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_loans",
			Help:      "Number of loans seen in the last pool fetch.",
		}),
	}
	m.registry.MustRegister(m.settled, m.decrypts, m.requests, m.poolLoans)
	return m
}

func (m *Metrics) LoanSettled(_ context.Context, ev loan.SettleEvent) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(string(ev.Action)).Inc()
}

func (m *Metrics) DecryptFinished(_ context.Context, r decryption.Report) {
	if m == nil {
		return
	}
	m.decrypts.WithLabelValues(string(r.Outcome)).Inc()
}

func (m *Metrics) ObserveRequest(route, method, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, status).Inc()
}

func (m *Metrics) SetPoolLoans(n int) {
	if m == nil {
		return
	}
	m.poolLoans.Set(float64(n))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
