// Package metrics owns the service's Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records ledger and HTTP activity on a private registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry        *prometheus.Registry
	transfers       *prometheus.CounterVec
	transferVolume  prometheus.Counter
	deposits        *prometheus.CounterVec
	depositVolume   prometheus.Counter
	keyValidations  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New builds a collector with Go runtime and process collectors registered.
func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_transfers_total",
			Help: "Transfers attempted, by outcome code.",
		}, []string{"outcome"}),
		transferVolume: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_transfer_volume_kobo_total",
			Help: "Minor units moved by successful transfers.",
		}),
		deposits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_deposits_total",
			Help: "Deposit lifecycle events, by stage.",
		}, []string{"stage"}),
		depositVolume: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_deposit_volume_kobo_total",
			Help: "Minor units credited by completed deposits.",
		}),
		keyValidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_api_key_validations_total",
			Help: "API key validation attempts, by result.",
		}, []string{"result"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Transfer records a transfer outcome ("success" or an error code).
func (c *Collector) Transfer(outcome string, amount int64) {
	if c == nil {
		return
	}
	c.transfers.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		c.transferVolume.Add(float64(amount))
	}
}

// Deposit records a deposit stage such as "initialized" or "completed".
func (c *Collector) Deposit(stage string, amount int64) {
	if c == nil {
		return
	}
	c.deposits.WithLabelValues(stage).Inc()
	if stage == "completed" {
		c.depositVolume.Add(float64(amount))
	}
}

// KeyValidation records an API key check.
func (c *Collector) KeyValidation(result string) {
	if c == nil {
		return
	}
	c.keyValidations.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(method, route, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.requestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
