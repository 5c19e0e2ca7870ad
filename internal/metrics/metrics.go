// Package metrics holds the Prometheus collectors of the book store and
// the echo middleware that records HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookstore"

// Metrics bundles the collectors registered on its own registry so tests
// can create independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ordersPlaced  prometheus.Counter
	orderRevenue  prometheus.Counter
	orderStatus   *prometheus.CounterVec
	checkoutFails *prometheus.CounterVec
	lowStockBooks prometheus.Gauge
	jobRuns       *prometheus.CounterVec
}

// New creates and registers every collector.  withRuntime adds the Go and
// process collectors, which only make sense once per process.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "placed_total",
			Help: "Orders successfully placed.",
		}),
		orderRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "placed_cents_total",
			Help: "Sum of order totals in cents at placement time.",
		}),
		orderStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "status_changes_total",
			Help: "Order status transitions by target status.",
		}, []string{"status"}),
		checkoutFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orders", Name: "checkout_failures_total",
			Help: "Rejected checkouts by reason.",
		}, []string{"reason"}),
		lowStockBooks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "low_stock_books",
			Help: "Books at or below the low stock level.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "runs_total",
			Help: "Scheduled job runs by job and outcome.",
		}, []string{"job", "success"}),
	}
	m.Registry.MustRegister(
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.ordersPlaced, m.orderRevenue, m.orderStatus, m.checkoutFails,
		m.lowStockBooks, m.jobRuns,
	)
	if withRuntime {
		m.Registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records in-flight requests, request counts and latency.  The
// route label is echo's route template, so ids do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// OrderPlaced counts a successful checkout.
func (m *Metrics) OrderPlaced(totalCents uint32) {
	m.ordersPlaced.Inc()
	m.orderRevenue.Add(float64(totalCents))
}

// OrderStatusChanged counts a transition into status.
func (m *Metrics) OrderStatusChanged(status string) {
	m.orderStatus.WithLabelValues(status).Inc()
}

// CheckoutRejected counts a checkout refused for reason.
func (m *Metrics) CheckoutRejected(reason string) {
	m.checkoutFails.WithLabelValues(reason).Inc()
}

// SetLowStock publishes the current number of low-stock books.
func (m *Metrics) SetLowStock(n int) {
	m.lowStockBooks.Set(float64(n))
}

// JobRun records one scheduled job execution.
func (m *Metrics) JobRun(job string, err error) {
	m.jobRuns.WithLabelValues(job, strconv.FormatBool(err == nil)).Inc()
}
