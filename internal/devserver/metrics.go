package devserver

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dev server's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	auth     *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectdesk_devstore_requests_total",
				Help: "Total HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		auth: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectdesk_devstore_auth_total",
				Help: "Total auth attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
	m.registry.MustRegister(m.requests, m.auth)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Requests returns the request counter.
func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}

// Auth returns the auth outcome counter.
func (m *Metrics) Auth() *prometheus.CounterVec {
	return m.auth
}

func (m *Metrics) authOutcome(operation, outcome string) {
	m.auth.WithLabelValues(operation, outcome).Inc()
}

// Middleware counts requests after the error handler has set the status.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(route, c.Request().Method, strconv.Itoa(c.Response().Status)).Inc()
			return nil
		}
	}
}
