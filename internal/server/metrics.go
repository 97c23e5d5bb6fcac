// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthAttempts    *prometheus.CounterVec
	Lockouts        prometheus.Counter
	RateLimited     prometheus.Counter
	RegisteredUsers prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	return &Metrics{
		registry: reg,
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neon",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by route and status class",
			},
			[]string{"route", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "neon",
				Name:      "http_request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		AuthAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neon",
				Name:      "auth_attempts_total",
				Help:      "Authentication attempts by operation and result code",
			},
			[]string{"op", "result"}, // op=login/register/me, result=ok or error code
		),
		Lockouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "neon",
				Name:      "account_lockouts_total",
				Help:      "Accounts locked after repeated failed logins",
			},
		),
		RateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "neon",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the per-IP limiter",
			},
		),
		RegisteredUsers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "neon",
				Name:      "registered_users",
				Help:      "Accounts in the in-memory store",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
