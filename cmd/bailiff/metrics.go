package main

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("bailiff")

// registered once per process; the admin echo server may be constructed more than once in tests
var httpMetrics = echoprometheus.NewMiddleware("bailiff")

var adminLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bailiff_admin_tracked_lookups",
	Help: "Number of tracked role lookups served by the admin API",
}, []string{"result"})
