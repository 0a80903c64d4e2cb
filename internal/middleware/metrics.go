package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
)

// NewMetrics builds the Prometheus HTTP middleware. Its collectors register
// with the default registry, so create it once per process.
func NewMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	prom := fiberprometheus.New(serviceName)
	prom.SetSkipPaths([]string{"/metrics", "/health/live", "/health/ready"})
	return prom
}
