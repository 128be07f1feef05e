package observability

import (
	"fmt"
	"net/http"

	"resumeboost/internal/config"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// SetupPrometheusExporter creates a Prometheus metrics reader and the HTTP
// handler the main server mounts at cfg.Endpoint.
func SetupPrometheusExporter(cfg config.PrometheusConfig) (metric.Reader, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	// The OTel exporter registers to the default registry, which
	// promhttp.Handler serves.
	return exporter, promhttp.Handler(), nil
}
