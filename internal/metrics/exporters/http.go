// Package exporters publishes process metrics over Prometheus HTTP and SSE.
package exporters

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/superprocess/internal/logging"
)

// HTTPHandler serves the default registry in the Prometheus text or
// OpenMetrics format, negotiated from the Accept header. Scrapes of the
// handler itself are counted in promhttp_metric_handler_requests_total.
func HTTPHandler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorLog:          scrapeErrorLog{},
		}),
	)
}

// scrapeErrorLog reports gathering errors through the metrics logger.
type scrapeErrorLog struct{}

func (scrapeErrorLog) Println(v ...any) {
	logging.GetLogger("metrics").Error("Prometheus scrape failed", "error", fmt.Sprint(v...))
}
