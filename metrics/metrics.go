// Package metrics exposes operational counters for the coordinator and
// oracle services, served in Prometheus text format.
package metrics

import (
	"context"
	"net/http"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

var (
	cellsSubmitted       = vmetrics.NewCounter("gol_cells_submitted_total")
	submissionsRejected  = vmetrics.NewCounter("gol_cell_submissions_rejected_total")
	decryptionRequests   = vmetrics.NewCounter("gol_decryption_requests_total")
	callbacksAccepted    = vmetrics.NewCounter("gol_decryption_callbacks_accepted_total")
	callbacksRejected    = vmetrics.NewCounter("gol_decryption_callbacks_rejected_total")
	batchesOpened        = vmetrics.NewCounter("gol_batches_opened_total")
	oracleFulfillments   = vmetrics.NewCounter("gol_oracle_fulfillments_total")
	oracleDeliveryErrors = vmetrics.NewCounter("gol_oracle_delivery_errors_total")
)

func IncCellsSubmitted()       { cellsSubmitted.Inc() }
func IncSubmissionsRejected()  { submissionsRejected.Inc() }
func IncDecryptionRequests()   { decryptionRequests.Inc() }
func IncCallbacksAccepted()    { callbacksAccepted.Inc() }
func IncCallbacksRejected()    { callbacksRejected.Inc() }
func IncBatchesOpened()        { batchesOpened.Inc() }
func IncOracleFulfillments()   { oracleFulfillments.Inc() }
func IncOracleDeliveryErrors() { oracleDeliveryErrors.Inc() }

// Handler serves the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})
}

// MetricsServer is a dedicated listener for the metrics endpoint, kept off
// the main API port.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server on addr.
func New(addr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &MetricsServer{srv: &http.Server{Addr: addr, Handler: mux}}, nil
}

// ListenAndServe blocks serving metrics until shutdown.
func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
