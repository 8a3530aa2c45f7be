// Package httpapi is the engine's API Adapter (spec §1's external
// collaborator): a thin JSON-over-HTTP surface translating requests into
// ingestion.Pipeline.Accept / healthstate.Manager.GetHealth / Reset calls.
// Handler shape (opts struct + http.HandlerFunc closures + JSON encoding)
// is carried over from the teacher's
// engine/adapters/telemetryhttp/handlers.go.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/driftwatch/driftwatch/internal/healthstate"
	"github.com/driftwatch/driftwatch/internal/ingestion"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/tracing"
)

// Options wires the adapter's collaborators. Tracer is optional; when nil,
// handlers run without span instrumentation.
type Options struct {
	Pipeline *ingestion.Pipeline
	Health   *healthstate.Manager
	Metrics  metrics.Provider
	Logger   logging.Logger
	Tracer   *tracing.Tracer
}

// NewMux builds the engine's HTTP surface:
//
//	POST /v1/telemetry              ingest one sample
//	GET  /v1/services/{id}/health   current health snapshot
//	POST /v1/services/{id}/reset    force INSUFFICIENT_DATA
//	GET  /v1/stats                  ingestion pipeline counters
//	GET  /metrics                   Prometheus exposition, if supported
func NewMux(opts Options) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/v1/telemetry", newIngestHandler(opts))
	mux.Handle("/v1/services/", newServiceHandler(opts))
	mux.Handle("/v1/stats", newStatsHandler(opts))
	mux.Handle("/metrics", newMetricsHandler(opts.Metrics))
	return mux
}

type ingestRequest struct {
	ServiceID string   `json:"service_id"`
	LatencyMs float64  `json:"latency_ms"`
	PayloadKB float64  `json:"payload_kb"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}

type ingestResponse struct {
	Outcome   models.IngestOutcome `json:"outcome"`
	ServiceID string               `json:"service_id,omitempty"`
	Timestamp int64                `json:"timestamp,omitempty"`
	QueueSize int                  `json:"queue_size,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func newIngestHandler(opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()
		if opts.Tracer != nil {
			var span oteltrace.Span
			ctx, span = opts.Tracer.StartOperation(ctx, "ingest_telemetry", nil)
			defer span.End()
		}

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			tracing.RecordError(ctx, "validation_error", err)
			writeJSON(w, http.StatusBadRequest, ingestResponse{
				Outcome: models.OutcomeValidationError,
				Error:   "malformed request body: " + err.Error(),
			})
			return
		}

		result := opts.Pipeline.Accept(models.TelemetryRequest{
			ServiceID: req.ServiceID,
			LatencyMs: req.LatencyMs,
			PayloadKB: req.PayloadKB,
			Timestamp: req.Timestamp,
		})

		resp := ingestResponse{
			Outcome:   result.Outcome,
			ServiceID: result.ServiceID,
			Timestamp: result.Timestamp,
			QueueSize: result.QueueSize,
		}
		if result.Err != nil {
			resp.Error = result.Err.Error()
			tracing.RecordError(ctx, string(outcomeErrorKind(result.Outcome)), result.Err)
		}

		switch result.Outcome {
		case models.OutcomeAccepted:
			writeJSON(w, http.StatusAccepted, resp)
		case models.OutcomeValidationError:
			writeJSON(w, http.StatusBadRequest, resp)
		case models.OutcomeBackpressure:
			writeJSON(w, http.StatusTooManyRequests, resp)
		default:
			writeJSON(w, http.StatusInternalServerError, resp)
		}
	})
}

func outcomeErrorKind(o models.IngestOutcome) models.ErrorKind {
	if o == models.OutcomeBackpressure {
		return models.KindBackpressure
	}
	return models.KindValidation
}

// newServiceHandler dispatches /v1/services/{id}/health and
// /v1/services/{id}/reset.
func newServiceHandler(opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/v1/services/")
		serviceID, action, ok := splitServiceAction(path)
		if !ok || serviceID == "" {
			http.NotFound(w, r)
			return
		}

		ctx := r.Context()
		if opts.Tracer != nil {
			var span oteltrace.Span
			ctx, span = opts.Tracer.StartOperation(ctx, "service_"+action, map[string]any{"service_id": serviceID})
			defer span.End()
		}

		switch action {
		case "health":
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			snapshot, err := opts.Health.GetHealth(ctx, serviceID)
			if err != nil {
				tracing.RecordError(ctx, string(models.KindStore), err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, snapshot)
		case "reset":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			state, err := opts.Health.Reset(ctx, serviceID)
			if err != nil {
				tracing.RecordError(ctx, string(models.KindStore), err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, state)
		default:
			http.NotFound(w, r)
		}
	})
}

func splitServiceAction(path string) (serviceID, action string, ok bool) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", "", false
	}
	return path[:idx], path[idx+1:], true
}

func newStatsHandler(opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, opts.Pipeline.Stats())
	})
}

// newMetricsHandler delegates to the provider's exposition handler when it
// supports one (the Prometheus backend does); otherwise reports 501.
func newMetricsHandler(p metrics.Provider) http.Handler {
	if p == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	}
	if exposable, ok := p.(interface{ MetricsHandler() http.Handler }); ok {
		return exposable.MetricsHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "metrics handler unavailable", http.StatusNotImplemented)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
