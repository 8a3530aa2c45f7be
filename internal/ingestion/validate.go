package ingestion

import (
	"errors"
	"regexp"

	"github.com/driftwatch/driftwatch/internal/models"
)

// Field limits per spec §3/§7.
const (
	maxServiceIDLen = 64
	maxLatencyMs    = 300_000
	maxPayloadKB    = 1_048_576
)

var serviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var (
	errMissingServiceID    = errors.New("ingestion: service_id is required")
	errInvalidServiceID    = errors.New("ingestion: service_id must match [A-Za-z0-9._-]+ and be at most 64 characters")
	errNegativeLatency     = errors.New("ingestion: latency_ms must be non-negative")
	errLatencyTooLarge     = errors.New("ingestion: latency_ms exceeds maximum of 300000")
	errNegativePayload     = errors.New("ingestion: payload_kb must be non-negative")
	errPayloadTooLarge     = errors.New("ingestion: payload_kb exceeds maximum of 1048576")
	errTimestampOutOfRange = errors.New("ingestion: timestamp outside tolerance window")
	errBackpressure        = errors.New("ingestion: queue is full")
)

// validate applies spec §7's field-level validation rules to an inbound
// request before it is ever queued.
func validate(req models.TelemetryRequest) error {
	if req.ServiceID == "" {
		return errMissingServiceID
	}
	if len(req.ServiceID) > maxServiceIDLen || !serviceIDPattern.MatchString(req.ServiceID) {
		return errInvalidServiceID
	}
	if req.LatencyMs < 0 {
		return errNegativeLatency
	}
	if req.LatencyMs > maxLatencyMs {
		return errLatencyTooLarge
	}
	if req.PayloadKB < 0 {
		return errNegativePayload
	}
	if req.PayloadKB > maxPayloadKB {
		return errPayloadTooLarge
	}
	return nil
}
