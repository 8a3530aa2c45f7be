package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/models"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     models.TelemetryRequest
		wantErr error
	}{
		{"valid", models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 10, PayloadKB: 1}, nil},
		{"missing service id", models.TelemetryRequest{LatencyMs: 1, PayloadKB: 1}, errMissingServiceID},
		{"service id too long", models.TelemetryRequest{ServiceID: strings.Repeat("a", 65), LatencyMs: 1}, errInvalidServiceID},
		{"service id max length ok", models.TelemetryRequest{ServiceID: strings.Repeat("a", 64), LatencyMs: 1}, nil},
		{"service id bad charset", models.TelemetryRequest{ServiceID: "svc/../../etc", LatencyMs: 1}, errInvalidServiceID},
		{"service id with allowed punctuation", models.TelemetryRequest{ServiceID: "svc-a.b_c", LatencyMs: 1}, nil},
		{"negative latency", models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: -1}, errNegativeLatency},
		{"latency at ceiling", models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 300_000}, nil},
		{"latency over ceiling", models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 300_001}, errLatencyTooLarge},
		{"negative payload", models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 1, PayloadKB: -1}, errNegativePayload},
		{"payload at ceiling", models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 1, PayloadKB: 1_048_576}, nil},
		{"payload over ceiling", models.TelemetryRequest{ServiceID: "svc-a", LatencyMs: 1, PayloadKB: 1_048_577}, errPayloadTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate(tc.req)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
