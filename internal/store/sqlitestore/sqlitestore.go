// Package sqlitestore is the durable store.Store implementation, backed by
// modernc.org/sqlite (pure Go, no cgo). Schema and pragma setup follow the
// same shape as the teacher pack's vstats agent-side local store: WAL mode,
// a busy timeout, and CREATE TABLE IF NOT EXISTS at open time.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/driftwatch/driftwatch/internal/models"
	"github.com/driftwatch/driftwatch/internal/store"
)

// Store is the sqlite-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: set synchronous: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS telemetry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			latency_ms REAL NOT NULL,
			payload_kb REAL NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_telemetry_service_ts
			ON telemetry(service_id, timestamp DESC);

		CREATE TABLE IF NOT EXISTS baselines (
			service_id TEXT PRIMARY KEY,
			sample_count INTEGER NOT NULL,
			mean_latency REAL NOT NULL,
			stddev_latency REAL NOT NULL,
			p50_latency REAL NOT NULL,
			p95_latency REAL NOT NULL,
			p99_latency REAL NOT NULL,
			mean_payload REAL NOT NULL,
			stddev_payload REAL NOT NULL,
			p50_payload REAL NOT NULL,
			p95_payload REAL NOT NULL,
			p99_payload REAL NOT NULL,
			last_updated INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS health_state (
			service_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			transition_timestamp INTEGER NOT NULL,
			metadata_json TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS drift_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_id TEXT NOT NULL,
			detected_at INTEGER NOT NULL,
			previous_state TEXT NOT NULL,
			new_state TEXT NOT NULL,
			trigger_samples_json TEXT,
			metadata_json TEXT NOT NULL,
			correlation_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_drift_events_service
			ON drift_events(service_id, detected_at DESC);

		CREATE TABLE IF NOT EXISTS zscores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			latency_zscore REAL NOT NULL,
			payload_zscore REAL NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_zscores_service_ts
			ON zscores(service_id, timestamp DESC);
	`)
	if err != nil {
		return fmt.Errorf("sqlitestore: migrate: %w", err)
	}
	return nil
}

func (s *Store) AppendTelemetry(ctx context.Context, sample models.TelemetrySample) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry (service_id, timestamp, latency_ms, payload_kb, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sample.ServiceID, sample.Timestamp, sample.LatencyMs, sample.PayloadKB, sample.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: append telemetry: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) CountTelemetry(ctx context.Context, serviceID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM telemetry WHERE service_id = ?`, serviceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: count telemetry: %w", err)
	}
	return n, nil
}

func (s *Store) RecentTelemetry(ctx context.Context, serviceID string, limit int) ([]models.TelemetrySample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service_id, timestamp, latency_ms, payload_kb, created_at
		 FROM telemetry WHERE service_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		serviceID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: recent telemetry: %w", err)
	}
	defer rows.Close()

	var out []models.TelemetrySample
	for rows.Next() {
		var t models.TelemetrySample
		if err := rows.Scan(&t.ID, &t.ServiceID, &t.Timestamp, &t.LatencyMs, &t.PayloadKB, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan telemetry: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpsertBaseline(ctx context.Context, b models.Baseline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO baselines (service_id, sample_count, mean_latency, stddev_latency,
			p50_latency, p95_latency, p99_latency, mean_payload, stddev_payload,
			p50_payload, p95_payload, p99_payload, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service_id) DO UPDATE SET
			sample_count = excluded.sample_count,
			mean_latency = excluded.mean_latency,
			stddev_latency = excluded.stddev_latency,
			p50_latency = excluded.p50_latency,
			p95_latency = excluded.p95_latency,
			p99_latency = excluded.p99_latency,
			mean_payload = excluded.mean_payload,
			stddev_payload = excluded.stddev_payload,
			p50_payload = excluded.p50_payload,
			p95_payload = excluded.p95_payload,
			p99_payload = excluded.p99_payload,
			last_updated = excluded.last_updated`,
		b.ServiceID, b.SampleCount, b.MeanLatency, b.StddevLatency,
		b.P50Latency, b.P95Latency, b.P99Latency, b.MeanPayload, b.StddevPayload,
		b.P50Payload, b.P95Payload, b.P99Payload, b.LastUpdated, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert baseline: %w", err)
	}
	return nil
}

func (s *Store) GetBaseline(ctx context.Context, serviceID string) (models.Baseline, error) {
	var b models.Baseline
	err := s.db.QueryRowContext(ctx, `
		SELECT service_id, sample_count, mean_latency, stddev_latency, p50_latency,
			p95_latency, p99_latency, mean_payload, stddev_payload, p50_payload,
			p95_payload, p99_payload, last_updated, created_at
		FROM baselines WHERE service_id = ?`, serviceID).Scan(
		&b.ServiceID, &b.SampleCount, &b.MeanLatency, &b.StddevLatency, &b.P50Latency,
		&b.P95Latency, &b.P99Latency, &b.MeanPayload, &b.StddevPayload, &b.P50Payload,
		&b.P95Payload, &b.P99Payload, &b.LastUpdated, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Baseline{}, store.ErrNotFound
	}
	if err != nil {
		return models.Baseline{}, fmt.Errorf("sqlitestore: get baseline: %w", err)
	}
	return b, nil
}

func (s *Store) UpsertHealthState(ctx context.Context, h models.HealthState) error {
	metaJSON, err := marshalMetadata(h.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO health_state (service_id, state, transition_timestamp, metadata_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(service_id) DO UPDATE SET
			state = excluded.state,
			transition_timestamp = excluded.transition_timestamp,
			metadata_json = excluded.metadata_json`,
		h.ServiceID, string(h.State), h.TransitionTimestamp, metaJSON)
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert health state: %w", err)
	}
	return nil
}

func (s *Store) GetHealthState(ctx context.Context, serviceID string) (models.HealthState, error) {
	var h models.HealthState
	var state, metaJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT service_id, state, transition_timestamp, metadata_json
		 FROM health_state WHERE service_id = ?`, serviceID).
		Scan(&h.ServiceID, &state, &h.TransitionTimestamp, &metaJSON)
	if err == sql.ErrNoRows {
		return models.HealthState{}, store.ErrNotFound
	}
	if err != nil {
		return models.HealthState{}, fmt.Errorf("sqlitestore: get health state: %w", err)
	}
	h.State = models.HealthStatus(state)
	if h.Metadata, err = unmarshalMetadata(metaJSON); err != nil {
		return models.HealthState{}, err
	}
	return h, nil
}

func (s *Store) AppendDriftEvent(ctx context.Context, e models.DriftEvent) (int64, error) {
	metaJSON, err := marshalMetadata(e.Metadata)
	if err != nil {
		return 0, err
	}
	samplesJSON, err := marshalFloats(e.TriggerSamples)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO drift_events (service_id, detected_at, previous_state, new_state,
			trigger_samples_json, metadata_json, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ServiceID, e.DetectedAt, string(e.PreviousState), string(e.NewState),
		samplesJSON, metaJSON, e.CorrelationID)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: append drift event: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) RecentDriftEvents(ctx context.Context, serviceID string, limit int) ([]models.DriftEvent, error) {
	var rows *sql.Rows
	var err error
	if serviceID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, service_id, detected_at, previous_state, new_state,
				trigger_samples_json, metadata_json, correlation_id
			FROM drift_events ORDER BY detected_at DESC, id DESC LIMIT ?`, limitOrAll(limit))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, service_id, detected_at, previous_state, new_state,
				trigger_samples_json, metadata_json, correlation_id
			FROM drift_events WHERE service_id = ? ORDER BY detected_at DESC, id DESC LIMIT ?`,
			serviceID, limitOrAll(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: recent drift events: %w", err)
	}
	defer rows.Close()

	var out []models.DriftEvent
	for rows.Next() {
		var e models.DriftEvent
		var prev, next, metaJSON string
		var samplesJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.ServiceID, &e.DetectedAt, &prev, &next,
			&samplesJSON, &metaJSON, &e.CorrelationID); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan drift event: %w", err)
		}
		e.PreviousState = models.HealthStatus(prev)
		e.NewState = models.HealthStatus(next)
		if e.Metadata, err = unmarshalMetadata(metaJSON); err != nil {
			return nil, err
		}
		if samplesJSON.Valid {
			if e.TriggerSamples, err = unmarshalFloats(samplesJSON.String); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AppendZScore(ctx context.Context, z models.ZScoreRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO zscores (service_id, timestamp, latency_zscore, payload_zscore, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		z.ServiceID, z.Timestamp, z.LatencyZScore, z.PayloadZScore, z.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: append zscore: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) RecentZScores(ctx context.Context, serviceID string, limit int) ([]models.ZScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, service_id, timestamp, latency_zscore, payload_zscore, created_at
		FROM zscores WHERE service_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		serviceID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: recent zscores: %w", err)
	}
	defer rows.Close()

	var out []models.ZScoreRecord
	for rows.Next() {
		var z models.ZScoreRecord
		if err := rows.Scan(&z.ID, &z.ServiceID, &z.Timestamp, &z.LatencyZScore, &z.PayloadZScore, &z.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan zscore: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (s *Store) PruneTelemetryBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM telemetry WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: prune telemetry: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Services(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT service_id FROM telemetry
		UNION
		SELECT service_id FROM health_state
		ORDER BY service_id`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: services: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan service id: %w", err)
		}
		out = append(out, sid)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

// limitOrAll maps a non-positive limit to "no limit" for the LIMIT clause.
func limitOrAll(limit int) int64 {
	if limit <= 0 {
		return -1
	}
	return int64(limit)
}
