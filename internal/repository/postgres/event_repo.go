package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

// Ensure pgEventRepo implements repository.EventRepository.
var _ repository.EventRepository = (*pgEventRepo)(nil)

// DBTX is the subset of pgxpool.Pool used by the repository.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Schema creates the feed table. It is safe to run on every start.
const Schema = `
	CREATE TABLE IF NOT EXISTS feed_events (
		id                  TEXT PRIMARY KEY,
		source              TEXT NOT NULL,
		job_id              TEXT NOT NULL DEFAULT '',
		subject             TEXT NOT NULL DEFAULT '',
		sender              TEXT NOT NULL DEFAULT '',
		body                TEXT NOT NULL DEFAULT '',
		label               TEXT NOT NULL,
		confidence          DOUBLE PRECISION NOT NULL,
		response            TEXT NOT NULL DEFAULT '',
		key_findings        TEXT[] NOT NULL DEFAULT '{}',
		recommended_actions TEXT[] NOT NULL DEFAULT '{}',
		affected_systems    TEXT[] NOT NULL DEFAULT '{}',
		incident_datetime   TEXT NOT NULL DEFAULT '',
		resource_address    TEXT NOT NULL DEFAULT '',
		incident_severity   JSONB,
		risk_score          TEXT NOT NULL DEFAULT '',
		raw_data            JSONB,
		created_at          TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS feed_events_created_at_idx ON feed_events (created_at DESC);`

type pgEventRepo struct {
	db DBTX
}

// NewPostgresEventRepository creates a new PostgreSQL-backed event feed.
func NewPostgresEventRepository(db DBTX) repository.EventRepository {
	return &pgEventRepo{db: db}
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (r *pgEventRepo) Append(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO feed_events (id, source, job_id, subject, sender, body, label, confidence, response,
		                         key_findings, recommended_actions, affected_systems, incident_datetime,
		                         resource_address, incident_severity, risk_score, raw_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	severity, err := jsonColumn(e.IncidentSeverity)
	if err != nil {
		return fmt.Errorf("postgres: encode severity: %w", err)
	}
	raw, err := jsonColumn(e.RawData)
	if err != nil {
		return fmt.Errorf("postgres: encode raw data: %w", err)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = r.db.Exec(ctx, query,
		e.ID, e.Source, e.JobID, e.Subject, e.From, e.Body, e.Label, e.Confidence, e.Response,
		nonNil(e.KeyFindings), nonNil(e.RecommendedActions), nonNil(e.AffectedSystems),
		e.IncidentDateTime, e.ResourceAddress, severity, e.RiskScore, raw, ts.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("postgres: append event: %w", err)
	}
	return nil
}

func (r *pgEventRepo) List(ctx context.Context, limit int) ([]*domain.Event, error) {
	query := `
		SELECT id, source, job_id, subject, sender, body, label, confidence, response,
		       key_findings, recommended_actions, affected_systems, incident_datetime,
		       resource_address, incident_severity, risk_score, raw_data, created_at
		FROM feed_events
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.Event, 0, limit)
	for rows.Next() {
		e := &domain.Event{}
		var severity, raw []byte
		if err := rows.Scan(
			&e.ID, &e.Source, &e.JobID, &e.Subject, &e.From, &e.Body, &e.Label, &e.Confidence, &e.Response,
			&e.KeyFindings, &e.RecommendedActions, &e.AffectedSystems, &e.IncidentDateTime,
			&e.ResourceAddress, &severity, &e.RiskScore, &raw, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		if len(severity) > 0 {
			if err := json.Unmarshal(severity, &e.IncidentSeverity); err != nil {
				return nil, fmt.Errorf("postgres: decode severity: %w", err)
			}
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.RawData); err != nil {
				return nil, fmt.Errorf("postgres: decode raw data: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	return events, nil
}

// jsonColumn encodes v for a JSONB column, mapping nil to NULL.
func jsonColumn(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]interface{}); ok && m == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
