package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"usergate/internal/audit"
	dErrors "usergate/pkg/domain-errors"
)

// Postgres persists audit records in an append-only table. Context data is
// stored as JSONB so downstream compliance queries can filter on it.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres connects with the lib/pq driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "open audit database")
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ping audit database")
	}
	return &Postgres{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id             UUID PRIMARY KEY,
    correlation_id TEXT NOT NULL,
    action         TEXT NOT NULL,
    subject        TEXT NOT NULL,
    source         TEXT NOT NULL,
    context        JSONB NOT NULL DEFAULT '{}'::jsonb,
    occurred_at    TIMESTAMPTZ NOT NULL,
    recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events (subject);
CREATE INDEX IF NOT EXISTS idx_audit_events_correlation ON audit_events (correlation_id);
`

// EnsureSchema creates the audit table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return dErrors.Wrap(err, dErrors.CodeInternal, "create audit schema")
}

// Write inserts one audit record and returns its id.
func (p *Postgres) Write(ctx context.Context, event audit.Event) (string, error) {
	contextJSON, err := json.Marshal(event.Context)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal audit context")
	}

	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, correlation_id, action, subject, source, context, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, event.CorrelationID, event.Action, event.Subject, string(event.Source), contextJSON, event.Timestamp,
	)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "insert audit record")
	}
	return id, nil
}

// CountBySubject reports stored events for one subject, for admin tooling.
func (p *Postgres) CountBySubject(ctx context.Context, subject string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT count(*) FROM audit_events WHERE subject = $1`, subject,
	).Scan(&count)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "count audit records")
	}
	return count, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
