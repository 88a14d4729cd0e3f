package audit

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the audit table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS clean_audit_log (
	id           UUID PRIMARY KEY,
	action       TEXT NOT NULL,
	severity     TEXT NOT NULL,
	session_id   TEXT NOT NULL,
	files        TEXT[],
	score_before DOUBLE PRECISION,
	score_after  DOUBLE PRECISION,
	ip_address   INET,
	user_agent   TEXT,
	detail       TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS clean_audit_log_session_idx ON clean_audit_log (session_id);
CREATE INDEX IF NOT EXISTS clean_audit_log_created_idx ON clean_audit_log (created_at);
`

const insertEntry = `
INSERT INTO clean_audit_log
	(id, action, severity, session_id, files, score_before, score_after, ip_address, user_agent, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// execer is the subset of *pgxpool.Pool the recorder needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRecorder stores entries in PostgreSQL.
type PgRecorder struct {
	db execer
}

// NewPgRecorder creates a recorder on an open pool.
func NewPgRecorder(pool *pgxpool.Pool) *PgRecorder {
	return &PgRecorder{db: pool}
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens and pings a pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the audit table when it does not exist.
func (r *PgRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Record inserts e.
func (r *PgRecorder) Record(ctx context.Context, e Entry) error {
	e = Stamp(e, time.Now())
	_, err := r.db.Exec(ctx, insertEntry, insertArgs(e)...)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func insertArgs(e Entry) []any {
	var scoreBefore, scoreAfter pgtype.Float8
	if e.Action == ActionRun {
		scoreBefore = pgtype.Float8{Float64: e.ScoreBefore, Valid: true}
		scoreAfter = pgtype.Float8{Float64: e.ScoreAfter, Valid: true}
	}
	return []any{
		toPgUUID(e.ID),
		string(e.Action),
		string(e.Severity),
		e.SessionID,
		e.Files,
		scoreBefore,
		scoreAfter,
		toInet(e.IPAddress),
		toPgText(e.UserAgent),
		toPgText(e.Detail),
		pgtype.Timestamptz{Time: e.CreatedAt, Valid: true},
	}
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// toInet returns nil for a missing or malformed address so the column stays NULL.
func toInet(ip string) *netip.Addr {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil
	}
	return &addr
}
