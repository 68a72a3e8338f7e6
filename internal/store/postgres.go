package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/verichain-labs/verichain/internal/db"
	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/scoring"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"insert_verification": `INSERT INTO verifications
		(id, content_hash, filename, declared_type, detected_type, size_bytes,
		 trust_score, confidence, ai_generated, status, analysis, pin, anchor,
		 pin_mock, anchor_degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
	"find_by_hash": `SELECT id, content_hash, filename, declared_type, detected_type,
		size_bytes, trust_score, confidence, ai_generated, status, analysis, pin, anchor, created_at
		FROM verifications WHERE content_hash = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
	"count_verifications": `SELECT COUNT(*) FROM verifications`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS verifications (
	id              TEXT PRIMARY KEY,
	content_hash    TEXT NOT NULL,
	filename        TEXT,
	declared_type   TEXT,
	detected_type   TEXT,
	size_bytes      BIGINT NOT NULL DEFAULT 0,
	trust_score     INTEGER NOT NULL,
	confidence      INTEGER NOT NULL,
	ai_generated    BOOLEAN NOT NULL DEFAULT false,
	status          TEXT NOT NULL,
	analysis        JSONB NOT NULL,
	pin             JSONB NOT NULL,
	anchor          JSONB NOT NULL,
	pin_mock        BOOLEAN NOT NULL DEFAULT false,
	anchor_degraded BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_verifications_content_hash ON verifications(content_hash);
CREATE INDEX IF NOT EXISTS idx_verifications_created_at ON verifications(created_at);
CREATE INDEX IF NOT EXISTS idx_verifications_status ON verifications(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec *model.VerificationRecord) error {
	analysisJSON, pinJSON, anchorJSON, err := marshalParts(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	_, err = s.pool.Exec(ctx, preparedStatements["insert_verification"],
		rec.ID, rec.ContentHash, rec.Filename, rec.DeclaredType, rec.DetectedType,
		rec.SizeBytes, rec.TrustScore, rec.Confidence, rec.AIGenerated,
		string(rec.Status), analysisJSON, pinJSON, anchorJSON,
		rec.Pin.Mock, rec.Anchor.Mock || rec.Anchor.Failed, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert verification %s", rec.ID)
}

func (s *PostgresStore) FindByHash(ctx context.Context, contentHash string) (*model.VerificationRecord, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["find_by_hash"], contentHash)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find by hash %s", contentHash)
	}
	return rec, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]model.VerificationRecord, error) {
	query := `SELECT id, content_hash, filename, declared_type, detected_type,
		size_bytes, trust_score, confidence, ai_generated, status, analysis, pin, anchor, created_at
		FROM verifications ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recent")
	}
	defer rows.Close()

	var out []model.VerificationRecord
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan verification")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate verifications")
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, preparedStatements["count_verifications"]).Scan(&n)
	return n, eris.Wrap(err, "postgres: count")
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'verified'),
			COUNT(*) FILTER (WHERE status = 'suspicious'),
			COUNT(*) FILTER (WHERE status = 'fake'),
			COUNT(*) FILTER (WHERE pin_mock),
			COUNT(*) FILTER (WHERE anchor_degraded)
		FROM verifications`,
	).Scan(&stats.Total, &stats.Verified, &stats.Suspicious, &stats.Fake,
		&stats.MockPins, &stats.MockAnchors)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &stats, nil
}

func scanPgRecord(row pgx.Row) (*model.VerificationRecord, error) {
	var (
		rec                               model.VerificationRecord
		status                            string
		analysisJSON, pinJSON, anchorJSON []byte
		createdAt                         time.Time
	)
	err := row.Scan(&rec.ID, &rec.ContentHash, &rec.Filename, &rec.DeclaredType,
		&rec.DetectedType, &rec.SizeBytes, &rec.TrustScore, &rec.Confidence,
		&rec.AIGenerated, &status, &analysisJSON, &pinJSON, &anchorJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.Status = scoring.Tier(status)
	rec.CreatedAt = createdAt.UTC()
	if err := json.Unmarshal(analysisJSON, &rec.Analysis); err != nil {
		return nil, eris.Wrap(err, "unmarshal analysis")
	}
	if err := json.Unmarshal(pinJSON, &rec.Pin); err != nil {
		return nil, eris.Wrap(err, "unmarshal pin")
	}
	if err := json.Unmarshal(anchorJSON, &rec.Anchor); err != nil {
		return nil, eris.Wrap(err, "unmarshal anchor")
	}
	return &rec, nil
}
