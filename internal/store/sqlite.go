package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/scoring"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS verifications (
	id              TEXT PRIMARY KEY,
	content_hash    TEXT NOT NULL,
	filename        TEXT,
	declared_type   TEXT,
	detected_type   TEXT,
	size_bytes      INTEGER NOT NULL DEFAULT 0,
	trust_score     INTEGER NOT NULL,
	confidence      INTEGER NOT NULL,
	ai_generated    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	analysis        TEXT NOT NULL,
	pin             TEXT NOT NULL,
	anchor          TEXT NOT NULL,
	pin_mock        INTEGER NOT NULL DEFAULT 0,
	anchor_degraded INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_verifications_content_hash ON verifications(content_hash);
CREATE INDEX IF NOT EXISTS idx_verifications_created_at ON verifications(created_at);
CREATE INDEX IF NOT EXISTS idx_verifications_status ON verifications(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, rec *model.VerificationRecord) error {
	analysisJSON, pinJSON, anchorJSON, err := marshalParts(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verifications
		(id, content_hash, filename, declared_type, detected_type, size_bytes,
		 trust_score, confidence, ai_generated, status, analysis, pin, anchor,
		 pin_mock, anchor_degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ContentHash, rec.Filename, rec.DeclaredType, rec.DetectedType,
		rec.SizeBytes, rec.TrustScore, rec.Confidence, rec.AIGenerated,
		string(rec.Status), analysisJSON, pinJSON, anchorJSON,
		rec.Pin.Mock, rec.Anchor.Mock || rec.Anchor.Failed, rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert verification %s", rec.ID)
}

const sqliteSelectColumns = `id, content_hash, filename, declared_type, detected_type,
	size_bytes, trust_score, confidence, ai_generated, status, analysis, pin, anchor, created_at`

func (s *SQLiteStore) FindByHash(ctx context.Context, contentHash string) (*model.VerificationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSelectColumns+` FROM verifications
		WHERE content_hash = ? ORDER BY rowid DESC LIMIT 1`,
		contentHash,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find by hash %s", contentHash)
	}
	return rec, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]model.VerificationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteSelectColumns+` FROM verifications ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recent")
	}
	defer rows.Close()

	var out []model.VerificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verification")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate verifications")
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verifications`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'verified' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'suspicious' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'fake' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(pin_mock), 0),
			COALESCE(SUM(anchor_degraded), 0)
		FROM verifications`,
	).Scan(&stats.Total, &stats.Verified, &stats.Suspicious, &stats.Fake,
		&stats.MockPins, &stats.MockAnchors)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return &stats, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.VerificationRecord, error) {
	var (
		rec                              model.VerificationRecord
		status                           string
		analysisJSON, pinJSON, anchorJSON string
		createdAt                        time.Time
	)
	err := row.Scan(&rec.ID, &rec.ContentHash, &rec.Filename, &rec.DeclaredType,
		&rec.DetectedType, &rec.SizeBytes, &rec.TrustScore, &rec.Confidence,
		&rec.AIGenerated, &status, &analysisJSON, &pinJSON, &anchorJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.Status = scoring.Tier(status)
	rec.CreatedAt = createdAt.UTC()
	if err := json.Unmarshal([]byte(analysisJSON), &rec.Analysis); err != nil {
		return nil, eris.Wrap(err, "unmarshal analysis")
	}
	if err := json.Unmarshal([]byte(pinJSON), &rec.Pin); err != nil {
		return nil, eris.Wrap(err, "unmarshal pin")
	}
	if err := json.Unmarshal([]byte(anchorJSON), &rec.Anchor); err != nil {
		return nil, eris.Wrap(err, "unmarshal anchor")
	}
	return &rec, nil
}

func marshalParts(rec *model.VerificationRecord) (analysis, pin, anchor string, err error) {
	a, err := json.Marshal(rec.Analysis)
	if err != nil {
		return "", "", "", err
	}
	p, err := json.Marshal(rec.Pin)
	if err != nil {
		return "", "", "", err
	}
	n, err := json.Marshal(rec.Anchor)
	if err != nil {
		return "", "", "", err
	}
	return string(a), string(p), string(n), nil
}
