package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

// SourceRepository tracks indexed corpus files so unchanged files can be
// skipped across restarts.
type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.WrapError(domain.ErrUnavailable, "db ping", err)
	}
	return db, nil
}

func (r *SourceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS corpus_sources (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL UNIQUE,
	path TEXT NOT NULL,
	checksum TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_corpus_sources_status ON corpus_sources(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert inserts the source or replaces the row with the same filename.
func (r *SourceRepository) Upsert(ctx context.Context, source *domain.Source) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO corpus_sources (id, filename, path, checksum, chunk_count, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (filename) DO UPDATE
SET path = EXCLUDED.path,
	checksum = EXCLUDED.checksum,
	chunk_count = EXCLUDED.chunk_count,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	updated_at = EXCLUDED.updated_at
`,
		source.ID, source.Filename, source.Path, source.Checksum, source.ChunkCount,
		string(source.Status), source.Error, source.CreatedAt, source.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

func (r *SourceRepository) GetByFilename(ctx context.Context, filename string) (*domain.Source, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, path, checksum, chunk_count, status, error_message, created_at, updated_at
FROM corpus_sources
WHERE filename = $1
`, filename)

	source, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get source", fmt.Errorf("filename=%s", filename))
		}
		return nil, err
	}
	return &source, nil
}

func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, chunkCount int, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE corpus_sources
SET status = $2, chunk_count = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), chunkCount, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update source rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "update source status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *SourceRepository) List(ctx context.Context) ([]domain.Source, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, filename, path, checksum, chunk_count, status, error_message, created_at, updated_at
FROM corpus_sources
ORDER BY filename
`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Source, 0)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (domain.Source, error) {
	var source domain.Source
	var status string
	err := row.Scan(
		&source.ID, &source.Filename, &source.Path, &source.Checksum, &source.ChunkCount,
		&status, &source.Error, &source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return source, err
		}
		return source, fmt.Errorf("scan source: %w", err)
	}
	source.Status = domain.SourceStatus(status)
	return source, nil
}
