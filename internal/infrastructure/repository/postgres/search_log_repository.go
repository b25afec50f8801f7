package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

// SearchLogRepository persists one row per completed pipeline run. Writes
// happen off the response path; readers serve the history endpoint.
type SearchLogRepository struct {
	db *sql.DB
}

func NewSearchLogRepository(db *sql.DB) *SearchLogRepository {
	return &SearchLogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SearchLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS search_log (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	enhanced_query TEXT NOT NULL,
	web_count INTEGER NOT NULL DEFAULT 0,
	indexed_count INTEGER NOT NULL DEFAULT 0,
	answer_chars INTEGER NOT NULL DEFAULT 0,
	used_external_knowledge BOOLEAN NOT NULL DEFAULT FALSE,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_log_created_at ON search_log(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SearchLogRepository) Insert(ctx context.Context, record domain.SearchRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO search_log (
	id, query, enhanced_query, web_count, indexed_count, answer_chars, used_external_knowledge, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		record.ID, record.Query, record.EnhancedQuery, record.WebCount, record.IndexedCount,
		record.AnswerChars, record.UsedExternalKnowledge, record.DurationMs, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert search record: %w", err)
	}
	return nil
}

func (r *SearchLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.SearchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, query, enhanced_query, web_count, indexed_count, answer_chars, used_external_knowledge, duration_ms, created_at
FROM search_log
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list search records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchRecord, 0, limit)
	for rows.Next() {
		var record domain.SearchRecord
		if err := rows.Scan(
			&record.ID, &record.Query, &record.EnhancedQuery, &record.WebCount, &record.IndexedCount,
			&record.AnswerChars, &record.UsedExternalKnowledge, &record.DurationMs, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan search record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search records: %w", err)
	}
	return out, nil
}
