package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/dugout/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool  *pgxpool.Pool
	runID string
}

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	forum TEXT NOT NULL,
	author TEXT,
	text TEXT NOT NULL,
	permalink TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	matched_keyword TEXT NOT NULL,
	char_len INTEGER
);
CREATE INDEX IF NOT EXISTS records_run_id ON records (run_id);
`

var columns = []string{
	"run_id", "source", "forum", "author", "text", "permalink", "created_at", "matched_keyword", "char_len",
}

// New creates a new Postgres-backed storage.Backend scoped to opts.RunID.
func New(ctx context.Context, dsn string, opts storage.Options) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return &postgresBackend{pool: pool, runID: runID}, nil
}

// Replace swaps this run's rows inside one transaction and bulk loads the
// snapshot with COPY.
func (b *postgresBackend) Replace(ctx context.Context, records []*storage.Record) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM records WHERE run_id = $1`, b.runID); err != nil {
		return fmt.Errorf("failed to clear previous snapshot: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		var charLen *int
		if r.CharLen > 0 {
			n := r.CharLen
			charLen = &n
		}
		rows = append(rows, []any{
			b.runID,
			string(r.Source),
			r.Forum,
			r.Author,
			r.Text,
			r.Permalink,
			r.CreatedAt.UTC(),
			r.MatchedKeyword,
			charLen,
		})
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"records"}, columns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("failed to copy records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT source, forum, author, text, permalink, created_at, matched_keyword, char_len FROM records WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, paramCount)
		args = append(args, filter.RunID)
		paramCount++
	}
	if filter.Forum != "" {
		query += fmt.Sprintf(` AND forum = $%d`, paramCount)
		args = append(args, filter.Forum)
		paramCount++
	}
	if filter.MatchedKeyword != "" {
		query += fmt.Sprintf(` AND matched_keyword = $%d`, paramCount)
		args = append(args, filter.MatchedKeyword)
		paramCount++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, paramCount)
		args = append(args, string(filter.Source))
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY seq ASC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	results := []*storage.Record{}
	for rows.Next() {
		var (
			r       storage.Record
			source  string
			charLen *int32
		)

		err := rows.Scan(&source, &r.Forum, &r.Author, &r.Text, &r.Permalink, &r.CreatedAt, &r.MatchedKeyword, &charLen)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		if r.Source, err = storage.ParseSource(source); err != nil {
			return nil, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		if charLen != nil {
			r.CharLen = int(*charLen)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
