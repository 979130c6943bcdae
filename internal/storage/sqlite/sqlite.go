package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/dugout/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db    *sql.DB
	runID string
}

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	forum TEXT NOT NULL,
	author TEXT,
	text TEXT NOT NULL,
	permalink TEXT NOT NULL,
	created_at TEXT NOT NULL,
	matched_keyword TEXT NOT NULL,
	char_len INTEGER
);
CREATE INDEX IF NOT EXISTS records_run_id ON records (run_id);
`

// fixed width so that string comparison orders timestamps
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// New creates a new SQLite-backed storage.Backend. Every Replace swaps the
// rows of opts.RunID and leaves other runs alone; an empty RunID gets a fresh
// UUID.
func New(dsn string, opts storage.Options) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between snapshot transactions
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return &sqliteBackend{db: db, runID: runID}, nil
}

func (b *sqliteBackend) Replace(ctx context.Context, records []*storage.Record) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, b.runID); err != nil {
		return fmt.Errorf("failed to clear previous snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO records (
		run_id, source, forum, author, text, permalink, created_at, matched_keyword, char_len
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var charLen sql.NullInt64
		if r.CharLen > 0 {
			charLen = sql.NullInt64{Int64: int64(r.CharLen), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			b.runID,
			string(r.Source),
			r.Forum,
			r.Author,
			r.Text,
			r.Permalink,
			r.CreatedAt.UTC().Format(timeLayout),
			r.MatchedKeyword,
			charLen,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT source, forum, author, text, permalink, created_at, matched_keyword, char_len FROM records WHERE 1=1`
	args := []any{}

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Forum != "" {
		query += ` AND forum = ?`
		args = append(args, filter.Forum)
	}
	if filter.MatchedKeyword != "" {
		query += ` AND matched_keyword = ?`
		args = append(args, filter.MatchedKeyword)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	query += ` ORDER BY seq ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// sqlite needs a LIMIT before OFFSET
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	results := []*storage.Record{}
	for rows.Next() {
		var (
			r         storage.Record
			source    string
			author    sql.NullString
			createdAt string
			charLen   sql.NullInt64
		)

		err := rows.Scan(&source, &r.Forum, &author, &r.Text, &r.Permalink, &createdAt, &r.MatchedKeyword, &charLen)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		if r.Source, err = storage.ParseSource(source); err != nil {
			return nil, err
		}
		if author.Valid {
			name := author.String
			r.Author = &name
		}
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
		}
		if charLen.Valid {
			r.CharLen = int(charLen.Int64)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
