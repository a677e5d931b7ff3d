package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a batch id is not in the ledger.
var ErrNotFound = errors.New("batch not found")

// Item status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Item is the recorded outcome of one payload in a batch.
type Item struct {
	Position int    `json:"index"`
	Payload  string `json:"payload"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Batch is one generate request: its shared format, item outcomes, and
// where the archive was written.
type Batch struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Format      string    `json:"format"`
	Total       int       `json:"total"`
	Failed      int       `json:"failed"`
	ArchivePath string    `json:"-"`
	Items       []Item    `json:"items,omitempty"`
}

// Succeeded returns the number of items that produced an image.
func (b *Batch) Succeeded() int { return b.Total - b.Failed }

// BatchStore manages the SQLite ledger of generated batches.
type BatchStore struct {
	db *sql.DB
}

const createBatchesTable = `
CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    format TEXT NOT NULL,
    total INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    archive_path TEXT NOT NULL DEFAULT ''
);
`

const createItemsTable = `
CREATE TABLE IF NOT EXISTS batch_items (
    batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    payload TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL DEFAULT '',
    filename TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (batch_id, position)
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);
`

// NewBatchStore opens (or creates) the SQLite database at dbPath and
// initialises the schema.
func NewBatchStore(dbPath string) (*BatchStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range []string{
		createBatchesTable,
		createItemsTable,
		createIndexes,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec schema statement: %w", err)
		}
	}

	return &BatchStore{db: db}, nil
}

// SaveBatch records a batch and all of its items in one transaction.
func (s *BatchStore) SaveBatch(ctx context.Context, b *Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save batch: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (id, created_at, format, total, failed, archive_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.ID, b.CreatedAt.UnixMilli(), b.Format, b.Total, b.Failed, b.ArchivePath)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	const itemQuery = `
		INSERT INTO batch_items (batch_id, position, payload, status, error, kind, filename)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, it := range b.Items {
		if _, err := tx.ExecContext(ctx, itemQuery,
			b.ID, it.Position, it.Payload, it.Status, it.Error, it.Kind, it.Filename,
		); err != nil {
			return fmt.Errorf("insert batch item %d: %w", it.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save batch: %w", err)
	}
	return nil
}

// GetBatch returns the batch with its items in position order.
func (s *BatchStore) GetBatch(ctx context.Context, id string) (*Batch, error) {
	const query = `
		SELECT id, created_at, format, total, failed, archive_path
		FROM batches
		WHERE id = ?
	`
	b, err := scanBatch(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, payload, status, error, kind, filename
		FROM batch_items
		WHERE batch_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get batch items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Position, &it.Payload, &it.Status, &it.Error, &it.Kind, &it.Filename); err != nil {
			return nil, fmt.Errorf("scan batch item row: %w", err)
		}
		b.Items = append(b.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch item rows: %w", err)
	}
	return b, nil
}

// ListBatches returns batch summaries (without items), newest first.
func (s *BatchStore) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, format, total, failed, archive_path
		FROM batches
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		batches = append(batches, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch rows: %w", err)
	}
	return batches, nil
}

// DeleteBefore removes batches created before cutoff and returns their ids.
// Items go with their batch through the foreign key cascade. Either every
// expired batch is removed or none is.
func (s *BatchStore) DeleteBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete batches: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `DELETE FROM batches WHERE created_at < ? RETURNING id`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("delete expired batches: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan deleted batch id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted batches: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete batches: %w", err)
	}
	return ids, nil
}

// Close closes the underlying database connection.
func (s *BatchStore) Close() error {
	return s.db.Close()
}

// --- helpers ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*Batch, error) {
	var b Batch
	var created int64
	if err := row.Scan(&b.ID, &created, &b.Format, &b.Total, &b.Failed, &b.ArchivePath); err != nil {
		return nil, err
	}
	b.CreatedAt = time.UnixMilli(created).UTC()
	return &b, nil
}
