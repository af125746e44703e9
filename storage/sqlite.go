package storage

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-crawler/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	title TEXT NOT NULL CHECK (length(trim(title)) > 0),
	price TEXT NOT NULL CHECK (length(trim(price)) > 0),
	rating TEXT,
	url TEXT NOT NULL CHECK (url LIKE 'http://%' OR url LIKE 'https://%'),
	category TEXT NOT NULL,
	parent_category TEXT,
	scraped_at TIMESTAMP NOT NULL,
	run_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_products_collection ON products(collection);
CREATE INDEX IF NOT EXISTS idx_products_run ON products(run_id);
`

// SQLiteStore keeps all collections in one products table
type SQLiteStore struct {
	db     *sql.DB
	logger types.Logger
}

// NewSQLiteStore opens or creates the database at path and initialises the schema
func NewSQLiteStore(path string, logger types.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// InsertBatch inserts the records in one transaction. A row that violates a
// constraint is rejected on its own; the others are still committed.
func (s *SQLiteStore) InsertBatch(ctx context.Context, collection string, records []types.ProductRecord) (BatchResult, error) {
	if len(records) == 0 {
		return BatchResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (collection, title, price, rating, url, category, parent_category, scraped_at, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var result BatchResult
	for i, r := range records {
		_, err := stmt.ExecContext(ctx, collection, r.Title, r.Price, r.Rating, r.URL,
			r.Category, r.ParentCategory, r.ScrapedAt, r.RunID)
		if err != nil {
			if ctx.Err() != nil {
				return BatchResult{}, ctx.Err()
			}
			result.Rejected = append(result.Rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		result.InsertedCount++
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, fmt.Errorf("failed to commit batch: %w", err)
	}
	return result, nil
}

// Count returns the number of rows stored for a collection
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE collection = ?", collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}
