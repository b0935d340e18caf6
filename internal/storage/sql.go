// SQL implementation of the Ledger over database/sql, supporting SQLite
// (default, embedded) and Postgres (the driver the original deployment used).
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gk6450/mcq-gen/internal/config"
	"github.com/gk6450/mcq-gen/internal/models"
)

// SQLLedger implements Ledger using database/sql.
type SQLLedger struct {
	db     *sql.DB
	driver string
}

// NewSQLLedger opens the ledger database and initializes the schema.
// For sqlite3 the DSN is a file path (parent directories are created and WAL
// is enabled); for postgres it is a lib/pq connection string.
func NewSQLLedger(driver, dsn string) (*SQLLedger, error) {
	if driver == config.DriverSQLite {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == config.DriverSQLite {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	s := &SQLLedger{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		book_id TEXT PRIMARY KEY,
		title TEXT,
		owner TEXT,
		inserted_chunks INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		chapter_name TEXT,
		page INTEGER,
		chunk_index INTEGER,
		chunk_hash TEXT NOT NULL,
		full_text TEXT,
		UNIQUE (book_id, chunk_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_book_id ON chunks(book_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_book_hash ON chunks(book_id, chunk_hash);
	`
	_, err := s.db.Exec(schema)
	return err
}

// rebind converts ?-style placeholders to $N for postgres.
func (s *SQLLedger) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UpsertBook inserts the book or updates its mutable fields.
func (s *SQLLedger) UpsertBook(ctx context.Context, book *models.Book) error {
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO books (book_id, title, owner, inserted_chunks, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (book_id) DO UPDATE SET
		 title = excluded.title,
		 owner = excluded.owner,
		 inserted_chunks = excluded.inserted_chunks,
		 active = excluded.active`),
		book.BookID, book.Title, book.Owner, book.InsertedChunks, book.Active, book.CreatedAt,
	)
	return err
}

// GetBook returns a book by ID, or ErrBookNotFound.
func (s *SQLLedger) GetBook(ctx context.Context, bookID string) (*models.Book, error) {
	var book models.Book
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT book_id, title, owner, inserted_chunks, active, created_at
		 FROM books WHERE book_id = ?`), bookID,
	).Scan(&book.BookID, &book.Title, &book.Owner, &book.InsertedChunks, &book.Active, &book.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, bookID)
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ListBooks returns up to limit books, newest first.
func (s *SQLLedger) ListBooks(ctx context.Context, limit int) ([]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT book_id, title, owner, inserted_chunks, active, created_at
		 FROM books ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	books := make([]*models.Book, 0)
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(&book.BookID, &book.Title, &book.Owner,
			&book.InsertedChunks, &book.Active, &book.CreatedAt); err != nil {
			return nil, err
		}
		books = append(books, &book)
	}
	return books, rows.Err()
}

// DeleteBook removes a book row. Chunk rows are deleted separately so the
// two-step delete can report each outcome.
func (s *SQLLedger) DeleteBook(ctx context.Context, bookID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM books WHERE book_id = ?`), bookID)
	return err
}

// ChunkHashes returns the set of content hashes already persisted for a book.
func (s *SQLLedger) ChunkHashes(ctx context.Context, bookID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT chunk_hash FROM chunks WHERE book_id = ?`), bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = struct{}{}
	}
	return hashes, rows.Err()
}

// BatchCreateChunks writes one row per chunk in a single transaction.
// Calling with zero chunks is a no-op.
func (s *SQLLedger) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO chunks (chunk_id, book_id, chapter_name, page, chunk_index, chunk_hash, full_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, ch.ChunkID, ch.BookID, ch.ChapterName,
			ch.Page, ch.ChunkIndex, ch.Hash, ch.Text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %s: %w", ch.ChunkID, err)
		}
	}
	return tx.Commit()
}

// GetChunksByIDs returns the chunks whose IDs exist in the ledger; unknown
// IDs are simply absent from the result.
func (s *SQLLedger) GetChunksByIDs(ctx context.Context, chunkIDs []string) ([]*models.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunkIDs)), ", ")
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT chunk_id, book_id, chapter_name, page, chunk_index, chunk_hash, full_text
		 FROM chunks WHERE chunk_id IN (`+placeholders+`)`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]*models.Chunk, 0, len(chunkIDs))
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ChunkID, &ch.BookID, &ch.ChapterName,
			&ch.Page, &ch.ChunkIndex, &ch.Hash, &ch.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, &ch)
	}
	return chunks, rows.Err()
}

// CountChunks returns the number of persisted chunks for a book.
func (s *SQLLedger) CountChunks(ctx context.Context, bookID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM chunks WHERE book_id = ?`), bookID).Scan(&count)
	return count, err
}

// DeleteChunks removes all chunk rows for a book.
func (s *SQLLedger) DeleteChunks(ctx context.Context, bookID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM chunks WHERE book_id = ?`), bookID)
	return err
}

// ListChapters returns the distinct non-empty chapter names for a book, sorted.
func (s *SQLLedger) ListChapters(ctx context.Context, bookID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT DISTINCT chapter_name FROM chunks WHERE book_id = ? AND chapter_name != ''`), bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chapters := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		chapters = append(chapters, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(chapters)
	return chapters, nil
}

// CountBooks returns the total number of books.
func (s *SQLLedger) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}

// CountAllChunks returns the total number of chunks.
func (s *SQLLedger) CountAllChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLLedger) Close() error {
	return s.db.Close()
}
