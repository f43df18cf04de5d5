package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vincentbai/telemetry-converter/internal/indexer"
	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// Database is the document sink and dead-letter store.
type Database struct {
	db    *sql.DB
	clock func() time.Time
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db, clock: time.Now}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS documents(
	  id         TEXT    NOT NULL,
	  index_name TEXT    NOT NULL,
	  index_type TEXT    NOT NULL,
	  eid        TEXT    NOT NULL,
	  ets        INTEGER,
	  doc_json   TEXT    NOT NULL CHECK (json_valid(doc_json)),
	  PRIMARY KEY (index_name, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_eid ON documents(eid);
	CREATE INDEX IF NOT EXISTS idx_documents_ets ON documents(ets);

	CREATE TABLE IF NOT EXISTS dead_letters(
	  id         INTEGER PRIMARY KEY,
	  mid        TEXT,
	  status     TEXT    NOT NULL,
	  error      TEXT,
	  doc_json   TEXT    NOT NULL CHECK (json_valid(doc_json)),
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dead_letters_status ON dead_letters(status);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// ValidateDocument checks the routing fields a document needs before it can
// be indexed.
func (d *Database) ValidateDocument(doc *indexer.Document) error {
	if !doc.IsIndexable() {
		return fmt.Errorf("document has no index destination")
	}
	if _, err := doc.ID(); err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	return nil
}

// IndexDocuments upserts docs by (index_name, id) in one transaction. Nothing
// is written if any document is invalid.
func (d *Database) IndexDocuments(ctx context.Context, docs []*indexer.Document) error {
	transaction, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.PrepareContext(ctx, `
	INSERT INTO documents(id, index_name, index_type, eid, ets, doc_json) VALUES(?,?,?,?,?,json(?))
	ON CONFLICT(index_name, id) DO UPDATE SET
	  index_type = excluded.index_type,
	  eid        = excluded.eid,
	  ets        = excluded.ets,
	  doc_json   = excluded.doc_json`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, doc := range docs {
		if err := d.ValidateDocument(doc); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("invalid document: %w", err)
		}
		id, _ := doc.ID()
		indexName, _ := doc.IndexName()
		indexType, _ := doc.IndexType()

		r := telemetry.NewReader(doc.Map())
		eid := telemetry.Read[string](r, "eid").Value()
		var ets sql.NullInt64
		if n := telemetry.Read[int64](r, "ets"); !n.IsNull() {
			ets = sql.NullInt64{Int64: n.Value(), Valid: true}
		}

		jsonData, err := doc.JSON()
		if err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to marshal document %s: %w", id, err)
		}
		if _, err := statement.ExecContext(ctx, id, indexName, indexType, eid, ets, string(jsonData)); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InsertDeadLetters stores annotated documents that could not be indexed.
func (d *Database) InsertDeadLetters(ctx context.Context, docs []*indexer.Document) error {
	if len(docs) == 0 {
		return nil
	}
	transaction, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.PrepareContext(ctx, `INSERT INTO dead_letters(mid, status, error, doc_json, created_at) VALUES(?,?,?,json(?),?)`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	now := d.clock().UTC().UnixMilli()
	for _, doc := range docs {
		r := telemetry.NewReader(doc.Map())
		var mid sql.NullString
		if s := telemetry.Read[string](r, "mid"); !s.IsNull() {
			mid = sql.NullString{String: s.Value(), Valid: true}
		}
		status := doc.Status()
		if status == "" {
			status = indexer.StatusSkipped
		}
		errorMessage := telemetry.Read[string](r, "metadata.es_indexer_error").Value()

		jsonData, err := doc.JSON()
		if err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to marshal dead letter: %w", err)
		}
		if _, err := statement.ExecContext(ctx, mid, status, errorMessage, string(jsonData), now); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountDocuments returns the number of documents stored in indexName.
func (d *Database) CountDocuments(ctx context.Context, indexName string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE index_name = ?", indexName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// CountDeadLetters returns the number of dead letters with the given status.
func (d *Database) CountDeadLetters(ctx context.Context, status string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM dead_letters WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return count, nil
}
