// Package recording provides per-access sinks for the simulation driver.
package recording

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/timing/core"
)

// AccessTable is the name of the table holding access rows.
const AccessTable = "accesses"

// AccessRow is one row of the access table. Column names follow the field
// names.
type AccessRow struct {
	RunID          string
	Seq            int64
	Kind           string
	Address        string
	SetIndex       int64
	Tag            string
	Hit            bool
	DirtyWriteback bool
	Instructions   int64
}

// SQLiteSink batches access rows into an SQLite database.
type SQLiteSink struct {
	db *sql.DB

	path      string
	runID     string
	batchSize int
	pending   []AccessRow
	closed    bool
}

// SQLiteOption is a functional option for configuring the SQLiteSink.
type SQLiteOption func(*SQLiteSink)

// WithBatchSize sets how many rows are buffered before a flush.
func WithBatchSize(n int) SQLiteOption {
	return func(s *SQLiteSink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewSQLiteSink creates a new database at path. An empty path picks a unique
// file name in the working directory. The database must not exist yet.
// Pending rows are flushed on Close and on atexit.Exit.
func NewSQLiteSink(path string, opts ...SQLiteOption) (*SQLiteSink, error) {
	runID := xid.New().String()
	if path == "" {
		path = "cachesim_recording_" + runID + ".sqlite3"
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording database: %w", err)
	}

	s := &SQLiteSink{
		db:        db,
		path:      path,
		runID:     runID,
		batchSize: 100000,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.createTable(); err != nil {
		_ = db.Close()
		return nil, err
	}

	atexit.Register(func() { _ = s.Flush() })

	return s, nil
}

// Path returns the database file name.
func (s *SQLiteSink) Path() string {
	return s.path
}

// RunID returns the identifier stored with every row of this sink.
func (s *SQLiteSink) RunID() string {
	return s.runID
}

func (s *SQLiteSink) createTable() error {
	fields := strings.Join(structs.Names(AccessRow{}), ", \n\t")
	createTableSQL := `CREATE TABLE ` + AccessTable + ` (` + "\n\t" + fields + "\n" + `);`

	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", AccessTable, err)
	}

	return nil
}

// Record buffers one access and flushes when the batch is full.
func (s *SQLiteSink) Record(e core.AccessEvent) error {
	if s.closed {
		return fmt.Errorf("recording %s is closed", s.path)
	}

	s.pending = append(s.pending, AccessRow{
		RunID:          s.runID,
		Seq:            int64(e.Seq),
		Kind:           e.Kind(),
		Address:        fmt.Sprintf("0x%x", e.Address),
		SetIndex:       int64(e.SetIndex),
		Tag:            fmt.Sprintf("0x%x", e.Tag),
		Hit:            e.Hit,
		DirtyWriteback: e.DirtyWriteback,
		Instructions:   int64(e.Instructions),
	})

	if len(s.pending) >= s.batchSize {
		return s.Flush()
	}

	return nil
}

// Flush writes all buffered rows in one transaction.
func (s *SQLiteSink) Flush() error {
	if s.closed || len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(s.insertSQL())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range s.pending {
		if _, err := stmt.Exec(structs.Values(row)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert access %d: %w", row.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accesses: %w", err)
	}

	s.pending = s.pending[:0]

	return nil
}

func (s *SQLiteSink) insertSQL() string {
	n := structs.Names(AccessRow{})
	for i := range n {
		n[i] = "?"
	}

	return "INSERT INTO " + AccessTable + " VALUES (" + strings.Join(n, ", ") + ")"
}

// Close flushes pending rows and closes the database.
func (s *SQLiteSink) Close() error {
	if s.closed {
		return nil
	}

	flushErr := s.Flush()
	s.closed = true

	if err := s.db.Close(); err != nil && flushErr == nil {
		return fmt.Errorf("failed to close recording database: %w", err)
	}

	return flushErr
}
