// Package sqlite archives OHLCV bars to a local database. The archiver
// writes daily bars after each session; the archive data source reads them
// back when the process runs offline.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"stockwatch/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

// Writer is a single-writer SQLite handle with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			ticker   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   INTEGER NOT NULL,
			PRIMARY KEY (ticker, interval, ts)
		);
	`)
	return err
}

// UpsertSeries writes a series for one ticker and interval in a single
// transaction. Re-archiving a window it has seen before replaces the rows,
// so a rerun after a partial failure is safe.
func (w *Writer) UpsertSeries(ticker string, interval model.Interval, series model.Series) error {
	if len(series) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (ticker, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range series {
		if _, err := stmt.Exec(ticker, string(interval), b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[sqlite] committed %d bars for %s/%s in %v", len(series), ticker, interval, time.Since(start))
	return nil
}

// LastTimestamp returns the newest stored bar timestamp for a ticker and
// interval, or 0 if none exist.
func (w *Writer) LastTimestamp(ticker string, interval model.Interval) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM bars WHERE ticker = ? AND interval = ?`,
		ticker, string(interval),
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
