package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"stockwatch/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the bar archive.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadSeries returns archived bars for a ticker and interval with ts after
// afterTS, ordered by timestamp ascending.
func (r *Reader) ReadSeries(ticker string, interval model.Interval, afterTS int64) (model.Series, error) {
	rows, err := r.db.Query(`
		SELECT ts, open, high, low, close, volume
		FROM bars
		WHERE ticker = ? AND interval = ? AND ts > ?
		ORDER BY ts ASC
	`, ticker, string(interval), afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var series model.Series
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bar: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		series = append(series, b)
	}
	return series, rows.Err()
}

// Tickers returns the distinct tickers present in the archive.
func (r *Reader) Tickers() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT ticker FROM bars ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite scan ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
