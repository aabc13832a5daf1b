package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"trading-signals/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store keeps bar series in a single SQLite table keyed by (ticker, ts).
// It implements both model.BarSource and model.BarWriter.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (or creates) the database with WAL mode and the bars schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; readers share the same connection under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", dbPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			ticker TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			PRIMARY KEY (ticker, ts)
		);
	`)
	return err
}

// WriteBars upserts bars for ticker in one transaction. A bar with the same
// timestamp as a stored one replaces it.
func (s *Store) WriteBars(ctx context.Context, ticker string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (ticker, ts, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, ticker, b.Time.Unix(), b.Open, b.High, b.Low, b.Close); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert %s: %w", ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[sqlite] committed %d bars for %s in %v", len(bars), ticker, time.Since(start))
	return nil
}

// LastTime returns the timestamp of the newest stored bar for ticker, or the
// zero time if there is none.
func (s *Store) LastTime(ctx context.Context, ticker string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(ts) FROM bars WHERE ticker = ?`, ticker).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
