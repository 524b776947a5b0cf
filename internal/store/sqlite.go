package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"candlebt/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ BarCache = (*SQLiteCache)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS fetches (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT    NOT NULL,
	market     TEXT    NOT NULL,
	interval   TEXT    NOT NULL,
	start_ms   INTEGER NOT NULL,
	end_ms     INTEGER NOT NULL,
	fetched_at INTEGER NOT NULL,
	UNIQUE (symbol, market, interval, start_ms, end_ms)
);
CREATE TABLE IF NOT EXISTS fetch_bars (
	fetch_id INTEGER NOT NULL REFERENCES fetches(id) ON DELETE CASCADE,
	ts       INTEGER NOT NULL,
	symbol   TEXT    NOT NULL,
	open     REAL    NOT NULL,
	high     REAL    NOT NULL,
	low      REAL    NOT NULL,
	close    REAL    NOT NULL,
	volume   INTEGER NOT NULL,
	PRIMARY KEY (fetch_id, ts)
);
`

// SQLiteCache implements BarCache backed by a SQLite database. Each remote
// fetch is stored as one row in fetches plus its bars in fetch_bars.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache opens (or creates) a SQLite database at dbPath and creates
// the cache tables.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache tables: %w", err)
	}
	return &SQLiteCache{db: db, now: time.Now}, nil
}

// SetTTL makes entries older than ttl count as misses. Zero keeps entries
// forever.
func (c *SQLiteCache) SetTTL(ttl time.Duration) {
	c.ttl = ttl
}

// Close closes the underlying database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// GetBars returns the bars stored for key.
func (c *SQLiteCache) GetBars(ctx context.Context, key CacheKey) ([]domain.Bar, bool, error) {
	var id, fetchedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT id, fetched_at FROM fetches
		 WHERE symbol = ? AND market = ? AND interval = ? AND start_ms = ? AND end_ms = ?`,
		key.Symbol, string(key.Market), string(key.Interval), key.Start.UnixMilli(), key.End.UnixMilli(),
	).Scan(&id, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up %s: %w", key.Symbol, err)
	}
	if c.ttl > 0 && c.now().Sub(time.UnixMilli(fetchedAt)) > c.ttl {
		return nil, false, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT ts, symbol, open, high, low, close, volume FROM fetch_bars
		 WHERE fetch_id = ? ORDER BY ts`, id)
	if err != nil {
		return nil, false, fmt.Errorf("reading cached bars for %s: %w", key.Symbol, err)
	}
	defer rows.Close()

	bars := []domain.Bar{}
	for rows.Next() {
		var b domain.Bar
		var ts int64
		if err := rows.Scan(&ts, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, false, fmt.Errorf("scanning cached bar: %w", err)
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return bars, true, nil
}

// PutBars replaces the entry for key with bars.
func (c *SQLiteCache) PutBars(ctx context.Context, key CacheKey, bars []domain.Bar) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	start, end := key.Start.UnixMilli(), key.End.UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fetches
		 WHERE symbol = ? AND market = ? AND interval = ? AND start_ms = ? AND end_ms = ?`,
		key.Symbol, string(key.Market), string(key.Interval), start, end,
	); err != nil {
		return fmt.Errorf("replacing cache entry for %s: %w", key.Symbol, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO fetches (symbol, market, interval, start_ms, end_ms, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key.Symbol, string(key.Market), string(key.Interval), start, end, c.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting cache entry for %s: %w", key.Symbol, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO fetch_bars (fetch_id, ts, symbol, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, id, b.Timestamp.UnixMilli(), b.Symbol,
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("caching bar %s@%s: %w", b.Symbol, b.Timestamp.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// Clear removes every cached fetch.
func (c *SQLiteCache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM fetches`)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}
