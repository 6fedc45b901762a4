// Package history stores daily OHLCV bars in SQLite and serves the windowed
// reads the backtest engine needs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/backtester/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- One row per ticker, tracking the recorded coverage.
CREATE TABLE IF NOT EXISTS tickers (
    ticker     TEXT PRIMARY KEY,
    valid      INTEGER NOT NULL DEFAULT 1,
    first_date TEXT    NOT NULL,
    last_date  TEXT    NOT NULL
);

-- Daily bars, one row per ticker per date.
CREATE TABLE IF NOT EXISTS bars (
    ticker    TEXT    NOT NULL,
    date      TEXT    NOT NULL,
    open      REAL    NOT NULL,
    high      REAL    NOT NULL,
    low       REAL    NOT NULL,
    close     REAL    NOT NULL,
    adj_close REAL    NOT NULL,
    volume    INTEGER NOT NULL,
    PRIMARY KEY (ticker, date)
);

CREATE INDEX IF NOT EXISTS idx_bars_ticker_date ON bars(ticker, date);
`

// dateLayout keeps bar dates comparable both lexically (SQL BETWEEN) and as
// parsed values.
const dateLayout = "2006-01-02"

// maxBarGapDays is the longest tolerated gap between consecutive bars before
// a series is marked invalid.
const maxBarGapDays = 5

// Store implements ports.History and ports.TickerSource over SQLite
// (pure Go, no CGo).
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path and applies the schema.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history.NewStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history.NewStore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetWindow returns the bars for ticker dated within
// [asOf - (lookbackWeeks*7 + lookbackDays) days, asOf] inclusive, ascending.
// A window starting before the ticker's first recorded bar fails with
// *domain.InsufficientHistoryError — an expected, skippable condition.
// Repeated calls against unchanged data return identical, independent copies.
func (s *Store) GetWindow(ctx context.Context, ticker string, asOf time.Time, lookbackWeeks, lookbackDays int) (domain.PriceSeries, error) {
	windowStart := asOf.AddDate(0, 0, -(lookbackWeeks*7 + lookbackDays))

	var firstDate string
	err := s.db.QueryRowContext(ctx,
		`SELECT first_date FROM tickers WHERE ticker = ?`, ticker,
	).Scan(&firstDate)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PriceSeries{}, fmt.Errorf("history.GetWindow: no data recorded for ticker %q", ticker)
	}
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("history.GetWindow: lookup %s: %w", ticker, err)
	}

	earliest, err := time.Parse(dateLayout, firstDate)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("history.GetWindow: parse first_date for %s: %w", ticker, err)
	}
	if windowStart.Before(earliest) {
		return domain.PriceSeries{}, &domain.InsufficientHistoryError{
			Ticker:            ticker,
			RequestedStart:    windowStart,
			EarliestAvailable: earliest,
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, adj_close, volume
		FROM bars
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, ticker, windowStart.Format(dateLayout), asOf.Format(dateLayout))
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("history.GetWindow: query %s: %w", ticker, err)
	}
	defer rows.Close()

	series := domain.PriceSeries{Ticker: ticker}
	for rows.Next() {
		var (
			bar     domain.Bar
			dateStr string
		)
		if err := rows.Scan(&dateStr, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose, &bar.Volume); err != nil {
			return domain.PriceSeries{}, fmt.Errorf("history.GetWindow: scan %s: %w", ticker, err)
		}
		if bar.Date, err = time.Parse(dateLayout, dateStr); err != nil {
			return domain.PriceSeries{}, fmt.Errorf("history.GetWindow: parse date for %s: %w", ticker, err)
		}
		series.Bars = append(series.Bars, bar)
	}
	if err := rows.Err(); err != nil {
		return domain.PriceSeries{}, fmt.Errorf("history.GetWindow: rows %s: %w", ticker, err)
	}
	return series, nil
}

// SaveBars upserts a ticker's bars and refreshes its coverage row. The
// series is gap-validated first; an invalid series is still stored but
// flagged, and Tickers excludes it from the universe.
func (s *Store) SaveBars(ctx context.Context, series domain.PriceSeries) error {
	if series.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history.SaveBars: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (ticker, date, open, high, low, close, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET
			open      = excluded.open,
			high      = excluded.high,
			low       = excluded.low,
			close     = excluded.close,
			adj_close = excluded.adj_close,
			volume    = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("history.SaveBars: prepare: %w", err)
	}
	defer stmt.Close()

	for _, bar := range series.Bars {
		if _, err := stmt.ExecContext(ctx,
			series.Ticker, bar.Date.Format(dateLayout),
			bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume,
		); err != nil {
			return fmt.Errorf("history.SaveBars: upsert %s %s: %w",
				series.Ticker, bar.Date.Format(dateLayout), err)
		}
	}

	valid := 0
	if ValidateSeries(series) {
		valid = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tickers (ticker, valid, first_date, last_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			valid      = excluded.valid,
			first_date = MIN(first_date, excluded.first_date),
			last_date  = MAX(last_date, excluded.last_date)
	`, series.Ticker, valid,
		series.Bars[0].Date.Format(dateLayout),
		series.Bars[series.Len()-1].Date.Format(dateLayout),
	); err != nil {
		return fmt.Errorf("history.SaveBars: upsert ticker %s: %w", series.Ticker, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history.SaveBars: commit: %w", err)
	}
	return nil
}

// Tickers returns every valid recorded ticker, sorted. This is the ticker
// universe for a run.
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker FROM tickers WHERE valid = 1 ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("history.Tickers: query: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("history.Tickers: scan: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// ValidateSeries reports whether a series has no suspicious holes: the
// longest gap between consecutive bars must not exceed maxBarGapDays. The
// week the 9/11 attacks closed the NYSE is exempt.
func ValidateSeries(series domain.PriceSeries) bool {
	for i := 1; i < series.Len(); i++ {
		prev, cur := series.Bars[i-1].Date, series.Bars[i].Date
		gap := int(cur.Sub(prev).Hours() / 24)
		if gap <= maxBarGapDays {
			continue
		}
		if prev.Format(dateLayout) == "2001-09-10" && cur.Format(dateLayout) == "2001-09-17" {
			continue
		}
		return false
	}
	return true
}
