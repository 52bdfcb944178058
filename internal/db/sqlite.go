package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"trend-trading-bot/internal/types"

	_ "modernc.org/sqlite"
)

// Store persists signals, paper trades and the portfolio watchlist in a
// SQLite database. Writes are serialized with a mutex; the scanner's
// worker pool funnels all persistence through here.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database and runs migrations.
func Open(path string) (*Store, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboard-style readers don't block the bot's writes.
	if _, err := d.Exec("PRAGMA journal_mode=WAL"); err != nil {
		d.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: d}
	if err := s.migrate(); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol        TEXT NOT NULL,
			price         REAL NOT NULL,
			signal_date   TEXT NOT NULL,
			trend_label   TEXT,
			strength_tier TEXT NOT NULL DEFAULT 'Standard',
			detected_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_date ON signals(symbol, signal_date)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_detected ON signals(detected_at)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT NOT NULL,
			entry_price REAL NOT NULL,
			quantity    INTEGER NOT NULL,
			stop_loss   REAL NOT NULL,
			target      REAL NOT NULL,
			status      TEXT NOT NULL DEFAULT 'OPEN',
			pnl         REAL,
			entry_time  INTEGER NOT NULL,
			exit_time   INTEGER,
			exit_price  REAL,
			exit_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_entry ON trades(entry_time)`,

		`CREATE TABLE IF NOT EXISTS portfolio (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			price      REAL,
			status     TEXT NOT NULL DEFAULT 'WATCHLIST',
			added_date INTEGER NOT NULL,
			notes      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_portfolio_symbol ON portfolio(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// AddSignal inserts a signal unless one already exists for the same
// symbol and date. Reports whether a row was inserted.
func (s *Store) AddSignal(ctx context.Context, sig types.Signal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM signals WHERE symbol = ? AND signal_date = ?`,
		sig.Symbol, sig.SignalDate).Scan(&id)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("check existing signal: %w", err)
	}

	detected := sig.DetectedAt
	if detected.IsZero() {
		detected = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO signals (symbol, price, signal_date, trend_label, strength_tier, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sig.Symbol, sig.Price, sig.SignalDate, sig.TrendLabel, string(sig.Strength), detected.Unix())
	if err != nil {
		return false, fmt.Errorf("insert signal: %w", err)
	}
	return true, nil
}

// DeleteSignals removes every standing signal for the symbol.
func (s *Store) DeleteSignals(ctx context.Context, symbol string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM signals WHERE symbol = ?`, symbol)
	if err != nil {
		return 0, fmt.Errorf("delete signals: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecentSignals returns the newest signals first.
func (s *Store) RecentSignals(ctx context.Context, limit int) ([]types.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, price, signal_date, trend_label, strength_tier, detected_at
		 FROM signals ORDER BY detected_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []types.Signal
	for rows.Next() {
		var sig types.Signal
		var tier string
		var detected int64
		if err := rows.Scan(&sig.ID, &sig.Symbol, &sig.Price, &sig.SignalDate, &sig.TrendLabel, &tier, &detected); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Strength = types.StrengthTier(tier)
		sig.DetectedAt = time.Unix(detected, 0)
		out = append(out, sig)
	}
	return out, rows.Err()
}

// OpenTrade inserts a new open paper trade and returns its id.
func (s *Store) OpenTrade(ctx context.Context, t types.PaperTrade) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := t.EntryTime
	if entry.IsZero() {
		entry = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (symbol, entry_price, quantity, stop_loss, target, status, entry_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol, t.EntryPrice, t.Quantity, t.StopLoss, t.Target, string(types.TradeOpen), entry.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert trade: %w", err)
	}
	return res.LastInsertId()
}

// OpenTrades returns every trade still marked OPEN.
func (s *Store) OpenTrades(ctx context.Context) ([]types.PaperTrade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, entry_price, quantity, stop_loss, target, status, entry_time
		 FROM trades WHERE status = ? ORDER BY entry_time ASC`, string(types.TradeOpen))
	if err != nil {
		return nil, fmt.Errorf("query open trades: %w", err)
	}
	defer rows.Close()

	var out []types.PaperTrade
	for rows.Next() {
		var t types.PaperTrade
		var status string
		var entry int64
		if err := rows.Scan(&t.ID, &t.Symbol, &t.EntryPrice, &t.Quantity, &t.StopLoss, &t.Target, &status, &entry); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Status = types.TradeStatus(status)
		t.EntryTime = time.Unix(entry, 0)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CloseTrade marks a trade CLOSED with its exit fields. Closed trades
// are terminal; the update only touches rows still OPEN.
func (s *Store) CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64, reason string, exitTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exitTime.IsZero() {
		exitTime = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE trades SET status = ?, exit_price = ?, pnl = ?, exit_reason = ?, exit_time = ?
		 WHERE id = ? AND status = ?`,
		string(types.TradeClosed), exitPrice, pnl, reason, exitTime.Unix(), id, string(types.TradeOpen))
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	return nil
}

// AddToPortfolio records a symbol unless it already has an active row.
// Reports whether a row was inserted.
func (s *Store) AddToPortfolio(ctx context.Context, symbol string, price float64, status, notes string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM portfolio WHERE symbol = ? AND status != 'CLOSED'`, symbol).Scan(&id)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("check portfolio: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO portfolio (symbol, price, status, added_date, notes) VALUES (?, ?, ?, ?, ?)`,
		symbol, price, status, time.Now().Unix(), notes)
	if err != nil {
		return false, fmt.Errorf("insert portfolio: %w", err)
	}
	return true, nil
}

// ClosePosition marks the symbol's active portfolio rows CLOSED.
func (s *Store) ClosePosition(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE portfolio SET status = 'CLOSED' WHERE symbol = ? AND status != 'CLOSED'`, symbol)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	return nil
}

// ActivePortfolio lists every row not yet closed, oldest first.
func (s *Store) ActivePortfolio(ctx context.Context) ([]types.PortfolioItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, price, status, added_date, notes
		 FROM portfolio WHERE status != 'CLOSED' ORDER BY added_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query portfolio: %w", err)
	}
	defer rows.Close()

	var out []types.PortfolioItem
	for rows.Next() {
		var it types.PortfolioItem
		var added int64
		if err := rows.Scan(&it.ID, &it.Symbol, &it.Price, &it.Status, &added, &it.Notes); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		it.AddedDate = time.Unix(added, 0)
		out = append(out, it)
	}
	return out, rows.Err()
}

// RemoveFromPortfolio deletes all rows for the symbol.
func (s *Store) RemoveFromPortfolio(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM portfolio WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("remove from portfolio: %w", err)
	}
	return nil
}

// TradesOpenedOn counts trades whose entry falls on the given calendar
// day in the day's own location.
func (s *Store) TradesOpenedOn(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE entry_time >= ? AND entry_time < ?`,
		start.Unix(), end.Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}
