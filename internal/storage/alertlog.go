package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgnsrekt/coindash/internal/notify"
	_ "github.com/glebarez/go-sqlite"
)

// Fire is one stored alert notification.
type Fire struct {
	ID        int64     `json:"id"`
	At        time.Time `json:"at"`
	CoinID    string    `json:"coin_id"`
	Threshold string    `json:"threshold"`
	Price     string    `json:"price"`
	Message   string    `json:"message"`
}

// AlertLog stores raised alert notifications in SQLite.
type AlertLog struct {
	db *sql.DB
}

// OpenAlertLog opens or creates the alert database at path with WAL enabled.
func OpenAlertLog(path string) (*AlertLog, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create alert db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_fires (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			coin TEXT NOT NULL,
			threshold TEXT NOT NULL,
			price TEXT NOT NULL,
			message TEXT NOT NULL
		);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create alert_fires table: %w", err)
	}

	return &AlertLog{db: db}, nil
}

// Notify stores n.
func (l *AlertLog) Notify(ctx context.Context, n notify.Notification) error {
	at := n.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO alert_fires (at, coin, threshold, price, message) VALUES (?, ?, ?, ?, ?)",
		at.UnixMilli(), n.CoinID, n.Threshold, n.Price, n.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert fire: %w", err)
	}
	return nil
}

// Recent returns up to limit fires, newest first.
func (l *AlertLog) Recent(ctx context.Context, limit int) ([]Fire, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		"SELECT id, at, coin, threshold, price, message FROM alert_fires ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert fires: %w", err)
	}
	defer rows.Close()

	fires := []Fire{}
	for rows.Next() {
		var f Fire
		var at int64
		if err := rows.Scan(&f.ID, &at, &f.CoinID, &f.Threshold, &f.Price, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan alert fire: %w", err)
		}
		f.At = time.UnixMilli(at).UTC()
		fires = append(fires, f)
	}
	return fires, rows.Err()
}

func (l *AlertLog) Close() error {
	return l.db.Close()
}
