package store

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"FinBoard/internal/model"
	"FinBoard/internal/symbol"
)

// SQLiteStore persists watchlist, alerts and trigger history to SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so the API can read while a cycle writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watchlist (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     INTEGER NOT NULL DEFAULT 0,
			symbol      TEXT NOT NULL,
			symbol_norm TEXT NOT NULL,
			label       TEXT,
			created_ts  INTEGER,
			updated_ts  INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id           INTEGER NOT NULL DEFAULT 0,
			symbol            TEXT NOT NULL,
			symbol_norm       TEXT NOT NULL,
			name              TEXT,
			cond              TEXT,
			enabled           INTEGER DEFAULT 1,
			armed             INTEGER DEFAULT 1,
			last_triggered_ts INTEGER,
			created_ts        INTEGER,
			updated_ts        INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS trigger_events (
			id           TEXT PRIMARY KEY,
			alert_id     INTEGER NOT NULL,
			price        REAL,
			triggered_ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_ts ON trigger_events(triggered_ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// SeedDemo inserts the demo watchlist and alerts when the tables are empty.
func (s *SQLiteStore) SeedDemo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM watchlist").Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		demo := [][3]string{
			{"2330.TW", "2330.TW", "TSMC"},
			{"USD/TWD", "USDTWD=X", "USD/TWD"},
			{"BTC-USD", "BTC-USD", "Bitcoin"},
			{"AAPL", "AAPL", "Apple"},
		}
		for _, d := range demo {
			if _, err := s.db.Exec(
				`INSERT INTO watchlist(user_id,symbol,symbol_norm,label,created_ts,updated_ts) VALUES(0,?,?,?,?,?)`,
				d[0], d[1], d[2], now, now); err != nil {
				return err
			}
		}
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM alerts").Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		type seedAlert struct {
			symbol, norm, name, cond string
			enabled                  int
		}
		demo := []seedAlert{
			{"USD/TWD", "USDTWD=X", "USD breakout", "price >= 33.0", 1},
			{"2330.TW", "2330.TW", "TSMC entry", "price <= 800", 0},
		}
		for _, d := range demo {
			if _, err := s.db.Exec(
				`INSERT INTO alerts(user_id,symbol,symbol_norm,name,cond,enabled,armed,created_ts,updated_ts) VALUES(0,?,?,?,?,?,1,?,?)`,
				d.symbol, d.norm, d.name, d.cond, d.enabled, now, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLiteStore) Watchlist() ([]model.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id,user_id,symbol,symbol_norm,COALESCE(label,''),COALESCE(created_ts,0),COALESCE(updated_ts,0)
		 FROM watchlist WHERE user_id=0 ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WatchlistEntry
	for rows.Next() {
		var e model.WatchlistEntry
		var created, updated int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Symbol, &e.InstrumentID, &e.Label, &created, &updated); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) AddWatchlist(sym, label string) (model.WatchlistEntry, error) {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return model.WatchlistEntry{}, ErrSymbolRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	norm := symbol.Normalize(sym)
	res, err := s.db.Exec(
		`INSERT INTO watchlist(user_id,symbol,symbol_norm,label,created_ts,updated_ts) VALUES(0,?,?,?,?,?)`,
		sym, norm, label, now, now)
	if err != nil {
		return model.WatchlistEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.WatchlistEntry{}, err
	}
	return model.WatchlistEntry{
		ID:           id,
		Symbol:       sym,
		InstrumentID: norm,
		Label:        label,
		CreatedAt:    time.Unix(now, 0).UTC(),
		UpdatedAt:    time.Unix(now, 0).UTC(),
	}, nil
}

func (s *SQLiteStore) DeleteWatchlist(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM watchlist WHERE id=? AND user_id=0`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const alertColumns = `id,user_id,symbol,symbol_norm,COALESCE(name,''),COALESCE(cond,''),enabled,armed,COALESCE(last_triggered_ts,0),COALESCE(created_ts,0),COALESCE(updated_ts,0)`

func (s *SQLiteStore) Alerts() ([]model.Alert, error) {
	return s.queryAlerts(`SELECT ` + alertColumns + ` FROM alerts WHERE user_id=0 ORDER BY id DESC`)
}

func (s *SQLiteStore) EnabledAlerts() ([]model.Alert, error) {
	return s.queryAlerts(`SELECT ` + alertColumns + ` FROM alerts WHERE user_id=0 AND enabled=1 ORDER BY id`)
}

func (s *SQLiteStore) queryAlerts(query string, args ...any) ([]model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (model.Alert, error) {
	var a model.Alert
	var enabled, armed int
	var triggered, created, updated int64
	if err := row.Scan(&a.ID, &a.UserID, &a.Symbol, &a.InstrumentID, &a.Name, &a.Condition,
		&enabled, &armed, &triggered, &created, &updated); err != nil {
		return model.Alert{}, err
	}
	a.Enabled = enabled != 0
	a.Armed = armed != 0
	if triggered > 0 {
		a.LastTriggeredAt = time.Unix(triggered, 0).UTC()
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	a.UpdatedAt = time.Unix(updated, 0).UTC()
	return a, nil
}

func (s *SQLiteStore) CreateAlert(sym, name, cond string, enabled bool) (model.Alert, error) {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return model.Alert{}, ErrSymbolRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	norm := symbol.Normalize(sym)
	en := 0
	if enabled {
		en = 1
	}
	res, err := s.db.Exec(
		`INSERT INTO alerts(user_id,symbol,symbol_norm,name,cond,enabled,armed,created_ts,updated_ts) VALUES(0,?,?,?,?,?,1,?,?)`,
		sym, norm, name, cond, en, now, now)
	if err != nil {
		return model.Alert{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Alert{}, err
	}
	return s.getAlertLocked(id)
}

func (s *SQLiteStore) PatchAlert(id int64, patch AlertPatch) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fields []string
	var params []any
	if patch.Name != nil {
		fields = append(fields, "name=?")
		params = append(params, *patch.Name)
	}
	if patch.Condition != nil {
		fields = append(fields, "cond=?")
		params = append(params, *patch.Condition)
	}
	if patch.Enabled != nil {
		en := 0
		if *patch.Enabled {
			en = 1
			// Re-enabling re-arms a previously fired alert.
			fields = append(fields, "armed=1")
		}
		fields = append(fields, "enabled=?")
		params = append(params, en)
	}
	if len(fields) == 0 {
		return s.getAlertLocked(id)
	}
	fields = append(fields, "updated_ts=?")
	params = append(params, time.Now().Unix(), id)

	res, err := s.db.Exec(`UPDATE alerts SET `+strings.Join(fields, ", ")+` WHERE id=? AND user_id=0`, params...)
	if err != nil {
		return model.Alert{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Alert{}, ErrNotFound
	}
	return s.getAlertLocked(id)
}

func (s *SQLiteStore) getAlertLocked(id int64) (model.Alert, error) {
	row := s.db.QueryRow(`SELECT `+alertColumns+` FROM alerts WHERE id=?`, id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return model.Alert{}, ErrNotFound
	}
	return a, err
}

// MarkTriggered records a firing: last_triggered_ts is the durable "already
// fired" marker and armed=0 suppresses repeat events while the condition
// stays true.
func (s *SQLiteStore) MarkTriggered(id int64, _ float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE alerts SET last_triggered_ts=?, armed=0, updated_ts=? WHERE id=?`,
		at.Unix(), time.Now().Unix(), id)
	return err
}

func (s *SQLiteStore) Rearm(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE alerts SET armed=1, updated_ts=? WHERE id=?`, time.Now().Unix(), id)
	return err
}

func (s *SQLiteStore) RecordTrigger(ev model.TriggerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO trigger_events(id,alert_id,price,triggered_ts) VALUES(?,?,?,?)`,
		ev.ID, ev.AlertID, ev.PriceAtTrigger, ev.EvaluatedAt.Unix())
	return err
}

func (s *SQLiteStore) RecentTriggers(limit int) ([]model.TriggerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id,alert_id,price,triggered_ts FROM trigger_events ORDER BY triggered_ts DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.TriggerEvent
	for rows.Next() {
		var ev model.TriggerEvent
		var ts int64
		if err := rows.Scan(&ev.ID, &ev.AlertID, &ev.PriceAtTrigger, &ts); err != nil {
			return nil, err
		}
		ev.EvaluatedAt = time.Unix(ts, 0).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
