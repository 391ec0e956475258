// Package accountdb stores master accounts and an index of computed stats runs
// in a local SQLite file.
package accountdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"fgoplanner.app/internal/account"
	"fgoplanner.app/internal/gamedata"
	"fgoplanner.app/internal/itemstats"
)

var ErrAccountNotFound = errors.New("account not found")

// Fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db *sql.DB

	ch   chan Run
	wg   sync.WaitGroup
	once sync.Once

	// sendMu guards ch against a send racing Close.
	sendMu  sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// Run is one computed stats table as indexed in stats_runs.
type Run struct {
	RunID      string
	AccountID  string
	ComputedAt time.Time
	Digest     string
	ElapsedMS  float64
	Warnings   int
	Filter     itemstats.Filter
	Rows       []itemstats.Row
}

type AccountSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Servants  int       `json:"servants"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropRunTotal  uint64
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db: db,
		ch: make(chan Run, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			servants INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stats_runs (
			run_id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			computed_at TEXT NOT NULL,
			digest TEXT NOT NULL,
			elapsed_ms REAL NOT NULL,
			warnings INTEGER NOT NULL,
			filter_json TEXT NOT NULL,
			rows_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stats_runs_account ON stats_runs(account_id, computed_at);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued runs before closing the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		s.sendMu.Lock()
		s.closed = true
		close(s.ch)
		s.sendMu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropRunTotal:  s.dropped.Load(),
	}
}

func (s *SQLiteStore) PutAccount(ctx context.Context, a *account.Account) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("account id required")
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(timeFormat)
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO accounts(id,name,servants,raw_json,updated_at) VALUES(?,?,?,?,?)`,
		a.ID, a.Name, len(a.Servants), string(raw), now)
	return err
}

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT raw_json FROM accounts WHERE id=?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	a, err := account.Decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,servants,updated_at FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountSummary
	for rows.Next() {
		var (
			a       AccountSummary
			updated string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Servants, &updated); err != nil {
			return nil, err
		}
		a.UpdatedAt, _ = time.Parse(timeFormat, updated)
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordRun queues r for the writer goroutine. Runs are dropped when the
// queue is full; the JSONL archive remains the complete record.
func (s *SQLiteStore) RecordRun(r Run) {
	if s == nil {
		return
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// ListRuns returns the newest runs of an account first, without rows.
func (s *SQLiteStore) ListRuns(ctx context.Context, accountID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id,account_id,computed_at,digest,elapsed_ms,warnings,filter_json
		 FROM stats_runs WHERE account_id=? ORDER BY computed_at DESC LIMIT ?`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r          Run
			computedAt string
			filterJSON string
		)
		if err := rows.Scan(&r.RunID, &r.AccountID, &computedAt, &r.Digest, &r.ElapsedMS, &r.Warnings, &filterJSON); err != nil {
			return nil, err
		}
		r.ComputedAt, _ = time.Parse(timeFormat, computedAt)
		_ = json.Unmarshal([]byte(filterJSON), &r.Filter)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertCatalogs records the digests and canonical JSON of the loaded game
// data, so stored runs can be traced back to the catalogs that produced them.
func (s *SQLiteStore) UpsertCatalogs(cats *gamedata.Catalogs) error {
	if s == nil || cats == nil {
		return nil
	}

	now := time.Now().UTC().Format(timeFormat)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Items.ByID); len(b) > 0 {
		rows = append(rows, kv{name: "items", digest: cats.Items.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Servants.ByID); len(b) > 0 {
		rows = append(rows, kv{name: "servants", digest: cats.Servants.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Soundtracks.List); len(b) > 0 {
		rows = append(rows, kv{name: "soundtracks", digest: cats.Soundtracks.Digest, json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigests returns the stored digest per catalog name.
func (s *SQLiteStore) CatalogDigests(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name,digest FROM catalogs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, digest string
		if err := rows.Scan(&name, &digest); err != nil {
			return nil, err
		}
		out[name] = digest
	}
	return out, rows.Err()
}

// CatalogDrift lists the catalogs whose stored digest differs from cats.
// Catalogs never recorded before are not reported.
func (s *SQLiteStore) CatalogDrift(ctx context.Context, cats *gamedata.Catalogs) ([]string, error) {
	if s == nil || cats == nil {
		return nil, nil
	}
	stored, err := s.CatalogDigests(ctx)
	if err != nil {
		return nil, err
	}
	var drift []string
	for _, c := range []struct{ name, digest string }{
		{"items", cats.Items.Digest},
		{"servants", cats.Servants.Digest},
		{"soundtracks", cats.Soundtracks.Digest},
	} {
		old, ok := stored[c.name]
		if ok && c.digest != "" && old != c.digest {
			drift = append(drift, c.name)
		}
	}
	return drift, nil
}

func (s *SQLiteStore) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO stats_runs(run_id,account_id,computed_at,digest,elapsed_ms,warnings,filter_json,rows_json) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 256
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		begin()
		if tx == nil || insertRun == nil {
			s.dropped.Add(1)
			continue
		}
		filterJSON, _ := json.Marshal(r.Filter)
		rowsJSON, _ := json.Marshal(r.Rows)
		if _, err := tx.Stmt(insertRun).Exec(
			r.RunID,
			r.AccountID,
			r.ComputedAt.UTC().Format(timeFormat),
			r.Digest,
			r.ElapsedMS,
			r.Warnings,
			string(filterJSON),
			string(rowsJSON),
		); err != nil {
			rollback()
			s.dropped.Add(1)
			continue
		}
		opCount++
		// Readers share the single connection, so do not hold the tx open
		// once the queue is drained.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
