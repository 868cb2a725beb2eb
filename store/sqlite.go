// Package store persists positions, the trade ledger and the account in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/riskos/account"
)

// ErrStoreContention means a write could not get the database lock within
// the busy timeout. The operation had no effect and may be retried.
var ErrStoreContention = errors.New("store contention")

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreContention)
}

func mapErr(err error) error {
	if err == nil || errors.Is(err, ErrStoreContention) {
		return err
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", ErrStoreContention, err)
	}
	return err
}

type Options struct {
	// BusyTimeout bounds how long a write waits for the lock.
	BusyTimeout time.Duration
	// SeedEquity funds the account the first time the database is opened.
	SeedEquity float64
}

func DefaultOptions() Options {
	return Options{BusyTimeout: 5 * time.Second, SeedEquity: account.DefaultSeed}
}

// SQLite is the single-writer store. Reads go through their own pool so a
// View never queues behind a writer's lock.
type SQLite struct {
	db   *sqlx.DB
	ro   *sqlx.DB
	path string
}

// DSN builds the go-sqlite3 connection string for path. Writers take the
// lock at BEGIN so contention surfaces before any work is done.
func DSN(path string, busy time.Duration) string {
	return dsn(path, busy, "immediate")
}

// ReadDSN is DSN for the read pool: deferred transactions, which under WAL
// read a snapshot without taking the write lock.
func ReadDSN(path string, busy time.Duration) string {
	return dsn(path, busy, "deferred")
}

func dsn(path string, busy time.Duration, lock string) string {
	return fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_txlock=%s",
		path, busy.Milliseconds(), lock)
}

// Open opens or creates the database at path, applies the schema and any
// missing columns, and seeds the account.
func Open(ctx context.Context, path string, opts Options) (*SQLite, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}
	if opts.SeedEquity <= 0 {
		opts.SeedEquity = account.DefaultSeed
	}

	db, err := sqlx.Open("sqlite3", DSN(path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ro, err := sqlx.Open("sqlite3", ReadDSN(path, opts.BusyTimeout))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &SQLite{db: db, ro: ro, path: path}
	if err := s.init(ctx, opts); err != nil {
		s.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Msg("store opened")
	return s, nil
}

func (s *SQLite) init(ctx context.Context, opts Options) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", mapErr(err))
	}
	if err := s.migrate(ctx); err != nil {
		return err
	}
	return s.Update(ctx, func(tx *Tx) error {
		seed := account.Seed(opts.SeedEquity, time.Now().UTC())
		_, err := tx.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO account_config (id, total_equity, last_updated) VALUES (1, ?, ?)`,
			seed.Equity.String(), seed.LastUpdated.Format(time.RFC3339))
		return err
	})
}

// migrate rebuilds a ledger keyed by integers, adds any missing columns,
// then backfills them. Every step is safe to repeat.
func (s *SQLite) migrate(ctx context.Context) error {
	if err := s.rekeyLedger(ctx); err != nil {
		return err
	}

	for _, m := range migrations {
		cols, err := columns(ctx, s.db, m.table)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", m.table, mapErr(err))
		}
		if _, ok := cols[m.name]; ok {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.name, m.decl)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add %s.%s: %w", m.table, m.name, mapErr(err))
		}
		log.Info().Str("table", m.table).Str("column", m.name).Msg("schema migrated")
	}

	for _, stmt := range backfill {
		res, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("backfill: %w", mapErr(err))
		}
		if n, _ := res.RowsAffected(); n > 0 {
			log.Info().Int64("rows", n).Msg("legacy rows backfilled")
		}
	}
	return nil
}

// rekeyLedger copies a trade_history whose id column is an INTEGER into a
// table keyed by TEXT. Ledger ids are ULIDs; SQLite refuses to store them
// in an INTEGER PRIMARY KEY.
func (s *SQLite) rekeyLedger(ctx context.Context) error {
	cols, err := columns(ctx, s.db, "trade_history")
	if err != nil {
		return fmt.Errorf("inspect trade_history: %w", mapErr(err))
	}
	if !strings.EqualFold(cols["id"], "INTEGER") {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", mapErr(err))
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS trade_history_legacy`,
		`ALTER TABLE trade_history RENAME TO trade_history_legacy`,
		createTradeHistory,
	}
	dst := []string{"id", "ticker", "entry_date", "exit_date", "entry_price", "exit_price", "r_multiple"}
	src := []string{"CAST(id AS TEXT)", "COALESCE(ticker, '')", "entry_date", "COALESCE(exit_date, '')",
		"COALESCE(entry_price, 0)", "COALESCE(exit_price, 0)", "r_multiple"}
	for _, m := range migrations {
		if _, ok := cols[m.name]; m.table != "trade_history" || !ok {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE trade_history ADD COLUMN %s %s", m.name, m.decl))
		dst = append(dst, m.name)
		src = append(src, m.name)
	}
	stmts = append(stmts,
		fmt.Sprintf("INSERT INTO trade_history (%s) SELECT %s FROM trade_history_legacy",
			strings.Join(dst, ", "), strings.Join(src, ", ")),
		`DROP TABLE trade_history_legacy`,
	)

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rekey trade_history: %w", mapErr(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	log.Info().Str("table", "trade_history").Msg("ledger ids rekeyed as text")
	return nil
}

// columns maps each column of table to its declared type.
func columns(ctx context.Context, q sqlx.QueryerContext, table string) (map[string]string, error) {
	rows, err := q.QueryxContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var (
			cid     int
			col     string
			typ     string
			notnull int
			dflt    interface{}
			pk      int
		)
		if err := rows.Scan(&cid, &col, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[col] = typ
	}
	return cols, rows.Err()
}

// Update runs fn in a write transaction. fn's error rolls everything back.
func (s *SQLite) Update(ctx context.Context, fn func(*Tx) error) error {
	return s.run(ctx, fn, true)
}

// View runs fn in a read-only transaction on the read pool. It sees the
// last committed state and is always rolled back.
func (s *SQLite) View(ctx context.Context, fn func(*Tx) error) error {
	return s.run(ctx, fn, false)
}

func (s *SQLite) run(ctx context.Context, fn func(*Tx) error, commit bool) error {
	db, opts := s.db, (*sql.TxOptions)(nil)
	if !commit {
		db, opts = s.ro, &sql.TxOptions{ReadOnly: true}
	}
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", mapErr(err))
	}

	if err := fn(&Tx{tx: tx, ctx: ctx}); err != nil {
		_ = tx.Rollback()
		return mapErr(err)
	}
	if !commit {
		return tx.Rollback()
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapErr(err))
	}
	return nil
}

// Path is the database file the store was opened on.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error {
	return errors.Join(s.db.Close(), s.ro.Close())
}
