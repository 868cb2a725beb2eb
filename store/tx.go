package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/riskos/account"
	"github.com/rustyeddy/riskos/journal"
	"github.com/rustyeddy/riskos/portfolio"
)

// Tx is one transaction's view of the store.
type Tx struct {
	tx  *sqlx.Tx
	ctx context.Context
}

const positionColumns = `
	ticker,
	entry_price,
	stop_loss,
	COALESCE(initial_stop_loss, stop_loss) AS initial_stop_loss,
	quantity,
	COALESCE(sector, '') AS sector,
	COALESCE(entry_date, '') AS entry_date,
	breakdown_low`

func (t *Tx) GetPosition(symbol string) (portfolio.Position, error) {
	var p portfolio.Position
	err := t.tx.GetContext(t.ctx, &p,
		`SELECT `+positionColumns+` FROM portfolio WHERE ticker = ?`,
		portfolio.NormalizeSymbol(symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: %s", portfolio.ErrPositionNotFound, symbol)
	}
	return p, err
}

// FindPosition is GetPosition returning nil instead of an error when the
// symbol is not held.
func (t *Tx) FindPosition(symbol string) (*portfolio.Position, error) {
	p, err := t.GetPosition(symbol)
	if errors.Is(err, portfolio.ErrPositionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *Tx) ListPositions() ([]portfolio.Position, error) {
	var out []portfolio.Position
	err := t.tx.SelectContext(t.ctx, &out, `SELECT `+positionColumns+` FROM portfolio ORDER BY ticker`)
	return out, err
}

// PutPosition inserts p or replaces the row for its symbol.
func (t *Tx) PutPosition(p portfolio.Position) error {
	if p.Quantity <= 0 {
		return fmt.Errorf("position %s: quantity must be positive, got %d", p.Symbol, p.Quantity)
	}
	_, err := t.tx.NamedExecContext(t.ctx, `
		INSERT INTO portfolio
		(ticker, entry_price, stop_loss, initial_stop_loss, quantity, sector, entry_date, breakdown_low)
		VALUES (:ticker, :entry_price, :stop_loss, :initial_stop_loss, :quantity, :sector, :entry_date, :breakdown_low)
		ON CONFLICT(ticker) DO UPDATE SET
			entry_price = excluded.entry_price,
			stop_loss = excluded.stop_loss,
			initial_stop_loss = excluded.initial_stop_loss,
			quantity = excluded.quantity,
			sector = excluded.sector,
			entry_date = excluded.entry_date,
			breakdown_low = excluded.breakdown_low`, p)
	return err
}

func (t *Tx) DeletePosition(symbol string) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM portfolio WHERE ticker = ?`, portfolio.NormalizeSymbol(symbol))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", portfolio.ErrPositionNotFound, symbol)
	}
	return nil
}

const rowColumns = `
	CAST(id AS TEXT) AS id,
	COALESCE(trade_id, '') AS trade_id,
	ticker,
	COALESCE(entry_date, '') AS entry_date,
	exit_date,
	entry_price,
	exit_price,
	COALESCE(exit_qty, 1) AS exit_qty,
	COALESCE(r_multiple, 0) AS r_multiple,
	partial,
	r_outcome`

const insertRow = `
	INSERT INTO trade_history
	(id, trade_id, ticker, entry_date, exit_date, entry_price, exit_price, exit_qty, r_multiple, partial, r_outcome)
	VALUES (:id, :trade_id, :ticker, :entry_date, :exit_date, :entry_price, :exit_price, :exit_qty, :r_multiple, :partial, :r_outcome)`

func (t *Tx) AppendRow(r journal.Row) error {
	if r.ID == "" {
		return errors.New("ledger row needs an id")
	}
	if r.Outcome == "" {
		r.Outcome = journal.OutcomeOK
	}
	_, err := t.tx.NamedExecContext(t.ctx, insertRow, r)
	return err
}

// ListRows returns the ledger oldest exit first.
func (t *Tx) ListRows() ([]journal.Row, error) {
	var out []journal.Row
	err := t.tx.SelectContext(t.ctx, &out, `SELECT `+rowColumns+` FROM trade_history ORDER BY exit_date, id`)
	return out, err
}

func (t *Tx) GetRow(id string) (journal.Row, error) {
	var r journal.Row
	err := t.tx.GetContext(t.ctx, &r, `SELECT `+rowColumns+` FROM trade_history WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", journal.ErrRowNotFound, id)
	}
	return r, err
}

// UpdateRow rewrites every field of the row with r.ID.
func (t *Tx) UpdateRow(r journal.Row) error {
	res, err := t.tx.NamedExecContext(t.ctx, `
		UPDATE trade_history SET
			trade_id = :trade_id,
			ticker = :ticker,
			entry_date = :entry_date,
			exit_date = :exit_date,
			entry_price = :entry_price,
			exit_price = :exit_price,
			exit_qty = :exit_qty,
			r_multiple = :r_multiple,
			partial = :partial,
			r_outcome = :r_outcome
		WHERE id = :id`, r)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", journal.ErrRowNotFound, r.ID)
	}
	return nil
}

// DeleteRows removes the rows in ids and reports how many existed.
func (t *Tx) DeleteRows(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM trade_history WHERE id IN (?)`, ids)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *Tx) ClearRows() (int64, error) {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM trade_history`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05", portfolio.DateLayout}

func (t *Tx) Account() (account.Account, error) {
	var raw struct {
		Equity  string `db:"total_equity"`
		Updated string `db:"last_updated"`
	}
	err := t.tx.GetContext(t.ctx, &raw, `
		SELECT CAST(total_equity AS TEXT) AS total_equity,
		       COALESCE(CAST(last_updated AS TEXT), '') AS last_updated
		FROM account_config WHERE id = 1`)
	if err != nil {
		return account.Account{}, fmt.Errorf("load account: %w", err)
	}

	eq, err := decimal.NewFromString(strings.TrimSpace(raw.Equity))
	if err != nil {
		return account.Account{}, fmt.Errorf("account equity %q: %w", raw.Equity, err)
	}

	a := account.Account{Equity: eq}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw.Updated); err == nil {
			a.LastUpdated = ts
			break
		}
	}
	return a, nil
}

func (t *Tx) SaveAccount(a account.Account) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE account_config SET total_equity = ?, last_updated = ? WHERE id = 1`,
		a.Equity.String(), a.LastUpdated.UTC().Format(time.RFC3339Nano))
	return err
}

// Setting returns the value stored under key and whether it exists.
func (t *Tx) Setting(key string) (string, bool, error) {
	var v string
	err := t.tx.GetContext(t.ctx, &v, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (t *Tx) SetSetting(key, value string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
