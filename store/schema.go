package store

const createTradeHistory = `
CREATE TABLE IF NOT EXISTS trade_history (
	id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	entry_date TEXT,
	exit_date TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	r_multiple REAL
);
`

// Schema creates the base tables. Columns added after the first release are
// in migrations so that older database files pick them up too.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolio (
	ticker TEXT PRIMARY KEY,
	entry_price REAL NOT NULL,
	stop_loss REAL NOT NULL,
	quantity INTEGER NOT NULL,
	sector TEXT,
	entry_date TEXT
);

` + createTradeHistory + `

CREATE TABLE IF NOT EXISTS account_config (
	id INTEGER PRIMARY KEY,
	total_equity TEXT NOT NULL,
	last_updated TEXT
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

type column struct {
	table string
	name  string
	decl  string
}

var migrations = []column{
	{"portfolio", "breakdown_low", "REAL"},
	{"portfolio", "initial_stop_loss", "REAL"},
	{"trade_history", "trade_id", "TEXT"},
	{"trade_history", "exit_qty", "INTEGER"},
	{"trade_history", "partial", "BOOLEAN NOT NULL DEFAULT 0"},
	{"trade_history", "r_outcome", "TEXT NOT NULL DEFAULT 'ok'"},
}

// backfill gives rows written before a column existed a usable value.
var backfill = []string{
	`UPDATE trade_history
	    SET trade_id = TRIM(REPLACE(ticker, '(P)', '')) || '_' || entry_date
	  WHERE trade_id IS NULL AND entry_date IS NOT NULL AND entry_date != ''`,
	`UPDATE trade_history SET exit_qty = 1 WHERE exit_qty IS NULL`,
	`UPDATE portfolio SET initial_stop_loss = stop_loss WHERE initial_stop_loss IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_trade_history_trade_id ON trade_history(trade_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_history_exit_date ON trade_history(exit_date)`,
}
