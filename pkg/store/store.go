package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	product TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS transactions (
	id               TEXT PRIMARY KEY,
	account_id       TEXT NOT NULL REFERENCES accounts(id),
	state            TEXT NOT NULL CHECK (state IN ('pending', 'processed')),
	booking_date     TEXT NOT NULL,
	amount           REAL NOT NULL,
	currency         TEXT NOT NULL,
	description      TEXT NOT NULL,
	value_date       TEXT,
	balance          REAL NOT NULL DEFAULT 0,
	balance_currency TEXT NOT NULL DEFAULT '',
	import_id        TEXT NOT NULL DEFAULT '',
	original_data    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS config (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_pending ON transactions(state, account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_booking ON transactions(booking_date);
`

// Row states a ledger transaction moves through. A row is created pending
// and becomes processed exactly once, after the destination accepted it.
const (
	StatePending   = "pending"
	StateProcessed = "processed"
)

// Account is one bank account known to the local ledger.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Product string `json:"product"`
}

// Transaction is one ledger row. ValueDate is nil when the source never
// reported the transaction as settled.
type Transaction struct {
	ID              string
	AccountID       string
	State           string
	BookingDate     string
	Amount          float64
	Currency        string
	Description     string
	ValueDate       *string
	Balance         float64
	BalanceCurrency string
	ImportID        string
	OriginalData    string
}

// Store wraps the SQLite database holding the accounts table, the
// transactions ledger and the config key/value table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema is at
// the current version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	ver, err := currentSchemaVersion(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	}
	if ver < schemaVersion {
		if err := migrateSchema(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func currentSchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_meta'",
	).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var ver int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_meta").Scan(&ver)
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func migrateSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec("DELETE FROM schema_meta"); err != nil {
		return err
	}
	if _, err := db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Config key/value table
// ---------------------------------------------------------------------------

// GetValue returns the raw JSON stored under name.
func (s *Store) GetValue(name string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM config WHERE name = ?", name).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get config %q: %w", name, err)
	}
	return json.RawMessage(value), true, nil
}

// SetValue stores raw JSON under name, replacing any previous value.
func (s *Store) SetValue(name string, value json.RawMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO config (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, string(value))
	if err != nil {
		return fmt.Errorf("set config %q: %w", name, err)
	}
	return nil
}

func (s *Store) HasValue(name string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM config WHERE name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check config %q: %w", name, err)
	}
	return n > 0, nil
}

func (s *Store) DeleteValue(name string) error {
	if _, err := s.db.Exec("DELETE FROM config WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete config %q: %w", name, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// UpsertAccount inserts or replaces a bank account. Registration may run
// more than once for the same requisition.
func (s *Store) UpsertAccount(a Account) error {
	_, err := s.db.Exec(`
		INSERT INTO accounts (id, name, product) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, product = excluded.product
	`, a.ID, a.Name, a.Product)
	if err != nil {
		return fmt.Errorf("upsert account %q: %w", a.ID, err)
	}
	return nil
}

func (s *Store) ListAccounts() ([]Account, error) {
	rows, err := s.db.Query("SELECT id, name, product FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Product); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ---------------------------------------------------------------------------
// Transactions ledger
// ---------------------------------------------------------------------------

// InsertTransaction inserts a ledger row, ignoring the insert when a row
// with the same id already exists. Reports whether a row was written. The
// primary-key insert-if-absent is the ledger's deduplication primitive.
func (s *Store) InsertTransaction(t Transaction) (bool, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO transactions (
			id, account_id, state, booking_date, amount, currency,
			description, value_date, balance, balance_currency,
			import_id, original_data
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.AccountID, t.State, t.BookingDate, t.Amount, t.Currency,
		t.Description, t.ValueDate, t.Balance, t.BalanceCurrency,
		t.ImportID, t.OriginalData)
	if err != nil {
		return false, fmt.Errorf("insert transaction %q: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MaxBookingDate returns the latest booking date across the whole ledger,
// the ingestion watermark. ok is false on an empty ledger.
func (s *Store) MaxBookingDate() (latest string, ok bool, err error) {
	var max sql.NullString
	err = s.db.QueryRow("SELECT MAX(booking_date) FROM transactions").Scan(&max)
	if err != nil {
		return "", false, fmt.Errorf("max booking date: %w", err)
	}
	return max.String, max.Valid, nil
}

// PendingSettled returns the pending rows for one bank account that carry a
// value date. Rows without a value date are not yet settled and stay out of
// every push.
func (s *Store) PendingSettled(accountID string) ([]Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, state, booking_date, amount, currency,
		       description, value_date, balance, balance_currency,
		       import_id, original_data
		FROM transactions
		WHERE state = ? AND account_id = ? AND value_date IS NOT NULL
		ORDER BY booking_date, id
	`, StatePending, accountID)
	if err != nil {
		return nil, fmt.Errorf("pending transactions for %q: %w", accountID, err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Transaction returns one ledger row by id.
func (s *Store) Transaction(id string) (Transaction, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, account_id, state, booking_date, amount, currency,
		       description, value_date, balance, balance_currency,
		       import_id, original_data
		FROM transactions WHERE id = ?
	`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

// CountTransactions reports the number of ledger rows, optionally narrowed
// to one state. An empty state counts everything.
func (s *Store) CountTransactions(state string) (int, error) {
	var n int
	var err error
	if state == "" {
		err = s.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&n)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM transactions WHERE state = ?", state).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// MarkProcessed advances the given rows to the processed state. The
// transition is the terminal one and is applied as a single statement.
func (s *Store) MarkProcessed(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.Exec(
		"UPDATE transactions SET state = '"+StateProcessed+"' WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var valueDate sql.NullString
	err := row.Scan(&t.ID, &t.AccountID, &t.State, &t.BookingDate, &t.Amount,
		&t.Currency, &t.Description, &valueDate, &t.Balance,
		&t.BalanceCurrency, &t.ImportID, &t.OriginalData)
	if err != nil {
		return Transaction{}, err
	}
	if valueDate.Valid {
		t.ValueDate = &valueDate.String
	}
	return t, nil
}
