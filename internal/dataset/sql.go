package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opensource-finance/talon/internal/domain"
)

// Schema definitions for the staging tables.
// Compatible with both SQLite and PostgreSQL.

const schemaAccounts = `
CREATE TABLE IF NOT EXISTS accounts (
    account_id TEXT PRIMARY KEY,
    is_fraud_label BOOLEAN NOT NULL,
    account_age_days INTEGER NOT NULL,
    verification_level TEXT NOT NULL
);
`

const schemaDevices = `
CREATE TABLE IF NOT EXISTS devices (
    device_id TEXT PRIMARY KEY,
    device_type TEXT NOT NULL
);
`

const schemaLinks = `
CREATE TABLE IF NOT EXISTS account_device_links (
    account_id TEXT NOT NULL,
    device_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_links_account ON account_device_links(account_id);
CREATE INDEX IF NOT EXISTS idx_links_device ON account_device_links(device_id);
`

const schemaTransfers = `
CREATE TABLE IF NOT EXISTS transfers (
    transfer_id TEXT PRIMARY KEY,
    sender_id TEXT NOT NULL,
    receiver_id TEXT NOT NULL,
    amount REAL NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    is_fraud_label BOOLEAN NOT NULL,
    status TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers(sender_id);
CREATE INDEX IF NOT EXISTS idx_transfers_receiver ON transfers(receiver_id);
CREATE INDEX IF NOT EXISTS idx_transfers_timestamp ON transfers(timestamp);
`

func allSchemas() []string {
	return []string{
		schemaAccounts,
		schemaDevices,
		schemaLinks,
		schemaTransfers,
	}
}

// SQLStore stages the four input tables in a SQL database.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens a staging store based on configuration and creates the
// staging tables if absent.
func OpenSQL(cfg domain.DatasetConfig) (*SQLStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// openSQLite opens a SQLite database connection.
// Uses modernc.org/sqlite for pure Go implementation (no CGO required).
func openSQLite(cfg domain.DatasetConfig) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./talon.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string with pragmas for performance
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

// openPostgres opens a PostgreSQL database connection.
func openPostgres(cfg domain.DatasetConfig) (*sql.DB, error) {
	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}

	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}

	dbname := cfg.PostgresDB
	if dbname == "" {
		dbname = "talon"
	}

	sslMode := cfg.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host,
		port,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		dbname,
		sslMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	return db, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range allSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Load reads all four staged tables into a dataset. Column presence is
// validated against the required schemas, so a mismatched external
// table surfaces ErrMissingColumn instead of a scan failure.
func (s *SQLStore) Load(ctx context.Context) (*domain.Dataset, error) {
	ds := &domain.Dataset{}

	if err := s.loadTable(ctx, TableAccounts, AccountColumns, "ORDER BY account_id",
		func(get func(string) any) error {
			isFraud, err := asBool(get("is_fraud_label"))
			if err != nil {
				return err
			}
			age, err := asInt(get("account_age_days"))
			if err != nil {
				return err
			}
			ds.Accounts = append(ds.Accounts, domain.Account{
				ID:           asString(get("account_id")),
				IsFraud:      isFraud,
				AgeDays:      age,
				Verification: asString(get("verification_level")),
			})
			return nil
		}); err != nil {
		return nil, err
	}

	if err := s.loadTable(ctx, TableDevices, DeviceColumns, "ORDER BY device_id",
		func(get func(string) any) error {
			ds.Devices = append(ds.Devices, domain.Device{
				ID:   asString(get("device_id")),
				Type: asString(get("device_type")),
			})
			return nil
		}); err != nil {
		return nil, err
	}

	if err := s.loadTable(ctx, TableLinks, LinkColumns, "ORDER BY account_id, device_id",
		func(get func(string) any) error {
			ds.Links = append(ds.Links, domain.DeviceLink{
				AccountID: asString(get("account_id")),
				DeviceID:  asString(get("device_id")),
			})
			return nil
		}); err != nil {
		return nil, err
	}

	if err := s.loadTable(ctx, TableTransfers, TransferColumns, "ORDER BY timestamp, transfer_id",
		func(get func(string) any) error {
			amount, err := asFloat(get("amount"))
			if err != nil {
				return err
			}
			ts, err := asTime(get("timestamp"))
			if err != nil {
				return err
			}
			isFraud, err := asBool(get("is_fraud_label"))
			if err != nil {
				return err
			}
			ds.Transfers = append(ds.Transfers, domain.Transfer{
				ID:         asString(get("transfer_id")),
				SenderID:   asString(get("sender_id")),
				ReceiverID: asString(get("receiver_id")),
				Amount:     amount,
				Timestamp:  ts,
				IsFraud:    isFraud,
				Status:     asString(get("status")),
			})
			return nil
		}); err != nil {
		return nil, err
	}

	return ds, nil
}

// loadTable selects a whole table and feeds each row to convert through
// a by-column-name accessor.
func (s *SQLStore) loadTable(ctx context.Context, table string, required []string, order string, convert func(get func(string) any) error) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s %s", table, order))
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns of %s: %w", table, err)
	}
	idx, err := columnIndex(table, cols, required)
	if err != nil {
		return err
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	get := func(col string) any { return vals[idx[col]] }

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		if err := convert(get); err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
	}
	return rows.Err()
}

// Replace clears all staged rows and stores the dataset in one
// transaction.
func (s *SQLStore) Replace(ctx context.Context, ds *domain.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{TableTransfers, TableLinks, TableDevices, TableAccounts} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := s.insertAccounts(ctx, tx, ds.Accounts); err != nil {
		return err
	}
	if err := s.insertDevices(ctx, tx, ds.Devices); err != nil {
		return err
	}
	if err := s.insertLinks(ctx, tx, ds.Links); err != nil {
		return err
	}
	if err := s.insertTransfers(ctx, tx, ds.Transfers); err != nil {
		return err
	}

	return tx.Commit()
}

// Clear deletes all staged rows.
func (s *SQLStore) Clear(ctx context.Context) error {
	return s.Replace(ctx, &domain.Dataset{})
}

// InsertAccounts appends account rows to the staging table.
func (s *SQLStore) InsertAccounts(ctx context.Context, accounts []domain.Account) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return s.insertAccounts(ctx, tx, accounts) })
}

// InsertDevices appends device rows to the staging table.
func (s *SQLStore) InsertDevices(ctx context.Context, devices []domain.Device) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return s.insertDevices(ctx, tx, devices) })
}

// InsertLinks appends link rows to the staging table.
func (s *SQLStore) InsertLinks(ctx context.Context, links []domain.DeviceLink) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return s.insertLinks(ctx, tx, links) })
}

// InsertTransfers appends transfer rows to the staging table.
func (s *SQLStore) InsertTransfers(ctx context.Context, transfers []domain.Transfer) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return s.insertTransfers(ctx, tx, transfers) })
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) insertAccounts(ctx context.Context, tx *sql.Tx, accounts []domain.Account) error {
	query := s.rebind(`
		INSERT INTO accounts (account_id, is_fraud_label, account_age_days, verification_level)
		VALUES (?, ?, ?, ?)
	`)
	for _, a := range accounts {
		if _, err := tx.ExecContext(ctx, query, a.ID, a.IsFraud, a.AgeDays, a.Verification); err != nil {
			return fmt.Errorf("insert account %s: %w", a.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) insertDevices(ctx context.Context, tx *sql.Tx, devices []domain.Device) error {
	query := s.rebind(`
		INSERT INTO devices (device_id, device_type)
		VALUES (?, ?)
	`)
	for _, d := range devices {
		if _, err := tx.ExecContext(ctx, query, d.ID, d.Type); err != nil {
			return fmt.Errorf("insert device %s: %w", d.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) insertLinks(ctx context.Context, tx *sql.Tx, links []domain.DeviceLink) error {
	query := s.rebind(`
		INSERT INTO account_device_links (account_id, device_id)
		VALUES (?, ?)
	`)
	for _, l := range links {
		if _, err := tx.ExecContext(ctx, query, l.AccountID, l.DeviceID); err != nil {
			return fmt.Errorf("insert link %s-%s: %w", l.AccountID, l.DeviceID, err)
		}
	}
	return nil
}

func (s *SQLStore) insertTransfers(ctx context.Context, tx *sql.Tx, transfers []domain.Transfer) error {
	query := s.rebind(`
		INSERT INTO transfers (transfer_id, sender_id, receiver_id, amount, timestamp, is_fraud_label, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	for _, t := range transfers {
		if _, err := tx.ExecContext(ctx, query,
			t.ID, t.SenderID, t.ReceiverID, t.Amount, t.Timestamp, t.IsFraud, t.Status,
		); err != nil {
			return fmt.Errorf("insert transfer %s: %w", t.ID, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case float64:
		return t != 0, nil
	case string:
		return parseBool(t)
	case []byte:
		return parseBool(string(t))
	}
	return false, fmt.Errorf("%w: unexpected boolean value %v", domain.ErrInvalidInput, v)
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return parseInt(t)
	case []byte:
		return parseInt(string(t))
	}
	return 0, fmt.Errorf("%w: unexpected integer value %v", domain.ErrInvalidInput, v)
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case string:
		return parseFloat(t)
	case []byte:
		return parseFloat(string(t))
	}
	return 0, fmt.Errorf("%w: unexpected numeric value %v", domain.ErrInvalidInput, v)
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTimestamp(t)
	case []byte:
		return parseTimestamp(string(t))
	}
	return time.Time{}, fmt.Errorf("%w: unexpected timestamp value %v", domain.ErrInvalidInput, v)
}
