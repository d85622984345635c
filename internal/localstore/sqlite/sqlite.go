package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"laundriku/agent/internal/domain"
	"laundriku/agent/internal/localstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_transactions (
	local_id       TEXT PRIMARY KEY,
	customer_id    INTEGER,
	customer_name  TEXT NOT NULL DEFAULT '',
	items          TEXT NOT NULL,
	total_amount   INTEGER NOT NULL,
	paid_amount    INTEGER NOT NULL,
	payment_method TEXT NOT NULL,
	payment_status TEXT NOT NULL,
	notes          TEXT NOT NULL DEFAULT '',
	estimated_date TEXT,
	operator_id    INTEGER NOT NULL DEFAULT 0,
	synced         INTEGER NOT NULL DEFAULT 0,
	sync_error     TEXT NOT NULL DEFAULT '',
	attempts       INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_synced ON pending_transactions(synced);
CREATE INDEX IF NOT EXISTS idx_pending_created ON pending_transactions(created_at);

CREATE TABLE IF NOT EXISTS cached_services (
	id        INTEGER PRIMARY KEY,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL,
	price     INTEGER NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS cached_customers (
	id           INTEGER PRIMARY KEY,
	name         TEXT NOT NULL,
	phone        TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	total_orders INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cached_customers_name ON cached_customers(name);

CREATE TABLE IF NOT EXISTS sync_queue (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	action     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`

// Store is the durable implementation of localstore.Store on a single SQLite
// file, so queued sales survive agent restarts and power loss.
type Store struct {
	mu          sync.Mutex
	path        string
	db          *sql.DB
	initialized bool
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open local db: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY under concurrent puts.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	s.db = db
	s.initialized = true
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}
	s.initialized = false
	return s.db.Close()
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, localstore.ErrNotInitialized
	}
	return s.db, nil
}

func (s *Store) PutPendingTransaction(ctx context.Context, tx domain.PendingTransaction) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if tx.LocalID == "" || len(tx.Items) == 0 {
		return localstore.ErrInvalidRecord
	}

	items, err := json.Marshal(tx.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	var estimated any
	if tx.EstimatedDate != nil {
		estimated = tx.EstimatedDate.UTC().Format(time.RFC3339)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pending_transactions
			(local_id, customer_id, customer_name, items, total_amount, paid_amount,
			 payment_method, payment_status, notes, estimated_date, operator_id,
			 synced, sync_error, attempts, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, tx.LocalID, tx.CustomerID, tx.CustomerName, string(items), tx.TotalAmount, tx.PaidAmount,
		tx.PaymentMethod, tx.PaymentStatus, tx.Notes, estimated, tx.OperatorID,
		boolToInt(tx.Synced), tx.SyncError, tx.Attempts, tx.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

const pendingColumns = `local_id, customer_id, customer_name, items, total_amount, paid_amount,
	payment_method, payment_status, notes, estimated_date, operator_id, synced, sync_error, attempts, created_at`

func (s *Store) GetPendingTransaction(ctx context.Context, localID string) (*domain.PendingTransaction, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_transactions
		WHERE local_id = ?
	`, localID)

	tx, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, localstore.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *Store) ListUnsyncedTransactions(ctx context.Context) ([]domain.PendingTransaction, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+pendingColumns+`
		FROM pending_transactions
		WHERE synced = 0
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pending := make([]domain.PendingTransaction, 0, 16)
	for rows.Next() {
		tx, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

func (s *Store) DeletePendingTransaction(ctx context.Context, localID string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM pending_transactions WHERE local_id = ?`, localID)
	return err
}

func (s *Store) DeleteSyncedTransactions(ctx context.Context) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM pending_transactions WHERE synced = 1`)
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_transactions WHERE synced = 0`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ReplaceCachedServices(ctx context.Context, services []domain.CachedService) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	// Clear and rewrite inside one transaction so a crash mid-refresh never
	// exposes an empty catalog to readers.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_services`); err != nil {
		return err
	}
	for _, svc := range services {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cached_services (id, name, type, price, is_active)
			VALUES (?,?,?,?,?)
		`, svc.ID, svc.Name, svc.Type, svc.Price, boolToInt(svc.IsActive))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListCachedServices(ctx context.Context) ([]domain.CachedService, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, name, type, price, is_active FROM cached_services ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.CachedService, 0, 32)
	for rows.Next() {
		var svc domain.CachedService
		var active int
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Type, &svc.Price, &active); err != nil {
			return nil, err
		}
		svc.IsActive = active != 0
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Store) ReplaceCachedCustomers(ctx context.Context, customers []domain.CachedCustomer) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_customers`); err != nil {
		return err
	}
	for _, c := range customers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cached_customers (id, name, phone, address, total_orders)
			VALUES (?,?,?,?,?)
		`, c.ID, c.Name, c.Phone, c.Address, c.TotalOrders)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListCachedCustomers(ctx context.Context) ([]domain.CachedCustomer, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, name, phone, address, total_orders FROM cached_customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.CachedCustomer, 0, 64)
	for rows.Next() {
		var c domain.CachedCustomer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.TotalOrders); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) PutSyncQueueItem(ctx context.Context, item domain.SyncQueueItem) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if item.ID == "" || item.Type == "" || item.Action == "" {
		return localstore.ErrInvalidRecord
	}

	payload := string(item.Payload)
	if payload == "" {
		payload = "null"
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_queue (id, type, action, payload, attempts, last_error, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, item.ID, item.Type, item.Action, payload, item.Attempts, item.LastError,
		item.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) ListSyncQueueItems(ctx context.Context, typeTag string) ([]domain.SyncQueueItem, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	query := `SELECT id, type, action, payload, attempts, last_error, created_at FROM sync_queue`
	args := make([]any, 0, 1)
	if typeTag != "" {
		query += ` WHERE type = ?`
		args = append(args, typeTag)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SyncQueueItem, 0, 8)
	for rows.Next() {
		var item domain.SyncQueueItem
		var payload, createdAt string
		if err := rows.Scan(&item.ID, &item.Type, &item.Action, &payload, &item.Attempts, &item.LastError, &createdAt); err != nil {
			return nil, err
		}
		item.Payload = json.RawMessage(payload)
		item.CreatedAt, err = parseStoredTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("decode created at for %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteSyncQueueItem(ctx context.Context, id string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (*domain.PendingTransaction, error) {
	var tx domain.PendingTransaction
	var customerID sql.NullInt64
	var items string
	var estimated sql.NullString
	var synced int
	var createdAt string

	err := row.Scan(&tx.LocalID, &customerID, &tx.CustomerName, &items, &tx.TotalAmount, &tx.PaidAmount,
		&tx.PaymentMethod, &tx.PaymentStatus, &tx.Notes, &estimated, &tx.OperatorID,
		&synced, &tx.SyncError, &tx.Attempts, &createdAt)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		id := customerID.Int64
		tx.CustomerID = &id
	}
	if err := json.Unmarshal([]byte(items), &tx.Items); err != nil {
		return nil, fmt.Errorf("decode items for %s: %w", tx.LocalID, err)
	}
	if estimated.Valid && estimated.String != "" {
		parsed, err := time.Parse(time.RFC3339, estimated.String)
		if err != nil {
			return nil, fmt.Errorf("decode estimated date for %s: %w", tx.LocalID, err)
		}
		est := parsed.UTC()
		tx.EstimatedDate = &est
	}
	tx.Synced = synced != 0
	created, err := parseStoredTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created at for %s: %w", tx.LocalID, err)
	}
	tx.CreatedAt = created

	return &tx, nil
}

// parseStoredTime rejects corrupt timestamps instead of mapping them to the
// zero time, which would silently break creation-order replay.
func parseStoredTime(raw string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
