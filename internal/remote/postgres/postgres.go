package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"laundriku/agent/internal/domain"
	"laundriku/agent/internal/remote"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewDeferred opens the pool without the startup ping. Used when the remote
// is unreachable at boot; the connectivity monitor picks up when it returns.
func NewDeferred(databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

func (s *Store) FindCustomerByName(ctx context.Context, name string) (*domain.RemoteCustomer, error) {
	var c domain.RemoteCustomer
	var phone, address sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, total_orders
		FROM customers
		WHERE name = $1
		ORDER BY id
		LIMIT 1
	`, name).Scan(&c.ID, &c.Name, &phone, &address, &c.TotalOrders)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, remote.ErrNotFound
		}
		return nil, err
	}
	c.Phone = phone.String
	c.Address = address.String
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.RemoteCustomerCreate) (*domain.RemoteCustomer, error) {
	created := domain.RemoteCustomer{
		Name:    customer.Name,
		Phone:   customer.Phone,
		Address: customer.Address,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, phone, address, total_orders, created_at, updated_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), 0, now(), now())
		RETURNING id
	`, customer.Name, customer.Phone, customer.Address).Scan(&created.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.RemoteTransactionCreate) (*domain.RemoteTransaction, error) {
	var created domain.RemoteTransaction
	// The invoice number is assigned server-side from a sequence; the value
	// returned here is the authoritative one. Alongside the base tables the
	// remote database must provide:
	//
	//   CREATE SEQUENCE IF NOT EXISTS invoice_number_seq;
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO transactions
			(invoice_number, customer_id, user_id, total_amount, paid_amount,
			 payment_status, status, notes, estimated_date, created_at, updated_at)
		VALUES (
			'INV-' || to_char(now(), 'YYYYMMDD') || '-' || lpad(nextval('invoice_number_seq')::text, 4, '0'),
			$1, $2, $3, $4, $5, $6, NULLIF($7,''), $8, now(), now())
		RETURNING id, invoice_number
	`, tx.CustomerID, tx.UserID, tx.TotalAmount, tx.PaidAmount,
		tx.PaymentStatus, tx.Status, tx.Notes, tx.EstimatedDate).Scan(&created.ID, &created.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) CreateTransactionItems(ctx context.Context, items []domain.RemoteItemCreate) error {
	if len(items) == 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	for _, item := range items {
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, service_id, service_name, qty, price, subtotal, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,now())
		`, item.TransactionID, item.ServiceID, item.ServiceName, item.Qty, item.Price, item.Subtotal)
		if err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.RemotePaymentCreate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (transaction_id, amount, method, received_by, created_at)
		VALUES ($1,$2,$3,$4,now())
	`, payment.TransactionID, payment.Amount, payment.Method, payment.ReceivedBy)
	return err
}

func (s *Store) ListServices(ctx context.Context) ([]domain.RemoteService, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, price, is_active
		FROM services
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.RemoteService, 0, 32)
	for rows.Next() {
		var svc domain.RemoteService
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Type, &svc.Price, &svc.IsActive); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.RemoteCustomer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, total_orders
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.RemoteCustomer, 0, 128)
	for rows.Next() {
		var c domain.RemoteCustomer
		var phone, address sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &phone, &address, &c.TotalOrders); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		c.Address = address.String
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}
