package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"laundriku/agent/internal/domain"
	"laundriku/agent/internal/remote"
)

// Store is an in-memory remote.Store for dev mode and reconciler tests. The
// Fail* hooks inject per-step write failures so partial-failure paths can be
// exercised; CallCount records every method invocation for no-resubmit
// assertions.
type Store struct {
	mu sync.Mutex

	services      map[int64]domain.RemoteService
	customers     map[int64]domain.RemoteCustomer
	transactions  map[int64]domain.RemoteTransactionCreate
	invoices      map[int64]string
	items         map[int64][]domain.RemoteItemCreate
	payments      map[int64][]domain.RemotePaymentCreate
	nextCustomer  int64
	nextTx        int64
	nextInvoice   int64
	callsByMethod map[string]int

	PingErr               error
	FailFindCustomer      func(name string) error
	FailCreateCustomer    func(customer domain.RemoteCustomerCreate) error
	FailCreateTransaction func(tx domain.RemoteTransactionCreate) error
	FailCreateItems       func(items []domain.RemoteItemCreate) error
	FailCreatePayment     func(payment domain.RemotePaymentCreate) error
}

func New() *Store {
	return &Store{
		services:      make(map[int64]domain.RemoteService),
		customers:     make(map[int64]domain.RemoteCustomer),
		transactions:  make(map[int64]domain.RemoteTransactionCreate),
		invoices:      make(map[int64]string),
		items:         make(map[int64][]domain.RemoteItemCreate),
		payments:      make(map[int64][]domain.RemotePaymentCreate),
		nextCustomer:  1,
		nextTx:        1,
		nextInvoice:   1,
		callsByMethod: make(map[string]int),
	}
}

// NewSeeded returns a store preloaded with a small laundry catalog and
// customer directory for dev mode without DATABASE_URL.
func NewSeeded() *Store {
	s := New()

	for _, svc := range []domain.RemoteService{
		{ID: 1, Name: "Cuci Kering", Type: domain.ServiceTypeKiloan, Price: 7000, IsActive: true},
		{ID: 2, Name: "Cuci Setrika", Type: domain.ServiceTypeKiloan, Price: 10000, IsActive: true},
		{ID: 3, Name: "Setrika", Type: domain.ServiceTypeKiloan, Price: 5000, IsActive: true},
		{ID: 4, Name: "Bed Cover", Type: domain.ServiceTypeSatuan, Price: 25000, IsActive: true},
		{ID: 5, Name: "Selimut", Type: domain.ServiceTypeSatuan, Price: 20000, IsActive: true},
		{ID: 6, Name: "Sepatu", Type: domain.ServiceTypeSatuan, Price: 30000, IsActive: true},
	} {
		s.services[svc.ID] = svc
	}

	for _, c := range []domain.RemoteCustomer{
		{ID: 1, Name: "Siti Rahma", Phone: "081234567890", Address: "Jl. Melati 12"},
		{ID: 2, Name: "Agus Salim", Phone: "085612341234", Address: "Jl. Kenanga 3"},
		{ID: 3, Name: "Dewi Lestari", Phone: "081998877665"},
	} {
		s.customers[c.ID] = c
	}
	s.nextCustomer = 4

	return s
}

func (s *Store) record(method string) {
	s.callsByMethod[method]++
}

// CallCount returns how many times the named method has been invoked.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callsByMethod[method]
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Ping")
	return s.PingErr
}

func (s *Store) FindCustomerByName(_ context.Context, name string) (*domain.RemoteCustomer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindCustomerByName")

	if s.FailFindCustomer != nil {
		if err := s.FailFindCustomer(name); err != nil {
			return nil, err
		}
	}

	ids := make([]int64, 0, len(s.customers))
	for id := range s.customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if s.customers[id].Name == name {
			c := s.customers[id]
			return &c, nil
		}
	}
	return nil, remote.ErrNotFound
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.RemoteCustomerCreate) (*domain.RemoteCustomer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateCustomer")

	if s.FailCreateCustomer != nil {
		if err := s.FailCreateCustomer(customer); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("customer name required")
	}

	created := domain.RemoteCustomer{
		ID:      s.nextCustomer,
		Name:    customer.Name,
		Phone:   customer.Phone,
		Address: customer.Address,
	}
	s.customers[created.ID] = created
	s.nextCustomer++
	return &created, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.RemoteTransactionCreate) (*domain.RemoteTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateTransaction")

	if s.FailCreateTransaction != nil {
		if err := s.FailCreateTransaction(tx); err != nil {
			return nil, err
		}
	}

	created := domain.RemoteTransaction{
		ID:            s.nextTx,
		InvoiceNumber: fmt.Sprintf("INV-%04d", s.nextInvoice),
	}
	s.transactions[created.ID] = tx
	s.invoices[created.ID] = created.InvoiceNumber
	s.nextTx++
	s.nextInvoice++
	return &created, nil
}

func (s *Store) CreateTransactionItems(_ context.Context, items []domain.RemoteItemCreate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateTransactionItems")

	if s.FailCreateItems != nil {
		if err := s.FailCreateItems(items); err != nil {
			return err
		}
	}
	if len(items) == 0 {
		return nil
	}

	txID := items[0].TransactionID
	for _, item := range items {
		if item.TransactionID != txID {
			return fmt.Errorf("mixed transaction ids in bulk insert")
		}
		if _, ok := s.transactions[item.TransactionID]; !ok {
			return fmt.Errorf("transaction %d not found", item.TransactionID)
		}
	}
	s.items[txID] = append(s.items[txID], items...)
	return nil
}

func (s *Store) CreatePayment(_ context.Context, payment domain.RemotePaymentCreate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreatePayment")

	if s.FailCreatePayment != nil {
		if err := s.FailCreatePayment(payment); err != nil {
			return err
		}
	}
	if _, ok := s.transactions[payment.TransactionID]; !ok {
		return fmt.Errorf("transaction %d not found", payment.TransactionID)
	}
	s.payments[payment.TransactionID] = append(s.payments[payment.TransactionID], payment)
	return nil
}

func (s *Store) ListServices(_ context.Context) ([]domain.RemoteService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListServices")

	services := make([]domain.RemoteService, 0, len(s.services))
	for _, svc := range s.services {
		if !svc.IsActive {
			continue
		}
		services = append(services, svc)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.RemoteCustomer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListCustomers")

	customers := make([]domain.RemoteCustomer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name })
	return customers, nil
}

// Inspection helpers for tests.

func (s *Store) CustomersNamed(name string) []domain.RemoteCustomer {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]domain.RemoteCustomer, 0, 1)
	for _, c := range s.customers {
		if c.Name == name {
			matched = append(matched, c)
		}
	}
	return matched
}

func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *Store) InvoiceFor(txID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoices[txID]
}

func (s *Store) ItemsFor(txID int64) []domain.RemoteItemCreate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RemoteItemCreate(nil), s.items[txID]...)
}

func (s *Store) PaymentsFor(txID int64) []domain.RemotePaymentCreate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RemotePaymentCreate(nil), s.payments[txID]...)
}
