package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"laundriku/agent/internal/domain"
	"laundriku/agent/internal/events"
	"laundriku/agent/internal/localstore"
	"laundriku/agent/internal/xid"
)

var (
	ErrNoItems         = errors.New("transaction has no items")
	ErrInvalidPayment  = errors.New("unsupported payment method or status")
	ErrAmountMismatch  = errors.New("total amount does not match item subtotals")
	ErrNegativeAmount  = errors.New("amounts must not be negative")
	ErrInvalidCustomer = errors.New("customer id or name required")
)

// Manager captures sales into the local durable store. Enqueue never touches
// the network: a sale is accepted as long as the local store can persist it,
// online or offline.
type Manager struct {
	store      localstore.Store
	publisher  events.Publisher
	operatorID int64
}

func NewManager(store localstore.Store, publisher events.Publisher, operatorID int64) *Manager {
	return &Manager{store: store, publisher: publisher, operatorID: operatorID}
}

// Enqueue captures a sale under the configured default operator.
func (m *Manager) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.EnqueueResult, error) {
	return m.EnqueueAs(ctx, req, m.operatorID)
}

// EnqueueAs captures a sale attributed to a specific operator, typically the
// authenticated cashier.
func (m *Manager) EnqueueAs(ctx context.Context, req domain.EnqueueRequest, operatorID int64) (*domain.EnqueueResult, error) {
	if operatorID <= 0 {
		operatorID = m.operatorID
	}
	tx, err := m.buildPending(req, operatorID)
	if err != nil {
		return nil, err
	}

	if err := m.store.PutPendingTransaction(ctx, *tx); err != nil {
		return nil, fmt.Errorf("persist pending transaction: %w", err)
	}

	count, err := m.store.CountUnsynced(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.publisher.PendingCountChanged(ctx, count); err != nil {
		log.Printf("[queue] publish pending count: %v", err)
	}

	log.Printf("[queue] captured transaction %s (pending=%d)", tx.LocalID, count)
	return &domain.EnqueueResult{
		LocalID:      tx.LocalID,
		PendingCount: count,
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (m *Manager) buildPending(req domain.EnqueueRequest, operatorID int64) (*domain.PendingTransaction, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	if req.CustomerID == nil && strings.TrimSpace(req.CustomerName) == "" {
		return nil, ErrInvalidCustomer
	}
	if !domain.IsSupportedPaymentMethod(req.PaymentMethod) || !domain.IsSupportedPaymentStatus(req.PaymentStatus) {
		return nil, ErrInvalidPayment
	}
	if req.TotalAmount < 0 || req.PaidAmount < 0 {
		return nil, ErrNegativeAmount
	}

	items := make([]domain.PendingItem, len(req.Items))
	var sum int64
	for i, item := range req.Items {
		if strings.TrimSpace(item.ServiceName) == "" || item.Qty <= 0 || item.Price < 0 {
			return nil, fmt.Errorf("%w: item %d", ErrInvalidPayment, i)
		}
		if item.Subtotal == 0 {
			item.Subtotal = int64(item.Qty * float64(item.Price))
		}
		items[i] = item
		sum += item.Subtotal
	}
	if req.TotalAmount != sum {
		return nil, fmt.Errorf("%w: got %d, items sum to %d", ErrAmountMismatch, req.TotalAmount, sum)
	}

	var estimated *time.Time
	if strings.TrimSpace(req.EstimatedDate) != "" {
		t, err := time.Parse("2006-01-02", req.EstimatedDate)
		if err != nil {
			return nil, fmt.Errorf("invalid estimated date %q", req.EstimatedDate)
		}
		estimated = &t
	}

	return &domain.PendingTransaction{
		LocalID:       xid.New("txn"),
		CustomerID:    req.CustomerID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Items:         items,
		TotalAmount:   req.TotalAmount,
		PaidAmount:    req.PaidAmount,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: req.PaymentStatus,
		Notes:         strings.TrimSpace(req.Notes),
		EstimatedDate: estimated,
		OperatorID:    operatorID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// PendingCount reports how many captured transactions still await replay.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	return m.store.CountUnsynced(ctx)
}

// Pending lists unsynced transactions in capture order.
func (m *Manager) Pending(ctx context.Context) ([]domain.PendingTransaction, error) {
	return m.store.ListUnsyncedTransactions(ctx)
}
