package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"laundriku/agent/internal/domain"
	"laundriku/agent/internal/events"
	"laundriku/agent/internal/localstore"
	"laundriku/agent/internal/remote"
)

// ErrDrainInProgress is returned when a drain is requested while one is
// already running. The request is dropped, not queued: the running drain
// re-reads the unsynced set, so anything captured before its read is covered.
var ErrDrainInProgress = errors.New("sync already in progress")

type OnlineChecker interface {
	Online() bool
}

// Reconciler replays locally captured transactions against the remote store.
// Each pending transaction is pushed through a fixed four-step sequence:
// resolve or create the customer, insert the transaction header, bulk-insert
// the items, and record the payment when anything was paid. A failed
// transaction is marked with its error and left in place for the next drain;
// it never blocks the ones behind it.
type Reconciler struct {
	store     localstore.Store
	remote    remote.Store
	checker   OnlineChecker
	publisher events.Publisher

	drainMu sync.Mutex

	mu         sync.Mutex
	lastReport *domain.SyncReport
	draining   bool
}

func NewReconciler(store localstore.Store, remoteStore remote.Store, checker OnlineChecker, publisher events.Publisher) *Reconciler {
	return &Reconciler{
		store:     store,
		remote:    remoteStore,
		checker:   checker,
		publisher: publisher,
	}
}

// Run consumes connectivity transitions and drains on every offline-to-online
// edge. When interval is positive, it also drains periodically while online,
// picking up transactions whose earlier attempt failed. Blocks until ctx is
// cancelled.
func (r *Reconciler) Run(ctx context.Context, transitions <-chan bool, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-transitions:
			if !ok {
				return
			}
			if online {
				r.drainLogged(ctx, "reconnect")
			}
		case <-tick:
			if r.checker.Online() {
				r.drainLogged(ctx, "interval")
			}
		}
	}
}

func (r *Reconciler) drainLogged(ctx context.Context, trigger string) {
	report, err := r.Drain(ctx)
	if err != nil {
		if !errors.Is(err, ErrDrainInProgress) {
			log.Printf("[syncer] drain (%s) failed: %v", trigger, err)
		}
		return
	}
	if report.Attempted > 0 {
		log.Printf("[syncer] drain (%s) %s: %d berhasil, %d gagal disinkronkan",
			trigger, report.DrainID, report.Succeeded, report.Failed)
	}
}

// Drain replays every unsynced transaction once, oldest first, then removes
// the synced ones from the local store. At most one drain runs at a time;
// concurrent calls get ErrDrainInProgress.
func (r *Reconciler) Drain(ctx context.Context) (*domain.SyncReport, error) {
	if !r.drainMu.TryLock() {
		return nil, ErrDrainInProgress
	}
	defer r.drainMu.Unlock()

	r.setDraining(true)
	defer r.setDraining(false)

	report := &domain.SyncReport{
		DrainID:   uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	pending, err := r.store.ListUnsyncedTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}
	report.Attempted = len(pending)

	for _, tx := range pending {
		if err := r.replay(ctx, tx); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, domain.SyncFailure{
				LocalID: tx.LocalID,
				Message: err.Error(),
			})
			r.markFailed(ctx, tx.LocalID, err)
			continue
		}
		report.Succeeded++
		r.markSynced(ctx, tx.LocalID)
	}

	removed, err := r.store.DeleteSyncedTransactions(ctx)
	if err != nil {
		log.Printf("[syncer] gc synced transactions: %v", err)
	}
	report.Removed = removed
	report.FinishedAt = time.Now().UTC()

	r.mu.Lock()
	r.lastReport = report
	r.mu.Unlock()

	if report.Attempted > 0 {
		if err := r.publisher.SyncCompleted(ctx, *report); err != nil {
			log.Printf("[syncer] publish sync report: %v", err)
		}
	}
	if count, err := r.store.CountUnsynced(ctx); err == nil {
		if err := r.publisher.PendingCountChanged(ctx, count); err != nil {
			log.Printf("[syncer] publish pending count: %v", err)
		}
	}

	return report, nil
}

// replay pushes one captured transaction to the remote store. A partial
// failure (header inserted, items failed) leaves the transaction unsynced;
// the next drain inserts a fresh header, orphaning the earlier one. That is
// accepted: headers without items carry no reportable amounts.
func (r *Reconciler) replay(ctx context.Context, tx domain.PendingTransaction) error {
	customerID, err := r.resolveCustomer(ctx, tx)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}

	created, err := r.remote.CreateTransaction(ctx, domain.RemoteTransactionCreate{
		CustomerID:    customerID,
		UserID:        tx.OperatorID,
		TotalAmount:   tx.TotalAmount,
		PaidAmount:    tx.PaidAmount,
		PaymentStatus: tx.PaymentStatus,
		Status:        domain.TxStatusReceived,
		Notes:         tx.Notes,
		EstimatedDate: tx.EstimatedDate,
	})
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	items := make([]domain.RemoteItemCreate, len(tx.Items))
	for i, item := range tx.Items {
		items[i] = domain.RemoteItemCreate{
			TransactionID: created.ID,
			ServiceID:     item.ServiceID,
			ServiceName:   item.ServiceName,
			Qty:           item.Qty,
			Price:         item.Price,
			Subtotal:      item.Subtotal,
		}
	}
	if err := r.remote.CreateTransactionItems(ctx, items); err != nil {
		return fmt.Errorf("create items for %s: %w", created.InvoiceNumber, err)
	}

	if tx.PaidAmount > 0 {
		err := r.remote.CreatePayment(ctx, domain.RemotePaymentCreate{
			TransactionID: created.ID,
			Amount:        tx.PaidAmount,
			Method:        tx.PaymentMethod,
			ReceivedBy:    tx.OperatorID,
		})
		if err != nil {
			return fmt.Errorf("create payment for %s: %w", created.InvoiceNumber, err)
		}
	}

	return nil
}

// resolveCustomer returns the remote customer ID for the transaction. A
// captured ID is trusted as-is; otherwise the name is looked up exactly and a
// new customer is created only when no match exists. Transactions replay
// sequentially, so repeated captures of the same new name create one customer.
func (r *Reconciler) resolveCustomer(ctx context.Context, tx domain.PendingTransaction) (*int64, error) {
	if tx.CustomerID != nil {
		return tx.CustomerID, nil
	}
	if tx.CustomerName == "" {
		return nil, nil
	}

	existing, err := r.remote.FindCustomerByName(ctx, tx.CustomerName)
	if err == nil {
		return &existing.ID, nil
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return nil, err
	}

	created, err := r.remote.CreateCustomer(ctx, domain.RemoteCustomerCreate{Name: tx.CustomerName})
	if err != nil {
		return nil, err
	}
	return &created.ID, nil
}

func (r *Reconciler) markSynced(ctx context.Context, localID string) {
	tx, err := r.store.GetPendingTransaction(ctx, localID)
	if err != nil {
		log.Printf("[syncer] load %s after sync: %v", localID, err)
		return
	}
	tx.Synced = true
	tx.SyncError = ""
	if err := r.store.PutPendingTransaction(ctx, *tx); err != nil {
		log.Printf("[syncer] mark %s synced: %v", localID, err)
	}
}

func (r *Reconciler) markFailed(ctx context.Context, localID string, cause error) {
	tx, err := r.store.GetPendingTransaction(ctx, localID)
	if err != nil {
		log.Printf("[syncer] load %s after failure: %v", localID, err)
		return
	}
	tx.SyncError = cause.Error()
	tx.Attempts++
	if err := r.store.PutPendingTransaction(ctx, *tx); err != nil {
		log.Printf("[syncer] record failure for %s: %v", localID, err)
	}
}

func (r *Reconciler) setDraining(v bool) {
	r.mu.Lock()
	r.draining = v
	r.mu.Unlock()
}

// Status reports connectivity, drain activity, the pending backlog, and the
// most recent drain report.
func (r *Reconciler) Status(ctx context.Context) (*domain.SyncStatus, error) {
	count, err := r.store.CountUnsynced(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return &domain.SyncStatus{
		Online:       r.checker.Online(),
		Draining:     r.draining,
		PendingCount: count,
		LastReport:   r.lastReport,
	}, nil
}
