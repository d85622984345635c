package domain

import (
	"encoding/json"
	"time"
)

// PendingItem is one ordered line of a locally captured sale. Subtotal is
// computed upstream (qty * price) and carried as-is to the remote store.
type PendingItem struct {
	ServiceID   *int64  `json:"service_id,omitempty"`
	ServiceName string  `json:"service_name"`
	Qty         float64 `json:"qty"`
	Price       int64   `json:"price"`
	Subtotal    int64   `json:"subtotal"`
}

// PendingTransaction is a sale captured while the remote store may be
// unreachable. It lives in the local durable store until a drain replays it
// remotely and garbage-collects it. LocalID is an opaque sync-tracking ID and
// is distinct from the invoice number the remote store assigns later.
type PendingTransaction struct {
	LocalID       string        `json:"local_id"`
	CustomerID    *int64        `json:"customer_id,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	Items         []PendingItem `json:"items"`
	TotalAmount   int64         `json:"total_amount"`
	PaidAmount    int64         `json:"paid_amount"`
	PaymentMethod string        `json:"payment_method"`
	PaymentStatus string        `json:"payment_status"`
	Notes         string        `json:"notes,omitempty"`
	EstimatedDate *time.Time    `json:"estimated_date,omitempty"`
	OperatorID    int64         `json:"operator_id"`
	Synced        bool          `json:"synced"`
	SyncError     string        `json:"sync_error,omitempty"`
	Attempts      int           `json:"attempts"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CachedService is a read-only mirror of a remote service catalog row.
type CachedService struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Price    int64  `json:"price"`
	IsActive bool   `json:"is_active"`
}

// CachedCustomer is a read-only mirror of a remote customer directory row.
type CachedCustomer struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	TotalOrders int    `json:"total_orders"`
}

// SyncQueueItem is the general-purpose durable queue entry. The transaction
// path uses PendingTransaction directly; this collection exists for future
// record types that need the same persistence and retry shape.
type SyncQueueItem struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type EnqueueRequest struct {
	CustomerID    *int64        `json:"customer_id,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	Items         []PendingItem `json:"items"`
	TotalAmount   int64         `json:"total_amount"`
	PaidAmount    int64         `json:"paid_amount"`
	PaymentMethod string        `json:"payment_method"`
	PaymentStatus string        `json:"payment_status"`
	Notes         string        `json:"notes,omitempty"`
	EstimatedDate string        `json:"estimated_date,omitempty"`
}

type EnqueueResult struct {
	LocalID      string `json:"local_id"`
	PendingCount int    `json:"pending_count"`
	CreatedAt    string `json:"created_at"`
}

type SyncFailure struct {
	LocalID string `json:"local_id"`
	Message string `json:"message"`
}

// SyncReport is the aggregate result of one drain pass, surfaced to the UI as
// a single summary ("N berhasil, M gagal disinkronkan").
type SyncReport struct {
	DrainID    string        `json:"drain_id"`
	Attempted  int           `json:"attempted"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Removed    int           `json:"removed"`
	Failures   []SyncFailure `json:"failures,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

type SyncStatus struct {
	Online       bool        `json:"online"`
	Draining     bool        `json:"draining"`
	PendingCount int         `json:"pending_count"`
	LastReport   *SyncReport `json:"last_report,omitempty"`
}

// Remote write payloads. The field sets mirror the fixed remote schema; this
// layer never invents columns.

type RemoteCustomerCreate struct {
	Name    string
	Phone   string
	Address string
}

type RemoteCustomer struct {
	ID          int64
	Name        string
	Phone       string
	Address     string
	TotalOrders int
}

type RemoteService struct {
	ID       int64
	Name     string
	Type     string
	Price    int64
	IsActive bool
}

type RemoteTransactionCreate struct {
	CustomerID    *int64
	UserID        int64
	TotalAmount   int64
	PaidAmount    int64
	PaymentStatus string
	Status        string
	Notes         string
	EstimatedDate *time.Time
}

// RemoteTransaction carries the server-assigned identity of a created header.
// InvoiceNumber is authoritative once returned.
type RemoteTransaction struct {
	ID            int64
	InvoiceNumber string
}

type RemoteItemCreate struct {
	TransactionID int64
	ServiceID     *int64
	ServiceName   string
	Qty           float64
	Price         int64
	Subtotal      int64
}

type RemotePaymentCreate struct {
	TransactionID int64
	Amount        int64
	Method        string
	ReceivedBy    int64
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
	UserID   int64
}

type KasirCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type KasirUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        int64
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "transfer"
	PaymentMethodQRIS     = "qris"
)

const (
	PaymentStatusUnpaid  = "belum_lunas"
	PaymentStatusPartial = "dp"
	PaymentStatusPaid    = "lunas"
)

const (
	TxStatusReceived   = "diterima"
	TxStatusProcessing = "diproses"
	TxStatusQC         = "qc"
	TxStatusDone       = "selesai"
	TxStatusPickedUp   = "diambil"
)

const (
	ServiceTypeKiloan = "kiloan"
	ServiceTypeSatuan = "satuan"
)

const (
	SyncItemTypeTransaction = "transaction"
	SyncItemTypeCustomer    = "customer"
	SyncActionCreate        = "create"
	SyncActionUpdate        = "update"
)

func IsSupportedPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodQRIS:
		return true
	default:
		return false
	}
}

func IsSupportedPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
		return true
	default:
		return false
	}
}
