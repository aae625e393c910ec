/*
store.go - Persistence interfaces for workers, requests, rules and audit

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  WorkerStore:  Worker records and the overtime counter
  RequestStore: Pending requests with a compare-and-swap status update
  RateProvider: Read side of the payroll rule (what payroll needs)
  RuleStore:    RateProvider plus upsert
  AuditLog:     Append-only record of who decided what
  Stores:       All of the above
  TxStore:      Stores plus WithTx for atomic multi-table writes

TENANCY:
  Every lookup takes a CompanyID. A record that exists under another
  company is reported exactly like a missing one (ErrNotFound family).

ATOMICITY:
  WithTx runs fn against a transactional view. If fn returns an error,
  every write made through the view is rolled back. Writers are
  serialized for the whole duration of fn, so a read-check-write inside
  fn cannot interleave with another writer.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - labor/store/memory.go: In-memory for testing

SEE ALSO:
  - approval/service.go: Uses WithTx around validate-dispatch-commit
  - payroll/calculator.go: Uses WorkerStore + RateProvider
*/
package labor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORKERS
// =============================================================================

type WorkerStore interface {
	// FindWorker returns ErrWorkerNotFound if the worker does not exist in companyID.
	FindWorker(ctx context.Context, companyID CompanyID, id WorkerID) (*Worker, error)

	// ListWorkers returns every worker of the company ordered by ID.
	ListWorkers(ctx context.Context, companyID CompanyID) ([]Worker, error)

	// FindActiveWorkers returns active workers of the company ordered by ID.
	FindActiveWorkers(ctx context.Context, companyID CompanyID) ([]Worker, error)

	CreateWorker(ctx context.Context, w Worker) error

	// UpdateOvertime overwrites the overtime counter.
	UpdateOvertime(ctx context.Context, companyID CompanyID, id WorkerID, hours decimal.Decimal) error

	SetWorkerStatus(ctx context.Context, companyID CompanyID, id WorkerID, status WorkerStatus) error

	// UpdateWorker overwrites name, bank, account and photo of the worker
	// identified by (w.CompanyID, w.ID).
	UpdateWorker(ctx context.Context, w Worker) error

	// DeleteWorker removes the worker. Pending requests that reference it
	// stay pending and fail on approval.
	DeleteWorker(ctx context.Context, companyID CompanyID, id WorkerID) error
}

// =============================================================================
// REQUESTS
// =============================================================================

type RequestStore interface {
	CreateRequest(ctx context.Context, r PendingRequest) error

	// FindRequest returns ErrRequestNotFound if the request does not exist in companyID.
	FindRequest(ctx context.Context, companyID CompanyID, id RequestID) (*PendingRequest, error)

	// FindPendingRequests returns pending requests oldest first.
	FindPendingRequests(ctx context.Context, companyID CompanyID) ([]PendingRequest, error)

	// ListRequests returns matching requests newest first.
	ListRequests(ctx context.Context, filter RequestFilter) ([]PendingRequest, error)

	// UpdateRequestStatus moves a request from change.From to change.To.
	// It fails with ErrConcurrentModification if the stored status is not change.From.
	UpdateRequestStatus(ctx context.Context, companyID CompanyID, id RequestID, change StatusChange) error
}

// StatusChange is a compare-and-swap on a request's status.
type StatusChange struct {
	From           RequestStatus
	To             RequestStatus
	LinkedWorkerID *WorkerID
	At             time.Time
}

// =============================================================================
// PAYROLL RULES
// =============================================================================

// RateProvider is the read side of the payroll rule.
type RateProvider interface {
	// GetRule returns ErrRuleNotConfigured if the company has no rule.
	GetRule(ctx context.Context, companyID CompanyID) (*PayrollRule, error)
}

type RuleStore interface {
	RateProvider

	// SaveRule inserts or replaces the company's rule.
	SaveRule(ctx context.Context, rule PayrollRule) error
}

// =============================================================================
// AUDIT LOG - Who decided what, when
// =============================================================================

type AuditAction string

const (
	AuditRequestSubmitted AuditAction = "request_submitted"
	AuditRequestApproved  AuditAction = "request_approved"
	AuditRequestRejected  AuditAction = "request_rejected"
	AuditOvertimeAdjusted AuditAction = "overtime_adjusted"
	AuditRuleChanged      AuditAction = "rule_changed"
	AuditWorkerChanged    AuditAction = "worker_changed"
)

type AuditEntry struct {
	ID        string
	CompanyID CompanyID
	ActorID   UserID
	Action    AuditAction
	RequestID RequestID // empty for direct actions
	WorkerIDs []WorkerID
	Detail    map[string]any
	At        time.Time
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// ListAudit returns the company's entries oldest first.
	ListAudit(ctx context.Context, companyID CompanyID) ([]AuditEntry, error)
}

// =============================================================================
// COMBINED
// =============================================================================

type Stores interface {
	WorkerStore
	RequestStore
	RuleStore
	AuditLog
}

// TxStore wraps Stores with transaction support.
type TxStore interface {
	Stores

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Stores) error) error
}
