/*
Package labor provides the domain model of the payroll engine.

PURPOSE:
  Types shared by the approval workflow, the payroll calculator and the
  stores: companies, workers, payroll rules, pending requests and their
  payloads. Every record belongs to exactly one company; nothing in this
  package ever crosses a company boundary.

KEY CONCEPTS IN THIS FILE (types.go):
  - IDs: Type-safe identifiers for companies, workers, requests, users
  - AuthContext: Caller identity supplied by the transport layer
  - Worker: Payroll subject with a running overtime counter
  - PayrollRule: Per-company standard hours and rates

DESIGN PRINCIPLES:
  1. Precision: hours and money are decimal.Decimal, never float
  2. Tenancy: every store call carries a CompanyID
  3. Explicit rules: no default payroll rule is ever synthesized

SEE ALSO:
  - request.go: Pending requests and their state machine statuses
  - payload.go: Tagged request payloads
  - store.go: Persistence interfaces
*/
package labor

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	CompanyID string
	WorkerID  string
	RequestID string
	UserID    string
)

// =============================================================================
// CALLER IDENTITY
// =============================================================================

type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleCompanyAdmin  Role = "company_admin"
	RoleWorkerManager Role = "worker_manager"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleCompanyAdmin, RoleWorkerManager:
		return true
	}
	return false
}

// AuthContext identifies the caller of every operation.
type AuthContext struct {
	UserID    UserID
	CompanyID CompanyID
	Role      Role
}

// =============================================================================
// WORKER
// =============================================================================

type WorkerStatus string

const (
	WorkerActive   WorkerStatus = "active"
	WorkerInactive WorkerStatus = "inactive"
)

func ParseWorkerStatus(s string) (WorkerStatus, error) {
	switch WorkerStatus(s) {
	case WorkerActive, WorkerInactive:
		return WorkerStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

type Worker struct {
	ID               WorkerID
	CompanyID        CompanyID
	Name             string
	BankName         string
	AccountNumber    string
	PhotoURL         string
	RegistrationDate Date
	Status           WorkerStatus
	OvertimeHours    decimal.Decimal // never negative
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (w Worker) IsActive() bool { return w.Status == WorkerActive }

// WorkerPatch edits a worker's identity and bank details. Nil fields are
// left unchanged. Status and overtime have their own operations.
type WorkerPatch struct {
	Name          *string
	BankName      *string
	AccountNumber *string
	PhotoURL      *string
}

func (p WorkerPatch) IsEmpty() bool {
	return p.Name == nil && p.BankName == nil && p.AccountNumber == nil && p.PhotoURL == nil
}

// Apply writes the non-nil fields onto w.
func (p WorkerPatch) Apply(w *Worker) error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: nothing to update", ErrInvalidWorker)
	}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return fmt.Errorf("%w: name must not be empty", ErrInvalidWorker)
		}
		w.Name = *p.Name
	}
	if p.BankName != nil {
		w.BankName = *p.BankName
	}
	if p.AccountNumber != nil {
		w.AccountNumber = *p.AccountNumber
	}
	if p.PhotoURL != nil {
		w.PhotoURL = *p.PhotoURL
	}
	return nil
}

// ApplyOvertime returns the counter after adding (or deducting) hours.
// A deduction that would go below zero is rejected, never clamped.
func ApplyOvertime(workerID WorkerID, current, hours decimal.Decimal, deduct bool) (decimal.Decimal, error) {
	if !deduct {
		return current.Add(hours), nil
	}
	next := current.Sub(hours)
	if next.IsNegative() {
		return current, &NegativeOvertimeError{WorkerID: workerID, Current: current, Hours: hours}
	}
	return next, nil
}

// =============================================================================
// PAYROLL RULE
// =============================================================================

// PayrollRule holds one company's rate card. At most one per company.
type PayrollRule struct {
	CompanyID                  CompanyID
	StandardWorkingHoursPerDay int
	DailyRate                  decimal.Decimal
	OvertimeRate               decimal.Decimal
	UpdatedAt                  time.Time
}

func (r PayrollRule) Validate() error {
	if r.StandardWorkingHoursPerDay <= 0 {
		return fmt.Errorf("%w: standard working hours per day must be positive", ErrInvalidRule)
	}
	if r.DailyRate.IsNegative() {
		return fmt.Errorf("%w: daily rate must not be negative", ErrInvalidRule)
	}
	if r.OvertimeRate.IsNegative() {
		return fmt.Errorf("%w: overtime rate must not be negative", ErrInvalidRule)
	}
	return nil
}
