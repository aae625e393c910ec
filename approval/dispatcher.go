package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/labor"
)

// =============================================================================
// DISPATCHER - Applies an approved request's side effect
// =============================================================================

// Dispatcher turns a payload into worker mutations. It always runs against a
// transactional view; it never commits or rolls back itself.
type Dispatcher struct {
	Now   func() time.Time
	NewID func() string
}

// NewDispatcher returns a dispatcher using the wall clock and UUIDv4 ids.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// Outcome describes what a dispatch changed.
type Outcome struct {
	// LinkedWorkerID is the created worker for new_worker requests.
	LinkedWorkerID *labor.WorkerID
	// Affected lists every worker whose record was written.
	Affected []labor.WorkerID
}

// Dispatch applies the payload within companyID.
func (d *Dispatcher) Dispatch(ctx context.Context, tx labor.Stores, companyID labor.CompanyID, p labor.Payload) (Outcome, error) {
	switch p := p.(type) {
	case labor.NewWorkerPayload:
		return d.createWorker(ctx, tx, companyID, p)
	case labor.OvertimeIndividualPayload:
		return d.adjustIndividual(ctx, tx, companyID, p)
	case labor.OvertimeGroupPayload:
		return d.adjustGroup(ctx, tx, companyID, p)
	default:
		return Outcome{}, fmt.Errorf("%w: %T", labor.ErrUnknownRequestType, p)
	}
}

func (d *Dispatcher) createWorker(ctx context.Context, tx labor.Stores, companyID labor.CompanyID, p labor.NewWorkerPayload) (Outcome, error) {
	now := d.Now().UTC()
	regDate := labor.DateOf(now)
	if p.RegistrationDate != nil {
		regDate = *p.RegistrationDate
	}

	w := labor.Worker{
		ID:               labor.WorkerID(d.NewID()),
		CompanyID:        companyID,
		Name:             p.Name,
		BankName:         p.BankName,
		AccountNumber:    p.AccountNumber,
		PhotoURL:         p.PhotoURL,
		RegistrationDate: regDate,
		Status:           labor.WorkerActive,
		OvertimeHours:    decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.CreateWorker(ctx, w); err != nil {
		return Outcome{}, err
	}
	return Outcome{LinkedWorkerID: &w.ID, Affected: []labor.WorkerID{w.ID}}, nil
}

func (d *Dispatcher) adjustIndividual(ctx context.Context, tx labor.Stores, companyID labor.CompanyID, p labor.OvertimeIndividualPayload) (Outcome, error) {
	w, err := tx.FindWorker(ctx, companyID, p.WorkerID)
	if err != nil {
		return Outcome{}, err
	}
	next, err := labor.ApplyOvertime(w.ID, w.OvertimeHours, p.Hours, p.Deduct)
	if err != nil {
		return Outcome{}, err
	}
	if err := tx.UpdateOvertime(ctx, companyID, w.ID, next); err != nil {
		return Outcome{}, err
	}
	return Outcome{Affected: []labor.WorkerID{w.ID}}, nil
}

// adjustGroup computes every new value before writing any of them, so a
// single would-be-negative worker leaves the whole company untouched.
func (d *Dispatcher) adjustGroup(ctx context.Context, tx labor.Stores, companyID labor.CompanyID, p labor.OvertimeGroupPayload) (Outcome, error) {
	workers, err := tx.FindActiveWorkers(ctx, companyID)
	if err != nil {
		return Outcome{}, err
	}

	next := make([]decimal.Decimal, len(workers))
	for i, w := range workers {
		v, err := labor.ApplyOvertime(w.ID, w.OvertimeHours, p.Hours, p.Deduct)
		if err != nil {
			return Outcome{}, err
		}
		next[i] = v
	}

	affected := make([]labor.WorkerID, 0, len(workers))
	for i, w := range workers {
		if err := tx.UpdateOvertime(ctx, companyID, w.ID, next[i]); err != nil {
			return Outcome{}, err
		}
		affected = append(affected, w.ID)
	}
	return Outcome{Affected: affected}, nil
}
