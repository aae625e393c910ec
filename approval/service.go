/*
Package approval implements the two-tier approval workflow.

PURPOSE:
  Worker managers submit requests; company admins approve or reject them.
  Approval applies the request's side effect through the Dispatcher and
  flips the status in the same store transaction, so either both happen
  or neither does.

DECIDE FLOW (one WithTx):
  1. Load request scoped to the caller's company  -> ErrRequestNotFound
  2. Require status pending                       -> *TransitionError
  3. Approve: dispatch payload                    -> *DispatchError (rolled back)
  4. Compare-and-swap status pending -> decided
  5. Append audit entry

CONCURRENCY:
  WithTx serializes writers for the whole flow and the status update is a
  compare-and-swap, so two concurrent decisions on one request apply the
  side effect once; the loser sees ErrInvalidTransition.

BATCH:
  ApproveAll is a best-effort sweep. Each request is decided in its own
  transaction; failures are collected and reported, never dropped.

AUTHORIZATION:
  Callers are trusted to have checked the role already (see api/middleware.go).
  Every store call is scoped by AuthContext.CompanyID.

SEE ALSO:
  - dispatcher.go: Side effects per payload type
  - labor/request.go: State diagram
*/
package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/payroll-engine/labor"
)

// =============================================================================
// ACTIONS
// =============================================================================

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q: want approve or reject", s)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store      labor.TxStore
	Dispatcher *Dispatcher
	Log        logrus.FieldLogger
	Now        func() time.Time
	NewID      func() string
}

func NewService(store labor.TxStore, log logrus.FieldLogger) *Service {
	return &Service{
		Store:      store,
		Dispatcher: NewDispatcher(),
		Log:        log,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

// Submit records a new pending request for the caller's company.
func (s *Service) Submit(ctx context.Context, ac labor.AuthContext, p labor.Payload) (*labor.PendingRequest, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: missing payload", labor.ErrInvalidPayload)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	req := labor.PendingRequest{
		ID:          labor.RequestID(s.NewID()),
		CompanyID:   ac.CompanyID,
		RequestedBy: ac.UserID,
		Type:        p.Type(),
		Payload:     p,
		Status:      labor.RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.Store.WithTx(ctx, func(tx labor.Stores) error {
		if err := tx.CreateRequest(ctx, req); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.auditEntry(ac, labor.AuditRequestSubmitted, req.ID, nil, map[string]any{
			"type": req.Type,
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit request: %w", err)
	}

	s.Log.WithFields(logrus.Fields{
		"company_id": ac.CompanyID,
		"request_id": req.ID,
		"type":       req.Type,
	}).Info("request submitted")
	return &req, nil
}

// Decide approves or rejects one pending request.
func (s *Service) Decide(ctx context.Context, ac labor.AuthContext, id labor.RequestID, action Action) (*labor.PendingRequest, error) {
	var decided *labor.PendingRequest

	err := s.Store.WithTx(ctx, func(tx labor.Stores) error {
		req, err := tx.FindRequest(ctx, ac.CompanyID, id)
		if err != nil {
			return err
		}
		if req.Status != labor.RequestPending {
			return &labor.TransitionError{RequestID: req.ID, Status: req.Status}
		}

		now := s.Now().UTC()
		change := labor.StatusChange{From: labor.RequestPending, To: labor.RequestRejected, At: now}
		auditAction := labor.AuditRequestRejected
		var outcome Outcome

		if action == ActionApprove {
			outcome, err = s.Dispatcher.Dispatch(ctx, tx, req.CompanyID, req.Payload)
			if err != nil {
				return &labor.DispatchError{RequestID: req.ID, Type: req.Type, Err: err}
			}
			change.To = labor.RequestApproved
			change.LinkedWorkerID = outcome.LinkedWorkerID
			auditAction = labor.AuditRequestApproved
		}

		if err := tx.UpdateRequestStatus(ctx, ac.CompanyID, req.ID, change); err != nil {
			if errors.Is(err, labor.ErrConcurrentModification) {
				return fmt.Errorf("%w: %v", labor.ErrInvalidTransition, err)
			}
			return err
		}
		if err := tx.AppendAudit(ctx, s.auditEntry(ac, auditAction, req.ID, outcome.Affected, map[string]any{
			"type": req.Type,
		})); err != nil {
			return err
		}

		req.Status = change.To
		req.UpdatedAt = now
		if change.LinkedWorkerID != nil {
			req.LinkedWorkerID = change.LinkedWorkerID
		}
		decided = req
		return nil
	})

	log := s.Log.WithFields(logrus.Fields{
		"company_id": ac.CompanyID,
		"request_id": id,
		"action":     action,
	})
	if err != nil {
		if errors.Is(err, labor.ErrDispatchFailed) {
			log.WithError(err).Warn("request dispatch failed")
		}
		return nil, err
	}
	log.Info("request decided")
	return decided, nil
}

// =============================================================================
// BATCH APPROVAL
// =============================================================================

type BatchFailure struct {
	RequestID labor.RequestID
	Err       error
}

type BatchResult struct {
	ApprovedCount int
	Failures      []BatchFailure
}

// ApproveAll approves every pending request of the caller's company, oldest
// first, each in its own transaction.
func (s *Service) ApproveAll(ctx context.Context, ac labor.AuthContext) (*BatchResult, error) {
	pending, err := s.Store.FindPendingRequests(ctx, ac.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	result := &BatchResult{Failures: []BatchFailure{}}
	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			result.Failures = append(result.Failures, BatchFailure{RequestID: req.ID, Err: err})
			continue
		}
		if _, err := s.Decide(ctx, ac, req.ID, ActionApprove); err != nil {
			result.Failures = append(result.Failures, BatchFailure{RequestID: req.ID, Err: err})
			continue
		}
		result.ApprovedCount++
	}

	s.Log.WithFields(logrus.Fields{
		"company_id": ac.CompanyID,
		"approved":   result.ApprovedCount,
		"failed":     len(result.Failures),
	}).Info("batch approval finished")
	return result, nil
}

// =============================================================================
// DIRECT ADMIN PATHS - Same rules, no pending request
// =============================================================================

// AdjustOvertime applies an overtime payload immediately. Deductions that
// would go negative are rejected exactly as on approval.
func (s *Service) AdjustOvertime(ctx context.Context, ac labor.AuthContext, p labor.Payload) (Outcome, error) {
	switch p.(type) {
	case labor.OvertimeIndividualPayload, labor.OvertimeGroupPayload:
	default:
		return Outcome{}, fmt.Errorf("%w: not an overtime payload", labor.ErrInvalidPayload)
	}
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	var outcome Outcome
	err := s.Store.WithTx(ctx, func(tx labor.Stores) error {
		var err error
		outcome, err = s.Dispatcher.Dispatch(ctx, tx, ac.CompanyID, p)
		if err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.auditEntry(ac, labor.AuditOvertimeAdjusted, "", outcome.Affected, map[string]any{
			"type": p.Type(),
		}))
	})
	if err != nil {
		return Outcome{}, err
	}

	s.Log.WithFields(logrus.Fields{
		"company_id": ac.CompanyID,
		"workers":    len(outcome.Affected),
	}).Info("overtime adjusted")
	return outcome, nil
}

// CreateWorker registers a worker without going through a request.
func (s *Service) CreateWorker(ctx context.Context, ac labor.AuthContext, p labor.NewWorkerPayload) (*labor.Worker, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var created *labor.Worker
	err := s.Store.WithTx(ctx, func(tx labor.Stores) error {
		outcome, err := s.Dispatcher.Dispatch(ctx, tx, ac.CompanyID, p)
		if err != nil {
			return err
		}
		created, err = tx.FindWorker(ctx, ac.CompanyID, *outcome.LinkedWorkerID)
		if err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.auditEntry(ac, labor.AuditWorkerChanged, "", outcome.Affected, map[string]any{
			"change": "created",
		}))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetWorkerStatus activates or deactivates a worker.
func (s *Service) SetWorkerStatus(ctx context.Context, ac labor.AuthContext, id labor.WorkerID, status labor.WorkerStatus) error {
	return s.Store.WithTx(ctx, func(tx labor.Stores) error {
		if err := tx.SetWorkerStatus(ctx, ac.CompanyID, id, status); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.auditEntry(ac, labor.AuditWorkerChanged, "", []labor.WorkerID{id}, map[string]any{
			"status": status,
		}))
	})
}

// UpdateWorker applies patch to a worker's details and returns the result.
func (s *Service) UpdateWorker(ctx context.Context, ac labor.AuthContext, id labor.WorkerID, patch labor.WorkerPatch) (*labor.Worker, error) {
	var updated *labor.Worker
	err := s.Store.WithTx(ctx, func(tx labor.Stores) error {
		w, err := tx.FindWorker(ctx, ac.CompanyID, id)
		if err != nil {
			return err
		}
		if err := patch.Apply(w); err != nil {
			return err
		}
		w.UpdatedAt = s.Now().UTC()
		if err := tx.UpdateWorker(ctx, *w); err != nil {
			return err
		}
		updated = w
		return tx.AppendAudit(ctx, s.auditEntry(ac, labor.AuditWorkerChanged, "", []labor.WorkerID{id}, map[string]any{
			"change": "updated",
		}))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteWorker removes a worker. Requests that still reference it are left
// pending; approving one fails with a dispatch error.
func (s *Service) DeleteWorker(ctx context.Context, ac labor.AuthContext, id labor.WorkerID) error {
	err := s.Store.WithTx(ctx, func(tx labor.Stores) error {
		if err := tx.DeleteWorker(ctx, ac.CompanyID, id); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.auditEntry(ac, labor.AuditWorkerChanged, "", []labor.WorkerID{id}, map[string]any{
			"change": "deleted",
		}))
	})
	if err != nil {
		return err
	}

	s.Log.WithFields(logrus.Fields{
		"company_id": ac.CompanyID,
		"worker_id":  id,
	}).Info("worker deleted")
	return nil
}

func (s *Service) auditEntry(ac labor.AuthContext, action labor.AuditAction, requestID labor.RequestID, workers []labor.WorkerID, detail map[string]any) labor.AuditEntry {
	return labor.AuditEntry{
		ID:        s.NewID(),
		CompanyID: ac.CompanyID,
		ActorID:   ac.UserID,
		Action:    action,
		RequestID: requestID,
		WorkerIDs: workers,
		Detail:    detail,
		At:        s.Now().UTC(),
	}
}
