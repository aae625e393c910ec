/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the approval workflow and payroll calculator via REST API.
  Handles HTTP request/response, JSON serialization and input validation,
  and delegates to the approval and payroll packages.

ENDPOINTS:
  GET /healthz                           Liveness plus store ping

  Requests:
    POST   /api/requests                 Submit a request (worker manager)
    GET    /api/requests                 List company requests (?status=)
    GET    /api/requests/pending         Approval queue, oldest first
    GET    /api/requests/mine            Caller's own requests
    POST   /api/requests/approve-all     Approve every pending request
    POST   /api/requests/{id}/approve    Approve one request
    POST   /api/requests/{id}/reject     Reject one request

  Workers:
    GET    /api/workers                  List company workers
    POST   /api/workers                  Direct admin create
    PUT    /api/workers/{id}             Edit name, bank, account, photo
    DELETE /api/workers/{id}             Delete a worker
    PATCH  /api/workers/{id}/status      Activate / deactivate
    POST   /api/workers/overtime         Direct overtime adjustment

  Payroll:
    GET    /api/payroll-rule             Company rule
    PUT    /api/payroll-rule             Upsert company rule
    GET    /api/payroll?start=&end=      Compute payroll for a date range

  Audit:
    GET    /api/audit                    Company decision history

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid token
  - 403: Role not allowed
  - 404: Not found (including other companies' records)
  - 409: Request already processed
  - 412: Payroll rule not configured
  - 422: Approval side effect failed (details say why)
  - 500: Internal errors
  - 503: Store unreachable (health only)

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/labor"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     labor.TxStore
	Approvals *approval.Service
	Payroll   *payroll.Calculator
	Rules     *payroll.Rules
	Log       logrus.FieldLogger

	validate *validator.Validate
}

// NewHandler wires the services over a single store.
func NewHandler(store labor.TxStore, log logrus.FieldLogger) *Handler {
	return &Handler{
		Store:     store,
		Approvals: approval.NewService(store, log),
		Payroll:   payroll.NewCalculator(store, store),
		Rules:     payroll.NewRules(store),
		Log:       log,
		validate:  validator.New(),
	}
}

// pinger is implemented by stores backed by a connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports liveness. Stores that can be pinged are checked too.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.Log.WithError(err).Warn("health check: store unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest records a pending request for the caller's company.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	details, err := unquoteDetails(req.Details)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidPayload, "Invalid details", err)
		return
	}
	payload, err := labor.DecodePayload(labor.RequestType(req.Type), details)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidPayload, "Invalid details", err)
		return
	}

	created, err := h.Approvals.Submit(r.Context(), authFrom(r), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*created))
}

// ListRequests returns the company's requests, newest first.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r)
	filter := labor.RequestFilter{CompanyID: ac.CompanyID}

	if s := r.URL.Query().Get("status"); s != "" {
		status := labor.RequestStatus(s)
		if status != labor.RequestPending && !status.IsTerminal() {
			writeError(w, http.StatusBadRequest, codeValidation, "Invalid status filter", nil)
			return
		}
		filter.Status = status
	}

	requests, err := h.Store.ListRequests(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// ListPendingRequests returns the approval queue, oldest first.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Store.FindPendingRequests(r.Context(), authFrom(r).CompanyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// ListMyRequests returns requests submitted by the caller.
func (h *Handler) ListMyRequests(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r)
	requests, err := h.Store.ListRequests(r.Context(), labor.RequestFilter{
		CompanyID:   ac.CompanyID,
		RequestedBy: ac.UserID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, approval.ActionApprove)
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, approval.ActionReject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action approval.Action) {
	id := labor.RequestID(chi.URLParam(r, "id"))
	decided, err := h.Approvals.Decide(r.Context(), authFrom(r), id, action)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*decided))
}

// ApproveAll approves every pending request; failures are listed, not fatal.
func (h *Handler) ApproveAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.Approvals.ApproveAll(r.Context(), authFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResultDTO(result))
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context(), authFrom(r).CompanyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = toWorkerDTO(wk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateWorker registers a worker directly, bypassing the approval queue.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	worker, err := h.Approvals.CreateWorker(r.Context(), authFrom(r), labor.NewWorkerPayload{
		Name:             req.Name,
		BankName:         req.BankName,
		AccountNumber:    req.AccountNumber,
		PhotoURL:         req.PhotoURL,
		RegistrationDate: req.RegistrationDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerDTO(*worker))
}

// UpdateWorker edits a worker's details.
func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	var req UpdateWorkerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	id := labor.WorkerID(chi.URLParam(r, "id"))
	worker, err := h.Approvals.UpdateWorker(r.Context(), authFrom(r), id, req.Patch())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	id := labor.WorkerID(chi.URLParam(r, "id"))
	if err := h.Approvals.DeleteWorker(r.Context(), authFrom(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateWorkerStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateWorkerStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	status, err := labor.ParseWorkerStatus(req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ac := authFrom(r)
	id := labor.WorkerID(chi.URLParam(r, "id"))
	if err := h.Approvals.SetWorkerStatus(r.Context(), ac, id, status); err != nil {
		h.fail(w, r, err)
		return
	}
	worker, err := h.Store.FindWorker(r.Context(), ac.CompanyID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

// AdjustOvertime applies an overtime change immediately.
func (h *Handler) AdjustOvertime(w http.ResponseWriter, r *http.Request) {
	var req OvertimeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	outcome, err := h.Approvals.AdjustOvertime(r.Context(), authFrom(r), req.Payload())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := OvertimeResultDTO{Workers: make([]string, len(outcome.Affected))}
	for i, id := range outcome.Affected {
		resp.Workers[i] = string(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

func (h *Handler) GetPayrollRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Rules.Get(r.Context(), authFrom(r).CompanyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollRuleDTO(*rule))
}

func (h *Handler) SavePayrollRule(w http.ResponseWriter, r *http.Request) {
	var req PayrollRuleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.Rules.Save(r.Context(), authFrom(r), req.StandardWorkingHoursPerDay, *req.DailyRate, *req.OvertimeRate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollRuleDTO(*rule))
}

// GetPayroll computes payroll for ?start=YYYY-MM-DD&end=YYYY-MM-DD.
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "start and end are required", nil)
		return
	}
	start, err := labor.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid start date", err)
		return
	}
	end, err := labor.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid end date", err)
		return
	}

	period := labor.Period{Start: start, End: end}
	items, err := h.Payroll.Compute(r.Context(), authFrom(r).CompanyID, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollResponse(period, items))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListAudit(r.Context(), authFrom(r).CompanyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeJSON decodes and validates the body, writing a 400 on failure.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidPayload, "Invalid JSON body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "Validation failed", err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _, _ := classify(err)
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeDomainError(w, err)
}

// authFrom is only called behind Authenticate.
func authFrom(r *http.Request) labor.AuthContext {
	ac, _ := AuthContextFrom(r.Context())
	return ac
}

// unquoteDetails accepts details either as an object or as a string
// containing one.
func unquoteDetails(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, err
	}
	if s == "" {
		return nil, errors.New("details is empty")
	}
	return json.RawMessage(s), nil
}
