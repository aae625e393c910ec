/*
handlers_test.go - HTTP tests for the payroll engine API

Tests for:
- Authentication and role enforcement
- Submit / approve / reject flow and its error codes
- Batch approval reporting
- Payroll rule and payroll computation endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/auth"
	"github.com/warp/payroll-engine/labor"
	"github.com/warp/payroll-engine/logging"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const testSecret = "handler-test-secret"

var (
	managerAC = labor.AuthContext{UserID: "mgr-1", CompanyID: "acme", Role: labor.RoleWorkerManager}
	adminAC   = labor.AuthContext{UserID: "admin-1", CompanyID: "acme", Role: labor.RoleCompanyAdmin}
	rivalAC   = labor.AuthContext{UserID: "admin-9", CompanyID: "globex", Role: labor.RoleCompanyAdmin}
	superAC   = labor.AuthContext{UserID: "root", CompanyID: "acme", Role: labor.RoleSuperAdmin}
)

type testServer struct {
	t      *testing.T
	store  *sqlite.Store
	router *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, logging.Discard())
	router := NewRouter(h, Options{JWTSecret: testSecret})
	return &testServer{t: t, store: store, router: router}
}

func tokenFor(t *testing.T, ac labor.AuthContext) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, auth.ClaimsFor(ac), time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(ac *labor.AuthContext, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ac != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(s.t, *ac))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (s *testServer) seedWorker(id labor.WorkerID, ot string) {
	s.t.Helper()
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(s.t, s.store.CreateWorker(context.Background(), labor.Worker{
		ID:               id,
		CompanyID:        "acme",
		Name:             "Worker " + string(id),
		BankName:         "CBE",
		AccountNumber:    "001",
		RegistrationDate: labor.DateOf(now),
		Status:           labor.WorkerActive,
		OvertimeHours:    decimal.RequireFromString(ot),
		CreatedAt:        now,
		UpdatedAt:        now,
	}))
}

func (s *testServer) submit(typ string, details any) RequestDTO {
	s.t.Helper()
	rec := s.do(&managerAC, http.MethodPost, "/api/requests", map[string]any{"type": typ, "details": details})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[RequestDTO](s.t, rec)
}

// =============================================================================
// AUTHENTICATION AND ROLES
// =============================================================================

func TestHealth_NoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_StoreUnreachableIs503(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Close())

	rec := s.do(nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuth_MissingOrBadToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(nil, http.MethodGet, "/api/workers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeUnauthorized, decode[ErrorResponse](t, rec).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/workers", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	bad := httptest.NewRecorder()
	s.router.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestRoles_ManagerCannotDecide(t *testing.T) {
	s := newTestServer(t)
	created := s.submit("new_worker", map[string]any{"name": "Abebe"})

	rec := s.do(&managerAC, http.MethodPost, "/api/requests/"+created.ID+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, codeForbidden, decode[ErrorResponse](t, rec).Code)

	rec = s.do(&managerAC, http.MethodGet, "/api/payroll?start=2024-01-01&end=2024-01-31", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoles_SuperAdminPassesEveryCheck(t *testing.T) {
	s := newTestServer(t)
	created := s.submit("new_worker", map[string]any{"name": "Abebe"})

	rec := s.do(&superAC, http.MethodPost, "/api/requests/"+created.ID+"/approve", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// REQUEST FLOW
// =============================================================================

func TestSubmitAndApprove_NewWorker(t *testing.T) {
	// GIVEN: A manager submits a new worker request
	s := newTestServer(t)
	created := s.submit("new_worker", map[string]any{"name": "Abebe", "bankName": "CBE", "accountNumber": "123"})
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "mgr-1", created.RequestedBy)

	// WHEN: The admin approves it
	rec := s.do(&adminAC, http.MethodPost, "/api/requests/"+created.ID+"/approve", nil)

	// THEN: Request approved and linked; worker listed
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[RequestDTO](t, rec)
	assert.Equal(t, "approved", approved.Status)
	require.NotNil(t, approved.LinkedWorkerID)

	rec = s.do(&managerAC, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workers := decode[[]WorkerDTO](t, rec)
	require.Len(t, workers, 1)
	assert.Equal(t, *approved.LinkedWorkerID, workers[0].ID)
	assert.Equal(t, "active", workers[0].Status)
	assert.True(t, workers[0].OvertimeHours.IsZero())
}

func TestSubmit_DetailsAsString(t *testing.T) {
	s := newTestServer(t)
	created := s.submit("overtime_group", `{"hours":"2","deduct":false}`)
	assert.Equal(t, "overtime_group", created.Type)
}

func TestSubmit_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"unknown type", map[string]any{"type": "raise", "details": map[string]any{}}, codeValidation},
		{"missing details", map[string]any{"type": "new_worker"}, codeValidation},
		{"bad details", map[string]any{"type": "overtime_individual", "details": map[string]any{"hours": "1"}}, codeInvalidPayload},
		{"negative hours", map[string]any{"type": "overtime_group", "details": map[string]any{"hours": "-1"}}, codeInvalidPayload},
		{"malformed json", `{"type":`, codeInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(&managerAC, http.MethodPost, "/api/requests", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestDecide_AlreadyProcessedIs409(t *testing.T) {
	s := newTestServer(t)
	created := s.submit("new_worker", map[string]any{"name": "Abebe"})

	rec := s.do(&adminAC, http.MethodPost, "/api/requests/"+created.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rejected", decode[RequestDTO](t, rec).Status)

	rec = s.do(&adminAC, http.MethodPost, "/api/requests/"+created.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeInvalidTransition, decode[ErrorResponse](t, rec).Code)
}

func TestDecide_NegativeOvertimeIs422(t *testing.T) {
	s := newTestServer(t)
	s.seedWorker("w-1", "2")
	created := s.submit("overtime_individual", map[string]any{"workerId": "w-1", "hours": "5", "deduct": true})

	rec := s.do(&adminAC, http.MethodPost, "/api/requests/"+created.ID+"/approve", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, codeDispatchFailed, body.Code)
	assert.Contains(t, body.Details, "would make overtime negative")

	w, err := s.store.FindWorker(context.Background(), "acme", "w-1")
	require.NoError(t, err)
	assert.Equal(t, "2", w.OvertimeHours.String())
}

func TestDecide_OtherCompanyIs404(t *testing.T) {
	s := newTestServer(t)
	created := s.submit("new_worker", map[string]any{"name": "Abebe"})

	rec := s.do(&rivalAC, http.MethodPost, "/api/requests/"+created.ID+"/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decode[ErrorResponse](t, rec).Code)
}

func TestListRequests_PendingMineAndFilter(t *testing.T) {
	s := newTestServer(t)
	first := s.submit("new_worker", map[string]any{"name": "A"})
	second := s.submit("new_worker", map[string]any{"name": "B"})
	require.Equal(t, http.StatusOK, s.do(&adminAC, http.MethodPost, "/api/requests/"+second.ID+"/reject", nil).Code)

	rec := s.do(&adminAC, http.MethodGet, "/api/requests/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]RequestDTO](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	rec = s.do(&adminAC, http.MethodGet, "/api/requests?status=rejected", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decode[[]RequestDTO](t, rec)
	require.Len(t, rejected, 1)
	assert.Equal(t, second.ID, rejected[0].ID)

	rec = s.do(&adminAC, http.MethodGet, "/api/requests?status=weird", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(&managerAC, http.MethodGet, "/api/requests/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]RequestDTO](t, rec), 2)

	rec = s.do(&adminAC, http.MethodGet, "/api/requests/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]RequestDTO](t, rec))
}

func TestApproveAll_ReportsFailures(t *testing.T) {
	s := newTestServer(t)
	s.seedWorker("w-1", "1")
	s.submit("overtime_individual", map[string]any{"workerId": "w-1", "hours": "1"})
	bad := s.submit("overtime_individual", map[string]any{"workerId": "w-1", "hours": "9", "deduct": true})

	rec := s.do(&adminAC, http.MethodPost, "/api/requests/approve-all", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[BatchResultDTO](t, rec)
	assert.Equal(t, 1, result.ApprovedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bad.ID, result.Failures[0].RequestID)
	assert.Equal(t, codeDispatchFailed, result.Failures[0].Code)
}

// =============================================================================
// WORKERS
// =============================================================================

func TestWorkers_DirectAdminPaths(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(&adminAC, http.MethodPost, "/api/workers", map[string]any{"name": "Sara", "registrationDate": "2023-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	w := decode[WorkerDTO](t, rec)
	assert.Equal(t, "2023-06-01", w.RegistrationDate.String())

	rec = s.do(&adminAC, http.MethodPost, "/api/workers/overtime", map[string]any{"workerId": w.ID, "hours": "4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{w.ID}, decode[OvertimeResultDTO](t, rec).Workers)

	rec = s.do(&adminAC, http.MethodPost, "/api/workers/overtime", map[string]any{"allWorkers": true, "hours": "5", "deduct": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeNegativeOvertime, decode[ErrorResponse](t, rec).Code)

	rec = s.do(&adminAC, http.MethodPost, "/api/workers/overtime", map[string]any{"hours": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// One worker or all of them, not both.
	rec = s.do(&adminAC, http.MethodPost, "/api/workers/overtime", map[string]any{"workerId": w.ID, "allWorkers": true, "hours": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeValidation, decode[ErrorResponse](t, rec).Code)

	rec = s.do(&adminAC, http.MethodPatch, "/api/workers/"+w.ID+"/status", map[string]any{"status": "inactive"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[WorkerDTO](t, rec)
	assert.Equal(t, "inactive", updated.Status)
	assert.Equal(t, "4", updated.OvertimeHours.String())

	rec = s.do(&adminAC, http.MethodPatch, "/api/workers/nope/status", map[string]any{"status": "active"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(&managerAC, http.MethodPost, "/api/workers", map[string]any{"name": "Sneaky"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWorkers_EditAndDelete(t *testing.T) {
	s := newTestServer(t)
	s.seedWorker("w-1", "3")

	rec := s.do(&adminAC, http.MethodPut, "/api/workers/w-1", map[string]any{"name": "Dawit A.", "photoUrl": "/uploads/dawit.jpg"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[WorkerDTO](t, rec)
	assert.Equal(t, "Dawit A.", edited.Name)
	assert.Equal(t, "CBE", edited.BankName)
	assert.Equal(t, "/uploads/dawit.jpg", edited.PhotoURL)
	assert.Equal(t, "3", edited.OvertimeHours.String())

	rec = s.do(&adminAC, http.MethodPut, "/api/workers/w-1", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(&adminAC, http.MethodPut, "/api/workers/w-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(&rivalAC, http.MethodPut, "/api/workers/w-1", map[string]any{"name": "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(&managerAC, http.MethodDelete, "/api/workers/w-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(&adminAC, http.MethodDelete, "/api/workers/w-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(&adminAC, http.MethodDelete, "/api/workers/w-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDecide_DeletedWorkerIs422AndStaysPending(t *testing.T) {
	// GIVEN: A pending overtime request whose worker is deleted before approval
	s := newTestServer(t)
	s.seedWorker("w-1", "1")
	created := s.submit("overtime_individual", map[string]any{"workerId": "w-1", "hours": "2"})
	rec := s.do(&adminAC, http.MethodDelete, "/api/workers/w-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// WHEN: The admin approves it
	rec = s.do(&adminAC, http.MethodPost, "/api/requests/"+created.ID+"/approve", nil)

	// THEN: 422 dispatch_failed naming the missing worker; request still pending
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, codeDispatchFailed, body.Code)
	assert.Contains(t, body.Details, "worker not found")

	req, err := s.store.FindRequest(context.Background(), "acme", labor.RequestID(created.ID))
	require.NoError(t, err)
	assert.Equal(t, labor.RequestPending, req.Status)
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestPayroll_RuleMissingIs412(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(&adminAC, http.MethodGet, "/api/payroll?start=2024-01-01&end=2024-01-05", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, codeRuleNotConfigured, decode[ErrorResponse](t, rec).Code)

	rec = s.do(&managerAC, http.MethodGet, "/api/payroll-rule", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestPayroll_ComputesBreakdown(t *testing.T) {
	// GIVEN: Rule 8h / 400 / 100 and one active worker with 10 OT hours
	s := newTestServer(t)
	s.seedWorker("w-1", "10")

	rec := s.do(&adminAC, http.MethodPut, "/api/payroll-rule", map[string]any{
		"standardWorkingHoursPerDay": 8,
		"dailyRate":                  "400",
		"overtimeRate":               "100",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Computing for five days
	rec = s.do(&adminAC, http.MethodGet, "/api/payroll?start=2024-01-01&end=2024-01-05", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: 3000 total, money as strings
	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	items := raw["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, "w-1", line["workerId"])
	assert.Equal(t, float64(5), line["daysWorked"])
	assert.Equal(t, float64(40), line["regularHours"])
	assert.Equal(t, "2000", line["dailyPay"])
	assert.Equal(t, "1000", line["overtimePay"])
	assert.Equal(t, "3000", line["totalPay"])

	totals := raw["totals"].(map[string]any)
	assert.Equal(t, "3000", totals["totalPay"])
	period := raw["period"].(map[string]any)
	assert.Equal(t, "2024-01-01", period["start"])
}

func TestPayroll_BadQuery(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/payroll",
		"/api/payroll?start=2024-01-01",
		"/api/payroll?start=01/01/2024&end=2024-01-05",
		"/api/payroll?start=2024-02-01&end=2024-01-05",
	} {
		rec := s.do(&adminAC, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestPayrollRule_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(&adminAC, http.MethodPut, "/api/payroll-rule", map[string]any{"standardWorkingHoursPerDay": 0, "dailyRate": "1", "overtimeRate": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(&adminAC, http.MethodPut, "/api/payroll-rule", map[string]any{"standardWorkingHoursPerDay": 8, "dailyRate": "-5", "overtimeRate": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeValidation, decode[ErrorResponse](t, rec).Code)

	rec = s.do(&managerAC, http.MethodPut, "/api/payroll-rule", map[string]any{"standardWorkingHoursPerDay": 8, "dailyRate": "1", "overtimeRate": "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_ListsDecisions(t *testing.T) {
	s := newTestServer(t)
	created := s.submit("new_worker", map[string]any{"name": "Abebe"})
	require.Equal(t, http.StatusOK, s.do(&adminAC, http.MethodPost, "/api/requests/"+created.ID+"/approve", nil).Code)

	rec := s.do(&adminAC, http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]AuditEntryDTO](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, string(labor.AuditRequestSubmitted), entries[0].Action)
	assert.Equal(t, string(labor.AuditRequestApproved), entries[1].Action)
	assert.Equal(t, created.ID, entries[1].RequestID)

	rec = s.do(&rivalAC, http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]AuditEntryDTO](t, rec))
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestClassify_Precedence(t *testing.T) {
	dispatch := &labor.DispatchError{RequestID: "r", Type: labor.RequestOvertimeIndividual, Err: labor.ErrWorkerNotFound}
	status, code, _ := classify(dispatch)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, codeDispatchFailed, code)

	status, _, _ = classify(labor.ErrConcurrentModification)
	assert.Equal(t, http.StatusConflict, status)

	status, code, _ = classify(context.DeadlineExceeded)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, codeInternal, code)
}

func TestInternalErrorsHideDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, decode[ErrorResponse](t, rec).Details)
}
