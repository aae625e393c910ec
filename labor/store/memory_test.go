package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/labor"
	"github.com/warp/payroll-engine/labor/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var t0 = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func worker(company labor.CompanyID, id labor.WorkerID, status labor.WorkerStatus) labor.Worker {
	return labor.Worker{
		ID:               id,
		CompanyID:        company,
		Name:             "Worker " + string(id),
		RegistrationDate: labor.NewDate(2024, time.January, 1),
		Status:           status,
		OvertimeHours:    decimal.Zero,
		CreatedAt:        t0,
		UpdatedAt:        t0,
	}
}

func request(company labor.CompanyID, id labor.RequestID, at time.Time) labor.PendingRequest {
	return labor.PendingRequest{
		ID:          id,
		CompanyID:   company,
		RequestedBy: "mgr-1",
		Type:        labor.RequestOvertimeGroup,
		Payload:     labor.OvertimeGroupPayload{Hours: decimal.NewFromInt(1)},
		Status:      labor.RequestPending,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func requestIDs(rs []labor.PendingRequest) []labor.RequestID {
	ids := make([]labor.RequestID, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

// =============================================================================
// WORKERS
// =============================================================================

func TestMemory_WorkersAreCompanyScoped(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreateWorker(ctx, worker("acme", "w-1", labor.WorkerActive)))

	_, err := m.FindWorker(ctx, "globex", "w-1")
	assert.True(t, errors.Is(err, labor.ErrWorkerNotFound))

	err = m.UpdateOvertime(ctx, "globex", "w-1", decimal.NewFromInt(5))
	assert.True(t, labor.IsNotFound(err))

	got, err := m.FindWorker(ctx, "acme", "w-1")
	require.NoError(t, err)
	assert.True(t, got.OvertimeHours.IsZero())
}

func TestMemory_ActiveWorkersOrderedByID(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreateWorker(ctx, worker("acme", "w-3", labor.WorkerActive)))
	require.NoError(t, m.CreateWorker(ctx, worker("acme", "w-1", labor.WorkerActive)))
	require.NoError(t, m.CreateWorker(ctx, worker("acme", "w-2", labor.WorkerInactive)))

	all, err := m.ListWorkers(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, labor.WorkerID("w-1"), all[0].ID)

	active, err := m.FindActiveWorkers(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, labor.WorkerID("w-1"), active[0].ID)
	assert.Equal(t, labor.WorkerID("w-3"), active[1].ID)
}

func TestMemory_DuplicateWorker(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreateWorker(ctx, worker("acme", "w-1", labor.WorkerActive)))
	assert.Error(t, m.CreateWorker(ctx, worker("acme", "w-1", labor.WorkerActive)))
	// Same id under another company is a different worker.
	assert.NoError(t, m.CreateWorker(ctx, worker("globex", "w-1", labor.WorkerActive)))
}

func TestMemory_UpdateAndDeleteWorkerAreCompanyScoped(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreateWorker(ctx, worker("acme", "w-1", labor.WorkerActive)))

	edit := worker("globex", "w-1", labor.WorkerActive)
	edit.Name = "Hijacked"
	assert.True(t, errors.Is(m.UpdateWorker(ctx, edit), labor.ErrWorkerNotFound))
	assert.True(t, errors.Is(m.DeleteWorker(ctx, "globex", "w-1"), labor.ErrWorkerNotFound))

	edit.CompanyID = "acme"
	edit.Name = "Renamed"
	edit.Status = labor.WorkerInactive
	edit.OvertimeHours = decimal.NewFromInt(99)
	require.NoError(t, m.UpdateWorker(ctx, edit))

	got, err := m.FindWorker(ctx, "acme", "w-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	// Status and overtime are not part of an edit.
	assert.True(t, got.IsActive())
	assert.True(t, got.OvertimeHours.IsZero())

	require.NoError(t, m.DeleteWorker(ctx, "acme", "w-1"))
	_, err = m.FindWorker(ctx, "acme", "w-1")
	assert.True(t, errors.Is(err, labor.ErrWorkerNotFound))
}

// =============================================================================
// REQUESTS
// =============================================================================

func TestMemory_PendingOldestFirstWithInsertionTieBreak(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreateRequest(ctx, request("acme", "r-late", t0.Add(time.Hour))))
	require.NoError(t, m.CreateRequest(ctx, request("acme", "r-b", t0)))
	require.NoError(t, m.CreateRequest(ctx, request("acme", "r-a", t0)))
	require.NoError(t, m.CreateRequest(ctx, request("globex", "r-other", t0)))

	pending, err := m.FindPendingRequests(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []labor.RequestID{"r-b", "r-a", "r-late"}, requestIDs(pending))

	listed, err := m.ListRequests(ctx, labor.RequestFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, []labor.RequestID{"r-late", "r-a", "r-b"}, requestIDs(listed))
}

func TestMemory_UpdateRequestStatusIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.CreateRequest(ctx, request("acme", "r-1", t0)))

	linked := labor.WorkerID("w-7")
	decidedAt := t0.Add(time.Minute)
	require.NoError(t, m.UpdateRequestStatus(ctx, "acme", "r-1", labor.StatusChange{
		From: labor.RequestPending, To: labor.RequestApproved, LinkedWorkerID: &linked, At: decidedAt,
	}))

	// Second swap from pending loses.
	err := m.UpdateRequestStatus(ctx, "acme", "r-1", labor.StatusChange{
		From: labor.RequestPending, To: labor.RequestRejected, At: decidedAt,
	})
	assert.True(t, errors.Is(err, labor.ErrConcurrentModification))

	got, err := m.FindRequest(ctx, "acme", "r-1")
	require.NoError(t, err)
	assert.Equal(t, labor.RequestApproved, got.Status)
	require.NotNil(t, got.LinkedWorkerID)
	assert.Equal(t, linked, *got.LinkedWorkerID)
	assert.True(t, got.UpdatedAt.Equal(decidedAt))

	err = m.UpdateRequestStatus(ctx, "globex", "r-1", labor.StatusChange{From: labor.RequestApproved, To: labor.RequestRejected})
	assert.True(t, errors.Is(err, labor.ErrRequestNotFound))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestMemory_WithTxRollsBackOnError(t *testing.T) {
	// GIVEN: One worker with 2 hours
	ctx := context.Background()
	m := store.NewMemory()
	w := worker("acme", "w-1", labor.WorkerActive)
	w.OvertimeHours = decimal.NewFromInt(2)
	require.NoError(t, m.CreateWorker(ctx, w))

	// WHEN: A transaction writes several tables, then fails
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx labor.Stores) error {
		require.NoError(t, tx.UpdateOvertime(ctx, "acme", "w-1", decimal.NewFromInt(9)))
		require.NoError(t, tx.CreateRequest(ctx, request("acme", "r-1", t0)))
		require.NoError(t, tx.AppendAudit(ctx, labor.AuditEntry{ID: "a-1", CompanyID: "acme"}))
		return boom
	})

	// THEN: Nothing sticks
	assert.ErrorIs(t, err, boom)
	got, err := m.FindWorker(ctx, "acme", "w-1")
	require.NoError(t, err)
	assert.True(t, got.OvertimeHours.Equal(decimal.NewFromInt(2)))

	_, err = m.FindRequest(ctx, "acme", "r-1")
	assert.True(t, labor.IsNotFound(err))

	entries, err := m.ListAudit(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemory_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.WithTx(ctx, func(tx labor.Stores) error {
		if err := tx.CreateWorker(ctx, worker("acme", "w-1", labor.WorkerActive)); err != nil {
			return err
		}
		return tx.SaveRule(ctx, labor.PayrollRule{CompanyID: "acme", StandardWorkingHoursPerDay: 8})
	})
	require.NoError(t, err)

	_, err = m.FindWorker(ctx, "acme", "w-1")
	assert.NoError(t, err)
	rule, err := m.GetRule(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 8, rule.StandardWorkingHoursPerDay)
}

// =============================================================================
// RULES AND AUDIT
// =============================================================================

func TestMemory_RuleNotConfigured(t *testing.T) {
	_, err := store.NewMemory().GetRule(context.Background(), "acme")
	assert.ErrorIs(t, err, labor.ErrRuleNotConfigured)
}

func TestMemory_AuditIsCompanyScoped(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.AppendAudit(ctx, labor.AuditEntry{ID: "a-1", CompanyID: "acme", Action: labor.AuditRequestApproved}))
	require.NoError(t, m.AppendAudit(ctx, labor.AuditEntry{ID: "a-2", CompanyID: "globex", Action: labor.AuditRuleChanged}))
	require.NoError(t, m.AppendAudit(ctx, labor.AuditEntry{ID: "a-3", CompanyID: "acme", Action: labor.AuditRequestRejected}))

	entries, err := m.ListAudit(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a-1", entries[0].ID)
	assert.Equal(t, "a-3", entries[1].ID)
}
