// Package store provides an in-memory labor.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/labor"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st state
}

type workerKey struct {
	CompanyID labor.CompanyID
	ID        labor.WorkerID
}

type requestKey struct {
	CompanyID labor.CompanyID
	ID        labor.RequestID
}

// storedRequest keeps insertion order to break CreatedAt ties.
type storedRequest struct {
	labor.PendingRequest
	seq int64
}

type state struct {
	workers  map[workerKey]labor.Worker
	requests map[requestKey]storedRequest
	rules    map[labor.CompanyID]labor.PayrollRule
	audit    []labor.AuditEntry
	seq      int64
}

func NewMemory() *Memory {
	return &Memory{st: state{
		workers:  make(map[workerKey]labor.Worker),
		requests: make(map[requestKey]storedRequest),
		rules:    make(map[labor.CompanyID]labor.PayrollRule),
	}}
}

var _ labor.TxStore = (*Memory)(nil)

// =============================================================================
// LOCKED ENTRY POINTS
// =============================================================================

func (m *Memory) FindWorker(_ context.Context, companyID labor.CompanyID, id labor.WorkerID) (*labor.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findWorker(companyID, id)
}

func (m *Memory) ListWorkers(_ context.Context, companyID labor.CompanyID) ([]labor.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listWorkers(companyID, false), nil
}

func (m *Memory) FindActiveWorkers(_ context.Context, companyID labor.CompanyID) ([]labor.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listWorkers(companyID, true), nil
}

func (m *Memory) CreateWorker(_ context.Context, w labor.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createWorker(w)
}

func (m *Memory) UpdateOvertime(_ context.Context, companyID labor.CompanyID, id labor.WorkerID, hours decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateOvertime(companyID, id, hours)
}

func (m *Memory) SetWorkerStatus(_ context.Context, companyID labor.CompanyID, id labor.WorkerID, status labor.WorkerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.setWorkerStatus(companyID, id, status)
}

func (m *Memory) UpdateWorker(_ context.Context, w labor.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateWorker(w)
}

func (m *Memory) DeleteWorker(_ context.Context, companyID labor.CompanyID, id labor.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.deleteWorker(companyID, id)
}

func (m *Memory) CreateRequest(_ context.Context, r labor.PendingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createRequest(r)
}

func (m *Memory) FindRequest(_ context.Context, companyID labor.CompanyID, id labor.RequestID) (*labor.PendingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findRequest(companyID, id)
}

func (m *Memory) FindPendingRequests(_ context.Context, companyID labor.CompanyID) ([]labor.PendingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.pendingRequests(companyID), nil
}

func (m *Memory) ListRequests(_ context.Context, filter labor.RequestFilter) ([]labor.PendingRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listRequests(filter), nil
}

func (m *Memory) UpdateRequestStatus(_ context.Context, companyID labor.CompanyID, id labor.RequestID, change labor.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateRequestStatus(companyID, id, change)
}

func (m *Memory) GetRule(_ context.Context, companyID labor.CompanyID) (*labor.PayrollRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getRule(companyID)
}

func (m *Memory) SaveRule(_ context.Context, rule labor.PayrollRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.rules[rule.CompanyID] = rule
	return nil
}

func (m *Memory) AppendAudit(_ context.Context, entry labor.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.audit = append(m.st.audit, entry)
	return nil
}

func (m *Memory) ListAudit(_ context.Context, companyID labor.CompanyID) ([]labor.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listAudit(companyID), nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(labor.Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()

	if err := fn(&txView{st: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (s *state) clone() state {
	c := state{
		workers:  make(map[workerKey]labor.Worker, len(s.workers)),
		requests: make(map[requestKey]storedRequest, len(s.requests)),
		rules:    make(map[labor.CompanyID]labor.PayrollRule, len(s.rules)),
		audit:    append([]labor.AuditEntry(nil), s.audit...),
		seq:      s.seq,
	}
	for k, v := range s.workers {
		c.workers[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.rules {
		c.rules[k] = v
	}
	return c
}

// txView runs with the parent's write lock already held.
type txView struct {
	st *state
}

func (tv *txView) FindWorker(_ context.Context, companyID labor.CompanyID, id labor.WorkerID) (*labor.Worker, error) {
	return tv.st.findWorker(companyID, id)
}

func (tv *txView) ListWorkers(_ context.Context, companyID labor.CompanyID) ([]labor.Worker, error) {
	return tv.st.listWorkers(companyID, false), nil
}

func (tv *txView) FindActiveWorkers(_ context.Context, companyID labor.CompanyID) ([]labor.Worker, error) {
	return tv.st.listWorkers(companyID, true), nil
}

func (tv *txView) CreateWorker(_ context.Context, w labor.Worker) error {
	return tv.st.createWorker(w)
}

func (tv *txView) UpdateOvertime(_ context.Context, companyID labor.CompanyID, id labor.WorkerID, hours decimal.Decimal) error {
	return tv.st.updateOvertime(companyID, id, hours)
}

func (tv *txView) SetWorkerStatus(_ context.Context, companyID labor.CompanyID, id labor.WorkerID, status labor.WorkerStatus) error {
	return tv.st.setWorkerStatus(companyID, id, status)
}

func (tv *txView) UpdateWorker(_ context.Context, w labor.Worker) error {
	return tv.st.updateWorker(w)
}

func (tv *txView) DeleteWorker(_ context.Context, companyID labor.CompanyID, id labor.WorkerID) error {
	return tv.st.deleteWorker(companyID, id)
}

func (tv *txView) CreateRequest(_ context.Context, r labor.PendingRequest) error {
	return tv.st.createRequest(r)
}

func (tv *txView) FindRequest(_ context.Context, companyID labor.CompanyID, id labor.RequestID) (*labor.PendingRequest, error) {
	return tv.st.findRequest(companyID, id)
}

func (tv *txView) FindPendingRequests(_ context.Context, companyID labor.CompanyID) ([]labor.PendingRequest, error) {
	return tv.st.pendingRequests(companyID), nil
}

func (tv *txView) ListRequests(_ context.Context, filter labor.RequestFilter) ([]labor.PendingRequest, error) {
	return tv.st.listRequests(filter), nil
}

func (tv *txView) UpdateRequestStatus(_ context.Context, companyID labor.CompanyID, id labor.RequestID, change labor.StatusChange) error {
	return tv.st.updateRequestStatus(companyID, id, change)
}

func (tv *txView) GetRule(_ context.Context, companyID labor.CompanyID) (*labor.PayrollRule, error) {
	return tv.st.getRule(companyID)
}

func (tv *txView) SaveRule(_ context.Context, rule labor.PayrollRule) error {
	tv.st.rules[rule.CompanyID] = rule
	return nil
}

func (tv *txView) AppendAudit(_ context.Context, entry labor.AuditEntry) error {
	tv.st.audit = append(tv.st.audit, entry)
	return nil
}

func (tv *txView) ListAudit(_ context.Context, companyID labor.CompanyID) ([]labor.AuditEntry, error) {
	return tv.st.listAudit(companyID), nil
}

// =============================================================================
// STATE OPERATIONS - Callers hold the lock
// =============================================================================

func (s *state) findWorker(companyID labor.CompanyID, id labor.WorkerID) (*labor.Worker, error) {
	w, ok := s.workers[workerKey{companyID, id}]
	if !ok {
		return nil, fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, id)
	}
	return &w, nil
}

func (s *state) listWorkers(companyID labor.CompanyID, activeOnly bool) []labor.Worker {
	var result []labor.Worker
	for k, w := range s.workers {
		if k.CompanyID != companyID {
			continue
		}
		if activeOnly && !w.IsActive() {
			continue
		}
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *state) createWorker(w labor.Worker) error {
	k := workerKey{w.CompanyID, w.ID}
	if _, exists := s.workers[k]; exists {
		return fmt.Errorf("worker %s already exists", w.ID)
	}
	s.workers[k] = w
	return nil
}

func (s *state) updateOvertime(companyID labor.CompanyID, id labor.WorkerID, hours decimal.Decimal) error {
	k := workerKey{companyID, id}
	w, ok := s.workers[k]
	if !ok {
		return fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, id)
	}
	w.OvertimeHours = hours
	s.workers[k] = w
	return nil
}

func (s *state) setWorkerStatus(companyID labor.CompanyID, id labor.WorkerID, status labor.WorkerStatus) error {
	k := workerKey{companyID, id}
	w, ok := s.workers[k]
	if !ok {
		return fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, id)
	}
	w.Status = status
	s.workers[k] = w
	return nil
}

func (s *state) updateWorker(w labor.Worker) error {
	k := workerKey{w.CompanyID, w.ID}
	stored, ok := s.workers[k]
	if !ok {
		return fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, w.ID)
	}
	stored.Name = w.Name
	stored.BankName = w.BankName
	stored.AccountNumber = w.AccountNumber
	stored.PhotoURL = w.PhotoURL
	stored.UpdatedAt = w.UpdatedAt
	s.workers[k] = stored
	return nil
}

func (s *state) deleteWorker(companyID labor.CompanyID, id labor.WorkerID) error {
	k := workerKey{companyID, id}
	if _, ok := s.workers[k]; !ok {
		return fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, id)
	}
	delete(s.workers, k)
	return nil
}

func (s *state) createRequest(r labor.PendingRequest) error {
	k := requestKey{r.CompanyID, r.ID}
	if _, exists := s.requests[k]; exists {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	s.seq++
	s.requests[k] = storedRequest{PendingRequest: r, seq: s.seq}
	return nil
}

func (s *state) findRequest(companyID labor.CompanyID, id labor.RequestID) (*labor.PendingRequest, error) {
	r, ok := s.requests[requestKey{companyID, id}]
	if !ok {
		return nil, fmt.Errorf("%w: %s", labor.ErrRequestNotFound, id)
	}
	req := r.PendingRequest
	return &req, nil
}

func (s *state) pendingRequests(companyID labor.CompanyID) []labor.PendingRequest {
	matched := s.matchRequests(labor.RequestFilter{CompanyID: companyID, Status: labor.RequestPending})
	sort.Slice(matched, func(i, j int) bool { return olderFirst(matched[i], matched[j]) })
	return unwrap(matched)
}

func (s *state) listRequests(filter labor.RequestFilter) []labor.PendingRequest {
	matched := s.matchRequests(filter)
	sort.Slice(matched, func(i, j int) bool { return olderFirst(matched[j], matched[i]) })
	return unwrap(matched)
}

func (s *state) matchRequests(filter labor.RequestFilter) []storedRequest {
	var matched []storedRequest
	for _, r := range s.requests {
		if filter.Matches(r.PendingRequest) {
			matched = append(matched, r)
		}
	}
	return matched
}

func (s *state) updateRequestStatus(companyID labor.CompanyID, id labor.RequestID, change labor.StatusChange) error {
	k := requestKey{companyID, id}
	r, ok := s.requests[k]
	if !ok {
		return fmt.Errorf("%w: %s", labor.ErrRequestNotFound, id)
	}
	if r.Status != change.From {
		return fmt.Errorf("%w: request %s is %s, expected %s", labor.ErrConcurrentModification, id, r.Status, change.From)
	}
	r.Status = change.To
	r.UpdatedAt = change.At
	if change.LinkedWorkerID != nil {
		l := *change.LinkedWorkerID
		r.LinkedWorkerID = &l
	}
	s.requests[k] = r
	return nil
}

func (s *state) getRule(companyID labor.CompanyID) (*labor.PayrollRule, error) {
	rule, ok := s.rules[companyID]
	if !ok {
		return nil, labor.ErrRuleNotConfigured
	}
	return &rule, nil
}

func (s *state) listAudit(companyID labor.CompanyID) []labor.AuditEntry {
	var result []labor.AuditEntry
	for _, e := range s.audit {
		if e.CompanyID == companyID {
			result = append(result, e)
		}
	}
	return result
}

func olderFirst(a, b storedRequest) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.seq < b.seq
}

func unwrap(rs []storedRequest) []labor.PendingRequest {
	result := make([]labor.PendingRequest, len(rs))
	for i, r := range rs {
		result[i] = r.PendingRequest
	}
	return result
}
