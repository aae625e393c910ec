/*
Package sqlite provides a SQLite-backed implementation of labor.TxStore.

PURPOSE:
  Persists workers, pending requests, payroll rules and the audit log.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  workers:          One row per worker, keyed by (company_id, id)
  pending_requests: Approval queue; payload stored as JSON
  payroll_rules:    At most one row per company
  audit_log:        Append-only decision history

DECIMALS:
  Hours and money are stored as TEXT (decimal.Decimal.String) and parsed
  back with decimal.NewFromString. No REAL columns. A value that does not
  parse is an error, never zero: an approval must fail rather than write
  over a balance it could not read.

TIMESTAMPS:
  Stored as fixed-width UTC text so that lexical ORDER BY equals time order.
  Ties are broken by rowid (insertion order).

STATUS COMPARE-AND-SWAP:
  UpdateRequestStatus runs UPDATE ... WHERE status = <from>. Zero affected
  rows means another writer got there first (ErrConcurrentModification).

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole callback, so read-check-write sequences inside it are serialized.
  The pool is capped at one connection: every connection to ":memory:"
  is a separate database.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - labor/store.go: Interface definitions
  - labor/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/labor"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements labor.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ labor.TxStore = (*Store)(nil)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		bank_name TEXT NOT NULL DEFAULT '',
		account_number TEXT NOT NULL DEFAULT '',
		photo_url TEXT NOT NULL DEFAULT '',
		registration_date TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('active', 'inactive')),
		overtime_hours TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (company_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_workers_company_status
		ON workers(company_id, status);

	CREATE TABLE IF NOT EXISTS pending_requests (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		request_type TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
		linked_worker_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Approval queue (hot path)
	CREATE INDEX IF NOT EXISTS idx_requests_company_status_created
		ON pending_requests(company_id, status, created_at);

	CREATE INDEX IF NOT EXISTS idx_requests_company_requester
		ON pending_requests(company_id, requested_by);

	CREATE TABLE IF NOT EXISTS payroll_rules (
		company_id TEXT PRIMARY KEY,
		standard_hours_per_day INTEGER NOT NULL,
		daily_rate TEXT NOT NULL,
		overtime_rate TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		request_id TEXT,
		worker_ids_json TEXT,
		detail_json TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_company_at
		ON audit_log(company_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (labor.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(labor.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs with the parent's write lock already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) FindWorker(ctx context.Context, companyID labor.CompanyID, id labor.WorkerID) (*labor.Worker, error) {
	return findWorker(ctx, ts.tx, companyID, id)
}

func (ts *txStore) ListWorkers(ctx context.Context, companyID labor.CompanyID) ([]labor.Worker, error) {
	return listWorkers(ctx, ts.tx, companyID, false)
}

func (ts *txStore) FindActiveWorkers(ctx context.Context, companyID labor.CompanyID) ([]labor.Worker, error) {
	return listWorkers(ctx, ts.tx, companyID, true)
}

func (ts *txStore) CreateWorker(ctx context.Context, w labor.Worker) error {
	return createWorker(ctx, ts.tx, w)
}

func (ts *txStore) UpdateOvertime(ctx context.Context, companyID labor.CompanyID, id labor.WorkerID, hours decimal.Decimal) error {
	return updateOvertime(ctx, ts.tx, companyID, id, hours)
}

func (ts *txStore) SetWorkerStatus(ctx context.Context, companyID labor.CompanyID, id labor.WorkerID, status labor.WorkerStatus) error {
	return setWorkerStatus(ctx, ts.tx, companyID, id, status)
}

func (ts *txStore) UpdateWorker(ctx context.Context, w labor.Worker) error {
	return updateWorker(ctx, ts.tx, w)
}

func (ts *txStore) DeleteWorker(ctx context.Context, companyID labor.CompanyID, id labor.WorkerID) error {
	return deleteWorker(ctx, ts.tx, companyID, id)
}

func (ts *txStore) CreateRequest(ctx context.Context, r labor.PendingRequest) error {
	return createRequest(ctx, ts.tx, r)
}

func (ts *txStore) FindRequest(ctx context.Context, companyID labor.CompanyID, id labor.RequestID) (*labor.PendingRequest, error) {
	return findRequest(ctx, ts.tx, companyID, id)
}

func (ts *txStore) FindPendingRequests(ctx context.Context, companyID labor.CompanyID) ([]labor.PendingRequest, error) {
	return pendingRequests(ctx, ts.tx, companyID)
}

func (ts *txStore) ListRequests(ctx context.Context, filter labor.RequestFilter) ([]labor.PendingRequest, error) {
	return listRequests(ctx, ts.tx, filter)
}

func (ts *txStore) UpdateRequestStatus(ctx context.Context, companyID labor.CompanyID, id labor.RequestID, change labor.StatusChange) error {
	return updateRequestStatus(ctx, ts.tx, companyID, id, change)
}

func (ts *txStore) GetRule(ctx context.Context, companyID labor.CompanyID) (*labor.PayrollRule, error) {
	return getRule(ctx, ts.tx, companyID)
}

func (ts *txStore) SaveRule(ctx context.Context, rule labor.PayrollRule) error {
	return saveRule(ctx, ts.tx, rule)
}

func (ts *txStore) AppendAudit(ctx context.Context, entry labor.AuditEntry) error {
	return appendAudit(ctx, ts.tx, entry)
}

func (ts *txStore) ListAudit(ctx context.Context, companyID labor.CompanyID) ([]labor.AuditEntry, error) {
	return listAudit(ctx, ts.tx, companyID)
}

// =============================================================================
// WORKER STORE
// =============================================================================

func (s *Store) FindWorker(ctx context.Context, companyID labor.CompanyID, id labor.WorkerID) (*labor.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findWorker(ctx, s.db, companyID, id)
}

// ListWorkers returns all workers of a company ordered by id.
func (s *Store) ListWorkers(ctx context.Context, companyID labor.CompanyID) ([]labor.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listWorkers(ctx, s.db, companyID, false)
}

func (s *Store) FindActiveWorkers(ctx context.Context, companyID labor.CompanyID) ([]labor.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listWorkers(ctx, s.db, companyID, true)
}

func (s *Store) CreateWorker(ctx context.Context, w labor.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createWorker(ctx, s.db, w)
}

func (s *Store) UpdateOvertime(ctx context.Context, companyID labor.CompanyID, id labor.WorkerID, hours decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateOvertime(ctx, s.db, companyID, id, hours)
}

func (s *Store) SetWorkerStatus(ctx context.Context, companyID labor.CompanyID, id labor.WorkerID, status labor.WorkerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setWorkerStatus(ctx, s.db, companyID, id, status)
}

func (s *Store) UpdateWorker(ctx context.Context, w labor.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateWorker(ctx, s.db, w)
}

func (s *Store) DeleteWorker(ctx context.Context, companyID labor.CompanyID, id labor.WorkerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWorker(ctx, s.db, companyID, id)
}

const workerColumns = `id, company_id, name, bank_name, account_number, photo_url,
	registration_date, status, overtime_hours, created_at, updated_at`

func findWorker(ctx context.Context, db dbtx, companyID labor.CompanyID, id labor.WorkerID) (*labor.Worker, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE company_id = ? AND id = ?`,
		companyID, id,
	)
	w, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func listWorkers(ctx context.Context, db dbtx, companyID labor.CompanyID, activeOnly bool) ([]labor.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE company_id = ?`
	args := []any{companyID}
	if activeOnly {
		query += ` AND status = ?`
		args = append(args, labor.WorkerActive)
	}
	query += ` ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var workers []labor.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func createWorker(ctx context.Context, db dbtx, w labor.Worker) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO workers (`+workerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		w.ID, w.CompanyID, w.Name, w.BankName, w.AccountNumber, w.PhotoURL,
		w.RegistrationDate.String(), w.Status, w.OvertimeHours.String(),
		formatTime(w.CreatedAt), formatTime(w.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("worker %s already exists", w.ID)
		}
		return fmt.Errorf("failed to insert worker: %w", err)
	}
	return nil
}

func updateOvertime(ctx context.Context, db dbtx, companyID labor.CompanyID, id labor.WorkerID, hours decimal.Decimal) error {
	res, err := db.ExecContext(ctx,
		`UPDATE workers SET overtime_hours = ?, updated_at = ? WHERE company_id = ? AND id = ?`,
		hours.String(), formatTime(time.Now()), companyID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update overtime: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, id))
}

func setWorkerStatus(ctx context.Context, db dbtx, companyID labor.CompanyID, id labor.WorkerID, status labor.WorkerStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE workers SET status = ?, updated_at = ? WHERE company_id = ? AND id = ?`,
		status, formatTime(time.Now()), companyID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update worker status: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, id))
}

func updateWorker(ctx context.Context, db dbtx, w labor.Worker) error {
	res, err := db.ExecContext(ctx, `
		UPDATE workers SET name = ?, bank_name = ?, account_number = ?, photo_url = ?, updated_at = ?
		WHERE company_id = ? AND id = ?
	`,
		w.Name, w.BankName, w.AccountNumber, w.PhotoURL, formatTime(w.UpdatedAt),
		w.CompanyID, w.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update worker: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, w.ID))
}

func deleteWorker(ctx context.Context, db dbtx, companyID labor.CompanyID, id labor.WorkerID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM workers WHERE company_id = ? AND id = ?`, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete worker: %w", err)
	}
	return requireOneRow(res, fmt.Errorf("%w: %s", labor.ErrWorkerNotFound, id))
}

func scanWorker(row scanner) (labor.Worker, error) {
	var (
		w                    labor.Worker
		regDate, overtime    string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&w.ID, &w.CompanyID, &w.Name, &w.BankName, &w.AccountNumber, &w.PhotoURL,
		&regDate, &w.Status, &overtime, &createdAt, &updatedAt,
	)
	if err != nil {
		return w, err
	}
	if w.RegistrationDate, err = labor.ParseDate(regDate); err != nil {
		return w, corruptColumn("workers", string(w.ID), "registration_date", err)
	}
	if w.OvertimeHours, err = decimal.NewFromString(overtime); err != nil {
		return w, corruptColumn("workers", string(w.ID), "overtime_hours", err)
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return w, corruptColumn("workers", string(w.ID), "created_at", err)
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return w, corruptColumn("workers", string(w.ID), "updated_at", err)
	}
	return w, nil
}

// =============================================================================
// REQUEST STORE (approval queue)
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r labor.PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createRequest(ctx, s.db, r)
}

func (s *Store) FindRequest(ctx context.Context, companyID labor.CompanyID, id labor.RequestID) (*labor.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findRequest(ctx, s.db, companyID, id)
}

// FindPendingRequests returns pending requests oldest first.
func (s *Store) FindPendingRequests(ctx context.Context, companyID labor.CompanyID) ([]labor.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pendingRequests(ctx, s.db, companyID)
}

func (s *Store) ListRequests(ctx context.Context, filter labor.RequestFilter) ([]labor.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, filter)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, companyID labor.CompanyID, id labor.RequestID, change labor.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRequestStatus(ctx, s.db, companyID, id, change)
}

const requestColumns = `id, company_id, requested_by, request_type, payload_json, status,
	linked_worker_id, created_at, updated_at`

func createRequest(ctx context.Context, db dbtx, r labor.PendingRequest) error {
	payload, err := labor.EncodePayload(r.Payload)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO pending_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.CompanyID, r.RequestedBy, r.Type, string(payload), r.Status,
		nullWorkerID(r.LinkedWorkerID), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("request %s already exists", r.ID)
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func findRequest(ctx context.Context, db dbtx, companyID labor.CompanyID, id labor.RequestID) (*labor.PendingRequest, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM pending_requests WHERE company_id = ? AND id = ?`,
		companyID, id,
	)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", labor.ErrRequestNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func pendingRequests(ctx context.Context, db dbtx, companyID labor.CompanyID) ([]labor.PendingRequest, error) {
	return queryRequests(ctx, db, `
		SELECT `+requestColumns+` FROM pending_requests
		WHERE company_id = ? AND status = ?
		ORDER BY created_at ASC, rowid ASC
	`, companyID, labor.RequestPending)
}

func listRequests(ctx context.Context, db dbtx, filter labor.RequestFilter) ([]labor.PendingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM pending_requests WHERE company_id = ?`
	args := []any{filter.CompanyID}
	if filter.RequestedBy != "" {
		query += ` AND requested_by = ?`
		args = append(args, filter.RequestedBy)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	return queryRequests(ctx, db, query, args...)
}

func updateRequestStatus(ctx context.Context, db dbtx, companyID labor.CompanyID, id labor.RequestID, change labor.StatusChange) error {
	res, err := db.ExecContext(ctx, `
		UPDATE pending_requests
		SET status = ?, linked_worker_id = COALESCE(?, linked_worker_id), updated_at = ?
		WHERE company_id = ? AND id = ? AND status = ?
	`,
		change.To, nullWorkerID(change.LinkedWorkerID), formatTime(change.At),
		companyID, id, change.From,
	)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Distinguish a missing row from a lost race.
	if _, err := findRequest(ctx, db, companyID, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: request %s is no longer %s", labor.ErrConcurrentModification, id, change.From)
}

func queryRequests(ctx context.Context, db dbtx, query string, args ...any) ([]labor.PendingRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []labor.PendingRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(row scanner) (labor.PendingRequest, error) {
	var (
		r                    labor.PendingRequest
		payloadJSON          string
		linked               sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.RequestedBy, &r.Type, &payloadJSON, &r.Status,
		&linked, &createdAt, &updatedAt,
	)
	if err != nil {
		return r, err
	}

	r.Payload, err = labor.DecodePayload(r.Type, json.RawMessage(payloadJSON))
	if err != nil {
		return r, fmt.Errorf("request %s has corrupt payload: %w", r.ID, err)
	}
	if linked.Valid {
		id := labor.WorkerID(linked.String)
		r.LinkedWorkerID = &id
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, corruptColumn("pending_requests", string(r.ID), "created_at", err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, corruptColumn("pending_requests", string(r.ID), "updated_at", err)
	}
	return r, nil
}

// =============================================================================
// PAYROLL RULE STORE
// =============================================================================

func (s *Store) GetRule(ctx context.Context, companyID labor.CompanyID) (*labor.PayrollRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRule(ctx, s.db, companyID)
}

// SaveRule upserts the company's payroll rule.
func (s *Store) SaveRule(ctx context.Context, rule labor.PayrollRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRule(ctx, s.db, rule)
}

func getRule(ctx context.Context, db dbtx, companyID labor.CompanyID) (*labor.PayrollRule, error) {
	var (
		rule                  labor.PayrollRule
		dailyRate, otRate, at string
	)
	err := db.QueryRowContext(ctx, `
		SELECT company_id, standard_hours_per_day, daily_rate, overtime_rate, updated_at
		FROM payroll_rules WHERE company_id = ?
	`, companyID).Scan(&rule.CompanyID, &rule.StandardWorkingHoursPerDay, &dailyRate, &otRate, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, labor.ErrRuleNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payroll rule: %w", err)
	}
	if rule.DailyRate, err = decimal.NewFromString(dailyRate); err != nil {
		return nil, corruptColumn("payroll_rules", string(companyID), "daily_rate", err)
	}
	if rule.OvertimeRate, err = decimal.NewFromString(otRate); err != nil {
		return nil, corruptColumn("payroll_rules", string(companyID), "overtime_rate", err)
	}
	if rule.UpdatedAt, err = parseTime(at); err != nil {
		return nil, corruptColumn("payroll_rules", string(companyID), "updated_at", err)
	}
	return &rule, nil
}

func saveRule(ctx context.Context, db dbtx, rule labor.PayrollRule) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payroll_rules (company_id, standard_hours_per_day, daily_rate, overtime_rate, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			standard_hours_per_day = excluded.standard_hours_per_day,
			daily_rate = excluded.daily_rate,
			overtime_rate = excluded.overtime_rate,
			updated_at = excluded.updated_at
	`,
		rule.CompanyID, rule.StandardWorkingHoursPerDay,
		rule.DailyRate.String(), rule.OvertimeRate.String(), formatTime(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save payroll rule: %w", err)
	}
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry labor.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, entry)
}

func (s *Store) ListAudit(ctx context.Context, companyID labor.CompanyID) ([]labor.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAudit(ctx, s.db, companyID)
}

func appendAudit(ctx context.Context, db dbtx, e labor.AuditEntry) error {
	workerIDs, err := json.Marshal(e.WorkerIDs)
	if err != nil {
		return fmt.Errorf("failed to encode audit worker ids: %w", err)
	}
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("failed to encode audit detail: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO audit_log (id, company_id, actor_id, action, request_id, worker_ids_json, detail_json, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.CompanyID, e.ActorID, e.Action, nullString(string(e.RequestID)),
		string(workerIDs), string(detail), formatTime(e.At),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func listAudit(ctx context.Context, db dbtx, companyID labor.CompanyID) ([]labor.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, company_id, actor_id, action, request_id, worker_ids_json, detail_json, at
		FROM audit_log WHERE company_id = ?
		ORDER BY at ASC, rowid ASC
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []labor.AuditEntry
	for rows.Next() {
		var (
			e                 labor.AuditEntry
			requestID         sql.NullString
			workerIDs, detail sql.NullString
			at                string
		)
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.ActorID, &e.Action, &requestID, &workerIDs, &detail, &at); err != nil {
			return nil, err
		}
		e.RequestID = labor.RequestID(requestID.String)
		if workerIDs.Valid && workerIDs.String != "" {
			if err := json.Unmarshal([]byte(workerIDs.String), &e.WorkerIDs); err != nil {
				return nil, corruptColumn("audit_log", e.ID, "worker_ids_json", err)
			}
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, corruptColumn("audit_log", e.ID, "detail_json", err)
			}
		}
		var err error
		if e.At, err = parseTime(at); err != nil {
			return nil, corruptColumn("audit_log", e.ID, "at", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func corruptColumn(table, id, column string, err error) error {
	return fmt.Errorf("%s %s has corrupt %s: %w", table, id, column, err)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullWorkerID(id *labor.WorkerID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(string(*id))
}

func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
