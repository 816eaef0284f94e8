/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements leave.TxStore and attendance.Store using SQLite. It is the
  default backend: a single file, no server, good enough for one office.
  store/postgres implements the same interfaces for shared deployments.

INTERFACES IMPLEMENTED:
  generic.Store:       Ledger transactions
  directory.Store:     Employees and departments
  leave.Repository:    Leave requests and their audit trail
  attendance.Repository: Daily attendance records

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on transactions and leave_audit
  - Corrections to a balance are new adjustment transactions

KEY TABLES:
  transactions:    Immutable ledger of balance changes
  employees:       Directory, never deleted
  departments:     Directory
  leave_requests:  Current state of each request
  leave_audit:     Append-only history of each request
  attendance:      One row per employee per day

UNIQUENESS:
  - transactions.idempotency_key: a request is charged at most once
  - attendance(employee_id, work_date): one check-in per day, so of two
    racing check-ins the second fails with generic.ErrDuplicateAttendance

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole SQL transaction, which serialises read-modify-write workflows and
  makes LockEmployee a no-op.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/leavegov.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). PostgreSQL uses versioned goose
  migrations instead (store/postgres/migrations).

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/leave"
)

const timeLayout = time.RFC3339Nano

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ leave.TxStore    = (*Store)(nil)
	_ attendance.Store = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database lives and dies with it, and
	// SQLite has a single writer anyway.
	db.SetMaxOpenConns(1)

	store := NewWithDB(db)
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an open database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
-- Directory
CREATE TABLE IF NOT EXISTS departments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	manager_id TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS employees (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT,
	department_id TEXT,
	role TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	hire_date TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_employees_department ON employees(department_id);

-- Transactions (append-only ledger)
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	account TEXT NOT NULL,
	effective_at TEXT NOT NULL,
	delta_value TEXT NOT NULL,
	delta_unit TEXT NOT NULL,
	tx_type TEXT NOT NULL,
	reference_id TEXT,
	reason TEXT,
	idempotency_key TEXT UNIQUE,
	created_by TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_entity_account_date
	ON transactions(entity_id, account, effective_at);
CREATE INDEX IF NOT EXISTS idx_transactions_reference
	ON transactions(reference_id) WHERE reference_id IS NOT NULL;

-- Leave requests
CREATE TABLE IF NOT EXISTS leave_requests (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL,
	leave_type TEXT NOT NULL,
	reason TEXT,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	status TEXT NOT NULL,
	document_ref TEXT,
	document_kind TEXT,
	insured INTEGER NOT NULL DEFAULT 0,
	comment TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_leave_requests_employee ON leave_requests(employee_id, start_date);
CREATE INDEX IF NOT EXISTS idx_leave_requests_status ON leave_requests(status);

CREATE TABLE IF NOT EXISTS leave_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL REFERENCES leave_requests(id),
	actor_id TEXT NOT NULL,
	role TEXT NOT NULL,
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	at TEXT NOT NULL,
	comment TEXT
);
CREATE INDEX IF NOT EXISTS idx_leave_audit_request ON leave_audit(request_id, id);

-- Attendance: one row per employee and day
CREATE TABLE IF NOT EXISTS attendance (
	id TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL,
	work_date TEXT NOT NULL,
	check_in TEXT,
	check_out TEXT,
	worked_ns INTEGER NOT NULL DEFAULT 0,
	lateness_ns INTEGER NOT NULL DEFAULT 0,
	overtime_ns INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(employee_id, work_date)
);
CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(work_date);
`

// =============================================================================
// LOCKING WRAPPERS
// =============================================================================

func (s *Store) read(fn func(r *repo) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&repo{q: s.db})
}

func (s *Store) write(fn func(r *repo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&repo{q: s.db})
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&repo{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	return s.write(func(r *repo) error { return r.Append(ctx, tx) })
}

func (s *Store) Load(ctx context.Context, entityID generic.EntityID, account generic.AccountID) (out []generic.Transaction, err error) {
	err = s.read(func(r *repo) error { out, err = r.Load(ctx, entityID, account); return err })
	return out, err
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (ok bool, err error) {
	err = s.read(func(r *repo) error { ok, err = r.Exists(ctx, idempotencyKey); return err })
	return ok, err
}

func (s *Store) GetEmployee(ctx context.Context, id string) (out *directory.Employee, err error) {
	err = s.read(func(r *repo) error { out, err = r.GetEmployee(ctx, id); return err })
	return out, err
}

func (s *Store) ListEmployees(ctx context.Context, activeOnly bool) (out []directory.Employee, err error) {
	err = s.read(func(r *repo) error { out, err = r.ListEmployees(ctx, activeOnly); return err })
	return out, err
}

func (s *Store) GetDepartment(ctx context.Context, id string) (out *directory.Department, err error) {
	err = s.read(func(r *repo) error { out, err = r.GetDepartment(ctx, id); return err })
	return out, err
}

func (s *Store) ListDepartments(ctx context.Context) (out []directory.Department, err error) {
	err = s.read(func(r *repo) error { out, err = r.ListDepartments(ctx); return err })
	return out, err
}

func (s *Store) SaveEmployee(ctx context.Context, e directory.Employee) error {
	return s.write(func(r *repo) error { return r.SaveEmployee(ctx, e) })
}

func (s *Store) SaveDepartment(ctx context.Context, d directory.Department) error {
	return s.write(func(r *repo) error { return r.SaveDepartment(ctx, d) })
}

func (s *Store) CreateRequest(ctx context.Context, lr leave.LeaveRequest) error {
	return s.write(func(r *repo) error { return r.CreateRequest(ctx, lr) })
}

func (s *Store) UpdateStatus(ctx context.Context, lr leave.LeaveRequest, entry leave.AuditEntry) error {
	return s.write(func(r *repo) error { return r.UpdateStatus(ctx, lr, entry) })
}

func (s *Store) GetRequest(ctx context.Context, id string) (out *leave.LeaveRequest, err error) {
	err = s.read(func(r *repo) error { out, err = r.GetRequest(ctx, id); return err })
	return out, err
}

func (s *Store) ListRequests(ctx context.Context, f leave.ListFilter) (out []leave.LeaveRequest, err error) {
	err = s.read(func(r *repo) error { out, err = r.ListRequests(ctx, f); return err })
	return out, err
}

func (s *Store) LockEmployee(context.Context, generic.EntityID) error { return nil }

func (s *Store) CreateRecord(ctx context.Context, rec attendance.Record) error {
	return s.write(func(r *repo) error { return r.CreateRecord(ctx, rec) })
}

func (s *Store) GetRecord(ctx context.Context, employeeID generic.EntityID, date generic.TimePoint) (out *attendance.Record, err error) {
	err = s.read(func(r *repo) error { out, err = r.GetRecord(ctx, employeeID, date); return err })
	return out, err
}

func (s *Store) CloseRecord(ctx context.Context, rec attendance.Record) error {
	return s.write(func(r *repo) error { return r.CloseRecord(ctx, rec) })
}

func (s *Store) ListRecords(ctx context.Context, f attendance.RecordFilter) (out []attendance.Record, err error) {
	err = s.read(func(r *repo) error { out, err = r.ListRecords(ctx, f); return err })
	return out, err
}

// =============================================================================
// REPO - Queries shared by the plain store and the transactional view
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repo struct {
	q querier
}

func (r *repo) LockEmployee(context.Context, generic.EntityID) error { return nil }

// Ledger

func (r *repo) Append(ctx context.Context, tx generic.Transaction) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, entity_id, account, effective_at, delta_value, delta_unit,
		 tx_type, reference_id, reason, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID),
		string(tx.EntityID),
		string(tx.Account),
		tx.EffectiveAt.String(),
		tx.Delta.Value.String(),
		string(tx.Delta.Unit),
		string(tx.Type),
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		nullString(tx.CreatedBy),
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (r *repo) Load(ctx context.Context, entityID generic.EntityID, account generic.AccountID) ([]generic.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, entity_id, account, effective_at, delta_value, delta_unit,
		       tx_type, reference_id, reason, idempotency_key, created_by, created_at
		FROM transactions
		WHERE entity_id = ? AND account = ?
		ORDER BY effective_at ASC, created_at ASC`,
		string(entityID), string(account),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []generic.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx                        generic.Transaction
		id, entityID, account     string
		effectiveAt               string
		deltaValue, deltaUnit     string
		txType                    string
		referenceID, reason       sql.NullString
		idempotencyKey, createdBy sql.NullString
		createdAt                 string
	)
	err := rows.Scan(&id, &entityID, &account, &effectiveAt, &deltaValue, &deltaUnit,
		&txType, &referenceID, &reason, &idempotencyKey, &createdBy, &createdAt)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ID = generic.TransactionID(id)
	tx.EntityID = generic.EntityID(entityID)
	tx.Account = generic.AccountID(account)
	if tx.EffectiveAt, err = generic.ParseTimePoint(effectiveAt); err != nil {
		return tx, fmt.Errorf("transaction %s: effective_at: %w", id, err)
	}
	if tx.Delta, err = generic.ParseAmount(deltaValue, generic.Unit(deltaUnit)); err != nil {
		return tx, fmt.Errorf("transaction %s: delta: %w", id, err)
	}
	tx.Type = generic.TransactionType(txType)
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}

func (r *repo) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// Directory

func (r *repo) SaveEmployee(ctx context.Context, e directory.Employee) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, department_id, role, active, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department_id = excluded.department_id,
			role = excluded.role,
			active = excluded.active,
			hire_date = excluded.hire_date`,
		string(e.ID), e.Name, nullString(e.Email), nullString(e.DepartmentID),
		string(e.Role), e.Active, e.HireDate.String(), formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, email, department_id, role, active, hire_date, created_at`

func scanEmployee(row interface{ Scan(...any) error }) (*directory.Employee, error) {
	var (
		e                   directory.Employee
		id, role            string
		email, departmentID sql.NullString
		hireDate, createdAt string
	)
	if err := row.Scan(&id, &e.Name, &email, &departmentID, &role, &e.Active, &hireDate, &createdAt); err != nil {
		return nil, err
	}
	e.ID = generic.EntityID(id)
	e.Email = email.String
	e.DepartmentID = departmentID.String
	e.Role = directory.Role(role)
	e.HireDate, _ = generic.ParseTimePoint(hireDate)
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

func (r *repo) GetEmployee(ctx context.Context, id string) (*directory.Employee, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	return e, nil
}

func (r *repo) ListEmployees(ctx context.Context, activeOnly bool) ([]directory.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	out := []directory.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *repo) SaveDepartment(ctx context.Context, d directory.Department) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO departments (id, name, manager_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			manager_id = excluded.manager_id`,
		d.ID, d.Name, nullString(string(d.ManagerID)), formatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save department: %w", err)
	}
	return nil
}

func scanDepartment(row interface{ Scan(...any) error }) (*directory.Department, error) {
	var (
		d         directory.Department
		managerID sql.NullString
		createdAt string
	)
	if err := row.Scan(&d.ID, &d.Name, &managerID, &createdAt); err != nil {
		return nil, err
	}
	d.ManagerID = generic.EntityID(managerID.String)
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}

func (r *repo) GetDepartment(ctx context.Context, id string) (*directory.Department, error) {
	row := r.q.QueryRowContext(ctx, `SELECT id, name, manager_id, created_at FROM departments WHERE id = ?`, id)
	d, err := scanDepartment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load department: %w", err)
	}
	return d, nil
}

func (r *repo) ListDepartments(ctx context.Context) ([]directory.Department, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, manager_id, created_at FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	out := []directory.Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Leave requests

func (r *repo) CreateRequest(ctx context.Context, lr leave.LeaveRequest) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO leave_requests
		(id, employee_id, leave_type, reason, start_date, end_date, status,
		 document_ref, document_kind, insured, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lr.ID, string(lr.EmployeeID), string(lr.Type), nullString(lr.Reason),
		lr.Period.Start.String(), lr.Period.End.String(), string(lr.Status),
		nullString(lr.DocumentRef), nullString(string(lr.DocumentKind)), lr.Insured,
		nullString(lr.Comment), formatTime(lr.CreatedAt), formatTime(lr.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create leave request: %w", err)
	}
	for _, entry := range lr.Audit {
		if err := r.appendAudit(ctx, lr.ID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) UpdateStatus(ctx context.Context, lr leave.LeaveRequest, entry leave.AuditEntry) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE leave_requests SET status = ?, comment = ?, updated_at = ? WHERE id = ?`,
		string(lr.Status), nullString(lr.Comment), formatTime(lr.UpdatedAt), lr.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return generic.ErrEntityNotFound
	}
	return r.appendAudit(ctx, lr.ID, entry)
}

func (r *repo) appendAudit(ctx context.Context, requestID string, e leave.AuditEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO leave_audit (request_id, actor_id, role, action, status, at, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		requestID, string(e.Actor), string(e.Role), string(e.Action), string(e.Status),
		formatTime(e.At), nullString(e.Comment),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

const requestColumns = `id, employee_id, leave_type, reason, start_date, end_date, status,
	document_ref, document_kind, insured, comment, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*leave.LeaveRequest, error) {
	var (
		lr                      leave.LeaveRequest
		employeeID, typ, status string
		start, end              string
		reason, docRef, docKind sql.NullString
		comment                 sql.NullString
		createdAt, updatedAt    string
	)
	err := row.Scan(&lr.ID, &employeeID, &typ, &reason, &start, &end, &status,
		&docRef, &docKind, &lr.Insured, &comment, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	lr.EmployeeID = generic.EntityID(employeeID)
	lr.Type = leave.LeaveType(typ)
	lr.Reason = reason.String
	lr.Period.Start, _ = generic.ParseTimePoint(start)
	lr.Period.End, _ = generic.ParseTimePoint(end)
	lr.Status = leave.Status(status)
	lr.DocumentRef = docRef.String
	lr.DocumentKind = leave.DocumentKind(docKind.String)
	lr.Comment = comment.String
	lr.CreatedAt = parseTime(createdAt)
	lr.UpdatedAt = parseTime(updatedAt)
	return &lr, nil
}

func (r *repo) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	lr, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load leave request: %w", err)
	}
	if lr.Audit, err = r.loadAudit(ctx, lr.ID); err != nil {
		return nil, err
	}
	return lr, nil
}

func (r *repo) ListRequests(ctx context.Context, f leave.ListFilter) ([]leave.LeaveRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, string(f.EmployeeID))
	}
	if f.DepartmentID != "" {
		where = append(where, "employee_id IN (SELECT id FROM employees WHERE department_id = ?)")
		args = append(args, f.DepartmentID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if len(f.Types) > 0 {
		where = append(where, "leave_type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if f.Overlapping != nil {
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, f.Overlapping.End.String(), f.Overlapping.Start.String())
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	out := []leave.LeaveRequest{}
	for rows.Next() {
		lr, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		out = append(out, *lr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// audit rows are read after the cursor is released
	for i := range out {
		if out[i].Audit, err = r.loadAudit(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *repo) loadAudit(ctx context.Context, requestID string) ([]leave.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT actor_id, role, action, status, at, comment
		FROM leave_audit WHERE request_id = ? ORDER BY id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	defer rows.Close()

	var out []leave.AuditEntry
	for rows.Next() {
		var (
			actor, role, action, status, at string
			comment                         sql.NullString
		)
		if err := rows.Scan(&actor, &role, &action, &status, &at, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, leave.AuditEntry{
			Actor:   generic.EntityID(actor),
			Role:    directory.Role(role),
			Action:  leave.AuditAction(action),
			Status:  leave.Status(status),
			At:      parseTime(at),
			Comment: comment.String,
		})
	}
	return out, rows.Err()
}

// Attendance

func (r *repo) CreateRecord(ctx context.Context, rec attendance.Record) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO attendance
		(id, employee_id, work_date, check_in, check_out, worked_ns, lateness_ns, overtime_ns,
		 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.EmployeeID), rec.Date.String(),
		nullTime(rec.CheckIn), nullTime(rec.CheckOut),
		int64(rec.Worked), int64(rec.Lateness), int64(rec.Overtime),
		string(rec.Status), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateAttendance
		}
		return fmt.Errorf("failed to create attendance record: %w", err)
	}
	return nil
}

const recordColumns = `id, employee_id, work_date, check_in, check_out, worked_ns, lateness_ns,
	overtime_ns, status, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*attendance.Record, error) {
	var (
		rec                          attendance.Record
		employeeID, workDate, status string
		checkIn, checkOut            sql.NullString
		worked, lateness, overtime   int64
		createdAt, updatedAt         string
	)
	err := row.Scan(&rec.ID, &employeeID, &workDate, &checkIn, &checkOut,
		&worked, &lateness, &overtime, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.EmployeeID = generic.EntityID(employeeID)
	rec.Date, _ = generic.ParseTimePoint(workDate)
	rec.CheckIn = parseNullTime(checkIn)
	rec.CheckOut = parseNullTime(checkOut)
	rec.Worked = time.Duration(worked)
	rec.Lateness = time.Duration(lateness)
	rec.Overtime = time.Duration(overtime)
	rec.Status = attendance.Status(status)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func (r *repo) GetRecord(ctx context.Context, employeeID generic.EntityID, date generic.TimePoint) (*attendance.Record, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM attendance WHERE employee_id = ? AND work_date = ?`,
		string(employeeID), date.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance record: %w", err)
	}
	return rec, nil
}

func (r *repo) CloseRecord(ctx context.Context, rec attendance.Record) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE attendance SET check_out = ?, worked_ns = ?, overtime_ns = ?, updated_at = ?
		WHERE employee_id = ? AND work_date = ? AND check_out IS NULL`,
		nullTime(rec.CheckOut), int64(rec.Worked), int64(rec.Overtime), formatTime(rec.UpdatedAt),
		string(rec.EmployeeID), rec.Date.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to close attendance record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to close attendance record: %w", err)
	}
	if n == 0 {
		if _, err := r.GetRecord(ctx, rec.EmployeeID, rec.Date); err != nil {
			return err
		}
		return generic.ErrAlreadyCheckedOut
	}
	return nil
}

func (r *repo) ListRecords(ctx context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, string(f.EmployeeID))
	}
	if !f.From.IsZero() {
		where = append(where, "work_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "work_date <= ?")
		args = append(args, f.To.String())
	}
	query := `SELECT ` + recordColumns + ` FROM attendance`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY work_date, employee_id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	out := []attendance.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
