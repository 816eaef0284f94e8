/*
Package postgres provides a PostgreSQL-backed implementation of the storage interfaces.

PURPOSE:
  Implements leave.TxStore and attendance.Store on a pgx connection pool, for
  deployments where several API processes share one database.

LOCKING:
  Unlike sqlite, writers are not serialised by the process. Inside WithTx:
    - GetRequest reads the leave row with SELECT ... FOR UPDATE, so two
      racing decisions on one request see each other's result
    - LockEmployee locks the employee row, which guards the employee's
      ledger and leave calendar for the rest of the transaction
  Outside a transaction both behave as plain reads.

UNIQUENESS:
  SQLSTATE 23505 on attendance(employee_id, work_date) becomes
  generic.ErrDuplicateAttendance; on transactions.idempotency_key it becomes
  generic.ErrDuplicateIdempotencyKey.

SCHEMA:
  Versioned goose migrations under migrations/, applied by Migrate or the
  `migrate` command. The store never creates tables itself.

SEE ALSO:
  - store/sqlite: Same queries for the embedded backend
  - migrate.go: goose runner
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/leave"
)

const uniqueViolation = "23505"

// Queryer is satisfied by pgxpool.Pool and pgx.Tx.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB is the part of *pgxpool.Pool the store needs.
type DB interface {
	Queryer
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Options configures the connection pool. Zero values keep pgx defaults.
type Options struct {
	DSN             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PoolConfig builds a pgxpool.Config from opts.
func PoolConfig(opts Options) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		cfg.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	return cfg, nil
}

// Store implements all storage interfaces using PostgreSQL.
type Store struct {
	*repo
	db    DB
	close func()
}

var (
	_ leave.TxStore    = (*Store)(nil)
	_ attendance.Store = (*Store)(nil)
)

// Open creates a pool and checks connectivity. The schema must already be
// migrated.
func Open(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := PoolConfig(opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := New(pool)
	s.close = pool.Close
	return s, nil
}

// New wraps an existing pool.
func New(db DB) *Store {
	return &Store{repo: &repo{q: db}, db: db}
}

func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// WithTx runs fn in a read-committed transaction. Row locks taken through
// the store passed to fn are held until commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(&repo{q: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	committed = true
	return nil
}

// =============================================================================
// REPO - Queries shared by the pool and the transactional view
// =============================================================================

type repo struct {
	q    Queryer
	inTx bool
}

func (r *repo) LockEmployee(ctx context.Context, id generic.EntityID) error {
	if !r.inTx {
		return nil
	}
	var locked string
	err := r.q.QueryRow(ctx, `SELECT id FROM employees WHERE id = $1 FOR UPDATE`, string(id)).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return generic.ErrEntityNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: lock employee: %w", err)
	}
	return nil
}

// Ledger

func (r *repo) Append(ctx context.Context, tx generic.Transaction) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO transactions
		(id, entity_id, account, effective_at, delta_value, delta_unit,
		 tx_type, reference_id, reason, idempotency_key, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)`,
		string(tx.ID),
		string(tx.EntityID),
		string(tx.Account),
		tx.EffectiveAt.Time,
		tx.Delta.Value.String(),
		string(tx.Delta.Unit),
		string(tx.Type),
		tx.ReferenceID,
		tx.Reason,
		tx.IdempotencyKey,
		tx.CreatedBy,
		nowIfZero(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("postgres: append transaction: %w", err)
	}
	return nil
}

func (r *repo) Load(ctx context.Context, entityID generic.EntityID, account generic.AccountID) ([]generic.Transaction, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, entity_id, account, effective_at, delta_value::text, delta_unit,
		       tx_type, reference_id, reason, COALESCE(idempotency_key, ''), created_by, created_at
		FROM transactions
		WHERE entity_id = $1 AND account = $2
		ORDER BY effective_at ASC, created_at ASC`,
		string(entityID), string(account),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query transactions: %w", err)
	}
	defer rows.Close()

	txs := []generic.Transaction{}
	for rows.Next() {
		var (
			tx                    generic.Transaction
			id, entity, acct      string
			effectiveAt           time.Time
			deltaValue, deltaUnit string
			txType                string
		)
		err := rows.Scan(&id, &entity, &acct, &effectiveAt, &deltaValue, &deltaUnit,
			&txType, &tx.ReferenceID, &tx.Reason, &tx.IdempotencyKey, &tx.CreatedBy, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		tx.ID = generic.TransactionID(id)
		tx.EntityID = generic.EntityID(entity)
		tx.Account = generic.AccountID(acct)
		tx.EffectiveAt = dateOf(effectiveAt)
		if tx.Delta, err = generic.ParseAmount(deltaValue, generic.Unit(deltaUnit)); err != nil {
			return nil, fmt.Errorf("postgres: transaction %s: delta: %w", id, err)
		}
		tx.Type = generic.TransactionType(txType)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *repo) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE idempotency_key = $1)`,
		idempotencyKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check idempotency key: %w", err)
	}
	return exists, nil
}

// Directory

func (r *repo) SaveEmployee(ctx context.Context, e directory.Employee) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO employees (id, name, email, department_id, role, active, hire_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			department_id = EXCLUDED.department_id,
			role = EXCLUDED.role,
			active = EXCLUDED.active,
			hire_date = EXCLUDED.hire_date`,
		string(e.ID), e.Name, e.Email, e.DepartmentID,
		string(e.Role), e.Active, e.HireDate.Time, nowIfZero(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: save employee: %w", err)
	}
	return nil
}

const employeeColumns = `id, name, email, department_id, role, active, hire_date, created_at`

func scanEmployee(row pgx.Row) (*directory.Employee, error) {
	var (
		e        directory.Employee
		id, role string
		hireDate time.Time
	)
	if err := row.Scan(&id, &e.Name, &e.Email, &e.DepartmentID, &role, &e.Active, &hireDate, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.ID = generic.EntityID(id)
	e.Role = directory.Role(role)
	e.HireDate = dateOf(hireDate)
	return &e, nil
}

func (r *repo) GetEmployee(ctx context.Context, id string) (*directory.Employee, error) {
	e, err := scanEmployee(r.q.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load employee: %w", err)
	}
	return e, nil
}

func (r *repo) ListEmployees(ctx context.Context, activeOnly bool) ([]directory.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list employees: %w", err)
	}
	defer rows.Close()

	out := []directory.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan employee: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *repo) SaveDepartment(ctx context.Context, d directory.Department) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO departments (id, name, manager_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			manager_id = EXCLUDED.manager_id`,
		d.ID, d.Name, string(d.ManagerID), nowIfZero(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: save department: %w", err)
	}
	return nil
}

func scanDepartment(row pgx.Row) (*directory.Department, error) {
	var (
		d         directory.Department
		managerID string
	)
	if err := row.Scan(&d.ID, &d.Name, &managerID, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.ManagerID = generic.EntityID(managerID)
	return &d, nil
}

func (r *repo) GetDepartment(ctx context.Context, id string) (*directory.Department, error) {
	d, err := scanDepartment(r.q.QueryRow(ctx, `SELECT id, name, manager_id, created_at FROM departments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load department: %w", err)
	}
	return d, nil
}

func (r *repo) ListDepartments(ctx context.Context) ([]directory.Department, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, manager_id, created_at FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list departments: %w", err)
	}
	defer rows.Close()

	out := []directory.Department{}
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan department: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Leave requests

func (r *repo) CreateRequest(ctx context.Context, lr leave.LeaveRequest) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO leave_requests
		(id, employee_id, leave_type, reason, start_date, end_date, status,
		 document_ref, document_kind, insured, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		lr.ID, string(lr.EmployeeID), string(lr.Type), lr.Reason,
		lr.Period.Start.Time, lr.Period.End.Time, string(lr.Status),
		lr.DocumentRef, string(lr.DocumentKind), lr.Insured,
		lr.Comment, nowIfZero(lr.CreatedAt), nowIfZero(lr.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: create leave request: %w", err)
	}
	for _, entry := range lr.Audit {
		if err := r.appendAudit(ctx, lr.ID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) UpdateStatus(ctx context.Context, lr leave.LeaveRequest, entry leave.AuditEntry) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE leave_requests SET status = $1, comment = $2, updated_at = $3 WHERE id = $4`,
		string(lr.Status), lr.Comment, nowIfZero(lr.UpdatedAt), lr.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update leave request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrEntityNotFound
	}
	return r.appendAudit(ctx, lr.ID, entry)
}

func (r *repo) appendAudit(ctx context.Context, requestID string, e leave.AuditEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO leave_audit (request_id, actor_id, role, action, status, at, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		requestID, string(e.Actor), string(e.Role), string(e.Action), string(e.Status),
		nowIfZero(e.At), e.Comment,
	)
	if err != nil {
		return fmt.Errorf("postgres: append audit entry: %w", err)
	}
	return nil
}

const requestColumns = `id, employee_id, leave_type, reason, start_date, end_date, status,
	document_ref, document_kind, insured, comment, created_at, updated_at`

func scanRequest(row pgx.Row) (*leave.LeaveRequest, error) {
	var (
		lr                      leave.LeaveRequest
		employeeID, typ, status string
		start, end              time.Time
		docKind                 string
	)
	err := row.Scan(&lr.ID, &employeeID, &typ, &lr.Reason, &start, &end, &status,
		&lr.DocumentRef, &docKind, &lr.Insured, &lr.Comment, &lr.CreatedAt, &lr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lr.EmployeeID = generic.EntityID(employeeID)
	lr.Type = leave.LeaveType(typ)
	lr.Period = generic.Period{Start: dateOf(start), End: dateOf(end)}
	lr.Status = leave.Status(status)
	lr.DocumentKind = leave.DocumentKind(docKind)
	return &lr, nil
}

func (r *repo) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM leave_requests WHERE id = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}
	lr, err := scanRequest(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load leave request: %w", err)
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
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.EmployeeID != "" {
		where = append(where, "employee_id = "+arg(string(f.EmployeeID)))
	}
	if f.DepartmentID != "" {
		where = append(where, "employee_id IN (SELECT id FROM employees WHERE department_id = "+arg(f.DepartmentID)+")")
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		where = append(where, "leave_type = ANY("+arg(types)+")")
	}
	if f.Overlapping != nil {
		where = append(where, "start_date <= "+arg(f.Overlapping.End.Time)+" AND end_date >= "+arg(f.Overlapping.Start.Time))
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list leave requests: %w", err)
	}
	out := []leave.LeaveRequest{}
	for rows.Next() {
		lr, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan leave request: %w", err)
		}
		out = append(out, *lr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list leave requests: %w", err)
	}

	// a pgx connection runs one query at a time
	for i := range out {
		if out[i].Audit, err = r.loadAudit(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *repo) loadAudit(ctx context.Context, requestID string) ([]leave.AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT actor_id, role, action, status, at, comment
		FROM leave_audit WHERE request_id = $1 ORDER BY id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load audit trail: %w", err)
	}
	defer rows.Close()

	var out []leave.AuditEntry
	for rows.Next() {
		var (
			e                           leave.AuditEntry
			actor, role, action, status string
		)
		if err := rows.Scan(&actor, &role, &action, &status, &e.At, &e.Comment); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		e.Actor = generic.EntityID(actor)
		e.Role = directory.Role(role)
		e.Action = leave.AuditAction(action)
		e.Status = leave.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Attendance

func (r *repo) CreateRecord(ctx context.Context, rec attendance.Record) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO attendance
		(id, employee_id, work_date, check_in, check_out, worked_ns, lateness_ns, overtime_ns,
		 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, string(rec.EmployeeID), rec.Date.Time,
		rec.CheckIn, rec.CheckOut,
		int64(rec.Worked), int64(rec.Lateness), int64(rec.Overtime),
		string(rec.Status), nowIfZero(rec.CreatedAt), nowIfZero(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return generic.ErrDuplicateAttendance
		}
		return fmt.Errorf("postgres: create attendance record: %w", err)
	}
	return nil
}

const recordColumns = `id, employee_id, work_date, check_in, check_out, worked_ns, lateness_ns,
	overtime_ns, status, created_at, updated_at`

func scanRecord(row pgx.Row) (*attendance.Record, error) {
	var (
		rec                        attendance.Record
		employeeID, status         string
		workDate                   time.Time
		worked, lateness, overtime int64
	)
	err := row.Scan(&rec.ID, &employeeID, &workDate, &rec.CheckIn, &rec.CheckOut,
		&worked, &lateness, &overtime, &status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.EmployeeID = generic.EntityID(employeeID)
	rec.Date = dateOf(workDate)
	rec.Worked = time.Duration(worked)
	rec.Lateness = time.Duration(lateness)
	rec.Overtime = time.Duration(overtime)
	rec.Status = attendance.Status(status)
	return &rec, nil
}

func (r *repo) GetRecord(ctx context.Context, employeeID generic.EntityID, date generic.TimePoint) (*attendance.Record, error) {
	rec, err := scanRecord(r.q.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM attendance WHERE employee_id = $1 AND work_date = $2`,
		string(employeeID), date.Time))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, generic.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load attendance record: %w", err)
	}
	return rec, nil
}

func (r *repo) CloseRecord(ctx context.Context, rec attendance.Record) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE attendance SET check_out = $1, worked_ns = $2, overtime_ns = $3, updated_at = $4
		WHERE employee_id = $5 AND work_date = $6 AND check_out IS NULL`,
		rec.CheckOut, int64(rec.Worked), int64(rec.Overtime), nowIfZero(rec.UpdatedAt),
		string(rec.EmployeeID), rec.Date.Time,
	)
	if err != nil {
		return fmt.Errorf("postgres: close attendance record: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.EmployeeID != "" {
		where = append(where, "employee_id = "+arg(string(f.EmployeeID)))
	}
	if !f.From.IsZero() {
		where = append(where, "work_date >= "+arg(f.From.Time))
	}
	if !f.To.IsZero() {
		where = append(where, "work_date <= "+arg(f.To.Time))
	}
	query := `SELECT ` + recordColumns + ` FROM attendance`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY work_date, employee_id"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list attendance: %w", err)
	}
	defer rows.Close()

	out := []attendance.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan attendance record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func dateOf(t time.Time) generic.TimePoint {
	return generic.NewTimePoint(t.Year(), t.Month(), t.Day())
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
