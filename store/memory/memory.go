// Package memory provides an in-memory store for tests and the demo mode.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements leave.TxStore and attendance.Store. Every method takes
// the store lock; WithTx holds the write lock for the whole callback, which
// serialises transactions and makes LockEmployee a no-op.
type Memory struct {
	mu sync.RWMutex
	st *state
}

var (
	_ leave.TxStore    = (*Memory)(nil)
	_ attendance.Store = (*Memory)(nil)
)

func New() *Memory {
	return &Memory{st: newState()}
}

func (m *Memory) read(fn func(*state) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.st)
}

func (m *Memory) write(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.st)
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(&view{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// Ledger

func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	return m.write(func(s *state) error { return s.append(tx) })
}

func (m *Memory) Load(_ context.Context, entityID generic.EntityID, account generic.AccountID) (out []generic.Transaction, err error) {
	err = m.read(func(s *state) error { out = s.load(entityID, account); return nil })
	return out, err
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (ok bool, err error) {
	err = m.read(func(s *state) error { ok = s.idempotency[idempotencyKey]; return nil })
	return ok, err
}

// Directory

func (m *Memory) GetEmployee(_ context.Context, id string) (out *directory.Employee, err error) {
	err = m.read(func(s *state) error { out, err = s.getEmployee(id); return err })
	return out, err
}

func (m *Memory) ListEmployees(_ context.Context, activeOnly bool) (out []directory.Employee, err error) {
	err = m.read(func(s *state) error { out = s.listEmployees(activeOnly); return nil })
	return out, err
}

func (m *Memory) GetDepartment(_ context.Context, id string) (out *directory.Department, err error) {
	err = m.read(func(s *state) error { out, err = s.getDepartment(id); return err })
	return out, err
}

func (m *Memory) ListDepartments(_ context.Context) (out []directory.Department, err error) {
	err = m.read(func(s *state) error { out = s.listDepartments(); return nil })
	return out, err
}

func (m *Memory) SaveEmployee(_ context.Context, e directory.Employee) error {
	return m.write(func(s *state) error { s.employees[string(e.ID)] = e; return nil })
}

func (m *Memory) SaveDepartment(_ context.Context, d directory.Department) error {
	return m.write(func(s *state) error { s.departments[d.ID] = d; return nil })
}

// Leave requests

func (m *Memory) CreateRequest(_ context.Context, r leave.LeaveRequest) error {
	return m.write(func(s *state) error { return s.createRequest(r) })
}

func (m *Memory) UpdateStatus(_ context.Context, r leave.LeaveRequest, entry leave.AuditEntry) error {
	return m.write(func(s *state) error { return s.updateStatus(r, entry) })
}

func (m *Memory) GetRequest(_ context.Context, id string) (out *leave.LeaveRequest, err error) {
	err = m.read(func(s *state) error { out, err = s.getRequest(id); return err })
	return out, err
}

func (m *Memory) ListRequests(_ context.Context, f leave.ListFilter) (out []leave.LeaveRequest, err error) {
	err = m.read(func(s *state) error { out = s.listRequests(f); return nil })
	return out, err
}

func (m *Memory) LockEmployee(context.Context, generic.EntityID) error { return nil }

// Attendance

func (m *Memory) CreateRecord(_ context.Context, r attendance.Record) error {
	return m.write(func(s *state) error { return s.createRecord(r) })
}

func (m *Memory) GetRecord(_ context.Context, employeeID generic.EntityID, date generic.TimePoint) (out *attendance.Record, err error) {
	err = m.read(func(s *state) error { out, err = s.getRecord(employeeID, date); return err })
	return out, err
}

func (m *Memory) CloseRecord(_ context.Context, r attendance.Record) error {
	return m.write(func(s *state) error { return s.closeRecord(r) })
}

func (m *Memory) ListRecords(_ context.Context, f attendance.RecordFilter) (out []attendance.Record, err error) {
	err = m.read(func(s *state) error { out = s.listRecords(f); return nil })
	return out, err
}

// =============================================================================
// TRANSACTIONAL VIEW - Used inside WithTx, where the lock is already held
// =============================================================================

type view struct {
	st *state
}

func (v *view) Append(_ context.Context, tx generic.Transaction) error { return v.st.append(tx) }

func (v *view) Load(_ context.Context, entityID generic.EntityID, account generic.AccountID) ([]generic.Transaction, error) {
	return v.st.load(entityID, account), nil
}

func (v *view) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return v.st.idempotency[idempotencyKey], nil
}

func (v *view) GetEmployee(_ context.Context, id string) (*directory.Employee, error) {
	return v.st.getEmployee(id)
}

func (v *view) ListEmployees(_ context.Context, activeOnly bool) ([]directory.Employee, error) {
	return v.st.listEmployees(activeOnly), nil
}

func (v *view) GetDepartment(_ context.Context, id string) (*directory.Department, error) {
	return v.st.getDepartment(id)
}

func (v *view) ListDepartments(context.Context) ([]directory.Department, error) {
	return v.st.listDepartments(), nil
}

func (v *view) SaveEmployee(_ context.Context, e directory.Employee) error {
	v.st.employees[string(e.ID)] = e
	return nil
}

func (v *view) SaveDepartment(_ context.Context, d directory.Department) error {
	v.st.departments[d.ID] = d
	return nil
}

func (v *view) CreateRequest(_ context.Context, r leave.LeaveRequest) error {
	return v.st.createRequest(r)
}

func (v *view) UpdateStatus(_ context.Context, r leave.LeaveRequest, entry leave.AuditEntry) error {
	return v.st.updateStatus(r, entry)
}

func (v *view) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	return v.st.getRequest(id)
}

func (v *view) ListRequests(_ context.Context, f leave.ListFilter) ([]leave.LeaveRequest, error) {
	return v.st.listRequests(f), nil
}

func (v *view) LockEmployee(context.Context, generic.EntityID) error { return nil }

// =============================================================================
// STATE
// =============================================================================

type ledgerKey struct {
	entity  generic.EntityID
	account generic.AccountID
}

type recordKey struct {
	employee generic.EntityID
	date     string
}

type state struct {
	transactions map[ledgerKey][]generic.Transaction
	idempotency  map[string]bool
	employees    map[string]directory.Employee
	departments  map[string]directory.Department
	requests     map[string]leave.LeaveRequest
	records      map[recordKey]attendance.Record
}

func newState() *state {
	return &state{
		transactions: make(map[ledgerKey][]generic.Transaction),
		idempotency:  make(map[string]bool),
		employees:    make(map[string]directory.Employee),
		departments:  make(map[string]directory.Department),
		requests:     make(map[string]leave.LeaveRequest),
		records:      make(map[recordKey]attendance.Record),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.transactions {
		c.transactions[k] = append([]generic.Transaction(nil), v...)
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range s.employees {
		c.employees[k] = v
	}
	for k, v := range s.departments {
		c.departments[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = copyRequest(v)
	}
	for k, v := range s.records {
		c.records[k] = v
	}
	return c
}

func copyRequest(r leave.LeaveRequest) leave.LeaveRequest {
	r.Audit = append([]leave.AuditEntry(nil), r.Audit...)
	return r
}

func (s *state) append(tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && s.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	k := ledgerKey{entity: tx.EntityID, account: tx.Account}
	txs := s.transactions[k]

	// keep EffectiveAt order, stable for equal dates
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})
	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	s.transactions[k] = txs

	if tx.IdempotencyKey != "" {
		s.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

func (s *state) load(entityID generic.EntityID, account generic.AccountID) []generic.Transaction {
	txs := s.transactions[ledgerKey{entity: entityID, account: account}]
	return append([]generic.Transaction{}, txs...)
}

func (s *state) getEmployee(id string) (*directory.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return nil, generic.ErrEntityNotFound
	}
	return &e, nil
}

func (s *state) listEmployees(activeOnly bool) []directory.Employee {
	out := make([]directory.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) getDepartment(id string) (*directory.Department, error) {
	d, ok := s.departments[id]
	if !ok {
		return nil, generic.ErrEntityNotFound
	}
	return &d, nil
}

func (s *state) listDepartments() []directory.Department {
	out := make([]directory.Department, 0, len(s.departments))
	for _, d := range s.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) createRequest(r leave.LeaveRequest) error {
	if _, ok := s.requests[r.ID]; ok {
		return generic.ErrDuplicateIdempotencyKey
	}
	s.requests[r.ID] = copyRequest(r)
	return nil
}

func (s *state) updateStatus(r leave.LeaveRequest, entry leave.AuditEntry) error {
	cur, ok := s.requests[r.ID]
	if !ok {
		return generic.ErrEntityNotFound
	}
	cur.Status = r.Status
	cur.Comment = r.Comment
	cur.UpdatedAt = r.UpdatedAt
	cur.Audit = append(append([]leave.AuditEntry(nil), cur.Audit...), entry)
	s.requests[r.ID] = cur
	return nil
}

func (s *state) getRequest(id string) (*leave.LeaveRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, generic.ErrEntityNotFound
	}
	r = copyRequest(r)
	return &r, nil
}

func (s *state) listRequests(f leave.ListFilter) []leave.LeaveRequest {
	out := []leave.LeaveRequest{}
	for _, r := range s.requests {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if f.DepartmentID != "" {
			e, ok := s.employees[string(r.EmployeeID)]
			if !ok || e.DepartmentID != f.DepartmentID {
				continue
			}
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, r.Type) {
			continue
		}
		if f.Overlapping != nil && !r.Period.Overlaps(*f.Overlapping) {
			continue
		}
		out = append(out, copyRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func containsStatus(list []leave.Status, s leave.Status) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func containsType(list []leave.LeaveType, t leave.LeaveType) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func (s *state) createRecord(r attendance.Record) error {
	k := recordKey{employee: r.EmployeeID, date: r.Date.String()}
	if _, ok := s.records[k]; ok {
		return generic.ErrDuplicateAttendance
	}
	s.records[k] = r
	return nil
}

func (s *state) getRecord(employeeID generic.EntityID, date generic.TimePoint) (*attendance.Record, error) {
	r, ok := s.records[recordKey{employee: employeeID, date: date.String()}]
	if !ok {
		return nil, generic.ErrEntityNotFound
	}
	return &r, nil
}

func (s *state) closeRecord(r attendance.Record) error {
	k := recordKey{employee: r.EmployeeID, date: r.Date.String()}
	cur, ok := s.records[k]
	if !ok {
		return generic.ErrEntityNotFound
	}
	if cur.CheckOut != nil {
		return generic.ErrAlreadyCheckedOut
	}
	cur.CheckOut = r.CheckOut
	cur.Worked = r.Worked
	cur.Overtime = r.Overtime
	cur.UpdatedAt = r.UpdatedAt
	s.records[k] = cur
	return nil
}

func (s *state) listRecords(f attendance.RecordFilter) []attendance.Record {
	out := []attendance.Record{}
	for _, r := range s.records {
		if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
			continue
		}
		if !f.From.IsZero() && r.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && r.Date.After(f.To) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}
