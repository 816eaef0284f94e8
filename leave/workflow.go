/*
workflow.go - Leave request state machine

PURPOSE:
  Drives a leave request from submission to a terminal state. Every
  transition runs inside TxStore.WithTx so that the status change, the
  audit entry, and (for ordinary leave) the balance deduction commit
  together or not at all.

STATE MACHINE:
  Pending   --manager approve-->  PendingHR
  Pending   --manager reject--->  Rejected
  PendingHR --HR approve------->  Approved   (ordinary leave: deduct balance)
  PendingHR --HR reject-------->  Rejected
  Pending   --owner withdraw--->  Withdrawn  (only if no validator acted)

  Requests filed by a manager have no manager above them in the
  department, so HR may approve or reject them directly from Pending.

ACTORS:
  Submit:        the owning employee
  ManagerDecide: the manager of the requester's department, never on
                 their own request
  HRDecide:      an HR employee, never on their own request

CONCURRENCY:
  Two HR approvals racing on the same request are serialised by the store
  transaction (and a row lock on PostgreSQL). The loser re-reads the
  request, finds it Approved and fails with IllegalTransition; the
  deduction's idempotency key backs this up at the ledger level.

SEE ALSO:
  - balance.go: Deduction and adjustments
  - query.go: Read side (list, stats, calendar, authorized absences)
*/
package leave

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/notify"
)

// Recorder receives workflow events for metrics. All methods must be safe
// for concurrent use.
type Recorder interface {
	LeaveSubmitted(leaveType string)
	LeaveDecided(stage, decision, outcome string)
	NotificationFailed(kind string)
}

type nopRecorder struct{}

func (nopRecorder) LeaveSubmitted(string)                {}
func (nopRecorder) LeaveDecided(string, string, string) {}
func (nopRecorder) NotificationFailed(string)           {}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store    TxStore
	Policy   Policy
	Balance  *BalanceLedger
	Notifier notify.Notifier
	Metrics  Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewEngine(store TxStore, policy Policy, notifier notify.Notifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLog(logger)
	}
	return &Engine{
		Store:    store,
		Policy:   policy,
		Balance:  NewBalanceLedger(),
		Notifier: notifier,
		Metrics:  nopRecorder{},
		Logger:   logger,
		Now:      time.Now,
	}
}

func (e *Engine) now() time.Time { return e.Now().UTC() }

// =============================================================================
// SUBMIT
// =============================================================================

// Submit files a new request in Pending for the actor.
func (e *Engine) Submit(ctx context.Context, actor directory.Actor, in SubmitInput) (*LeaveRequest, error) {
	if err := actor.Require(directory.CapSubmitLeave); err != nil {
		return nil, err
	}
	if in.EmployeeID == "" {
		in.EmployeeID = actor.EmployeeID
	}
	if !actor.Is(in.EmployeeID) {
		return nil, generic.PermissionDenied("leave can only be requested by the employee concerned")
	}
	period, err := validateSubmission(in)
	if err != nil {
		return nil, err
	}

	now := e.now()
	req := LeaveRequest{
		ID:           uuid.NewString(),
		EmployeeID:   in.EmployeeID,
		Type:         in.Type,
		Reason:       strings.TrimSpace(in.Reason),
		Period:       period,
		Status:       StatusPending,
		DocumentRef:  in.DocumentRef,
		DocumentKind: in.DocumentKind,
		Insured:      in.Insured,
		CreatedAt:    now,
		UpdatedAt:    now,
		Audit: []AuditEntry{{
			Actor:  actor.EmployeeID,
			Role:   actor.Role,
			Action: AuditSubmitted,
			Status: StatusPending,
			At:     now,
		}},
	}
	if in.Type != TypeSick {
		req.DocumentKind = ""
	}

	err = e.Store.WithTx(ctx, func(s Store) error {
		if err := s.LockEmployee(ctx, in.EmployeeID); err != nil {
			return err
		}
		emp, err := s.GetEmployee(ctx, string(in.EmployeeID))
		if err != nil {
			return err
		}
		if !emp.Active {
			return generic.Validation("employee %s is not active", emp.ID)
		}

		overlapping, err := s.ListRequests(ctx, ListFilter{
			EmployeeID:  in.EmployeeID,
			Statuses:    ActiveStatuses,
			Overlapping: &period,
		})
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			o := overlapping[0]
			return generic.Validation("dates overlap request %s (%s, %s)", o.ID, o.Period, o.Status)
		}

		if err := e.checkLimit(ctx, s, req); err != nil {
			return err
		}
		return s.CreateRequest(ctx, req)
	})
	if err != nil {
		return nil, generic.Internal(err, "submit leave")
	}

	e.Metrics.LeaveSubmitted(string(req.Type))
	e.Logger.Info("leave submitted",
		zap.String("request_id", req.ID),
		zap.String("employee_id", string(req.EmployeeID)),
		zap.String("type", string(req.Type)),
		zap.Int("days", req.Days()),
	)
	return &req, nil
}

func (e *Engine) checkLimit(ctx context.Context, s Store, req LeaveRequest) error {
	days := req.Days()
	if req.Type == TypeOrdinary {
		ok, err := e.Balance.ReserveCheck(ctx, s, req.EmployeeID, days)
		if err != nil {
			return err
		}
		if !ok {
			return generic.Validation("ordinary leave of %d days exceeds the available balance", days)
		}
		return nil
	}
	if max, bounded := e.Policy.Limit(req.Type); bounded && days > max {
		return generic.Validation("%s leave is limited to %d days, requested %d", req.Type, max, days)
	}
	return nil
}

// =============================================================================
// MANAGER DECISION
// =============================================================================

// ManagerDecide approves (to PendingHR) or rejects a Pending request.
func (e *Engine) ManagerDecide(ctx context.Context, requestID string, actor directory.Actor, decision Decision, comment string) (*LeaveRequest, error) {
	if err := actor.Require(directory.CapManagerDecide); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if err := validateDecision(decision, comment); err != nil {
		return nil, err
	}

	var out LeaveRequest
	err := e.Store.WithTx(ctx, func(s Store) error {
		req, requester, err := e.load(ctx, s, requestID, actor)
		if err != nil {
			return err
		}
		ok, err := directory.IsDepartmentManager(ctx, s, actor, requester)
		if err != nil {
			return err
		}
		if !ok {
			return generic.PermissionDenied("%s does not manage the department of %s", actor.EmployeeID, requester.ID)
		}
		if req.Status != StatusPending {
			return generic.IllegalTransition("manager decision requires status %s, request %s is %s", StatusPending, req.ID, req.Status)
		}

		next := StatusPendingHR
		if decision == DecisionReject {
			next = StatusRejected
		}
		out, err = e.transition(ctx, s, *req, actor, decision, next, comment)
		return err
	})
	e.Metrics.LeaveDecided("manager", string(decision), outcome(err))
	if err != nil {
		return nil, generic.Internal(err, "manager decision")
	}

	e.logDecision("manager", out, actor, decision)
	if out.Status.Terminal() {
		e.notifyDecision(ctx, out, actor, decision)
	}
	return &out, nil
}

// =============================================================================
// HR DECISION
// =============================================================================

// HRDecide approves or rejects a PendingHR request, or a Pending request
// filed by a manager. Approving ordinary leave deducts the balance in the
// same transaction.
func (e *Engine) HRDecide(ctx context.Context, requestID string, actor directory.Actor, decision Decision, comment string) (*LeaveRequest, error) {
	if err := actor.Require(directory.CapHRDecide); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if err := validateDecision(decision, comment); err != nil {
		return nil, err
	}

	var out LeaveRequest
	err := e.Store.WithTx(ctx, func(s Store) error {
		req, requester, err := e.load(ctx, s, requestID, actor)
		if err != nil {
			return err
		}
		if !hrMayDecide(req, requester) {
			return generic.IllegalTransition("HR decision requires status %s, request %s is %s", StatusPendingHR, req.ID, req.Status)
		}

		next := StatusRejected
		if decision == DecisionApprove {
			next = StatusApproved
			if req.Type == TypeOrdinary {
				if err := s.LockEmployee(ctx, req.EmployeeID); err != nil {
					return err
				}
				if err := e.Balance.Deduct(ctx, s, req.EmployeeID, req.ID, req.Days(), actor.EmployeeID); err != nil {
					return err
				}
			}
		}
		out, err = e.transition(ctx, s, *req, actor, decision, next, comment)
		return err
	})
	e.Metrics.LeaveDecided("hr", string(decision), outcome(err))
	if err != nil {
		return nil, generic.Internal(err, "HR decision")
	}

	e.logDecision("hr", out, actor, decision)
	e.notifyDecision(ctx, out, actor, decision)
	return &out, nil
}

func hrMayDecide(req *LeaveRequest, requester *directory.Employee) bool {
	switch req.Status {
	case StatusPendingHR:
		return true
	case StatusPending:
		return requester.Role == directory.RoleManager
	}
	return false
}

// BatchResult is the outcome of one id in HRDecideBatch.
type BatchResult struct {
	RequestID string
	Request   *LeaveRequest
	Err       error
}

// HRDecideBatch applies one decision to many requests. Each request is
// decided in its own transaction; one failure does not affect the others.
func (e *Engine) HRDecideBatch(ctx context.Context, requestIDs []string, actor directory.Actor, decision Decision, comment string) []BatchResult {
	results := make([]BatchResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		req, err := e.HRDecide(ctx, id, actor, decision, comment)
		results = append(results, BatchResult{RequestID: id, Request: req, Err: err})
	}
	return results
}

// =============================================================================
// WITHDRAW
// =============================================================================

// Withdraw lets the owner retract a Pending request no validator has touched.
func (e *Engine) Withdraw(ctx context.Context, requestID string, actor directory.Actor) error {
	err := e.Store.WithTx(ctx, func(s Store) error {
		req, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !actor.Is(req.EmployeeID) {
			return generic.PermissionDenied("only the owner may withdraw request %s", req.ID)
		}
		if req.Status != StatusPending || req.Touched() {
			return generic.IllegalTransition("request %s is %s and can no longer be withdrawn", req.ID, req.Status)
		}
		now := e.now()
		entry := AuditEntry{Actor: actor.EmployeeID, Role: actor.Role, Action: AuditWithdrawn, Status: StatusWithdrawn, At: now}
		req.Status = StatusWithdrawn
		req.UpdatedAt = now
		return s.UpdateStatus(ctx, *req, entry)
	})
	if err != nil {
		return generic.Internal(err, "withdraw leave")
	}
	e.Logger.Info("leave withdrawn", zap.String("request_id", requestID), zap.String("actor", actor.String()))
	return nil
}

// =============================================================================
// ONBOARDING AND BALANCE
// =============================================================================

// Onboard creates an employee and opens their leave account. openingDays
// nil means the policy's opening balance.
func (e *Engine) Onboard(ctx context.Context, actor directory.Actor, emp directory.Employee, openingDays *int) (*directory.Employee, error) {
	if err := actor.Require(directory.CapManageEmployees); err != nil {
		return nil, err
	}
	days := e.Policy.OpeningBalance
	if openingDays != nil {
		days = *openingDays
	}
	if days < 0 {
		return nil, generic.Validation("opening balance cannot be negative")
	}
	now := e.now()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = now
	}
	if emp.HireDate.IsZero() {
		emp.HireDate = generic.DateOf(now, time.UTC)
	}

	err := e.Store.WithTx(ctx, func(s Store) error {
		if err := directory.ValidateEmployee(ctx, s, emp); err != nil {
			return err
		}
		if _, err := s.GetEmployee(ctx, string(emp.ID)); err == nil {
			return generic.Validation("employee %s already exists", emp.ID)
		} else if !generic.IsNotFound(err) {
			return err
		}
		if err := s.SaveEmployee(ctx, emp); err != nil {
			return err
		}
		return e.Balance.Open(ctx, s, emp.ID, days, emp.HireDate)
	})
	if err != nil {
		return nil, generic.Internal(err, "onboard employee")
	}
	e.Logger.Info("employee onboarded", zap.String("employee_id", string(emp.ID)), zap.Int("opening_balance", days))
	return &emp, nil
}

// BalanceOf returns the employee's available days, visible to the employee,
// their department manager, and balance administrators.
func (e *Engine) BalanceOf(ctx context.Context, actor directory.Actor, employeeID generic.EntityID) (generic.Amount, error) {
	if err := e.requireVisibility(ctx, e.Store, actor, employeeID); err != nil {
		return generic.Amount{}, err
	}
	amount, err := e.Balance.Available(ctx, e.Store, employeeID)
	if err != nil {
		return generic.Amount{}, generic.Internal(err, "load balance")
	}
	return amount, nil
}

// EmployeeBalance pairs an employee with their available days.
type EmployeeBalance struct {
	Employee  directory.Employee
	Available generic.Amount
}

// Balances lists the balance of every active employee, ordered by id.
func (e *Engine) Balances(ctx context.Context, actor directory.Actor) ([]EmployeeBalance, error) {
	if err := actor.Require(directory.CapViewAllLeaves); err != nil {
		return nil, err
	}
	emps, err := e.Store.ListEmployees(ctx, true)
	if err != nil {
		return nil, generic.Internal(err, "list employees")
	}
	out := make([]EmployeeBalance, 0, len(emps))
	for _, emp := range emps {
		amount, err := e.Balance.Available(ctx, e.Store, emp.ID)
		if err != nil {
			return nil, generic.Internal(err, "load balance of "+string(emp.ID))
		}
		out = append(out, EmployeeBalance{Employee: emp, Available: amount})
	}
	return out, nil
}

// LedgerOf returns the balance transactions of an employee.
func (e *Engine) LedgerOf(ctx context.Context, actor directory.Actor, employeeID generic.EntityID) ([]generic.Transaction, error) {
	if err := e.requireVisibility(ctx, e.Store, actor, employeeID); err != nil {
		return nil, err
	}
	txs, err := generic.NewLedger(e.Store).Transactions(ctx, employeeID, e.Balance.Account)
	if err != nil {
		return nil, generic.Internal(err, "load ledger")
	}
	return txs, nil
}

// AdjustBalance records a manual correction and returns the new balance.
func (e *Engine) AdjustBalance(ctx context.Context, actor directory.Actor, employeeID generic.EntityID, delta int, reason string) (generic.Amount, error) {
	if err := actor.Require(directory.CapAdjustBalance); err != nil {
		return generic.Amount{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return generic.Amount{}, generic.Validation("an adjustment requires a reason")
	}
	if delta == 0 {
		return generic.Amount{}, generic.Validation("an adjustment must change the balance")
	}

	var after generic.Amount
	err := e.Store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetEmployee(ctx, string(employeeID)); err != nil {
			return err
		}
		if err := s.LockEmployee(ctx, employeeID); err != nil {
			return err
		}
		var err error
		after, err = e.Balance.Adjust(ctx, s, employeeID, delta, reason, actor.EmployeeID)
		return err
	})
	if err != nil {
		return generic.Amount{}, generic.Internal(err, "adjust balance")
	}
	e.Logger.Info("balance adjusted",
		zap.String("employee_id", string(employeeID)),
		zap.Int("delta", delta),
		zap.String("actor", actor.String()),
	)
	return after, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func validateDecision(d Decision, comment string) error {
	switch d {
	case DecisionApprove:
		return nil
	case DecisionReject:
		if comment == "" {
			return generic.Validation("a rejection requires a comment")
		}
		return nil
	}
	return generic.Validation("decision must be approve or reject, got %q", d)
}

// load fetches a request and its requester and refuses self-decisions.
func (e *Engine) load(ctx context.Context, s Store, requestID string, actor directory.Actor) (*LeaveRequest, *directory.Employee, error) {
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Is(req.EmployeeID) {
		return nil, nil, generic.PermissionDenied("you cannot decide on your own request")
	}
	requester, err := s.GetEmployee(ctx, string(req.EmployeeID))
	if err != nil {
		return nil, nil, err
	}
	return req, requester, nil
}

func (e *Engine) transition(ctx context.Context, s Store, req LeaveRequest, actor directory.Actor, decision Decision, next Status, comment string) (LeaveRequest, error) {
	now := e.now()
	action := AuditApproved
	if decision == DecisionReject {
		action = AuditRejected
	}
	entry := AuditEntry{Actor: actor.EmployeeID, Role: actor.Role, Action: action, Status: next, At: now, Comment: comment}

	req.Status = next
	req.UpdatedAt = now
	if comment != "" {
		req.Comment = comment
	}
	if err := s.UpdateStatus(ctx, req, entry); err != nil {
		return LeaveRequest{}, err
	}
	req.Audit = append(append([]AuditEntry(nil), req.Audit...), entry)
	return req, nil
}

func (e *Engine) logDecision(stage string, req LeaveRequest, actor directory.Actor, decision Decision) {
	e.Logger.Info("leave decided",
		zap.String("stage", stage),
		zap.String("request_id", req.ID),
		zap.String("employee_id", string(req.EmployeeID)),
		zap.String("decision", string(decision)),
		zap.String("status", string(req.Status)),
		zap.String("actor", actor.String()),
	)
}

func (e *Engine) notifyDecision(ctx context.Context, req LeaveRequest, actor directory.Actor, decision Decision) {
	n := notify.Notice{
		Kind:       notify.KindLeaveDecision,
		EmployeeID: string(req.EmployeeID),
		RequestID:  req.ID,
		Decision:   string(decision),
		Status:     string(req.Status),
		StartDate:  req.Period.Start.String(),
		EndDate:    req.Period.End.String(),
		Comment:    req.Comment,
		ActorID:    string(actor.EmployeeID),
		At:         req.UpdatedAt,
	}
	if err := e.Notifier.Notify(ctx, n); err != nil {
		e.Metrics.NotificationFailed(string(n.Kind))
		e.Logger.Warn("decision notice not delivered", zap.String("request_id", req.ID), zap.Error(err))
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(generic.KindOf(err))
}
