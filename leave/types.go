// Package leave implements the leave request workflow: submission, the
// manager then HR approval chain, withdrawal, and the annual balance that
// ordinary leave is charged against.
package leave

import (
	"strings"
	"time"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	TypeOrdinary    LeaveType = "ordinary"
	TypeSick        LeaveType = "sick"
	TypeMaternity   LeaveType = "maternity"
	TypePaternity   LeaveType = "paternity"
	TypeUnpaid      LeaveType = "unpaid"
	TypeExceptional LeaveType = "exceptional"
)

// Types lists every leave type in display order.
var Types = []LeaveType{TypeOrdinary, TypeSick, TypeMaternity, TypePaternity, TypeUnpaid, TypeExceptional}

// ParseLeaveType also accepts the historical French names stored by older
// clients (annuel, maladie, ...).
func ParseLeaveType(s string) (LeaveType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ordinary", "annual", "annuel":
		return TypeOrdinary, nil
	case "sick", "maladie":
		return TypeSick, nil
	case "maternity", "maternite":
		return TypeMaternity, nil
	case "paternity", "paternite":
		return TypePaternity, nil
	case "unpaid", "sans_solde":
		return TypeUnpaid, nil
	case "exceptional", "exceptionnel":
		return TypeExceptional, nil
	}
	return "", generic.Validation("unknown leave type %q", s)
}

// DocumentKind tags the justification attached to a sick leave.
type DocumentKind string

const (
	DocumentCertificate   DocumentKind = "certificate"
	DocumentHealthBooklet DocumentKind = "health_booklet"
)

func ParseDocumentKind(s string) (DocumentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "certificate", "certificat":
		return DocumentCertificate, nil
	case "health_booklet", "carnet":
		return DocumentHealthBooklet, nil
	}
	return "", generic.Validation("unknown document kind %q", s)
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusPendingHR Status = "pending_hr"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusPending, StatusPendingHR, StatusApproved, StatusRejected, StatusWithdrawn}

// ActiveStatuses are the statuses that block an overlapping submission.
var ActiveStatuses = []Status{StatusPending, StatusPendingHR, StatusApproved}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusWithdrawn
}

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", generic.Validation("unknown status %q", s)
}

// =============================================================================
// DECISIONS AND AUDIT TRAIL
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case DecisionApprove:
		return DecisionApprove, nil
	case DecisionReject:
		return DecisionReject, nil
	}
	return "", generic.Validation("decision must be approve or reject, got %q", s)
}

// AuditAction is what an audit entry records.
type AuditAction string

const (
	AuditSubmitted AuditAction = "submitted"
	AuditApproved  AuditAction = "approved"
	AuditRejected  AuditAction = "rejected"
	AuditWithdrawn AuditAction = "withdrawn"
)

// AuditEntry is one line of a request's append-only history.
type AuditEntry struct {
	Actor   generic.EntityID
	Role    directory.Role
	Action  AuditAction
	Status  Status // status after the action
	At      time.Time
	Comment string
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID           string
	EmployeeID   generic.EntityID
	Type         LeaveType
	Reason       string
	Period       generic.Period
	Status       Status
	DocumentRef  string
	DocumentKind DocumentKind
	Insured      bool   // covered by the company insurance scheme
	Comment      string // last validator comment
	Audit        []AuditEntry
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Days is the inclusive duration of the request.
func (r *LeaveRequest) Days() int { return r.Period.Days() }

// Touched reports whether any validator has acted on the request.
func (r *LeaveRequest) Touched() bool {
	for _, e := range r.Audit {
		if e.Action == AuditApproved || e.Action == AuditRejected {
			return true
		}
	}
	return false
}

// ManagerValidator returns the manager decision, if any.
func (r *LeaveRequest) ManagerValidator() *AuditEntry {
	return r.lastDecisionBy(directory.RoleManager)
}

// HRValidator returns the HR decision, if any.
func (r *LeaveRequest) HRValidator() *AuditEntry {
	return r.lastDecisionBy(directory.RoleHR)
}

func (r *LeaveRequest) lastDecisionBy(role directory.Role) *AuditEntry {
	for i := len(r.Audit) - 1; i >= 0; i-- {
		e := r.Audit[i]
		if e.Role == role && (e.Action == AuditApproved || e.Action == AuditRejected) {
			return &e
		}
	}
	return nil
}

// SubmitInput is what an employee provides when requesting leave.
type SubmitInput struct {
	EmployeeID   generic.EntityID
	Type         LeaveType
	Start        generic.TimePoint
	End          generic.TimePoint
	Reason       string
	DocumentRef  string
	DocumentKind DocumentKind
	Insured      bool
}

// ListFilter narrows List and the repository queries. Zero values match all.
type ListFilter struct {
	EmployeeID   generic.EntityID
	DepartmentID string
	Statuses     []Status
	Types        []LeaveType
	Overlapping  *generic.Period
}

// Stats counts requests per status.
type Stats struct {
	Total    int
	ByStatus map[Status]int
}
