// Package attendance records daily check-ins and check-outs and derives
// lateness, overtime, absence reports and rolling lateness totals from them.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
)

// =============================================================================
// RECORD
// =============================================================================

// Status is derived from the check-in time, never set by callers.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusOnLeave Status = "on_leave" // report-only, never stored
)

// Record is the single attendance row of an employee for one day.
type Record struct {
	ID         string
	EmployeeID generic.EntityID
	Date       generic.TimePoint
	CheckIn    *time.Time
	CheckOut   *time.Time
	Worked     time.Duration
	Lateness   time.Duration
	Overtime   time.Duration
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecordFilter narrows ListRecords. Empty EmployeeID matches everyone.
type RecordFilter struct {
	EmployeeID generic.EntityID
	From       generic.TimePoint
	To         generic.TimePoint
}

// =============================================================================
// STORAGE AND COLLABORATORS
// =============================================================================

// Repository persists attendance records.
type Repository interface {
	// CreateRecord inserts a new record. It returns
	// generic.ErrDuplicateAttendance if (employee, date) already exists.
	CreateRecord(ctx context.Context, r Record) error

	// GetRecord returns generic.ErrEntityNotFound if there is no record.
	GetRecord(ctx context.Context, employeeID generic.EntityID, date generic.TimePoint) (*Record, error)

	// CloseRecord stores the check-out fields of r if the stored record has
	// no check-out yet, and returns generic.ErrAlreadyCheckedOut otherwise.
	CloseRecord(ctx context.Context, r Record) error

	// ListRecords returns records in [From, To] ordered by date then employee.
	ListRecords(ctx context.Context, f RecordFilter) ([]Record, error)
}

type Store interface {
	Repository
	directory.Reader
}

// LeaveCalendar tells which employees are on authorized leave.
type LeaveCalendar interface {
	AuthorizedAbsences(ctx context.Context, period generic.Period) (map[generic.EntityID][]generic.Period, error)
}

// =============================================================================
// REPORTS
// =============================================================================

type EmployeeRef struct {
	ID           generic.EntityID
	Name         string
	DepartmentID string
}

func refOf(e directory.Employee) EmployeeRef {
	return EmployeeRef{ID: e.ID, Name: e.Name, DepartmentID: e.DepartmentID}
}

type LateEntry struct {
	Employee EmployeeRef
	CheckIn  time.Time
	Lateness time.Duration
}

// DailyReport lists who is missing and who was late on a date.
type DailyReport struct {
	Date    generic.TimePoint
	Present int
	Absent  []EmployeeRef
	Late    []LateEntry
	OnLeave []EmployeeRef
}

// DayState is the attendance state of one employee on one day.
type DayState struct {
	Status   Status
	Lateness time.Duration
}

// LatenessSummary is one row of the rolling lateness report.
type LatenessSummary struct {
	Employee     EmployeeRef
	Today        DayState
	LateDays     int
	AbsentDays   int
	Minutes      int
	Compensation string // Minutes as HH:MM
	Sanction     bool
}

// Days is the cumulative count of late and absent days in the window.
func (s LatenessSummary) Days() int { return s.LateDays + s.AbsentDays }

// Stats is the headline count for one date.
type Stats struct {
	Date    generic.TimePoint
	Records int
	Late    int
	Absent  int
	OnLeave int
}

// FormatCompensation renders minutes as HH:MM.
func FormatCompensation(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
