/*
engine.go - Daily attendance and lateness accounting

PURPOSE:
  Records one check-in and one check-out per employee per local day and
  derives the reports HR works from: who is absent or late today, and who
  has accumulated enough lateness over the rolling window to be sanctioned.

RULES:
  - A check-in after DayStart+Grace is late; lateness counts from DayStart.
  - Worked time is check-out minus check-in on the clock. A check-out that
    reads earlier than the check-in crossed midnight and gains 24h.
  - Worked time beyond StandardDay is overtime.
  - Over the window, each late day adds its lateness and each missing day
    not covered by authorized leave adds AbsencePenalty. Days before the
    hire date are skipped. The total at or above SanctionThreshold flags
    a sanction.

CONCURRENCY:
  The (employee, date) slot is unique in every store, so of two concurrent
  check-ins exactly one succeeds and the other gets AlreadyCheckedIn.

SEE ALSO:
  - policy.go: Thresholds and clock arithmetic
  - leave/query.go: AuthorizedAbsences feeds LeaveCalendar
*/
package attendance

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
)

// Recorder receives attendance events for metrics.
type Recorder interface {
	AttendanceRecorded(event, outcome string)
	LatenessComputed(employees, sanctions int)
}

type nopRecorder struct{}

func (nopRecorder) AttendanceRecorded(string, string) {}
func (nopRecorder) LatenessComputed(int, int)         {}

type noLeave struct{}

func (noLeave) AuthorizedAbsences(context.Context, generic.Period) (map[generic.EntityID][]generic.Period, error) {
	return nil, nil
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store   Store
	Leaves  LeaveCalendar
	Policy  Policy
	Metrics Recorder
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewEngine(store Store, leaves LeaveCalendar, policy Policy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if leaves == nil {
		leaves = noLeave{}
	}
	return &Engine{
		Store:   store,
		Leaves:  leaves,
		Policy:  policy,
		Metrics: nopRecorder{},
		Logger:  logger,
		Now:     time.Now,
	}
}

// Today is the current local date under the policy's location.
func (e *Engine) Today() generic.TimePoint {
	return generic.DateOf(e.Now(), e.Policy.location())
}

// =============================================================================
// CHECK-IN / CHECK-OUT
// =============================================================================

// CheckIn opens the employee's record for the local day of at.
func (e *Engine) CheckIn(ctx context.Context, employeeID generic.EntityID, at time.Time) (*Record, error) {
	if err := e.requireActive(ctx, employeeID); err != nil {
		e.Metrics.AttendanceRecorded("check_in", string(generic.KindOf(err)))
		return nil, err
	}

	loc := e.Policy.location()
	status, lateness := e.Policy.classify(e.Policy.clockOf(at))
	in := at.In(loc)
	now := e.Now().UTC()
	rec := Record{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		Date:       generic.DateOf(at, loc),
		CheckIn:    &in,
		Lateness:   lateness,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.Store.CreateRecord(ctx, rec); err != nil {
		if errors.Is(err, generic.ErrDuplicateAttendance) {
			err = &generic.Error{
				Kind:    generic.KindAlreadyCheckedIn,
				Message: "employee " + string(employeeID) + " already checked in on " + rec.Date.String(),
				Err:     err,
			}
		}
		err = generic.Internal(err, "record check-in")
		e.Metrics.AttendanceRecorded("check_in", string(generic.KindOf(err)))
		return nil, err
	}

	e.Metrics.AttendanceRecorded("check_in", string(status))
	e.Logger.Info("checked in",
		zap.String("employee_id", string(employeeID)),
		zap.String("date", rec.Date.String()),
		zap.String("status", string(status)),
		zap.Duration("lateness", lateness),
	)
	return &rec, nil
}

// CheckOut closes the employee's record for the local day of at.
func (e *Engine) CheckOut(ctx context.Context, employeeID generic.EntityID, at time.Time) (*Record, error) {
	rec, err := e.checkOut(ctx, employeeID, at)
	if err != nil {
		e.Metrics.AttendanceRecorded("check_out", string(generic.KindOf(err)))
		return nil, err
	}
	e.Metrics.AttendanceRecorded("check_out", "ok")
	e.Logger.Info("checked out",
		zap.String("employee_id", string(employeeID)),
		zap.String("date", rec.Date.String()),
		zap.Duration("worked", rec.Worked),
		zap.Duration("overtime", rec.Overtime),
	)
	return rec, nil
}

func (e *Engine) checkOut(ctx context.Context, employeeID generic.EntityID, at time.Time) (*Record, error) {
	if err := e.requireActive(ctx, employeeID); err != nil {
		return nil, err
	}
	loc := e.Policy.location()
	date := generic.DateOf(at, loc)

	rec, err := e.Store.GetRecord(ctx, employeeID, date)
	if errors.Is(err, generic.ErrEntityNotFound) || (err == nil && rec.CheckIn == nil) {
		return nil, generic.NewError(generic.KindNoCheckInFound, "no check-in for employee %s on %s", employeeID, date)
	}
	if err != nil {
		return nil, generic.Internal(err, "load attendance")
	}
	if rec.CheckOut != nil {
		return nil, generic.NewError(generic.KindAlreadyCheckedOut, "employee %s already checked out on %s", employeeID, date)
	}

	out := at.In(loc)
	rec.CheckOut = &out
	rec.Worked = e.Policy.worked(e.Policy.clockOf(*rec.CheckIn), e.Policy.clockOf(at))
	rec.Overtime = e.Policy.overtime(rec.Worked)
	rec.UpdatedAt = e.Now().UTC()

	if err := e.Store.CloseRecord(ctx, *rec); err != nil {
		if errors.Is(err, generic.ErrAlreadyCheckedOut) {
			return nil, &generic.Error{
				Kind:    generic.KindAlreadyCheckedOut,
				Message: "employee " + string(employeeID) + " already checked out on " + date.String(),
				Err:     err,
			}
		}
		return nil, generic.Internal(err, "record check-out")
	}
	return rec, nil
}

func (e *Engine) requireActive(ctx context.Context, employeeID generic.EntityID) error {
	if employeeID == "" {
		return generic.Validation("employee id is required")
	}
	emp, err := e.Store.GetEmployee(ctx, string(employeeID))
	if err != nil {
		return generic.Internal(err, "load employee "+string(employeeID))
	}
	if !emp.Active {
		return generic.Validation("employee %s is not active", employeeID)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Record returns the employee's record for a date.
func (e *Engine) Record(ctx context.Context, employeeID generic.EntityID, date generic.TimePoint) (*Record, error) {
	rec, err := e.Store.GetRecord(ctx, employeeID, date)
	if err != nil {
		return nil, generic.Internal(err, "load attendance")
	}
	return rec, nil
}

// History lists records in a date range, for one employee or everyone.
func (e *Engine) History(ctx context.Context, employeeID generic.EntityID, period generic.Period) ([]Record, error) {
	recs, err := e.Store.ListRecords(ctx, RecordFilter{EmployeeID: employeeID, From: period.Start, To: period.End})
	if err != nil {
		return nil, generic.Internal(err, "list attendance")
	}
	return recs, nil
}

// =============================================================================
// DAILY REPORT
// =============================================================================

// DailyReport lists the active employees absent without authorized leave
// and those who checked in late on date.
func (e *Engine) DailyReport(ctx context.Context, date generic.TimePoint) (*DailyReport, error) {
	day, err := e.loadDay(ctx, generic.Period{Start: date, End: date})
	if err != nil {
		return nil, err
	}

	report := &DailyReport{Date: date, Absent: []EmployeeRef{}, Late: []LateEntry{}, OnLeave: []EmployeeRef{}}
	for _, emp := range day.employees {
		if emp.HireDate.After(date) {
			continue
		}
		ref := refOf(emp)
		onLeave := day.onLeave(emp.ID, date)
		rec, checked := day.records[keyOf(emp.ID, date)]
		switch {
		case onLeave:
			report.OnLeave = append(report.OnLeave, ref)
		case !checked:
			report.Absent = append(report.Absent, ref)
		default:
			report.Present++
			if rec.Status == StatusLate {
				report.Late = append(report.Late, LateEntry{Employee: ref, CheckIn: *rec.CheckIn, Lateness: rec.Lateness})
			}
		}
	}
	return report, nil
}

// Stats summarises a date.
func (e *Engine) Stats(ctx context.Context, date generic.TimePoint) (*Stats, error) {
	report, err := e.DailyReport(ctx, date)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Date:    date,
		Records: report.Present,
		Late:    len(report.Late),
		Absent:  len(report.Absent),
		OnLeave: len(report.OnLeave),
	}, nil
}

// =============================================================================
// CUMULATIVE LATENESS
// =============================================================================

// CumulativeLateness totals lateness and unexcused absence over the
// windowDays calendar days ending at asOf, for every active employee.
// windowDays <= 0 uses the policy window.
func (e *Engine) CumulativeLateness(ctx context.Context, asOf generic.TimePoint, windowDays int) ([]LatenessSummary, error) {
	if windowDays <= 0 {
		windowDays = e.Policy.WindowDays
	}
	if windowDays <= 0 {
		return nil, generic.Validation("lateness window must be at least one day")
	}
	window := generic.Period{Start: asOf.AddDays(-(windowDays - 1)), End: asOf}
	day, err := e.loadDay(ctx, window)
	if err != nil {
		return nil, err
	}

	out := make([]LatenessSummary, 0, len(day.employees))
	sanctions := 0
	for _, emp := range day.employees {
		s := LatenessSummary{Employee: refOf(emp), Today: day.state(emp, asOf)}
		var total time.Duration
		for _, d := range window.EachDay() {
			if d.Before(emp.HireDate) {
				continue
			}
			if e.Policy.SkipWeekends && d.IsWeekend() {
				continue
			}
			if day.onLeave(emp.ID, d) {
				continue
			}
			rec, checked := day.records[keyOf(emp.ID, d)]
			switch {
			case checked:
				if rec.Lateness > 0 {
					s.LateDays++
					total += rec.Lateness
				}
			default:
				s.AbsentDays++
				total += e.Policy.AbsencePenalty
			}
		}
		s.Minutes = int(total / time.Minute)
		s.Compensation = FormatCompensation(s.Minutes)
		s.Sanction = total >= e.Policy.SanctionThreshold
		if s.Sanction {
			sanctions++
		}
		out = append(out, s)
	}

	e.Metrics.LatenessComputed(len(out), sanctions)
	e.Logger.Debug("lateness computed",
		zap.String("as_of", asOf.String()),
		zap.Int("window_days", windowDays),
		zap.Int("employees", len(out)),
		zap.Int("sanctions", sanctions),
	)
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type recordKey struct {
	employee generic.EntityID
	date     string
}

func keyOf(id generic.EntityID, date generic.TimePoint) recordKey {
	return recordKey{employee: id, date: date.String()}
}

// dayData is everything a report needs for a range, loaded once.
type dayData struct {
	employees []directory.Employee
	records   map[recordKey]Record
	absences  map[generic.EntityID][]generic.Period
}

func (d dayData) onLeave(id generic.EntityID, date generic.TimePoint) bool {
	for _, p := range d.absences[id] {
		if p.Contains(date) {
			return true
		}
	}
	return false
}

// state reports a day the way the daily report does: approved leave wins
// over any record.
func (d dayData) state(emp directory.Employee, date generic.TimePoint) DayState {
	if d.onLeave(emp.ID, date) {
		return DayState{Status: StatusOnLeave}
	}
	if rec, ok := d.records[keyOf(emp.ID, date)]; ok {
		return DayState{Status: rec.Status, Lateness: rec.Lateness}
	}
	return DayState{Status: StatusAbsent}
}

func (e *Engine) loadDay(ctx context.Context, period generic.Period) (dayData, error) {
	employees, err := e.Store.ListEmployees(ctx, true)
	if err != nil {
		return dayData{}, generic.Internal(err, "list employees")
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })

	recs, err := e.Store.ListRecords(ctx, RecordFilter{From: period.Start, To: period.End})
	if err != nil {
		return dayData{}, generic.Internal(err, "list attendance")
	}
	records := make(map[recordKey]Record, len(recs))
	for _, r := range recs {
		records[keyOf(r.EmployeeID, r.Date)] = r
	}

	absences, err := e.Leaves.AuthorizedAbsences(ctx, period)
	if err != nil {
		return dayData{}, generic.Internal(err, "load authorized absences")
	}
	return dayData{employees: employees, records: records, absences: absences}, nil
}
