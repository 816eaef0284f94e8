package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// calendar is a fixed LeaveCalendar.
type calendar map[generic.EntityID][]generic.Period

func (c calendar) AuthorizedAbsences(_ context.Context, p generic.Period) (map[generic.EntityID][]generic.Period, error) {
	out := make(map[generic.EntityID][]generic.Period)
	for id, periods := range c {
		for _, lp := range periods {
			if lp.Overlaps(p) {
				out[id] = append(out[id], lp)
			}
		}
	}
	return out, nil
}

func march(d int) generic.TimePoint { return generic.NewTimePoint(2026, time.March, d) }

func at(d, hour, min int) time.Time {
	return time.Date(2026, time.March, d, hour, min, 0, 0, time.UTC)
}

func newEngine(t *testing.T, leaves calendar, employees ...directory.Employee) (*attendance.Engine, *memory.Memory) {
	t.Helper()
	st := memory.New()
	for _, e := range employees {
		require.NoError(t, st.SaveEmployee(context.Background(), e))
	}
	e := attendance.NewEngine(st, leaves, attendance.DefaultPolicy(), nil)
	e.Now = func() time.Time { return at(2, 12, 0) }
	return e, st
}

func employee(id string, hired generic.TimePoint) directory.Employee {
	return directory.Employee{ID: generic.EntityID(id), Name: id, Role: directory.RoleEmployee, Active: true, HireDate: hired}
}

var longAgo = generic.NewTimePoint(2024, time.January, 1)

// =============================================================================
// CHECK-IN / CHECK-OUT
// =============================================================================

func TestCheckIn_LateThenCheckOutWithOvertime(t *testing.T) {
	// GIVEN: a day starting at 08:00
	// WHEN: the employee checks in at 08:15 and out at 17:00
	// THEN: the record is late by 15m, worked 8h45m, overtime 45m
	e, _ := newEngine(t, nil, employee("emp-1", longAgo))
	ctx := context.Background()

	rec, err := e.CheckIn(ctx, "emp-1", at(2, 8, 15))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, rec.Status)
	assert.Equal(t, 15*time.Minute, rec.Lateness)
	assert.Equal(t, march(2), rec.Date)

	rec, err = e.CheckOut(ctx, "emp-1", at(2, 17, 0))
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+45*time.Minute, rec.Worked)
	assert.Equal(t, 45*time.Minute, rec.Overtime)
	assert.Equal(t, attendance.StatusLate, rec.Status)

	stored, err := e.Record(ctx, "emp-1", march(2))
	require.NoError(t, err)
	require.NotNil(t, stored.CheckOut)
	assert.Equal(t, rec.Worked, stored.Worked)
}

func TestCheckIn_OnTimeIsPresent(t *testing.T) {
	e, _ := newEngine(t, nil, employee("emp-1", longAgo))

	rec, err := e.CheckIn(context.Background(), "emp-1", at(2, 8, 0))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, rec.Status)
	assert.Zero(t, rec.Lateness)
}

func TestCheckIn_GraceMeasuresFromDayStart(t *testing.T) {
	e, _ := newEngine(t, nil, employee("emp-1", longAgo), employee("emp-2", longAgo))
	e.Policy.Grace = 10 * time.Minute
	ctx := context.Background()

	within, err := e.CheckIn(ctx, "emp-1", at(2, 8, 5))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, within.Status)

	beyond, err := e.CheckIn(ctx, "emp-2", at(2, 8, 20))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, beyond.Status)
	assert.Equal(t, 20*time.Minute, beyond.Lateness)
}

func TestCheckIn_UsesPolicyLocation(t *testing.T) {
	// GIVEN: a UTC+3 site
	// WHEN: checking in at 05:10 UTC
	// THEN: the check-in is 08:10 local, late by 10m
	e, _ := newEngine(t, nil, employee("emp-1", longAgo))
	e.Policy.Location = time.FixedZone("EAT", 3*3600)

	rec, err := e.CheckIn(context.Background(), "emp-1", at(2, 5, 10))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, rec.Status)
	assert.Equal(t, 10*time.Minute, rec.Lateness)
	assert.Equal(t, march(2), rec.Date)
}

func TestCheckIn_Errors(t *testing.T) {
	inactive := employee("emp-2", longAgo)
	inactive.Active = false
	e, _ := newEngine(t, nil, employee("emp-1", longAgo), inactive)
	ctx := context.Background()

	_, err := e.CheckIn(ctx, "emp-1", at(2, 8, 0))
	require.NoError(t, err)

	_, err = e.CheckIn(ctx, "emp-1", at(2, 9, 0))
	assert.True(t, errors.Is(err, generic.ErrAlreadyCheckedIn))
	assert.Equal(t, generic.KindAlreadyCheckedIn, generic.KindOf(err))

	_, err = e.CheckIn(ctx, "emp-2", at(2, 8, 0))
	assert.True(t, errors.Is(err, generic.ErrValidation))

	_, err = e.CheckIn(ctx, "ghost", at(2, 8, 0))
	assert.Equal(t, generic.KindNotFound, generic.KindOf(err))

	_, err = e.CheckIn(ctx, "", at(2, 8, 0))
	assert.True(t, errors.Is(err, generic.ErrValidation))
}

func TestCheckOut_Errors(t *testing.T) {
	e, _ := newEngine(t, nil, employee("emp-1", longAgo))
	ctx := context.Background()

	_, err := e.CheckOut(ctx, "emp-1", at(2, 17, 0))
	assert.True(t, errors.Is(err, generic.ErrNoCheckInFound))

	_, err = e.CheckIn(ctx, "emp-1", at(2, 8, 0))
	require.NoError(t, err)
	_, err = e.CheckOut(ctx, "emp-1", at(2, 17, 0))
	require.NoError(t, err)

	_, err = e.CheckOut(ctx, "emp-1", at(2, 18, 0))
	assert.True(t, errors.Is(err, generic.ErrAlreadyCheckedOut))

	// the next day has no check-in of its own
	_, err = e.CheckOut(ctx, "emp-1", at(3, 17, 0))
	assert.True(t, errors.Is(err, generic.ErrNoCheckInFound))
}

func TestCheckOut_RecordBelongsToCheckOutDate(t *testing.T) {
	e, _ := newEngine(t, nil, employee("night", longAgo), employee("early", longAgo))
	ctx := context.Background()

	// GIVEN: a check-in at 22:00 on March 2
	_, err := e.CheckIn(ctx, "night", at(2, 22, 0))
	require.NoError(t, err)

	// WHEN: checking out at 06:00 the next morning
	_, err = e.CheckOut(ctx, "night", at(3, 6, 0))

	// THEN: March 3 has no check-in, so the record stays open
	assert.True(t, errors.Is(err, generic.ErrNoCheckInFound))

	// AND: a same-day check-out clocked before the check-in wraps to the next day
	_, err = e.CheckIn(ctx, "early", at(2, 8, 0))
	require.NoError(t, err)
	rec, err := e.CheckOut(ctx, "early", at(2, 7, 0))
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour, rec.Worked)
}

func TestCheckIn_ConcurrentCallsSucceedOnce(t *testing.T) {
	// GIVEN: one employee
	// WHEN: many check-ins for the same day race
	// THEN: exactly one succeeds and the others get AlreadyCheckedIn
	e, _ := newEngine(t, nil, employee("emp-1", longAgo))
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.CheckIn(ctx, "emp-1", at(2, 8, i))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, generic.ErrAlreadyCheckedIn), "got %v", err)
	}
	assert.Equal(t, 1, ok)
}

// =============================================================================
// DAILY REPORT
// =============================================================================

func TestDailyReport_ExcludesAuthorizedLeave(t *testing.T) {
	// GIVEN: one employee on approved leave, one late, one missing, one on time
	// WHEN: building the daily report
	// THEN: the employee on leave is neither absent nor late
	leaves := calendar{"on-leave": {{Start: march(1), End: march(4)}}}
	e, _ := newEngine(t, leaves,
		employee("on-leave", longAgo),
		employee("late", longAgo),
		employee("missing", longAgo),
		employee("punctual", longAgo),
		employee("future-hire", march(10)),
	)
	ctx := context.Background()
	_, err := e.CheckIn(ctx, "late", at(2, 9, 0))
	require.NoError(t, err)
	_, err = e.CheckIn(ctx, "punctual", at(2, 7, 55))
	require.NoError(t, err)

	report, err := e.DailyReport(ctx, march(2))
	require.NoError(t, err)

	require.Len(t, report.Absent, 1)
	assert.Equal(t, generic.EntityID("missing"), report.Absent[0].ID)
	require.Len(t, report.Late, 1)
	assert.Equal(t, generic.EntityID("late"), report.Late[0].Employee.ID)
	assert.Equal(t, time.Hour, report.Late[0].Lateness)
	require.Len(t, report.OnLeave, 1)
	assert.Equal(t, generic.EntityID("on-leave"), report.OnLeave[0].ID)
	assert.Equal(t, 2, report.Present)

	stats, err := e.Stats(ctx, march(2))
	require.NoError(t, err)
	assert.Equal(t, attendance.Stats{Date: march(2), Records: 2, Late: 1, Absent: 1, OnLeave: 1}, *stats)
}

func TestDailyReport_OnLeaveButCheckedInLateIsNotLate(t *testing.T) {
	leaves := calendar{"emp-1": {{Start: march(2), End: march(2)}}}
	e, _ := newEngine(t, leaves, employee("emp-1", longAgo))
	ctx := context.Background()
	_, err := e.CheckIn(ctx, "emp-1", at(2, 10, 0))
	require.NoError(t, err)

	report, err := e.DailyReport(ctx, march(2))
	require.NoError(t, err)
	assert.Empty(t, report.Late)
	assert.Empty(t, report.Absent)
}

func TestDailyReport_SkipsInactiveEmployees(t *testing.T) {
	gone := employee("gone", longAgo)
	gone.Active = false
	e, _ := newEngine(t, nil, gone)

	report, err := e.DailyReport(context.Background(), march(2))
	require.NoError(t, err)
	assert.Empty(t, report.Absent)
}

// =============================================================================
// CUMULATIVE LATENESS
// =============================================================================

func TestCumulativeLateness_RollingWindow(t *testing.T) {
	// GIVEN: a 7-day window from March 2 to March 8
	//   alice: late 20m on the 3rd, missing on the 5th, on leave on the 6th
	//   bob:   late 30m on the 4th
	//   carol: hired on the 7th, missing on the 8th
	// WHEN: computing cumulative lateness as of March 8
	// THEN: alice 80m (sanction), bob 30m, carol 60m (sanction)
	leaves := calendar{"alice": {{Start: march(6), End: march(6)}}}
	e, _ := newEngine(t, leaves,
		employee("alice", longAgo),
		employee("bob", longAgo),
		employee("carol", march(7)),
	)
	ctx := context.Background()

	checkIn := func(id generic.EntityID, d, hour, min int) {
		t.Helper()
		_, err := e.CheckIn(ctx, id, at(d, hour, min))
		require.NoError(t, err)
	}
	for d := 2; d <= 8; d++ {
		switch d {
		case 3:
			checkIn("alice", d, 8, 20)
		case 5, 6:
		default:
			checkIn("alice", d, 8, 0)
		}
		if d == 4 {
			checkIn("bob", d, 8, 30)
		} else {
			checkIn("bob", d, 7, 50)
		}
	}
	checkIn("carol", 7, 8, 0)

	rows, err := e.CumulativeLateness(ctx, march(8), 7)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	byID := map[generic.EntityID]attendance.LatenessSummary{}
	for _, r := range rows {
		byID[r.Employee.ID] = r
	}

	alice := byID["alice"]
	assert.Equal(t, 80, alice.Minutes)
	assert.Equal(t, "01:20", alice.Compensation)
	assert.Equal(t, 1, alice.LateDays)
	assert.Equal(t, 1, alice.AbsentDays)
	assert.Equal(t, 2, alice.Days())
	assert.True(t, alice.Sanction)
	assert.Equal(t, attendance.StatusPresent, alice.Today.Status)

	bob := byID["bob"]
	assert.Equal(t, 30, bob.Minutes)
	assert.Equal(t, "00:30", bob.Compensation)
	assert.False(t, bob.Sanction)

	carol := byID["carol"]
	assert.Equal(t, 60, carol.Minutes)
	assert.Equal(t, 1, carol.AbsentDays)
	assert.True(t, carol.Sanction, "reaching the threshold exactly is a sanction")
	assert.Equal(t, attendance.StatusAbsent, carol.Today.Status)
}

func TestCumulativeLateness_WindowDefaultsToPolicy(t *testing.T) {
	e, _ := newEngine(t, nil, employee("emp-1", longAgo))
	e.Policy.WindowDays = 2

	rows, err := e.CumulativeLateness(context.Background(), march(8), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].AbsentDays)
	assert.Equal(t, 120, rows[0].Minutes)
}

func TestCumulativeLateness_SkipWeekends(t *testing.T) {
	// March 7 and 8, 2026 fall on a weekend.
	e, _ := newEngine(t, nil, employee("emp-1", longAgo))
	e.Policy.SkipWeekends = true

	rows, err := e.CumulativeLateness(context.Background(), march(8), 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].AbsentDays)
}

func TestCumulativeLateness_OnLeaveButCheckedInLateIsNotLate(t *testing.T) {
	// GIVEN: approved leave on March 2 and a late check-in that same day
	leaves := calendar{"emp-1": {{Start: march(2), End: march(2)}}}
	e, _ := newEngine(t, leaves, employee("emp-1", longAgo))
	ctx := context.Background()
	_, err := e.CheckIn(ctx, "emp-1", at(2, 10, 0))
	require.NoError(t, err)

	// WHEN: computing a one-day window over the leave day
	rows, err := e.CumulativeLateness(ctx, march(2), 1)

	// THEN: the day counts neither as late nor as absent, in line with the daily report
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].Minutes)
	assert.Equal(t, 0, rows[0].LateDays)
	assert.Equal(t, 0, rows[0].AbsentDays)
	assert.False(t, rows[0].Sanction)
	assert.Equal(t, attendance.StatusOnLeave, rows[0].Today.Status)

	report, err := e.DailyReport(ctx, march(2))
	require.NoError(t, err)
	assert.Empty(t, report.Late)
	assert.Len(t, report.OnLeave, 1)
}

func TestFormatCompensation(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "00:00"},
		{15, "00:15"},
		{60, "01:00"},
		{135, "02:15"},
		{-5, "00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, attendance.FormatCompensation(tt.minutes))
	}
}
