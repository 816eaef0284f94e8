package api

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/notify"
	"github.com/warp/leave-governance/store/memory"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
	err     error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return r.err
}

type countingRecorder struct {
	mu   sync.Mutex
	runs map[string]int
}

func (c *countingRecorder) DigestRun(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runs == nil {
		c.runs = map[string]int{}
	}
	c.runs[outcome]++
}

func (c *countingRecorder) count(outcome string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[outcome]
}

// newDigest seeds emp-1 (punctual every day up to yesterday) and emp-2
// (never checked in). The clock reads March 2, 18:00.
func newDigest(t *testing.T) (*DigestScheduler, *recordingNotifier, *countingRecorder) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	hired := generic.NewTimePoint(2025, time.January, 1)
	for _, id := range []string{"emp-1", "emp-2"} {
		require.NoError(t, st.SaveEmployee(ctx, directory.Employee{
			ID: generic.EntityID(id), Name: id, Role: directory.RoleEmployee, Active: true, HireDate: hired,
		}))
	}

	att := attendance.NewEngine(st, nil, attendance.DefaultPolicy(), nil)
	att.Now = func() time.Time { return time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC) }
	for i := 0; i < 7; i++ {
		arrival := time.Date(2026, time.February, 23, 7, 50, 0, 0, time.UTC).AddDate(0, 0, i)
		_, err := att.CheckIn(ctx, "emp-1", arrival)
		require.NoError(t, err)
	}

	n := &recordingNotifier{}
	rec := &countingRecorder{}
	ds := NewDigestScheduler(att, n, nil)
	ds.Metrics = rec
	ds.Interval = time.Hour
	return ds, n, rec
}

func TestDigest_RunNowNotifiesSanctionedEmployees(t *testing.T) {
	// GIVEN: Bob missed the whole window
	ds, n, rec := newDigest(t)
	ds.PDFDir = t.TempDir()

	// WHEN
	res, err := ds.RunNow(context.Background())

	// THEN: only Bob is sanctioned and notified
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", res.AsOf.String(), "the window ends on the last completed day")
	assert.Equal(t, 2, res.Employees)
	assert.Equal(t, 1, res.Sanctioned)
	assert.Equal(t, 1, res.Notified)

	require.Len(t, n.notices, 1)
	notice := n.notices[0]
	assert.Equal(t, notify.KindLatenessSanction, notice.Kind)
	assert.Equal(t, "emp-2", notice.EmployeeID)
	assert.Equal(t, 7*60, notice.Minutes)
	assert.Equal(t, "2026-02-23", notice.StartDate)
	assert.Equal(t, "2026-03-01", notice.EndDate)

	// AND: the PDF is written
	data, err := os.ReadFile(res.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(data[:5]))
	assert.Equal(t, 1, rec.count("ok"))
}

func TestDigest_MorningStartDoesNotSanctionLateArrivals(t *testing.T) {
	// GIVEN: the service boots at 07:00, before anyone has checked in today
	ds, n, _ := newDigest(t)
	ds.Attendance.Now = func() time.Time { return time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC) }

	// WHEN
	ds.Start()
	ds.Stop()

	// THEN: Alice, punctual all week, is not sanctioned for a day still in progress
	require.Len(t, n.notices, 1)
	assert.Equal(t, "emp-2", n.notices[0].EmployeeID)
	assert.Equal(t, "2026-03-01", n.notices[0].EndDate)
}

func TestDigest_FailedNoticeDoesNotFailRun(t *testing.T) {
	ds, n, rec := newDigest(t)
	n.err = errors.New("redis down")

	res, err := ds.RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.Sanctioned)
	assert.Equal(t, 0, res.Notified)
	assert.Empty(t, res.PDFPath)
	assert.Equal(t, 1, rec.count("ok"))
}

func TestDigest_StartRunsOnceThenStops(t *testing.T) {
	ds, n, rec := newDigest(t)

	ds.Start()
	ds.Stop()

	assert.Equal(t, 1, rec.count("ok"))
	assert.Len(t, n.notices, 1)

	// stopping twice is harmless
	assert.NotPanics(t, ds.Stop)
}

func TestDigest_DisabledDoesNotStart(t *testing.T) {
	ds, _, rec := newDigest(t)
	ds.Enabled = false

	ds.Start()
	ds.Stop()

	assert.Equal(t, 0, rec.count("ok"))
}
