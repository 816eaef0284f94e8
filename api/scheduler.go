/*
scheduler.go - Weekly lateness digest

PURPOSE:
  Periodically computes the cumulative lateness over the policy window
  ending on the last completed day,
  notifies every employee over the sanction threshold, and writes the PDF
  digest HR prints for the weekly review.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on start, then on every tick
  - A failed notification is logged and does not stop the run
  - RunNow performs one run synchronously (tests, manual trigger)

CONFIGURATION:
  - Interval: How often to run (default: one week)
  - Enabled:  Whether the scheduler starts at all
  - PDFDir:   Where digests are written; empty disables the PDF

USAGE:
  scheduler := NewDigestScheduler(attendanceEngine, notifier, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - attendance/engine.go: CumulativeLateness
  - report/pdf.go: LatenessDigest rendering
  - notify/notify.go: KindLatenessSanction notices
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/notify"
	"github.com/warp/leave-governance/report"
)

// DigestRecorder counts digest runs by outcome.
type DigestRecorder interface {
	DigestRun(outcome string)
}

type nopDigestRecorder struct{}

func (nopDigestRecorder) DigestRun(string) {}

// DigestResult summarises one run.
type DigestResult struct {
	AsOf       generic.TimePoint
	Employees  int
	Sanctioned int
	Notified   int
	PDFPath    string
}

// DigestScheduler runs the lateness digest on a ticker.
type DigestScheduler struct {
	Attendance *attendance.Engine
	Notifier   notify.Notifier
	Metrics    DigestRecorder
	Logger     *zap.Logger
	Interval   time.Duration
	PDFDir     string
	Enabled    bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDigestScheduler creates a new scheduler.
func NewDigestScheduler(att *attendance.Engine, notifier notify.Notifier, logger *zap.Logger) *DigestScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLog(logger)
	}
	return &DigestScheduler{
		Attendance: att,
		Notifier:   notifier,
		Metrics:    nopDigestRecorder{},
		Logger:     logger,
		Interval:   7 * 24 * time.Hour,
		Enabled:    true,
	}
}

// Start begins the scheduler.
func (ds *DigestScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		ds.Logger.Info("digest scheduler disabled")
		return
	}
	if ds.ticker != nil {
		return
	}

	ds.ticker = time.NewTicker(ds.Interval)
	ds.stop = make(chan struct{})
	ds.wg.Add(1)

	go ds.run(ds.ticker, ds.stop)

	ds.Logger.Info("digest scheduler started", zap.Duration("interval", ds.Interval))
}

// Stop stops the scheduler and waits for a run in progress.
func (ds *DigestScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		ds.ticker = nil
		ds.Logger.Info("digest scheduler stopped")
	}
}

func (ds *DigestScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ds.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	ds.runLogged(ctx)

	for {
		select {
		case <-ticker.C:
			ds.runLogged(ctx)
		case <-stop:
			return
		}
	}
}

func (ds *DigestScheduler) runLogged(ctx context.Context) {
	if _, err := ds.RunNow(ctx); err != nil {
		ds.Logger.Error("lateness digest failed", zap.Error(err))
	}
}

// RunNow computes the digest over the window ending yesterday, notifies
// sanctioned employees and writes the PDF.
func (ds *DigestScheduler) RunNow(ctx context.Context) (*DigestResult, error) {
	res, err := ds.runOnce(ctx)
	if err != nil {
		ds.Metrics.DigestRun("error")
		return nil, err
	}
	ds.Metrics.DigestRun("ok")
	ds.Logger.Info("lateness digest complete",
		zap.String("as_of", res.AsOf.String()),
		zap.Int("employees", res.Employees),
		zap.Int("sanctioned", res.Sanctioned),
		zap.Int("notified", res.Notified),
		zap.String("pdf", res.PDFPath),
	)
	return res, nil
}

func (ds *DigestScheduler) runOnce(ctx context.Context) (*DigestResult, error) {
	// Today is still open: nobody who has yet to arrive counts as absent.
	asOf := ds.Attendance.Today().AddDays(-1)
	window := ds.Attendance.Policy.WindowDays
	rows, err := ds.Attendance.CumulativeLateness(ctx, asOf, window)
	if err != nil {
		return nil, err
	}

	res := &DigestResult{AsOf: asOf, Employees: len(rows)}
	now := ds.Attendance.Now().UTC()
	for _, s := range rows {
		if !s.Sanction {
			continue
		}
		res.Sanctioned++
		err := ds.Notifier.Notify(ctx, notify.Notice{
			Kind:       notify.KindLatenessSanction,
			EmployeeID: string(s.Employee.ID),
			StartDate:  asOf.AddDays(-(window - 1)).String(),
			EndDate:    asOf.String(),
			Minutes:    s.Minutes,
			At:         now,
		})
		if err != nil {
			ds.Logger.Warn("sanction notice failed",
				zap.String("employee_id", string(s.Employee.ID)),
				zap.Error(err))
			continue
		}
		res.Notified++
	}

	if ds.PDFDir != "" {
		data, err := report.LatenessDigest(asOf, window, rows)
		if err != nil {
			return nil, err
		}
		res.PDFPath, err = report.WriteFile(ds.PDFDir, fmt.Sprintf("lateness-%s.pdf", asOf), data)
		if err != nil {
			return nil, fmt.Errorf("write digest: %w", err)
		}
	}
	return res, nil
}
