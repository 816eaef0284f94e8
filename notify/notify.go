/*
notify.go - Notification dispatcher for decision and sanction notices

PURPOSE:
  The workflow and the lateness digest tell employees about outcomes
  without waiting on delivery. A Notifier receives a Notice after the
  state change has committed; delivery failures are logged by the caller
  and never undo or fail the operation.

IMPLEMENTATIONS:
  - Log:    writes notices to the structured log (default)
  - Redis:  publishes JSON notices on a pub/sub channel for a mailer or
            chat bridge to consume (redis.go)
  - Multi:  fans a notice out to several notifiers

SEE ALSO:
  - leave/workflow.go: Sends decision notices
  - api/scheduler.go: Sends sanction notices
*/
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	KindLeaveDecision    Kind = "leave_decision"
	KindLatenessSanction Kind = "lateness_sanction"
)

// Notice is a fire-and-forget message for one employee.
type Notice struct {
	Kind       Kind      `json:"kind"`
	EmployeeID string    `json:"employee_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Status     string    `json:"status,omitempty"`
	StartDate  string    `json:"start_date,omitempty"`
	EndDate    string    `json:"end_date,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Minutes    int       `json:"minutes,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// =============================================================================
// LOG NOTIFIER
// =============================================================================

type Log struct {
	Logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{Logger: logger}
}

func (l *Log) Notify(_ context.Context, n Notice) error {
	l.Logger.Info("notice",
		zap.String("kind", string(n.Kind)),
		zap.String("employee_id", n.EmployeeID),
		zap.String("request_id", n.RequestID),
		zap.String("decision", n.Decision),
		zap.String("status", n.Status),
		zap.Int("minutes", n.Minutes),
	)
	return nil
}

// =============================================================================
// MULTI NOTIFIER
// =============================================================================

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) error {
	var errs []error
	for _, target := range m {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
