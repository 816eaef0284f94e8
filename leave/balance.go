/*
balance.go - Annual leave balance on top of the append-only ledger

PURPOSE:
  Wraps generic.DefaultLedger with the three operations the workflow needs:
  an advisory reserve-check at submission, the deduction performed when an
  ordinary leave reaches Approved, and manual adjustments by HR.

ATOMICITY:
  Deduct takes the store it must write through. The workflow passes the
  transactional view it got from TxStore.WithTx, so the consumption
  transaction and the status change commit or roll back together.

IDEMPOTENCY:
  A deduction's idempotency key is derived from the request id. A second
  deduction for the same request fails with ErrDuplicateIdempotencyKey
  even if the state machine were bypassed.

SEE ALSO:
  - generic/ledger.go: Balance replay
  - workflow.go: Calls Deduct inside HRDecide
*/
package leave

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/warp/leave-governance/generic"
)

// BalanceLedger operates on the annual leave account of an employee.
type BalanceLedger struct {
	Account generic.AccountID
	Now     func() time.Time
}

func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{Account: generic.AccountAnnualLeave, Now: time.Now}
}

func deductionKey(requestID string) string { return "leave-" + requestID + "-deduct" }
func openingKey(employeeID generic.EntityID) string {
	return "open-" + string(employeeID)
}

// Available returns the current balance in days.
func (b *BalanceLedger) Available(ctx context.Context, s generic.Store, employeeID generic.EntityID) (generic.Amount, error) {
	return generic.NewLedger(s).Balance(ctx, employeeID, b.Account, generic.UnitDays)
}

// ReserveCheck is true iff the balance covers days. It takes no lock.
func (b *BalanceLedger) ReserveCheck(ctx context.Context, s generic.Store, employeeID generic.EntityID, days int) (bool, error) {
	available, err := b.Available(ctx, s, employeeID)
	if err != nil {
		return false, err
	}
	return !available.LessThan(generic.NewAmountFromInt(days, generic.UnitDays)), nil
}

// Deduct charges days to the balance for requestID, or fails with
// *generic.InsufficientBalanceError leaving the ledger unchanged.
func (b *BalanceLedger) Deduct(ctx context.Context, s generic.Store, employeeID generic.EntityID, requestID string, days int, actor generic.EntityID) error {
	requested := generic.NewAmountFromInt(days, generic.UnitDays)
	available, err := b.Available(ctx, s, employeeID)
	if err != nil {
		return err
	}
	if available.LessThan(requested) {
		return &generic.InsufficientBalanceError{
			EntityID:  employeeID,
			Available: available,
			Requested: requested,
		}
	}

	now := b.Now()
	return generic.NewLedger(s).Append(ctx, generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       employeeID,
		Account:        b.Account,
		EffectiveAt:    generic.DateOf(now, time.UTC),
		Delta:          requested.Neg(),
		Type:           generic.TxConsumption,
		ReferenceID:    requestID,
		Reason:         "approved ordinary leave",
		IdempotencyKey: deductionKey(requestID),
		CreatedBy:      string(actor),
		CreatedAt:      now,
	})
}

// Open grants the opening balance of a new employee. Opening twice is a no-op.
func (b *BalanceLedger) Open(ctx context.Context, s generic.Store, employeeID generic.EntityID, days int, effective generic.TimePoint) error {
	err := generic.NewLedger(s).Append(ctx, generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       employeeID,
		Account:        b.Account,
		EffectiveAt:    effective,
		Delta:          generic.NewAmountFromInt(days, generic.UnitDays),
		Type:           generic.TxGrant,
		Reason:         "opening balance",
		IdempotencyKey: openingKey(employeeID),
		CreatedBy:      "system",
		CreatedAt:      b.Now(),
	})
	if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		return nil
	}
	return err
}

// Adjust records a signed manual correction. The result may not be negative.
func (b *BalanceLedger) Adjust(ctx context.Context, s generic.Store, employeeID generic.EntityID, delta int, reason string, actor generic.EntityID) (generic.Amount, error) {
	available, err := b.Available(ctx, s, employeeID)
	if err != nil {
		return generic.Amount{}, err
	}
	change := generic.NewAmountFromInt(delta, generic.UnitDays)
	after := available.Add(change)
	if after.IsNegative() {
		return generic.Amount{}, &generic.InsufficientBalanceError{
			EntityID:  employeeID,
			Available: available,
			Requested: change.Neg(),
		}
	}

	now := b.Now()
	err = generic.NewLedger(s).Append(ctx, generic.Transaction{
		ID:          generic.TransactionID(uuid.NewString()),
		EntityID:    employeeID,
		Account:     b.Account,
		EffectiveAt: generic.DateOf(now, time.UTC),
		Delta:       change,
		Type:        generic.TxAdjustment,
		Reason:      reason,
		CreatedBy:   string(actor),
		CreatedAt:   now,
	})
	if err != nil {
		return generic.Amount{}, err
	}
	return after, nil
}
