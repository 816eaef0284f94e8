/*
Package generic provides the domain-agnostic core shared by the leave and
attendance packages.

PURPOSE:
  Holds the pieces that do not know what a leave request or an attendance
  record is: quantities with units, the append-only transaction ledger that
  backs every leave balance, calendar dates and ranges, and the error
  taxonomy every engine reports through.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 5 days, 45 minutes)
  - Transaction: An immutable ledger entry recording a balance change
  - EntityID / AccountID: Type-safe identifiers for ledger keys

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Auditability: Every transaction has reason, reference, and idempotency key

USAGE:
  tx := generic.Transaction{
      EntityID: "emp-123",
      Account:  generic.AccountAnnualLeave,
      Delta:    generic.NewAmountFromInt(-5, generic.UnitDays),
      Type:     generic.TxConsumption,
  }

SEE ALSO:
  - ledger.go: Balance replay over transactions
  - errors.go: Error kinds returned by every engine
  - time.go: TimePoint and Period (inclusive date ranges)
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays    Unit = "days"
	UnitMinutes Unit = "minutes"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// ParseAmount reads a decimal string as stored by the SQL backends.
func ParseAmount(value string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d, Unit: unit}, nil
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }

// Int returns the whole part of the amount. Leave balances are whole days.
func (a Amount) Int() int { return int(a.Value.IntPart()) }

func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type TransactionID string

// AccountID names one balance kept for an entity. An employee has a single
// annual leave account today; the ledger keys on (entity, account) so that
// more can be added without a schema change.
type AccountID string

const AccountAnnualLeave AccountID = "annual_leave"

// =============================================================================
// TRANSACTION - Atomic change to a balance
// =============================================================================

type TransactionType string

const (
	TxGrant       TransactionType = "grant"       // Opening balance or yearly entitlement
	TxConsumption TransactionType = "consumption" // Approved leave
	TxAdjustment  TransactionType = "adjustment"  // Manual HR/admin correction
	TxReversal    TransactionType = "reversal"    // Undo a previous transaction
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxGrant, TxConsumption, TxAdjustment, TxReversal:
		return true
	}
	return false
}

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	Account        AccountID
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string // leave request id for consumptions
	Reason         string
	IdempotencyKey string

	CreatedBy string // actor who caused the transaction, "system" for grants
	CreatedAt time.Time
}
