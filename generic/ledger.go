/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable source of truth for every leave balance.
  Opening grants, approved-leave consumptions, and manual adjustments are
  recorded here. Balance is always computed by replaying transactions;
  there's no separate "balance" column that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A mistake is fixed with a Reversal or Adjustment transaction; the
  original stays in the ledger so the history explains the balance.

EXAMPLE FLOW:
  1. Employee hired with 30 days:       TxGrant +30
  2. Ordinary leave of 5 days approved: TxConsumption -5
  3. HR corrects a typo:                TxAdjustment +1

  annual_leave ledger: [+30, -5, +1] = 26 days

SEE ALSO:
  - store.go: Low-level persistence interface
  - leave/balance.go: Domain wrapper (reserve-check, deduct, adjust)
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log over a Store
// =============================================================================

// DefaultLedger is the source of truth for all balance changes.
type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, account AccountID) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, account)
}

func (l *DefaultLedger) Balance(ctx context.Context, entityID EntityID, account AccountID, unit Unit) (Amount, error) {
	txs, err := l.Store.Load(ctx, entityID, account)
	if err != nil {
		return Amount{}, err
	}
	return Replay(txs, unit), nil
}

// Replay sums transaction deltas. Stores return transactions ordered by
// EffectiveAt, but the sum does not depend on order.
func Replay(txs []Transaction, unit Unit) Amount {
	balance := NewAmountFromInt(0, unit)
	for _, tx := range txs {
		balance = balance.Add(tx.Delta)
	}
	return balance
}
