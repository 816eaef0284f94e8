package leave

import (
	"context"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
)

// =============================================================================
// REPOSITORY - Leave requests and their audit trail
// =============================================================================

// Repository persists leave requests. Requests are never hard-deleted; the
// audit trail is append-only.
type Repository interface {
	// CreateRequest inserts the request together with its initial audit entries.
	CreateRequest(ctx context.Context, r LeaveRequest) error

	// UpdateStatus writes the new status, comment and UpdatedAt of r and
	// appends entry to its audit trail.
	UpdateStatus(ctx context.Context, r LeaveRequest, entry AuditEntry) error

	// GetRequest returns generic.ErrEntityNotFound for unknown ids. Inside a
	// transaction, backends that support it lock the row.
	GetRequest(ctx context.Context, id string) (*LeaveRequest, error)

	// ListRequests returns matching requests, newest first.
	ListRequests(ctx context.Context, f ListFilter) ([]LeaveRequest, error)
}

// =============================================================================
// STORE - Everything the workflow touches inside one transaction
// =============================================================================

type Store interface {
	generic.Store
	directory.Store
	Repository

	// LockEmployee serialises writers on one employee's balance and leave
	// calendar until the enclosing transaction ends. Backends that already
	// serialise every transaction implement it as a no-op.
	LockEmployee(ctx context.Context, id generic.EntityID) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
