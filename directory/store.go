package directory

import "context"

// Reader is the read side of the directory. Missing rows are reported as
// generic.ErrEntityNotFound.
type Reader interface {
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error)
	GetDepartment(ctx context.Context, id string) (*Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
}

// Writer upserts directory rows. There is no delete.
type Writer interface {
	SaveEmployee(ctx context.Context, e Employee) error
	SaveDepartment(ctx context.Context, d Department) error
}

type Store interface {
	Reader
	Writer
}
