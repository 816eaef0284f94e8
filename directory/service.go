package directory

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-governance/generic"
)

// Service exposes department management and employee lookups. Creating an
// employee also opens a leave account, so it lives in leave.Engine.Onboard.
type Service struct {
	Store  Store
	Logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Logger: logger}
}

// ValidateEmployee checks the fields an employee record must carry.
func ValidateEmployee(ctx context.Context, r Reader, e Employee) error {
	if strings.TrimSpace(string(e.ID)) == "" {
		return generic.Validation("employee id is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return generic.Validation("employee name is required")
	}
	if !e.Role.Valid() {
		return generic.Validation("unknown role %q", e.Role)
	}
	if e.DepartmentID != "" {
		if _, err := r.GetDepartment(ctx, e.DepartmentID); err != nil {
			if generic.IsNotFound(err) {
				return generic.Validation("department %s does not exist", e.DepartmentID)
			}
			return generic.Internal(err, "load department")
		}
	}
	return nil
}

// CreateDepartment stores a new department. The manager, when given, must
// be an existing employee with the manager role.
func (s *Service) CreateDepartment(ctx context.Context, actor Actor, d Department) (*Department, error) {
	if err := actor.Require(CapManageEmployees); err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Name) == "" {
		return nil, generic.Validation("department id and name are required")
	}
	if d.ManagerID != "" {
		mgr, err := s.Store.GetEmployee(ctx, string(d.ManagerID))
		if err != nil {
			if generic.IsNotFound(err) {
				return nil, generic.Validation("manager %s does not exist", d.ManagerID)
			}
			return nil, generic.Internal(err, "load manager")
		}
		if mgr.Role != RoleManager {
			return nil, generic.Validation("employee %s is not a manager", d.ManagerID)
		}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if err := s.Store.SaveDepartment(ctx, d); err != nil {
		return nil, generic.Internal(err, "save department")
	}
	s.Logger.Info("department created", zap.String("department_id", d.ID), zap.String("manager_id", string(d.ManagerID)))
	return &d, nil
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	deps, err := s.Store.ListDepartments(ctx)
	if err != nil {
		return nil, generic.Internal(err, "list departments")
	}
	return deps, nil
}

// GetEmployee returns the employee if the actor may see it: themselves,
// their department's manager, or anyone managing the directory.
func (s *Service) GetEmployee(ctx context.Context, actor Actor, id string) (*Employee, error) {
	emp, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, generic.Internal(err, "load employee "+id)
	}
	if actor.Is(emp.ID) || actor.Role.Can(CapManageEmployees) {
		return emp, nil
	}
	ok, err := IsDepartmentManager(ctx, s.Store, actor, emp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, generic.PermissionDenied("employee %s is outside your department", id)
	}
	return emp, nil
}

func (s *Service) ListEmployees(ctx context.Context, actor Actor, activeOnly bool) ([]Employee, error) {
	if err := actor.Require(CapManageEmployees); err != nil {
		return nil, err
	}
	emps, err := s.Store.ListEmployees(ctx, activeOnly)
	if err != nil {
		return nil, generic.Internal(err, "list employees")
	}
	return emps, nil
}

// SetActive activates or deactivates an employee.
func (s *Service) SetActive(ctx context.Context, actor Actor, id string, active bool) (*Employee, error) {
	if err := actor.Require(CapManageEmployees); err != nil {
		return nil, err
	}
	emp, err := s.Store.GetEmployee(ctx, id)
	if err != nil {
		return nil, generic.Internal(err, "load employee "+id)
	}
	emp.Active = active
	if err := s.Store.SaveEmployee(ctx, *emp); err != nil {
		return nil, generic.Internal(err, "save employee")
	}
	s.Logger.Info("employee status changed", zap.String("employee_id", id), zap.Bool("active", active))
	return emp, nil
}

// IsDepartmentManager reports whether actor manages employee: the actor has
// the manager role, belongs to the employee's department, and is that
// department's declared manager when one is set.
func IsDepartmentManager(ctx context.Context, r Reader, actor Actor, employee *Employee) (bool, error) {
	if actor.Role != RoleManager || employee.DepartmentID == "" {
		return false, nil
	}
	mgr, err := r.GetEmployee(ctx, string(actor.EmployeeID))
	if err != nil {
		if generic.IsNotFound(err) {
			return false, nil
		}
		return false, generic.Internal(err, "load manager")
	}
	if mgr.DepartmentID != employee.DepartmentID {
		return false, nil
	}
	dept, err := r.GetDepartment(ctx, employee.DepartmentID)
	if err != nil {
		if generic.IsNotFound(err) {
			return true, nil
		}
		return false, generic.Internal(err, "load department")
	}
	return dept.ManagerID == "" || dept.ManagerID == actor.EmployeeID, nil
}
