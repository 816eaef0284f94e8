package leave

import (
	"context"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
)

// Get returns a request the actor is allowed to see.
func (e *Engine) Get(ctx context.Context, actor directory.Actor, id string) (*LeaveRequest, error) {
	req, err := e.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, generic.Internal(err, "load request "+id)
	}
	if err := e.requireVisibility(ctx, e.Store, actor, req.EmployeeID); err != nil {
		return nil, err
	}
	return req, nil
}

// List returns the requests visible to the actor: all of them for HR and
// admins, the department's for a manager, the actor's own otherwise.
func (e *Engine) List(ctx context.Context, actor directory.Actor, f ListFilter) ([]LeaveRequest, error) {
	scoped, err := e.scope(ctx, actor, f)
	if err != nil {
		return nil, err
	}
	reqs, err := e.Store.ListRequests(ctx, scoped)
	if err != nil {
		return nil, generic.Internal(err, "list requests")
	}
	return reqs, nil
}

// Stats counts the visible requests per status.
func (e *Engine) Stats(ctx context.Context, actor directory.Actor) (Stats, error) {
	reqs, err := e.List(ctx, actor, ListFilter{})
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		stats.ByStatus[s] = 0
	}
	for _, r := range reqs {
		stats.ByStatus[r.Status]++
		stats.Total++
	}
	return stats, nil
}

// Calendar lists the visible Approved requests overlapping the period.
func (e *Engine) Calendar(ctx context.Context, actor directory.Actor, period generic.Period) ([]LeaveRequest, error) {
	return e.List(ctx, actor, ListFilter{
		Statuses:    []Status{StatusApproved},
		Overlapping: &period,
	})
}

// Types describes every leave type under the current policy.
func (e *Engine) Types() []TypeInfo {
	return e.Policy.Types()
}

// AuthorizedAbsences maps each employee to the approved leave ranges that
// overlap period and excuse attendance under the policy.
func (e *Engine) AuthorizedAbsences(ctx context.Context, period generic.Period) (map[generic.EntityID][]generic.Period, error) {
	reqs, err := e.Store.ListRequests(ctx, ListFilter{
		Statuses:    []Status{StatusApproved},
		Types:       e.Policy.AuthorizedTypes,
		Overlapping: &period,
	})
	if err != nil {
		return nil, generic.Internal(err, "list authorized absences")
	}
	out := make(map[generic.EntityID][]generic.Period)
	for _, r := range reqs {
		if !e.Policy.Authorizes(r.Type) {
			continue
		}
		out[r.EmployeeID] = append(out[r.EmployeeID], r.Period)
	}
	return out, nil
}

// AuthorizedOn reports whether the employee is on authorized leave that day.
func (e *Engine) AuthorizedOn(ctx context.Context, employeeID generic.EntityID, day generic.TimePoint) (bool, error) {
	absences, err := e.AuthorizedAbsences(ctx, generic.Period{Start: day, End: day})
	if err != nil {
		return false, err
	}
	return len(absences[employeeID]) > 0, nil
}

func (e *Engine) scope(ctx context.Context, actor directory.Actor, f ListFilter) (ListFilter, error) {
	switch {
	case actor.Role.Can(directory.CapViewAllLeaves):
		return f, nil
	case actor.Role.Can(directory.CapViewDepartmentLeaves):
		mgr, err := e.Store.GetEmployee(ctx, string(actor.EmployeeID))
		if err != nil {
			return ListFilter{}, generic.Internal(err, "load manager")
		}
		if f.EmployeeID != "" && f.EmployeeID != actor.EmployeeID {
			if err := e.requireVisibility(ctx, e.Store, actor, f.EmployeeID); err != nil {
				return ListFilter{}, err
			}
			return f, nil
		}
		if f.EmployeeID == "" {
			if mgr.DepartmentID == "" {
				f.EmployeeID = actor.EmployeeID
			} else {
				f.DepartmentID = mgr.DepartmentID
			}
		}
		return f, nil
	default:
		if f.EmployeeID != "" && f.EmployeeID != actor.EmployeeID {
			return ListFilter{}, generic.PermissionDenied("you can only list your own requests")
		}
		f.EmployeeID = actor.EmployeeID
		return f, nil
	}
}

// requireVisibility allows the employee themselves, readers of all leaves,
// balance administrators, and the employee's department manager.
func (e *Engine) requireVisibility(ctx context.Context, r directory.Reader, actor directory.Actor, employeeID generic.EntityID) error {
	if actor.Is(employeeID) || actor.Role.Can(directory.CapViewAllLeaves) {
		return nil
	}
	emp, err := r.GetEmployee(ctx, string(employeeID))
	if err != nil {
		return generic.Internal(err, "load employee "+string(employeeID))
	}
	ok, err := directory.IsDepartmentManager(ctx, r, actor, emp)
	if err != nil {
		return err
	}
	if !ok {
		return generic.PermissionDenied("employee %s is outside your scope", employeeID)
	}
	return nil
}
