// Package directory holds the employee and department records the leave and
// attendance engines govern, plus the closed role set and the capabilities
// each role carries.
package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-governance/generic"
)

// =============================================================================
// EMPLOYEE / DEPARTMENT
// =============================================================================

// Employee is never deleted; leaving the company clears Active.
type Employee struct {
	ID           generic.EntityID
	Name         string
	Email        string
	DepartmentID string
	Role         Role
	Active       bool
	HireDate     generic.TimePoint
	CreatedAt    time.Time
}

// Department has at most one manager.
type Department struct {
	ID        string
	Name      string
	ManagerID generic.EntityID
	CreatedAt time.Time
}

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleAdmin    Role = "admin"
)

// Roles lists every role in display order.
var Roles = []Role{RoleEmployee, RoleManager, RoleHR, RoleAdmin}

// ParseRole accepts the role names case-insensitively. "rh" is accepted as
// an alias of hr.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "employee":
		return RoleEmployee, nil
	case "manager":
		return RoleManager, nil
	case "hr", "rh":
		return RoleHR, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", generic.Validation("unknown role %q", s)
}

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// =============================================================================
// CAPABILITIES - Resolved once per request from the role
// =============================================================================

type Capability string

const (
	CapSubmitLeave          Capability = "leave:submit"
	CapManagerDecide        Capability = "leave:manager_decide"
	CapHRDecide             Capability = "leave:hr_decide"
	CapViewDepartmentLeaves Capability = "leave:view_department"
	CapViewAllLeaves        Capability = "leave:view_all"
	CapAdjustBalance        Capability = "balance:adjust"
	CapCheckIn              Capability = "attendance:check_in"
	CapClockOthers          Capability = "attendance:clock_others"
	CapViewReports          Capability = "reports:view"
	CapManageEmployees      Capability = "directory:manage"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleEmployee: {
		CapSubmitLeave: true,
		CapCheckIn:     true,
	},
	RoleManager: {
		CapSubmitLeave:          true,
		CapCheckIn:              true,
		CapManagerDecide:        true,
		CapViewDepartmentLeaves: true,
	},
	RoleHR: {
		CapSubmitLeave:     true,
		CapCheckIn:         true,
		CapHRDecide:        true,
		CapViewAllLeaves:   true,
		CapAdjustBalance:   true,
		CapClockOthers:     true,
		CapViewReports:     true,
		CapManageEmployees: true,
	},
	RoleAdmin: {
		CapViewAllLeaves:   true,
		CapAdjustBalance:   true,
		CapClockOthers:     true,
		CapViewReports:     true,
		CapManageEmployees: true,
	},
}

func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

// =============================================================================
// ACTOR - The resolved caller of an operation
// =============================================================================

// Actor is produced by the identity resolver for every call.
type Actor struct {
	EmployeeID generic.EntityID
	Role       Role
}

// Require returns PermissionDenied unless the actor's role carries c.
func (a Actor) Require(c Capability) error {
	if !a.Role.Can(c) {
		return generic.PermissionDenied("role %s may not %s", a.Role, c)
	}
	return nil
}

// Is reports whether the actor is the given employee.
func (a Actor) Is(id generic.EntityID) bool { return a.EmployeeID == id }

func (a Actor) String() string { return fmt.Sprintf("%s(%s)", a.EmployeeID, a.Role) }
