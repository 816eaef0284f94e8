package leave

import "github.com/warp/leave-governance/generic"

// DefaultOpeningBalance is the annual balance granted on onboarding.
const DefaultOpeningBalance = 30

// defaultLimits caps the duration of each leave type in days. Ordinary
// leave is capped by the balance instead; unpaid leave is unbounded.
var defaultLimits = map[LeaveType]int{
	TypeMaternity:   98,
	TypePaternity:   3,
	TypeExceptional: 3,
	TypeSick:        30,
}

// DefaultAuthorizedTypes are the approved leave types that excuse an
// employee from attendance. Sick and unpaid leave are not in the list.
var DefaultAuthorizedTypes = []LeaveType{TypeOrdinary, TypePaternity, TypeMaternity, TypeExceptional}

// Policy holds the tunable rules of the workflow.
type Policy struct {
	OpeningBalance  int
	AuthorizedTypes []LeaveType
	Limits          map[LeaveType]int // overrides defaultLimits per type
}

func DefaultPolicy() Policy {
	return Policy{
		OpeningBalance:  DefaultOpeningBalance,
		AuthorizedTypes: append([]LeaveType(nil), DefaultAuthorizedTypes...),
	}
}

// Limit returns the maximum duration for t. bounded is false for ordinary
// leave (checked against the balance) and for unpaid leave.
func (p Policy) Limit(t LeaveType) (days int, bounded bool) {
	if d, ok := p.Limits[t]; ok {
		return d, true
	}
	d, ok := defaultLimits[t]
	return d, ok
}

// Authorizes reports whether an approved leave of type t excuses absence.
func (p Policy) Authorizes(t LeaveType) bool {
	for _, a := range p.AuthorizedTypes {
		if a == t {
			return true
		}
	}
	return false
}

// TypeInfo describes a leave type for clients.
type TypeInfo struct {
	Type             LeaveType
	MaxDays          int
	Bounded          bool
	ChargesBalance   bool
	RequiresDocument bool
	Authorized       bool
}

func (p Policy) Types() []TypeInfo {
	out := make([]TypeInfo, 0, len(Types))
	for _, t := range Types {
		max, bounded := p.Limit(t)
		out = append(out, TypeInfo{
			Type:             t,
			MaxDays:          max,
			Bounded:          bounded,
			ChargesBalance:   t == TypeOrdinary,
			RequiresDocument: t == TypeSick,
			Authorized:       p.Authorizes(t),
		})
	}
	return out
}

// validateSubmission checks the parts of a submission that need no storage.
func validateSubmission(in SubmitInput) (generic.Period, error) {
	if in.EmployeeID == "" {
		return generic.Period{}, generic.Validation("employee id is required")
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return generic.Period{}, generic.Validation("start and end dates are required")
	}
	period, err := generic.NewPeriod(in.Start, in.End)
	if err != nil {
		return generic.Period{}, generic.Validation("start date %s is after end date %s", in.Start, in.End)
	}
	switch in.Type {
	case TypeOrdinary, TypeSick, TypeMaternity, TypePaternity, TypeUnpaid, TypeExceptional:
	default:
		return generic.Period{}, generic.Validation("unknown leave type %q", in.Type)
	}
	if in.Type == TypeSick {
		if in.DocumentRef == "" {
			return generic.Period{}, generic.Validation("sick leave requires a supporting document")
		}
		if in.DocumentKind != DocumentCertificate && in.DocumentKind != DocumentHealthBooklet {
			return generic.Period{}, generic.Validation("sick leave requires a document kind (certificate or health_booklet)")
		}
	}
	return period, nil
}
