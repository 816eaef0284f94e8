/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract: dates travel as
  YYYY-MM-DD strings, durations as whole minutes, amounts as decimal
  strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Leave:
    SubmitLeaveRequest, DecisionRequest, BatchDecisionRequest,
    LeaveRequestDTO, AuditEntryDTO, BatchResultDTO, LeaveStatsDTO, LeaveTypeDTO

  Balance:
    BalanceDTO, TransactionDTO, AdjustmentRequest

  Directory:
    EmployeeDTO, CreateEmployeeRequest, SetActiveRequest,
    DepartmentDTO, CreateDepartmentRequest

  Attendance:
    ClockRequest, AttendanceRecordDTO, DailyReportDTO,
    LatenessReportDTO, AttendanceStatsDTO

VALIDATION:
  Request types carry validator tags checked by Handler.decode
  (validate.go). Domain rules (overlaps, limits, roles) stay in the engines.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Tag validation
*/
package api

import (
	"time"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/leave"
)

const dateLayout = "2006-01-02"

// =============================================================================
// ERRORS
// =============================================================================

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// =============================================================================
// LEAVE
// =============================================================================

// SubmitLeaveRequest files a leave for the caller. EmployeeID may be
// omitted and defaults to the caller.
type SubmitLeaveRequest struct {
	EmployeeID   string `json:"employee_id"`
	Type         string `json:"type" validate:"required"`
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason       string `json:"reason" validate:"max=1000"`
	DocumentRef  string `json:"document_ref" validate:"max=255"`
	DocumentKind string `json:"document_kind"`
	Insured      bool   `json:"insured"`
}

type DecisionRequest struct {
	Decision string `json:"decision" validate:"required"`
	Comment  string `json:"comment" validate:"max=1000"`
}

// BatchDecisionRequest applies one HR decision to several requests.
type BatchDecisionRequest struct {
	RequestIDs []string `json:"request_ids" validate:"required,min=1,max=200,dive,required"`
	Decision   string   `json:"decision" validate:"required"`
	Comment    string   `json:"comment" validate:"max=1000"`
}

type AuditEntryDTO struct {
	Actor   string    `json:"actor"`
	Role    string    `json:"role"`
	Action  string    `json:"action"`
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
	Comment string    `json:"comment,omitempty"`
}

type LeaveRequestDTO struct {
	ID               string          `json:"id"`
	EmployeeID       string          `json:"employee_id"`
	Type             string          `json:"type"`
	Reason           string          `json:"reason,omitempty"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	Days             int             `json:"days"`
	Status           string          `json:"status"`
	DocumentRef      string          `json:"document_ref,omitempty"`
	DocumentKind     string          `json:"document_kind,omitempty"`
	Insured          bool            `json:"insured"`
	Comment          string          `json:"comment,omitempty"`
	ManagerValidator *AuditEntryDTO  `json:"manager_validator,omitempty"`
	HRValidator      *AuditEntryDTO  `json:"hr_validator,omitempty"`
	Audit            []AuditEntryDTO `json:"audit"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type BatchResultDTO struct {
	RequestID string           `json:"request_id"`
	Request   *LeaveRequestDTO `json:"request,omitempty"`
	Error     *ErrorBody       `json:"error,omitempty"`
}

type BatchResponse struct {
	Decided int              `json:"decided"`
	Failed  int              `json:"failed"`
	Results []BatchResultDTO `json:"results"`
}

type LeaveStatsDTO struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

type LeaveTypeDTO struct {
	Type             string `json:"type"`
	MaxDays          *int   `json:"max_days,omitempty"`
	ChargesBalance   bool   `json:"charges_balance"`
	RequiresDocument bool   `json:"requires_document"`
	Authorized       bool   `json:"authorized_absence"`
}

// =============================================================================
// BALANCE
// =============================================================================

type BalanceDTO struct {
	EmployeeID string `json:"employee_id"`
	Available  string `json:"available"`
	Unit       string `json:"unit"`
}

type EmployeeBalanceDTO struct {
	EmployeeID   string `json:"employee_id"`
	Name         string `json:"name"`
	DepartmentID string `json:"department_id,omitempty"`
	Available    string `json:"available"`
	Unit         string `json:"unit"`
}

// TransactionDTO is one ledger line with the balance after it.
type TransactionDTO struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	EffectiveAt  string    `json:"effective_at"`
	Delta        string    `json:"delta"`
	BalanceAfter string    `json:"balance_after"`
	ReferenceID  string    `json:"reference_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type AdjustmentRequest struct {
	Delta  int    `json:"delta" validate:"required,min=-366,max=366"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

type EmployeeDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	DepartmentID string    `json:"department_id,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	HireDate     string    `json:"hire_date"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateEmployeeRequest struct {
	ID             string `json:"id" validate:"required,max=64"`
	Name           string `json:"name" validate:"required,max=200"`
	Email          string `json:"email" validate:"omitempty,email"`
	DepartmentID   string `json:"department_id"`
	Role           string `json:"role" validate:"required"`
	HireDate       string `json:"hire_date" validate:"omitempty,datetime=2006-01-02"`
	OpeningBalance *int   `json:"opening_balance" validate:"omitempty,min=0"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type DepartmentDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ManagerID string    `json:"manager_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateDepartmentRequest struct {
	ID        string `json:"id" validate:"required,max=64"`
	Name      string `json:"name" validate:"required,max=200"`
	ManagerID string `json:"manager_id"`
}

type DocumentDTO struct {
	DocumentRef string `json:"document_ref"`
	Size        int64  `json:"size"`
	Kind        string `json:"kind,omitempty"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// ClockRequest is the body of check-in and check-out. Both fields are
// optional: the caller and the server clock are used when omitted.
type ClockRequest struct {
	EmployeeID string     `json:"employee_id" validate:"max=64"`
	At         *time.Time `json:"at"`
}

type AttendanceRecordDTO struct {
	ID              string     `json:"id"`
	EmployeeID      string     `json:"employee_id"`
	Date            string     `json:"date"`
	CheckIn         *time.Time `json:"check_in,omitempty"`
	CheckOut        *time.Time `json:"check_out,omitempty"`
	Status          string     `json:"status"`
	LatenessMinutes int        `json:"lateness_minutes"`
	WorkedMinutes   int        `json:"worked_minutes"`
	OvertimeMinutes int        `json:"overtime_minutes"`
}

type EmployeeRefDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DepartmentID string `json:"department_id,omitempty"`
}

type LateEntryDTO struct {
	Employee        EmployeeRefDTO `json:"employee"`
	CheckIn         time.Time      `json:"check_in"`
	LatenessMinutes int            `json:"lateness_minutes"`
}

type DailyReportDTO struct {
	Date    string           `json:"date"`
	Present int              `json:"present"`
	Absent  []EmployeeRefDTO `json:"absent"`
	Late    []LateEntryDTO   `json:"late"`
	OnLeave []EmployeeRefDTO `json:"on_leave"`
}

type LatenessSummaryDTO struct {
	Employee             EmployeeRefDTO `json:"employee"`
	TodayStatus          string         `json:"today_status"`
	TodayLatenessMinutes int            `json:"today_lateness_minutes"`
	LateDays             int            `json:"late_days"`
	AbsentDays           int            `json:"absent_days"`
	Days                 int            `json:"days"`
	Minutes              int            `json:"minutes"`
	Compensation         string         `json:"compensation"`
	Sanction             bool           `json:"sanction"`
}

type LatenessReportDTO struct {
	AsOf       string               `json:"as_of"`
	WindowDays int                  `json:"window_days"`
	Sanctioned int                  `json:"sanctioned"`
	Rows       []LatenessSummaryDTO `json:"rows"`
}

type AttendanceStatsDTO struct {
	Date    string `json:"date"`
	Records int    `json:"records"`
	Late    int    `json:"late"`
	Absent  int    `json:"absent"`
	OnLeave int    `json:"on_leave"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func minutes(d time.Duration) int { return int(d / time.Minute) }

func toAuditDTO(e leave.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		Actor:   string(e.Actor),
		Role:    string(e.Role),
		Action:  string(e.Action),
		Status:  string(e.Status),
		At:      e.At,
		Comment: e.Comment,
	}
}

func toLeaveDTO(r *leave.LeaveRequest) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:           r.ID,
		EmployeeID:   string(r.EmployeeID),
		Type:         string(r.Type),
		Reason:       r.Reason,
		StartDate:    r.Period.Start.String(),
		EndDate:      r.Period.End.String(),
		Days:         r.Days(),
		Status:       string(r.Status),
		DocumentRef:  r.DocumentRef,
		DocumentKind: string(r.DocumentKind),
		Insured:      r.Insured,
		Comment:      r.Comment,
		Audit:        make([]AuditEntryDTO, 0, len(r.Audit)),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	for _, e := range r.Audit {
		dto.Audit = append(dto.Audit, toAuditDTO(e))
	}
	if m := r.ManagerValidator(); m != nil {
		a := toAuditDTO(*m)
		dto.ManagerValidator = &a
	}
	if h := r.HRValidator(); h != nil {
		a := toAuditDTO(*h)
		dto.HRValidator = &a
	}
	return dto
}

func toLeaveDTOs(reqs []leave.LeaveRequest) []LeaveRequestDTO {
	out := make([]LeaveRequestDTO, 0, len(reqs))
	for i := range reqs {
		out = append(out, toLeaveDTO(&reqs[i]))
	}
	return out
}

func toLeaveTypeDTO(t leave.TypeInfo) LeaveTypeDTO {
	dto := LeaveTypeDTO{
		Type:             string(t.Type),
		ChargesBalance:   t.ChargesBalance,
		RequiresDocument: t.RequiresDocument,
		Authorized:       t.Authorized,
	}
	if t.Bounded {
		max := t.MaxDays
		dto.MaxDays = &max
	}
	return dto
}

// toTransactionDTOs replays the ledger in order and reports the running
// balance after each line.
func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txs))
	running := generic.NewAmountFromInt(0, generic.UnitDays)
	for _, tx := range txs {
		running = running.Add(tx.Delta)
		out = append(out, TransactionDTO{
			ID:           string(tx.ID),
			Type:         string(tx.Type),
			EffectiveAt:  tx.EffectiveAt.String(),
			Delta:        tx.Delta.Value.String(),
			BalanceAfter: running.Value.String(),
			ReferenceID:  tx.ReferenceID,
			Reason:       tx.Reason,
			CreatedBy:    tx.CreatedBy,
			CreatedAt:    tx.CreatedAt,
		})
	}
	return out
}

func toEmployeeDTO(e *directory.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:           string(e.ID),
		Name:         e.Name,
		Email:        e.Email,
		DepartmentID: e.DepartmentID,
		Role:         string(e.Role),
		Active:       e.Active,
		HireDate:     e.HireDate.String(),
		CreatedAt:    e.CreatedAt,
	}
}

func toDepartmentDTO(d *directory.Department) DepartmentDTO {
	return DepartmentDTO{ID: d.ID, Name: d.Name, ManagerID: string(d.ManagerID), CreatedAt: d.CreatedAt}
}

func toRecordDTO(r *attendance.Record) AttendanceRecordDTO {
	return AttendanceRecordDTO{
		ID:              r.ID,
		EmployeeID:      string(r.EmployeeID),
		Date:            r.Date.String(),
		CheckIn:         r.CheckIn,
		CheckOut:        r.CheckOut,
		Status:          string(r.Status),
		LatenessMinutes: minutes(r.Lateness),
		WorkedMinutes:   minutes(r.Worked),
		OvertimeMinutes: minutes(r.Overtime),
	}
}

func toRefDTO(r attendance.EmployeeRef) EmployeeRefDTO {
	return EmployeeRefDTO{ID: string(r.ID), Name: r.Name, DepartmentID: r.DepartmentID}
}

func toRefDTOs(refs []attendance.EmployeeRef) []EmployeeRefDTO {
	out := make([]EmployeeRefDTO, 0, len(refs))
	for _, r := range refs {
		out = append(out, toRefDTO(r))
	}
	return out
}

func toDailyDTO(r *attendance.DailyReport) DailyReportDTO {
	dto := DailyReportDTO{
		Date:    r.Date.String(),
		Present: r.Present,
		Absent:  toRefDTOs(r.Absent),
		Late:    make([]LateEntryDTO, 0, len(r.Late)),
		OnLeave: toRefDTOs(r.OnLeave),
	}
	for _, l := range r.Late {
		dto.Late = append(dto.Late, LateEntryDTO{
			Employee:        toRefDTO(l.Employee),
			CheckIn:         l.CheckIn,
			LatenessMinutes: minutes(l.Lateness),
		})
	}
	return dto
}

func toLatenessDTO(asOf generic.TimePoint, window int, rows []attendance.LatenessSummary) LatenessReportDTO {
	dto := LatenessReportDTO{AsOf: asOf.String(), WindowDays: window, Rows: make([]LatenessSummaryDTO, 0, len(rows))}
	for _, s := range rows {
		if s.Sanction {
			dto.Sanctioned++
		}
		dto.Rows = append(dto.Rows, LatenessSummaryDTO{
			Employee:             toRefDTO(s.Employee),
			TodayStatus:          string(s.Today.Status),
			TodayLatenessMinutes: minutes(s.Today.Lateness),
			LateDays:             s.LateDays,
			AbsentDays:           s.AbsentDays,
			Days:                 s.Days(),
			Minutes:              s.Minutes,
			Compensation:         s.Compensation,
			Sanction:             s.Sanction,
		})
	}
	return dto
}
