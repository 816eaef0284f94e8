/*
handlers.go - HTTP request handlers for the leave and attendance API

PURPOSE:
  Implements the REST endpoints. Each handler resolves the caller from the
  request context, decodes and validates the body, calls one engine
  operation, and converts the result to a DTO.

ENDPOINTS:
  Leaves:
    POST   /api/leaves                      Submit a leave request
    GET    /api/leaves                      List visible requests
    GET    /api/leaves/stats                Counts per status
    GET    /api/leaves/calendar             Approved leave in a date range
    POST   /api/leaves/hr-decisions         Batch HR decision
    GET    /api/leaves/{id}                 Get one request
    POST   /api/leaves/{id}/manager-decision
    POST   /api/leaves/{id}/hr-decision
    DELETE /api/leaves/{id}                 Withdraw
    GET    /api/leave-types                 Types and limits

  Employees and departments:
    GET    /api/employees                   List (HR/admin)
    POST   /api/employees                   Onboard with opening balance
    GET    /api/employees/{id}
    PUT    /api/employees/{id}/active       Activate or deactivate
    GET    /api/employees/{id}/balance
    GET    /api/employees/{id}/ledger       Transactions with running balance
    POST   /api/employees/{id}/adjustments  Manual balance correction
    GET    /api/balances                    Every active employee's balance (HR, admin)
    GET    /api/departments
    POST   /api/departments
    POST   /api/documents                   Upload a supporting document

  Attendance:
    POST   /api/attendance/check-in
    POST   /api/attendance/check-out
    GET    /api/attendance/today            Caller's record for today
    GET    /api/attendance                  History (?employee_id&from&to)

  Reports (HR/admin):
    GET    /api/reports/daily               ?date
    GET    /api/reports/daily.pdf           ?date
    GET    /api/reports/lateness            ?as_of&window
    GET    /api/reports/lateness.pdf        ?as_of&window
    GET    /api/reports/attendance-stats    ?date

ERROR HANDLING:
  Engines return *generic.Error; writeError maps the kind to a status:
    validation_error                                   400
    unauthenticated                                    401
    permission_denied                                  403
    not_found                                          404
    illegal_transition, insufficient_balance,
    already_checked_in, already_checked_out,
    no_check_in_found                                  409
    internal_error                                     500
  Body: {"error": {"code": "<kind>", "message": "..."}}

SEE ALSO:
  - dto.go: Request/response types
  - server.go: Route configuration
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/identity"
	"github.com/warp/leave-governance/leave"
	"github.com/warp/leave-governance/report"
)

// defaultHistoryDays is the range of GET /api/attendance without from.
const defaultHistoryDays = 30

var documentExtensions = map[string]bool{".pdf": true, ".png": true, ".jpg": true, ".jpeg": true}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Leaves     *leave.Engine
	Attendance *attendance.Engine
	Directory  *directory.Service
	Validate   *validator.Validate
	Logger     *zap.Logger

	DocumentsDir    string
	MaxDocumentSize int64
}

// NewHandler creates a new handler.
func NewHandler(leaves *leave.Engine, att *attendance.Engine, dir *directory.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Leaves:          leaves,
		Attendance:      att,
		Directory:       dir,
		Validate:        newValidator(),
		Logger:          logger,
		DocumentsDir:    "documents",
		MaxDocumentSize: 10 << 20,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func statusOf(kind generic.Kind) int {
	switch kind {
	case generic.KindValidation:
		return http.StatusBadRequest
	case generic.KindUnauthenticated:
		return http.StatusUnauthorized
	case generic.KindPermissionDenied:
		return http.StatusForbidden
	case generic.KindNotFound:
		return http.StatusNotFound
	case generic.KindIllegalTransition, generic.KindInsufficientBalance,
		generic.KindAlreadyCheckedIn, generic.KindAlreadyCheckedOut, generic.KindNoCheckInFound:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func errorBody(err error) ErrorBody {
	kind := generic.KindOf(err)
	msg := generic.MessageOf(err)
	if kind == generic.KindInternal {
		msg = "internal error"
	}
	return ErrorBody{Code: string(kind), Message: msg}
}

// writeError renders err. Internal failures are logged with their cause and
// never leak it to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(generic.KindOf(err))
	if !generic.IsClientError(err) {
		h.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: errorBody(err)})
}

func actorOf(r *http.Request) (directory.Actor, error) {
	a, ok := identity.FromContext(r.Context())
	if !ok {
		return directory.Actor{}, generic.Unauthenticated("no caller identity")
	}
	return a, nil
}

// dateParam parses a YYYY-MM-DD query parameter, def when absent.
func dateParam(r *http.Request, name string, def generic.TimePoint) (generic.TimePoint, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	tp, err := generic.ParseTimePoint(s)
	if err != nil {
		return generic.TimePoint{}, generic.Validation("%s must be a date in YYYY-MM-DD format", name)
	}
	return tp, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, generic.Validation("%s must be a positive integer", name)
	}
	return n, nil
}

func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// =============================================================================
// LEAVE ENDPOINTS
// =============================================================================

// SubmitLeave files a request for the caller.
// POST /api/leaves
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req SubmitLeaveRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	in, err := req.input()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lr, err := h.Leaves.Submit(r.Context(), actor, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveDTO(lr))
}

func (req SubmitLeaveRequest) input() (leave.SubmitInput, error) {
	t, err := leave.ParseLeaveType(req.Type)
	if err != nil {
		return leave.SubmitInput{}, err
	}
	start, err := generic.ParseTimePoint(req.StartDate)
	if err != nil {
		return leave.SubmitInput{}, generic.Validation("start_date: %v", err)
	}
	end, err := generic.ParseTimePoint(req.EndDate)
	if err != nil {
		return leave.SubmitInput{}, generic.Validation("end_date: %v", err)
	}
	in := leave.SubmitInput{
		EmployeeID:  generic.EntityID(req.EmployeeID),
		Type:        t,
		Start:       start,
		End:         end,
		Reason:      req.Reason,
		DocumentRef: req.DocumentRef,
		Insured:     req.Insured,
	}
	if req.DocumentKind != "" {
		if in.DocumentKind, err = leave.ParseDocumentKind(req.DocumentKind); err != nil {
			return leave.SubmitInput{}, err
		}
	}
	return in, nil
}

// ListLeaves returns the requests visible to the caller.
// GET /api/leaves?employee_id=&department_id=&status=a,b&type=a,b
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := leave.ListFilter{
		EmployeeID:   generic.EntityID(q.Get("employee_id")),
		DepartmentID: q.Get("department_id"),
	}
	for _, s := range listParam(r, "status") {
		st, err := leave.ParseStatus(s)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, s := range listParam(r, "type") {
		t, err := leave.ParseLeaveType(s)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.Types = append(f.Types, t)
	}

	reqs, err := h.Leaves.List(r.Context(), actor, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTOs(reqs))
}

// GetLeave returns one request.
// GET /api/leaves/{id}
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lr, err := h.Leaves.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(lr))
}

// ManagerDecision approves or rejects a pending request.
// POST /api/leaves/{id}/manager-decision
func (h *Handler) ManagerDecision(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Leaves.ManagerDecide)
}

// HRDecision approves or rejects a request awaiting HR.
// POST /api/leaves/{id}/hr-decision
func (h *Handler) HRDecision(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Leaves.HRDecide)
}

type decideFunc func(ctx context.Context, requestID string, actor directory.Actor, d leave.Decision, comment string) (*leave.LeaveRequest, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn decideFunc) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req DecisionRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := leave.ParseDecision(req.Decision)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lr, err := fn(r.Context(), chi.URLParam(r, "id"), actor, d, req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(lr))
}

// BatchHRDecision applies one HR decision to several requests. Each id is
// decided on its own; the response reports every outcome.
// POST /api/leaves/hr-decisions
func (h *Handler) BatchHRDecision(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req BatchDecisionRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := leave.ParseDecision(req.Decision)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := actor.Require(directory.CapHRDecide); err != nil {
		h.writeError(w, r, err)
		return
	}

	results := h.Leaves.HRDecideBatch(r.Context(), req.RequestIDs, actor, d, req.Comment)
	resp := BatchResponse{Results: make([]BatchResultDTO, 0, len(results))}
	for _, res := range results {
		item := BatchResultDTO{RequestID: res.RequestID}
		if res.Err != nil {
			body := errorBody(res.Err)
			item.Error = &body
			resp.Failed++
		} else {
			dto := toLeaveDTO(res.Request)
			item.Request = &dto
			resp.Decided++
		}
		resp.Results = append(resp.Results, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// WithdrawLeave retracts the caller's untouched pending request.
// DELETE /api/leaves/{id}
func (h *Handler) WithdrawLeave(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Leaves.Withdraw(r.Context(), id, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	lr, err := h.Leaves.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(lr))
}

// LeaveStats counts the visible requests per status.
// GET /api/leaves/stats
func (h *Handler) LeaveStats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.Leaves.Stats(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dto := LeaveStatsDTO{Total: stats.Total, ByStatus: make(map[string]int, len(stats.ByStatus))}
	for s, n := range stats.ByStatus {
		dto.ByStatus[string(s)] = n
	}
	writeJSON(w, http.StatusOK, dto)
}

// LeaveCalendar lists approved leave overlapping [from, to].
// GET /api/leaves/calendar?from=&to=
func (h *Handler) LeaveCalendar(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	today := h.Attendance.Today()
	from, err := dateParam(r, "from", today)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := dateParam(r, "to", from.AddDays(30))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	period, err := generic.NewPeriod(from, to)
	if err != nil {
		h.writeError(w, r, generic.Validation("from %s is after to %s", from, to))
		return
	}
	reqs, err := h.Leaves.Calendar(r.Context(), actor, period)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTOs(reqs))
}

// LeaveTypes describes every leave type under the current policy.
// GET /api/leave-types
func (h *Handler) LeaveTypes(w http.ResponseWriter, r *http.Request) {
	types := h.Leaves.Types()
	out := make([]LeaveTypeDTO, 0, len(types))
	for _, t := range types {
		out = append(out, toLeaveTypeDTO(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// BALANCE ENDPOINTS
// =============================================================================

// GetBalance returns the available annual leave of an employee.
// GET /api/employees/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := generic.EntityID(chi.URLParam(r, "id"))
	amount, err := h.Leaves.BalanceOf(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{EmployeeID: string(id), Available: amount.Value.String(), Unit: string(amount.Unit)})
}

// ListBalances returns every active employee's balance.
// GET /api/balances
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rows, err := h.Leaves.Balances(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]EmployeeBalanceDTO, 0, len(rows))
	for _, b := range rows {
		out = append(out, EmployeeBalanceDTO{
			EmployeeID:   string(b.Employee.ID),
			Name:         b.Employee.Name,
			DepartmentID: b.Employee.DepartmentID,
			Available:    b.Available.Value.String(),
			Unit:         string(b.Available.Unit),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetLedger returns the balance transactions of an employee.
// GET /api/employees/{id}/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txs, err := h.Leaves.LedgerOf(r.Context(), actor, generic.EntityID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// CreateAdjustment records a manual balance correction.
// POST /api/employees/{id}/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req AdjustmentRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	id := generic.EntityID(chi.URLParam(r, "id"))
	after, err := h.Leaves.AdjustBalance(r.Context(), actor, id, req.Delta, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BalanceDTO{EmployeeID: string(id), Available: after.Value.String(), Unit: string(after.Unit)})
}

// =============================================================================
// DIRECTORY ENDPOINTS
// =============================================================================

// ListEmployees returns all employees, or only active ones with ?active=true.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	emps, err := h.Directory.ListEmployees(r.Context(), actor, activeOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]EmployeeDTO, 0, len(emps))
	for i := range emps {
		out = append(out, toEmployeeDTO(&emps[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateEmployee onboards an employee and opens their leave account.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req CreateEmployeeRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	role, err := directory.ParseRole(req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	emp := directory.Employee{
		ID:           generic.EntityID(strings.TrimSpace(req.ID)),
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		Role:         role,
		Active:       true,
	}
	if req.HireDate != "" {
		if emp.HireDate, err = generic.ParseTimePoint(req.HireDate); err != nil {
			h.writeError(w, r, generic.Validation("hire_date: %v", err))
			return
		}
	}

	created, err := h.Leaves.Onboard(r.Context(), actor, emp, req.OpeningBalance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(created))
}

// GetEmployee returns one employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	emp, err := h.Directory.GetEmployee(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// SetEmployeeActive activates or deactivates an employee.
// PUT /api/employees/{id}/active
func (h *Handler) SetEmployeeActive(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req SetActiveRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	emp, err := h.Directory.SetActive(r.Context(), actor, chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// ListDepartments returns every department.
// GET /api/departments
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	deps, err := h.Directory.ListDepartments(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]DepartmentDTO, 0, len(deps))
	for i := range deps {
		out = append(out, toDepartmentDTO(&deps[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateDepartment adds a department.
// POST /api/departments
func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req CreateDepartmentRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := h.Directory.CreateDepartment(r.Context(), actor, directory.Department{
		ID:        strings.TrimSpace(req.ID),
		Name:      strings.TrimSpace(req.Name),
		ManagerID: generic.EntityID(req.ManagerID),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepartmentDTO(d))
}

// UploadDocument stores a supporting document (multipart field "file") and
// returns the reference to put in a sick leave submission.
// POST /api/documents
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxDocumentSize+(1<<16))
	if err := r.ParseMultipartForm(h.MaxDocumentSize); err != nil {
		h.writeError(w, r, generic.Validation("invalid upload: %v", err))
		return
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, generic.Validation("file is required"))
		return
	}
	defer file.Close()

	kind := r.FormValue("kind")
	if kind != "" {
		k, err := leave.ParseDocumentKind(kind)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		kind = string(k)
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !documentExtensions[ext] {
		h.writeError(w, r, generic.Validation("unsupported document type %q", ext))
		return
	}
	if fh.Size > h.MaxDocumentSize {
		h.writeError(w, r, generic.Validation("document exceeds %d bytes", h.MaxDocumentSize))
		return
	}

	ref := uuid.NewString() + ext
	size, err := h.storeDocument(ref, file)
	if err != nil {
		h.writeError(w, r, generic.Internal(err, "store document"))
		return
	}
	h.Logger.Info("document uploaded",
		zap.String("document_ref", ref),
		zap.String("actor", actor.String()),
		zap.Int64("size", size))
	writeJSON(w, http.StatusCreated, DocumentDTO{DocumentRef: ref, Size: size, Kind: kind})
}

func (h *Handler) storeDocument(ref string, src io.Reader) (int64, error) {
	if err := os.MkdirAll(h.DocumentsDir, 0o750); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(filepath.Join(h.DocumentsDir, ref), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// =============================================================================
// ATTENDANCE ENDPOINTS
// =============================================================================

// clockTarget resolves who is being clocked and when. Employees clock
// themselves at the server time; a kiosk operator (CapClockOthers) may
// name another employee and an explicit instant.
func (h *Handler) clockTarget(r *http.Request) (generic.EntityID, time.Time, error) {
	actor, err := actorOf(r)
	if err != nil {
		return "", time.Time{}, err
	}
	var req ClockRequest
	if err := h.decode(r, &req, true); err != nil {
		return "", time.Time{}, err
	}
	target := generic.EntityID(req.EmployeeID)
	if target == "" {
		target = actor.EmployeeID
	}
	if actor.Is(target) && req.At == nil {
		if err := actor.Require(directory.CapCheckIn); err != nil {
			return "", time.Time{}, err
		}
		return target, h.Attendance.Now(), nil
	}
	if err := actor.Require(directory.CapClockOthers); err != nil {
		return "", time.Time{}, err
	}
	at := h.Attendance.Now()
	if req.At != nil {
		at = *req.At
	}
	return target, at, nil
}

// CheckIn opens today's attendance record.
// POST /api/attendance/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, at, err := h.clockTarget(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.Attendance.CheckIn(r.Context(), id, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// CheckOut closes today's attendance record.
// POST /api/attendance/check-out
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	id, at, err := h.clockTarget(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.Attendance.CheckOut(r.Context(), id, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// TodayRecord returns the caller's record for the current local day, or an
// on_leave placeholder when there is none and the caller is on approved leave.
// GET /api/attendance/today
func (h *Handler) TodayRecord(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	today := h.Attendance.Today()
	rec, err := h.Attendance.Record(r.Context(), actor.EmployeeID, today)
	if generic.IsNotFound(err) {
		// no record yet: report approved leave instead of a 404
		onLeave, lerr := h.Leaves.AuthorizedOn(r.Context(), actor.EmployeeID, today)
		if lerr != nil {
			h.writeError(w, r, lerr)
			return
		}
		if onLeave {
			writeJSON(w, http.StatusOK, AttendanceRecordDTO{
				EmployeeID: string(actor.EmployeeID),
				Date:       today.String(),
				Status:     string(attendance.StatusOnLeave),
			})
			return
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// AttendanceHistory lists records in a date range. Without report access
// the caller only sees their own.
// GET /api/attendance?employee_id=&from=&to=
func (h *Handler) AttendanceHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := generic.EntityID(r.URL.Query().Get("employee_id"))
	if !actor.Role.Can(directory.CapViewReports) {
		if id != "" && !actor.Is(id) {
			h.writeError(w, r, generic.PermissionDenied("attendance of %s is not visible to %s", id, actor.EmployeeID))
			return
		}
		id = actor.EmployeeID
	}
	to, err := dateParam(r, "to", h.Attendance.Today())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	from, err := dateParam(r, "from", to.AddDays(-(defaultHistoryDays - 1)))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	period, err := generic.NewPeriod(from, to)
	if err != nil {
		h.writeError(w, r, generic.Validation("from %s is after to %s", from, to))
		return
	}

	recs, err := h.Attendance.History(r.Context(), id, period)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]AttendanceRecordDTO, 0, len(recs))
	for i := range recs {
		out = append(out, toRecordDTO(&recs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

func (h *Handler) dailyReport(r *http.Request) (*attendance.DailyReport, error) {
	actor, err := actorOf(r)
	if err != nil {
		return nil, err
	}
	if err := actor.Require(directory.CapViewReports); err != nil {
		return nil, err
	}
	date, err := dateParam(r, "date", h.Attendance.Today())
	if err != nil {
		return nil, err
	}
	return h.Attendance.DailyReport(r.Context(), date)
}

// DailyReport lists absent, late and on-leave employees for a date.
// GET /api/reports/daily?date=
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.dailyReport(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyDTO(rep))
}

// DailyReportPDF renders the daily report as a PDF.
// GET /api/reports/daily.pdf?date=
func (h *Handler) DailyReportPDF(w http.ResponseWriter, r *http.Request) {
	rep, err := h.dailyReport(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := report.Daily(rep, h.Attendance.Policy.Location)
	if err != nil {
		h.writeError(w, r, generic.Internal(err, "render daily report"))
		return
	}
	writePDF(w, "daily-"+rep.Date.String()+".pdf", data)
}

func (h *Handler) lateness(r *http.Request) (generic.TimePoint, int, []attendance.LatenessSummary, error) {
	actor, err := actorOf(r)
	if err != nil {
		return generic.TimePoint{}, 0, nil, err
	}
	if err := actor.Require(directory.CapViewReports); err != nil {
		return generic.TimePoint{}, 0, nil, err
	}
	asOf, err := dateParam(r, "as_of", h.Attendance.Today())
	if err != nil {
		return generic.TimePoint{}, 0, nil, err
	}
	window, err := intParam(r, "window", h.Attendance.Policy.WindowDays)
	if err != nil {
		return generic.TimePoint{}, 0, nil, err
	}
	rows, err := h.Attendance.CumulativeLateness(r.Context(), asOf, window)
	return asOf, window, rows, err
}

// LatenessReport returns the rolling lateness totals.
// GET /api/reports/lateness?as_of=&window=
func (h *Handler) LatenessReport(w http.ResponseWriter, r *http.Request) {
	asOf, window, rows, err := h.lateness(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLatenessDTO(asOf, window, rows))
}

// LatenessReportPDF renders the rolling lateness totals as a PDF.
// GET /api/reports/lateness.pdf?as_of=&window=
func (h *Handler) LatenessReportPDF(w http.ResponseWriter, r *http.Request) {
	asOf, window, rows, err := h.lateness(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := report.LatenessDigest(asOf, window, rows)
	if err != nil {
		h.writeError(w, r, generic.Internal(err, "render lateness report"))
		return
	}
	writePDF(w, "lateness-"+asOf.String()+".pdf", data)
}

// AttendanceStats returns headline counts for a date.
// GET /api/reports/attendance-stats?date=
func (h *Handler) AttendanceStats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := actor.Require(directory.CapViewReports); err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := dateParam(r, "date", h.Attendance.Today())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.Attendance.Stats(r.Context(), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceStatsDTO{
		Date:    s.Date.String(),
		Records: s.Records,
		Late:    s.Late,
		Absent:  s.Absent,
		OnLeave: s.OnLeave,
	})
}

func writePDF(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports liveness. It needs no credentials.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
