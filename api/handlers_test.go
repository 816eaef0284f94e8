/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Authentication and error-kind to status mapping
- The leave workflow end to end (submit, manager, HR, balance, ledger)
- Batch HR decisions and withdrawal
- Check-in/check-out, self versus kiosk clocking
- Reports and their PDF renditions
- Document upload and onboarding
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-governance/attendance"
	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/identity"
	"github.com/warp/leave-governance/leave"
	"github.com/warp/leave-governance/metrics"
	"github.com/warp/leave-governance/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// Monday 2 March 2026, 09:00 UTC. Day start is 08:00.
var now = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	router  http.Handler
	tokens  *identity.Tokens
	store   *memory.Memory
	handler *Handler
}

// newTestServer seeds department eng (mgr-1, emp-1, emp-2), an HR employee
// and an admin. Everyone opens with 10 days.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	leaves := leave.NewEngine(st, leave.DefaultPolicy(), nil, nil)
	leaves.Now = func() time.Time { return now }
	att := attendance.NewEngine(st, leaves, attendance.DefaultPolicy(), nil)
	att.Now = func() time.Time { return now }

	require.NoError(t, st.SaveDepartment(ctx, directory.Department{ID: "eng", Name: "Engineering", ManagerID: "mgr-1"}))
	require.NoError(t, st.SaveDepartment(ctx, directory.Department{ID: "people", Name: "People"}))

	root := directory.Actor{EmployeeID: "bootstrap", Role: directory.RoleAdmin}
	ten := 10
	for _, emp := range []directory.Employee{
		{ID: "admin-1", Name: "Ando", Role: directory.RoleAdmin, Active: true},
		{ID: "hr-1", Name: "Hanta", DepartmentID: "people", Role: directory.RoleHR, Active: true},
		{ID: "mgr-1", Name: "Mamy", DepartmentID: "eng", Role: directory.RoleManager, Active: true},
		{ID: "emp-1", Name: "Alice", DepartmentID: "eng", Role: directory.RoleEmployee, Active: true},
		{ID: "emp-2", Name: "Bob", DepartmentID: "eng", Role: directory.RoleEmployee, Active: true},
	} {
		emp.HireDate = generic.NewTimePoint(2025, time.January, 1)
		_, err := leaves.Onboard(ctx, root, emp, &ten)
		require.NoError(t, err)
	}

	h := NewHandler(leaves, att, directory.NewService(st, nil), nil)
	h.DocumentsDir = t.TempDir()
	h.MaxDocumentSize = 1 << 20

	tokens := identity.NewTokens("test-secret", "leavegov", time.Hour)
	tokens.Now = func() time.Time { return now }
	router := NewRouter(h, RouterOptions{
		Resolver: identity.NewResolver(tokens, st),
		Metrics:  metrics.New(),
	})
	return &testServer{t: t, router: router, tokens: tokens, store: st, handler: h}
}

var roles = map[string]directory.Role{
	"admin-1": directory.RoleAdmin,
	"hr-1":    directory.RoleHR,
	"mgr-1":   directory.RoleManager,
	"emp-1":   directory.RoleEmployee,
	"emp-2":   directory.RoleEmployee,
}

func (s *testServer) bearer(who string) string {
	raw, err := s.tokens.Issue(directory.Actor{EmployeeID: generic.EntityID(who), Role: roles[who]})
	require.NoError(s.t, err)
	return "Bearer " + raw
}

// do sends body as JSON on behalf of who ("" sends no credentials).
func (s *testServer) do(method, path, who string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("Authorization", s.bearer(who))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[ErrorResponse](t, rec).Error.Code
}

func (s *testServer) submit(who string, body SubmitLeaveRequest) LeaveRequestDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/leaves", who, body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[LeaveRequestDTO](s.t, rec)
}

func ordinary(start, end string) SubmitLeaveRequest {
	return SubmitLeaveRequest{Type: "ordinary", StartDate: start, EndDate: end, Reason: "holiday"}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAPI_RequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/leaves", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_DeactivatedEmployeeIsRejected(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: HR deactivates Bob
	rec := s.do(http.MethodPut, "/api/employees/emp-2/active", "hr-1", map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[EmployeeDTO](t, rec).Active)

	// WHEN: Bob uses a token issued before
	rec = s.do(http.MethodGet, "/api/leaves", "emp-2", nil)

	// THEN
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// LEAVE WORKFLOW
// =============================================================================

func TestAPI_LeaveWorkflow(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: Alice asks for three days of ordinary leave
	lr := s.submit("emp-1", ordinary("2026-03-10", "2026-03-12"))
	assert.Equal(t, "pending", lr.Status)
	assert.Equal(t, 3, lr.Days)
	assert.Equal(t, "emp-1", lr.EmployeeID)

	// WHEN: her manager then HR approve
	rec := s.do(http.MethodPost, "/api/leaves/"+lr.ID+"/manager-decision", "mgr-1", DecisionRequest{Decision: "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pending_hr", decodeBody[LeaveRequestDTO](t, rec).Status)

	rec = s.do(http.MethodPost, "/api/leaves/"+lr.ID+"/hr-decision", "hr-1", DecisionRequest{Decision: "approve", Comment: "enjoy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeBody[LeaveRequestDTO](t, rec)

	// THEN: the request is approved with both validators recorded
	assert.Equal(t, "approved", approved.Status)
	require.NotNil(t, approved.ManagerValidator)
	require.NotNil(t, approved.HRValidator)
	assert.Equal(t, "mgr-1", approved.ManagerValidator.Actor)
	assert.Equal(t, "hr-1", approved.HRValidator.Actor)
	assert.Len(t, approved.Audit, 3)

	// AND: the balance is charged once
	rec = s.do(http.MethodGet, "/api/employees/emp-1/balance", "emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", decodeBody[BalanceDTO](t, rec).Available)

	rec = s.do(http.MethodGet, "/api/employees/emp-1/ledger", "hr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decodeBody[[]TransactionDTO](t, rec)
	require.Len(t, ledger, 2)
	assert.Equal(t, "10", ledger[0].BalanceAfter)
	assert.Equal(t, "7", ledger[1].BalanceAfter)
	assert.Equal(t, lr.ID, ledger[1].ReferenceID)

	// AND: it shows on the calendar
	rec = s.do(http.MethodGet, "/api/leaves/calendar?from=2026-03-01&to=2026-03-31", "hr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]LeaveRequestDTO](t, rec), 1)
}

func TestAPI_ErrorKindsMapToStatus(t *testing.T) {
	s := newTestServer(t)
	lr := s.submit("emp-1", ordinary("2026-03-10", "2026-03-11"))

	tests := []struct {
		name   string
		method string
		path   string
		who    string
		body   any
		status int
		code   string
	}{
		{"missing type", http.MethodPost, "/api/leaves", "emp-1",
			SubmitLeaveRequest{StartDate: "2026-04-01", EndDate: "2026-04-02"}, http.StatusBadRequest, "validation_error"},
		{"bad date", http.MethodPost, "/api/leaves", "emp-1",
			ordinary("01/04/2026", "2026-04-02"), http.StatusBadRequest, "validation_error"},
		{"overlap", http.MethodPost, "/api/leaves", "emp-1",
			ordinary("2026-03-11", "2026-03-12"), http.StatusBadRequest, "validation_error"},
		{"employee cannot decide", http.MethodPost, "/api/leaves/" + lr.ID + "/manager-decision", "emp-2",
			DecisionRequest{Decision: "approve"}, http.StatusForbidden, "permission_denied"},
		{"HR before manager", http.MethodPost, "/api/leaves/" + lr.ID + "/hr-decision", "hr-1",
			DecisionRequest{Decision: "approve"}, http.StatusConflict, "illegal_transition"},
		{"reject without comment", http.MethodPost, "/api/leaves/" + lr.ID + "/manager-decision", "mgr-1",
			DecisionRequest{Decision: "reject"}, http.StatusBadRequest, "validation_error"},
		{"unknown decision", http.MethodPost, "/api/leaves/" + lr.ID + "/manager-decision", "mgr-1",
			DecisionRequest{Decision: "maybe"}, http.StatusBadRequest, "validation_error"},
		{"unknown request", http.MethodGet, "/api/leaves/nope", "hr-1", nil, http.StatusNotFound, "not_found"},
		{"other employee's request", http.MethodGet, "/api/leaves/" + lr.ID, "emp-2", nil, http.StatusForbidden, "permission_denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.who, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestAPI_BatchHRDecision(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: a manager's own request (HR may decide it directly) and an
	// employee request already approved by the manager
	own := s.submit("mgr-1", ordinary("2026-03-16", "2026-03-17"))
	alice := s.submit("emp-1", ordinary("2026-03-18", "2026-03-18"))
	rec := s.do(http.MethodPost, "/api/leaves/"+alice.ID+"/manager-decision", "mgr-1", DecisionRequest{Decision: "approve"})
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN
	rec = s.do(http.MethodPost, "/api/leaves/hr-decisions", "hr-1", BatchDecisionRequest{
		RequestIDs: []string{own.ID, alice.ID, "missing"},
		Decision:   "approve",
	})

	// THEN: each id is decided on its own
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[BatchResponse](t, rec)
	assert.Equal(t, 2, resp.Decided)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "approved", resp.Results[0].Request.Status)
	assert.Equal(t, "approved", resp.Results[1].Request.Status)
	require.NotNil(t, resp.Results[2].Error)
	assert.Equal(t, "not_found", resp.Results[2].Error.Code)

	// AND: only HR may batch
	rec = s.do(http.MethodPost, "/api/leaves/hr-decisions", "mgr-1", BatchDecisionRequest{
		RequestIDs: []string{alice.ID}, Decision: "approve",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// AND: an empty batch is malformed
	rec = s.do(http.MethodPost, "/api/leaves/hr-decisions", "hr-1", BatchDecisionRequest{Decision: "approve"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Withdraw(t *testing.T) {
	s := newTestServer(t)
	lr := s.submit("emp-1", ordinary("2026-03-10", "2026-03-10"))

	rec := s.do(http.MethodDelete, "/api/leaves/"+lr.ID, "emp-2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, "/api/leaves/"+lr.ID, "emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "withdrawn", decodeBody[LeaveRequestDTO](t, rec).Status)

	rec = s.do(http.MethodDelete, "/api/leaves/"+lr.ID, "emp-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "illegal_transition", errorCode(t, rec))
}

func TestAPI_StatsAndTypes(t *testing.T) {
	s := newTestServer(t)
	s.submit("emp-1", ordinary("2026-03-10", "2026-03-10"))
	s.submit("emp-2", ordinary("2026-03-10", "2026-03-10"))

	rec := s.do(http.MethodGet, "/api/leaves/stats", "emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	own := decodeBody[LeaveStatsDTO](t, rec)
	assert.Equal(t, 1, own.Total)

	rec = s.do(http.MethodGet, "/api/leaves/stats", "hr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody[LeaveStatsDTO](t, rec)
	assert.Equal(t, 2, all.Total)
	assert.Equal(t, 2, all.ByStatus["pending"])
	assert.Equal(t, 0, all.ByStatus["approved"])

	rec = s.do(http.MethodGet, "/api/leave-types", "emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	types := decodeBody[[]LeaveTypeDTO](t, rec)
	require.Len(t, types, len(leave.Types))
	assert.Equal(t, "ordinary", types[0].Type)
	assert.True(t, types[0].ChargesBalance)
}

// =============================================================================
// DIRECTORY AND BALANCE
// =============================================================================

func TestAPI_OnboardAndAdjust(t *testing.T) {
	s := newTestServer(t)

	five := 5
	rec := s.do(http.MethodPost, "/api/employees", "hr-1", CreateEmployeeRequest{
		ID: "emp-3", Name: "Carla", Email: "carla@example.com", DepartmentID: "eng", Role: "employee",
		HireDate: "2026-03-01", OpeningBalance: &five,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[EmployeeDTO](t, rec).Active)

	rec = s.do(http.MethodGet, "/api/employees/emp-3/balance", "hr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", decodeBody[BalanceDTO](t, rec).Available)

	rec = s.do(http.MethodPost, "/api/employees/emp-3/adjustments", "hr-1", AdjustmentRequest{Delta: 2, Reason: "carry over"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "7", decodeBody[BalanceDTO](t, rec).Available)

	// managers may read the balance of their department, not adjust it
	rec = s.do(http.MethodGet, "/api/employees/emp-3/balance", "mgr-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/api/employees/emp-3/adjustments", "mgr-1", AdjustmentRequest{Delta: 1, Reason: "gift"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/employees", "hr-1", CreateEmployeeRequest{ID: "emp-4", Name: "Dina", Email: "not-an-email", Role: "employee"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/employees", "emp-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/employees?active=true", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]EmployeeDTO](t, rec), 6)

	// AND: HR lists every balance at once
	rec = s.do(http.MethodGet, "/api/balances", "hr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	balances := decodeBody[[]EmployeeBalanceDTO](t, rec)
	require.Len(t, balances, 6)
	assert.Equal(t, "admin-1", balances[0].EmployeeID)
	assert.Equal(t, "emp-3", balances[3].EmployeeID)
	assert.Equal(t, "7", balances[3].Available)
	assert.Equal(t, "10", balances[1].Available)

	rec = s.do(http.MethodGet, "/api/balances", "mgr-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_Departments(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/departments", "hr-1", CreateDepartmentRequest{ID: "ops", Name: "Operations", ManagerID: "mgr-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/departments", "hr-1", CreateDepartmentRequest{ID: "sales", Name: "Sales", ManagerID: "emp-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/departments", "emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]DepartmentDTO](t, rec), 3)
}

func TestAPI_UploadDocumentThenSickLeave(t *testing.T) {
	s := newTestServer(t)

	upload := func(name string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("kind", "certificate"))
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 medical certificate"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", s.bearer("emp-1"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("cert.exe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload("cert.pdf")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decodeBody[DocumentDTO](t, rec)
	assert.Equal(t, "certificate", doc.Kind)
	_, err := os.Stat(filepath.Join(s.handler.DocumentsDir, doc.DocumentRef))
	require.NoError(t, err)

	lr := s.submit("emp-1", SubmitLeaveRequest{
		Type: "sick", StartDate: "2026-03-03", EndDate: "2026-03-04",
		DocumentRef: doc.DocumentRef, DocumentKind: doc.Kind,
	})
	assert.Equal(t, doc.DocumentRef, lr.DocumentRef)
	assert.Equal(t, "certificate", lr.DocumentKind)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestAPI_CheckInCheckOut(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: Alice checks herself in at 09:00, an hour after day start
	rec := s.do(http.MethodPost, "/api/attendance/check-in", "emp-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in := decodeBody[AttendanceRecordDTO](t, rec)
	assert.Equal(t, "late", in.Status)
	assert.Equal(t, 60, in.LatenessMinutes)
	assert.Equal(t, "2026-03-02", in.Date)

	// WHEN/THEN: a second check-in is refused
	rec = s.do(http.MethodPost, "/api/attendance/check-in", "emp-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_checked_in", errorCode(t, rec))

	// AND: employees cannot clock others or pick the time
	rec = s.do(http.MethodPost, "/api/attendance/check-in", "emp-1", ClockRequest{EmployeeID: "emp-2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	early := time.Date(2026, time.March, 2, 7, 0, 0, 0, time.UTC)
	rec = s.do(http.MethodPost, "/api/attendance/check-in", "emp-2", ClockRequest{At: &early})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// AND: HR at the kiosk clocks Bob at 07:55 and out at 17:00
	arrival := time.Date(2026, time.March, 2, 7, 55, 0, 0, time.UTC)
	rec = s.do(http.MethodPost, "/api/attendance/check-in", "hr-1", ClockRequest{EmployeeID: "emp-2", At: &arrival})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "present", decodeBody[AttendanceRecordDTO](t, rec).Status)

	departure := time.Date(2026, time.March, 2, 17, 0, 0, 0, time.UTC)
	rec = s.do(http.MethodPost, "/api/attendance/check-out", "hr-1", ClockRequest{EmployeeID: "emp-2", At: &departure})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[AttendanceRecordDTO](t, rec)
	assert.Equal(t, 545, out.WorkedMinutes)
	assert.Equal(t, 65, out.OvertimeMinutes)

	rec = s.do(http.MethodPost, "/api/attendance/check-out", "hr-1", ClockRequest{EmployeeID: "emp-2", At: &departure})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_checked_out", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/attendance/check-out", "mgr-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_check_in_found", errorCode(t, rec))

	// AND: Alice reads her own day and history but not Bob's
	rec = s.do(http.MethodGet, "/api/attendance/today", "emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "late", decodeBody[AttendanceRecordDTO](t, rec).Status)

	rec = s.do(http.MethodGet, "/api/attendance/today", "mgr-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/attendance", "emp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]AttendanceRecordDTO](t, rec), 1)

	rec = s.do(http.MethodGet, "/api/attendance?employee_id=emp-2", "emp-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/attendance?from=2026-03-01&to=2026-03-02", "hr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]AttendanceRecordDTO](t, rec), 2)
}

func TestAPI_TodayOnApprovedLeave(t *testing.T) {
	// GIVEN: Alice has approved leave today and never checked in
	s := newTestServer(t)
	lr := s.submit("emp-1", ordinary("2026-03-02", "2026-03-02"))
	rec := s.do(http.MethodPost, "/api/leaves/"+lr.ID+"/manager-decision", "mgr-1", DecisionRequest{Decision: "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(http.MethodPost, "/api/leaves/"+lr.ID+"/hr-decision", "hr-1", DecisionRequest{Decision: "approve"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: she reads her day
	rec = s.do(http.MethodGet, "/api/attendance/today", "emp-1", nil)

	// THEN: the day reads on_leave instead of not_found
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	today := decodeBody[AttendanceRecordDTO](t, rec)
	assert.Equal(t, "on_leave", today.Status)
	assert.Equal(t, "2026-03-02", today.Date)
	assert.Nil(t, today.CheckIn)

	// AND: Bob, who is not on leave, still gets not_found
	rec = s.do(http.MethodGet, "/api/attendance/today", "emp-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Reports(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/attendance/check-in", "emp-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/reports/daily", "emp-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/reports/daily?date=2026-03-02", "hr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	daily := decodeBody[DailyReportDTO](t, rec)
	assert.Equal(t, 1, daily.Present)
	require.Len(t, daily.Late, 1)
	assert.Equal(t, "emp-1", daily.Late[0].Employee.ID)
	assert.Equal(t, 60, daily.Late[0].LatenessMinutes)

	rec = s.do(http.MethodGet, "/api/reports/attendance-stats", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[AttendanceStatsDTO](t, rec)
	assert.Equal(t, 1, stats.Late)
	assert.Equal(t, len(daily.Absent), stats.Absent)

	rec = s.do(http.MethodGet, "/api/reports/lateness?window=1", "hr-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lateness := decodeBody[LatenessReportDTO](t, rec)
	assert.Equal(t, 1, lateness.WindowDays)
	assert.Equal(t, "2026-03-02", lateness.AsOf)
	assert.NotEmpty(t, lateness.Rows)

	rec = s.do(http.MethodGet, "/api/reports/lateness?window=zero", "hr-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, path := range []string{"/api/reports/lateness.pdf", "/api/reports/daily.pdf"} {
		rec = s.do(http.MethodGet, path, "hr-1", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")), path)
	}
}
