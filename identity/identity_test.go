package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/identity"
	"github.com/warp/leave-governance/store/memory"
)

var issued = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func tokensAt(now time.Time) *identity.Tokens {
	t := identity.NewTokens("test-secret", "leavegov", time.Hour)
	t.Now = func() time.Time { return now }
	return t
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens := tokensAt(issued)

	raw, err := tokens.Issue(directory.Actor{EmployeeID: "emp-1", Role: directory.RoleManager})
	require.NoError(t, err)

	actor, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, generic.EntityID("emp-1"), actor.EmployeeID)
	assert.Equal(t, directory.RoleManager, actor.Role)
}

func TestTokens_Rejects(t *testing.T) {
	raw, err := tokensAt(issued).Issue(directory.Actor{EmployeeID: "emp-1", Role: directory.RoleHR})
	require.NoError(t, err)

	tests := []struct {
		name   string
		tokens *identity.Tokens
		raw    string
	}{
		{"expired", tokensAt(issued.Add(2 * time.Hour)), raw},
		{"wrong secret", &identity.Tokens{Secret: []byte("other"), Issuer: "leavegov", Now: func() time.Time { return issued }}, raw},
		{"wrong issuer", &identity.Tokens{Secret: []byte("test-secret"), Issuer: "elsewhere", Now: func() time.Time { return issued }}, raw},
		{"garbage", tokensAt(issued), "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.tokens.Parse(tt.raw)
			require.Error(t, err)
			assert.Equal(t, generic.KindUnauthenticated, generic.KindOf(err))
		})
	}
}

func TestTokens_IssueRejectsUnknownRole(t *testing.T) {
	_, err := tokensAt(issued).Issue(directory.Actor{EmployeeID: "emp-1", Role: "ceo"})
	assert.Equal(t, generic.KindValidation, generic.KindOf(err))
}

func newDirectory(t *testing.T) *memory.Memory {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveEmployee(ctx, directory.Employee{
		ID: "emp-1", Name: "Alice", Role: directory.RoleHR, Active: true,
		HireDate: generic.NewTimePoint(2024, time.January, 1),
	}))
	require.NoError(t, store.SaveEmployee(ctx, directory.Employee{
		ID: "emp-2", Name: "Bob", Role: directory.RoleEmployee, Active: false,
		HireDate: generic.NewTimePoint(2024, time.January, 1),
	}))
	return store
}

func TestResolver_DirectoryRoleWins(t *testing.T) {
	// GIVEN: a token that still says "employee" for someone now in HR
	tokens := tokensAt(issued)
	raw, err := tokens.Issue(directory.Actor{EmployeeID: "emp-1", Role: directory.RoleEmployee})
	require.NoError(t, err)
	res := identity.NewResolver(tokens, newDirectory(t))

	// WHEN
	actor, err := res.Resolve(context.Background(), "Bearer "+raw)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, directory.RoleHR, actor.Role)
}

func TestResolver_RejectsInactiveAndUnknown(t *testing.T) {
	tokens := tokensAt(issued)
	res := identity.NewResolver(tokens, newDirectory(t))

	for _, id := range []generic.EntityID{"emp-2", "ghost"} {
		raw, err := tokens.Issue(directory.Actor{EmployeeID: id, Role: directory.RoleEmployee})
		require.NoError(t, err)

		_, err = res.Resolve(context.Background(), "Bearer "+raw)
		assert.Equal(t, generic.KindUnauthenticated, generic.KindOf(err), id)
	}
}

func TestResolver_RequiresBearerScheme(t *testing.T) {
	res := identity.NewResolver(tokensAt(issued), nil)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer    "} {
		_, err := res.Resolve(context.Background(), header)
		assert.Equal(t, generic.KindUnauthenticated, generic.KindOf(err), header)
	}
}

func TestMiddleware(t *testing.T) {
	tokens := tokensAt(issued)
	res := identity.NewResolver(tokens, newDirectory(t))
	raw, err := tokens.Issue(directory.Actor{EmployeeID: "emp-1", Role: directory.RoleHR})
	require.NoError(t, err)

	var seen directory.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = identity.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		http.Error(w, string(generic.KindOf(err)), http.StatusUnauthorized)
	}
	h := identity.Middleware(res, onError, nil)(next)

	t.Run("resolved actor reaches the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/leaves", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, generic.EntityID("emp-1"), seen.EmployeeID)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaves", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthenticated")
	})
}
