package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
	"github.com/warp/leave-governance/leave"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := New()

	// GIVEN: a transaction that writes then fails
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s leave.Store) error {
		require.NoError(t, s.SaveEmployee(ctx, directory.Employee{ID: "emp-1", Name: "Alice", Role: directory.RoleEmployee}))
		return boom
	})

	// THEN: the write is gone
	assert.ErrorIs(t, err, boom)
	_, err = m.GetEmployee(ctx, "emp-1")
	assert.True(t, generic.IsNotFound(err))
}

func TestWithTx_Commits(t *testing.T) {
	ctx := context.Background()
	m := New()

	err := m.WithTx(ctx, func(s leave.Store) error {
		return s.SaveEmployee(ctx, directory.Employee{ID: "emp-1", Name: "Alice", Role: directory.RoleEmployee, Active: true})
	})
	require.NoError(t, err)

	emp, err := m.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", emp.Name)
}

func TestListEmployees_SortedAndFiltered(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.SaveEmployee(ctx, directory.Employee{ID: "b", Active: true}))
	require.NoError(t, m.SaveEmployee(ctx, directory.Employee{ID: "a", Active: true}))
	require.NoError(t, m.SaveEmployee(ctx, directory.Employee{ID: "c", Active: false}))

	all, err := m.ListEmployees(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.EntityID("a"), all[0].ID)

	active, err := m.ListEmployees(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}
