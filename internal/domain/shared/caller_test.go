package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerContext(t *testing.T) {
	_, err := CallerFromContext(context.Background())
	assert.ErrorIs(t, err, ErrMissingCaller)

	ctx := ContextWithCaller(context.Background(), Caller{ID: "admin-1", Role: RoleAdmin})
	caller, err := CallerFromContext(ctx)
	require.NoError(t, err)
	assert.True(t, caller.IsAdmin())
	assert.False(t, caller.IsBorrower())

	ctx = ContextWithCaller(context.Background(), Caller{Role: RoleBorrower})
	_, err = CallerFromContext(ctx)
	assert.ErrorIs(t, err, ErrMissingCaller)
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" admin ")
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	role, ok = ParseRole("borrower")
	require.True(t, ok)
	assert.Equal(t, RoleBorrower, role)

	_, ok = ParseRole("auditor")
	assert.False(t, ok)
}

func TestCorrelationIDContext(t *testing.T) {
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
	ctx := ContextWithCorrelationID(context.Background(), "corr-1")
	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
}
