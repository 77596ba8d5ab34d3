package shared

import (
	"context"
	"errors"
	"strings"
)

// Role is the authority a caller acts with. Roles are asserted upstream and trusted here.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleBorrower Role = "BORROWER"
)

var ErrMissingCaller = errors.New("caller identity missing from context")

// Caller is the validated identity every engine operation runs on behalf of.
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (c Caller) IsAdmin() bool    { return c.Role == RoleAdmin }
func (c Caller) IsBorrower() bool { return c.Role == RoleBorrower }

// ParseRole normalises a role claim. ok is false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case RoleAdmin, RoleBorrower:
		return r, true
	}
	return "", false
}

type callerKey struct{}

// ContextWithCaller stores the caller for the transport layer. Engine calls
// still take the caller as an explicit argument.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func CallerFromContext(ctx context.Context) (Caller, error) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || caller.ID == "" {
		return Caller{}, ErrMissingCaller
	}
	return caller, nil
}
