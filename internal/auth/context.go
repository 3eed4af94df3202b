package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the principal carries role, ignoring case.
func (p Principal) HasRole(role string) bool {
	for _, candidate := range p.Roles {
		if strings.EqualFold(candidate, role) {
			return true
		}
	}
	return false
}

// ContextWithPrincipal returns a new context that carries the authenticated caller.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext retrieves the authenticated caller from the context, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(principalKey).(Principal)
	if !ok || principal.UserID == "" {
		return Principal{}, false
	}
	return principal, true
}

// CallerIDFromContext returns the caller id used for the current-user filter sentinel.
func CallerIDFromContext(ctx context.Context) string {
	principal, _ := PrincipalFromContext(ctx)
	return principal.UserID
}

// EnforceRead ensures the caller holds one of the entity's read roles when any are declared.
func EnforceRead(ctx context.Context, entity *domain.EntitySpec) error {
	required := entity.Security.Read
	if len(required) == 0 {
		return nil
	}
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("table %s requires an authenticated caller", entity.Key)
	}
	for _, role := range required {
		if principal.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("caller %s may not read table %s", principal.UserID, entity.Key)
}
