package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/sirius-meet/internal/application"
)

type contextKey string

const principalContextKey contextKey = "principal"

// GrantHeader carries a meeting grant on requests made from inside a meeting.
const GrantHeader = "X-Meeting-Grant"

const sessionCookieName = "session_token"

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// roleProofFromRequest gathers whatever the caller can show for the host role.
func roleProofFromRequest(r *http.Request) application.RoleProof {
	proof := application.RoleProof{Grant: grantFromRequest(r)}
	if principal, ok := PrincipalFromContext(r.Context()); ok {
		proof.Principal = &principal
	}
	return proof
}

func grantFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(GrantHeader))
}

func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(header, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(header, prefix))
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
