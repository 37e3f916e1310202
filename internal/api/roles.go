package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

// Role is the capability level of the caller, sent by the front end in
// the X-User-Role header.
type Role string

const (
	RoleAdmin      Role = "administrador"
	RoleResearcher Role = "pesquisador"
	RoleReviewer   Role = "revisor"
)

const roleHeader = "X-User-Role"

type ctxKey struct{}

func (r Role) valid() bool {
	return r == RoleAdmin || r == RoleResearcher || r == RoleReviewer
}

// canMutate reports whether the role may change stored data.
func (r Role) canMutate() bool {
	return r == RoleAdmin || r == RoleResearcher
}

func roleFrom(ctx context.Context) Role {
	r, _ := ctx.Value(ctxKey{}).(Role)
	return r
}

// requireRole rejects requests without a known role.
func requireRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(roleHeader))
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing "+roleHeader+" header")
			return
		}
		role := Role(strings.ToLower(raw))
		if !role.valid() {
			writeError(w, http.StatusForbidden, "unknown role "+raw)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, role)))
	})
}

// allow restricts a route to the given roles.
func allow(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, roleFrom(r.Context())) {
				writeError(w, http.StatusForbidden, "role not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
