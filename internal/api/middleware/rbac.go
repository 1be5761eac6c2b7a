package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/collabhub/collabhub/internal/models"
)

// RequireRole returns middleware that requires specific roles.
// Admins are always allowed.
func RequireRole(allowedRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetRole(r.Context())
			if userRole == "" {
				jsonForbidden(w)
				return
			}

			if userRole == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			for _, role := range allowedRoles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			jsonForbidden(w)
		})
	}
}

// RequireAdmin is shorthand for RequireRole(RoleAdmin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// RequireAdminOrSelf allows access if user is admin or accessing their own resource.
// Expects {id} URL parameter.
func RequireAdminOrSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsAdminOrSelf(r, chi.URLParam(r, "id")) {
			next.ServeHTTP(w, r)
			return
		}
		jsonForbidden(w)
	})
}

// IsAdminOrSelf reports whether the caller is an admin or the given user.
func IsAdminOrSelf(r *http.Request, userID string) bool {
	if GetRole(r.Context()) == models.RoleAdmin {
		return true
	}
	return userID != "" && userID == GetUserID(r.Context())
}
