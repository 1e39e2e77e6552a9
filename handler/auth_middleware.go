package handler

import (
	"context"
	"crypto/subtle"
	"loan-desk-api/common"
	"loan-desk-api/model"
	"loan-desk-api/service"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey       contextKey = "userID"
	UsernameKey     contextKey = "username"
	UserRoleKey     contextKey = "userRole"
	UserTenantKey   contextKey = "userTenant"
	InternalCallKey contextKey = "internalCall"
)

// Internal-call header pair for trusted same-system callers (the chat
// integration). The marker alone grants nothing; the key must match.
const (
	InternalCallHeader = "X-Internal-Call"
	InternalKeyHeader  = "X-Internal-Api-Key"
)

// AuthMiddleware is the per-request authorization gate.
type AuthMiddleware struct {
	tokens         *service.TokenService
	internalAPIKey string
}

func NewAuthMiddleware(tokens *service.TokenService, internalAPIKey string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, internalAPIKey: internalAPIKey}
}

// isInternalCall verifies the trusted-caller header pair. The shared secret
// is compared in constant time, and an empty configured key fails closed.
func (m *AuthMiddleware) isInternalCall(r *http.Request) bool {
	if m.internalAPIKey == "" || r.Header.Get(InternalCallHeader) == "" {
		return false
	}
	presented := r.Header.Get(InternalKeyHeader)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(m.internalAPIKey)) == 1
}

// RequireAuth rejects requests without a valid bearer token. Trusted
// internal calls bypass the token check entirely.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isInternalCall(r) {
			ctx := context.WithValue(r.Context(), InternalCallKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString, ok := extractBearerToken(r)
		if !ok {
			appErr := common.NewAppError(http.StatusUnauthorized, "Authentication required", nil)
			appErr.Send(w)
			return
		}

		claims, err := m.tokens.VerifyAccessToken(tokenString)
		if err != nil {
			// The marker lets clients distinguish "refresh and retry"
			// from "no credentials at all".
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			appErr := common.NewAppError(http.StatusUnauthorized, "Invalid or expired token", nil)
			appErr.Send(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches the subject when a valid token is present but lets
// anonymous requests through; downstream handlers see an empty context.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isInternalCall(r) {
			ctx := context.WithValue(r.Context(), InternalCallKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if tokenString, ok := extractBearerToken(r); ok {
			if claims, err := m.tokens.VerifyAccessToken(tokenString); err == nil {
				next.ServeHTTP(w, r.WithContext(contextWithClaims(r.Context(), claims)))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole passes only subjects whose role is in the given set. Admins
// and trusted internal callers bypass the check.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internal, _ := r.Context().Value(InternalCallKey).(bool); internal {
				next.ServeHTTP(w, r)
				return
			}

			role, ok := r.Context().Value(UserRoleKey).(model.Role)
			if !ok {
				appErr := common.NewAppError(http.StatusUnauthorized, "Authentication required", nil)
				appErr.Send(w)
				return
			}
			if role == model.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			appErr := common.NewAppError(http.StatusForbidden, "Access denied. Insufficient role.", nil)
			appErr.Send(w)
		})
	}
}

// ResolveTenant computes the effective tenant for a request. Admins and
// internal callers may override via an explicit requested tenant; everyone
// else is pinned to their own, and asking for another is forbidden.
func ResolveTenant(ctx context.Context, requested string) (string, *common.AppError) {
	requested = strings.TrimSpace(requested)

	if internal, _ := ctx.Value(InternalCallKey).(bool); internal {
		return requested, nil
	}

	own, ok := ctx.Value(UserTenantKey).(string)
	if !ok {
		return "", common.NewAppError(http.StatusUnauthorized, "Authentication required", nil)
	}
	role, _ := ctx.Value(UserRoleKey).(model.Role)

	if role == model.RoleAdmin {
		if requested != "" {
			return requested, nil
		}
		return own, nil
	}
	if requested != "" && requested != own {
		return "", common.NewAppError(http.StatusForbidden, "Access denied for requested tenant", nil)
	}
	return own, nil
}

func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader == "" {
		return "", false
	}
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
		return "", false
	}
	return headerParts[1], true
}

func contextWithClaims(ctx context.Context, claims *model.AppClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UsernameKey, claims.Username)
	ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
	ctx = context.WithValue(ctx, UserTenantKey, claims.TenantID)
	return ctx
}
