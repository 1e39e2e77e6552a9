package dispatch

import "context"

type contextKey string

const tenantKey contextKey = "effectiveTenant"

// WithTenant attaches the effective tenant resolved by the authorization
// gate, so handlers stay ignorant of how it was derived.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantFromContext returns the effective tenant, or "" when the call was
// made without a tenant scope (trusted internal callers).
func TenantFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantKey).(string)
	return tenant
}
