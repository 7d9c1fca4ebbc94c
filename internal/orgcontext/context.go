package orgcontext

import "context"

type contextKey struct{}

var orgIDKey contextKey

// WithOrgID returns a context carrying the tenant organization ID.
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgIDFromContext extracts the tenant organization ID, if present.
func OrgIDFromContext(ctx context.Context) (int64, bool) {
	orgID, ok := ctx.Value(orgIDKey).(int64)
	if !ok || orgID == 0 {
		return 0, false
	}
	return orgID, true
}
