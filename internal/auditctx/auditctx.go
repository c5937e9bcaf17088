// Package auditctx carries the caller's network origin from the HTTP layer down to the
// audit trail without threading it through every service signature.
package auditctx

import "context"

// Origin describes who issued the current request and from where.
type Origin struct {
	UserID    string
	IPAddress string
	UserAgent string
}

type originKey struct{}

// WithOrigin returns a derived context carrying origin.
func WithOrigin(ctx context.Context, origin Origin) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, originKey{}, origin)
}

// FromContext extracts the origin stored by WithOrigin.
func FromContext(ctx context.Context) (Origin, bool) {
	if ctx == nil {
		return Origin{}, false
	}
	origin, ok := ctx.Value(originKey{}).(Origin)
	return origin, ok
}

// Metadata merges the origin into metadata under "ip" and "user_agent" without
// overwriting keys the caller already set. The input map is not modified.
func Metadata(ctx context.Context, metadata map[string]any) map[string]any {
	origin, ok := FromContext(ctx)
	if !ok || (origin.IPAddress == "" && origin.UserAgent == "") {
		return metadata
	}
	out := make(map[string]any, len(metadata)+2)
	if origin.IPAddress != "" {
		out["ip"] = origin.IPAddress
	}
	if origin.UserAgent != "" {
		out["user_agent"] = origin.UserAgent
	}
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
