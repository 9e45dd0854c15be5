// Package limiter provides request rate limiting keyed by client identity.
// The Redis implementation is authoritative in production; the in-memory
// one covers single-process deployments without Redis.
package limiter

import "context"

// Limiter bounds request rates per client key.
type Limiter interface {
	// Allow reports whether a request under key is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}
