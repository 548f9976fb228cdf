// Package identity carries the attested caller identity of an operation.
package identity

import (
	"context"
	"errors"
	"strings"
)

var ErrMissingCaller = errors.New("missing_caller_identity")

type key string

var callerKey key = "caller_identity"

// Normalize trims and lowercases an identity so that "0xAbC" and "0xabc " compare equal.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// WithCaller returns a new context carrying the caller identity.
func WithCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey, Normalize(id))
}

// CallerFromContext returns the caller identity, if present and non-empty.
func CallerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(callerKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// RequireCaller is CallerFromContext for mutating operations.
func RequireCaller(ctx context.Context) (string, error) {
	id, ok := CallerFromContext(ctx)
	if !ok {
		return "", ErrMissingCaller
	}
	return id, nil
}
