package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext creates a context that expires after 5 seconds, cancelled on
// test cleanup.
func NewTestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

// NewTestContextWithTimeout is NewTestContext with a caller-chosen timeout.
func NewTestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)

	return ctx
}
