package utils

import (
	"context"
	"time"

	"golang.org/x/exp/rand"
)

// RetryRead runs fn up to attempts times with jittered exponential backoff.
// Only read paths go through this; writes are surfaced to the caller on the
// first failure so a retried create cannot duplicate a record.
func RetryRead(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 100 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		jitter := time.Duration(rand.Intn(50)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}
	return err
}
