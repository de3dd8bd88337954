package cache

import (
	"context"
	"time"
)

// NoOpCache backs a handler with dedup disabled: every verified delivery reaches
// the callback, redeliveries included.
type NoOpCache struct{}

// NewNoOpCache returns a cache that records nothing
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// IsProcessed never reports a digest as seen
func (*NoOpCache) IsProcessed(context.Context, string) (bool, error) {
	return false, nil
}

// MarkProcessed discards the digest
func (*NoOpCache) MarkProcessed(context.Context, string, time.Duration) error {
	return nil
}

func (*NoOpCache) Close() error {
	return nil
}
