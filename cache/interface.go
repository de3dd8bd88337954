package cache

import (
	"context"
	"time"
)

// Cache remembers the signature digests of deliveries whose callback already ran,
// so Facebook's redeliveries can be acknowledged without running it again.
type Cache interface {
	// IsProcessed reports whether digest was recorded and has not expired
	IsProcessed(ctx context.Context, digest string) (bool, error)

	// MarkProcessed records digest for ttl
	MarkProcessed(ctx context.Context, digest string, ttl time.Duration) error

	// Close releases connections and background workers
	Close() error
}
