package fbrealtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dawitel/fb-realtime/cache"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Client bundles a Handler with the dedup cache and callback breaker built from a Config
type Client[T any] struct {
	cfg     *Config
	logger  zerolog.Logger
	handler *Handler[T]
	cache   cache.Cache
	breaker *gobreaker.CircuitBreaker
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewClient creates a new client. Misconfiguration is reported here rather than per request.
func NewClient[T any](
	cfg *Config,
	logger zerolog.Logger,
	deserialize Deserializer[T],
	callback NotificationFunc[T],
	opts ...HandlerOption,
) (*Client[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cacheInstance, err := newCache(cfg.Dedup)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	breaker := newCallbackBreaker(fmt.Sprintf("fb-realtime-%s", cfg.Path), cfg.CircuitBreaker, logger)

	handlerOpts := []HandlerOption{
		WithMaxBodySize(cfg.HTTP.MaxRequestBodySize),
		WithFailureStatus(cfg.HTTP.FailureStatus),
		WithDedup(cacheInstance, cfg.Dedup.TTL),
		WithCircuitBreaker(breaker),
	}
	handlerOpts = append(handlerOpts, opts...)

	handler := NewHandler(
		StaticSettings(cfg.Subscription),
		deserialize,
		callback,
		logger,
		handlerOpts...,
	)

	return &Client[T]{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		cache:   cacheInstance,
		breaker: breaker,
	}, nil
}

// Start marks the client as serving
func (c *Client[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return fmt.Errorf("client already stopped")
	}
	if c.started {
		return fmt.Errorf("client already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.started = true
	c.logger.Info().
		Str("path", c.cfg.Path).
		Bool("dedup", c.cfg.Dedup.Enabled).
		Msg("Realtime subscription client started")

	return nil
}

// Stop releases the dedup cache. It is safe to call on a client that was never
// started; a stopped client cannot be started again.
func (c *Client[T]) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}
	c.stopped = true

	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close cache")
		}
	}

	c.started = false
	c.logger.Info().Msg("Realtime subscription client stopped")

	return nil
}

// Health returns an error when the client is not started or the callback breaker is open
func (c *Client[T]) Health() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.started {
		return fmt.Errorf("client not started")
	}

	if c.breaker.State() == gobreaker.StateOpen {
		return ErrCallbackUnavailable
	}

	return nil
}

// Handler returns the HTTP handler for the subscription endpoint
func (c *Client[T]) Handler() *Handler[T] {
	return c.handler
}

// Register mounts the handler on r at the configured path
func (c *Client[T]) Register(r chi.Router) {
	Register(r, c.cfg.Path, c.handler)
}

// ServeHTTP serves requests through the client's handler
func (c *Client[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.handler.ServeHTTP(w, r)
}

// GetCache returns the cache instance
func (c *Client[T]) GetCache() cache.Cache {
	return c.cache
}
