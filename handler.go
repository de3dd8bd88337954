package fbrealtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dawitel/fb-realtime/cache"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrSettingsNotFound means the SettingsProvider has no subscription for the request
	ErrSettingsNotFound = errors.New("subscription settings not found")
	// ErrBodyTooLarge means the delivery exceeded the configured body limit
	ErrBodyTooLarge = errors.New("request body too large")
)

// Notification is a verified delivery handed to the application callback
type Notification[T any] struct {
	DeliveryID string
	// Digest is the verified X-Hub-Signature digest, also used as the dedup key
	Digest     string
	ReceivedAt time.Time
	Payload    T
	// Duplicate is set when the delivery was already handled and the callback was skipped
	Duplicate bool
}

// NotificationFunc receives verified notifications. The request context is passed
// through, so route parameters remain available.
type NotificationFunc[T any] func(ctx context.Context, n Notification[T]) error

// ErrorHandler takes over failure responses from the handler
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type handlerOptions struct {
	maxBodySize   int64
	failureStatus int
	errorHandler  ErrorHandler
	cache         cache.Cache
	dedup         bool
	dedupTTL      time.Duration
	breaker       *gobreaker.CircuitBreaker
	now           func() time.Time
}

// HandlerOption configures a Handler
type HandlerOption func(*handlerOptions)

// WithMaxBodySize limits the size of notification bodies
func WithMaxBodySize(size int64) HandlerOption {
	return func(o *handlerOptions) {
		if size > 0 {
			o.maxBodySize = size
		}
	}
}

// WithFailureStatus sets the status answered for rejected requests (default 400)
func WithFailureStatus(status int) HandlerOption {
	return func(o *handlerOptions) {
		if status != 0 {
			o.failureStatus = status
		}
	}
}

// WithErrorHandler propagates every failure to fn instead of writing a response
func WithErrorHandler(fn ErrorHandler) HandlerOption {
	return func(o *handlerOptions) {
		o.errorHandler = fn
	}
}

// WithDedup skips the callback for deliveries already recorded in c. Concurrent
// copies of one delivery share a single callback run.
func WithDedup(c cache.Cache, ttl time.Duration) HandlerOption {
	return func(o *handlerOptions) {
		if c != nil {
			o.cache = c
			o.dedup = true
		}
		if ttl > 0 {
			o.dedupTTL = ttl
		}
	}
}

// WithCircuitBreaker runs the callback through cb
func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) HandlerOption {
	return func(o *handlerOptions) {
		o.breaker = cb
	}
}

// Handler adapts the verifiers to net/http. GET requests are subscription
// handshakes, POST requests are notification deliveries.
type Handler[T any] struct {
	settings    SettingsProvider
	deserialize Deserializer[T]
	callback    NotificationFunc[T]
	logger      zerolog.Logger
	opts        handlerOptions
	inflight    singleflight.Group
}

// NewHandler creates a new handler. deserialize must not be nil; callback may be
// nil when the host only consumes Notify's return value.
func NewHandler[T any](
	settings SettingsProvider,
	deserialize Deserializer[T],
	callback NotificationFunc[T],
	logger zerolog.Logger,
	opts ...HandlerOption,
) *Handler[T] {
	if settings == nil {
		panic("fbrealtime: nil SettingsProvider")
	}
	if deserialize == nil {
		panic("fbrealtime: nil Deserializer")
	}

	o := handlerOptions{
		maxBodySize:   DefaultMaxRequestBodySize,
		failureStatus: DefaultFailureStatus,
		cache:         cache.NewNoOpCache(),
		dedupTTL:      DefaultDedupTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Handler[T]{
		settings:    settings,
		deserialize: deserialize,
		callback:    callback,
		logger:      logger,
		opts:        o,
	}
}

// Subscribe verifies a GET handshake and returns the challenge to echo back
func (h *Handler[T]) Subscribe(r *http.Request) (string, error) {
	settings, ok := h.settings(r)
	if !ok {
		return "", ErrSettingsNotFound
	}

	query := r.URL.Query()
	return VerifySubscribe(
		query.Get(HubModeKey),
		query.Get(HubVerifyTokenKey),
		query.Get(HubChallengeKey),
		settings.VerifyToken,
	)
}

// Notify verifies a POST delivery and passes it to the callback
func (h *Handler[T]) Notify(r *http.Request) (Notification[T], error) {
	ctx := r.Context()

	settings, ok := h.settings(r)
	if !ok {
		return Notification[T]{}, ErrSettingsNotFound
	}
	if settings.AppSecret == "" {
		return Notification[T]{}, newError(KindConfig, nil)
	}

	body, err := h.readBody(r)
	if err != nil {
		return Notification[T]{}, err
	}

	signature := r.Header.Get(SignatureHeader)
	payload, err := VerifyNotification(signature, body, settings.AppSecret, h.deserialize)
	if err != nil {
		return Notification[T]{}, err
	}

	n := Notification[T]{
		DeliveryID: uuid.NewString(),
		Digest:     strings.TrimPrefix(signature, SignaturePrefix),
		ReceivedAt: h.opts.now(),
		Payload:    payload,
	}

	if !h.opts.dedup {
		return n, h.runCallback(ctx, n)
	}

	// Followers wait for the in-flight delivery with the same digest and report
	// its outcome as a duplicate.
	leader := false
	v, err, _ := h.inflight.Do(n.Digest, func() (interface{}, error) {
		leader = true
		return h.deliverOnce(ctx, n)
	})
	if err != nil {
		return n, err
	}
	n.Duplicate = !leader || v.(bool)
	if n.Duplicate {
		h.logger.Debug().
			Str("delivery_id", n.DeliveryID).
			Msg("Notification already processed, skipping callback")
	}

	return n, nil
}

// deliverOnce runs the callback unless the digest is already recorded, and
// reports whether it was skipped
func (h *Handler[T]) deliverOnce(ctx context.Context, n Notification[T]) (bool, error) {
	processed, err := h.opts.cache.IsProcessed(ctx, n.Digest)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("delivery_id", n.DeliveryID).
			Msg("Failed to check if notification is processed, continuing")
	} else if processed {
		return true, nil
	}

	if err := h.runCallback(ctx, n); err != nil {
		return false, err
	}

	if err := h.opts.cache.MarkProcessed(ctx, n.Digest, h.opts.dedupTTL); err != nil {
		h.logger.Warn().
			Err(err).
			Str("delivery_id", n.DeliveryID).
			Msg("Failed to mark notification as processed")
	}
	return false, nil
}

func (h *Handler[T]) runCallback(ctx context.Context, n Notification[T]) error {
	if h.callback == nil {
		return nil
	}
	err := runBreaker(h.opts.breaker, func() error {
		return h.callback(ctx, n)
	})
	if err != nil {
		return &CallbackError{Err: err}
	}
	return nil
}

// ServeHTTP handles both handshake and delivery requests
func (h *Handler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error().
				Interface("panic", rec).
				Msg("Panic recovered in realtime subscription handler")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}()

	switch r.Method {
	case http.MethodGet:
		h.handleSubscribe(w, r)
	case http.MethodPost:
		h.handleNotify(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler[T]) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.Subscribe(r)
	if err != nil {
		h.fail(w, r, err, "Subscription verification failed")
		return
	}

	h.logger.Info().Str("path", r.URL.Path).Msg("Subscription verified")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

func (h *Handler[T]) handleNotify(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notify(r)
	if err != nil {
		h.fail(w, r, err, "Notification rejected")
		return
	}

	h.logger.Debug().
		Str("delivery_id", n.DeliveryID).
		Bool("duplicate", n.Duplicate).
		Msg("Notification accepted")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler[T]) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := StatusFor(err, h.opts.failureStatus)
	kind := KindOf(err)

	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).
		Str("kind", kind.String()).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg(msg)

	if h.opts.errorHandler != nil {
		h.opts.errorHandler(w, r, err)
		return
	}

	http.Error(w, http.StatusText(status), status)
}

func (h *Handler[T]) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.opts.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > h.opts.maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// StatusFor maps a handler error to an HTTP status. Request-level rejections get
// failureStatus; misconfiguration and callback failures are server errors.
func StatusFor(err error, failureStatus int) int {
	if failureStatus == 0 {
		failureStatus = DefaultFailureStatus
	}

	if err == nil {
		return http.StatusOK
	}

	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		if errors.Is(cbErr.Err, ErrCallbackUnavailable) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, ErrSettingsNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrCallbackUnavailable):
		return http.StatusServiceUnavailable
	}

	switch KindOf(err) {
	case KindConfig:
		return http.StatusInternalServerError
	case KindUnknown:
		return http.StatusInternalServerError
	default:
		return failureStatus
	}
}
