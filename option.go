package msgbox

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/event/v3/transport"
	"github.com/rbaliyan/msgbox/retry"
	"github.com/rbaliyan/msgbox/store"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	DefaultShutdownTimeout = 30 * time.Second
	MinShutdownTimeout     = 1 * time.Second

	DefaultMaxBodySize = 64 * 1024 // 64 KB

	// Query limits
	DefaultMaxQueryLimit = 100

	// Notifications
	DefaultNotificationTimeout        = 10 * time.Second
	DefaultMaxConcurrentNotifications = 16
	DefaultServiceName                = "msgbox"
)

// options holds service configuration.
type options struct {
	store  store.Store
	logger *slog.Logger

	plugins []Plugin

	// atomicCreate writes the message and its state rows in one unit.
	atomicCreate bool

	maxBodySize   int
	maxQueryLimit int

	// Notifications
	notifier                   Notifier
	asyncNotifications         bool
	maxConcurrentNotifications int
	notificationTimeout        time.Duration
	notificationRetry          retry.Config
	onNotificationFailure      NotificationFailureFunc

	shutdownTimeout time.Duration

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Events
	eventTransport        transport.Transport
	redisClient           redis.UniversalClient
	onEventPublishFailure EventPublishFailureFunc
}

// EventPublishFailureFunc is called when an event fails to publish.
type EventPublishFailureFunc func(eventName string, err error)

// NotificationFailureFunc receives every notifier failure after retries and
// every dropped notification. It may be called from a background goroutine.
type NotificationFailureFunc func(err *NotificationError)

// safeEventPublishFailure calls the event failure callback with panic recovery.
func (o *options) safeEventPublishFailure(eventName string, err error) {
	if o.onEventPublishFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event publish failure handler",
				"event", eventName,
				"original_error", err,
				"panic", r,
			)
		}
	}()
	o.onEventPublishFailure(eventName, err)
}

// safeNotificationFailure calls the notification failure callback with panic recovery.
func (o *options) safeNotificationFailure(err *NotificationError) {
	if o.onNotificationFailure == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in notification failure handler",
				"message_id", err.MessageID,
				"original_error", err.Err,
				"panic", r,
			)
		}
	}()
	o.onNotificationFailure(err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:                     slog.Default(),
		atomicCreate:               true,
		maxBodySize:                DefaultMaxBodySize,
		maxQueryLimit:              DefaultMaxQueryLimit,
		maxConcurrentNotifications: DefaultMaxConcurrentNotifications,
		notificationTimeout:        DefaultNotificationTimeout,
		asyncNotifications:         true,
		notificationRetry:          retry.NoRetry(),
		shutdownTimeout:            DefaultShutdownTimeout,
		serviceName:                DefaultServiceName,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.onEventPublishFailure == nil {
		o.onEventPublishFailure = func(eventName string, err error) {
			o.logger.Error("failed to publish event", "event", eventName, "error", err)
		}
	}

	return o
}

// Option configures a service.
type Option func(*options)

// --- Core Options ---

// WithStore sets the storage backend (required).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPlugin registers a plugin with the service.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins registers multiple plugins at once.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// WithAtomicCreate selects how a message and its state rows are written.
//
// When true (the default) they are written as one unit and a fan-out failure
// leaves nothing behind. When false the message is inserted first, then the
// recipient state, then the sender state; the first failure aborts and the
// rows already written remain.
func WithAtomicCreate(atomic bool) Option {
	return func(o *options) {
		o.atomicCreate = atomic
	}
}

// --- Limit Options ---

// WithMaxBodySize sets the maximum body size in bytes.
// Default is 64 KB.
func WithMaxBodySize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodySize = n
		}
	}
}

// WithMaxQueryLimit caps the page size of list queries.
// Requests with a larger limit are capped. Requests without a limit are
// left unbounded. Default is 100.
func WithMaxQueryLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxQueryLimit = n
		}
	}
}

// --- Notification Options ---

// WithNotifier sets the notification collaborator invoked after every
// successful creation. By default a NotificationRequested event is published.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithAsyncNotifications controls whether the notifier runs in the background.
// Default is true: creation returns without waiting, at most
// WithMaxConcurrentNotifications calls run at once, and a notification that
// finds no free slot is dropped and reported. Close waits for in-flight calls.
// When false, the notifier runs inline and creation waits for it.
func WithAsyncNotifications(async bool) Option {
	return func(o *options) {
		o.asyncNotifications = async
	}
}

// WithMaxConcurrentNotifications bounds in-flight async notifier calls.
// Default is 16.
func WithMaxConcurrentNotifications(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentNotifications = n
		}
	}
}

// WithNotificationTimeout bounds a single notifier call including retries.
// Default is 10 seconds.
func WithNotificationTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.notificationTimeout = d
		}
	}
}

// WithNotificationRetry sets the retry policy for notifier calls.
// Default is retry.NoRetry(): the notifier is called once.
func WithNotificationRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.notificationRetry = cfg
	}
}

// WithNotificationFailureHandler sets a callback for notifier failures.
// Failures are always logged; the callback is for metrics or alerting.
func WithNotificationFailureHandler(fn NotificationFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onNotificationFailure = fn
		}
	}
}

// WithShutdownTimeout sets the maximum time Close waits for in-flight
// notifications. Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both tracing and metrics.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name used for telemetry and event bus names.
// Default is "msgbox".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Event Options ---

// WithEventTransport sets the event transport.
// Without one, a noop transport is used and events are dropped.
func WithEventTransport(t transport.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.eventTransport = t
		}
	}
}

// WithRedisClient publishes events to Redis Streams.
// Ignored when WithEventTransport is also set.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		if client != nil {
			o.redisClient = client
		}
	}
}

// WithEventPublishFailureHandler sets a callback for event publishing failures.
// By default, failures are logged.
func WithEventPublishFailureHandler(fn EventPublishFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onEventPublishFailure = fn
		}
	}
}

// limits returns the configured message limits.
func (o *options) limits() MessageLimits {
	return MessageLimits{MaxBodySize: o.maxBodySize}
}

// capList applies the query cap to opts.
func (o *options) capList(opts ListOptions) ListOptions {
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Limit > o.maxQueryLimit {
		opts.Limit = o.maxQueryLimit
	}
	return opts
}
