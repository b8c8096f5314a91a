package msgbox

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestNewOptionsDefaults(t *testing.T) {
	o := newOptions()

	if !o.atomicCreate {
		t.Error("expected atomic creation by default")
	}
	if o.maxBodySize != DefaultMaxBodySize {
		t.Errorf("expected max body %d, got %d", DefaultMaxBodySize, o.maxBodySize)
	}
	if o.maxQueryLimit != DefaultMaxQueryLimit {
		t.Errorf("expected max query limit %d, got %d", DefaultMaxQueryLimit, o.maxQueryLimit)
	}
	if o.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("expected shutdown timeout %v, got %v", DefaultShutdownTimeout, o.shutdownTimeout)
	}
	if o.serviceName != DefaultServiceName {
		t.Errorf("expected service name %q, got %q", DefaultServiceName, o.serviceName)
	}
	if o.onEventPublishFailure == nil {
		t.Error("expected default event failure handler")
	}
	if !o.asyncNotifications {
		t.Error("expected background notifications by default")
	}
	if o.notificationRetry.MaxRetries != 0 {
		t.Errorf("expected a single notifier attempt by default, got %d retries", o.notificationRetry.MaxRetries)
	}
	if o.logger == nil {
		t.Error("expected default logger")
	}
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	o := newOptions(
		WithMaxBodySize(-1),
		WithMaxQueryLimit(0),
		WithShutdownTimeout(time.Millisecond),
		WithNotificationTimeout(0),
		WithMaxConcurrentNotifications(-3),
		WithServiceName(""),
		WithLogger(nil),
		WithStore(nil),
		WithPlugin(nil),
		WithNotifier(nil),
	)

	if o.maxBodySize != DefaultMaxBodySize ||
		o.maxQueryLimit != DefaultMaxQueryLimit ||
		o.shutdownTimeout != DefaultShutdownTimeout ||
		o.notificationTimeout != DefaultNotificationTimeout ||
		o.maxConcurrentNotifications != DefaultMaxConcurrentNotifications ||
		o.serviceName != DefaultServiceName {
		t.Errorf("invalid values must keep defaults: %+v", o)
	}
	if o.logger == nil || o.store != nil || len(o.plugins) != 0 || o.notifier != nil {
		t.Error("nil values must be ignored")
	}
}

func TestOptionsApply(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	o := newOptions(
		WithAtomicCreate(false),
		WithMaxBodySize(10),
		WithMaxQueryLimit(5),
		WithAsyncNotifications(false),
		WithOTel(true),
		WithServiceName("chat"),
		WithLogger(logger),
	)

	if o.atomicCreate || o.maxBodySize != 10 || o.maxQueryLimit != 5 || o.asyncNotifications {
		t.Errorf("options not applied: %+v", o)
	}
	if !o.tracingEnabled || !o.metricsEnabled {
		t.Error("expected tracing and metrics")
	}
	if o.logger != logger || o.serviceName != "chat" {
		t.Error("expected custom logger and name")
	}
	if got := o.limits().MaxBodySize; got != 10 {
		t.Errorf("expected limits to follow options, got %d", got)
	}
}

func TestCapList(t *testing.T) {
	o := newOptions(WithMaxQueryLimit(10))

	tests := []struct {
		in, want ListOptions
	}{
		{ListOptions{}, ListOptions{}},
		{ListOptions{Limit: 5}, ListOptions{Limit: 5}},
		{ListOptions{Limit: 50}, ListOptions{Limit: 10}},
		{ListOptions{Offset: -2, Limit: 3}, ListOptions{Limit: 3}},
	}
	for _, tt := range tests {
		if got := o.capList(tt.in); got != tt.want {
			t.Errorf("capList(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestSafeCallbacksRecoverPanics(t *testing.T) {
	o := newOptions(
		WithEventPublishFailureHandler(func(string, error) { panic("event") }),
		WithNotificationFailureHandler(func(*NotificationError) { panic("notify") }),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	o.safeEventPublishFailure("MessageCreated", errors.New("x"))
	o.safeNotificationFailure(&NotificationError{MessageID: "m", Kind: NotifyInbox, Err: errors.New("x")})
}
