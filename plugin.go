package msgbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbaliyan/msgbox/store"
)

// Plugin extends the service. Plugins are started in registration order on
// Connect and stopped in reverse order on Close.
//
// Status changes and deletions are published as events and have no hooks.
type Plugin interface {
	Name() string
	Init(ctx context.Context) error
	Close(ctx context.Context) error
}

// CreateHook is a Plugin that runs around message creation.
type CreateHook interface {
	Plugin
	// BeforeCreate runs after validation and before anything is written.
	// A non-nil error vetoes the message. Changes to data are validated
	// again, and the message type cannot be changed.
	BeforeCreate(ctx context.Context, data *store.MessageData) error
	// AfterCreate runs once the message and its state rows are stored.
	// Errors are logged only.
	AfterCreate(ctx context.Context, msg *Message) error
}

// Plugin operations reported in PluginError.Op.
const (
	PluginOpInit         = "init"
	PluginOpClose        = "close"
	PluginOpBeforeCreate = "BeforeCreate"
	PluginOpAfterCreate  = "AfterCreate"
)

// PluginError wraps a failure returned by a plugin.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("msgbox: plugin %s %s: %v", e.Plugin, e.Op, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

type pluginRegistry struct {
	plugins []Plugin
	hooks   []CreateHook
	// started counts the plugins whose Init succeeded.
	started int
	logger  *slog.Logger
}

func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

func (r *pluginRegistry) register(p Plugin) {
	r.plugins = append(r.plugins, p)
	if h, ok := p.(CreateHook); ok {
		r.hooks = append(r.hooks, h)
	}
}

// initAll starts every plugin. When one fails, the ones already started are
// stopped again before the error is returned.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for _, p := range r.plugins[r.started:] {
		if err := p.Init(ctx); err != nil {
			if stopErr := r.closeAll(ctx); stopErr != nil {
				r.logger.Error("plugin rollback failed", "error", stopErr)
			}
			return &PluginError{Plugin: p.Name(), Op: PluginOpInit, Err: err}
		}
		r.started++
	}
	return nil
}

// closeAll stops started plugins, newest first.
func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for ; r.started > 0; r.started-- {
		p := r.plugins[r.started-1]
		if err := p.Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: p.Name(), Op: PluginOpClose, Err: err})
		}
	}
	return errors.Join(errs...)
}

// beforeCreate stops at the first veto.
func (r *pluginRegistry) beforeCreate(ctx context.Context, data *store.MessageData) error {
	for _, h := range r.hooks {
		if err := h.BeforeCreate(ctx, data); err != nil {
			return &PluginError{Plugin: h.Name(), Op: PluginOpBeforeCreate, Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterCreate(ctx context.Context, msg *Message) error {
	var errs []error
	for _, h := range r.hooks {
		if err := h.AfterCreate(ctx, msg); err != nil {
			errs = append(errs, &PluginError{Plugin: h.Name(), Op: PluginOpAfterCreate, Err: err})
		}
	}
	return errors.Join(errs...)
}
