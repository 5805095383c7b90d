package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	logger  *slog.Logger
	signals []os.Signal

	mu    sync.Mutex
	hooks []hook

	ctx     context.Context
	cancel  context.CancelFunc
	trigger sync.Once
	done    chan struct{}
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used to report hook progress.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithSignals replaces the default SIGINT/SIGTERM set. An empty set means
// only Trigger starts shutdown.
func WithSignals(sig ...os.Signal) Option {
	return func(h *Handler) { h.signals = sig }
}

// NewHandler creates a handler whose hooks share timeout.
func NewHandler(timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{
		timeout: timeout,
		logger:  slog.Default(),
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// Context is cancelled as soon as shutdown starts. Long-running work
// (autosave, watchers, servers) should stop on it.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// OnShutdown registers a named hook. Hooks run in reverse order of
// registration.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Trigger starts shutdown without a signal.
func (h *Handler) Trigger() {
	h.trigger.Do(h.cancel)
}

// Wait blocks until a signal arrives or Trigger is called, then runs every
// hook. All hook errors are returned joined.
func (h *Handler) Wait() error {
	if len(h.signals) > 0 {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, h.signals...)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			h.logger.Info("shutdown signal received", "signal", sig.String())
			h.Trigger()
		case <-h.ctx.Done():
		}
	} else {
		<-h.ctx.Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hk := hooks[i]
		h.logger.Info("running shutdown hook", "hook", hk.name)
		if err := hk.fn(ctx); err != nil {
			h.logger.Error("shutdown hook failed", "hook", hk.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
		}
	}

	close(h.done)
	return errors.Join(errs...)
}

// Done returns a channel that closes when every hook has run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
