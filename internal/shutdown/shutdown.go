// Package shutdown runs cleanup hooks once, on SIGINT/SIGTERM or on demand,
// and cancels the contexts handed out for long-running work.
package shutdown

import (
	"context"
	"errors"
	"fmt"
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

type Handler struct {
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
	result  error

	mu    sync.Mutex
	hooks []hook
	stop  func()
}

// New returns a Handler whose hooks share timeout
func New(timeout time.Duration) *Handler {
	return &Handler{timeout: timeout, done: make(chan struct{})}
}

// Register adds a hook. Hooks run last registered first.
func (h *Handler) Register(name string, fn func(context.Context) error) {
	h.mu.Lock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
	h.mu.Unlock()
}

// Context derives a context cancelled when shutdown starts
func (h *Handler) Context(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		select {
		case <-h.done:
		case <-ctx.Done():
		}
	}()
	return ctx
}

// Listen shuts down on the first SIGINT or SIGTERM
func (h *Handler) Listen() {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	h.mu.Lock()
	h.stop = stop
	h.mu.Unlock()

	go func() {
		select {
		case <-sigCtx.Done():
			h.Shutdown()
		case <-h.done:
		}
	}()
}

// Done is closed once shutdown starts
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Shutdown runs the hooks within the timeout and returns their joined
// errors. Hooks left when the timeout expires are reported, not run. Only
// the first call does any work.
func (h *Handler) Shutdown() error {
	h.once.Do(func() {
		close(h.done)

		h.mu.Lock()
		hooks := append([]hook(nil), h.hooks...)
		stop := h.stop
		h.mu.Unlock()
		if stop != nil {
			stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			err := ctx.Err()
			if err == nil {
				err = hooks[i].fn(ctx)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
			}
		}
		h.result = errors.Join(errs...)
	})
	return h.result
}

// IsShuttingDown reports whether Shutdown has been called
func (h *Handler) IsShuttingDown() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
