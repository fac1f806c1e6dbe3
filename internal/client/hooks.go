package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgellow/wishlist-front/internal/log"
)

// Failure describes a failed request as seen by the response interceptor
type Failure struct {
	Kind       Kind
	Method     string
	Endpoint   string
	URL        string
	StatusCode int // 0 when no response arrived

	// Bearer is the token the request was authorized with, empty when it
	// went out without one. It can differ from the session's current token
	// if the session changed while the request was in flight.
	Bearer string

	Err error
}

// Hook observes a classified failure. Hooks cannot change or swallow the
// error returned to the caller.
type Hook func(ctx context.Context, f Failure)

type hookRegistry struct {
	mu    sync.RWMutex
	hooks map[Kind][]Hook
}

func newHookRegistry() *hookRegistry {
	return &hookRegistry{hooks: make(map[Kind][]Hook)}
}

func (r *hookRegistry) add(kind Kind, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[kind] = append(r.hooks[kind], hook)
}

func (r *hookRegistry) dispatch(ctx context.Context, f Failure) {
	r.mu.RLock()
	hooks := append([]Hook(nil), r.hooks[f.Kind]...)
	r.mu.RUnlock()

	for _, hook := range hooks {
		runHook(ctx, hook, f)
	}
}

func runHook(ctx context.Context, hook Hook, f Failure) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogErrorWithFields("client", "Failure hook panicked", map[string]any{
				"kind":  string(f.Kind),
				"url":   f.URL,
				"panic": fmt.Sprint(rec),
			})
		}
	}()
	hook(ctx, f)
}
