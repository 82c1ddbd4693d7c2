package utils

import (
	"context"
	"sync"
)

type commitHooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks returns a context collecting AfterCommit callbacks and a
// function running them in registration order. Transactors call it once per
// attempt and run the hooks only after a successful commit.
func WithCommitHooks(ctx context.Context) (context.Context, func()) {
	hooks := new(commitHooks)
	return context.WithValue(ctx, commitHooksKey{}, hooks), func() {
		hooks.mu.Lock()
		fns := hooks.fns
		hooks.fns = nil
		hooks.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
}

// AfterCommit defers fn until the transaction carried by ctx commits.
// Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	hooks.mu.Lock()
	hooks.fns = append(hooks.fns, fn)
	hooks.mu.Unlock()
}
