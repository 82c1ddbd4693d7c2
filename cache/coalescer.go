package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Coalescer merges concurrent calls for the same key into a single in-flight request.
type Coalescer[V any] struct {
	group singleflight.Group
}

// Do runs fn once per key among concurrent callers. The shared call is not bound
// to any single caller's context, each caller stops waiting when its own ctx is done.
func (c *Coalescer[V]) Do(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}
