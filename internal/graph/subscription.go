package graph

import (
	"context"
	"time"

	"github.com/hmans/taskgraph/internal/store"
)

type countSecondsArgs struct {
	UpTo *int32
}

// CountSeconds emits 0 through upTo, waiting one tick after each value
// below upTo. A negative upTo is emitted alone. The stream ends early when
// the client goes away.
func (r *Resolver) CountSeconds(ctx context.Context, args countSecondsArgs) (<-chan *float64, error) {
	if args.UpTo == nil {
		return nil, validationError("upTo is required")
	}
	upTo := int(*args.UpTo)
	start := min(0, upTo)

	tick := r.Tick
	if tick <= 0 {
		tick = time.Second
	}

	ch := make(chan *float64)
	go func() {
		defer close(ch)

		timer := time.NewTimer(tick)
		defer timer.Stop()

		for i := start; i <= upTo; i++ {
			v := float64(i)
			select {
			case ch <- &v:
			case <-ctx.Done():
				return
			}
			if i == upTo {
				return
			}

			timer.Reset(tick)
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// TaskEvents streams changes to tasks created by the caller.
func (r *Resolver) TaskEvents(ctx context.Context) (<-chan *taskEventResolver, error) {
	return gated(ctx, r, func(ctx context.Context, me *store.User) (<-chan *taskEventResolver, error) {
		if r.Events == nil {
			return nil, validationError("task events are not enabled")
		}
		events, unsubscribe := r.Events.Subscribe()

		ch := make(chan *taskEventResolver)
		go func() {
			defer close(ch)
			defer unsubscribe()

			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					if ev.Task == nil || ev.Task.CreatorID != me.ID {
						continue
					}
					select {
					case ch <- &taskEventResolver{r: r, ev: ev}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return ch, nil
	})
}
