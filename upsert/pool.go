package upsert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

const poolReleaseTimeout = 10 * time.Second

// forEach runs fn for every item on a pool of at most workers goroutines
// and waits for all of them. It stops submitting once ctx is done and then
// returns ctx.Err().
func forEach[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T)) error {
	if len(items) == 0 {
		return ctx.Err()
	}
	pool, err := ants.NewPool(min(workers, len(items)))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.ReleaseTimeout(poolReleaseTimeout)

	var wg sync.WaitGroup
	var submitErr error
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			fn(ctx, item)
		}); err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit task: %w", err)
			break
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return submitErr
}
