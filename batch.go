package thinjar

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// DefaultConcurrency is the number of archives ThinAll processes at once.
const DefaultConcurrency = 4

// Job names one fat archive and where its thin archive goes.
type Job struct {
	Source string
	Target string
}

// ThinAll thins every job into one shared directory cache, running up to
// concurrency jobs at a time. Identical libraries from different archives
// land at the same address and are stored once. A failing job does not stop
// the others; the returned error joins every failure and the result slot of
// a failed job is nil.
func ThinAll(ctx context.Context, cacheDir string, jobs []Job, concurrency int, opts ...Option) ([]*Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	targets := make(map[string]string, len(jobs))
	for _, job := range jobs {
		if prev, dup := targets[job.Target]; dup {
			return nil, fmt.Errorf("jobs %s and %s share target %s", prev, job.Source, job.Target)
		}
		targets[job.Target] = job.Source
	}

	// An archive-backed cache cannot be shared between concurrent runs.
	opts = append(opts[:len(opts):len(opts)], WithDirectoryCache(true))

	results := make([]*Result, len(jobs))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(concurrency)
	for i, job := range jobs {
		p.Go(func(ctx context.Context) error {
			res, err := Thin(ctx, job.Source, job.Target, cacheDir, opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Source, err)
			}
			results[i] = res
			return nil
		})
	}
	return results, p.Wait()
}
