package locate

import (
	"context"
	"sync"

	"github.com/MeKo-Tech/tiresias/internal/match"
)

type job struct {
	index int
	path  string
}

type jobResult struct {
	index  int
	result *Result
	err    error
}

// LocateAll processes paths with the configured number of workers. Results
// come back in input order. A file that fails yields a Result carrying the
// error text. Cancelling ctx stops the remaining work and returns ctx.Err().
func (l *Locator) LocateAll(ctx context.Context, paths []string) ([]*Result, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	workers := min(max(l.workers, 1), len(paths))

	l.progress.OnStart(len(paths))
	defer l.progress.OnComplete()

	jobs := make(chan job)
	results := make(chan jobResult, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go l.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, p := range paths {
			select {
			case jobs <- job{index: i, path: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*Result, len(paths))
	done := 0
	for r := range results {
		done++
		if r.err != nil {
			l.progress.OnError(r.index, r.err)
			ordered[r.index] = &Result{Path: paths[r.index], Outcome: match.Failed, Error: r.err.Error(), Engine: l.engine.Name()}
		} else {
			ordered[r.index] = r.result
		}
		l.progress.OnProgress(done, len(paths))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ordered, nil
}

func (l *Locator) worker(ctx context.Context, jobs <-chan job, results chan<- jobResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			res, err := l.LocateFile(ctx, j.path)
			results <- jobResult{index: j.index, result: res, err: err}
		case <-ctx.Done():
			return
		}
	}
}
