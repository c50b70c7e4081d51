package verify

import (
	"context"
	"fmt"
	"sync"
)

// job pairs an installed path with its position in the listing.
type job struct {
	path  string
	index int
}

type jobResult struct {
	outcome outcome
	err     error
	index   int
}

type checkFunc func(ctx context.Context, path string) (outcome, error)

// run checks every path with a bounded pool of workers and returns the
// outcomes in listing order. The first error cancels the remaining jobs and
// is returned.
func (e *Engine) run(ctx context.Context, paths []string, check checkFunc) ([]outcome, error) {
	if len(paths) == 0 {
		return []outcome{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobsChan := make(chan job, len(paths))
	resultsChan := make(chan jobResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < min(e.workers, len(paths)); i++ {
		wg.Add(1)
		go e.worker(ctx, check, jobsChan, resultsChan, &wg)
	}

	for i, p := range paths {
		jobsChan <- job{path: p, index: i}
	}
	close(jobsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	outcomes := make([]outcome, len(paths))
	var firstErr error
	progress := Progress{Total: len(paths)}
	for r := range resultsChan {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		outcomes[r.index] = r.outcome
		progress.Checked++
		if r.outcome.failed() {
			progress.Failed++
		}
		if e.progress != nil {
			e.progress(progress)
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return outcomes, nil
}

// worker drains jobsChan. Once ctx is cancelled the remaining jobs are
// answered with the context error without being checked.
func (e *Engine) worker(ctx context.Context, check checkFunc, jobsChan <-chan job, resultsChan chan<- jobResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for j := range jobsChan {
		if err := ctx.Err(); err != nil {
			resultsChan <- jobResult{err: err, index: j.index}
			continue
		}

		o, err := check(ctx, j.path)
		if err != nil {
			e.logger.Error("file check failed", "path", j.path, "error", err)
			resultsChan <- jobResult{err: fmt.Errorf("verifying %s: %w", j.path, err), index: j.index}
			continue
		}
		resultsChan <- jobResult{outcome: o, index: j.index}
	}
}
