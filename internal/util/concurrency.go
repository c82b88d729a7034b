package util

import (
	"github.com/sourcegraph/conc/pool"
)

// ConcurrentTask represents a task that can be executed concurrently
type ConcurrentTask func() error

// RunAll executes every task concurrently, with at most maxConcurrency in
// flight (unbounded when maxConcurrency <= 0), and waits for all of them. A
// failure does not stop the others. The returned slice holds each task's
// error at the task's index.
func RunAll(tasks []ConcurrentTask, maxConcurrency int) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}

	p := pool.New()
	if maxConcurrency > 0 {
		p = p.WithMaxGoroutines(maxConcurrency)
	}
	for i, task := range tasks {
		p.Go(func() {
			errs[i] = task()
		})
	}
	p.Wait()
	return errs
}
