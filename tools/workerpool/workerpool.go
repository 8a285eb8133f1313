/* workerpool contains code to run a limited number of error handling goroutines concurrently.
 *
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MultiErr contains multiple errors.
type MultiErr []error

// Error returns a string representation of the multi error.
func (m MultiErr) Error() string {
	return fmt.Sprint([]error(m))
}

// Unwrap returns the contained errors for errors.Is and errors.As.
func (m MultiErr) Unwrap() []error {
	return m
}

// Job is a unit of work run by the pool.
type Job func(ctx context.Context) error

// WorkerPool runs a limited number of error handling goroutines concurrently.
type WorkerPool struct {
	ctx    context.Context
	queue  chan Job
	errors chan error
	result chan error
}

// Go queues the job, blocking while all workers are busy. Jobs queued after the pool
// context is done are not run.
func (w *WorkerPool) Go(job Job) {
	w.queue <- job
}

// Wait stops accepting jobs, waits for all submitted jobs to finish and returns their
// errors as a MultiErr. A cancelled context contributes its error once.
func (w *WorkerPool) Wait() error {
	close(w.queue)
	return <-w.result
}

// New returns a new worker pool running at most concurrency jobs at a time, or an
// unlimited number if concurrency is not positive.
func New(ctx context.Context, concurrency int) *WorkerPool {
	w := &WorkerPool{
		ctx:    ctx,
		queue:  make(chan Job),
		errors: make(chan error),
		result: make(chan error, 1),
	}

	go func() {
		me := MultiErr{}
		for err := range w.errors {
			if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
				continue
			}
			me = append(me, err)
		}
		if err := ctx.Err(); err != nil {
			me = append(me, err)
		}
		if len(me) == 0 {
			w.result <- nil
			return
		}
		w.result <- me
	}()

	go func() {
		wg := &sync.WaitGroup{}
		tickets := make(chan struct{}, max(concurrency, 0))
		for job := range w.queue {
			if ctx.Err() != nil {
				continue
			}
			if concurrency > 0 {
				tickets <- struct{}{}
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := job(ctx)
				if concurrency > 0 {
					<-tickets
				}
				w.errors <- err
			}()
		}
		wg.Wait()
		close(w.errors)
	}()
	return w
}
