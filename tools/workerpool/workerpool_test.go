/*
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
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerpool(t *testing.T) {
	wp := New(context.Background(), 10)
	var running int64
	var maxRunning int64
	var done int64
	for j := 0; j < 100; j++ {
		wp.Go(func(context.Context) error {
			now := atomic.AddInt64(&running, 1)
			for {
				seen := atomic.LoadInt64(&maxRunning)
				if now <= seen || atomic.CompareAndSwapInt64(&maxRunning, seen, now) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&running, -1)
			atomic.AddInt64(&done, 1)
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		t.Fatal(err)
	}
	if done != 100 {
		t.Errorf("Got %v finished jobs, wanted 100", done)
	}
	if maxRunning > 10 {
		t.Errorf("Limited job queue didn't stick to its limits, %v jobs ran concurrently", maxRunning)
	}
}

func TestUnlimited(t *testing.T) {
	wp := New(context.Background(), 0)
	release := make(chan struct{})
	var started int64
	for j := 0; j < 20; j++ {
		wp.Go(func(context.Context) error {
			atomic.AddInt64(&started, 1)
			<-release
			return nil
		})
	}
	for atomic.LoadInt64(&started) < 20 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	if err := wp.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestErrors(t *testing.T) {
	sentinel := errors.New("sentinel")
	wp := New(context.Background(), 3)
	for j := 0; j < 10; j++ {
		wp.Go(func(context.Context) error {
			if j%4 == 0 {
				return fmt.Errorf("job %v: %w", j, sentinel)
			}
			return nil
		})
	}
	err := wp.Wait()
	me := MultiErr{}
	if !errors.As(err, &me) {
		t.Fatalf("Got %v, wanted a MultiErr", err)
	}
	if len(me) != 3 {
		t.Errorf("Got %v errors, wanted 3", len(me))
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("MultiErr %v does not wrap the job errors", err)
	}
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp := New(ctx, 1)
	var ran int64
	for j := 0; j < 10; j++ {
		if j == 5 {
			cancel()
		}
		wp.Go(func(ctx context.Context) error {
			atomic.AddInt64(&ran, 1)
			return ctx.Err()
		})
	}
	err := wp.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Got %v, wanted context.Canceled", err)
	}
	if me := (MultiErr{}); errors.As(err, &me) && len(me) != 1 {
		t.Errorf("Got %v errors, wanted the cancellation once", len(me))
	}
	if ran > 6 {
		t.Errorf("Got %v jobs run, wanted at most 6", ran)
	}
}
