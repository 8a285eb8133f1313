/* leaktest stress tests the melstft package to make it simpler to see if
 * there's a memory leak while running it.
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
package main

import (
	"context"
	"flag"
	"log"
	"runtime"

	"github.com/cheggaaa/pb"
	"github.com/revsic/speechset/tools/config"
	"github.com/revsic/speechset/tools/melstft"
	"github.com/revsic/speechset/tools/signals"
	"github.com/revsic/speechset/tools/workerpool"
)

var (
	jobs    = flag.Int("jobs", 10000, "Number of transforms to run.")
	seconds = flag.Float64("seconds", 5, "Length of each transformed signal.")
)

func main() {
	flag.Parse()
	c := config.Default()
	m, err := melstft.New(c)
	if err != nil {
		log.Panic(err)
	}
	signal := signals.Sine(440, 0.5, signals.Hz(c.SR), int(*seconds*float64(c.SR))).Float32()

	wp := workerpool.New(context.Background(), runtime.NumCPU())
	bar := pb.StartNew(*jobs).Prefix("Transforming")
	for i := 0; i < *jobs; i++ {
		wp.Go(func(context.Context) error {
			m.Transform(signal)
			bar.Increment()
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		log.Panic(err)
	}
	bar.Finish()
}
