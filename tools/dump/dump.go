/* dump precomputes raw samples of a reader into a store and reads them back.
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
package dump

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strconv"

	"github.com/cheggaaa/pb"

	"github.com/revsic/speechset/tools/readers"
	"github.com/revsic/speechset/tools/signals"
	"github.com/revsic/speechset/tools/workerpool"
)

// Options configures Dump.
type Options struct {
	// Workers is the number of samples loaded concurrently, runtime.NumCPU() if not positive.
	Workers int
	// SampleRate is the rate of the audio the reader loads. If zero it is taken from
	// readers having a SampleRate method.
	SampleRate signals.Hz
	// Progress shows a progress bar on ProgressOutput, os.Stderr if nil.
	Progress       bool
	ProgressOutput io.Writer
	Logger         *slog.Logger
}

type rated interface {
	SampleRate() signals.Hz
}

type dumped struct {
	index int
	sid   int
	entry Entry
}

// Dump loads every sample of reader through a worker pool, stores each as
// BlobName(index) and finally writes a manifest listing the samples in key order.
func Dump(ctx context.Context, reader readers.Reader, store Store, opts Options) (*Manifest, error) {
	logger := orDefault(opts.Logger)
	rate := opts.SampleRate
	if rate == 0 {
		r, ok := reader.(rated)
		if !ok {
			return nil, fmt.Errorf("sample rate of %T is unknown", reader)
		}
		rate = r.SampleRate()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	keys := reader.Keys()
	logger.Info("dumping", "samples", len(keys), "workers", workers, "store", fmt.Sprint(store))

	var bar *pb.ProgressBar
	if opts.Progress {
		bar = pb.New(len(keys)).Prefix("Dumping")
		bar.Output = opts.ProgressOutput
		if bar.Output == nil {
			bar.Output = os.Stderr
		}
		bar.Start()
	}

	results := make(chan dumped)
	collected := []dumped{}
	collectionDone := make(chan struct{})
	go func() {
		for result := range results {
			collected = append(collected, result)
		}
		close(collectionDone)
	}()

	wp := workerpool.New(ctx, workers)
	for index, key := range keys {
		wp.Go(func(ctx context.Context) error {
			raw, err := reader.Load(key)
			if err != nil {
				return err
			}
			data, err := EncodeRecord(raw)
			if err != nil {
				return fmt.Errorf("%v: %w", key, err)
			}
			if err := store.Put(ctx, BlobName(index), data); err != nil {
				return fmt.Errorf("%v: %w", key, err)
			}
			results <- dumped{
				index: index,
				sid:   raw.SpeakerID,
				entry: Entry{Index: index, Text: raw.Text, Path: key},
			}
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	err := wp.Wait()
	close(results)
	<-collectionDone
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})
	speakers := reader.Speakers()
	m := &Manifest{
		SR:       int(rate),
		Speakers: map[string]*Speaker{},
	}
	for sid, name := range speakers {
		m.Speakers[strconv.Itoa(sid)] = &Speaker{Name: name, Entries: []Entry{}}
	}
	for _, result := range collected {
		key := strconv.Itoa(result.sid)
		speaker, found := m.Speakers[key]
		if !found {
			speaker = &Speaker{Entries: []Entry{}}
			m.Speakers[key] = speaker
		}
		speaker.Entries = append(speaker.Entries, result.entry)
	}
	if err := WriteManifest(ctx, store, m); err != nil {
		return nil, err
	}
	logger.Info("dumped", "samples", len(collected), "speakers", len(m.Speakers), "store", fmt.Sprint(store))
	return m, nil
}
