/* speechset contains lazy, splittable speech datasets producing padded training batches.
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
package speechset

import (
	"fmt"
	"iter"

	"github.com/revsic/speechset/tools/readers"
)

// EmptyBatchError is returned when collating zero samples.
type EmptyBatchError struct {
	Op string
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("%v: cannot collate an empty bunch", e.Op)
}

// IndexError is returned for positions outside [0, Len].
type IndexError struct {
	Index int
	Len   int
}

func (i *IndexError) Error() string {
	return fmt.Sprintf("index %v out of range for dataset of length %v", i.Index, i.Len)
}

// Policy turns raw samples into normalized samples N and bunches of those into batches B.
type Policy[N, B any] interface {
	// Normalize transforms a single raw sample.
	Normalize(raw readers.RawSample) (N, error)
	// Collate assembles normalized samples into a padded batch, failing with
	// EmptyBatchError for an empty bunch.
	Collate(bunch []N) (B, error)
}

// CollateFunc assembles normalized samples into a padded batch.
type CollateFunc[N, B any] func(bunch []N) (B, error)

// Source loads samples that were normalized ahead of time.
type Source[N any] interface {
	Keys() []string
	Load(key string) (N, error)
}

// SpeechSet lazily normalizes the samples of a reader. It owns only its key ordering,
// the reader is shared with every handle split from it. A SpeechSet is not safe for
// concurrent use with Split.
type SpeechSet[N, B any] struct {
	reader  readers.Reader
	keys    []string
	policy  Policy[N, B]
	load    func(key string) (N, error)
	collate CollateFunc[N, B]
}

// New returns a SpeechSet over all keys of reader.
func New[N, B any](reader readers.Reader, policy Policy[N, B]) *SpeechSet[N, B] {
	return newNormalizing(reader, reader.Keys(), policy)
}

// NewPrecomputed returns a SpeechSet over all keys of source, serving its samples
// unchanged and batching them with collate. It has no reader and no policy.
func NewPrecomputed[N, B any](source Source[N], collate CollateFunc[N, B]) *SpeechSet[N, B] {
	return &SpeechSet[N, B]{
		keys:    append([]string{}, source.Keys()...),
		load:    source.Load,
		collate: collate,
	}
}

func newNormalizing[N, B any](reader readers.Reader, keys []string, policy Policy[N, B]) *SpeechSet[N, B] {
	return &SpeechSet[N, B]{
		reader: reader,
		keys:   append([]string{}, keys...),
		policy: policy,
		load: func(key string) (N, error) {
			var zero N
			if reader == nil {
				return zero, fmt.Errorf("%v: precomputed samples have no raw sample to normalize", key)
			}
			raw, err := reader.Load(key)
			if err != nil {
				return zero, err
			}
			return policy.Normalize(raw)
		},
		collate: policy.Collate,
	}
}

// Reader returns the underlying reader, nil for precomputed samples.
func (s *SpeechSet[N, B]) Reader() readers.Reader {
	return s.reader
}

// Policy returns the normalization and collation policy, nil for precomputed samples.
func (s *SpeechSet[N, B]) Policy() Policy[N, B] {
	return s.policy
}

// Keys returns a copy of the owned keys.
func (s *SpeechSet[N, B]) Keys() []string {
	return append([]string{}, s.keys...)
}

// Len returns the number of owned keys.
func (s *SpeechSet[N, B]) Len() int {
	return len(s.keys)
}

// Get loads and normalizes the sample at index. Reader errors are returned unchanged.
func (s *SpeechSet[N, B]) Get(index int) (N, error) {
	var zero N
	if index < 0 || index >= len(s.keys) {
		return zero, &IndexError{Index: index, Len: len(s.keys)}
	}
	return s.load(s.keys[index])
}

// GetRange loads and normalizes the samples in [start, end) and collates them.
func (s *SpeechSet[N, B]) GetRange(start, end int) (B, error) {
	var zero B
	if start < 0 || start > len(s.keys) {
		return zero, &IndexError{Index: start, Len: len(s.keys)}
	}
	if end < start || end > len(s.keys) {
		return zero, &IndexError{Index: end, Len: len(s.keys)}
	}
	bunch := make([]N, 0, end-start)
	for index := start; index < end; index++ {
		sample, err := s.Get(index)
		if err != nil {
			return zero, err
		}
		bunch = append(bunch, sample)
	}
	return s.collate(bunch)
}

// Split keeps the keys in [0, at) and returns a new handle owning [at, Len).
func (s *SpeechSet[N, B]) Split(at int) (*SpeechSet[N, B], error) {
	if at < 0 || at > len(s.keys) {
		return nil, &IndexError{Index: at, Len: len(s.keys)}
	}
	residual := &SpeechSet[N, B]{
		reader:  s.reader,
		keys:    append([]string{}, s.keys[at:]...),
		policy:  s.policy,
		load:    s.load,
		collate: s.collate,
	}
	s.keys = append([]string{}, s.keys[:at]...)
	return residual, nil
}

// All yields the normalized samples in key order. Every call starts from the first
// sample. Iteration stops after the first error.
func (s *SpeechSet[N, B]) All() iter.Seq2[N, error] {
	return func(yield func(N, error) bool) {
		for index := range s.Len() {
			sample, err := s.Get(index)
			if !yield(sample, err) || err != nil {
				return
			}
		}
	}
}

// Batches yields consecutive batches of size samples, the last one may be shorter.
// Iteration stops after the first error.
func (s *SpeechSet[N, B]) Batches(size int) iter.Seq2[B, error] {
	return func(yield func(B, error) bool) {
		if size <= 0 {
			var zero B
			yield(zero, fmt.Errorf("batch size %v must be positive", size))
			return
		}
		for start := 0; start < s.Len(); start += size {
			batch, err := s.GetRange(start, min(start+size, s.Len()))
			if !yield(batch, err) || err != nil {
				return
			}
		}
	}
}
