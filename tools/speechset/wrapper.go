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
package speechset

import (
	"fmt"

	"github.com/revsic/speechset/tools/readers"
)

// IDSample carries auxiliary ids next to a normalized sample.
type IDSample[N any] struct {
	IDs    []int
	Sample N
}

// IDBatch carries the stacked ids, [B][K], next to the wrapped batch.
type IDBatch[B any] struct {
	IDs   [][]int
	Batch B
}

// IDFunc extracts the auxiliary ids of a raw sample.
type IDFunc func(raw readers.RawSample) []int

// SpeakerID tags each sample with its speaker id.
func SpeakerID(raw readers.RawSample) []int {
	return []int{raw.SpeakerID}
}

// IDWrapper threads auxiliary ids through a wrapped policy without touching its fields.
type IDWrapper[N, B any] struct {
	inner Policy[N, B]
	ids   IDFunc
}

// NewIDWrapper wraps inner, taking ids from ids or from the speaker id if ids is nil.
func NewIDWrapper[N, B any](inner Policy[N, B], ids IDFunc) *IDWrapper[N, B] {
	if ids == nil {
		ids = SpeakerID
	}
	return &IDWrapper[N, B]{
		inner: inner,
		ids:   ids,
	}
}

// Inner returns the wrapped policy.
func (w *IDWrapper[N, B]) Inner() Policy[N, B] {
	return w.inner
}

// Normalize extracts the ids of raw and normalizes it with the wrapped policy.
func (w *IDWrapper[N, B]) Normalize(raw readers.RawSample) (IDSample[N], error) {
	if w.inner == nil {
		return IDSample[N]{}, fmt.Errorf("ids: no wrapped policy to normalize with")
	}
	ids := append([]int{}, w.ids(raw)...)
	sample, err := w.inner.Normalize(raw)
	if err != nil {
		return IDSample[N]{}, err
	}
	return IDSample[N]{IDs: ids, Sample: sample}, nil
}

// Collate stacks the ids, which must all have the same count, and collates the samples
// with the wrapped policy.
func (w *IDWrapper[N, B]) Collate(bunch []IDSample[N]) (IDBatch[B], error) {
	if w.inner == nil {
		return CollateIDs[N, B](nil)(bunch)
	}
	return CollateIDs[N, B](w.inner.Collate)(bunch)
}

// CollateIDs returns a CollateFunc stacking the ids, which must all have the same
// count, and collating the samples with inner.
func CollateIDs[N, B any](inner CollateFunc[N, B]) CollateFunc[IDSample[N], IDBatch[B]] {
	return func(bunch []IDSample[N]) (IDBatch[B], error) {
		if len(bunch) == 0 {
			return IDBatch[B]{}, &EmptyBatchError{Op: "ids"}
		}
		if inner == nil {
			return IDBatch[B]{}, fmt.Errorf("ids: no wrapped policy to collate with")
		}
		ids := make([][]int, len(bunch))
		samples := make([]N, len(bunch))
		for idx, item := range bunch {
			if len(item.IDs) != len(bunch[0].IDs) {
				return IDBatch[B]{}, fmt.Errorf("sample %v has %v ids, wanted %v", idx, len(item.IDs), len(bunch[0].IDs))
			}
			ids[idx] = append([]int{}, item.IDs...)
			samples[idx] = item.Sample
		}
		batch, err := inner(samples)
		if err != nil {
			return IDBatch[B]{}, err
		}
		return IDBatch[B]{IDs: ids, Batch: batch}, nil
	}
}

// WithIDs returns a handle over the same reader and keys as s whose samples carry ids.
// Samples of a precomputed s fail to load, their ids are read with IDsFromTFExample.
func WithIDs[N, B any](s *SpeechSet[N, B], ids IDFunc) *SpeechSet[IDSample[N], IDBatch[B]] {
	return newNormalizing(s.reader, s.keys, Policy[IDSample[N], IDBatch[B]](NewIDWrapper(s.policy, ids)))
}
