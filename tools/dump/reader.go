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
package dump

import (
	"context"
	"log/slog"

	"github.com/revsic/speechset/tools/readers"
	"github.com/revsic/speechset/tools/signals"
)

// Reader reads the samples of a dump, implementing readers.Reader.
type Reader struct {
	ctx      context.Context
	store    Store
	manifest *Manifest
	rate     signals.Hz
	keys     []string
	owners   map[string]int
	speakers []string
	logger   *slog.Logger
}

// NewReader reads the manifest of the dump in store. Loaded audio is resampled to rate
// unless rate is zero or equals the dump rate. ctx is used for every store access.
func NewReader(ctx context.Context, store Store, rate signals.Hz, logger *slog.Logger) (*Reader, error) {
	m, err := ReadManifest(ctx, store)
	if err != nil {
		return nil, err
	}
	entries, owners, err := m.Entries()
	if err != nil {
		return nil, err
	}
	if rate == 0 {
		rate = signals.Hz(m.SR)
	}
	r := &Reader{
		ctx:      ctx,
		store:    store,
		manifest: m,
		rate:     rate,
		keys:     make([]string, len(entries)),
		owners:   map[string]int{},
		logger:   orDefault(logger),
	}
	for idx, entry := range entries {
		key := BlobName(entry.Index)
		r.keys[idx] = key
		r.owners[key] = owners[idx]
	}
	sids, err := m.SpeakerIDs()
	if err != nil {
		return nil, err
	}
	maxSID := -1
	if len(sids) > 0 {
		maxSID = sids[len(sids)-1]
	}
	r.speakers = make([]string, maxSID+1)
	for key, speaker := range m.Speakers {
		if sid, _ := parseSpeakerID(key); sid >= 0 {
			r.speakers[sid] = speaker.Name
		}
	}
	return r, nil
}

// Manifest returns the manifest of the dump.
func (r *Reader) Manifest() *Manifest {
	return r.manifest
}

// SampleRate returns the rate loaded audio has.
func (r *Reader) SampleRate() signals.Hz {
	return r.rate
}

// Keys returns the blob names of the samples in dump order.
func (r *Reader) Keys() []string {
	return r.keys
}

// Speakers returns the speaker names indexed by speaker id.
func (r *Reader) Speakers() []string {
	return r.speakers
}

// Load reads the record stored under key.
func (r *Reader) Load(key string) (readers.RawSample, error) {
	if _, found := r.owners[key]; !found {
		return readers.RawSample{}, &readers.ReaderIOError{Key: key, Err: &readers.MissingKeyError{Key: key}}
	}
	data, err := r.store.Get(r.ctx, key)
	if err != nil {
		return readers.RawSample{}, &readers.ReaderIOError{Key: key, Err: err}
	}
	raw, err := DecodeRecord(data)
	if err != nil {
		return readers.RawSample{}, &readers.ReaderIOError{Key: key, Err: err}
	}
	if from := signals.Hz(r.manifest.SR); from != r.rate {
		r.logger.Debug("resampling", "key", key, "from", from, "to", r.rate)
		if raw.Audio, err = signals.Resample(raw.Audio, from, r.rate); err != nil {
			return readers.RawSample{}, &readers.ReaderIOError{Key: key, Err: err}
		}
	}
	return raw, nil
}
