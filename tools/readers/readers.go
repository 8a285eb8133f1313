/* readers contains the raw corpus readers feeding the speech datasets.
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
package readers

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/revsic/speechset/tools/signals"
)

// UnknownSpeaker is the speaker id of samples without a transcript.
const UnknownSpeaker = -1

// RawSample is a single utterance as stored in a corpus.
type RawSample struct {
	// SpeakerID indexes Reader.Speakers, or is UnknownSpeaker.
	SpeakerID int
	// Text is the transcript.
	Text string
	// Audio is the mono signal at the reader sample rate.
	Audio signals.Float32Slice
}

// Reader provides ordered keys and loads the raw sample behind each key.
type Reader interface {
	// Keys returns the keys in a stable order.
	Keys() []string
	// Speakers returns the speaker names, the index of a name is its speaker id.
	Speakers() []string
	// Load returns the raw sample for key.
	Load(key string) (RawSample, error)
}

// MissingKeyError is returned by transcript lookups for unknown keys.
type MissingKeyError struct {
	Key string
}

func (m *MissingKeyError) Error() string {
	return fmt.Sprintf("no transcript for %q", m.Key)
}

// ReaderIOError wraps failures reading the data behind a key.
type ReaderIOError struct {
	Key string
	Err error
}

func (r *ReaderIOError) Error() string {
	return fmt.Sprintf("reading %q: %v", r.Key, r.Err)
}

func (r *ReaderIOError) Unwrap() error {
	return r.Err
}

// Options configures the corpus readers.
type Options struct {
	// SampleRate is the rate audio is resampled to, 0 selects the corpus default.
	SampleRate signals.Hz
	// Logger receives diagnostics, nil selects slog.Default.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Memory is a Reader over samples held in memory.
type Memory struct {
	keys     []string
	speakers []string
	samples  map[string]RawSample
}

// NewMemory returns a Reader over samples, ordered by keys. Every key must have a sample.
func NewMemory(speakers []string, keys []string, samples map[string]RawSample) (*Memory, error) {
	for _, key := range keys {
		if _, found := samples[key]; !found {
			return nil, &MissingKeyError{Key: key}
		}
	}
	return &Memory{
		keys:     append([]string{}, keys...),
		speakers: append([]string{}, speakers...),
		samples:  samples,
	}, nil
}

// Keys returns the keys in the order given to NewMemory.
func (m *Memory) Keys() []string {
	return m.keys
}

// Speakers returns the speaker names given to NewMemory.
func (m *Memory) Speakers() []string {
	return m.speakers
}

// Load returns a copy of the sample stored under key.
func (m *Memory) Load(key string) (RawSample, error) {
	sample, found := m.samples[key]
	if !found {
		return RawSample{}, &ReaderIOError{Key: key, Err: &MissingKeyError{Key: key}}
	}
	sample.Audio = append(signals.Float32Slice{}, sample.Audio...)
	return sample, nil
}

// Concat merges readers, offsetting speaker ids by the number of speakers of the
// preceding readers.
type Concat struct {
	readers  []Reader
	offsets  []int
	owner    map[string]int
	keys     []string
	speakers []string
}

// NewConcat returns the concatenation of readers. A key present in several readers is
// loaded from the first of them.
func NewConcat(readers ...Reader) *Concat {
	c := &Concat{
		readers: readers,
		owner:   map[string]int{},
	}
	offset := 0
	for idx, reader := range readers {
		c.offsets = append(c.offsets, offset)
		speakers := reader.Speakers()
		c.speakers = append(c.speakers, speakers...)
		offset += len(speakers)
		for _, key := range reader.Keys() {
			if _, found := c.owner[key]; found {
				continue
			}
			c.owner[key] = idx
			c.keys = append(c.keys, key)
		}
	}
	return c
}

// Keys returns the keys of all readers, in reader order.
func (c *Concat) Keys() []string {
	return c.keys
}

// Speakers returns the speakers of all readers, in reader order.
func (c *Concat) Speakers() []string {
	return c.speakers
}

// Load reads key from its owning reader and offsets its speaker id.
func (c *Concat) Load(key string) (RawSample, error) {
	idx, found := c.owner[key]
	if !found {
		return RawSample{}, &ReaderIOError{Key: key, Err: &MissingKeyError{Key: key}}
	}
	sample, err := c.readers[idx].Load(key)
	if err != nil {
		return RawSample{}, err
	}
	if sample.SpeakerID != UnknownSpeaker {
		sample.SpeakerID += c.offsets[idx]
	}
	return sample, nil
}

// Constructor builds a corpus reader rooted at a directory.
type Constructor func(dir string, opts Options) (*Corpus, error)

var registry = map[string]Constructor{
	"ljspeech":    LJSpeech,
	"libritts":    LibriTTS,
	"librispeech": LibriSpeech,
	"vctk":        VCTK,
}

// Names returns the sorted names accepted by Open.
func Names() []string {
	res := make([]string, 0, len(registry))
	for name := range registry {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Open returns the named corpus reader rooted at dir.
func Open(name, dir string, opts Options) (*Corpus, error) {
	constructor, found := registry[name]
	if !found {
		return nil, fmt.Errorf("unknown reader %q, wanted one of %v", name, Names())
	}
	return constructor(dir, opts)
}

// IsMissingKey returns whether err is or wraps a MissingKeyError.
func IsMissingKey(err error) bool {
	missing := &MissingKeyError{}
	return errors.As(err, &missing)
}
