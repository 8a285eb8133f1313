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
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/revsic/speechset/tools/readers"
)

// ManifestName is the blob name of the manifest in a dump store.
const ManifestName = "manifest.json"

// BlobName returns the blob name of the sample at index.
func BlobName(index int) string {
	return fmt.Sprintf("%d.msgpack", index)
}

// Record is a dumped raw sample.
type Record struct {
	SpeakerID int       `msgpack:"sid"`
	Text      string    `msgpack:"text"`
	Audio     []float32 `msgpack:"audio"`
}

// EncodeRecord serializes the raw sample.
func EncodeRecord(raw readers.RawSample) ([]byte, error) {
	return msgpack.Marshal(&Record{
		SpeakerID: raw.SpeakerID,
		Text:      raw.Text,
		Audio:     raw.Audio,
	})
}

// DecodeRecord deserializes a raw sample.
func DecodeRecord(data []byte) (readers.RawSample, error) {
	rec := &Record{}
	if err := msgpack.Unmarshal(data, rec); err != nil {
		return readers.RawSample{}, err
	}
	return readers.RawSample{
		SpeakerID: rec.SpeakerID,
		Text:      rec.Text,
		Audio:     rec.Audio,
	}, nil
}

// Entry describes one dumped sample.
type Entry struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	// Path is the key of the sample in the source reader.
	Path string `json:"path"`
}

// Speaker lists the entries of one speaker in index order.
type Speaker struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

// Manifest indexes a dump by speaker id. Every speaker of the dumped reader is listed,
// samples of unknown speakers are listed under -1.
type Manifest struct {
	SR       int                 `json:"sr"`
	Speakers map[string]*Speaker `json:"speakers"`
}

// parseSpeakerID returns the speaker id a manifest key stands for.
func parseSpeakerID(key string) (int, error) {
	sid, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("speaker id %q: %w", key, err)
	}
	if strconv.Itoa(sid) != key {
		return 0, fmt.Errorf("speaker id %q is not in decimal form", key)
	}
	return sid, nil
}

// SpeakerIDs returns the speaker ids in ascending order.
func (m *Manifest) SpeakerIDs() ([]int, error) {
	res := make([]int, 0, len(m.Speakers))
	for key := range m.Speakers {
		sid, err := parseSpeakerID(key)
		if err != nil {
			return nil, err
		}
		res = append(res, sid)
	}
	sort.Ints(res)
	return res, nil
}

// Entries returns every entry in index order, along with its speaker id.
func (m *Manifest) Entries() ([]Entry, []int, error) {
	type owned struct {
		entry Entry
		sid   int
	}
	all := []owned{}
	for key, speaker := range m.Speakers {
		sid, err := parseSpeakerID(key)
		if err != nil {
			return nil, nil, err
		}
		if speaker == nil {
			return nil, nil, fmt.Errorf("speaker %q has no entry list", key)
		}
		for _, entry := range speaker.Entries {
			all = append(all, owned{entry: entry, sid: sid})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].entry.Index < all[j].entry.Index
	})
	entries := make([]Entry, len(all))
	owners := make([]int, len(all))
	for idx, item := range all {
		if idx > 0 && item.entry.Index == all[idx-1].entry.Index {
			return nil, nil, fmt.Errorf("entry %v is listed twice", item.entry.Index)
		}
		entries[idx] = item.entry
		owners[idx] = item.sid
	}
	return entries, owners, nil
}

// WriteManifest stores m as indented JSON.
func WriteManifest(ctx context.Context, store Store, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return store.Put(ctx, ManifestName, data)
}

// ReadManifest loads the manifest of a dump.
func ReadManifest(ctx context.Context, store Store) (*Manifest, error) {
	data, err := store.Get(ctx, ManifestName)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%v: %w", ManifestName, err)
	}
	return m, nil
}
